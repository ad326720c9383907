// Package timesync implements a peer-to-peer one-way-delay and clock-offset
// estimator built on wrap-safe fixed-width counters. Apart from the
// constructors, it never allocates; it never blocks and never returns an
// error: every operation is counter arithmetic modulo a small power of two.
package timesync

// Usec64 is a local monotonic microsecond counter, opaque outside this
// package's arithmetic. Callers obtain it from their own monotonic clock;
// this package never reads wall time itself.
type Usec64 uint64

// Counter16 is a wire-truncated 16-bit microsecond counter.
type Counter16 uint16

// Counter23 is a wire-truncated 23-bit microsecond counter. Only the low 23
// bits are significant; the high bit of the backing uint32 is always zero.
type Counter23 uint32

// Counter24 is a wire-truncated 24-bit microsecond counter, also used to
// carry a signed delta (see signedHalf24) in the min-delta exchange. Only
// the low 24 bits are significant.
type Counter24 uint32

const (
	bits16 = 16
	bits23 = 23
	bits24 = 24

	mask16 = uint32(1)<<bits16 - 1
	mask23 = uint32(1)<<bits23 - 1
	mask24 = uint32(1)<<bits24 - 1

	half16 = uint32(1) << (bits16 - 1)
	half24 = uint32(1) << (bits24 - 1)
)

// MaxTranslate16ErrorUsec bounds the reconstruction error of Expand16 when
// the true elapsed time between reference and field is within the
// representable half-range of the 16-bit counter.
const MaxTranslate16ErrorUsec = 32767

// MaxTranslate23ErrorUsec bounds the reconstruction error of Expand23 under
// the same condition, scaled for the wider 23-bit field. Implementation
// defined per spec: fixed here at 2 microseconds, matching the published
// bound this engine's semantics were distilled from.
const MaxTranslate23ErrorUsec = 2

// Trunc16 truncates t to its low 16 bits for wire transmission.
func Trunc16(t Usec64) Counter16 { return Counter16(uint32(t) & mask16) }

// Trunc23 truncates t to its low 23 bits for wire transmission.
func Trunc23(t Usec64) Counter23 { return Counter23(uint32(t) & mask23) }

// Trunc24 truncates t to its low 24 bits for wire transmission.
func Trunc24(t Usec64) Counter24 { return Counter24(uint32(t) & mask24) }

// Expand16 reconstructs a full Usec64 from a 16-bit wire field, given a
// reference time known to be within half the counter's range of the true
// value. Reconstruction error grows unbounded once that assumption breaks.
func Expand16(reference Usec64, field Counter16) Usec64 {
	return expand(reference, uint32(field)&mask16, mask16, half16)
}

// Expand23 reconstructs a full Usec64 from a 23-bit wire field. See Expand16.
func Expand23(reference Usec64, field Counter23) Usec64 {
	return expand(reference, uint32(field)&mask23, mask23, half23())
}

// Expand24 reconstructs a full Usec64 from a 24-bit wire field. See Expand16.
func Expand24(reference Usec64, field Counter24) Usec64 {
	return expand(reference, uint32(field)&mask24, mask24, half24)
}

func half23() uint32 { return uint32(1) << (bits23 - 1) }

// expand reconstructs reference + signed(field - trunc(reference)), wrapping
// modulo 2^k via two's-complement addition on the full 64-bit counter.
func expand(reference Usec64, field, mask, half uint32) Usec64 {
	r := uint32(reference) & mask
	d := (field - r) & mask
	if d >= half {
		return reference + Usec64(d) - Usec64(mask) - 1
	}
	return reference + Usec64(d)
}

// signedHalf24 reinterprets the low 24 bits of x as a signed value in
// [-2^23, 2^23). The tie at exactly x == 2^23 has no canonical sign in the
// wraparound arithmetic this engine relies on; this implementation resolves
// it to the negative branch, and callers must not depend on the opposite
// choice.
func signedHalf24(x uint32) int32 {
	x &= mask24
	if x < half24 {
		return int32(x)
	}
	return int32(x) - int32(mask24) - 1
}
