// Package udptransport is a reference, swappable UDP transport for the
// timesync engine: it authenticates every packet with HMAC before any
// timestamp it carries reaches the engine, and carries the 24-bit
// big-endian timestamp fields the engine's wire layout calls for. It is a
// concrete stand-in for the "external collaborator" transport layer the
// engine itself deliberately knows nothing about.
package udptransport

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/catid/timesync/timesync"
)

// PacketType distinguishes the two datagram kinds the handshake needs.
type PacketType byte

const (
	// PacketData carries only a send timestamp (round one of the
	// handshake).
	PacketData PacketType = 1
	// PacketSync additionally carries the sender's windowed-minimum delta
	// (round two of the handshake).
	PacketSync PacketType = 2
)

const (
	tagSize     = sha256.Size
	ts24Size    = 3
	dataBodyLen = 1 + ts24Size
	syncBodyLen = 1 + ts24Size + ts24Size

	// DataPacketLen and SyncPacketLen are the exact wire sizes this
	// package produces and expects, body plus HMAC tag.
	DataPacketLen = dataBodyLen + tagSize
	SyncPacketLen = syncBodyLen + tagSize
)

func putCounter24(buf []byte, c timesync.Counter24) {
	v := uint32(c)
	buf[0] = byte(v >> 16)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v)
}

func getCounter24(buf []byte) timesync.Counter24 {
	return timesync.Counter24(uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2]))
}

func tag(key, body []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return mac.Sum(nil)
}

// EncodeData builds an authenticated data packet carrying ts.
func EncodeData(key []byte, ts timesync.Counter24) []byte {
	out := make([]byte, DataPacketLen)
	out[0] = byte(PacketData)
	putCounter24(out[1:], ts)
	copy(out[dataBodyLen:], tag(key, out[:dataBodyLen]))
	return out
}

// EncodeSync builds an authenticated sync packet carrying ts and the
// sender's windowed-minimum delta.
func EncodeSync(key []byte, ts, minDelta timesync.Counter24) []byte {
	out := make([]byte, SyncPacketLen)
	out[0] = byte(PacketSync)
	putCounter24(out[1:], ts)
	putCounter24(out[1+ts24Size:], minDelta)
	copy(out[syncBodyLen:], tag(key, out[:syncBodyLen]))
	return out
}

// DecodedPacket is the authenticated, parsed form of a received datagram.
type DecodedPacket struct {
	Type     PacketType
	TS24     timesync.Counter24
	MinDelta timesync.Counter24 // only valid when Type == PacketSync
}

// Decode verifies buf's HMAC tag under key and parses its fields. An
// authentication failure or malformed length is always an error; the
// caller must never forward an unauthenticated packet's fields to the
// engine.
func Decode(key, buf []byte) (DecodedPacket, error) {
	switch {
	case len(buf) == DataPacketLen && PacketType(buf[0]) == PacketData:
		body, gotTag := buf[:dataBodyLen], buf[dataBodyLen:]
		if !hmac.Equal(gotTag, tag(key, body)) {
			return DecodedPacket{}, fmt.Errorf("udptransport: data packet failed authentication")
		}
		return DecodedPacket{Type: PacketData, TS24: getCounter24(buf[1:])}, nil

	case len(buf) == SyncPacketLen && PacketType(buf[0]) == PacketSync:
		body, gotTag := buf[:syncBodyLen], buf[syncBodyLen:]
		if !hmac.Equal(gotTag, tag(key, body)) {
			return DecodedPacket{}, fmt.Errorf("udptransport: sync packet failed authentication")
		}
		return DecodedPacket{
			Type:     PacketSync,
			TS24:     getCounter24(buf[1:]),
			MinDelta: getCounter24(buf[1+ts24Size:]),
		}, nil

	default:
		return DecodedPacket{}, fmt.Errorf("udptransport: malformed packet: %d bytes, type %d", len(buf), safeType(buf))
	}
}

func safeType(buf []byte) byte {
	if len(buf) == 0 {
		return 0
	}
	return buf[0]
}
