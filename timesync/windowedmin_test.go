package timesync

import "testing"

// TestWindowedMinStepUp exercises a monotonically increasing input stream,
// the pathological case for a fixed 3-slot deque: the true windowed minimum
// is i-windowLength once the ramp exceeds the window, but this filter is
// allowed to lag it by a bounded amount rather than track it exactly.
func TestWindowedMinStepUp(t *testing.T) {
	var w WindowedMinTS24
	const windowLength = Usec64(100)

	for i := 0; i < 1000; i++ {
		w.Update(Counter24(i), Usec64(i), windowLength)

		if i <= 100 {
			if got := w.GetBest(); got > 1 {
				t.Fatalf("i=%d: GetBest() = %d, want <= 1 during initial ramp", i, got)
			}
			continue
		}

		want := int64(i) - int64(windowLength)
		got := int64(w.GetBest())
		if diff := want - got; diff < 0 || diff > 50 {
			t.Fatalf("i=%d: GetBest() = %d, want within 50 of %d", i, got, want)
		}
	}
}

func TestWindowedMinReset(t *testing.T) {
	var w WindowedMinTS24
	for i := 0; i < 500; i++ {
		w.Update(Counter24(i), Usec64(i), 100)
	}
	w.Reset()
	if got := w.GetBest(); got != 0 {
		t.Fatalf("GetBest() after Reset() = %d, want 0", got)
	}
}

// TestWindowedMinStepDown exercises a monotonically decreasing input
// stream: every new sample is strictly less than everything already in the
// deque, so it pops the entire deque and becomes the sole entry, tracking
// the minimum exactly regardless of the 3-slot bound.
func TestWindowedMinStepDown(t *testing.T) {
	var w WindowedMinTS24
	const windowLength = Usec64(10_000)

	value := 1000
	for i := 0; value >= 1; i++ {
		w.Update(Counter24(value), Usec64(i), windowLength)
		if got := w.GetBest(); got != Counter24(value) {
			t.Fatalf("i=%d value=%d: GetBest() = %d, want %d", i, value, got, value)
		}
		value--
	}
}

func TestWindowedMinTieBreakLastWriteWins(t *testing.T) {
	var w WindowedMinTS24
	w.Update(5, 10, 100)
	w.Update(9, 10, 100) // same timestamp, larger value: overwrites the tail
	if got := w.GetBest(); got != 9 {
		t.Fatalf("GetBest() = %d, want 9 (last write at equal timestamp wins)", got)
	}
}

func TestWindowedMinDropsStaleOutOfOrderSample(t *testing.T) {
	var w WindowedMinTS24
	w.Update(5, 100, 1000)
	w.Update(1, 50, 1000) // older timestamp than the last accepted sample
	if got := w.GetBest(); got != 5 {
		t.Fatalf("GetBest() = %d, want 5 (stale sample must be dropped)", got)
	}
}

func TestWindowedMinExpiry(t *testing.T) {
	var w WindowedMinTS24
	w.Update(1, 0, 50)
	w.Update(2, 200, 50) // far beyond the window: the value=1 entry expires
	if got := w.GetBest(); got != 2 {
		t.Fatalf("GetBest() = %d, want 2 after expiry", got)
	}
}
