package timesync

// windowSlots bounds WindowedMinTS24's backing store. The filter trades
// exact sliding-window-minimum correctness for a fixed, allocation-free
// footprint: on a strictly increasing input stream it can lag the true
// minimum by up to roughly half a window's worth of samples, which is why
// callers see an error tolerance during monotonic ramps rather than exact
// tracking.
const windowSlots = 3

type windowEntry struct {
	value     Counter24
	timestamp Usec64
}

// WindowedMinTS24 tracks the minimum Counter24 value observed within a
// trailing time window, using a monotonic deque bounded to three entries.
// Zero value is ready to use.
type WindowedMinTS24 struct {
	entries [windowSlots]windowEntry
	count   int
}

// Update records a new (value, timestamp) sample and expires anything older
// than windowLength behind timestamp. Samples with a timestamp strictly
// older than the most recently accepted one are dropped as stale; samples
// with an equal timestamp overwrite the most recent one.
func (w *WindowedMinTS24) Update(value Counter24, timestamp Usec64, windowLength Usec64) {
	if w.count > 0 {
		tail := w.entries[w.count-1].timestamp
		if timestamp < tail {
			return
		}
		if timestamp == tail {
			w.count--
		}
	}

	for w.count > 0 && w.entries[w.count-1].value >= value {
		w.count--
	}

	if w.count == windowSlots {
		// Deque is full and nothing was popped above: every existing
		// entry is strictly less than the incoming value. Drop the
		// stalest non-head entry to make room rather than grow past
		// the fixed bound.
		w.entries[1] = w.entries[2]
		w.count--
	}

	w.entries[w.count] = windowEntry{value: value, timestamp: timestamp}
	w.count++

	var cutoff Usec64
	if timestamp > windowLength {
		cutoff = timestamp - windowLength
	}
	for w.count > 0 && w.entries[0].timestamp < cutoff {
		for i := 1; i < w.count; i++ {
			w.entries[i-1] = w.entries[i]
		}
		w.count--
	}
}

// GetBest returns the current minimum value in the window, or 0 if no
// sample has been recorded (or all samples have expired).
func (w *WindowedMinTS24) GetBest() Counter24 {
	if w.count == 0 {
		return 0
	}
	return w.entries[0].value
}

// Reset discards all recorded samples.
func (w *WindowedMinTS24) Reset() {
	w.count = 0
}
