package peersync

import (
	"testing"
	"time"

	"github.com/catid/timesync/timesync"
)

func permissiveGateConfig() GateConfig {
	return GateConfig{
		RatePerSecond:  1000,
		Burst:          1000,
		MaxOWDJumpUsec: 10_000_000,
		MaxRequests:    3,
		Interval:       time.Minute,
		Timeout:        time.Second,
	}
}

func TestManagerIngestReachesSynchronized(t *testing.T) {
	m := NewManager(ManagerConfig{Gate: permissiveGateConfig()})

	owd, decision := m.Ingest("peerA", timesync.Trunc24(1000), 1050)
	if decision != Admit {
		t.Fatalf("decision = %s, want admit", decision)
	}
	if owd != 0 {
		t.Fatalf("owd = %d before second round, want 0", owd)
	}

	m.IngestMinDelta("peerA", 40)

	snap := m.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("Snapshot() returned %d peers, want 1", len(snap))
	}
	if snap[0].State != timesync.StateSynchronized {
		t.Fatalf("state = %s, want synchronized", snap[0].State)
	}
}

// TestGateIsolation (property 7): a peer tripped into CircuitOpen must not
// affect ingest or sync state for any other peer tracked by the same
// Manager.
func TestGateIsolation(t *testing.T) {
	cfg := permissiveGateConfig()
	cfg.RatePerSecond = 0.0001 // effectively no refill within the test
	cfg.Burst = 1
	cfg.MaxRequests = 1
	cfg.Interval = time.Minute
	cfg.Timeout = time.Hour

	m := NewManager(ManagerConfig{Gate: cfg})

	// Exhaust peerA's burst and force enough failures to trip its breaker.
	m.Ingest("peerA", timesync.Trunc24(1), 1)
	for i := 0; i < 10; i++ {
		m.Ingest("peerA", timesync.Trunc24(timesync.Usec64(i)), timesync.Usec64(i))
	}
	if state := m.gate.State("peerA"); state.String() != "open" {
		t.Fatalf("peerA breaker state = %s, want open", state)
	}

	// peerB, untouched, must still be fully admitted and reach sync.
	owd, decision := m.Ingest("peerB", timesync.Trunc24(2000), 2050)
	if decision != Admit {
		t.Fatalf("peerB decision = %s, want admit", decision)
	}
	if owd != 0 {
		t.Fatalf("peerB owd = %d before second round, want 0", owd)
	}
	m.IngestMinDelta("peerB", 40)

	snap := snapshotByPeer(m)
	if snap["peerB"].State != timesync.StateSynchronized {
		t.Fatalf("peerB state = %s, want synchronized despite peerA's open circuit", snap["peerB"].State)
	}
}

// TestBatchOrdering (property 8): IngestBatch processing two items for the
// same peer in one call must yield the same final engine state as calling
// Ingest for those two items sequentially in the same order.
func TestBatchOrdering(t *testing.T) {
	cfg := permissiveGateConfig()

	sequential := NewManager(ManagerConfig{Gate: cfg})
	sequential.Ingest("peerA", timesync.Trunc24(1000), 1050)
	sequential.Ingest("peerA", timesync.Trunc24(2000), 2200)

	batched := NewManager(ManagerConfig{Gate: cfg})
	results := batched.IngestBatch([]IngestItem{
		{Peer: "peerA", PeerTS24: timesync.Trunc24(1000), RecvLocal: 1050},
		{Peer: "peerA", PeerTS24: timesync.Trunc24(2000), RecvLocal: 2200},
	})
	if len(results) != 2 {
		t.Fatalf("IngestBatch returned %d results, want 2", len(results))
	}

	seqSnap := snapshotByPeer(sequential)["peerA"]
	batchSnap := snapshotByPeer(batched)["peerA"]

	if seqSnap.State != batchSnap.State {
		t.Fatalf("state mismatch: sequential=%s batched=%s", seqSnap.State, batchSnap.State)
	}
	if seqSnap.OWDUsec != batchSnap.OWDUsec {
		t.Fatalf("owd mismatch: sequential=%d batched=%d", seqSnap.OWDUsec, batchSnap.OWDUsec)
	}
}

// TestBatchOrderingManyPeersConcurrent checks that a large batch spanning
// many peers, each with several ordered items, still preserves per-peer
// order under the concurrent worker pool.
func TestBatchOrderingManyPeersConcurrent(t *testing.T) {
	cfg := permissiveGateConfig()
	m := NewManager(ManagerConfig{Gate: cfg, MaxConcurrency: 8})

	var items []IngestItem
	peers := []PeerID{"p1", "p2", "p3", "p4", "p5"}
	for step := 0; step < 20; step++ {
		for _, p := range peers {
			t := timesync.Usec64(1000 + step*1000)
			items = append(items, IngestItem{
				Peer:      p,
				PeerTS24:  timesync.Trunc24(t),
				RecvLocal: t + 50,
			})
		}
	}

	results := m.IngestBatch(items)
	if len(results) != len(items) {
		t.Fatalf("got %d results, want %d", len(results), len(items))
	}
	for i, r := range results {
		if r.Decision != Admit {
			t.Fatalf("item %d: decision = %s, want admit", i, r.Decision)
		}
	}
}

// TestEviction (property 9): a peer unseen for longer than PeerTTL is
// absent from Snapshot() after a sweep, and a fresh Ingest for that peer
// starts a new, unsynchronized session.
func TestEviction(t *testing.T) {
	m := NewManager(ManagerConfig{Gate: permissiveGateConfig(), PeerTTL: time.Millisecond})

	m.Ingest("peerA", timesync.Trunc24(1000), 1050)
	m.IngestMinDelta("peerA", 40)

	time.Sleep(5 * time.Millisecond)
	evicted := m.Sweep()
	if evicted != 1 {
		t.Fatalf("Sweep() evicted %d peers, want 1", evicted)
	}

	if snap := m.Snapshot(); len(snap) != 0 {
		t.Fatalf("Snapshot() after sweep has %d peers, want 0", len(snap))
	}

	owd, decision := m.Ingest("peerA", timesync.Trunc24(5000), 5050)
	if decision != Admit {
		t.Fatalf("decision after re-ingest = %s, want admit", decision)
	}
	if owd != 0 {
		t.Fatalf("owd after re-ingest = %d, want 0 (fresh unsynchronized session)", owd)
	}

	snap := snapshotByPeer(m)
	if snap["peerA"].State != timesync.StateLocalOnly {
		t.Fatalf("state after re-ingest = %s, want local-only", snap["peerA"].State)
	}
}

func snapshotByPeer(m *Manager) map[PeerID]PeerStatus {
	out := make(map[PeerID]PeerStatus)
	for _, s := range m.Snapshot() {
		out[s.Peer] = s
	}
	return out
}
