package peersync

import (
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/catid/timesync/pkg/mathutil"
	"github.com/catid/timesync/timesync"
)

// PeerSession pairs one peer's TimeSynchronizer with its bookkeeping. The
// embedded mutex is the session's sole serialization point: every call that
// touches Engine must hold it first, satisfying the engine's own
// single-threaded-per-instance contract even though many goroutines may be
// driving many peers concurrently.
type PeerSession struct {
	mu       sync.Mutex
	Peer     PeerID
	Engine   *timesync.TimeSynchronizer
	LastSeen time.Time
}

// PeerStatus is a point-in-time, lock-free read of one peer's session,
// suitable for metrics export or the /peers debug endpoint.
type PeerStatus struct {
	Peer            PeerID
	State           timesync.HandshakeState
	OWDUsec         uint32
	ClockOffsetUsec int32
	LastSeen        time.Time
}

// IngestItem is one datagram-timestamp observation queued for IngestBatch.
type IngestItem struct {
	Peer      PeerID
	PeerTS24  timesync.Counter24
	RecvLocal timesync.Usec64
}

// IngestResult is IngestItem's outcome, aligned by index with the input
// slice passed to IngestBatch.
type IngestResult struct {
	Peer     PeerID
	OWDUsec  uint32
	Decision GateDecision
}

// ManagerConfig configures the session manager.
type ManagerConfig struct {
	// WindowLength is passed to every peer's TimeSynchronizer as its
	// min-delta window. Zero uses the engine's own default.
	WindowLength timesync.Usec64

	// Gate configures the per-peer rate limiter and circuit breaker.
	Gate GateConfig

	// PeerTTL is how long a peer may go without an Ingest/IngestMinDelta
	// call before Sweep evicts it. Zero disables eviction.
	PeerTTL time.Duration

	// MaxConcurrency bounds IngestBatch's worker pool. Defaults to 4.
	MaxConcurrency int
}

// Manager owns one TimeSynchronizer per remote peer behind a per-peer
// mutex, and a shared Gate guarding ingest against misbehaving peers.
type Manager struct {
	cfg  ManagerConfig
	gate *Gate

	mu       sync.RWMutex
	sessions map[PeerID]*PeerSession
}

// NewManager creates a Manager ready to track peers.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	return &Manager{
		cfg:      cfg,
		gate:     NewGate(cfg.Gate),
		sessions: make(map[PeerID]*PeerSession),
	}
}

// Ingest is the synchronous single-item entry point for a received
// datagram timestamp: it consults the gate, and if admitted, feeds the
// timestamp to that peer's TimeSynchronizer. The returned OWD estimate is
// only meaningful when decision is Admit.
func (m *Manager) Ingest(peer PeerID, peerTS24 timesync.Counter24, recvLocal timesync.Usec64) (owdUsec uint32, decision GateDecision) {
	decision = m.gate.Admit(peer)
	if decision != Admit {
		return 0, decision
	}

	session := m.sessionFor(peer)

	session.mu.Lock()
	prevOWD := session.Engine.GetMinimumOneWayDelayUsec()
	owdUsec = session.Engine.OnAuthenticatedDatagramTimestamp(peerTS24, recvLocal)
	session.LastSeen = time.Now()
	session.mu.Unlock()

	jump := mathutil.AbsFloat64(float64(owdUsec) - float64(prevOWD))
	m.gate.RecordOWDJump(peer, uint32(jump))

	return owdUsec, decision
}

// IngestMinDelta routes a peer's sync-datagram min-delta into that peer's
// TimeSynchronizer, completing the handshake's second round.
func (m *Manager) IngestMinDelta(peer PeerID, minDelta timesync.Counter24) {
	session := m.sessionFor(peer)

	session.mu.Lock()
	session.Engine.OnPeerMinDeltaTS24(minDelta)
	session.LastSeen = time.Now()
	session.mu.Unlock()
}

// IngestBatch fans a batch of datagram-timestamp observations out across a
// bounded worker pool, one goroutine group per distinct peer: two items for
// the same peer are processed in their original relative order, while
// items for distinct peers proceed concurrently. The result slice is
// aligned by index with items.
func (m *Manager) IngestBatch(items []IngestItem) []IngestResult {
	results := make([]IngestResult, len(items))
	if len(items) == 0 {
		return results
	}

	groups := make(map[PeerID][]int)
	order := make([]PeerID, 0)
	for i, item := range items {
		if _, seen := groups[item.Peer]; !seen {
			order = append(order, item.Peer)
		}
		groups[item.Peer] = append(groups[item.Peer], i)
	}

	workerCount := m.cfg.MaxConcurrency
	if workerCount > len(order) {
		workerCount = len(order)
	}

	jobs := make(chan PeerID, len(order))
	var wg sync.WaitGroup
	wg.Add(workerCount)

	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for peer := range jobs {
				for _, idx := range groups[peer] {
					item := items[idx]
					owd, decision := m.Ingest(item.Peer, item.PeerTS24, item.RecvLocal)
					results[idx] = IngestResult{Peer: item.Peer, OWDUsec: owd, Decision: decision}
				}
			}
		}()
	}

	for _, peer := range order {
		jobs <- peer
	}
	close(jobs)
	wg.Wait()

	return results
}

// Snapshot returns a point-in-time read of every tracked peer.
func (m *Manager) Snapshot() []PeerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]PeerStatus, 0, len(m.sessions))
	for _, session := range m.sessions {
		session.mu.Lock()
		out = append(out, PeerStatus{
			Peer:            session.Peer,
			State:           session.Engine.State(),
			OWDUsec:         session.Engine.GetMinimumOneWayDelayUsec(),
			ClockOffsetUsec: session.Engine.GetClockOffsetUsec(),
			LastSeen:        session.LastSeen,
		})
		session.mu.Unlock()
	}
	return out
}

// GateState reports the current circuit breaker state for peer, for metrics
// and the /peers debug endpoint.
func (m *Manager) GateState(peer PeerID) gobreaker.State {
	return m.gate.State(peer)
}

// MinDeltaFor returns the given peer's current windowed-minimum delta, for
// inclusion in the outgoing sync packet that completes the handshake's
// second round.
func (m *Manager) MinDeltaFor(peer PeerID) timesync.Counter24 {
	session := m.sessionFor(peer)

	session.mu.Lock()
	defer session.mu.Unlock()
	return session.Engine.GetMinDeltaTS24()
}

// Sweep evicts any peer unseen for longer than cfg.PeerTTL, dropping its
// TimeSynchronizer and gate state entirely. A no-op if PeerTTL is zero.
func (m *Manager) Sweep() (evicted int) {
	if m.cfg.PeerTTL <= 0 {
		return 0
	}

	cutoff := time.Now().Add(-m.cfg.PeerTTL)

	m.mu.Lock()
	defer m.mu.Unlock()

	for peer, session := range m.sessions {
		session.mu.Lock()
		stale := session.LastSeen.Before(cutoff)
		session.mu.Unlock()

		if stale {
			delete(m.sessions, peer)
			m.gate.Forget(peer)
			evicted++
		}
	}
	return evicted
}

// RunSweeper starts a background goroutine calling Sweep every interval
// until stop is closed.
func (m *Manager) RunSweeper(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

func (m *Manager) sessionFor(peer PeerID) *PeerSession {
	m.mu.RLock()
	session, ok := m.sessions[peer]
	m.mu.RUnlock()
	if ok {
		return session
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[peer]; ok {
		return session
	}

	var engine *timesync.TimeSynchronizer
	if m.cfg.WindowLength > 0 {
		engine = timesync.NewTimeSynchronizerWithWindow(m.cfg.WindowLength)
	} else {
		engine = timesync.NewTimeSynchronizer()
	}

	session = &PeerSession{
		Peer:     peer,
		Engine:   engine,
		LastSeen: time.Now(),
	}
	m.sessions[peer] = session
	return session
}

// String renders a PeerStatus for logging.
func (s PeerStatus) String() string {
	return fmt.Sprintf("peer=%s state=%s owd_usec=%d offset_usec=%d last_seen=%s",
		s.Peer, s.State, s.OWDUsec, s.ClockOffsetUsec, s.LastSeen.Format(time.RFC3339))
}
