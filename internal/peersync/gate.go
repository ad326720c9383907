// Package peersync fans the timesync engine out across many remote peers:
// it owns one TimeSynchronizer per peer, serializes access to each under
// its own mutex, and guards ingest with a per-peer rate limiter and circuit
// breaker.
package peersync

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// PeerID identifies a remote peer to the session manager. It plays no role
// inside the timesync engine itself.
type PeerID string

// GateDecision reports what a Gate did with an ingest attempt.
type GateDecision int

const (
	// Admit means the sample was allowed through to the engine.
	Admit GateDecision = iota
	// RateLimited means the peer's token bucket was empty.
	RateLimited
	// CircuitOpen means the peer's circuit breaker had already tripped.
	CircuitOpen
)

func (d GateDecision) String() string {
	switch d {
	case Admit:
		return "admit"
	case RateLimited:
		return "rate-limited"
	case CircuitOpen:
		return "circuit-open"
	default:
		return "unknown"
	}
}

// GateConfig configures the per-peer rate limiter and circuit breaker a Gate
// creates on first use for each peer.
type GateConfig struct {
	// RatePerSecond and Burst bound how many datagrams per second a single
	// peer may push through the gate.
	RatePerSecond float64
	Burst         int

	// MaxOWDJumpUsec is the largest one-way-delay jump between consecutive
	// synchronized estimates a peer may produce before it counts as a
	// ReadyToTrip failure (guards against a poisoned minimum filter, see
	// the engine's security note on a single attacker-controlled sample).
	MaxOWDJumpUsec uint32

	// CircuitBreaker tunes the gobreaker.Settings fields that aren't
	// derived from MaxOWDJumpUsec.
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// DefaultGateConfig returns conservative defaults suitable for a single
// well-behaved peer exchanging datagrams every few seconds.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		RatePerSecond:  5,
		Burst:          10,
		MaxOWDJumpUsec: 500_000,
		MaxRequests:    3,
		Interval:       60 * time.Second,
		Timeout:        30 * time.Second,
	}
}

// Gate holds one rate limiter and one circuit breaker per peer, created
// lazily on first use.
type Gate struct {
	cfg GateConfig

	mu       sync.RWMutex
	limiters map[PeerID]*rate.Limiter
	breakers map[PeerID]*gobreaker.CircuitBreaker
}

// NewGate creates a Gate. A zero RatePerSecond replaces the whole config with
// DefaultGateConfig; any other zero field (MaxRequests included) is kept as
// given.
func NewGate(cfg GateConfig) *Gate {
	if cfg.RatePerSecond == 0 {
		cfg = DefaultGateConfig()
	}
	return &Gate{
		cfg:      cfg,
		limiters: make(map[PeerID]*rate.Limiter),
		breakers: make(map[PeerID]*gobreaker.CircuitBreaker),
	}
}

// Admit consults the rate limiter and circuit breaker for peer without
// blocking, returning the decision the caller must act on before ever
// calling into that peer's TimeSynchronizer.
func (g *Gate) Admit(peer PeerID) GateDecision {
	breaker := g.breakerFor(peer)
	if breaker.State() == gobreaker.StateOpen {
		return CircuitOpen
	}

	limiter := g.limiterFor(peer)
	if !limiter.Allow() {
		g.recordFailure(breaker)
		return RateLimited
	}

	return Admit
}

// RecordOWDJump reports the absolute jump in one-way-delay estimate a peer
// just produced, allowing the circuit breaker to trip on abnormal flapping
// even though the underlying sample was individually admitted.
func (g *Gate) RecordOWDJump(peer PeerID, jumpUsec uint32) {
	breaker := g.breakerFor(peer)
	if jumpUsec > g.cfg.MaxOWDJumpUsec {
		g.recordFailure(breaker)
		return
	}
	g.recordSuccess(breaker)
}

// State reports the current circuit breaker state for peer, for metrics and
// the /peers debug endpoint.
func (g *Gate) State(peer PeerID) gobreaker.State {
	return g.breakerFor(peer).State()
}

// Forget drops the per-peer limiter and breaker, used when the session
// manager evicts an idle peer.
func (g *Gate) Forget(peer PeerID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.limiters, peer)
	delete(g.breakers, peer)
}

func (g *Gate) recordSuccess(breaker *gobreaker.CircuitBreaker) {
	_, _ = breaker.Execute(func() (interface{}, error) { return nil, nil })
}

func (g *Gate) recordFailure(breaker *gobreaker.CircuitBreaker) {
	_, _ = breaker.Execute(func() (interface{}, error) { return nil, errGateRejected })
}

var errGateRejected = errors.New("peersync: gate rejected sample")

func (g *Gate) limiterFor(peer PeerID) *rate.Limiter {
	g.mu.RLock()
	l, ok := g.limiters[peer]
	g.mu.RUnlock()
	if ok {
		return l
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.limiters[peer]; ok {
		return l
	}
	l = rate.NewLimiter(rate.Limit(g.cfg.RatePerSecond), g.cfg.Burst)
	g.limiters[peer] = l
	return l
}

func (g *Gate) breakerFor(peer PeerID) *gobreaker.CircuitBreaker {
	g.mu.RLock()
	b, ok := g.breakers[peer]
	g.mu.RUnlock()
	if ok {
		return b
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.breakers[peer]; ok {
		return b
	}
	name := string(peer)
	b = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: g.cfg.MaxRequests,
		Interval:    g.cfg.Interval,
		Timeout:     g.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	})
	g.breakers[peer] = b
	return b
}
