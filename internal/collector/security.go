package collector

import (
	"context"

	"github.com/sony/gobreaker"

	"github.com/catid/timesync/internal/config"
	"github.com/catid/timesync/internal/peersync"
	"github.com/catid/timesync/pkg/logger"
	"github.com/catid/timesync/pkg/metrics"
)

// SecurityCollector exports each peer's gate state: every collection in
// which a peer's circuit breaker is open adds one to GateCircuitOpenTotal
// for that peer. Rate-limit decisions are not exported here.
type SecurityCollector struct {
	*CommonCollector
}

// NewSecurityCollector creates a new gate/security metrics collector
func NewSecurityCollector(cfg *config.Config, mgr *peersync.Manager, m *metrics.PeerMetrics) *SecurityCollector {
	return &SecurityCollector{
		CommonCollector: NewCommonCollector(cfg, mgr, m, "security"),
	}
}

// Collect exports gate state for every tracked peer.
func (c *SecurityCollector) Collect(ctx context.Context) error {
	return c.IterateSnapshot(ctx, c.collectFromPeer, "security")
}

// collectFromPeer reports a single peer's circuit breaker state.
func (c *SecurityCollector) collectFromPeer(ctx context.Context, status peersync.PeerStatus) error {
	m := c.GetMetrics()
	peer := string(status.Peer)

	state := c.GetManager().GateState(status.Peer)
	if state == gobreaker.StateOpen {
		m.GateCircuitOpenTotal.WithLabelValues(peer).Inc()
		logger.SafeWarn("collector", "Peer circuit breaker open", map[string]interface{}{
			"peer": peer,
		})
	}

	logger.SafeDebug("collector", "Security metrics updated", map[string]interface{}{
		"peer":  peer,
		"state": state.String(),
	})

	return nil
}
