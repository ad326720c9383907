package collector

import (
	"context"

	"github.com/catid/timesync/internal/config"
	"github.com/catid/timesync/internal/peersync"
	"github.com/catid/timesync/pkg/logger"
	"github.com/catid/timesync/pkg/metrics"
)

// CommonCollector provides shared functionality for all collectors
type CommonCollector struct {
	config  *config.Config
	manager *peersync.Manager
	metrics *metrics.PeerMetrics
	enabled bool
	name    string
}

// NewCommonCollector creates a new common collector base
func NewCommonCollector(cfg *config.Config, mgr *peersync.Manager, m *metrics.PeerMetrics, name string) *CommonCollector {
	return &CommonCollector{
		config:  cfg,
		manager: mgr,
		metrics: m,
		enabled: true,
		name:    name,
	}
}

// Name returns the collector name
func (c *CommonCollector) Name() string {
	return c.name
}

// Enabled returns whether the collector is enabled
func (c *CommonCollector) Enabled() bool {
	return c.enabled
}

// GetConfig returns the configuration
func (c *CommonCollector) GetConfig() *config.Config {
	return c.config
}

// GetManager returns the peer session manager
func (c *CommonCollector) GetManager() *peersync.Manager {
	return c.manager
}

// GetMetrics returns the metrics registry
func (c *CommonCollector) GetMetrics() *metrics.PeerMetrics {
	return c.metrics
}

// IterateSnapshot iterates over a point-in-time read of every tracked peer
// and invokes collectFunc for each. Errors are logged and otherwise ignored,
// since one misbehaving peer must not stop the sweep over the rest.
func (c *CommonCollector) IterateSnapshot(ctx context.Context, collectFunc func(context.Context, peersync.PeerStatus) error, metricType string) error {
	snapshot := c.manager.Snapshot()
	logger.Infof("collector", "Starting %s metrics collection over %d peers", metricType, len(snapshot))

	for _, status := range snapshot {
		if err := collectFunc(ctx, status); err != nil {
			logger.SafeWarn("collector", "Failed to collect "+metricType+" metrics", map[string]interface{}{
				"peer":  string(status.Peer),
				"error": err.Error(),
			})
			continue
		}
	}

	return nil
}
