// Package collector periodically turns a peersync.Manager's live session
// state into Prometheus metrics.
//
// The package includes two collector types:
//   - BaseCollector: exports per-peer OWD, clock offset, and sync state
//   - SecurityCollector: exports per-peer circuit breaker trips
//
// Both collectors implement the Collector interface and are managed through
// a Registry for coordinated collection.
//
// Usage:
//
//	cfg, err := config.LoadFromYamlFile("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	registry := collector.NewRegistry()
//	registry.Register(collector.NewBaseCollector(cfg, mgr, m))
//	if err := registry.CollectAll(ctx); err != nil {
//	    log.Fatal(err)
//	}
package collector

import (
	"context"
	"time"

	"github.com/catid/timesync/internal/config"
	"github.com/catid/timesync/internal/peersync"
	"github.com/catid/timesync/pkg/logger"
	"github.com/catid/timesync/pkg/metrics"
	"github.com/catid/timesync/timesync"
)

// BaseCollector exports the synchronization state of every tracked peer.
type BaseCollector struct {
	*CommonCollector
}

// NewBaseCollector creates a new peer synchronization collector
func NewBaseCollector(cfg *config.Config, mgr *peersync.Manager, m *metrics.PeerMetrics) *BaseCollector {
	return &BaseCollector{
		CommonCollector: NewCommonCollector(cfg, mgr, m, "base"),
	}
}

// Collect snapshots the session manager and updates per-peer metrics.
func (c *BaseCollector) Collect(ctx context.Context) error {
	start := time.Now()
	defer func() {
		c.GetMetrics().DaemonCollectorDuration.WithLabelValues(c.Name()).Observe(time.Since(start).Seconds())
	}()

	m := c.GetMetrics()
	snapshot := c.GetManager().Snapshot()

	logger.Infof("collector", "Starting base collection over %d peers", len(snapshot))

	synced := 0
	for _, status := range snapshot {
		c.updateMetrics(status)
		if status.State == timesync.StateSynchronized {
			synced++
		}
	}

	m.SessionsActive.Set(float64(len(snapshot)))

	logger.SafeInfo("collector", "Base collection completed", map[string]interface{}{
		"peers":        len(snapshot),
		"synchronized": synced,
		"duration":     time.Since(start).Seconds(),
	})

	return nil
}

// updateMetrics updates Prometheus metrics from a single peer's status.
func (c *BaseCollector) updateMetrics(status peersync.PeerStatus) {
	m := c.GetMetrics()
	peer := string(status.Peer)

	m.OWDSeconds.WithLabelValues(peer).Set(float64(status.OWDUsec) / 1e6)
	m.ClockOffset.WithLabelValues(peer).Set(float64(status.ClockOffsetUsec) / 1e6)
	m.PeerLastSeen.WithLabelValues(peer).Set(float64(status.LastSeen.Unix()))

	if status.State == timesync.StateSynchronized {
		m.Synchronized.WithLabelValues(peer).Set(1)
	} else {
		m.Synchronized.WithLabelValues(peer).Set(0)
	}

	logger.SafeDebug("collector", "Metrics updated", map[string]interface{}{
		"peer":        peer,
		"owd_usec":    status.OWDUsec,
		"offset_usec": status.ClockOffsetUsec,
		"state":       status.State.String(),
	})
}
