package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry manages Prometheus metric registration
type Registry struct {
	registry    *prometheus.Registry
	peerMetrics *PeerMetrics
}

// NewRegistry creates a new metrics registry with timesyncd metrics.
// Uses default namespace "timesync" and empty subsystem.
func NewRegistry() *Registry {
	return NewRegistryWithConfig("timesync", "")
}

// NewRegistryWithConfig creates a new metrics registry with custom namespace and subsystem
func NewRegistryWithConfig(namespace, subsystem string) *Registry {
	return &Registry{
		registry:    prometheus.NewRegistry(),
		peerMetrics: NewPeerMetricsWithConfig(namespace, subsystem),
	}
}

// Register registers all timesyncd metrics
func (r *Registry) Register() error {
	// Register the peer metrics collector
	if err := r.registry.Register(r.peerMetrics); err != nil {
		return err
	}

	// Register Go runtime metrics
	r.registry.MustRegister(collectors.NewGoCollector())
	r.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return nil
}

// GetRegistry returns the underlying Prometheus registry
func (r *Registry) GetRegistry() *prometheus.Registry {
	return r.registry
}

// GetMetrics returns the peer metrics instance
func (r *Registry) GetMetrics() *PeerMetrics {
	return r.peerMetrics
}

// MustRegister registers all metrics and panics on error
func (r *Registry) MustRegister() {
	if err := r.Register(); err != nil {
		panic(err)
	}
}
