package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PeerMetrics encapsulates all timesyncd metrics.
type PeerMetrics struct {
	// Per-peer handshake metrics
	OWDSeconds     *prometheus.GaugeVec
	ClockOffset    *prometheus.GaugeVec
	Synchronized   *prometheus.GaugeVec
	MinDeltaTS24   *prometheus.GaugeVec
	PeerLastSeen   *prometheus.GaugeVec

	// Gate (rate limiter + circuit breaker) metrics
	GateAdmittedTotal    *prometheus.CounterVec
	GateRateLimitedTotal *prometheus.CounterVec
	GateCircuitOpenTotal *prometheus.CounterVec

	// Session manager metrics
	SessionsActive  prometheus.Gauge
	SessionsEvicted prometheus.Counter

	// Daemon operational metrics
	DaemonBuildInfo             *prometheus.GaugeVec
	DaemonSweepDuration         prometheus.Histogram
	DaemonSweepsTotal           *prometheus.CounterVec
	DaemonCollectorDuration     *prometheus.HistogramVec
	DaemonMemoryUsageBytes      prometheus.Gauge
	DaemonGoroutinesCount       prometheus.Gauge

	// Memory and GC metrics
	GCDurationSeconds    prometheus.Summary
	MemoryAllocatedBytes prometheus.Gauge
	MemoryHeapBytes      prometheus.Gauge
	MemoryStackBytes     prometheus.Gauge
	GCCountTotal         prometheus.Counter
}

// NewPeerMetricsWithConfig creates and initializes all timesyncd metrics with
// a custom namespace and subsystem.
func NewPeerMetricsWithConfig(namespace, subsystem string) *PeerMetrics {
	return &PeerMetrics{
		OWDSeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "owd_seconds",
				Help:      "Current one-way-delay estimate to a peer in seconds",
			},
			[]string{"peer"},
		),
		ClockOffset: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "clock_offset_seconds",
				Help:      "Current signed clock-offset estimate to a peer in seconds",
			},
			[]string{"peer"},
		),
		Synchronized: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "synchronized",
				Help:      "Whether the two-round handshake has completed with this peer (1) or not (0)",
			},
			[]string{"peer"},
		),
		MinDeltaTS24: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "min_delta_ts24",
				Help:      "Windowed-minimum 24-bit delta observed for a peer, by direction",
			},
			[]string{"peer", "direction"},
		),
		PeerLastSeen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "peer_last_seen_timestamp_seconds",
				Help:      "Unix timestamp of the last admitted datagram from a peer",
			},
			[]string{"peer"},
		),

		GateAdmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gate",
				Name:      "admitted_total",
				Help:      "Total datagrams admitted through a peer's gate",
			},
			[]string{"peer"},
		),
		GateRateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gate",
				Name:      "rate_limited_total",
				Help:      "Total datagrams rejected by a peer's rate limiter",
			},
			[]string{"peer"},
		),
		GateCircuitOpenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gate",
				Name:      "circuit_open_total",
				Help:      "Total datagrams rejected because a peer's circuit breaker was open",
			},
			[]string{"peer"},
		),

		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "active",
				Help:      "Number of peers currently tracked by the session manager",
			},
		),
		SessionsEvicted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "evicted_total",
				Help:      "Total peers evicted for exceeding their TTL",
			},
		),

		DaemonBuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "daemon",
				Name:      "build_info",
				Help:      "Build information for the daemon",
			},
			[]string{"version", "commit", "go_version"},
		),
		DaemonSweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "daemon",
				Name:      "sweep_duration_seconds",
				Help:      "Duration of a peer eviction sweep in seconds",
				Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1.0},
			},
		),
		DaemonSweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "daemon",
				Name:      "sweeps_total",
				Help:      "Total eviction sweeps run",
			},
			[]string{"status"},
		),
		DaemonCollectorDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "daemon",
				Name:      "collector_duration_seconds",
				Help:      "Collector execution duration in seconds",
				Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1.0, 5.0},
			},
			[]string{"collector"},
		),
		DaemonMemoryUsageBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "daemon",
				Name:      "memory_usage_bytes",
				Help:      "Memory usage of the daemon in bytes",
			},
		),
		DaemonGoroutinesCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "daemon",
				Name:      "goroutines_count",
				Help:      "Number of active goroutines",
			},
		),

		GCDurationSeconds: prometheus.NewSummary(
			prometheus.SummaryOpts{
				Namespace:  namespace,
				Subsystem:  "daemon",
				Name:       "gc_duration_seconds",
				Help:       "Garbage collection duration in seconds",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
		),
		MemoryAllocatedBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "daemon",
				Name:      "memory_allocated_bytes",
				Help:      "Memory allocated by the Go runtime in bytes",
			},
		),
		MemoryHeapBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "daemon",
				Name:      "memory_heap_bytes",
				Help:      "Heap memory in use in bytes",
			},
		),
		MemoryStackBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "daemon",
				Name:      "memory_stack_bytes",
				Help:      "Stack memory in use in bytes",
			},
		),
		GCCountTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "daemon",
				Name:      "gc_count_total",
				Help:      "Total number of garbage collections",
			},
		),
	}
}

// NewPeerMetrics creates timesyncd metrics with the default "timesync"
// namespace and no subsystem.
func NewPeerMetrics() *PeerMetrics {
	return NewPeerMetricsWithConfig("timesync", "")
}

func (m *PeerMetrics) getAllMetrics() []prometheus.Collector {
	return []prometheus.Collector{
		m.OWDSeconds,
		m.ClockOffset,
		m.Synchronized,
		m.MinDeltaTS24,
		m.PeerLastSeen,

		m.GateAdmittedTotal,
		m.GateRateLimitedTotal,
		m.GateCircuitOpenTotal,

		m.SessionsActive,
		m.SessionsEvicted,

		m.DaemonBuildInfo,
		m.DaemonSweepDuration,
		m.DaemonSweepsTotal,
		m.DaemonCollectorDuration,
		m.DaemonMemoryUsageBytes,
		m.DaemonGoroutinesCount,

		m.GCDurationSeconds,
		m.MemoryAllocatedBytes,
		m.MemoryHeapBytes,
		m.MemoryStackBytes,
		m.GCCountTotal,
	}
}

// Describe implements prometheus.Collector.
func (m *PeerMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, metric := range m.getAllMetrics() {
		metric.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *PeerMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, metric := range m.getAllMetrics() {
		metric.Collect(ch)
	}
}
