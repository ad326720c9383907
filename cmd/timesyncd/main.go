package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/catid/timesync/internal/collector"
	"github.com/catid/timesync/internal/config"
	"github.com/catid/timesync/internal/peersync"
	"github.com/catid/timesync/internal/server"
	"github.com/catid/timesync/internal/udptransport"
	"github.com/catid/timesync/pkg/logger"
	"github.com/catid/timesync/pkg/metrics"
	"github.com/catid/timesync/timesync"
)

var (
	// Build information
	version = "dev"
)

func main() {
	// Parse command-line flags
	configFile := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		// Use println for version output (user-facing, not logging)
		println("timesyncd version", version)
		os.Exit(0)
	}

	// Load configuration (before logger is initialized)
	cfg, err := loadConfig(*configFile)
	if err != nil {
		// Cannot use logger yet, write to stderr
		os.Stderr.WriteString("Failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.InitLogger(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		Component:  "timesyncd",
		EnableFile: cfg.Logging.EnableFile,
	}); err != nil {
		os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Log startup information
	logger.Startup(version, "", map[string]interface{}{
		"go_version": runtime.Version(),
		"config":     cfg,
	})

	// Create metrics registry with custom namespace and subsystem from config
	registry := metrics.NewRegistryWithConfig(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	if err := registry.Register(); err != nil {
		logger.Fatal("main", "Failed to register metrics", err)
	}

	// Get metrics instance
	m := registry.GetMetrics()

	// Set build info metric
	m.DaemonBuildInfo.WithLabelValues(version, "", runtime.Version()).Set(1)

	// Create the session manager that owns every peer's handshake state
	mgr := peersync.NewManager(peersync.ManagerConfig{
		WindowLength:   timesync.Usec64(cfg.PeerSync.WindowUsec),
		PeerTTL:        cfg.PeerSync.PeerTTL,
		MaxConcurrency: cfg.PeerSync.MaxConcurrency,
		Gate: peersync.GateConfig{
			RatePerSecond:  cfg.PeerSync.Gate.RatePerSecond,
			Burst:          cfg.PeerSync.Gate.BurstSize,
			MaxOWDJumpUsec: cfg.PeerSync.Gate.MaxOWDJumpUsec,
			MaxRequests:    cfg.PeerSync.CircuitBreaker.MaxRequests,
			Interval:       cfg.PeerSync.CircuitBreaker.Interval,
			Timeout:        cfg.PeerSync.CircuitBreaker.Timeout,
		},
	})

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire the UDP transport
	transport, err := newTransport(cfg, mgr)
	if err != nil {
		logger.Fatal("main", "Failed to start UDP transport", err)
	}

	transportErrChan := make(chan error, 1)
	go func() {
		transportErrChan <- transport.Serve()
	}()

	peerAddrs, err := resolvePeerAddrs(cfg.Transport.Peers)
	if err != nil {
		logger.Fatal("main", "Failed to resolve configured peers", err)
	}

	go runSendLoop(ctx, cfg, transport, mgr, peerAddrs)
	go runSweepLoop(ctx, cfg, mgr, m)

	// Create collector registry and register collectors
	collectorRegistry := collector.NewRegistry()
	collectorRegistry.Register(collector.NewBaseCollector(cfg, mgr, m))
	collectorRegistry.Register(collector.NewSecurityCollector(cfg, mgr, m))

	logger.SafeInfo("main", "Registered collectors", map[string]interface{}{
		"total":   collectorRegistry.Count(),
		"enabled": collectorRegistry.EnabledCount(),
	})

	// Start HTTP server
	srv := server.New(cfg, registry.GetRegistry(), m, mgr)
	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Start(ctx)
	}()

	// Start collection loop
	collectorErrChan := make(chan error, 1)
	go func() {
		collectorErrChan <- runCollectionLoop(ctx, cfg, collectorRegistry)
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.SafeInfo("main", "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
		cancel()
	case err := <-serverErrChan:
		if err != nil {
			logger.Error("main", "Server error", err)
		}
		cancel()
	case err := <-collectorErrChan:
		if err != nil {
			logger.Error("main", "Collector error", err)
		}
		cancel()
	case err := <-transportErrChan:
		if err != nil {
			logger.Error("main", "Transport error", err)
		}
		cancel()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("main", "Server shutdown error", err)
	}

	logger.Shutdown("graceful")
}

// loadConfig loads configuration based on whether a config file is specified
func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		// Load from YAML file with environment variable overrides
		// Priority: Environment Variables > YAML File > Defaults
		return config.LoadFromYamlWithEnvOverrides(configFile)
	}
	// No config file specified, use environment variables only
	// Priority: Environment Variables > Defaults
	return config.LoadFromEnvVarsOnly()
}

// newTransport binds the configured UDP listen address and wires a
// udptransport.Transport around it and the session manager.
func newTransport(cfg *config.Config, mgr *peersync.Manager) (*udptransport.Transport, error) {
	key, err := hex.DecodeString(cfg.Transport.HMACKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode transport.hmac_key_hex: %w", err)
	}

	addr, err := net.ResolveUDPAddr("udp", cfg.Transport.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve listen address %s: %w", cfg.Transport.ListenAddress, err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Transport.ListenAddress, err)
	}

	clock := func() timesync.Usec64 {
		return timesync.Usec64(time.Now().UnixMicro())
	}

	return udptransport.New(conn, key, mgr, clock), nil
}

// resolvePeerAddrs resolves every configured peer's "host:port" string once
// at startup, so the send loop below never pays DNS-resolution cost per tick.
func resolvePeerAddrs(peers []string) ([]*net.UDPAddr, error) {
	addrs := make([]*net.UDPAddr, 0, len(peers))
	for _, peer := range peers {
		addr, err := net.ResolveUDPAddr("udp", peer)
		if err != nil {
			return nil, fmt.Errorf("resolve peer %s: %w", peer, err)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// runSendLoop drives the sender side of the two-round handshake: a data
// packet on SendInterval, a sync packet (carrying the windowed-minimum
// delta) on SyncInterval, to every configured peer.
func runSendLoop(
	ctx context.Context,
	cfg *config.Config,
	transport *udptransport.Transport,
	mgr *peersync.Manager,
	peers []*net.UDPAddr,
) {
	dataTicker := time.NewTicker(cfg.Transport.SendInterval)
	defer dataTicker.Stop()

	syncTicker := time.NewTicker(cfg.Transport.SyncInterval)
	defer syncTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-dataTicker.C:
			for _, addr := range peers {
				if err := transport.SendData(addr); err != nil {
					logger.Warnf("main", "Failed to send data packet to %s: %v", addr, err)
				}
			}
		case <-syncTicker.C:
			for _, addr := range peers {
				peer := peersync.PeerID(addr.String())
				minDelta := mgr.MinDeltaFor(peer)
				if err := transport.SendSync(addr, minDelta); err != nil {
					logger.Warnf("main", "Failed to send sync packet to %s: %v", addr, err)
				}
			}
		}
	}
}

// runSweepLoop periodically evicts peers unseen for longer than PeerTTL,
// recording the sweep's duration, outcome, and evicted-peer count.
func runSweepLoop(ctx context.Context, cfg *config.Config, mgr *peersync.Manager, m *metrics.PeerMetrics) {
	if cfg.PeerSync.PeerTTL <= 0 {
		return
	}

	interval := cfg.PeerSync.PeerTTL / 4
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			evicted := mgr.Sweep()
			m.DaemonSweepDuration.Observe(time.Since(start).Seconds())
			m.DaemonSweepsTotal.WithLabelValues("ok").Inc()
			if evicted > 0 {
				m.SessionsEvicted.Add(float64(evicted))
				logger.SafeInfo("main", "Sweep evicted stale peers", map[string]interface{}{"count": evicted})
			}
		}
	}
}

// runCollectionLoop runs the metrics collection loop
func runCollectionLoop(
	ctx context.Context,
	cfg *config.Config,
	collectorRegistry *collector.Registry,
) error {
	// Initial collection
	if err := collectorRegistry.CollectAll(ctx); err != nil {
		logger.Warn("main", "Initial collection failed")
	}

	// Collection interval tracks how often peers report in
	interval := cfg.Transport.SyncInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.SafeInfo("main", "Collection loop started", map[string]interface{}{
		"interval": interval,
	})

	for {
		select {
		case <-ctx.Done():
			logger.Info("main", "Collection loop stopped")
			return nil
		case <-ticker.C:
			start := time.Now()
			if err := collectorRegistry.CollectAll(ctx); err != nil {
				logger.Warn("main", "Collection failed")
			}
			logger.Metric("collection", "all", time.Since(start), true)
		}
	}
}
