package config

import "time"

// ApplyDefaults sets default values for unspecified configuration fields
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Address == "" {
		cfg.Server.Address = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9559
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}
	// Default CORS origins (empty = no CORS)
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = []string{}
	}

	// Transport defaults
	if cfg.Transport.ListenAddress == "" {
		cfg.Transport.ListenAddress = ":9560"
	}
	if cfg.Transport.SendInterval == 0 {
		cfg.Transport.SendInterval = 2 * time.Second
	}
	if cfg.Transport.SyncInterval == 0 {
		cfg.Transport.SyncInterval = 2 * time.Second
	}

	// Peer sync defaults
	if cfg.PeerSync.WindowUsec == 0 {
		cfg.PeerSync.WindowUsec = 10_000_000 // 10s, matches the engine's built-in default
	}
	if cfg.PeerSync.PeerTTL == 0 {
		cfg.PeerSync.PeerTTL = 10 * time.Minute
	}
	if cfg.PeerSync.MaxConcurrency == 0 {
		cfg.PeerSync.MaxConcurrency = 10
	}

	// Gate defaults (enabled by default, four admitted datagrams per second
	// per peer with a burst allowance of eight)
	cfg.PeerSync.Gate.Enabled = true
	if cfg.PeerSync.Gate.RatePerSecond == 0 {
		cfg.PeerSync.Gate.RatePerSecond = 4
	}
	if cfg.PeerSync.Gate.BurstSize == 0 {
		cfg.PeerSync.Gate.BurstSize = 8
	}
	if cfg.PeerSync.Gate.MaxOWDJumpUsec == 0 {
		cfg.PeerSync.Gate.MaxOWDJumpUsec = 500_000 // 500ms
	}

	// Circuit breaker defaults (enabled by default for fault tolerance)
	cfg.PeerSync.CircuitBreaker.Enabled = true
	if cfg.PeerSync.CircuitBreaker.MaxRequests == 0 {
		cfg.PeerSync.CircuitBreaker.MaxRequests = 3
	}
	if cfg.PeerSync.CircuitBreaker.Interval == 0 {
		cfg.PeerSync.CircuitBreaker.Interval = 60 * time.Second
	}
	if cfg.PeerSync.CircuitBreaker.Timeout == 0 {
		cfg.PeerSync.CircuitBreaker.Timeout = 30 * time.Second
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// Metrics defaults
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "timesync"
	}
	if cfg.Metrics.Labels == nil {
		cfg.Metrics.Labels = make(map[string]string)
	}
}

// DefaultConfig returns a configuration with all defaults applied
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
