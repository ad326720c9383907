package config

import (
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}

	if err := validateTransport(&cfg.Transport); err != nil {
		return err
	}

	if err := validatePeerSync(&cfg.PeerSync); err != nil {
		return err
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return err
	}

	if err := validateMetrics(&cfg.Metrics); err != nil {
		return err
	}

	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return errors.New("port must be between 1 and 65535, got " + strconv.Itoa(cfg.Port))
	}

	if cfg.ReadTimeout < 1*time.Second || cfg.ReadTimeout > 60*time.Second {
		return errors.New("read_timeout must be between 1s and 60s")
	}

	if cfg.WriteTimeout < 1*time.Second || cfg.WriteTimeout > 60*time.Second {
		return errors.New("write_timeout must be between 1s and 60s")
	}

	if cfg.TLSEnabled {
		if cfg.TLSCertFile == "" {
			return errors.New("tls_cert_file is required when tls_enabled is true")
		}
		if cfg.TLSKeyFile == "" {
			return errors.New("tls_key_file is required when tls_enabled is true")
		}
	}

	return nil
}

func validateTransport(cfg *TransportConfig) error {
	if cfg.ListenAddress == "" {
		return errors.New("transport.listen_address is required")
	}

	if len(cfg.Peers) > 0 && cfg.HMACKeyHex == "" {
		return errors.New("transport.hmac_key_hex is required when transport.peers is non-empty")
	}

	if cfg.HMACKeyHex != "" {
		if _, err := hex.DecodeString(cfg.HMACKeyHex); err != nil {
			return errors.New("transport.hmac_key_hex must be valid hex")
		}
	}

	if cfg.SendInterval < 0 {
		return errors.New("transport.send_interval must not be negative")
	}

	if cfg.SyncInterval < 0 {
		return errors.New("transport.sync_interval must not be negative")
	}

	return nil
}

func validatePeerSync(cfg *PeerSyncConfig) error {
	if cfg.WindowUsec < 0 {
		return errors.New("peer_sync.window_usec must not be negative")
	}

	if cfg.MaxConcurrency < 1 || cfg.MaxConcurrency > 256 {
		return errors.New("peer_sync.max_concurrency must be between 1 and 256, got " + strconv.Itoa(cfg.MaxConcurrency))
	}

	if cfg.PeerTTL < 0 {
		return errors.New("peer_sync.peer_ttl must not be negative")
	}

	if cfg.Gate.Enabled {
		if cfg.Gate.RatePerSecond <= 0 {
			return errors.New("peer_sync.gate.rate_per_second must be positive")
		}
		if cfg.Gate.BurstSize < 1 {
			return errors.New("peer_sync.gate.burst_size must be at least 1")
		}
	}

	if cfg.CircuitBreaker.Enabled {
		if cfg.CircuitBreaker.MaxRequests < 1 {
			return errors.New("peer_sync.circuit_breaker.max_requests must be at least 1")
		}
		if cfg.CircuitBreaker.Timeout < 1*time.Second {
			return errors.New("peer_sync.circuit_breaker.timeout must be at least 1s")
		}
	}

	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
		"panic": true,
	}

	if !validLevels[cfg.Level] {
		return errors.New("invalid log level (must be trace, debug, info, warn, error, fatal, or panic)")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[cfg.Format] {
		return errors.New("invalid log format (must be json or console)")
	}

	if cfg.EnableFile && cfg.FilePath == "" {
		return errors.New("file_path is required when enable_file is true")
	}

	return nil
}

func validateMetrics(cfg *MetricsConfig) error {
	if cfg.Namespace == "" {
		return errors.New("namespace is required")
	}

	return nil
}
