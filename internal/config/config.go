// Package config provides configuration loading with explicit naming
//
// Available functions:
//
//   LoadFromEnvVarsOnly()                     - Environment variables ONLY
//                                               Use: Docker, Kubernetes (no ConfigMap)
//
//   LoadFromYamlFile(path)                    - YAML file ONLY (no env overrides)
//                                               Use: Local development, testing
//
//   LoadFromYamlWithEnvOverrides(path)        - YAML base + Environment overrides
//                                               Use: Kubernetes (ConfigMap + env vars)
//                                               Priority: Env Vars > YAML > Defaults
//
// Environment variables supported:
//
//   SERVER:
//     - TIMESYNCD_ADDRESS, TIMESYNCD_PORT
//     - SERVER_READ_TIMEOUT, SERVER_WRITE_TIMEOUT
//     - TLS_ENABLED, TLS_CERT_FILE, TLS_KEY_FILE
//     - ENABLE_CORS, ALLOWED_ORIGINS (comma-separated)
//
//   TRANSPORT:
//     - TRANSPORT_LISTEN_ADDRESS, TRANSPORT_HMAC_KEY_HEX
//     - TRANSPORT_PEERS (comma-separated host:port list)
//     - TRANSPORT_SEND_INTERVAL, TRANSPORT_SYNC_INTERVAL
//
//   PEER_SYNC:
//     - PEER_SYNC_WINDOW_USEC, PEER_SYNC_PEER_TTL, PEER_SYNC_MAX_CONCURRENCY
//
//   GATE:
//     - GATE_ENABLED, GATE_RATE_PER_SECOND, GATE_BURST_SIZE
//     - GATE_MAX_OWD_JUMP_USEC
//
//   CIRCUIT_BREAKER:
//     - CIRCUIT_BREAKER_MAX_REQUESTS
//     - CIRCUIT_BREAKER_INTERVAL, CIRCUIT_BREAKER_TIMEOUT
//
//   LOGGING:
//     - LOG_LEVEL (trace|debug|info|warn|error|fatal|panic)
//     - LOG_ENABLE_FILE, LOG_FILE_PATH
//     - Note: LOG_FORMAT is NOT supported; the format (json or console)
//       comes from the config file, defaulting to json
//
//   METRICS:
//     - METRICS_NAMESPACE, METRICS_SUBSYSTEM
//
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/catid/timesync/pkg/logger"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	PeerSync  PeerSyncConfig  `yaml:"peer_sync"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// TransportConfig contains UDP transport and peer-list configuration.
type TransportConfig struct {
	// ListenAddress is the local UDP address the transport binds, e.g. ":9560".
	ListenAddress string `yaml:"listen_address"`

	// HMACKeyHex is the hex-encoded shared secret used to authenticate every
	// datagram. Required: a datagram transport with no authentication would
	// let any off-path sender poison a peer's clock-offset estimate.
	HMACKeyHex string `yaml:"hmac_key_hex"`

	// Peers lists the UDP addresses ("host:port") of every remote peer this
	// daemon exchanges timestamps with.
	Peers []string `yaml:"peers"`

	// SendInterval is how often a data packet (the first handshake round)
	// is sent to each configured peer.
	SendInterval time.Duration `yaml:"send_interval"`

	// SyncInterval is how often a sync packet (the second handshake round,
	// carrying the windowed-minimum delta) is sent to each configured peer.
	SyncInterval time.Duration `yaml:"sync_interval"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Address        string        `yaml:"address"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	EnableCORS     bool          `yaml:"enable_cors"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	TLSEnabled     bool          `yaml:"tls_enabled"`
	TLSCertFile    string        `yaml:"tls_cert_file"`
	TLSKeyFile     string        `yaml:"tls_key_file"`
}

// PeerSyncConfig contains session-manager and handshake configuration.
type PeerSyncConfig struct {
	// WindowUsec is the trailing window each peer's min-delta filter uses.
	// Zero uses the engine's built-in default.
	WindowUsec int64 `yaml:"window_usec"`

	// PeerTTL is how long a peer may go unseen before eviction. Zero
	// disables eviction.
	PeerTTL time.Duration `yaml:"peer_ttl"`

	// MaxConcurrency bounds the ingest batch worker pool.
	MaxConcurrency int `yaml:"max_concurrency"`

	Gate           GateConfig           `yaml:"gate"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// GateConfig contains per-peer rate limiting configuration.
type GateConfig struct {
	Enabled        bool    `yaml:"enabled"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
	BurstSize      int     `yaml:"burst_size"`
	MaxOWDJumpUsec uint32  `yaml:"max_owd_jump_usec"`
}

// CircuitBreakerConfig contains per-peer circuit breaker configuration.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxRequests uint32        `yaml:"max_requests"`
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	EnableFile bool   `yaml:"enable_file"`
	FilePath   string `yaml:"file_path"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Namespace string            `yaml:"namespace"`
	Subsystem string            `yaml:"subsystem"`
	Labels    map[string]string `yaml:"labels"`
}

// LoadFromYamlFile reads configuration from a YAML file only (no env var overrides)
// Use case: Local development, testing
func LoadFromYamlFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("config", "Failed to read config file", err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		logger.Error("config", "Failed to parse config file", err)
		return nil, fmt.Errorf("failed to parse YAML config file %s: %w", path, err)
	}

	// Apply defaults
	ApplyDefaults(cfg)

	// Validate configuration
	if err := Validate(cfg); err != nil {
		logger.Error("config", "Invalid configuration", err)
		return nil, fmt.Errorf("configuration validation failed for %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromYamlWithEnvOverrides loads base config from YAML, then overrides with environment variables
// Use case: Kubernetes with ConfigMaps + env vars, Docker with config file + env vars
// Priority: Environment Variables > YAML File > Defaults
func LoadFromYamlWithEnvOverrides(path string) (*Config, error) {
	// First, try to load from YAML file
	cfg, err := LoadFromYamlFile(path)
	if err != nil {
		logger.Warn("config", "Failed to load YAML config file, falling back to env vars only")
		// If file doesn't exist, start from defaults
		cfg = &Config{}
		ApplyDefaults(cfg)
	}

	// Override with environment variables
	applyEnvOverrides(cfg)

	// Validate final configuration
	if err := Validate(cfg); err != nil {
		logger.Error("config", "Invalid configuration after env overrides", err)
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to an existing config
func applyEnvOverrides(cfg *Config) {
	// ---------------------------------------------------------------------------
	// SERVER - HTTP Server configuration
	// ---------------------------------------------------------------------------
	if addr := os.Getenv("TIMESYNCD_ADDRESS"); addr != "" {
		cfg.Server.Address = addr
	}
	if port := os.Getenv("TIMESYNCD_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if readTimeout := os.Getenv("SERVER_READ_TIMEOUT"); readTimeout != "" {
		if t, err := time.ParseDuration(readTimeout); err == nil {
			cfg.Server.ReadTimeout = t
		}
	}
	if writeTimeout := os.Getenv("SERVER_WRITE_TIMEOUT"); writeTimeout != "" {
		if t, err := time.ParseDuration(writeTimeout); err == nil {
			cfg.Server.WriteTimeout = t
		}
	}
	if tlsEnabled := os.Getenv("TLS_ENABLED"); tlsEnabled != "" {
		if b, err := strconv.ParseBool(tlsEnabled); err == nil {
			cfg.Server.TLSEnabled = b
		}
	}
	if tlsCert := os.Getenv("TLS_CERT_FILE"); tlsCert != "" {
		cfg.Server.TLSCertFile = tlsCert
	}
	if tlsKey := os.Getenv("TLS_KEY_FILE"); tlsKey != "" {
		cfg.Server.TLSKeyFile = tlsKey
	}
	if enableCORS := os.Getenv("ENABLE_CORS"); enableCORS != "" {
		if b, err := strconv.ParseBool(enableCORS); err == nil {
			cfg.Server.EnableCORS = b
		}
	}
	if allowedOrigins := os.Getenv("ALLOWED_ORIGINS"); allowedOrigins != "" {
		cfg.Server.AllowedOrigins = parseCommaSeparated(allowedOrigins)
	}

	// ---------------------------------------------------------------------------
	// TRANSPORT - UDP transport and peer-list configuration
	// ---------------------------------------------------------------------------
	if listenAddr := os.Getenv("TRANSPORT_LISTEN_ADDRESS"); listenAddr != "" {
		cfg.Transport.ListenAddress = listenAddr
	}
	if keyHex := os.Getenv("TRANSPORT_HMAC_KEY_HEX"); keyHex != "" {
		cfg.Transport.HMACKeyHex = keyHex
	}
	if peers := os.Getenv("TRANSPORT_PEERS"); peers != "" {
		cfg.Transport.Peers = parseCommaSeparated(peers)
	}
	if sendInterval := os.Getenv("TRANSPORT_SEND_INTERVAL"); sendInterval != "" {
		if d, err := time.ParseDuration(sendInterval); err == nil {
			cfg.Transport.SendInterval = d
		}
	}
	if syncInterval := os.Getenv("TRANSPORT_SYNC_INTERVAL"); syncInterval != "" {
		if d, err := time.ParseDuration(syncInterval); err == nil {
			cfg.Transport.SyncInterval = d
		}
	}

	// ---------------------------------------------------------------------------
	// PEER_SYNC - session manager configuration
	// ---------------------------------------------------------------------------
	if windowUsec := os.Getenv("PEER_SYNC_WINDOW_USEC"); windowUsec != "" {
		if w, err := strconv.ParseInt(windowUsec, 10, 64); err == nil {
			cfg.PeerSync.WindowUsec = w
		}
	}
	if peerTTL := os.Getenv("PEER_SYNC_PEER_TTL"); peerTTL != "" {
		if d, err := time.ParseDuration(peerTTL); err == nil {
			cfg.PeerSync.PeerTTL = d
		}
	}
	if maxConcurrency := os.Getenv("PEER_SYNC_MAX_CONCURRENCY"); maxConcurrency != "" {
		if c, err := strconv.Atoi(maxConcurrency); err == nil {
			cfg.PeerSync.MaxConcurrency = c
		}
	}

	// ---------------------------------------------------------------------------
	// GATE - per-peer rate limiting configuration
	// ---------------------------------------------------------------------------
	if gateEnabled := os.Getenv("GATE_ENABLED"); gateEnabled != "" {
		if b, err := strconv.ParseBool(gateEnabled); err == nil {
			cfg.PeerSync.Gate.Enabled = b
		}
	}
	if rate := os.Getenv("GATE_RATE_PER_SECOND"); rate != "" {
		if r, err := strconv.ParseFloat(rate, 64); err == nil {
			cfg.PeerSync.Gate.RatePerSecond = r
		}
	}
	if burst := os.Getenv("GATE_BURST_SIZE"); burst != "" {
		if b, err := strconv.Atoi(burst); err == nil {
			cfg.PeerSync.Gate.BurstSize = b
		}
	}
	if maxJump := os.Getenv("GATE_MAX_OWD_JUMP_USEC"); maxJump != "" {
		if j, err := strconv.ParseUint(maxJump, 10, 32); err == nil {
			cfg.PeerSync.Gate.MaxOWDJumpUsec = uint32(j)
		}
	}

	// ---------------------------------------------------------------------------
	// CIRCUIT BREAKER - per-peer circuit breaker configuration
	// ---------------------------------------------------------------------------
	if cbEnabled := os.Getenv("CIRCUIT_BREAKER_ENABLED"); cbEnabled != "" {
		if b, err := strconv.ParseBool(cbEnabled); err == nil {
			cfg.PeerSync.CircuitBreaker.Enabled = b
		}
	}
	if maxRequests := os.Getenv("CIRCUIT_BREAKER_MAX_REQUESTS"); maxRequests != "" {
		if r, err := strconv.ParseUint(maxRequests, 10, 32); err == nil {
			cfg.PeerSync.CircuitBreaker.MaxRequests = uint32(r)
		}
	}
	if cbInterval := os.Getenv("CIRCUIT_BREAKER_INTERVAL"); cbInterval != "" {
		if i, err := time.ParseDuration(cbInterval); err == nil {
			cfg.PeerSync.CircuitBreaker.Interval = i
		}
	}
	if cbTimeout := os.Getenv("CIRCUIT_BREAKER_TIMEOUT"); cbTimeout != "" {
		if t, err := time.ParseDuration(cbTimeout); err == nil {
			cfg.PeerSync.CircuitBreaker.Timeout = t
		}
	}

	// ---------------------------------------------------------------------------
	// LOGGING - Logging configuration
	// ---------------------------------------------------------------------------
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if enableFile := os.Getenv("LOG_ENABLE_FILE"); enableFile != "" {
		if b, err := strconv.ParseBool(enableFile); err == nil {
			cfg.Logging.EnableFile = b
		}
	}
	if filePath := os.Getenv("LOG_FILE_PATH"); filePath != "" {
		cfg.Logging.FilePath = filePath
	}

	// ---------------------------------------------------------------------------
	// METRICS - Prometheus metrics configuration
	// ---------------------------------------------------------------------------
	if namespace := os.Getenv("METRICS_NAMESPACE"); namespace != "" {
		cfg.Metrics.Namespace = namespace
	}
	if subsystem := os.Getenv("METRICS_SUBSYSTEM"); subsystem != "" {
		cfg.Metrics.Subsystem = subsystem
	}
}

// LoadFromEnvVarsOnly loads configuration from environment variables only (no YAML file)
// Use case: Docker containers, Kubernetes pods without ConfigMaps
// Priority: Environment Variables > Defaults
func LoadFromEnvVarsOnly() (*Config, error) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		logger.Error("config", "Invalid configuration from environment", err)
		return nil, fmt.Errorf("environment configuration validation failed: %w", err)
	}

	return cfg, nil
}

// parseCommaSeparated splits a comma-separated string
func parseCommaSeparated(s string) []string {
	var result []string
	for _, item := range splitByComma(s) {
		if trimmed := trim(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// splitByComma splits a string by comma delimiters.
// This is a utility function for parsing comma-separated values.
func splitByComma(s string) []string {
	var parts []string
	current := ""
	for _, char := range s {
		if char == ',' {
			parts = append(parts, current)
			current = ""
		} else {
			current += string(char)
		}
	}
	if current != "" {
		parts = append(parts, current)
	}
	return parts
}

// trim removes leading and trailing whitespace characters from a string.
// Handles spaces, tabs, and newlines.
func trim(s string) string {
	start := 0
	end := len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t' || s[start] == '\n') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\n') {
		end--
	}
	return s[start:end]
}
