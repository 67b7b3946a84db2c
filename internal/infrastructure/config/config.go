package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Tuya Fusion Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Sources   []SourceConfig  `yaml:"sources"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// ServiceConfig contains instance-level information.
type ServiceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// SourceConfig describes one Tuya cloud account. A non-empty UID
// selects the sharing (app-linked) flavour; otherwise the account is
// treated as IoT-platform OpenAPI.
type SourceConfig struct {
	Name     string     `yaml:"name"`
	BaseURL  string     `yaml:"base_url"`
	ClientID string     `yaml:"client_id"`
	Secret   string     `yaml:"secret"`
	UID      string     `yaml:"uid"`
	MQTT     MQTTConfig `yaml:"mqtt"`
}

// OpenAPI reports whether the source is the IoT-platform flavour.
func (s SourceConfig) OpenAPI() bool {
	return s.UID == ""
}

// MQTTConfig contains one source's push-channel broker settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	Topic     string              `yaml:"topic"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// ReconcileConfig contains the reconciliation tunables.
type ReconcileConfig struct {
	// Hysteresis is the arbitration threshold: a challenger source
	// must lead the incumbent's report counter by at least this much
	// before it takes over a disputed property.
	Hysteresis int `yaml:"hysteresis"`

	// Workers caps concurrent per-device specification fetches.
	Workers int `yaml:"workers"`

	// FetchTimeout bounds each cloud HTTP round trip, in seconds.
	FetchTimeout int `yaml:"fetch_timeout"`

	// RefreshInterval is the full re-fetch period, in minutes.
	// Zero disables periodic refresh; pushes still flow.
	RefreshInterval int `yaml:"refresh_interval"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket feed settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: TUYAFUSION_SECTION_KEY
// For example: TUYAFUSION_DATABASE_PATH, TUYAFUSION_JWT_SECRET
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			ID:   "tuyafusion-001",
			Name: "Tuya Fusion",
		},
		Reconcile: ReconcileConfig{
			Hysteresis:      1,
			Workers:         9,
			FetchTimeout:    30,
			RefreshInterval: 60,
		},
		Database: DatabaseConfig{
			Path:        "./data/tuyafusion.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: TUYAFUSION_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TUYAFUSION_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("TUYAFUSION_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("TUYAFUSION_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("TUYAFUSION_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("TUYAFUSION_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	// Per-source secrets: TUYAFUSION_SOURCE_<INDEX>_SECRET overrides
	// the matching entry so credentials stay out of the file.
	for i := range cfg.Sources {
		key := "TUYAFUSION_SOURCE_" + strconv.Itoa(i) + "_SECRET"
		if v := os.Getenv(key); v != "" {
			cfg.Sources[i].Secret = v
		}
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if len(c.Sources) == 0 {
		errs = append(errs, "at least one source is required")
	}
	seen := make(map[string]bool)
	for i, s := range c.Sources {
		prefix := fmt.Sprintf("sources[%d]", i)
		if s.Name == "" {
			errs = append(errs, prefix+".name is required")
		}
		if seen[s.Name] {
			errs = append(errs, prefix+".name duplicates an earlier source")
		}
		seen[s.Name] = true
		if s.BaseURL == "" {
			errs = append(errs, prefix+".base_url is required")
		}
		if s.ClientID == "" || s.Secret == "" {
			errs = append(errs, prefix+" needs client_id and secret")
		}
		if s.MQTT.QoS < 0 || s.MQTT.QoS > 2 {
			errs = append(errs, prefix+".mqtt.qos must be 0, 1, or 2")
		}
	}

	if c.Reconcile.Hysteresis < 1 {
		errs = append(errs, "reconcile.hysteresis must be at least 1")
	}
	if c.Reconcile.Workers < 1 {
		errs = append(errs, "reconcile.workers must be at least 1")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// JWT secret is REQUIRED: an empty or weak secret would let
	// anyone forge tokens and drive physical devices.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set TUYAFUSION_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// FetchTimeout returns the cloud fetch timeout as a Duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Reconcile.FetchTimeout) * time.Second
}

// RefreshInterval returns the periodic refresh interval as a Duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Reconcile.RefreshInterval) * time.Minute
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
