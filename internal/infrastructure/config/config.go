package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Lumen Bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	LAN      LANConfig      `yaml:"lan"`
	Radio    RadioConfig    `yaml:"radio"`
	Cloud    CloudConfig    `yaml:"cloud"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GatewayConfig contains the state-reconciliation and dispatch tunables.
type GatewayConfig struct {
	// BusCapacity bounds the transport update queue.
	BusCapacity int `yaml:"bus_capacity"`

	// Debounce windows per source latency class, in milliseconds.
	DebounceFastMs   int `yaml:"debounce_fast_ms"`
	DebounceMediumMs int `yaml:"debounce_medium_ms"`
	DebounceSlowMs   int `yaml:"debounce_slow_ms"`

	// OptimisticWindowMs bounds how long a dispatched command's value is
	// treated as provisionally authoritative.
	OptimisticWindowMs int `yaml:"optimistic_window_ms"`

	// RetryBudget and RetryBackoffMs control local-transport retries
	// before falling back to cloud.
	RetryBudget    int `yaml:"retry_budget"`
	RetryBackoffMs int `yaml:"retry_backoff_ms"`

	// PollAfterTimeout requests a device status poll when a command
	// expires unconfirmed.
	PollAfterTimeout bool `yaml:"poll_after_timeout"`
}

// LANConfig contains the local-network control protocol settings.
type LANConfig struct {
	Enabled bool `yaml:"enabled"`

	// ListenPort receives device responses and broadcast advertisements.
	ListenPort int `yaml:"listen_port"`

	// DevicePort is the per-device command port.
	DevicePort int `yaml:"device_port"`

	// BroadcastAddr is the discovery multicast group.
	BroadcastAddr string `yaml:"broadcast_addr"`
	BroadcastPort int    `yaml:"broadcast_port"`

	// ScanIntervalSeconds is how often discovery scans run.
	ScanIntervalSeconds int `yaml:"scan_interval_seconds"`

	// OfflineAfterSeconds marks a device unreachable on the LAN after
	// this long without any message from it.
	OfflineAfterSeconds int `yaml:"offline_after_seconds"`
}

// RadioConfig contains radio advertisement listener settings.
type RadioConfig struct {
	Enabled bool `yaml:"enabled"`

	// ReassemblyTimeoutSeconds bounds how long a partial fragment
	// sequence is retained before being discarded.
	ReassemblyTimeoutSeconds int `yaml:"reassembly_timeout_seconds"`
}

// CloudConfig contains the vendor cloud transport settings. Commands
// travel as base64-encoded wire frames over the vendor's MQTT endpoint.
type CloudConfig struct {
	Enabled bool `yaml:"enabled"`

	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`

	// PollIntervalSeconds is the background state poll cadence. Zero
	// disables polling.
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
}

// CatalogConfig contains scene catalog build and cache settings.
type CatalogConfig struct {
	// MetadataPath is the vendor scene metadata document (JSON).
	MetadataPath string `yaml:"metadata_path"`

	// ParamsPath is the per-model command parameter table (JSON).
	ParamsPath string `yaml:"params_path"`

	// CacheEnabled persists built catalogs to the database.
	CacheEnabled bool `yaml:"cache_enabled"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains automation bus broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LUMEN_SECTION_KEY
// For example: LUMEN_DATABASE_PATH, LUMEN_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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
		Gateway: GatewayConfig{
			BusCapacity:        1024,
			DebounceFastMs:     0,
			DebounceMediumMs:   500,
			DebounceSlowMs:     2000,
			OptimisticWindowMs: 10000,
			RetryBudget:        3,
			RetryBackoffMs:     250,
			PollAfterTimeout:   true,
		},
		LAN: LANConfig{
			Enabled:             true,
			ListenPort:          4002,
			DevicePort:          4003,
			BroadcastAddr:       "239.255.255.250",
			BroadcastPort:       4001,
			ScanIntervalSeconds: 10,
			OfflineAfterSeconds: 30,
		},
		Radio: RadioConfig{
			Enabled:                  true,
			ReassemblyTimeoutSeconds: 10,
		},
		Cloud: CloudConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Port: 8883,
				TLS:  true,
			},
			PollIntervalSeconds: 0,
		},
		Catalog: CatalogConfig{
			MetadataPath: "./data/scene-metadata.json",
			ParamsPath:   "./data/model-params.json",
			CacheEnabled: true,
		},
		Database: DatabaseConfig{
			Path:        "./data/lumenbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lumen-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LUMEN_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("LUMEN_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Automation bus MQTT
	if v := os.Getenv("LUMEN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LUMEN_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("LUMEN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LUMEN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Vendor cloud
	if v := os.Getenv("LUMEN_CLOUD_HOST"); v != "" {
		cfg.Cloud.Broker.Host = v
	}
	if v := os.Getenv("LUMEN_CLOUD_USERNAME"); v != "" {
		cfg.Cloud.Auth.Username = v
	}
	if v := os.Getenv("LUMEN_CLOUD_PASSWORD"); v != "" {
		cfg.Cloud.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("LUMEN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("LUMEN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Gateway.BusCapacity < 1 {
		errs = append(errs, "gateway.bus_capacity must be at least 1")
	}
	if c.Gateway.OptimisticWindowMs < 0 {
		errs = append(errs, "gateway.optimistic_window_ms must not be negative")
	}
	if c.Gateway.RetryBudget < 1 {
		errs = append(errs, "gateway.retry_budget must be at least 1")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.LAN.Enabled {
		if c.LAN.ListenPort < 1 || c.LAN.ListenPort > 65535 {
			errs = append(errs, "lan.listen_port must be between 1 and 65535")
		}
		if c.LAN.DevicePort < 1 || c.LAN.DevicePort > 65535 {
			errs = append(errs, "lan.device_port must be between 1 and 65535")
		}
	}

	if c.Cloud.Enabled {
		if c.Cloud.Broker.Host == "" {
			errs = append(errs, "cloud.broker.host is required when cloud is enabled (set LUMEN_CLOUD_HOST)")
		}
	}

	if c.Catalog.MetadataPath == "" {
		errs = append(errs, "catalog.metadata_path is required")
	}
	if c.Catalog.ParamsPath == "" {
		errs = append(errs, "catalog.params_path is required")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set LUMEN_INFLUXDB_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DebounceFast returns the fast-class debounce window as a Duration.
func (c *Config) DebounceFast() time.Duration {
	return time.Duration(c.Gateway.DebounceFastMs) * time.Millisecond
}

// DebounceMedium returns the medium-class debounce window as a Duration.
func (c *Config) DebounceMedium() time.Duration {
	return time.Duration(c.Gateway.DebounceMediumMs) * time.Millisecond
}

// DebounceSlow returns the slow-class debounce window as a Duration.
func (c *Config) DebounceSlow() time.Duration {
	return time.Duration(c.Gateway.DebounceSlowMs) * time.Millisecond
}

// OptimisticWindow returns the optimistic confirmation window as a Duration.
func (c *Config) OptimisticWindow() time.Duration {
	return time.Duration(c.Gateway.OptimisticWindowMs) * time.Millisecond
}

// RetryBackoff returns the local-transport retry backoff as a Duration.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Gateway.RetryBackoffMs) * time.Millisecond
}

// ReassemblyTimeout returns the fragment reassembly timeout as a Duration.
func (c *Config) ReassemblyTimeout() time.Duration {
	return time.Duration(c.Radio.ReassemblyTimeoutSeconds) * time.Second
}
