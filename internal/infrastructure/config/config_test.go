package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
gateway:
  bus_capacity: 256
  debounce_medium_ms: 750
lan:
  enabled: true
  listen_port: 4002
  device_port: 4003
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	if cfg.Gateway.BusCapacity != 256 {
		t.Errorf("Gateway.BusCapacity = %d, want 256", cfg.Gateway.BusCapacity)
	}

	if got := cfg.DebounceMedium(); got != 750*time.Millisecond {
		t.Errorf("DebounceMedium() = %v, want 750ms", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
database:
  path: ""
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty database.path, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "zero bus capacity",
			mutate:  func(c *Config) { c.Gateway.BusCapacity = 0 },
			wantErr: true,
		},
		{
			name:    "negative optimistic window",
			mutate:  func(c *Config) { c.Gateway.OptimisticWindowMs = -1 },
			wantErr: true,
		},
		{
			name:    "invalid LAN listen port",
			mutate:  func(c *Config) { c.LAN.ListenPort = 0 },
			wantErr: true,
		},
		{
			name:    "LAN disabled skips port checks",
			mutate:  func(c *Config) { c.LAN.Enabled = false; c.LAN.ListenPort = 0 },
			wantErr: false,
		},
		{
			name:    "cloud enabled without host",
			mutate:  func(c *Config) { c.Cloud.Enabled = true; c.Cloud.Broker.Host = "" },
			wantErr: true,
		},
		{
			name:    "influxdb enabled without token",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.URL = "http://localhost:8086" },
			wantErr: true,
		},
		{
			name:    "missing catalog metadata path",
			mutate:  func(c *Config) { c.Catalog.MetadataPath = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		Gateway: GatewayConfig{
			DebounceFastMs:     0,
			DebounceMediumMs:   500,
			DebounceSlowMs:     2000,
			OptimisticWindowMs: 10000,
			RetryBackoffMs:     250,
		},
		Radio: RadioConfig{ReassemblyTimeoutSeconds: 10},
	}

	if got := cfg.DebounceFast(); got != 0 {
		t.Errorf("DebounceFast() = %v, want 0", got)
	}
	if got := cfg.DebounceSlow(); got != 2*time.Second {
		t.Errorf("DebounceSlow() = %v, want 2s", got)
	}
	if got := cfg.OptimisticWindow(); got != 10*time.Second {
		t.Errorf("OptimisticWindow() = %v, want 10s", got)
	}
	if got := cfg.RetryBackoff(); got != 250*time.Millisecond {
		t.Errorf("RetryBackoff() = %v, want 250ms", got)
	}
	if got := cfg.ReassemblyTimeout(); got != 10*time.Second {
		t.Errorf("ReassemblyTimeout() = %v, want 10s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("LUMEN_DATABASE_PATH", "/custom/path.db")
	t.Setenv("LUMEN_MQTT_HOST", "mqtt.example.com")
	t.Setenv("LUMEN_MQTT_PORT", "8883")
	t.Setenv("LUMEN_MQTT_USERNAME", "testuser")
	t.Setenv("LUMEN_MQTT_PASSWORD", "testpass")
	t.Setenv("LUMEN_CLOUD_HOST", "cloud.example.com")
	t.Setenv("LUMEN_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("LUMEN_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.Cloud.Broker.Host != "cloud.example.com" {
		t.Errorf("Cloud.Broker.Host = %q, want %q", cfg.Cloud.Broker.Host, "cloud.example.com")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.Gateway.BusCapacity != 1024 {
		t.Errorf("defaultConfig Gateway.BusCapacity = %d, want 1024", cfg.Gateway.BusCapacity)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig should validate cleanly, got %v", err)
	}
}
