package mqtt

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/lumen-bridge/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "lumenbridge-test",
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// =============================================================================
// Topic Builder Tests
// =============================================================================

func TestTopics(t *testing.T) {
	tests := []struct {
		name     string
		build    func() string
		expected string
	}{
		{
			name: "DeviceState",
			build: func() string {
				return Topics{}.DeviceState("aa-bb-cc-dd", "brightness")
			},
			expected: "lumen/device/aa-bb-cc-dd/state/brightness",
		},
		{
			name: "DeviceAvailability",
			build: func() string {
				return Topics{}.DeviceAvailability("aa-bb-cc-dd")
			},
			expected: "lumen/device/aa-bb-cc-dd/availability",
		},
		{
			name: "DeviceSet",
			build: func() string {
				return Topics{}.DeviceSet("aa-bb-cc-dd", "power")
			},
			expected: "lumen/device/aa-bb-cc-dd/set/power",
		},
		{
			name: "DeviceEffectSet",
			build: func() string {
				return Topics{}.DeviceEffectSet("aa-bb-cc-dd")
			},
			expected: "lumen/device/aa-bb-cc-dd/effect/set",
		},
		{
			name: "DeviceScenes",
			build: func() string {
				return Topics{}.DeviceScenes("aa-bb-cc-dd")
			},
			expected: "lumen/device/aa-bb-cc-dd/scenes",
		},
		{
			name: "RadioFrame",
			build: func() string {
				return Topics{}.RadioFrame("AA.BB.CC.DD", "H6159")
			},
			expected: "lumen/radio/AA.BB.CC.DD/H6159",
		},
		{
			name: "AllRadioFrames",
			build: func() string {
				return Topics{}.AllRadioFrames()
			},
			expected: "lumen/radio/+/+",
		},
		{
			name: "Catalog",
			build: func() string {
				return Topics{}.Catalog("H6159")
			},
			expected: "lumen/catalog/H6159",
		},
		{
			name: "SystemStatus",
			build: func() string {
				return Topics{}.SystemStatus()
			},
			expected: "lumen/system/status",
		},
		{
			name: "AllDeviceSets",
			build: func() string {
				return Topics{}.AllDeviceSets()
			},
			expected: "lumen/device/+/set/+",
		},
		{
			name: "AllDeviceEffectSets",
			build: func() string {
				return Topics{}.AllDeviceEffectSets()
			},
			expected: "lumen/device/+/effect/set",
		},
		{
			name: "AllDeviceStates",
			build: func() string {
				return Topics{}.AllDeviceStates()
			},
			expected: "lumen/device/+/state/+",
		},
		{
			name: "AllTopics",
			build: func() string {
				return Topics{}.AllTopics()
			},
			expected: "lumen/#",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.build(); got != tt.expected {
				t.Errorf("topic = %q, want %q", got, tt.expected)
			}
		})
	}
}

// =============================================================================
// Option Building Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("Servers = %d, want 1", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://127.0.0.1:1883" {
		t.Errorf("broker URL = %q, want tcp://127.0.0.1:1883", got)
	}
	if opts.ClientID != "lumenbridge-test" {
		t.Errorf("ClientID = %q, want lumenbridge-test", opts.ClientID)
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	opts := buildClientOptions(cfg)

	if got := opts.Servers[0].Scheme; got != "ssl" {
		t.Errorf("scheme = %q, want ssl", got)
	}
	if opts.TLSConfig == nil {
		t.Fatal("TLSConfig = nil, want configured")
	}
}

func TestBuildClientOptions_Auth(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "gateway"
	cfg.Auth.Password = "secret"
	opts := buildClientOptions(cfg)

	if opts.Username != "gateway" {
		t.Errorf("Username = %q, want gateway", opts.Username)
	}
	if opts.Password != "secret" {
		t.Errorf("Password = %q, want secret", opts.Password)
	}
}

func TestConfigureLWT(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false, want true")
	}
	if opts.WillTopic != "lumen/system/status" {
		t.Errorf("WillTopic = %q, want lumen/system/status", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}
	if !strings.Contains(string(opts.WillPayload), `"status":"offline"`) {
		t.Errorf("WillPayload = %s, want offline status", opts.WillPayload)
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("lumen-bridge")
	if !strings.Contains(online, `"status":"online"`) {
		t.Errorf("online payload = %s, missing status", online)
	}
	if !strings.Contains(online, `"client_id":"lumen-bridge"`) {
		t.Errorf("online payload = %s, missing client_id", online)
	}

	offline := buildOfflinePayload("lumen-bridge")
	if !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload = %s, missing reason", offline)
	}
}

// =============================================================================
// Validation Tests (no broker required)
// =============================================================================

func TestPublishValidation(t *testing.T) {
	client := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}

	if err := client.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Publish("lumen/test", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish QoS 3 error = %v, want ErrInvalidQoS", err)
	}
	if err := client.Publish("lumen/test", make([]byte, maxPayloadSize+1), 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish oversized payload error = %v, want ErrPublishFailed", err)
	}
	if err := client.Publish("lumen/test", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("lumen/test", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe QoS 3 error = %v, want ErrInvalidQoS", err)
	}
	if err := client.Subscribe("lumen/test", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe nil handler error = %v, want ErrSubscribeFailed", err)
	}
	if err := client.Subscribe("lumen/test", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe disconnected error = %v, want ErrNotConnected", err)
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestSubscriptionTracking(t *testing.T) {
	client := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
	if client.HasSubscription("lumen/device/+/set/+") {
		t.Error("HasSubscription() = true on empty client")
	}
}

// =============================================================================
// Logger and Callback Tests
// =============================================================================

func TestSetLogger(t *testing.T) {
	client := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}

	logger := &mockLogger{}
	client.SetLogger(logger)

	if client.getLogger() == nil {
		t.Error("getLogger() = nil after SetLogger()")
	}

	client.SetLogger(nil)
	if client.getLogger() != nil {
		t.Error("getLogger() should be nil after SetLogger(nil)")
	}
}

func TestCallbacksInvoked(t *testing.T) {
	client := &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}

	var connects, disconnects int
	client.SetOnConnect(func() { connects++ })
	client.SetOnDisconnect(func(error) { disconnects++ })

	// handleConnect triggers a publish of online status, which needs a
	// live client; exercise only the disconnect path here.
	client.handleDisconnect(errors.New("network down"))

	if disconnects != 1 {
		t.Errorf("disconnect callbacks = %d, want 1", disconnects)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after handleDisconnect")
	}
}

// mockLogger implements Logger interface for testing.
type mockLogger struct {
	errors []string
	warns  []string
	mu     sync.Mutex
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}
