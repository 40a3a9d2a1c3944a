package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/lumen-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/lumen-bridge/internal/lanproto"
	"github.com/nerrad567/lumen-bridge/internal/telemetry"
)

// mqttConn is the broker surface the gateway components publish and
// subscribe through. *mqtt.Client satisfies this.
type mqttConn interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Vendor broker topic shapes. Commands and status reports travel per
// device, keyed by model and hardware id.
const (
	cloudTopicPrefix  = "v1/device"
	cloudStatusFilter = cloudTopicPrefix + "/+/+/status"

	// pollGrace is how long after an explicit poll a status report is
	// attributed to that poll rather than to a vendor push.
	pollGrace = 10 * time.Second
)

// CloudTransport is the vendor cloud path: the fallback command sender
// and the ingest for pushed and polled status reports.
//
// Commands travel as base64-encoded wire frames inside the vendor's
// pass-through message. Status reports reuse the local-protocol JSON
// shape; the only difference is the trust rank they are tagged with.
type CloudTransport struct {
	conn     mqttConn
	sink     updateSink
	registry *Registry

	qos          byte
	pollInterval time.Duration

	logger Logger
	clock  func() time.Time

	mu      sync.Mutex
	polled  map[telemetry.DeviceID]time.Time
	confirm confirmer
}

// NewCloudTransport creates the cloud transport over an established
// vendor broker connection. A pollInterval of zero disables background
// polling; explicit Poll calls still work.
func NewCloudTransport(conn mqttConn, sink updateSink, registry *Registry, qos byte, pollInterval time.Duration) *CloudTransport {
	return &CloudTransport{
		conn:         conn,
		sink:         sink,
		registry:     registry,
		qos:          qos,
		pollInterval: pollInterval,
		logger:       noopLogger{},
		clock:        time.Now,
		polled:       make(map[telemetry.DeviceID]time.Time),
	}
}

// SetLogger sets the transport logger.
func (t *CloudTransport) SetLogger(logger Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// SetConfirmer wires the dispatcher's confirmation handler. Cloud status
// reports answering a poll are often the only confirmation a
// cloud-dispatched command ever gets.
func (t *CloudTransport) SetConfirmer(c confirmer) {
	t.mu.Lock()
	t.confirm = c
	t.mu.Unlock()
}

// Start subscribes to the per-device status topics.
func (t *CloudTransport) Start() error {
	if err := t.conn.Subscribe(cloudStatusFilter, t.qos, t.handleStatus); err != nil {
		return fmt.Errorf("subscribing to cloud status: %w", err)
	}
	return nil
}

// Send carries raw wire frames to the device, base64-encoded inside the
// vendor's pass-through message.
func (t *CloudTransport) Send(_ context.Context, device telemetry.DeviceID, frames [][]byte) error {
	lines := make([]string, len(frames))
	for i, frame := range frames {
		lines[i] = base64.StdEncoding.EncodeToString(frame)
	}
	payload, err := lanproto.EncodePassthrough(lines)
	if err != nil {
		return fmt.Errorf("encoding cloud command: %w", err)
	}
	return t.conn.Publish(commandTopic(device), payload, t.qos, false)
}

// Poll requests a full status report from the device. The next report
// arriving within the grace window is attributed to this poll.
func (t *CloudTransport) Poll(device telemetry.DeviceID) error {
	payload, err := lanproto.EncodeStatusRequest()
	if err != nil {
		return err
	}
	if err := t.conn.Publish(commandTopic(device), payload, t.qos, false); err != nil {
		return fmt.Errorf("publishing poll for %s: %w", device, err)
	}
	t.mu.Lock()
	t.polled[device] = t.clock()
	t.mu.Unlock()
	return nil
}

// Run drives the background poll cadence until the context is done.
func (t *CloudTransport) Run(ctx context.Context) error {
	if t.pollInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, device := range t.registry.Devices() {
				if err := t.Poll(device); err != nil {
					t.logger.Warn("cloud poll failed",
						"device", device.String(),
						"error", err,
					)
				}
			}
		}
	}
}

// handleStatus ingests one status report, tagging it with the poll or
// push trust rank before it enters the bus.
func (t *CloudTransport) handleStatus(topic string, payload []byte) error {
	device, err := deviceFromCloudTopic(topic)
	if err != nil {
		return err
	}

	now := t.clock()
	decoded, err := lanproto.Decode(device, payload, now)
	if err != nil {
		return fmt.Errorf("decoding cloud status for %s: %w", device, err)
	}
	if decoded.Update == nil {
		return nil
	}

	update := *decoded.Update
	update.Source = telemetry.SourceCloudPush
	if t.consumePoll(device, now) {
		update.Source = telemetry.SourceCloudPoll
	}

	t.mu.Lock()
	confirm := t.confirm
	t.mu.Unlock()
	if confirm != nil {
		confirm.HandleConfirmation(update)
	}

	if _, err := t.sink.Publish(update); err != nil {
		return fmt.Errorf("publishing cloud update for %s: %w", device, err)
	}
	return nil
}

// consumePoll reports whether an outstanding poll claims this report.
func (t *CloudTransport) consumePoll(device telemetry.DeviceID, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.polled[device]
	if !ok {
		return false
	}
	delete(t.polled, device)
	return now.Sub(at) <= pollGrace
}

// commandTopic returns the device's cloud command topic.
func commandTopic(device telemetry.DeviceID) string {
	return fmt.Sprintf("%s/%s/%s/command", cloudTopicPrefix, device.Model, device.ID)
}

// deviceFromCloudTopic parses "v1/device/<model>/<id>/status".
func deviceFromCloudTopic(topic string) (telemetry.DeviceID, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0]+"/"+parts[1] != cloudTopicPrefix || parts[4] != "status" {
		return telemetry.DeviceID{}, fmt.Errorf("%w: %q", ErrBadTopic, topic)
	}
	if parts[2] == "" || parts[3] == "" {
		return telemetry.DeviceID{}, fmt.Errorf("%w: %q", ErrBadTopic, topic)
	}
	return telemetry.DeviceID{Model: parts[2], ID: parts[3]}, nil
}
