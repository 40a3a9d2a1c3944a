package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/lumen-bridge/internal/dispatch"
	"github.com/nerrad567/lumen-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/lumen-bridge/internal/telemetry"
)

// publishedMsg records one fakeConn publish.
type publishedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// fakeConn is an in-memory broker surface: it records publishes and lets
// tests deliver messages to registered subscription handlers.
type fakeConn struct {
	mu         sync.Mutex
	published  []publishedMsg
	handlers   map[string]mqtt.MessageHandler
	publishErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{handlers: make(map[string]mqtt.MessageHandler)}
}

func (c *fakeConn) Publish(topic string, payload []byte, qos byte, retained bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	copied := make([]byte, len(payload))
	copy(copied, payload)
	c.published = append(c.published, publishedMsg{topic: topic, payload: copied, qos: qos, retained: retained})
	return nil
}

func (c *fakeConn) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	return nil
}

func (c *fakeConn) messages() []publishedMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]publishedMsg, len(c.published))
	copy(out, c.published)
	return out
}

func (c *fakeConn) messagesOn(topic string) []publishedMsg {
	var out []publishedMsg
	for _, m := range c.messages() {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) handler(topic string) (mqtt.MessageHandler, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handlers[topic]
	return h, ok
}

// fakeSink records bus publishes.
type fakeSink struct {
	mu      sync.Mutex
	updates []telemetry.TransportUpdate
}

func (s *fakeSink) Publish(update telemetry.TransportUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update)
	return true, nil
}

func (s *fakeSink) all() []telemetry.TransportUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]telemetry.TransportUpdate, len(s.updates))
	copy(out, s.updates)
	return out
}

// fakeCommandDispatcher hands dispatched intents to the test over a
// channel, since the router dispatches asynchronously.
type fakeCommandDispatcher struct {
	intents chan dispatch.Intent
	err     error
}

func newFakeCommandDispatcher() *fakeCommandDispatcher {
	return &fakeCommandDispatcher{intents: make(chan dispatch.Intent, 8)}
}

func (d *fakeCommandDispatcher) Dispatch(_ context.Context, intent dispatch.Intent) error {
	d.intents <- intent
	return d.err
}

func (d *fakeCommandDispatcher) wait(timeout time.Duration) (dispatch.Intent, bool) {
	select {
	case intent := <-d.intents:
		return intent, true
	case <-time.After(timeout):
		return dispatch.Intent{}, false
	}
}

// fakeConfirmer records acknowledgement updates.
type fakeConfirmer struct {
	mu      sync.Mutex
	updates []telemetry.TransportUpdate
}

func (c *fakeConfirmer) HandleConfirmation(update telemetry.TransportUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, update)
}

func (c *fakeConfirmer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.updates)
}

func (c *fakeConfirmer) last() telemetry.TransportUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updates[len(c.updates)-1]
}

// fieldChangeRecord mirrors one metrics write.
type fieldChangeRecord struct {
	deviceID, model, field, source string
	value                          float64
	display                        string
}

// fakeMetrics records time-series writes.
type fakeMetrics struct {
	mu           sync.Mutex
	fieldChanges []fieldChangeRecord
	availability []bool
}

func (m *fakeMetrics) WriteFieldChange(deviceID, model, field, source string, value float64, display string, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fieldChanges = append(m.fieldChanges, fieldChangeRecord{
		deviceID: deviceID, model: model, field: field, source: source,
		value: value, display: display,
	})
}

func (m *fakeMetrics) WriteAvailability(_, _ string, online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.availability = append(m.availability, online)
}

// frameChecksum computes the advertisement XOR checksum over the first
// 19 bytes.
func frameChecksum(payload []byte) byte {
	var sum byte
	for _, b := range payload[:19] {
		sum ^= b
	}
	return sum
}

// singleFrame builds a valid self-contained advertisement frame around
// the given status body.
func singleFrame(body []byte) []byte {
	payload := make([]byte, 20)
	payload[0] = 0xAA
	copy(payload[1:19], body)
	payload[19] = frameChecksum(payload)
	return payload
}
