package gateway

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/lumen-bridge/internal/dispatch"
	"github.com/nerrad567/lumen-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/lumen-bridge/internal/telemetry"
)

// commandDispatcher resolves and sends control intents. *dispatch.Dispatcher
// satisfies this.
type commandDispatcher interface {
	Dispatch(ctx context.Context, intent dispatch.Intent) error
}

// Kelvin bounds accepted on the colour temperature intent, matching the
// vendor's supported range.
const (
	minKelvin = 2000
	maxKelvin = 9000
)

// defaultDispatchTimeout bounds one intent's dispatch, retries and cloud
// fallback included.
const defaultDispatchTimeout = 30 * time.Second

// effectIntent is the effect activation payload: an id, a display name,
// or both. A bare string payload is accepted as either.
type effectIntent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IntentRouter turns inbound set topics into dispatch intents.
//
// Field intents arrive on lumen/device/<id>/set/<field> with a scalar
// payload; effect activations arrive on lumen/device/<id>/effect/set.
// Malformed payloads and unknown devices are logged and dropped, never
// fatal.
type IntentRouter struct {
	conn       mqttConn
	registry   *Registry
	dispatcher commandDispatcher

	qos     byte
	timeout time.Duration

	logger Logger
	ctx    context.Context
}

// NewIntentRouter creates the router. Start must be called before any
// intents are handled.
func NewIntentRouter(conn mqttConn, registry *Registry, dispatcher commandDispatcher, qos byte) *IntentRouter {
	return &IntentRouter{
		conn:       conn,
		registry:   registry,
		dispatcher: dispatcher,
		qos:        qos,
		timeout:    defaultDispatchTimeout,
		logger:     noopLogger{},
	}
}

// SetLogger sets the router logger.
func (r *IntentRouter) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Start subscribes to the intent topics. The context bounds the lifetime
// of every dispatch the router launches.
func (r *IntentRouter) Start(ctx context.Context) error {
	r.ctx = ctx
	topics := mqtt.Topics{}
	if err := r.conn.Subscribe(topics.AllDeviceSets(), r.qos, r.handleSet); err != nil {
		return fmt.Errorf("subscribing to set topics: %w", err)
	}
	if err := r.conn.Subscribe(topics.AllDeviceEffectSets(), r.qos, r.handleEffect); err != nil {
		return fmt.Errorf("subscribing to effect topics: %w", err)
	}
	return nil
}

// handleSet routes one field intent.
func (r *IntentRouter) handleSet(topic string, payload []byte) error {
	topicID, field, err := parseSetTopic(topic)
	if err != nil {
		return err
	}

	device, ok := r.registry.ByTopic(topicID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, topicID)
	}

	value, err := parseFieldValue(field, payload)
	if err != nil {
		return fmt.Errorf("%s %s: %w", device, field, err)
	}

	r.dispatchAsync(dispatch.Intent{
		Device: device,
		Fields: []telemetry.FieldValue{value},
	})
	return nil
}

// handleEffect routes one effect activation.
func (r *IntentRouter) handleEffect(topic string, payload []byte) error {
	topicID, err := parseEffectTopic(topic)
	if err != nil {
		return err
	}

	device, ok := r.registry.ByTopic(topicID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, topicID)
	}

	intent, err := parseEffectIntent(payload)
	if err != nil {
		return fmt.Errorf("%s: %w", device, err)
	}

	r.dispatchAsync(dispatch.Intent{
		Device:     device,
		EffectID:   intent.ID,
		EffectName: intent.Name,
	})
	return nil
}

// dispatchAsync runs the dispatch off the broker callback so slow
// transports never stall message delivery.
func (r *IntentRouter) dispatchAsync(intent dispatch.Intent) {
	base := r.ctx
	if base == nil {
		base = context.Background()
	}
	go func() {
		ctx, cancel := context.WithTimeout(base, r.timeout)
		defer cancel()
		if err := r.dispatcher.Dispatch(ctx, intent); err != nil {
			r.logger.Warn("intent dispatch failed",
				"device", intent.Device.String(),
				"error", err,
			)
		}
	}()
}

// parseSetTopic extracts the device and field from
// "lumen/device/<id>/set/<field>".
func parseSetTopic(topic string) (topicID, field string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != "lumen" || parts[1] != "device" || parts[3] != "set" {
		return "", "", fmt.Errorf("%w: %q", ErrBadTopic, topic)
	}
	if parts[2] == "" || parts[4] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadTopic, topic)
	}
	return parts[2], parts[4], nil
}

// parseEffectTopic extracts the device from
// "lumen/device/<id>/effect/set".
func parseEffectTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != "lumen" || parts[1] != "device" ||
		parts[3] != "effect" || parts[4] != "set" || parts[2] == "" {
		return "", fmt.Errorf("%w: %q", ErrBadTopic, topic)
	}
	return parts[2], nil
}

// parseEffectIntent accepts a JSON {id, name} document or a bare string
// tried as both id and display name.
func parseEffectIntent(payload []byte) (effectIntent, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return effectIntent{}, fmt.Errorf("%w: empty effect payload", ErrBadIntent)
	}

	if strings.HasPrefix(text, "{") {
		var intent effectIntent
		if err := json.Unmarshal(payload, &intent); err != nil {
			return effectIntent{}, fmt.Errorf("%w: %w", ErrBadIntent, err)
		}
		if intent.ID == "" && intent.Name == "" {
			return effectIntent{}, fmt.Errorf("%w: effect payload names nothing", ErrBadIntent)
		}
		return intent, nil
	}
	return effectIntent{ID: text, Name: text}, nil
}

// parseFieldValue converts one intent payload into a field value.
func parseFieldValue(field string, payload []byte) (telemetry.FieldValue, error) {
	text := strings.TrimSpace(string(payload))

	switch field {
	case telemetry.FieldPower.String():
		switch strings.ToLower(text) {
		case "on", "true", "1":
			return telemetry.Power(true), nil
		case "off", "false", "0":
			return telemetry.Power(false), nil
		}
		return telemetry.FieldValue{}, fmt.Errorf("%w: power %q", ErrBadIntent, text)

	case telemetry.FieldBrightness.String():
		n, err := strconv.Atoi(text)
		if err != nil || n < 0 || n > 100 {
			return telemetry.FieldValue{}, fmt.Errorf("%w: brightness %q", ErrBadIntent, text)
		}
		return telemetry.Brightness(uint8(n)), nil

	case telemetry.FieldColorRGB.String():
		return parseColorValue(text, payload)

	case telemetry.FieldColorTemperature.String():
		n, err := strconv.Atoi(text)
		if err != nil || n < minKelvin || n > maxKelvin {
			return telemetry.FieldValue{}, fmt.Errorf("%w: color_temperature %q (accepted %d-%d)",
				ErrBadIntent, text, minKelvin, maxKelvin)
		}
		return telemetry.ColorTemperature(uint16(n)), nil

	default:
		return telemetry.FieldValue{}, fmt.Errorf("%w: field %q is not settable", ErrBadIntent, field)
	}
}

// parseColorValue accepts "#RRGGBB", "RRGGBB" or a JSON {r, g, b}
// document.
func parseColorValue(text string, payload []byte) (telemetry.FieldValue, error) {
	if strings.HasPrefix(text, "{") {
		var c struct {
			R uint8 `json:"r"`
			G uint8 `json:"g"`
			B uint8 `json:"b"`
		}
		if err := json.Unmarshal(payload, &c); err != nil {
			return telemetry.FieldValue{}, fmt.Errorf("%w: color %q", ErrBadIntent, text)
		}
		return telemetry.ColorRGB(c.R, c.G, c.B), nil
	}

	hexText := strings.TrimPrefix(text, "#")
	raw, err := hex.DecodeString(hexText)
	if err != nil || len(raw) != 3 {
		return telemetry.FieldValue{}, fmt.Errorf("%w: color %q", ErrBadIntent, text)
	}
	return telemetry.ColorRGB(raw[0], raw[1], raw[2]), nil
}
