package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/lumen-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/lumen-bridge/internal/telemetry"
)

// metricsWriter records accepted changes in the time-series store.
// *influxdb.Client satisfies this; nil disables metric writes.
type metricsWriter interface {
	WriteFieldChange(deviceID, model, field, source string, value float64, display string, timestamp time.Time)
	WriteAvailability(deviceID, model string, online bool)
}

// statePayload is the retained per-field state document.
type statePayload struct {
	Value      any       `json:"value"`
	Source     string    `json:"source"`
	ObservedAt time.Time `json:"observed_at"`
}

// rgbValue renders a colour field for the state topic.
type rgbValue struct {
	R   uint8  `json:"r"`
	G   uint8  `json:"g"`
	B   uint8  `json:"b"`
	Hex string `json:"hex"`
}

// StatePublisher turns reconciliation change events into the outward
// surfaces: retained per-field MQTT state topics, the availability
// topic, and the time-series store.
type StatePublisher struct {
	events  <-chan telemetry.ChangeEvent
	conn    mqttConn
	metrics metricsWriter
	qos     byte
	logger  Logger
}

// NewStatePublisher creates the publisher. A nil metrics writer disables
// time-series recording.
func NewStatePublisher(events <-chan telemetry.ChangeEvent, conn mqttConn, metrics metricsWriter, qos byte) *StatePublisher {
	return &StatePublisher{
		events:  events,
		conn:    conn,
		metrics: metrics,
		qos:     qos,
		logger:  noopLogger{},
	}
}

// SetLogger sets the publisher logger.
func (p *StatePublisher) SetLogger(logger Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// Run publishes change events until the context is done.
func (p *StatePublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-p.events:
			if err := p.publish(ev); err != nil {
				p.logger.Error("publishing state change",
					"device", ev.Device.String(),
					"field", ev.Field.Kind.String(),
					"error", err,
				)
			}
		}
	}
}

// publish emits one change event on every outward surface.
func (p *StatePublisher) publish(ev telemetry.ChangeEvent) error {
	topicID := ev.Device.TopicID()

	payload, err := json.Marshal(statePayload{
		Value:      fieldJSONValue(ev.Field),
		Source:     ev.Source.String(),
		ObservedAt: ev.Timestamp.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding state payload: %w", err)
	}

	topic := mqtt.Topics{}.DeviceState(topicID, ev.Field.Kind.String())
	if err := p.conn.Publish(topic, payload, p.qos, true); err != nil {
		return err
	}

	if ev.Field.Kind == telemetry.FieldOnline {
		status := telemetry.LifecycleOffline.String()
		if ev.Field.Online {
			status = telemetry.LifecycleOnline.String()
		}
		availTopic := mqtt.Topics{}.DeviceAvailability(topicID)
		if err := p.conn.Publish(availTopic, []byte(status), p.qos, true); err != nil {
			return err
		}
		if p.metrics != nil {
			p.metrics.WriteAvailability(ev.Device.ID, ev.Device.Model, ev.Field.Online)
		}
	}

	if p.metrics != nil {
		p.metrics.WriteFieldChange(
			ev.Device.ID,
			ev.Device.Model,
			ev.Field.Kind.String(),
			ev.Source.String(),
			fieldNumeric(ev.Field),
			ev.Field.String(),
			ev.Timestamp,
		)
	}
	return nil
}

// fieldJSONValue renders a field value for the state topic document.
func fieldJSONValue(v telemetry.FieldValue) any {
	switch v.Kind {
	case telemetry.FieldPower:
		return v.On
	case telemetry.FieldBrightness:
		return v.Percent
	case telemetry.FieldColorRGB:
		return rgbValue{
			R:   v.R,
			G:   v.G,
			B:   v.B,
			Hex: fmt.Sprintf("#%02X%02X%02X", v.R, v.G, v.B),
		}
	case telemetry.FieldColorTemperature:
		return v.Kelvin
	case telemetry.FieldActiveEffect:
		return v.EffectID
	case telemetry.FieldOnline:
		return v.Online
	default:
		return nil
	}
}

// fieldNumeric renders a field value as the metric's numeric member.
func fieldNumeric(v telemetry.FieldValue) float64 {
	switch v.Kind {
	case telemetry.FieldPower:
		return bool01(v.On)
	case telemetry.FieldBrightness:
		return float64(v.Percent)
	case telemetry.FieldColorRGB:
		return float64(uint32(v.R)<<16 | uint32(v.G)<<8 | uint32(v.B))
	case telemetry.FieldColorTemperature:
		return float64(v.Kelvin)
	case telemetry.FieldActiveEffect:
		return bool01(v.EffectID != "")
	case telemetry.FieldOnline:
		return bool01(v.Online)
	default:
		return 0
	}
}

func bool01(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
