package telemetry

import (
	"fmt"
	"strings"
	"time"
)

// DeviceID identifies a device by its vendor device id and model code.
// Immutable once assigned; the pair is stable across transports (the radio
// path learns it from the advertisement header, the LAN path from the scan
// response, the cloud path from the vendor record).
type DeviceID struct {
	// ID is the vendor-assigned device identifier (typically a MAC-derived
	// string such as "7C:A6:1D:xx:xx:xx").
	ID string

	// Model is the vendor model code (e.g. "H6159").
	Model string
}

// String returns the canonical "model/id" form used in logs.
func (d DeviceID) String() string {
	return d.Model + "/" + d.ID
}

// TopicID returns an MQTT-topic-safe form of the identifier.
// Colons are the only characters the vendor uses that are awkward in
// topic segments.
func (d DeviceID) TopicID() string {
	return d.Model + "_" + strings.ReplaceAll(d.ID, ":", "")
}

// IsZero reports whether the identifier is unset.
func (d DeviceID) IsZero() bool {
	return d.ID == "" && d.Model == ""
}

// FieldKind enumerates the independently mergeable telemetry fields.
type FieldKind int

const (
	FieldPower FieldKind = iota
	FieldBrightness
	FieldColorRGB
	FieldColorTemperature
	FieldActiveEffect
	FieldOnline

	// fieldKindCount is the number of field kinds; used for sizing.
	fieldKindCount
)

// String returns the field name used in topics, logs and metrics.
func (k FieldKind) String() string {
	switch k {
	case FieldPower:
		return "power"
	case FieldBrightness:
		return "brightness"
	case FieldColorRGB:
		return "color_rgb"
	case FieldColorTemperature:
		return "color_temperature"
	case FieldActiveEffect:
		return "active_effect"
	case FieldOnline:
		return "online"
	default:
		return fmt.Sprintf("field(%d)", int(k))
	}
}

// FieldKindCount returns the number of defined field kinds.
func FieldKindCount() int { return int(fieldKindCount) }

// FieldValue is the tagged union over the telemetry field types.
// Only the members matching Kind are meaningful; Equal compares by Kind
// and the corresponding members.
type FieldValue struct {
	Kind FieldKind

	// On is set for FieldPower.
	On bool

	// Percent is set for FieldBrightness (0-100).
	Percent uint8

	// R, G, B are set for FieldColorRGB.
	R, G, B uint8

	// Kelvin is set for FieldColorTemperature.
	Kelvin uint16

	// EffectID is set for FieldActiveEffect; empty means "no active effect".
	EffectID string

	// Online is set for FieldOnline.
	Online bool
}

// Power returns a power field value.
func Power(on bool) FieldValue { return FieldValue{Kind: FieldPower, On: on} }

// Brightness returns a brightness field value, clamped to 0-100.
func Brightness(percent uint8) FieldValue {
	if percent > 100 {
		percent = 100
	}
	return FieldValue{Kind: FieldBrightness, Percent: percent}
}

// ColorRGB returns an RGB colour field value.
func ColorRGB(r, g, b uint8) FieldValue {
	return FieldValue{Kind: FieldColorRGB, R: r, G: g, B: b}
}

// ColorTemperature returns a colour temperature field value in kelvin.
func ColorTemperature(kelvin uint16) FieldValue {
	return FieldValue{Kind: FieldColorTemperature, Kelvin: kelvin}
}

// ActiveEffect returns an active-effect field value. An empty id means the
// device reports no active effect.
func ActiveEffect(effectID string) FieldValue {
	return FieldValue{Kind: FieldActiveEffect, EffectID: effectID}
}

// Online returns a liveness field value.
func Online(online bool) FieldValue { return FieldValue{Kind: FieldOnline, Online: online} }

// Equal reports whether two field values carry the same kind and payload.
func (v FieldValue) Equal(o FieldValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case FieldPower:
		return v.On == o.On
	case FieldBrightness:
		return v.Percent == o.Percent
	case FieldColorRGB:
		return v.R == o.R && v.G == o.G && v.B == o.B
	case FieldColorTemperature:
		return v.Kelvin == o.Kelvin
	case FieldActiveEffect:
		return v.EffectID == o.EffectID
	case FieldOnline:
		return v.Online == o.Online
	default:
		return false
	}
}

// String renders the value for logs.
func (v FieldValue) String() string {
	switch v.Kind {
	case FieldPower:
		return fmt.Sprintf("power=%t", v.On)
	case FieldBrightness:
		return fmt.Sprintf("brightness=%d", v.Percent)
	case FieldColorRGB:
		return fmt.Sprintf("rgb=#%02X%02X%02X", v.R, v.G, v.B)
	case FieldColorTemperature:
		return fmt.Sprintf("kelvin=%d", v.Kelvin)
	case FieldActiveEffect:
		if v.EffectID == "" {
			return "effect=none"
		}
		return "effect=" + v.EffectID
	case FieldOnline:
		return fmt.Sprintf("online=%t", v.Online)
	default:
		return "unknown"
	}
}

// TransportSource identifies which transport produced an observation.
// Each source carries a fixed trust rank used in merge tie-breaks and a
// latency class used for debounce tuning.
type TransportSource int

const (
	SourceLocalCommand TransportSource = iota
	SourceRadioAdvertisement
	SourceCloudPush
	SourceCloudPoll
)

// String returns the source name used in topics, logs and metrics.
func (s TransportSource) String() string {
	switch s {
	case SourceLocalCommand:
		return "local"
	case SourceRadioAdvertisement:
		return "radio"
	case SourceCloudPush:
		return "cloud_push"
	case SourceCloudPoll:
		return "cloud_poll"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Rank returns the trust rank of the source. Higher ranks win merge
// tie-breaks and survive bus eviction longer. LocalCommand is highest,
// CloudPoll lowest; radio outranks cloud push because it is a direct
// device observation rather than a relayed one.
func (s TransportSource) Rank() int {
	switch s {
	case SourceLocalCommand:
		return 3
	case SourceRadioAdvertisement:
		return 2
	case SourceCloudPush:
		return 1
	case SourceCloudPoll:
		return 0
	default:
		return -1
	}
}

// LatencyClass buckets sources by expected propagation delay.
type LatencyClass int

const (
	LatencyFast LatencyClass = iota
	LatencyMedium
	LatencySlow
)

// LatencyClass returns the expected-latency class of the source.
func (s TransportSource) LatencyClass() LatencyClass {
	switch s {
	case SourceLocalCommand:
		return LatencyFast
	case SourceRadioAdvertisement:
		return LatencyMedium
	default:
		return LatencySlow
	}
}

// FieldObservation is one observed field value with its own timestamp.
// Transports that report a device-side timestamp set it here; transports
// that do not use the receipt time.
type FieldObservation struct {
	Value     FieldValue
	Timestamp time.Time
}

// TransportUpdate is the unit of ingestion: a set of field observations
// for one device from one transport. Immutable after creation.
type TransportUpdate struct {
	Device     DeviceID
	Source     TransportSource
	ObservedAt time.Time
	Fields     []FieldObservation
}

// Field returns the observation for the given kind, if present.
func (u TransportUpdate) Field(kind FieldKind) (FieldObservation, bool) {
	for _, f := range u.Fields {
		if f.Value.Kind == kind {
			return f, true
		}
	}
	return FieldObservation{}, false
}

// Lifecycle is the per-device state machine position.
type Lifecycle int

const (
	// LifecycleUnknown means no update has ever been received.
	LifecycleUnknown Lifecycle = iota

	// LifecycleOnline means telemetry is known and the device is reachable.
	LifecycleOnline

	// LifecycleOffline means the latest liveness update says unreachable.
	LifecycleOffline
)

// String returns the lifecycle name used in state topics.
func (l Lifecycle) String() string {
	switch l {
	case LifecycleOnline:
		return "online"
	case LifecycleOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// FieldRecord is the authoritative per-field state: the current value plus
// the source and timestamp of its last accepted writer.
type FieldRecord struct {
	Value     FieldValue
	Source    TransportSource
	Timestamp time.Time
}

// DeviceSnapshot is an immutable copy of one device's reconciled state.
type DeviceSnapshot struct {
	Device    DeviceID
	Lifecycle Lifecycle
	Fields    map[FieldKind]FieldRecord
}

// Field returns the record for the given kind, if the field has ever been
// accepted for this device.
func (s DeviceSnapshot) Field(kind FieldKind) (FieldRecord, bool) {
	rec, ok := s.Fields[kind]
	return rec, ok
}

// Clone returns a deep copy of the snapshot.
func (s DeviceSnapshot) Clone() DeviceSnapshot {
	fields := make(map[FieldKind]FieldRecord, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = v
	}
	return DeviceSnapshot{Device: s.Device, Lifecycle: s.Lifecycle, Fields: fields}
}

// ChangeEvent is the outward change notification: one accepted, debounced,
// observably changed field.
type ChangeEvent struct {
	Device    DeviceID
	Field     FieldValue
	Source    TransportSource
	Timestamp time.Time
}
