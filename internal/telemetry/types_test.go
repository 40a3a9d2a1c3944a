package telemetry

import (
	"testing"
	"time"
)

func TestDeviceID(t *testing.T) {
	d := DeviceID{ID: "7C:A6:1D:00:11:22", Model: "H6159"}

	if got := d.String(); got != "H6159/7C:A6:1D:00:11:22" {
		t.Errorf("String() = %q", got)
	}
	if got := d.TopicID(); got != "H6159_7CA61D001122" {
		t.Errorf("TopicID() = %q", got)
	}
	if d.IsZero() {
		t.Error("IsZero() = true for a populated id")
	}
	if !(DeviceID{}).IsZero() {
		t.Error("IsZero() = false for the zero id")
	}
}

func TestBrightnessClamps(t *testing.T) {
	if got := Brightness(150); got.Percent != 100 {
		t.Errorf("Brightness(150).Percent = %d, want 100", got.Percent)
	}
	if got := Brightness(100); got.Percent != 100 {
		t.Errorf("Brightness(100).Percent = %d, want 100", got.Percent)
	}
}

func TestFieldValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b FieldValue
		want bool
	}{
		{"same power", Power(true), Power(true), true},
		{"different power", Power(true), Power(false), false},
		{"different kinds", Power(true), Online(true), false},
		{"same rgb", ColorRGB(1, 2, 3), ColorRGB(1, 2, 3), true},
		{"different rgb", ColorRGB(1, 2, 3), ColorRGB(1, 2, 4), false},
		{"same effect", ActiveEffect("1.4"), ActiveEffect("1.4"), true},
		{"effect vs none", ActiveEffect("1.4"), ActiveEffect(""), false},
		{"same kelvin", ColorTemperature(4000), ColorTemperature(4000), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFieldValueString(t *testing.T) {
	tests := []struct {
		value FieldValue
		want  string
	}{
		{Power(true), "power=true"},
		{Brightness(75), "brightness=75"},
		{ColorRGB(255, 0, 0), "rgb=#FF0000"},
		{ColorTemperature(4000), "kelvin=4000"},
		{ActiveEffect("1.4"), "effect=1.4"},
		{ActiveEffect(""), "effect=none"},
		{Online(true), "online=true"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.value.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSourceRankOrdering(t *testing.T) {
	// Local observations outrank radio, radio outranks any cloud path,
	// push outranks poll.
	ordered := []TransportSource{
		SourceCloudPoll,
		SourceCloudPush,
		SourceRadioAdvertisement,
		SourceLocalCommand,
	}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Rank() <= ordered[i-1].Rank() {
			t.Errorf("%v.Rank() = %d not above %v.Rank() = %d",
				ordered[i], ordered[i].Rank(), ordered[i-1], ordered[i-1].Rank())
		}
	}
}

func TestSourceLatencyClass(t *testing.T) {
	tests := []struct {
		source TransportSource
		want   LatencyClass
	}{
		{SourceLocalCommand, LatencyFast},
		{SourceRadioAdvertisement, LatencyMedium},
		{SourceCloudPush, LatencySlow},
		{SourceCloudPoll, LatencySlow},
	}

	for _, tt := range tests {
		if got := tt.source.LatencyClass(); got != tt.want {
			t.Errorf("%v.LatencyClass() = %v, want %v", tt.source, got, tt.want)
		}
	}
}

func TestTransportUpdateField(t *testing.T) {
	now := time.Now()
	update := TransportUpdate{
		Device: DeviceID{ID: "AA", Model: "H6159"},
		Source: SourceLocalCommand,
		Fields: []FieldObservation{
			{Value: Power(true), Timestamp: now},
			{Value: Brightness(50), Timestamp: now},
		},
	}

	if obs, ok := update.Field(FieldBrightness); !ok || obs.Value.Percent != 50 {
		t.Errorf("Field(brightness) = %v, %v", obs, ok)
	}
	if _, ok := update.Field(FieldColorRGB); ok {
		t.Error("Field(color_rgb) found an absent observation")
	}
}

func TestSnapshotClone(t *testing.T) {
	snap := DeviceSnapshot{
		Device:    DeviceID{ID: "AA", Model: "H6159"},
		Lifecycle: LifecycleOnline,
		Fields: map[FieldKind]FieldRecord{
			FieldPower: {Value: Power(true), Source: SourceLocalCommand},
		},
	}

	clone := snap.Clone()
	clone.Fields[FieldPower] = FieldRecord{Value: Power(false)}

	if rec := snap.Fields[FieldPower]; !rec.Value.On {
		t.Error("mutating the clone changed the original")
	}
}

func TestLifecycleString(t *testing.T) {
	if LifecycleOnline.String() != "online" ||
		LifecycleOffline.String() != "offline" ||
		LifecycleUnknown.String() != "unknown" {
		t.Error("lifecycle names do not match topic values")
	}
}
