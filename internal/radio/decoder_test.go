package radio

import (
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/lumen-bridge/internal/telemetry"
)

var testDevice = telemetry.DeviceID{ID: "AA:BB:CC:DD", Model: "H6159"}

// buildSingle wraps a status body in a valid self-contained frame.
func buildSingle(body []byte) []byte {
	payload := make([]byte, FrameSize)
	payload[0] = roleSingle
	copy(payload[1:payloadSize], body)
	payload[payloadSize] = checksum(payload)
	return payload
}

// buildFragment wraps a fragment body in a valid fragment frame.
func buildFragment(seq, idx byte, body []byte) []byte {
	payload := make([]byte, FrameSize)
	payload[0] = roleFragment
	payload[1] = seq
	payload[2] = idx
	copy(payload[3:payloadSize], body)
	payload[payloadSize] = checksum(payload)
	return payload
}

func TestDecodeSingleFullStatus(t *testing.T) {
	d := NewDecoder(0)

	// power on, 75%, red, colour mode, no active scene.
	body := []byte{1, 75, 255, 0, 0, 0, 0, 0xFF, 0xFF}
	update, err := d.Decode(Frame{Device: testDevice, Payload: buildSingle(body), ReceivedAt: time.Now()})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if update == nil {
		t.Fatal("Decode() returned no update for a complete frame")
	}
	if update.Source != telemetry.SourceRadioAdvertisement {
		t.Errorf("source = %v, want radio", update.Source)
	}

	checks := []struct {
		kind telemetry.FieldKind
		want telemetry.FieldValue
	}{
		{telemetry.FieldOnline, telemetry.Online(true)},
		{telemetry.FieldPower, telemetry.Power(true)},
		{telemetry.FieldBrightness, telemetry.Brightness(75)},
		{telemetry.FieldColorRGB, telemetry.ColorRGB(255, 0, 0)},
		{telemetry.FieldActiveEffect, telemetry.ActiveEffect("")},
	}
	for _, c := range checks {
		obs, ok := update.Field(c.kind)
		if !ok {
			t.Errorf("field %v missing", c.kind)
			continue
		}
		if !obs.Value.Equal(c.want) {
			t.Errorf("field %v = %v, want %v", c.kind, obs.Value, c.want)
		}
	}

	// Kelvin 0 means colour mode; the field is absent, not zero.
	if _, ok := update.Field(telemetry.FieldColorTemperature); ok {
		t.Error("kelvin 0 was reported as a colour temperature")
	}
}

func TestDecodeSingleWhiteMode(t *testing.T) {
	d := NewDecoder(0)

	// kelvin 4000 little-endian at bytes 5-6, scene code 3 active.
	body := []byte{1, 100, 0, 0, 0, 0xA0, 0x0F, 0x03, 0x00}
	update, err := d.Decode(Frame{Device: testDevice, Payload: buildSingle(body), ReceivedAt: time.Now()})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if obs, ok := update.Field(telemetry.FieldColorTemperature); !ok || obs.Value.Kelvin != 4000 {
		t.Errorf("kelvin = %v, want 4000", obs.Value.Kelvin)
	}
	if obs, ok := update.Field(telemetry.FieldActiveEffect); !ok || obs.Value.EffectID != "3" {
		t.Error("active scene code 3 not reported")
	}
}

func TestDecodeSceneCodeZeroIsValid(t *testing.T) {
	d := NewDecoder(0)

	body := []byte{1, 50, 0, 255, 0, 0, 0, 0x00, 0x00}
	update, err := d.Decode(Frame{Device: testDevice, Payload: buildSingle(body), ReceivedAt: time.Now()})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	obs, ok := update.Field(telemetry.FieldActiveEffect)
	if !ok {
		t.Fatal("scene field missing")
	}
	if obs.Value.EffectID != "0" {
		t.Errorf("effect id = %q, want \"0\" (code zero is a real scene)", obs.Value.EffectID)
	}
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	d := NewDecoder(0)
	now := time.Now()

	corrupt := buildSingle([]byte{1, 50})
	corrupt[payloadSize] ^= 0xFF

	tests := []struct {
		name    string
		frame   Frame
		wantErr error
	}{
		{"short frame", Frame{Device: testDevice, Payload: make([]byte, 10), ReceivedAt: now}, ErrFrameTooShort},
		{"bad checksum", Frame{Device: testDevice, Payload: corrupt, ReceivedAt: now}, ErrChecksum},
		{"missing device", Frame{Payload: buildSingle([]byte{1}), ReceivedAt: now}, ErrMissingDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update, err := d.Decode(tt.frame)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if update != nil {
				t.Error("malformed frame produced an update")
			}
		})
	}
}

func TestDecodeUnknownRole(t *testing.T) {
	d := NewDecoder(0)

	payload := make([]byte, FrameSize)
	payload[0] = 0x77
	payload[payloadSize] = checksum(payload)

	if _, err := d.Decode(Frame{Device: testDevice, Payload: payload}); !errors.Is(err, ErrUnknownRole) {
		t.Errorf("error = %v, want ErrUnknownRole", err)
	}
}

func TestDecodeUnknownModelPartial(t *testing.T) {
	d := NewDecoder(0)
	unknown := telemetry.DeviceID{ID: "AA:BB:CC:DD", Model: "H9999"}

	body := []byte{1, 75, 255, 0, 0, 0, 0, 0xFF, 0xFF}
	update, err := d.Decode(Frame{Device: unknown, Payload: buildSingle(body), ReceivedAt: time.Now()})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	// Only the common fields decode; the rest are unsupported, not wrong.
	if obs, ok := update.Field(telemetry.FieldPower); !ok || !obs.Value.On {
		t.Error("power missing from partial decode")
	}
	if _, ok := update.Field(telemetry.FieldBrightness); ok {
		t.Error("brightness decoded for an unknown model")
	}
	if _, ok := update.Field(telemetry.FieldOnline); !ok {
		t.Error("liveness missing from partial decode")
	}
}

func TestDecodeDimOnlyModel(t *testing.T) {
	d := NewDecoder(0)
	strip := telemetry.DeviceID{ID: "AA:BB:CC:DD", Model: "H6141"}

	body := []byte{1, 40, 0, 0, 0, 0x98, 0x0A, 0x00, 0x00}
	update, err := d.Decode(Frame{Device: strip, Payload: buildSingle(body), ReceivedAt: time.Now()})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if obs, ok := update.Field(telemetry.FieldColorTemperature); !ok || obs.Value.Kelvin != 2712 {
		t.Error("kelvin missing from dim-only decode")
	}
	if _, ok := update.Field(telemetry.FieldColorRGB); ok {
		t.Error("colour decoded for a white-only strip")
	}
	if _, ok := update.Field(telemetry.FieldActiveEffect); ok {
		t.Error("scene decoded for a white-only strip")
	}
}

func TestFragmentReassemblyInOrder(t *testing.T) {
	d := NewDecoder(0)
	now := time.Now()

	// Two declared fragments: the first body byte is the count.
	first := append([]byte{2}, []byte{1, 60, 0, 255, 0, 0, 0, 0xFF, 0xFF}...)

	update, err := d.Decode(Frame{Device: testDevice, Payload: buildFragment(9, 0, first), ReceivedAt: now})
	if err != nil {
		t.Fatalf("first fragment error = %v", err)
	}
	if update != nil {
		t.Fatal("incomplete sequence produced an update")
	}
	if d.PendingSequences() != 1 {
		t.Errorf("PendingSequences() = %d, want 1", d.PendingSequences())
	}

	update, err = d.Decode(Frame{Device: testDevice, Payload: buildFragment(9, fragmentFinal, nil), ReceivedAt: now})
	if err != nil {
		t.Fatalf("final fragment error = %v", err)
	}
	if update == nil {
		t.Fatal("completed sequence produced no update")
	}
	if obs, ok := update.Field(telemetry.FieldBrightness); !ok || obs.Value.Percent != 60 {
		t.Error("reassembled update missing brightness=60")
	}
	if d.PendingSequences() != 0 {
		t.Errorf("PendingSequences() = %d after completion, want 0", d.PendingSequences())
	}
}

func TestFragmentReassemblyFinalFirst(t *testing.T) {
	d := NewDecoder(0)
	now := time.Now()

	// Final fragment arrives before the length-declaring first one.
	update, err := d.Decode(Frame{Device: testDevice, Payload: buildFragment(4, fragmentFinal, nil), ReceivedAt: now})
	if err != nil {
		t.Fatalf("final fragment error = %v", err)
	}
	if update != nil {
		t.Fatal("sequence completed before its first fragment")
	}

	first := append([]byte{2}, []byte{0, 30, 0, 0, 0, 0, 0, 0xFF, 0xFF}...)
	update, err = d.Decode(Frame{Device: testDevice, Payload: buildFragment(4, 0, first), ReceivedAt: now})
	if err != nil {
		t.Fatalf("first fragment error = %v", err)
	}
	if update == nil {
		t.Fatal("out-of-order sequence never completed")
	}
	if obs, ok := update.Field(telemetry.FieldPower); !ok || obs.Value.On {
		t.Error("reassembled update missing power=off")
	}
}

func TestFragmentSequencesIsolatedByDevice(t *testing.T) {
	d := NewDecoder(0)
	now := time.Now()
	other := telemetry.DeviceID{ID: "11:22:33:44", Model: "H6159"}

	first := append([]byte{2}, []byte{1}...)
	if _, err := d.Decode(Frame{Device: testDevice, Payload: buildFragment(5, 0, first), ReceivedAt: now}); err != nil {
		t.Fatal(err)
	}

	// Another device finishing sequence 5 must not complete ours.
	update, err := d.Decode(Frame{Device: other, Payload: buildFragment(5, fragmentFinal, nil), ReceivedAt: now})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if update != nil {
		t.Error("fragment sequences crossed devices")
	}
	if d.PendingSequences() != 2 {
		t.Errorf("PendingSequences() = %d, want 2", d.PendingSequences())
	}
}

func TestFragmentIndexOverflow(t *testing.T) {
	d := NewDecoder(0)
	now := time.Now()

	first := append([]byte{2}, []byte{1}...)
	if _, err := d.Decode(Frame{Device: testDevice, Payload: buildFragment(6, 0, first), ReceivedAt: now}); err != nil {
		t.Fatal(err)
	}

	_, err := d.Decode(Frame{Device: testDevice, Payload: buildFragment(6, 3, nil), ReceivedAt: now})
	if !errors.Is(err, ErrSequenceOverflow) {
		t.Errorf("error = %v, want ErrSequenceOverflow", err)
	}
	if d.PendingSequences() != 0 {
		t.Error("overflowing sequence was not discarded")
	}
}

func TestSweepExpired(t *testing.T) {
	d := NewDecoder(time.Second)
	start := time.Now()

	first := append([]byte{3}, []byte{1}...)
	if _, err := d.Decode(Frame{Device: testDevice, Payload: buildFragment(8, 0, first), ReceivedAt: start}); err != nil {
		t.Fatal(err)
	}

	if dropped := d.SweepExpired(start.Add(500 * time.Millisecond)); dropped != 0 {
		t.Errorf("SweepExpired() before timeout = %d, want 0", dropped)
	}
	if dropped := d.SweepExpired(start.Add(2 * time.Second)); dropped != 1 {
		t.Errorf("SweepExpired() after timeout = %d, want 1", dropped)
	}
	if d.PendingSequences() != 0 {
		t.Error("expired sequence still buffered")
	}
}
