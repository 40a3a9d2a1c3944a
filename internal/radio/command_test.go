package radio

import (
	"bytes"
	"testing"
)

// verifyLine checks a command line is exactly one frame with a valid
// checksum and the expected leading bytes.
func verifyLine(t *testing.T, line, wantPrefix []byte) {
	t.Helper()
	if len(line) != FrameSize {
		t.Fatalf("line length = %d, want %d", len(line), FrameSize)
	}
	if checksum(line) != line[payloadSize] {
		t.Error("line checksum invalid")
	}
	if !bytes.HasPrefix(line, wantPrefix) {
		t.Errorf("line = % X, want prefix % X", line, wantPrefix)
	}
}

func TestEncodePowerCommand(t *testing.T) {
	verifyLine(t, EncodePowerCommand(true), []byte{0x33, 0x01, 0x01})
	verifyLine(t, EncodePowerCommand(false), []byte{0x33, 0x01, 0x00})
}

func TestEncodeBrightnessCommand(t *testing.T) {
	verifyLine(t, EncodeBrightnessCommand(75), []byte{0x33, 0x04, 75})

	// Out-of-range input clamps rather than erroring.
	verifyLine(t, EncodeBrightnessCommand(200), []byte{0x33, 0x04, 100})
}

func TestEncodeColorCommand(t *testing.T) {
	verifyLine(t, EncodeColorCommand(255, 128, 0), []byte{0x33, 0x05, 0x02, 255, 128, 0})
}

func TestEncodeColorTemperatureCommand(t *testing.T) {
	// 4000K = 0x0FA0, little-endian after three zero RGB bytes.
	verifyLine(t, EncodeColorTemperatureCommand(4000),
		[]byte{0x33, 0x05, 0x02, 0, 0, 0, 0xA0, 0x0F})
}

func TestEncodeSceneModeCommand(t *testing.T) {
	verifyLine(t, EncodeSceneModeCommand(0x1234, nil),
		[]byte{0x33, 0x05, 0x04, 0x34, 0x12})

	// Scene code 0 encodes like any other code.
	verifyLine(t, EncodeSceneModeCommand(0, []byte{0xAB}),
		[]byte{0x33, 0x05, 0x04, 0x00, 0x00, 0xAB})
}

func TestSegmentMultilineSingleLine(t *testing.T) {
	payload := []byte{1, 2, 3}
	lines, err := SegmentMultiline(0xA3, payload)
	if err != nil {
		t.Fatalf("SegmentMultiline() error = %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(lines))
	}

	// A lone line is still the final line.
	verifyLine(t, lines[0], []byte{0xA3, fragmentFinal, 0x01, 0x01, 1, 2, 3})
}

func TestSegmentMultilineSplits(t *testing.T) {
	// 2 framing bytes + 30 payload bytes = 32 framed bytes = 2 lines.
	payload := make([]byte, 30)
	for i := range payload {
		payload[i] = byte(i + 1)
	}

	lines, err := SegmentMultiline(0xA3, payload)
	if err != nil {
		t.Fatalf("SegmentMultiline() error = %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}

	verifyLine(t, lines[0], []byte{0xA3, 0x00, 0x01, 0x02, 1})
	verifyLine(t, lines[1], []byte{0xA3, fragmentFinal})

	// The split is contiguous: the second line resumes where the first
	// stopped (17 framed bytes in, i.e. payload byte 16).
	if lines[1][2] != 16 {
		t.Errorf("second line resumes at payload byte %d, want 16", lines[1][2])
	}
}

func TestSegmentMultilineTooLarge(t *testing.T) {
	if _, err := SegmentMultiline(0xA3, make([]byte, 17*0xFE)); err == nil {
		t.Error("SegmentMultiline() accepted a payload past the line limit")
	}
}
