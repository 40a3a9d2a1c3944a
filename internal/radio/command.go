package radio

import "fmt"

// Command opcodes (vendor scheme v1.2). Set commands are 0x33-prefixed;
// devices notify with 0xAA-prefixed frames of the same layout.
const (
	opSet = 0x33

	cmdPower      = 0x01
	cmdBrightness = 0x04
	cmdMode       = 0x05

	// modeColor and modeScene are the 0x33 0x05 sub-commands.
	modeColor = 0x02
	modeScene = 0x04
)

// Finish pads a command to 19 bytes and appends the XOR checksum,
// producing one complete 20-byte command line.
func Finish(data []byte) []byte {
	line := make([]byte, FrameSize)
	copy(line, data)
	line[payloadSize] = checksum(line)
	return line
}

// EncodePowerCommand builds the power on/off command line.
func EncodePowerCommand(on bool) []byte {
	value := byte(0)
	if on {
		value = 1
	}
	return Finish([]byte{opSet, cmdPower, value})
}

// EncodeBrightnessCommand builds the brightness command line (0-100).
func EncodeBrightnessCommand(percent uint8) []byte {
	if percent > 100 {
		percent = 100
	}
	return Finish([]byte{opSet, cmdBrightness, percent})
}

// EncodeColorCommand builds the RGB colour command line.
func EncodeColorCommand(r, g, b uint8) []byte {
	return Finish([]byte{opSet, cmdMode, modeColor, r, g, b})
}

// EncodeColorTemperatureCommand builds the colour-temperature command
// line. The RGB bytes are zero and the kelvin value follows little-endian,
// mirroring the status layout.
func EncodeColorTemperatureCommand(kelvin uint16) []byte {
	return Finish([]byte{
		opSet, cmdMode, modeColor,
		0, 0, 0,
		byte(kelvin & 0xFF), byte(kelvin >> 8),
	})
}

// EncodeSceneModeCommand builds the scene trigger line: sub-command 0x04
// with the little-endian scene code and an optional model-specific suffix.
// Scene code 0 is a valid code and encodes like any other.
func EncodeSceneModeCommand(code uint16, suffix []byte) []byte {
	data := []byte{opSet, cmdMode, modeScene, byte(code & 0xFF), byte(code >> 8)}
	data = append(data, suffix...)
	return Finish(data)
}

// SegmentMultiline splits a scene parameter payload into fragment command
// lines for models that require the multi-line upload: each line carries
// the model's multi-line prefix byte, a line index (final line 0xFF), and
// up to 17 payload bytes. The payload is prefixed with 0x01 and the total
// line count before segmentation, per the vendor scheme.
//
// Parameters:
//   - multiPrefix: the model's multi-line prefix byte (commonly 0xA3)
//   - payload: the prefix-adjusted scene parameter bytes
//
// Returns:
//   - [][]byte: complete 20-byte lines, in transmission order
//   - error: if the payload would exceed the 255-line protocol limit
func SegmentMultiline(multiPrefix byte, payload []byte) ([][]byte, error) {
	const lineBody = 17

	// The framed payload starts with 0x01 and the line count byte; the
	// count covers the framed payload itself.
	framedLen := 2 + len(payload)
	numLines := (framedLen + lineBody - 1) / lineBody
	if numLines < 1 {
		numLines = 1
	}
	if numLines > 0xFE {
		return nil, fmt.Errorf("radio: scene payload needs %d lines, exceeding protocol limit", numLines)
	}

	framed := make([]byte, 0, framedLen)
	framed = append(framed, 0x01, byte(numLines))
	framed = append(framed, payload...)

	lines := make([][]byte, 0, numLines)
	for i := 0; i < numLines; i++ {
		index := byte(i)
		if i == numLines-1 {
			index = fragmentFinal
		}
		start := i * lineBody
		end := start + lineBody
		if end > len(framed) {
			end = len(framed)
		}
		line := append([]byte{multiPrefix, index}, framed[start:end]...)
		lines = append(lines, Finish(line))
	}
	return lines, nil
}
