package radio

import (
	"encoding/binary"
	"strconv"

	"github.com/nerrad567/lumen-bridge/internal/telemetry"
)

// fieldExtractor pulls one telemetry field out of a verified status body.
// It returns false when the body is too short for the field or the field
// carries its "not reported" sentinel; that is not an error, the field is
// simply absent from the resulting update.
type fieldExtractor func(body []byte) (telemetry.FieldValue, bool)

// schema maps a device model's status body layout to field extractors.
// Adding a decodable model is additive: register a new entry here.
type schema struct {
	extractors []fieldExtractor
}

// Status body layout offsets, relative to the byte after the role header.
//
//	byte 0      power (0x00 off, otherwise on)
//	byte 1      brightness percent (0-100)
//	bytes 2-4   RGB
//	bytes 5-6   colour temperature kelvin, little-endian, 0 = not reported
//	bytes 7-8   active scene code, little-endian, 0xFFFF = none
//
// Scene code 0x0000 is a valid, meaningful code; only 0xFFFF means "no
// active effect".
const (
	offPower      = 0
	offBrightness = 1
	offRGB        = 2
	offKelvin     = 5
	offScene      = 7

	// sceneNone is the "no active effect" sentinel.
	sceneNone = 0xFFFF
)

func extractPower(body []byte) (telemetry.FieldValue, bool) {
	if len(body) <= offPower {
		return telemetry.FieldValue{}, false
	}
	return telemetry.Power(body[offPower] != 0), true
}

func extractBrightness(body []byte) (telemetry.FieldValue, bool) {
	if len(body) <= offBrightness {
		return telemetry.FieldValue{}, false
	}
	return telemetry.Brightness(body[offBrightness]), true
}

func extractColorRGB(body []byte) (telemetry.FieldValue, bool) {
	if len(body) < offRGB+3 {
		return telemetry.FieldValue{}, false
	}
	return telemetry.ColorRGB(body[offRGB], body[offRGB+1], body[offRGB+2]), true
}

func extractColorTemperature(body []byte) (telemetry.FieldValue, bool) {
	if len(body) < offKelvin+2 {
		return telemetry.FieldValue{}, false
	}
	kelvin := binary.LittleEndian.Uint16(body[offKelvin:])
	if kelvin == 0 {
		// Devices report 0 kelvin while in colour mode.
		return telemetry.FieldValue{}, false
	}
	return telemetry.ColorTemperature(kelvin), true
}

func extractActiveScene(body []byte) (telemetry.FieldValue, bool) {
	if len(body) < offScene+2 {
		return telemetry.FieldValue{}, false
	}
	code := binary.LittleEndian.Uint16(body[offScene:])
	if code == sceneNone {
		return telemetry.ActiveEffect(""), true
	}
	return telemetry.ActiveEffect(strconv.Itoa(int(code))), true
}

// fullSchema covers models that advertise the complete status body.
var fullSchema = schema{
	extractors: []fieldExtractor{
		extractPower,
		extractBrightness,
		extractColorRGB,
		extractColorTemperature,
		extractActiveScene,
	},
}

// dimOnlySchema covers white-only strips: no colour or scene bytes.
var dimOnlySchema = schema{
	extractors: []fieldExtractor{
		extractPower,
		extractBrightness,
		extractColorTemperature,
	},
}

// commonSchema is the fallback for unknown model codes: only the fields
// every advertisement carries are decoded, the rest are unsupported rather
// than an error.
var commonSchema = schema{
	extractors: []fieldExtractor{
		extractPower,
	},
}

// schemaByModel selects body layouts by vendor model code.
var schemaByModel = map[string]schema{
	"H6159": fullSchema,
	"H6072": fullSchema,
	"H619C": fullSchema,
	"H6065": fullSchema,
	"H6141": dimOnlySchema,
}

// schemaFor returns the schema for a model code, and whether the model is
// known. Unknown models fall back to the common schema.
func schemaFor(model string) (schema, bool) {
	s, ok := schemaByModel[model]
	if !ok {
		return commonSchema, false
	}
	return s, true
}
