package lanproto

import (
	"encoding/json"
	"fmt"
)

// Message type discriminators carried in msg.cmd.
const (
	CmdScan        = "scan"
	CmdDevStatus   = "devStatus"
	CmdAck         = "ack"
	CmdTurn        = "turn"
	CmdBrightness  = "brightness"
	CmdColorWC     = "colorwc"
	CmdPassthrough = "ptReal"
)

// envelope is the outer wire shape: {"msg":{"cmd":...,"data":{...}}}.
type envelope struct {
	Msg struct {
		Cmd  string          `json:"cmd"`
		Data json.RawMessage `json:"data"`
	} `json:"msg"`
}

// ScanResponse announces a device on the local network. It binds the
// device identity to an address; the listener collaborator keeps that
// binding for subsequent messages.
type ScanResponse struct {
	IP              string `json:"ip"`
	Device          string `json:"device"`
	SKU             string `json:"sku"`
	BLEVersionHard  string `json:"bleVersionHard,omitempty"`
	BLEVersionSoft  string `json:"bleVersionSoft,omitempty"`
	WifiVersionHard string `json:"wifiVersionHard,omitempty"`
	WifiVersionSoft string `json:"wifiVersionSoft,omitempty"`
}

// StatusResponse reports the device's current state.
// A colorTemInKelvin of 0 means the device is in colour mode; the colour
// members are then authoritative.
type StatusResponse struct {
	OnOff            int         `json:"onOff"`
	Brightness       int         `json:"brightness"`
	Color            StatusColor `json:"color"`
	ColorTemInKelvin int         `json:"colorTemInKelvin"`
}

// StatusColor is the RGB portion of a status response.
type StatusColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// AckResponse confirms a command, echoing the resulting state fields.
// Only the members matching the acknowledged command are populated.
type AckResponse struct {
	Cmd              string       `json:"cmd"`
	OnOff            *int         `json:"onOff,omitempty"`
	Brightness       *int         `json:"brightness,omitempty"`
	Color            *StatusColor `json:"color,omitempty"`
	ColorTemInKelvin *int         `json:"colorTemInKelvin,omitempty"`
}

// encode wraps a command and its data in the wire envelope.
func encode(cmd string, data any) ([]byte, error) {
	payload := map[string]any{
		"msg": map[string]any{
			"cmd":  cmd,
			"data": data,
		},
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s message: %w", cmd, err)
	}
	return out, nil
}

// EncodeScanRequest builds the multicast discovery request.
// The account topic is fixed by the protocol; devices answer with a
// ScanResponse to the requester.
func EncodeScanRequest() ([]byte, error) {
	return encode(CmdScan, map[string]any{"account_topic": "reserve"})
}

// EncodeStatusRequest builds a status query for the addressed device.
func EncodeStatusRequest() ([]byte, error) {
	return encode(CmdDevStatus, map[string]any{})
}

// EncodeTurn builds a power command.
func EncodeTurn(on bool) ([]byte, error) {
	value := 0
	if on {
		value = 1
	}
	return encode(CmdTurn, map[string]any{"value": value})
}

// EncodeBrightness builds a brightness command (0-100).
func EncodeBrightness(percent uint8) ([]byte, error) {
	if percent > 100 {
		percent = 100
	}
	return encode(CmdBrightness, map[string]any{"value": percent})
}

// EncodeColorRGB builds a colour command. Setting a colour implicitly
// clears the colour-temperature mode, so the kelvin member is zero.
func EncodeColorRGB(r, g, b uint8) ([]byte, error) {
	return encode(CmdColorWC, map[string]any{
		"color":            StatusColor{R: r, G: g, B: b},
		"colorTemInKelvin": 0,
	})
}

// EncodeColorTemperature builds a colour-temperature command in kelvin.
func EncodeColorTemperature(kelvin uint16) ([]byte, error) {
	return encode(CmdColorWC, map[string]any{
		"color":            StatusColor{},
		"colorTemInKelvin": kelvin,
	})
}

// EncodePassthrough builds a pass-through command carrying base64-encoded
// command lines (scene triggers use this path; the lines come from the
// catalog's compiled command template).
func EncodePassthrough(commandsB64 []string) ([]byte, error) {
	return encode(CmdPassthrough, map[string]any{"command": commandsB64})
}
