package lanproto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/lumen-bridge/internal/telemetry"
)

// Decoded is the result of decoding one inbound message: the transport
// update to feed into the bus, plus the scan/ack detail for callers that
// need it (the listener uses Scan to learn address bindings, the
// dispatcher uses Ack to clear pending commands).
type Decoded struct {
	Update *telemetry.TransportUpdate
	Scan   *ScanResponse
	Ack    *AckResponse
}

// Decode parses one inbound local-protocol message.
//
// The device identity is resolved by the listener collaborator from the
// datagram's source address; scan responses carry their own identity and
// may be decoded with a zero device.
//
// A message whose declared msg.cmd does not match its decodable fields is
// rejected with ErrMalformedMessage: logged and dropped by the caller,
// never fatal, never affecting other devices' streams.
func Decode(device telemetry.DeviceID, raw []byte, receivedAt time.Time) (Decoded, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Decoded{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	switch env.Msg.Cmd {
	case CmdScan:
		return decodeScan(env.Msg.Data, receivedAt)
	case CmdDevStatus:
		return decodeStatus(device, env.Msg.Data, receivedAt)
	case CmdAck:
		return decodeAck(device, env.Msg.Data, receivedAt)
	case "":
		return Decoded{}, fmt.Errorf("%w: missing msg.cmd", ErrMalformedMessage)
	default:
		return Decoded{}, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Msg.Cmd)
	}
}

func decodeScan(data json.RawMessage, receivedAt time.Time) (Decoded, error) {
	var scan ScanResponse
	if err := json.Unmarshal(data, &scan); err != nil {
		return Decoded{}, fmt.Errorf("%w: scan data: %w", ErrMalformedMessage, err)
	}
	if scan.Device == "" || scan.SKU == "" {
		return Decoded{}, fmt.Errorf("%w: scan response missing device identity", ErrMalformedMessage)
	}

	id := telemetry.DeviceID{ID: scan.Device, Model: scan.SKU}
	return Decoded{
		Update: &telemetry.TransportUpdate{
			Device:     id,
			Source:     telemetry.SourceLocalCommand,
			ObservedAt: receivedAt,
			Fields: []telemetry.FieldObservation{
				{Value: telemetry.Online(true), Timestamp: receivedAt},
			},
		},
		Scan: &scan,
	}, nil
}

func decodeStatus(device telemetry.DeviceID, data json.RawMessage, receivedAt time.Time) (Decoded, error) {
	if device.IsZero() {
		return Decoded{}, ErrMissingDevice
	}

	var status StatusResponse
	if err := json.Unmarshal(data, &status); err != nil {
		return Decoded{}, fmt.Errorf("%w: status data: %w", ErrMalformedMessage, err)
	}
	if status.OnOff != 0 && status.OnOff != 1 {
		return Decoded{}, fmt.Errorf("%w: status onOff=%d", ErrMalformedMessage, status.OnOff)
	}
	if status.Brightness < 0 || status.Brightness > 100 {
		return Decoded{}, fmt.Errorf("%w: status brightness=%d", ErrMalformedMessage, status.Brightness)
	}

	fields := []telemetry.FieldObservation{
		{Value: telemetry.Online(true), Timestamp: receivedAt},
		{Value: telemetry.Power(status.OnOff == 1), Timestamp: receivedAt},
		{Value: telemetry.Brightness(uint8(status.Brightness)), Timestamp: receivedAt},
	}
	// Kelvin and RGB are mutually exclusive modes on the wire: a non-zero
	// colorTemInKelvin means white mode, otherwise the colour members hold.
	if status.ColorTemInKelvin > 0 {
		fields = append(fields, telemetry.FieldObservation{
			Value:     telemetry.ColorTemperature(uint16(status.ColorTemInKelvin)),
			Timestamp: receivedAt,
		})
	} else {
		fields = append(fields, telemetry.FieldObservation{
			Value:     telemetry.ColorRGB(status.Color.R, status.Color.G, status.Color.B),
			Timestamp: receivedAt,
		})
	}

	return Decoded{
		Update: &telemetry.TransportUpdate{
			Device:     device,
			Source:     telemetry.SourceLocalCommand,
			ObservedAt: receivedAt,
			Fields:     fields,
		},
	}, nil
}

func decodeAck(device telemetry.DeviceID, data json.RawMessage, receivedAt time.Time) (Decoded, error) {
	if device.IsZero() {
		return Decoded{}, ErrMissingDevice
	}

	var ack AckResponse
	if err := json.Unmarshal(data, &ack); err != nil {
		return Decoded{}, fmt.Errorf("%w: ack data: %w", ErrMalformedMessage, err)
	}
	if ack.Cmd == "" {
		return Decoded{}, fmt.Errorf("%w: ack missing cmd", ErrMalformedMessage)
	}

	var fields []telemetry.FieldObservation
	if ack.OnOff != nil {
		if *ack.OnOff != 0 && *ack.OnOff != 1 {
			return Decoded{}, fmt.Errorf("%w: ack onOff=%d", ErrMalformedMessage, *ack.OnOff)
		}
		fields = append(fields, telemetry.FieldObservation{
			Value:     telemetry.Power(*ack.OnOff == 1),
			Timestamp: receivedAt,
		})
	}
	if ack.Brightness != nil {
		if *ack.Brightness < 0 || *ack.Brightness > 100 {
			return Decoded{}, fmt.Errorf("%w: ack brightness=%d", ErrMalformedMessage, *ack.Brightness)
		}
		fields = append(fields, telemetry.FieldObservation{
			Value:     telemetry.Brightness(uint8(*ack.Brightness)),
			Timestamp: receivedAt,
		})
	}
	if ack.Color != nil {
		fields = append(fields, telemetry.FieldObservation{
			Value:     telemetry.ColorRGB(ack.Color.R, ack.Color.G, ack.Color.B),
			Timestamp: receivedAt,
		})
	}
	if ack.ColorTemInKelvin != nil && *ack.ColorTemInKelvin > 0 {
		fields = append(fields, telemetry.FieldObservation{
			Value:     telemetry.ColorTemperature(uint16(*ack.ColorTemInKelvin)),
			Timestamp: receivedAt,
		})
	}
	if len(fields) == 0 {
		// An ack that echoes nothing still proves liveness but confirms no
		// fields: declared type without decodable fields is malformed.
		return Decoded{}, fmt.Errorf("%w: ack %q echoes no fields", ErrMalformedMessage, ack.Cmd)
	}

	fields = append(fields, telemetry.FieldObservation{
		Value:     telemetry.Online(true),
		Timestamp: receivedAt,
	})

	return Decoded{
		Update: &telemetry.TransportUpdate{
			Device:     device,
			Source:     telemetry.SourceLocalCommand,
			ObservedAt: receivedAt,
			Fields:     fields,
		},
		Ack: &ack,
	}, nil
}
