package radio

import (
	"time"

	"github.com/nerrad567/lumen-bridge/internal/telemetry"
)

// Advertisement frame constants (vendor scheme v1.2).
const (
	// FrameSize is the fixed advertisement frame size: 19 payload bytes
	// plus one checksum byte.
	FrameSize = 20

	// payloadSize is the checksummed portion of a frame.
	payloadSize = FrameSize - 1

	// roleSingle marks a self-contained status advertisement.
	roleSingle = 0xAA

	// roleFragment marks one fragment of a multi-frame sequence.
	roleFragment = 0xA3

	// fragmentFinal is the index byte marking a sequence's last fragment.
	fragmentFinal = 0xFF

	// fragmentBodySize is the telemetry payload carried per fragment:
	// the 19 checksummed bytes minus header, sequence id and index.
	fragmentBodySize = payloadSize - 3
)

// Frame is one raw advertisement as handed over by the scanning
// collaborator, tagged with the originating device and receipt time.
type Frame struct {
	Device     telemetry.DeviceID
	Payload    []byte
	ReceivedAt time.Time
}

// checksum computes the XOR checksum over the first 19 bytes, per the
// vendor's v1.2 framing.
func checksum(data []byte) byte {
	var sum byte
	for _, b := range data[:payloadSize] {
		sum ^= b
	}
	return sum
}

// verifyFrame checks length and checksum. The returned slice is the
// 19-byte checksummed payload (header included, checksum excluded).
func verifyFrame(payload []byte) ([]byte, error) {
	if len(payload) < FrameSize {
		return nil, ErrFrameTooShort
	}
	payload = payload[:FrameSize]
	if checksum(payload) != payload[payloadSize] {
		return nil, ErrChecksum
	}
	return payload[:payloadSize], nil
}
