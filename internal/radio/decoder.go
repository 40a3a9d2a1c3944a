package radio

import (
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/lumen-bridge/internal/telemetry"
)

// Logger is the minimal logging interface the decoder needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// DefaultReassemblyTimeout bounds how long an incomplete fragment
// sequence is held before eviction.
const DefaultReassemblyTimeout = 5 * time.Second

// reassemblyKey identifies one in-flight fragment sequence.
type reassemblyKey struct {
	device telemetry.DeviceID
	seq    byte
}

// sequenceBuffer accumulates fragments for one sequence.
type sequenceBuffer struct {
	fragments map[int][]byte // index → fragment body
	expected  int            // declared fragment count, 0 until first fragment seen
	finalSeen bool
	firstSeen time.Time
}

// Decoder turns raw advertisement frames into transport updates.
//
// Decode is a pure function of the frame bytes apart from the fragment
// reassembly buffer, which is keyed per (device, sequence) and evicted on
// timeout to bound memory. All methods are safe for concurrent use, though
// in practice a single scanning task owns a Decoder.
type Decoder struct {
	mu      sync.Mutex
	pending map[reassemblyKey]*sequenceBuffer

	timeout time.Duration
	logger  Logger
}

// NewDecoder creates a decoder with the given reassembly timeout.
// A timeout of 0 selects DefaultReassemblyTimeout.
func NewDecoder(timeout time.Duration) *Decoder {
	if timeout <= 0 {
		timeout = DefaultReassemblyTimeout
	}
	return &Decoder{
		pending: make(map[reassemblyKey]*sequenceBuffer),
		timeout: timeout,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger used for decode diagnostics.
func (d *Decoder) SetLogger(logger Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// Decode processes one advertisement frame.
//
// Returns:
//   - (*TransportUpdate, nil): a complete status was decoded
//   - (nil, nil): the frame was a valid fragment, sequence still incomplete
//   - (nil, error): the frame was malformed and dropped; the error is a
//     diagnostic for the caller to log, never fatal
func (d *Decoder) Decode(frame Frame) (*telemetry.TransportUpdate, error) {
	if frame.Device.IsZero() {
		return nil, ErrMissingDevice
	}

	payload, err := verifyFrame(frame.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w (device %s)", err, frame.Device)
	}

	switch payload[0] {
	case roleSingle:
		return d.decodeBody(frame.Device, payload[1:], frame.ReceivedAt), nil
	case roleFragment:
		return d.ingestFragment(frame, payload)
	default:
		return nil, fmt.Errorf("%w: header 0x%02X (device %s)", ErrUnknownRole, payload[0], frame.Device)
	}
}

// ingestFragment buffers one fragment and, when its sequence completes,
// decodes the concatenated body. Caller has already verified the checksum.
func (d *Decoder) ingestFragment(frame Frame, payload []byte) (*telemetry.TransportUpdate, error) {
	seq := payload[1]
	idx := payload[2]
	body := payload[3:]

	key := reassemblyKey{device: frame.Device, seq: seq}

	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.pending[key]
	if !ok {
		buf = &sequenceBuffer{
			fragments: make(map[int][]byte),
			firstSeen: frame.ReceivedAt,
		}
		d.pending[key] = buf
	}

	// The first fragment declares the sequence length in its first body
	// byte; the final fragment carries the 0xFF marker instead of an index.
	switch {
	case idx == fragmentFinal:
		buf.finalSeen = true
		if buf.expected > 0 {
			if err := buf.store(buf.expected-1, body); err != nil {
				return nil, err
			}
		} else {
			// Length not yet known: park the final fragment under a
			// provisional slot, repositioned once the first arrives.
			if err := buf.store(-1, body); err != nil {
				return nil, err
			}
		}
	case idx == 0:
		if len(body) == 0 || body[0] == 0 {
			delete(d.pending, key)
			return nil, fmt.Errorf("%w: sequence %d declares no fragments", ErrSequenceOverflow, seq)
		}
		buf.expected = int(body[0])
		if err := buf.store(0, body[1:]); err != nil {
			return nil, err
		}
		if parked, ok := buf.fragments[-1]; ok {
			delete(buf.fragments, -1)
			if err := buf.store(buf.expected-1, parked); err != nil {
				return nil, err
			}
		}
	default:
		if buf.expected > 0 && int(idx) >= buf.expected {
			delete(d.pending, key)
			return nil, fmt.Errorf("%w: index %d of %d (device %s)", ErrSequenceOverflow, idx, buf.expected, frame.Device)
		}
		if err := buf.store(int(idx), body); err != nil {
			return nil, err
		}
	}

	if !buf.complete() {
		return nil, nil
	}

	delete(d.pending, key)
	assembled := buf.assemble()
	d.logger.Debug("reassembled advertisement sequence",
		"device", frame.Device.String(),
		"sequence", seq,
		"fragments", buf.expected,
		"bytes", len(assembled),
	)
	return d.decodeBody(frame.Device, assembled, frame.ReceivedAt), nil
}

// decodeBody maps a verified status body through the model's schema table.
// Partial decode is a success: unknown models yield only the common fields.
func (d *Decoder) decodeBody(device telemetry.DeviceID, body []byte, receivedAt time.Time) *telemetry.TransportUpdate {
	s, known := schemaFor(device.Model)
	if !known {
		d.logger.Debug("unknown model code, decoding common fields only",
			"device", device.String(),
		)
	}

	// An advertisement is itself a liveness proof.
	fields := []telemetry.FieldObservation{
		{Value: telemetry.Online(true), Timestamp: receivedAt},
	}
	for _, extract := range s.extractors {
		if value, ok := extract(body); ok {
			fields = append(fields, telemetry.FieldObservation{Value: value, Timestamp: receivedAt})
		}
	}

	return &telemetry.TransportUpdate{
		Device:     device,
		Source:     telemetry.SourceRadioAdvertisement,
		ObservedAt: receivedAt,
		Fields:     fields,
	}
}

// SweepExpired evicts fragment sequences older than the reassembly
// timeout, returning how many were dropped. Intended to be called from a
// periodic sweep by the owning task.
func (d *Decoder) SweepExpired(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	dropped := 0
	for key, buf := range d.pending {
		if now.Sub(buf.firstSeen) >= d.timeout {
			delete(d.pending, key)
			dropped++
			d.logger.Warn("dropped incomplete advertisement sequence",
				"device", key.device.String(),
				"sequence", key.seq,
				"age", now.Sub(buf.firstSeen).String(),
			)
		}
	}
	return dropped
}

// PendingSequences reports how many fragment sequences are buffered.
func (d *Decoder) PendingSequences() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// store records one fragment body, rejecting conflicting duplicates.
func (b *sequenceBuffer) store(idx int, body []byte) error {
	if existing, ok := b.fragments[idx]; ok {
		if !bytesEqual(existing, body) {
			return fmt.Errorf("%w: index %d", ErrFragmentConflict, idx)
		}
		return nil
	}
	copied := make([]byte, len(body))
	copy(copied, body)
	b.fragments[idx] = copied
	return nil
}

// complete reports whether every declared fragment has arrived.
func (b *sequenceBuffer) complete() bool {
	if b.expected == 0 || !b.finalSeen {
		return false
	}
	for i := 0; i < b.expected; i++ {
		if _, ok := b.fragments[i]; !ok {
			return false
		}
	}
	return true
}

// assemble concatenates fragment bodies in sequence order. Zero padding
// from the fixed frame size is kept: a trailing zero can be meaningful
// (scene code 0 is a valid code) and the schema extractors read fixed
// offsets regardless.
func (b *sequenceBuffer) assemble() []byte {
	var out []byte
	for i := 0; i < b.expected; i++ {
		out = append(out, b.fragments[i]...)
	}
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
