package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/lumen-bridge/internal/catalog"
	"github.com/nerrad567/lumen-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/lumen-bridge/internal/radio"
	"github.com/nerrad567/lumen-bridge/internal/telemetry"
)

// effectResolver maps advertised scene codes back to catalog effect ids.
// *CatalogManager satisfies this.
type effectResolver interface {
	CatalogFor(model string) (*catalog.EffectCatalog, bool)
}

// RadioIngest consumes raw advertisement frames forwarded by receiver
// relays. Relays publish each frame verbatim on
// lumen/radio/<device_id>/<model>; this component verifies, reassembles
// and decodes them, then feeds the resulting updates into the bus.
//
// Advertisements report the active scene as its raw vendor code. The
// rest of the system addresses effects by catalog id, so decoded codes
// are translated through the model's catalog before anything downstream
// sees them.
type RadioIngest struct {
	decoder *radio.Decoder
	conn    mqttConn
	sink    updateSink

	qos        byte
	sweepEvery time.Duration

	catalogs effectResolver
	confirm  confirmer

	logger Logger
	clock  func() time.Time
}

// NewRadioIngest creates the radio ingest path. reassemblyTimeout bounds
// how long a partial fragment sequence is retained.
func NewRadioIngest(conn mqttConn, sink updateSink, qos byte, reassemblyTimeout time.Duration) *RadioIngest {
	sweep := reassemblyTimeout / 2
	if sweep < time.Second {
		sweep = time.Second
	}
	return &RadioIngest{
		decoder:    radio.NewDecoder(reassemblyTimeout),
		conn:       conn,
		sink:       sink,
		qos:        qos,
		sweepEvery: sweep,
		logger:     noopLogger{},
		clock:      time.Now,
	}
}

// SetLogger sets the ingest and decoder loggers.
func (r *RadioIngest) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
		r.decoder.SetLogger(logger)
	}
}

// SetCatalogs wires the catalog source used to translate advertised
// scene codes into effect ids.
func (r *RadioIngest) SetCatalogs(catalogs effectResolver) {
	r.catalogs = catalogs
}

// SetConfirmer wires the dispatcher's confirmation handler, so an
// advertisement reporting a commanded value clears its pending entry.
func (r *RadioIngest) SetConfirmer(c confirmer) {
	r.confirm = c
}

// Start subscribes to the relay frame topics.
func (r *RadioIngest) Start() error {
	if err := r.conn.Subscribe(mqtt.Topics{}.AllRadioFrames(), r.qos, r.handleFrame); err != nil {
		return fmt.Errorf("subscribing to radio frames: %w", err)
	}
	return nil
}

// handleFrame decodes one raw advertisement frame. A malformed frame is
// an error for the subscription wrapper to log; it never affects other
// devices' sequences.
func (r *RadioIngest) handleFrame(topic string, payload []byte) error {
	device, err := deviceFromRadioTopic(topic)
	if err != nil {
		return err
	}

	update, err := r.decoder.Decode(radio.Frame{
		Device:     device,
		Payload:    payload,
		ReceivedAt: r.clock(),
	})
	if err != nil {
		return fmt.Errorf("dropping advertisement frame: %w", err)
	}
	if update == nil {
		// Valid fragment, sequence still incomplete.
		return nil
	}

	r.resolveEffectIDs(update)

	if r.confirm != nil {
		r.confirm.HandleConfirmation(*update)
	}

	if _, err := r.sink.Publish(*update); err != nil {
		return fmt.Errorf("publishing radio update for %s: %w", device, err)
	}
	return nil
}

// resolveEffectIDs rewrites advertised scene codes into catalog effect
// ids, the vocabulary state topics and pending commands speak. A code
// without a catalog entry keeps its decimal form so the observation is
// not lost.
func (r *RadioIngest) resolveEffectIDs(update *telemetry.TransportUpdate) {
	if r.catalogs == nil {
		return
	}
	for i, obs := range update.Fields {
		if obs.Value.Kind != telemetry.FieldActiveEffect || obs.Value.EffectID == "" {
			continue
		}
		code, err := strconv.ParseUint(obs.Value.EffectID, 10, 16)
		if err != nil {
			continue
		}
		cat, ok := r.catalogs.CatalogFor(update.Device.Model)
		if !ok {
			continue
		}
		if effect, ok := cat.ByCode(uint16(code)); ok {
			update.Fields[i].Value = telemetry.ActiveEffect(effect.ID)
		}
	}
}

// Run evicts stale fragment sequences until the context is done.
func (r *RadioIngest) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if dropped := r.decoder.SweepExpired(r.clock()); dropped > 0 {
				r.logger.Debug("swept incomplete advertisement sequences",
					"dropped", dropped,
				)
			}
		}
	}
}

// deviceFromRadioTopic parses "lumen/radio/<device_id>/<model>".
func deviceFromRadioTopic(topic string) (telemetry.DeviceID, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "lumen" || parts[1] != "radio" {
		return telemetry.DeviceID{}, fmt.Errorf("%w: %q", ErrBadTopic, topic)
	}
	if parts[2] == "" || parts[3] == "" {
		return telemetry.DeviceID{}, fmt.Errorf("%w: %q", ErrBadTopic, topic)
	}
	return telemetry.DeviceID{ID: parts[2], Model: parts[3]}, nil
}
