package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/lumen-bridge/internal/catalog"
	"github.com/nerrad567/lumen-bridge/internal/lanproto"
	"github.com/nerrad567/lumen-bridge/internal/radio"
	"github.com/nerrad567/lumen-bridge/internal/telemetry"
)

// Logger is the minimal logging interface the dispatcher needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Sender delivers encoded command payloads to a device over one
// transport. Implemented by collaborators; the dispatcher supplies the
// retry and timeout policy.
type Sender interface {
	Send(ctx context.Context, device telemetry.DeviceID, payloads [][]byte) error
}

// LocalSender is the local-network transport: a Sender that also knows
// whether it can currently reach a device.
type LocalSender interface {
	Sender
	Reachable(device telemetry.DeviceID) bool
}

// UpdatePublisher feeds optimistic updates into the transport update bus.
// *bus.Bus satisfies this.
type UpdatePublisher interface {
	Publish(update telemetry.TransportUpdate) (bool, error)
}

// CatalogProvider resolves the built effect catalog for a device model.
type CatalogProvider interface {
	CatalogFor(model string) (*catalog.EffectCatalog, bool)
}

// Intent is one control request: concrete field values, an effect id or
// display name, or both.
type Intent struct {
	Device     telemetry.DeviceID
	Fields     []telemetry.FieldValue
	EffectID   string
	EffectName string
}

// PendingCommand tracks one dispatched field awaiting confirmation.
type PendingCommand struct {
	ID        string
	Device    telemetry.DeviceID
	Desired   telemetry.FieldValue
	Transport telemetry.TransportSource
	IssuedAt  time.Time
	Expiry    time.Time
}

// pendingKey addresses the pending table: a newer command for the same
// device+field supersedes the older entry.
type pendingKey struct {
	device telemetry.DeviceID
	kind   telemetry.FieldKind
}

// Config holds the dispatcher tunables.
type Config struct {
	// OptimisticWindow bounds how long a dispatched value is treated as
	// provisionally authoritative ahead of confirmation.
	OptimisticWindow time.Duration

	// RetryBudget is the number of local-transport attempts before
	// falling back to cloud.
	RetryBudget int

	// RetryBackoff is the base delay between local retries, doubled per
	// attempt.
	RetryBackoff time.Duration

	// SweepInterval is how often expired pending entries are collected.
	SweepInterval time.Duration
}

// Default dispatcher tunables.
const (
	DefaultOptimisticWindow = 10 * time.Second
	DefaultRetryBudget      = 3
	DefaultRetryBackoff     = 250 * time.Millisecond
	DefaultSweepInterval    = time.Second
)

// Dispatcher owns the pending-command table and the transport selection
// policy. The table is private; a single mutex serialises dispatch,
// acknowledgement and expiry (contention is expected to be low).
type Dispatcher struct {
	cfg      Config
	local    LocalSender
	cloud    Sender
	bus      UpdatePublisher
	catalogs CatalogProvider
	logger   Logger
	clock    func() time.Time

	mu      sync.Mutex
	pending map[pendingKey]*PendingCommand

	// onTimeout is invoked for each command that expires unconfirmed.
	onTimeout func(cmd PendingCommand)
}

// New creates a dispatcher.
func New(cfg Config, local LocalSender, cloud Sender, bus UpdatePublisher, catalogs CatalogProvider) *Dispatcher {
	if cfg.OptimisticWindow <= 0 {
		cfg.OptimisticWindow = DefaultOptimisticWindow
	}
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = DefaultRetryBudget
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	return &Dispatcher{
		cfg:      cfg,
		local:    local,
		cloud:    cloud,
		bus:      bus,
		catalogs: catalogs,
		logger:   noopLogger{},
		clock:    time.Now,
		pending:  make(map[pendingKey]*PendingCommand),
	}
}

// SetLogger sets the dispatcher logger.
func (d *Dispatcher) SetLogger(logger Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// SetTimeoutHandler registers the per-command timeout callback (the
// gateway uses it to trigger a convergence poll and surface the
// diagnostic).
func (d *Dispatcher) SetTimeoutHandler(fn func(cmd PendingCommand)) {
	d.mu.Lock()
	d.onTimeout = fn
	d.mu.Unlock()
}

// Dispatch resolves and sends one control intent.
//
// The desired values are registered as pending and fed into the update
// bus optimistically before the send completes; a total send failure
// withdraws the pending entries and returns the error.
func (d *Dispatcher) Dispatch(ctx context.Context, intent Intent) error {
	desired := append([]telemetry.FieldValue{}, intent.Fields...)

	var effect catalog.Effect
	haveEffect := false
	if intent.EffectID != "" || intent.EffectName != "" {
		resolved, err := d.resolveEffect(intent)
		if err != nil {
			return err
		}
		effect = resolved
		haveEffect = true
		desired = append(desired, telemetry.ActiveEffect(effect.ID))
	}
	if len(desired) == 0 {
		return ErrEmptyIntent
	}

	useLocal := d.local != nil && d.local.Reachable(intent.Device)
	transport := telemetry.SourceCloudPush
	if useLocal {
		transport = telemetry.SourceLocalCommand
	}

	now := d.clock()
	cmds := d.register(intent.Device, desired, transport, now)
	d.publishOptimistic(intent.Device, desired, now)

	var err error
	if useLocal {
		err = d.sendLocal(ctx, intent.Device, desired, effect, haveEffect)
		if err != nil {
			d.logger.Warn("local dispatch exhausted retries, falling back to cloud",
				"device", intent.Device.String(),
				"error", err,
			)
			useLocal = false
		}
	}
	if !useLocal {
		if d.cloud == nil {
			d.withdraw(cmds)
			return ErrTransportUnavailable
		}
		err = d.cloud.Send(ctx, intent.Device, cloudFrames(desired, effect, haveEffect))
		if err != nil {
			d.withdraw(cmds)
			return fmt.Errorf("%w: cloud send: %w", ErrTransportUnavailable, err)
		}
	}

	d.logger.Info("command dispatched",
		"device", intent.Device.String(),
		"transport", transport.String(),
		"fields", len(desired),
	)
	return nil
}

// resolveEffect maps an intent's effect reference through the catalog.
func (d *Dispatcher) resolveEffect(intent Intent) (catalog.Effect, error) {
	cat, ok := d.catalogs.CatalogFor(intent.Device.Model)
	if !ok {
		return catalog.Effect{}, fmt.Errorf("%w: %s", ErrNoCatalog, intent.Device.Model)
	}
	if intent.EffectID != "" {
		if e, err := cat.ByID(intent.EffectID); err == nil {
			return e, nil
		}
	}
	if intent.EffectName != "" {
		if e, err := cat.ByName(intent.EffectName); err == nil {
			return e, nil
		}
	}
	ref := intent.EffectID
	if ref == "" {
		ref = intent.EffectName
	}
	return catalog.Effect{}, fmt.Errorf("%w: %q on %s", ErrUnknownEffect, ref, intent.Device.Model)
}

// sendLocal encodes and sends over the local protocol, retrying within
// the budget with doubling backoff.
func (d *Dispatcher) sendLocal(ctx context.Context, device telemetry.DeviceID, desired []telemetry.FieldValue, effect catalog.Effect, haveEffect bool) error {
	payloads, err := localPayloads(desired, effect, haveEffect)
	if err != nil {
		return err
	}

	backoff := d.cfg.RetryBackoff
	var lastErr error
	for attempt := 1; attempt <= d.cfg.RetryBudget; attempt++ {
		lastErr = d.local.Send(ctx, device, payloads)
		if lastErr == nil {
			return nil
		}
		d.logger.Debug("local send failed",
			"device", device.String(),
			"attempt", attempt,
			"error", lastErr,
		)
		if attempt == d.cfg.RetryBudget {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return lastErr
}

// register creates pending entries for every targeted field, superseding
// older commands for the same fields.
func (d *Dispatcher) register(device telemetry.DeviceID, desired []telemetry.FieldValue, transport telemetry.TransportSource, now time.Time) []*PendingCommand {
	d.mu.Lock()
	defer d.mu.Unlock()

	cmds := make([]*PendingCommand, 0, len(desired))
	for _, value := range desired {
		cmd := &PendingCommand{
			ID:        uuid.NewString(),
			Device:    device,
			Desired:   value,
			Transport: transport,
			IssuedAt:  now,
			Expiry:    now.Add(d.cfg.OptimisticWindow),
		}
		d.pending[pendingKey{device: device, kind: value.Kind}] = cmd
		cmds = append(cmds, cmd)
	}
	return cmds
}

// withdraw removes pending entries after a total send failure, unless a
// newer command already superseded them.
func (d *Dispatcher) withdraw(cmds []*PendingCommand) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cmd := range cmds {
		key := pendingKey{device: cmd.Device, kind: cmd.Desired.Kind}
		if current, ok := d.pending[key]; ok && current.ID == cmd.ID {
			delete(d.pending, key)
		}
	}
}

// publishOptimistic feeds the desired values into the update bus so
// downstream state reflects intent ahead of confirmation.
func (d *Dispatcher) publishOptimistic(device telemetry.DeviceID, desired []telemetry.FieldValue, now time.Time) {
	fields := make([]telemetry.FieldObservation, 0, len(desired))
	for _, value := range desired {
		fields = append(fields, telemetry.FieldObservation{Value: value, Timestamp: now})
	}
	_, err := d.bus.Publish(telemetry.TransportUpdate{
		Device:     device,
		Source:     telemetry.SourceLocalCommand,
		ObservedAt: now,
		Fields:     fields,
	})
	if err != nil {
		d.logger.Error("publishing optimistic update", "device", device.String(), "error", err)
	}
}

// HandleConfirmation clears pending entries confirmed by a decoded
// acknowledgement or status update from the device.
func (d *Dispatcher) HandleConfirmation(update telemetry.TransportUpdate) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, obs := range update.Fields {
		key := pendingKey{device: update.Device, kind: obs.Value.Kind}
		cmd, ok := d.pending[key]
		if !ok {
			continue
		}
		if cmd.Desired.Equal(obs.Value) {
			delete(d.pending, key)
			d.logger.Debug("command confirmed",
				"device", update.Device.String(),
				"field", obs.Value.Kind.String(),
				"command_id", cmd.ID,
			)
		}
	}
}

// InWindow implements the reconciliation engine's optimistic matcher: a
// pending command for this device targets this exact value and has not
// expired at the given instant.
func (d *Dispatcher) InWindow(device telemetry.DeviceID, value telemetry.FieldValue, at time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	cmd, ok := d.pending[pendingKey{device: device, kind: value.Kind}]
	if !ok {
		return false
	}
	return cmd.Desired.Equal(value) && at.Before(cmd.Expiry)
}

// PendingCount reports the number of unconfirmed commands.
func (d *Dispatcher) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Sweep drops expired pending entries, surfacing each as a dispatch
// timeout. The optimistic value is not rolled back; the next genuine
// observation supersedes it under the merge rule.
func (d *Dispatcher) Sweep(now time.Time) int {
	d.mu.Lock()
	var expired []PendingCommand
	for key, cmd := range d.pending {
		if !now.Before(cmd.Expiry) {
			expired = append(expired, *cmd)
			delete(d.pending, key)
		}
	}
	onTimeout := d.onTimeout
	d.mu.Unlock()

	for _, cmd := range expired {
		d.logger.Warn("dispatch timeout",
			"device", cmd.Device.String(),
			"field", cmd.Desired.Kind.String(),
			"command_id", cmd.ID,
			"error", ErrDispatchTimeout,
		)
		if onTimeout != nil {
			onTimeout(cmd)
		}
	}
	return len(expired)
}

// Run sweeps the pending table periodically until the context is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.Sweep(d.clock())
		}
	}
}

// localPayloads encodes the desired values as local-protocol messages.
func localPayloads(desired []telemetry.FieldValue, effect catalog.Effect, haveEffect bool) ([][]byte, error) {
	var payloads [][]byte
	for _, value := range desired {
		var (
			msg []byte
			err error
		)
		switch value.Kind {
		case telemetry.FieldPower:
			msg, err = lanproto.EncodeTurn(value.On)
		case telemetry.FieldBrightness:
			msg, err = lanproto.EncodeBrightness(value.Percent)
		case telemetry.FieldColorRGB:
			msg, err = lanproto.EncodeColorRGB(value.R, value.G, value.B)
		case telemetry.FieldColorTemperature:
			msg, err = lanproto.EncodeColorTemperature(value.Kelvin)
		case telemetry.FieldActiveEffect:
			continue // handled below via the compiled template
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, msg)
	}
	if haveEffect {
		msg, err := lanproto.EncodePassthrough(effect.CommandsBase64())
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, msg)
	}
	return payloads, nil
}

// cloudFrames encodes the desired values as raw command lines for the
// cloud transport, which carries them base64-encoded to the device.
func cloudFrames(desired []telemetry.FieldValue, effect catalog.Effect, haveEffect bool) [][]byte {
	var frames [][]byte
	for _, value := range desired {
		switch value.Kind {
		case telemetry.FieldPower:
			frames = append(frames, radio.EncodePowerCommand(value.On))
		case telemetry.FieldBrightness:
			frames = append(frames, radio.EncodeBrightnessCommand(value.Percent))
		case telemetry.FieldColorRGB:
			frames = append(frames, radio.EncodeColorCommand(value.R, value.G, value.B))
		case telemetry.FieldColorTemperature:
			frames = append(frames, radio.EncodeColorTemperatureCommand(value.Kelvin))
		}
	}
	if haveEffect {
		frames = append(frames, effect.Commands...)
	}
	return frames
}
