package reconcile

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/nerrad567/lumen-bridge/internal/bus"
	"github.com/nerrad567/lumen-bridge/internal/telemetry"
)

// Logger is the minimal logging interface the engine needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// OptimisticMatcher answers whether a local-command echo for a field falls
// inside the optimistic window of a matching pending command. Implemented
// by the command dispatcher.
type OptimisticMatcher interface {
	InWindow(device telemetry.DeviceID, value telemetry.FieldValue, at time.Time) bool
}

// noopMatcher matches nothing; used when no dispatcher is wired.
type noopMatcher struct{}

func (noopMatcher) InWindow(telemetry.DeviceID, telemetry.FieldValue, time.Time) bool {
	return false
}

// Config holds the engine tunables.
type Config struct {
	// DebounceFast/Medium/Slow are the change-notification hold windows
	// per source latency class. Zero emits immediately.
	DebounceFast   time.Duration
	DebounceMedium time.Duration
	DebounceSlow   time.Duration

	// SweepInterval is how often pending debounced emissions are flushed.
	SweepInterval time.Duration

	// EventBuffer sizes the outward notification channel.
	EventBuffer int
}

// Default engine tunables.
const (
	DefaultDebounceFast   = 0
	DefaultDebounceMedium = 500 * time.Millisecond
	DefaultDebounceSlow   = 2 * time.Second
	DefaultSweepInterval  = 100 * time.Millisecond
	DefaultEventBuffer    = 256
)

// pendingEmit is a debounce-held change notification.
type pendingEmit struct {
	value    telemetry.FieldValue
	source   telemetry.TransportSource
	ts       time.Time
	deadline time.Time
}

// fieldState is the engine-private per-field state: the authoritative
// record plus the debounce bookkeeping.
type fieldState struct {
	record telemetry.FieldRecord

	// published is the last value actually notified outward.
	published    telemetry.FieldValue
	hasPublished bool

	pending *pendingEmit
}

// deviceState is the engine-private per-device state. Owned exclusively
// by the engine task.
type deviceState struct {
	id        telemetry.DeviceID
	lifecycle telemetry.Lifecycle
	fields    map[telemetry.FieldKind]*fieldState
}

// Engine is the per-device state reconciliation engine.
type Engine struct {
	cfg     Config
	updates *bus.Bus
	matcher OptimisticMatcher
	logger  Logger
	clock   func() time.Time

	// devices is owned by the engine task; never touched elsewhere.
	devices map[telemetry.DeviceID]*deviceState

	// snapshot is the atomically swapped read view.
	snapshot atomic.Pointer[map[telemetry.DeviceID]telemetry.DeviceSnapshot]

	events   chan telemetry.ChangeEvent
	removals chan telemetry.DeviceID
}

// New creates an engine consuming the given bus.
func New(cfg Config, updates *bus.Bus) *Engine {
	if cfg.DebounceMedium == 0 {
		cfg.DebounceMedium = DefaultDebounceMedium
	}
	if cfg.DebounceSlow == 0 {
		cfg.DebounceSlow = DefaultDebounceSlow
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}

	e := &Engine{
		cfg:      cfg,
		updates:  updates,
		matcher:  noopMatcher{},
		logger:   noopLogger{},
		clock:    time.Now,
		devices:  make(map[telemetry.DeviceID]*deviceState),
		events:   make(chan telemetry.ChangeEvent, cfg.EventBuffer),
		removals: make(chan telemetry.DeviceID, 16),
	}
	empty := make(map[telemetry.DeviceID]telemetry.DeviceSnapshot)
	e.snapshot.Store(&empty)
	return e
}

// SetLogger sets the engine logger.
func (e *Engine) SetLogger(logger Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// SetMatcher wires the dispatcher's optimistic-window matcher. Must be
// called before Run.
func (e *Engine) SetMatcher(m OptimisticMatcher) {
	if m != nil {
		e.matcher = m
	}
}

// Events returns the outward change-notification stream: exactly one
// event per accepted, debounced, observably changed field.
func (e *Engine) Events() <-chan telemetry.ChangeEvent {
	return e.events
}

// Remove requests terminal removal of a device. Processed by the engine
// task between updates.
func (e *Engine) Remove(device telemetry.DeviceID) {
	select {
	case e.removals <- device:
	default:
		e.logger.Warn("removal queue full, dropping request", "device", device.String())
	}
}

// Run consumes the bus until the context is cancelled or the bus closes.
// It is the single writer of device state.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	// Consume in a helper goroutine so the sweep ticker keeps firing while
	// the bus is idle. The helper forwards; only this task mutates.
	incoming := make(chan telemetry.TransportUpdate)
	consumeErr := make(chan error, 1)
	go func() {
		for {
			update, err := e.updates.Consume(ctx)
			if err != nil {
				consumeErr <- err
				return
			}
			select {
			case incoming <- update:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-consumeErr:
			if errors.Is(err, bus.ErrClosed) {
				return nil
			}
			return err
		case update := <-incoming:
			e.processUpdate(update)
		case device := <-e.removals:
			delete(e.devices, device)
			e.publishSnapshot()
			e.logger.Info("device removed", "device", device.String())
		case <-ticker.C:
			e.sweepDebounce(e.clock())
		}
	}
}

// Snapshot returns the immutable reconciled state of one device.
func (e *Engine) Snapshot(device telemetry.DeviceID) (telemetry.DeviceSnapshot, bool) {
	snap := *e.snapshot.Load()
	s, ok := snap[device]
	return s, ok
}

// Snapshots returns the immutable reconciled state of every known device.
func (e *Engine) Snapshots() []telemetry.DeviceSnapshot {
	snap := *e.snapshot.Load()
	out := make([]telemetry.DeviceSnapshot, 0, len(snap))
	for _, s := range snap {
		out = append(out, s)
	}
	return out
}

// processUpdate applies one transport update, field by field.
func (e *Engine) processUpdate(update telemetry.TransportUpdate) {
	dev, ok := e.devices[update.Device]
	if !ok {
		dev = &deviceState{
			id:        update.Device,
			lifecycle: telemetry.LifecycleUnknown,
			fields:    make(map[telemetry.FieldKind]*fieldState, telemetry.FieldKindCount()),
		}
		e.devices[update.Device] = dev
	}

	changed := false
	for _, obs := range update.Fields {
		if e.mergeField(dev, update.Source, obs) {
			changed = true
		}
	}

	if changed {
		dev.refreshLifecycle()
		e.publishSnapshot()
	}
}

// mergeField applies the acceptance rule to one observation. Returns
// whether the authoritative record changed.
func (e *Engine) mergeField(dev *deviceState, source telemetry.TransportSource, obs telemetry.FieldObservation) bool {
	kind := obs.Value.Kind
	fs, ok := dev.fields[kind]
	if !ok {
		fs = &fieldState{}
		dev.fields[kind] = fs
		fs.record = telemetry.FieldRecord{Value: obs.Value, Source: source, Timestamp: obs.Timestamp}
		e.noteChange(dev, fs, source, obs)
		return true
	}

	newer := obs.Timestamp.After(fs.record.Timestamp)
	optimistic := !newer &&
		source == telemetry.SourceLocalCommand &&
		fs.record.Source.Rank() < telemetry.SourceLocalCommand.Rank() &&
		e.matcher.InWindow(dev.id, obs.Value, obs.Timestamp)

	if !newer && !optimistic {
		// Stale, not an error.
		e.logger.Debug("discarding stale observation",
			"device", dev.id.String(),
			"field", kind.String(),
			"source", source.String(),
		)
		return false
	}

	if newer && source.Rank() < fs.record.Source.Rank() &&
		e.matcher.InWindow(dev.id, fs.record.Value, obs.Timestamp) {
		// Fresh-but-divergent data from a lower-trust source inside an
		// optimistic window: accepted as fresh, logged for observability.
		// The next confirmation cycle corrects any divergence.
		e.logger.Debug("lower-trust update accepted inside optimistic window",
			"device", dev.id.String(),
			"field", kind.String(),
			"source", source.String(),
		)
	}

	valueChanged := !fs.record.Value.Equal(obs.Value)
	fs.record = telemetry.FieldRecord{Value: obs.Value, Source: source, Timestamp: obs.Timestamp}
	if valueChanged {
		e.noteChange(dev, fs, source, obs)
	}
	// Unchanged re-confirmations refresh the writer but never emit.
	return valueChanged
}

// noteChange runs the debounce policy for an accepted, changed field.
func (e *Engine) noteChange(dev *deviceState, fs *fieldState, source telemetry.TransportSource, obs telemetry.FieldObservation) {
	now := e.clock()
	window := e.window(source.LatencyClass())

	if fs.pending != nil {
		if fs.hasPublished && obs.Value.Equal(fs.published) {
			// Flap back to the published value inside the window: the held
			// notification and this one cancel out.
			fs.pending = nil
			return
		}
		// A further change: flush the held value, then hold the new one.
		e.emit(dev, fs, *fs.pending)
	}

	if window <= 0 {
		e.emit(dev, fs, pendingEmit{value: obs.Value, source: source, ts: obs.Timestamp})
		return
	}
	fs.pending = &pendingEmit{
		value:    obs.Value,
		source:   source,
		ts:       obs.Timestamp,
		deadline: now.Add(window),
	}
}

// emit sends one change notification and records it as published.
func (e *Engine) emit(dev *deviceState, fs *fieldState, p pendingEmit) {
	fs.pending = nil
	fs.published = p.value
	fs.hasPublished = true

	event := telemetry.ChangeEvent{
		Device:    dev.id,
		Field:     p.value,
		Source:    p.source,
		Timestamp: p.ts,
	}
	select {
	case e.events <- event:
	default:
		e.logger.Warn("event channel full, dropping change notification",
			"device", dev.id.String(),
			"field", p.value.Kind.String(),
		)
	}
}

// sweepDebounce flushes held notifications whose window has elapsed.
func (e *Engine) sweepDebounce(now time.Time) {
	for _, dev := range e.devices {
		for _, fs := range dev.fields {
			if fs.pending != nil && !now.Before(fs.pending.deadline) {
				e.emit(dev, fs, *fs.pending)
			}
		}
	}
}

// window maps a latency class to its debounce hold.
func (e *Engine) window(class telemetry.LatencyClass) time.Duration {
	switch class {
	case telemetry.LatencyFast:
		return e.cfg.DebounceFast
	case telemetry.LatencyMedium:
		return e.cfg.DebounceMedium
	default:
		return e.cfg.DebounceSlow
	}
}

// publishSnapshot swaps in a fresh immutable read view.
func (e *Engine) publishSnapshot() {
	next := make(map[telemetry.DeviceID]telemetry.DeviceSnapshot, len(e.devices))
	for id, dev := range e.devices {
		fields := make(map[telemetry.FieldKind]telemetry.FieldRecord, len(dev.fields))
		for kind, fs := range dev.fields {
			fields[kind] = fs.record
		}
		next[id] = telemetry.DeviceSnapshot{
			Device:    id,
			Lifecycle: dev.lifecycle,
			Fields:    fields,
		}
	}
	e.snapshot.Store(&next)
}

// refreshLifecycle advances the device state machine from the liveness
// field: Unknown until anything is known, then Online/Offline per the
// latest accepted liveness observation.
func (d *deviceState) refreshLifecycle() {
	if fs, ok := d.fields[telemetry.FieldOnline]; ok {
		if fs.record.Value.Online {
			d.lifecycle = telemetry.LifecycleOnline
		} else {
			d.lifecycle = telemetry.LifecycleOffline
		}
		return
	}
	if len(d.fields) > 0 {
		d.lifecycle = telemetry.LifecycleOnline
	}
}
