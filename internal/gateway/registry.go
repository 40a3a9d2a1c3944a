package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/lumen-bridge/internal/telemetry"
)

// Logger is the minimal logging interface the gateway components need.
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

// deviceEntry is the registry's per-device record.
type deviceEntry struct {
	id       telemetry.DeviceID
	addr     string // local IP, empty until a scan response binds one
	lastSeen time.Time
	stale    bool // already reported unreachable
}

// Registry tracks the known device fleet: identity, local address
// bindings learned from scan responses, and last-seen times used for
// local reachability. Bindings are persisted to SQLite so a restart
// starts from the last known fleet instead of an empty one.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	devices map[telemetry.DeviceID]*deviceEntry
	byTopic map[string]telemetry.DeviceID
	byAddr  map[string]telemetry.DeviceID

	// store is the persistence handle; nil disables persistence.
	store *sql.DB

	// offlineAfter marks a binding unreachable after this long without
	// any message from the device.
	offlineAfter time.Duration

	logger Logger
	clock  func() time.Time

	// onBind fires once per newly discovered device.
	onBind func(device telemetry.DeviceID)
}

// DefaultOfflineAfter is the local reachability horizon when none is
// configured.
const DefaultOfflineAfter = 30 * time.Second

// NewRegistry creates a registry. A nil store disables persistence.
func NewRegistry(store *sql.DB, offlineAfter time.Duration) *Registry {
	if offlineAfter <= 0 {
		offlineAfter = DefaultOfflineAfter
	}
	return &Registry{
		devices:      make(map[telemetry.DeviceID]*deviceEntry),
		byTopic:      make(map[string]telemetry.DeviceID),
		byAddr:       make(map[string]telemetry.DeviceID),
		store:        store,
		offlineAfter: offlineAfter,
		logger:       noopLogger{},
		clock:        time.Now,
	}
}

// SetLogger sets the registry logger.
func (r *Registry) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// SetOnBind registers the new-device callback. Must be set before the
// transports start feeding the registry.
func (r *Registry) SetOnBind(fn func(device telemetry.DeviceID)) {
	r.mu.Lock()
	r.onBind = fn
	r.mu.Unlock()
}

// Load restores the persisted fleet. Restored bindings start stale:
// reachability requires a fresh message after startup.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	rows, err := r.store.QueryContext(ctx,
		"SELECT id, model, ip_addr, last_seen FROM devices")
	if err != nil {
		return fmt.Errorf("loading device registry: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for rows.Next() {
		var (
			id, model, addr string
			lastSeen        time.Time
		)
		if err := rows.Scan(&id, &model, &addr, &lastSeen); err != nil {
			return fmt.Errorf("scanning device row: %w", err)
		}
		device := telemetry.DeviceID{ID: id, Model: model}
		entry := &deviceEntry{id: device, addr: addr, lastSeen: lastSeen, stale: true}
		r.devices[device] = entry
		r.byTopic[device.TopicID()] = device
		if addr != "" {
			r.byAddr[addr] = device
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating device rows: %w", err)
	}

	r.logger.Info("device registry loaded", "devices", count)
	return nil
}

// Bind records a device's local address from a scan response, creating
// the device on first sight. The binding is persisted best-effort.
func (r *Registry) Bind(ctx context.Context, device telemetry.DeviceID, addr string, at time.Time) {
	if device.IsZero() {
		return
	}

	r.mu.Lock()
	entry, known := r.devices[device]
	if !known {
		entry = &deviceEntry{id: device}
		r.devices[device] = entry
		r.byTopic[device.TopicID()] = device
	}
	if entry.addr != "" && entry.addr != addr {
		delete(r.byAddr, entry.addr)
	}
	entry.addr = addr
	entry.lastSeen = at
	entry.stale = false
	if addr != "" {
		r.byAddr[addr] = device
	}
	onBind := r.onBind
	r.mu.Unlock()

	if !known {
		r.logger.Info("device discovered",
			"device", device.String(),
			"addr", addr,
		)
		if onBind != nil {
			onBind(device)
		}
	}

	r.persist(ctx, device, addr, at)
}

// Touch refreshes a device's last-seen time. Unknown devices are ignored;
// identity comes from scan responses, not from arbitrary traffic.
func (r *Registry) Touch(device telemetry.DeviceID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.devices[device]; ok && at.After(entry.lastSeen) {
		entry.lastSeen = at
		entry.stale = false
	}
}

// ByAddr resolves the device bound to a local address.
func (r *Registry) ByAddr(addr string) (telemetry.DeviceID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	device, ok := r.byAddr[addr]
	return device, ok
}

// ByTopic resolves a device from its topic-safe identifier.
func (r *Registry) ByTopic(topicID string) (telemetry.DeviceID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	device, ok := r.byTopic[topicID]
	return device, ok
}

// Addr returns the device's local address binding.
func (r *Registry) Addr(device telemetry.DeviceID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.devices[device]
	if !ok || entry.addr == "" {
		return "", false
	}
	return entry.addr, true
}

// Reachable reports whether the device has a local address binding that
// has produced traffic within the reachability horizon.
func (r *Registry) Reachable(device telemetry.DeviceID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.devices[device]
	if !ok || entry.addr == "" {
		return false
	}
	return r.clock().Sub(entry.lastSeen) < r.offlineAfter
}

// Devices returns the known fleet.
func (r *Registry) Devices() []telemetry.DeviceID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]telemetry.DeviceID, 0, len(r.devices))
	for id := range r.devices {
		out = append(out, id)
	}
	return out
}

// Count returns the number of known devices.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// MarkStale returns devices whose bindings crossed the reachability
// horizon since the last call. Each device is reported once per lapse; a
// fresh Touch or Bind rearms it.
func (r *Registry) MarkStale(now time.Time) []telemetry.DeviceID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []telemetry.DeviceID
	for id, entry := range r.devices {
		if entry.stale || entry.addr == "" {
			continue
		}
		if now.Sub(entry.lastSeen) >= r.offlineAfter {
			entry.stale = true
			out = append(out, id)
		}
	}
	return out
}

// persist upserts the binding. Persistence failures are diagnostics, not
// faults: the in-memory registry stays authoritative.
func (r *Registry) persist(ctx context.Context, device telemetry.DeviceID, addr string, at time.Time) {
	if r.store == nil {
		return
	}
	_, err := r.store.ExecContext(ctx,
		`INSERT INTO devices (id, model, ip_addr, last_seen)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id, model) DO UPDATE SET
		   ip_addr = excluded.ip_addr,
		   last_seen = excluded.last_seen`,
		device.ID, device.Model, addr, at.UTC(),
	)
	if err != nil {
		r.logger.Warn("persisting device binding",
			"device", device.String(),
			"error", err,
		)
	}
}
