// Package reconcile owns the authoritative per-device state.
//
// A single engine task consumes the transport update bus and applies the
// merge policy per field: a new observation wins if its timestamp is
// strictly newer than the field's last accepted writer, or if it is a
// local-command echo inside the optimistic window of a matching pending
// command. The echo rule stops stale cloud and radio polls from
// overwriting a just-issued command's effect. Updates failing both rules
// are stale, not errors, and are silently discarded.
//
// Only the engine task ever mutates device state (single-writer design,
// no per-field locking). Readers receive immutable snapshots swapped in
// atomically; a read never blocks a mutation and never observes a
// partially updated record.
//
// Change notifications are debounced per source latency class: a field
// that flaps back to its previously published value within the window
// emits nothing, and unchanged re-confirmations never emit.
package reconcile
