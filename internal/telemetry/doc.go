// Package telemetry defines the common telemetry representation shared by
// every transport: device identity, the per-field tagged value union,
// transport source ranking, and the TransportUpdate envelope produced by
// the frame decoders and consumed by the reconciliation engine.
//
// Types in this package are immutable after creation. A TransportUpdate is
// produced exactly once by a decoder and consumed exactly once by the
// engine; DeviceSnapshot values handed to readers are deep copies and are
// never mutated by the engine afterwards.
package telemetry
