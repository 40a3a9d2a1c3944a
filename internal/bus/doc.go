// Package bus provides the ordered ingestion point merging transport
// updates from all transports into one consumption stream.
//
// Multiple producers (one per transport task) publish concurrently; the
// reconciliation engine is the single consumer. Delivery preserves receipt
// order per producer; there is no ordering guarantee across producers.
// Transports are independent clocks, reconciled downstream by timestamp
// rather than arrival order.
//
// Capacity is bounded. On saturation the bus evicts the oldest queued
// update from the lowest-trust source present (cloud poll first) before
// any higher-trust update is dropped: stale low-trust data is the cheapest
// to lose.
package bus
