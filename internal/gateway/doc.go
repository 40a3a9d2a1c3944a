// Package gateway assembles the Lumen Bridge runtime: the transport
// collaborators feeding the update bus, the reconciliation engine
// consuming it, the command dispatcher, and the automation-bus surface.
//
// # Architecture
//
// Transports produce telemetry.TransportUpdate values and push them into
// the bounded update bus:
//
//   - LANTransport listens for local-protocol UDP messages, runs the
//     periodic discovery scan, and carries commands to reachable devices.
//   - RadioIngest consumes raw advertisement frames forwarded by receiver
//     relays over MQTT and reassembles them through the radio decoder.
//   - CloudTransport carries commands over the vendor broker and ingests
//     pushed and polled status reports.
//
// The reconciliation engine is the single consumer of the bus. Its change
// events flow through StatePublisher onto retained per-device MQTT state
// topics and into InfluxDB. IntentRouter completes the loop: inbound set
// topics become dispatch intents.
//
// Device identity and address bindings live in the Registry, persisted to
// SQLite so a restart does not forget the fleet. CatalogManager builds
// and caches the per-model effect catalogs and publishes them retained.
//
// # Lifecycle
//
// Construct with New, then call Run. Run blocks until the context is
// cancelled or a component fails; shutdown drains the component
// goroutines before returning.
package gateway
