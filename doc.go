// Package enginectl is the supervision core for an external proxy-engine
// process: it starts and stops the engine, composes and pushes its
// runtime configuration, and observes its telemetry. It is a library, not
// an application; windows, dialogs, directory layout, and installer
// concerns belong to the embedding desktop app.
//
// The engine is reached through a duplex message channel carrying a
// closed set of typed commands and events. One-shot interactions (start,
// stop, version, download, parse, apply overrides) run as correlated
// exchanges: the exchange registry pairs each command with its eventual
// response by correlation id, with a per-exchange deadline and local-only
// cancellation. Registration always precedes sending, so an engine that
// replies synchronously can never cause a lost match. Long-lived feeds
// (engine log, traffic samples) are start/stop-controlled telemetry
// streams with their own small state machine, not exchanges.
//
// # Transports
//
// Two transports ship in the box:
//   - channel: in-memory loopback for tests and examples
//   - controller: the engine's WebSocket control socket
//
// Transports register themselves; import the ones you use:
//
//	_ "github.com/stelliberty/enginectl/transport/channel"
//	_ "github.com/stelliberty/enginectl/transport/controller"
//
// # Composition
//
// Runtime documents are derived, never stored: each apply-configuration
// call merges the locally-decided runtime parameters into the stored
// subscription document, then hands the subscription's ordered overrides
// to the engine as one batch. Whatever fails past base validation, the
// caller receives a usable document rather than an error.
//
// # Catalog
//
// Subscriptions and overrides persist in a JSON catalog plus per-entry
// content files, written with atomic replace and one rolling backup. A
// corrupt primary self-heals from the backup on load.
//
// A minimal setup fills a Config, supplies a PathResolver, creates the
// Service, and runs it; see the examples directory.
package enginectl
