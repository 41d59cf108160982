// Package camstream provides a non-blocking client for network camera
// servers: a live mirror of the server's camera configuration, a persistent
// tap on its event stream, and fire-and-forget control operations, all
// without a caller ever waiting on the network.
//
// # Philosophy: The Caller Never Blocks
//
// A camera server is a long-lived appliance on a flaky network. Camstream
// treats every exchange with it as asynchronous:
//
//   - Operations return as soon as the request is on its way; outcomes
//     arrive later through callouts.
//   - State questions (camera names, armed modes, connectivity) are
//     answered from the local model, never by asking the server.
//   - The event stream keeps the model current between configuration
//     snapshots, and a dropped stream reconnects on its own.
//
// Camstream deliberately leaves out:
//   - Video handling (frames, codecs, streaming playback)
//   - Recording storage or retrieval
//   - Camera-vendor protocols; it speaks only the server's HTTP interface
//
// # Architecture
//
// Three layers, each usable on its own:
//
//	┌─────────────────────────────────────┐
//	│             Session                 │  Camera model, event tap,
//	│      (spy.Session, spy.Camera)      │  control operations, callouts
//	└─────────────────────────────────────┘
//	           ↓ issues requests via
//	┌─────────────────────────────────────┐
//	│           HTTP Engine               │  Goroutine per exchange,
//	│        (httpclient.Client)          │  handlers, streaming bodies
//	└─────────────────────────────────────┘
//	           ↓ parses replies via
//	┌─────────────────────────────────────┐
//	│        Incremental Scanner          │  Anchored rule sets over
//	│        (scan, filter chains)        │  a growing byte stream
//	└─────────────────────────────────────┘
//
// # Request Lifecycle
//
// Every exchange runs on its own goroutine. The handler receives the
// reply in stages as bytes arrive:
//
//	Start ──→ OnStatus ──→ OnHeaders ──→ OnBody / OnMatch* ──→ done
//	                │                          │
//	                └────────── OnFail ←───────┘
//
// Handlers may install a scan.RuleSet from OnHeaders to consume the body
// as a stream of matched records instead of one buffered blob; that is
// how the session follows the server's endless event stream.
//
// # Packages
//
//   - spy: the camera server session, the reason the module exists
//   - httpclient: the non-blocking HTTP engine under it
//   - scan: incremental regex scanning with swappable rule sets
//   - filter: composable byte-stream filters (chunked, gzip)
//   - config: JSON configuration with layering and env overrides
//   - errors: classified errors (transient, invalid, fatal)
//   - health: component health aggregation
//   - metric: Prometheus metrics and the metrics endpoint
//   - pkg/retry: backoff schedules for reconnection
//   - pkg/timestamp: the server's Unix-seconds timestamp convention
//   - pkg/tlsutil: TLS client configuration with site CA trust
//   - testutil: scripted TCP servers for exercising real connections
//
// The camstream command ties the session to logging and metrics as a
// daemon; see cmd/camstream.
package camstream
