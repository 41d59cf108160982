// Package spy maintains a live model of a camera server over its HTTP
// interface: the server's cameras, their armed and connection state, and a
// real-time feed of motion, trigger, and classification events.
//
// A Session owns everything for one server. It fetches the server's
// configuration snapshot to build the camera model, holds the event tap
// (a never-ending HTTP reply of event records) open so the model tracks
// the server in real time, and issues control operations such as arming
// cameras or triggering recordings.
//
// # Session Lifecycle
//
//	cfg := config.ServerConfig{Host: "10.0.0.5", Port: 8000, Username: "admin", Password: secret}
//	session, err := spy.NewSession(cfg, spy.WithCallouts(&spy.CalloutFuncs{
//		OnReady: func(cameras map[int]*spy.Camera) {
//			log.Printf("model ready, %d cameras", len(cameras))
//		},
//		OnTrigger: func(c *spy.Camera, kind string, reasons []string) {
//			log.Printf("%s started on %s: %v", kind, c.Name(), reasons)
//		},
//	}))
//	if err != nil {
//		return err
//	}
//	if err := session.Start(ctx); err != nil {
//		return err
//	}
//	defer session.Stop(5 * time.Second)
//
// Start returns immediately; the model builds as replies arrive. The Ready
// callout marks the end of each configuration pass. Refresh may be called
// at any time to force a new pass; passes are single-flight and extra
// requests coalesce.
//
// # Camera Model
//
// Each snapshot is reconciled against the live model: new cameras raise
// CameraAdded, vanished ones CameraRemoved, and cameras whose armed state,
// connection state, or sensitivity changed raise CameraStatus. Camera
// instances are stable across snapshots, so a *Camera held from a callout
// keeps updating until CameraRemoved hands it back.
//
// The server's web interface version, taken from the Server header of
// every snapshot reply, decides how mode state is read and which control
// operations are available. Version 4 servers arm motion capture,
// continuous capture, and actions independently; version 3 servers have a
// single active/passive toggle.
//
// # Event Tap
//
// The tap is a GET /++eventStream request whose reply never ends. Records
// are CR-terminated lines matched against a fixed grammar; each record
// updates the camera it addresses and raises a callout: Trigger for
// recordings and actions (with the decoded reason mask), Classify for
// object classification results, and CameraEvent for the rest. A
// CONFIGCHANGE record, or any record for an unknown camera, schedules a
// snapshot refresh.
//
// The server drops the stream after configuration changes, so the tap
// reconnects as a matter of course. Reconnects back off exponentially
// while the server is unreachable and reset once a stream gets past its
// handshake; see config.TapConfig. A refused tap (non-200) is terminal
// because it points at credentials or server version, not the network.
//
// # Control Operations
//
// Camera and session operations (SetArm, TriggerMotion, PTZ, RunScript,
// and the rest) are fire and forget: the error return covers preconditions
// only, and exchange failures surface through the Error callout. They
// share a small token bucket so a feedback loop in a callout cannot flood
// the server.
//
// # Callouts
//
// Callouts run on the session's request goroutines. They must return
// promptly, but they may call back into the session: arming a camera in
// response to a trigger, or refreshing after an error, is fine. Nothing is
// delivered before Start or after Stop begins.
//
// # Design Decisions
//
// State lives in the model, not in events. Records update the Camera
// first and callouts read the model, so a consumer never has to replay
// event semantics itself.
//
// The session never retries snapshot fetches on its own. A failed pass
// surfaces through the Error callout and the health monitor; the caller
// decides whether to Refresh again. The tap is the exception, because a
// dropped stream is routine server behavior rather than a fault.
package spy
