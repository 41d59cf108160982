// Package testutil provides testing utilities for camstream integration
// tests.
//
// # Overview
//
// The testutil package contains a scripted TCP server, wire-format
// builders, and sample camera-server payloads used across package tests.
// It depends only on the standard library so every package in the module,
// including the HTTP engine itself, can import it from its tests without
// cycles.
//
// # Core Components
//
// ScriptedServer - a real loopback TCP server driven by per-connection
// scripts:
//   - One Script per accepted connection, in accept order
//   - Records the raw bytes each client sent
//   - Replies verbatim, then closes or holds the connection open
//   - Push delivers additional bytes on a held-open connection
//   - CloseConn simulates a server-side drop
//
// RoutedServer - the same machinery keyed by request path instead of accept
// order, for session-level tests that issue concurrent requests:
//   - Handle registers a script queue per path prefix
//   - Push and CloseConn address the route's kept-open connection
//   - WaitRequests blocks until a route has served n requests
//
// Wire Builders:
//   - HTTPReply assembles a close-framed reply from status, headers, body
//   - ChunkedBody frames pieces in chunked transfer coding
//   - GzipBody compresses a body as a gzip stream
//
// Sample Payloads:
//   - SystemInfoXML / SystemInfoXMLv3: camera configuration documents in
//     the modern and pre-4 layouts
//   - TapRecords: one well-formed event stream record per grammar rule
//   - ScriptsHTML / SoundsHTML: server file list pages
//   - ServerHeader / ServerHeaderV3: version headers to gate feature tests
//
// # Usage Examples
//
// Scripting a reply and inspecting the request:
//
//	func TestFetch(t *testing.T) {
//	    srv := testutil.NewScriptedServer(t, testutil.Script{
//	        Reply: testutil.HTTPReply(200, "OK",
//	            []string{testutil.ServerHeader, "Content-Type: text/xml"},
//	            []byte(testutil.SystemInfoXML)),
//	    })
//
//	    // point the client at srv.Host(), srv.Port() and run the request
//
//	    req := srv.Request(0)
//	    if !bytes.HasPrefix(req, []byte("GET /++systemInfo HTTP/1.1\r\n")) {
//	        t.Fatalf("unexpected request line: %q", req)
//	    }
//	}
//
// Streaming records to a live connection:
//
//	srv := testutil.NewScriptedServer(t, testutil.Script{
//	    Reply:    testutil.HTTPReply(200, "OK", nil, nil),
//	    KeepOpen: true,
//	})
//
//	// after the client connects and reads the reply head:
//	srv.Push(0, []byte(testutil.TapRecords[0]))
//	srv.CloseConn(0) // then force a reconnect
//
// # Design Principles
//
// Real Sockets Over Fakes: the engine under test owns real connections,
// so its tests exercise real dial, read, and close paths. The server end
// is scripted, not mocked; nothing intercepts the byte stream.
//
// Deterministic Teardown: the constructor registers cleanup with the test,
// closing the listener and every connection and waiting for the serve
// goroutines to exit, so no test leaks sockets into the next.
package testutil
