// Package httpclient implements a callout-driven HTTP/1.1 client for
// camera servers, built for replies that are streamed, compressed, or
// framed only by connection close.
//
// The standard library client wants a reply it can hand back as a value.
// Camera servers do not cooperate: the event stream endpoint holds its
// connection open and emits records forever, bodies arrive gzip-compressed
// and chunk-framed in the same reply, and most endpoints end the body by
// closing the connection. This package inverts the flow instead: each
// request runs a goroutine that owns the connection and pushes reply events
// to a Handler as they parse.
//
// # Request Lifecycle
//
// A Client holds the settings shared by every exchange with one server.
// Each request dials its own connection, writes the request, and parses the
// reply through a filter pipeline ending in a rule scanner:
//
//	client, err := httpclient.NewClient("camera.local",
//	    httpclient.WithPort(8000),
//	    httpclient.WithCredentials("admin", "secret"),
//	)
//	if err != nil {
//	    return err
//	}
//
//	req := client.NewRequest("GET", "/++systemInfo", &httpclient.HandlerFuncs{
//	    OnStatus: func(code int, reason string) { fmt.Println(code, reason) },
//	    OnBody:   func(data []byte) { fmt.Printf("%d body bytes\n", len(data)) },
//	    OnFail:   func(err error) { log.Printf("request failed: %v", err) },
//	})
//	if err := req.Start(ctx); err != nil {
//	    return err
//	}
//
// Callout order is Status, Headers, then one terminal Body or Fail. Every
// callout runs on the request's read goroutine, so a handler needs no
// locking against its own callouts and must not block.
//
// # Body Decoding
//
// When the header block completes, the request inspects the reply headers
// and inserts decode stages into the live pipeline: a chunked decoder for
// Transfer-Encoding: chunked, a gzip decoder for Content-Encoding: gzip,
// stacked when both apply. Bytes the scanner had already buffered past the
// headers replay through the new stages, so nothing is lost at the seam.
// The decoded body accumulates and arrives in a single Body callout when
// the server closes the connection.
//
// # Streaming Replies
//
// A handler that installs its own scan rules takes over the body as a
// stream of labeled records instead:
//
//	req.SetRules(scan.RuleSet{
//	    scan.MustRule("event", `(\d+) (\d+) (.*?)\r`),
//	})
//
// Each record arrives as a Match callout with its capture groups. Rules can
// also be swapped from inside a callout, which is how protocol phases hand
// off. Streaming endpoints reply unencoded, so no decode stages install in
// this mode; pair it with WithCompression(false).
//
// # Close Semantics
//
// Close abandons a request from any goroutine: the connection closes, the
// read goroutine winds down, and the handler hears nothing further. Context
// cancellation acts as an implicit Close. A request that has already
// delivered its terminal callout treats Close as a no-op.
//
// # Error Handling
//
// Terminal errors arrive classified: dial, write, and mid-reply
// disconnects are transient; malformed status lines, bad chunk framing,
// and corrupt gzip streams are invalid. Callers route on the class:
//
//	OnFail: func(err error) {
//	    if errors.IsTransient(err) {
//	        // back off and retry
//	    }
//	}
//
// The engine never turns an error status code into Fail; a reply with code
// 500 still parses and completes. Callers that want status errors build a
// StatusError from the Status callout.
//
// # Design Decisions
//
// Goroutine per request over a reactor: multiplexing many connections onto
// one event loop buys nothing at this scale, where a session holds a
// handful of requests and one long-lived stream. A goroutine owning one
// blocking connection delivers the same callout contract with far less
// machinery, and the per-connection state machine stays single-threaded.
//
// Connection-close framing: requests always send Connection: close and
// treat server close as end of body. Content-Length is not used for
// framing; the camera servers this client targets close cleanly and the
// chunked decoder handles the one encoding they actually negotiate.
package httpclient
