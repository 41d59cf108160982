package httpclient

import "fmt"

// Handler receives the reply events of a single request. Every callout runs
// on the request's read goroutine, so implementations never need locking
// against each other; a callout that blocks stalls the connection.
//
// The event order for a plain request is Status, Headers, then Body exactly
// once. When the handler installs its own scan rules the body arrives as a
// stream of Match callouts instead, and Body fires with an empty payload
// when the server ends the stream cleanly. Fail replaces all remaining
// callouts after any error. A request closed by the caller delivers nothing
// further at all.
type Handler interface {
	// Status delivers the reply status line.
	Status(code int, reason string)

	// Headers delivers the complete reply header block. The map is owned
	// by the request; handlers must not retain it past the callout.
	Headers(h *HeaderMap)

	// Body delivers the full decoded body when the reply ends cleanly.
	Body(data []byte)

	// Match delivers one labeled record matched by handler-installed scan
	// rules.
	Match(label string, groups []string)

	// Fail delivers the terminal error. No callouts follow.
	Fail(err error)
}

// HandlerFuncs adapts a set of optional functions into a Handler. A nil
// function ignores its event, so callers populate only the callouts they
// care about.
type HandlerFuncs struct {
	OnStatus  func(code int, reason string)
	OnHeaders func(h *HeaderMap)
	OnBody    func(data []byte)
	OnMatch   func(label string, groups []string)
	OnFail    func(err error)
}

// Status implements Handler.
func (f *HandlerFuncs) Status(code int, reason string) {
	if f.OnStatus != nil {
		f.OnStatus(code, reason)
	}
}

// Headers implements Handler.
func (f *HandlerFuncs) Headers(h *HeaderMap) {
	if f.OnHeaders != nil {
		f.OnHeaders(h)
	}
}

// Body implements Handler.
func (f *HandlerFuncs) Body(data []byte) {
	if f.OnBody != nil {
		f.OnBody(data)
	}
}

// Match implements Handler.
func (f *HandlerFuncs) Match(label string, groups []string) {
	if f.OnMatch != nil {
		f.OnMatch(label, groups)
	}
}

// Fail implements Handler.
func (f *HandlerFuncs) Fail(err error) {
	if f.OnFail != nil {
		f.OnFail(err)
	}
}

// StatusError reports a reply that completed with a non-success status
// code. The engine itself never produces one; callers that treat error
// statuses as failures construct it from the Status callout.
type StatusError struct {
	Code   int
	Reason string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d %s", e.Code, e.Reason)
}
