package httpclient

import (
	"bytes"
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/camstream/errors"
	"github.com/c360/camstream/filter"
	"github.com/c360/camstream/scan"
)

// requestState tracks a request through its lifecycle
type requestState int

const (
	stateCreated requestState = iota
	stateConnecting
	stateSending
	stateAwaitStatus
	stateAwaitHeaders
	stateBody
	stateDone
)

// String returns the string representation of requestState
func (s requestState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateConnecting:
		return "connecting"
	case stateSending:
		return "sending"
	case stateAwaitStatus:
		return "await_status"
	case stateAwaitHeaders:
		return "await_headers"
	case stateBody:
		return "body"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// replyRules parse the reply head line by line. Order matters: the status
// rule wins over the header rule for a status-shaped line, and the bare CRLF
// that ends the header block only matches once no header rule can.
var replyRules = scan.RuleSet{
	scan.MustRule("status", `HTTP/(1\.[01]) (\d+) ([^\r]*)\r\n`),
	scan.MustRule("header", `([^:]+):\s+([^\r]*)\r\n`),
	scan.MustRule("end", `\r\n`),
}

// Request is a single in-flight HTTP exchange. Configure it with the Set
// methods, then Start it; reply events arrive on the handler until the
// terminal Body or Fail callout. All configuration must happen before
// Start. Close abandons the exchange from any goroutine.
//
// Everything after Start runs on one goroutine owned by the request: the
// connection is dialed, the request written, and the reply parsed there,
// with handler callouts made inline. Only Close and the context hook touch
// the request from outside, and they limit themselves to closing the
// connection.
type Request struct {
	client  *Client
	action  string
	path    string
	handler Handler
	logger  *slog.Logger

	query     url.Values
	headers   *HeaderMap
	reqBody   []byte
	reqStream io.Reader

	// customRules, when set, replace body decoding at end of headers so
	// the handler receives the body as labeled Match records.
	customRules scan.RuleSet

	scanner  *scan.Scanner
	pipeline *filter.Pipeline

	state      requestState
	statusCode int
	reason     string

	replyHeaders *HeaderMap
	replyBody    bytes.Buffer

	started time.Time

	mu      sync.Mutex
	conn    net.Conn
	stopCtx func() bool
	closed  bool
	done    bool

	doneCh chan struct{}
}

func newRequest(c *Client, action, path string, handler Handler) *Request {
	r := &Request{
		client:       c,
		action:       action,
		path:         path,
		handler:      handler,
		headers:      NewHeaderMap(),
		replyHeaders: NewHeaderMap(),
		state:        stateCreated,
		doneCh:       make(chan struct{}),
		logger: c.logger.With(
			"request_id", uuid.New().String()[:8],
			"action", action,
			"path", path,
		),
	}
	r.scanner = scan.NewScanner(replyConsumer{r}, replyRules)
	r.pipeline = filter.NewPipeline(r.scanner)
	return r
}

// SetQuery sets URL query parameters. On a POST without an explicit body
// they are form-encoded into the body; otherwise they join the request
// path. Must be called before Start.
func (r *Request) SetQuery(q url.Values) {
	r.query = q
}

// SetBody sets the request body verbatim. The Content-Type header is the
// caller's to set. Must be called before Start.
func (r *Request) SetBody(body []byte) {
	r.reqBody = body
}

// SetBodyStream streams the request body from rd with no length framing;
// the write side of the connection half-closes when rd is exhausted so the
// server sees end of body. Must be called before Start.
func (r *Request) SetBodyStream(rd io.Reader) {
	r.reqStream = rd
}

// SetHeader sets a request header, replacing prior values under the name.
// Must be called before Start.
func (r *Request) SetHeader(name, value string) {
	r.headers.Set(name, value)
}

// AddHeader appends a request header value under the name. Must be called
// before Start.
func (r *Request) AddHeader(name, value string) {
	r.headers.Add(name, value)
}

// SetRules installs the scan rules the reply body is matched against,
// bypassing body accumulation: each match arrives as a Match callout. Rules
// set before Start take effect when the header block completes; a handler
// can also call this from a callout to swap rules mid-stream. Body decoding
// stages are not installed when rules are active, so streaming endpoints
// are expected to reply unencoded.
func (r *Request) SetRules(rules scan.RuleSet) {
	r.customRules = rules
	if r.state == stateBody {
		r.scanner.SetRules(rules)
	}
}

// Status returns the reply status line once the Status callout has fired.
func (r *Request) Status() (int, string) {
	return r.statusCode, r.reason
}

// Start dials the server and runs the exchange on its own goroutine. The
// context bounds the whole exchange: cancellation closes the request. Start
// returns immediately; the outcome arrives through the handler.
func (r *Request) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errors.WrapInvalid(errors.ErrRequestClosed, "Request", "Start", "start after close")
	}
	if r.state != stateCreated {
		r.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Request", "Start", "start called twice")
	}
	r.state = stateConnecting
	r.started = time.Now()
	r.stopCtx = context.AfterFunc(ctx, r.Close)
	r.mu.Unlock()

	if r.client.metrics != nil {
		r.client.metrics.RecordRequest("httpclient", r.action)
	}
	r.logger.Debug("starting request")

	go r.run(ctx)
	return nil
}

// Close abandons the request. It is idempotent and safe from any
// goroutine. After Close no further handler callouts are delivered; a
// callout already in flight on the read goroutine may still complete.
func (r *Request) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	conn := r.conn
	stop := r.stopCtx
	r.stopCtx = nil
	r.mu.Unlock()

	if stop != nil {
		stop()
	}
	if conn != nil {
		conn.Close()
	}
}

// Done returns a channel closed once the exchange goroutine has finished
// and no further handler callouts will run. It only reports termination for
// requests whose Start succeeded.
func (r *Request) Done() <-chan struct{} {
	return r.doneCh
}

// run owns the connection from dial to teardown.
func (r *Request) run(ctx context.Context) {
	defer close(r.doneCh)

	conn, err := r.client.dial(ctx)
	if err != nil {
		r.fail(errors.WrapTransient(err, "Request", "run", "dial "+r.client.Address()))
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close()
		return
	}
	r.conn = conn
	r.state = stateSending
	r.mu.Unlock()

	r.logger.Debug("connected", "remote", conn.RemoteAddr().String())

	if err := r.writeRequest(conn); err != nil {
		r.fail(errors.WrapTransient(err, "Request", "run", "write request"))
		return
	}

	r.state = stateAwaitStatus
	r.readLoop(conn)
}

// writeRequest sends the request head and body. The head goes out in one
// write: request line, automatic headers, caller headers, credentials last,
// then the blank line and any buffered body. A streamed body follows
// unframed and ends with a half-close.
func (r *Request) writeRequest(conn net.Conn) error {
	target := r.path
	payload := r.reqBody
	form := false
	if len(r.query) > 0 {
		encoded := r.query.Encode()
		if r.action == "POST" && payload == nil && r.reqStream == nil {
			payload = []byte(encoded)
			form = true
		} else {
			target += "?" + encoded
		}
	}

	var head bytes.Buffer
	fmt.Fprintf(&head, "%s %s HTTP/1.1\r\n", r.action, target)
	fmt.Fprintf(&head, "Host: %s\r\n", r.client.host)
	head.WriteString("Connection: close\r\n")
	if r.client.compression && !r.headers.Has("Accept-Encoding") {
		head.WriteString("Accept-Encoding: gzip\r\n")
	}
	if !r.headers.Has("User-Agent") {
		fmt.Fprintf(&head, "User-Agent: %s\r\n", r.client.userAgent)
	}
	if form {
		head.WriteString("Content-Type: application/x-www-form-urlencoded\r\n")
	}
	if payload != nil {
		fmt.Fprintf(&head, "Content-Length: %d\r\n", len(payload))
	}
	for _, name := range r.headers.Keys() {
		for _, v := range r.headers.Values(name) {
			fmt.Fprintf(&head, "%s: %s\r\n", name, v)
		}
	}
	if r.client.username != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(r.client.username + ":" + r.client.password))
		fmt.Fprintf(&head, "Authorization: Basic %s\r\n", cred)
	}
	head.WriteString("\r\n")
	head.Write(payload)

	if _, err := conn.Write(head.Bytes()); err != nil {
		return err
	}

	if r.reqStream != nil {
		if _, err := io.Copy(conn, r.reqStream); err != nil {
			return err
		}
		type closeWriter interface{ CloseWrite() error }
		if cw, ok := conn.(closeWriter); ok {
			if err := cw.CloseWrite(); err != nil {
				return err
			}
		}
	}
	return nil
}

// readLoop feeds the connection into the pipeline until it ends, then
// closes the pipeline so the terminal event reaches the handler.
func (r *Request) readLoop(conn net.Conn) {
	buf := make([]byte, 32*1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if r.client.metrics != nil {
				r.client.metrics.RecordBytesRead("httpclient", n)
			}
			if ferr := r.pipeline.Feed(buf[:n]); ferr != nil {
				r.pipeline.Close(ferr)
				return
			}
		}
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				r.pipeline.Close(nil)
			} else {
				r.pipeline.Close(err)
			}
			return
		}
	}
}

// replyConsumer adapts scanner events onto the request without exporting
// the scan.Consumer methods on Request itself.
type replyConsumer struct {
	r *Request
}

func (c replyConsumer) Match(label string, groups []string) { c.r.onReplyMatch(label, groups) }
func (c replyConsumer) Raw(p []byte)                        { c.r.onReplyRaw(p) }
func (c replyConsumer) End(err error)                       { c.r.onReplyEnd(err) }

// onReplyMatch drives the reply state machine. In the body state the active
// rules are handler-installed, so every match forwards straight to the
// handler.
func (r *Request) onReplyMatch(label string, groups []string) {
	if r.state == stateBody {
		if r.calloutAllowed() {
			r.handler.Match(label, groups)
		}
		return
	}

	switch label {
	case "status":
		if r.state != stateAwaitStatus {
			// A status-shaped line inside the header block; the first
			// status line stands.
			r.logger.Debug("ignoring repeated status line")
			return
		}
		code, err := strconv.Atoi(groups[1])
		if err != nil {
			r.fail(errors.WrapInvalid(err, "Request", "reply", "malformed status code"))
			return
		}
		r.statusCode = code
		r.reason = groups[2]
		r.state = stateAwaitHeaders
		r.logger.Debug("reply status", "code", code, "reason", groups[2])
		if r.calloutAllowed() {
			r.handler.Status(code, groups[2])
		}

	case "header":
		if r.state != stateAwaitHeaders {
			r.fail(errors.WrapInvalid(errors.ErrParsingFailed, "Request", "reply", "reply did not start with a status line"))
			return
		}
		r.replyHeaders.Add(groups[0], groups[1])

	case "end":
		if r.state != stateAwaitHeaders {
			r.fail(errors.WrapInvalid(errors.ErrParsingFailed, "Request", "reply", "reply did not start with a status line"))
			return
		}
		r.state = stateBody
		if r.calloutAllowed() {
			r.handler.Headers(r.replyHeaders)
		}
		if err := r.installBodyDecoding(); err != nil {
			r.fail(err)
		}
	}
}

// installBodyDecoding reconfigures the pipeline for the reply body once the
// header block is complete. With handler rules installed the scanner keeps
// matching and nothing else changes; otherwise the scanner drops to raw
// mode behind whatever decode stages the reply headers call for, and bytes
// it had buffered past the header block replay through the new stages.
func (r *Request) installBodyDecoding() error {
	if r.customRules != nil {
		r.scanner.SetRules(r.customRules)
		return nil
	}

	pushback := r.scanner.TakeBuffered()
	r.scanner.SetRules(nil)

	var target filter.Sink = r.scanner
	if r.replyHeaders.Match("Content-Encoding", "gzip") {
		gz := filter.NewGzipDecoder()
		if err := r.pipeline.Insert(gz, target, nil); err != nil {
			return err
		}
		target = gz
	}
	if r.replyHeaders.Match("Transfer-Encoding", "chunked") {
		ch := filter.NewChunkedDecoder()
		if err := r.pipeline.Insert(ch, target, nil); err != nil {
			return err
		}
		target = ch
	}

	if len(pushback) > 0 {
		return target.Feed(pushback)
	}
	return nil
}

// onReplyRaw accumulates decoded body bytes. Raw events only fire in the
// body state with no handler rules installed.
func (r *Request) onReplyRaw(p []byte) {
	r.replyBody.Write(p)
}

// onReplyEnd resolves the terminal event. A clean close in the body state
// completes the reply; anywhere earlier the server hung up mid-reply.
func (r *Request) onReplyEnd(err error) {
	if err != nil {
		var classified *errors.ClassifiedError
		if !stderrors.As(err, &classified) {
			err = errors.WrapTransient(err, "Request", "reply", "connection lost")
		}
		r.fail(err)
		return
	}
	if r.state != stateBody {
		r.fail(errors.WrapTransient(errors.ErrConnectionLost, "Request", "reply",
			"connection closed in state "+r.state.String()))
		return
	}
	r.finish()
}

// calloutAllowed reports whether handler callouts may still be delivered.
func (r *Request) calloutAllowed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && !r.done
}

// terminate performs the single teardown: connection closed, context hook
// released, duration recorded. It reports whether callouts are suppressed
// and whether a terminal event already ran.
func (r *Request) terminate() (suppressed, already bool) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return false, true
	}
	r.done = true
	suppressed = r.closed
	r.state = stateDone
	conn := r.conn
	r.conn = nil
	stop := r.stopCtx
	r.stopCtx = nil
	r.mu.Unlock()

	if stop != nil {
		stop()
	}
	if conn != nil {
		conn.Close()
	}
	if r.client.metrics != nil {
		r.client.metrics.RecordRequestDuration("httpclient", r.action, time.Since(r.started))
	}
	return suppressed, false
}

func (r *Request) fail(err error) {
	suppressed, already := r.terminate()
	if already {
		return
	}
	if suppressed {
		r.logger.Debug("request ended after close", "error", err)
		return
	}
	r.logger.Debug("request failed", "error", err)
	if r.client.metrics != nil {
		r.client.metrics.RecordRequestFailure("httpclient", errors.Classify(err).String())
	}
	r.handler.Fail(err)
}

func (r *Request) finish() {
	suppressed, already := r.terminate()
	if already || suppressed {
		return
	}
	r.logger.Debug("request complete", "status", r.statusCode, "body_bytes", r.replyBody.Len())
	r.handler.Body(r.replyBody.Bytes())
}
