package spy

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/c360/camstream/errors"
	"github.com/c360/camstream/httpclient"
	"github.com/c360/camstream/pkg/retry"
)

// tapSession owns the persistent event stream connection. The server ends
// the stream whenever its configuration changes, so reconnecting is part of
// normal operation; backoff keeps an unreachable server from being hammered
// and resets once a connection survives its handshake.
//
// A refused tap (non-200 status) is not retried. That points at
// credentials or an outdated server, and reconnecting would just repeat
// the refusal.
type tapSession struct {
	session    *Session
	ctx        context.Context
	backoff    retry.Config
	useBackoff bool

	mu      sync.Mutex
	req     *httpclient.Request
	timer   *time.Timer
	attempt int
	closed  bool
}

func newTapSession(s *Session, ctx context.Context) *tapSession {
	t := &tapSession{session: s, ctx: ctx}
	b := s.tapCfg.Backoff
	if b.Enabled {
		t.useBackoff = true
		t.backoff = retry.Stream()
		if b.InitialDelay > 0 {
			t.backoff.InitialDelay = b.InitialDelay
		}
		if b.MaxDelay > 0 {
			t.backoff.MaxDelay = b.MaxDelay
		}
	}
	return t
}

// connect opens one event stream request. On a 200 the record grammar is
// installed and events flow through dispatch until the stream ends.
func (t *tapSession) connect() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	s := t.session

	var (
		req    *httpclient.Request
		status int
		reason string
	)
	h := &httpclient.HandlerFuncs{
		OnStatus: func(code int, r string) {
			status, reason = code, r
		},
		OnHeaders: func(*httpclient.HeaderMap) {
			s.recordCallout("tap")
			s.callouts.TapStatus(status)
			if status != 200 {
				err := errors.WrapFatal(&httpclient.StatusError{Code: status, Reason: reason},
					"Session", "tap", "open event stream")
				s.monitor.UpdateFromError("tap", err)
				s.calloutError(err)
				t.shutdown()
				return
			}
			req.SetRules(tapRules)
			t.handshakeDone()
			if s.metrics != nil {
				s.metrics.RecordTapConnected(true)
			}
			s.monitor.UpdateHealthy("tap", "event stream connected")
			s.logger.Info("event tap connected")
		},
		OnMatch: t.dispatch,
		OnBody: func([]byte) {
			// clean end of stream, typically a configuration change
			if s.metrics != nil {
				s.metrics.RecordTapConnected(false)
			}
			s.logger.Debug("event stream ended")
			t.reconnect()
		},
		OnFail: func(err error) {
			if s.metrics != nil {
				s.metrics.RecordTapConnected(false)
			}
			s.monitor.UpdateFromError("tap", err)
			s.calloutError(err)
			t.reconnect()
		},
	}
	req = s.client.NewRequest("GET", "/++eventStream", h)
	req.SetQuery(url.Values{"version": {"2"}})
	req.SetHeader("Accept-Encoding", "identity")
	t.req = req
	t.mu.Unlock()

	if err := req.Start(t.ctx); err != nil {
		s.calloutError(err)
		return
	}
	s.track(req)
}

// handshakeDone resets the backoff schedule once a stream gets past its
// headers.
func (t *tapSession) handshakeDone() {
	t.mu.Lock()
	t.attempt = 0
	t.mu.Unlock()
}

// reconnect schedules the next connection attempt.
func (t *tapSession) reconnect() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.req = nil
	s := t.session
	if s.metrics != nil {
		s.metrics.RecordTapReconnect()
	}
	if !t.useBackoff {
		t.mu.Unlock()
		t.connect()
		return
	}
	t.attempt++
	attempt := t.attempt
	delay := t.backoff.Delay(attempt)
	t.timer = time.AfterFunc(delay, t.connect)
	t.mu.Unlock()

	s.monitor.UpdateDegraded("tap", "reconnecting")
	s.logger.Debug("event tap reconnect scheduled", "attempt", attempt, "delay", delay)
}

// dispatch routes one event stream record. Camera-scoped records go to the
// camera's own handler; server-scoped records act on the session.
func (t *tapSession) dispatch(label string, groups []string) {
	s := t.session
	if s.metrics != nil {
		s.metrics.RecordTapEvent(label)
	}
	switch label {
	case "unknown":
		s.calloutError(errors.WrapInvalid(errors.ErrUnknownRecord, "Session", "tap",
			"event record "+strconv.Quote(groups[0])))
		return
	case "change":
		s.logger.Debug("server configuration changed")
		s.Refresh()
		return
	}

	sequence, _ := strconv.Atoi(groups[1])
	number, _ := strconv.Atoi(groups[2])
	cam := s.Camera(number)
	if cam == nil {
		// a camera the model has never seen; resync
		s.logger.Debug("event for unknown camera", "camera", number, "label", label)
		s.Refresh()
		return
	}
	cam.handleTapEvent(Event{
		Label:     label,
		Timestamp: groups[0],
		Sequence:  sequence,
		Camera:    number,
		Args:      groups[3:],
	})
}

// close tears the tap down for good.
func (t *tapSession) close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	req := t.req
	t.req = nil
	timer := t.timer
	t.timer = nil
	t.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if req != nil {
		req.Close()
	}
}

// shutdown ends the tap from inside its own handler after a refusal.
func (t *tapSession) shutdown() {
	t.mu.Lock()
	t.closed = true
	req := t.req
	t.req = nil
	t.mu.Unlock()

	if req != nil {
		req.Close()
	}
}
