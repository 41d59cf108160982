package spy

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/camstream/config"
	"github.com/c360/camstream/errors"
	"github.com/c360/camstream/health"
	"github.com/c360/camstream/httpclient"
	"github.com/c360/camstream/metric"
	"github.com/c360/camstream/pkg/tlsutil"
)

// Control operations share a token bucket so a misbehaving callout cannot
// hammer the server's web interface.
const (
	controlRate  = 10
	controlBurst = 5
)

// Session drives one camera server. It keeps a live model of the server's
// cameras built from configuration snapshots, holds the event tap open so
// the model tracks the server in real time, and issues control operations.
//
// A session reports through its Callouts and never blocks on them being
// handled. Start it once; it runs until Stop.
type Session struct {
	client   *httpclient.Client
	callouts Callouts
	logger   *slog.Logger
	metrics  *metric.Metrics
	monitor  *health.Monitor
	limiter  *rate.Limiter
	tapCfg   config.TapConfig

	mu         sync.Mutex
	cameras    map[int]*Camera
	server     ServerInfo
	lists      map[string][]string
	tap        *tapSession
	ctx        context.Context
	cancel     context.CancelFunc
	started    bool
	stopped    bool
	refreshing bool
	pending    bool

	wg sync.WaitGroup
}

// SessionOption configures a Session.
type SessionOption func(*Session) error

// WithCallouts installs the notification sink. The default discards every
// notification.
func WithCallouts(c Callouts) SessionOption {
	return func(s *Session) error {
		if c == nil {
			return fmt.Errorf("callouts must not be nil")
		}
		s.callouts = c
		return nil
	}
}

// WithLogger sets the logger. The default derives from slog.Default.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) error {
		s.logger = logger
		return nil
	}
}

// WithMetrics attaches a metrics collector to the session and its HTTP
// client.
func WithMetrics(m *metric.Metrics) SessionOption {
	return func(s *Session) error {
		s.metrics = m
		return nil
	}
}

// WithTap overrides the event tap configuration. The default keeps the tap
// enabled with backed-off reconnects.
func WithTap(cfg config.TapConfig) SessionOption {
	return func(s *Session) error {
		s.tapCfg = cfg
		return nil
	}
}

// NewSession builds a session for the given server. It validates the
// configuration and constructs the HTTP client but opens no connections;
// that happens on Start.
func NewSession(server config.ServerConfig, opts ...SessionOption) (*Session, error) {
	s := &Session{
		callouts: &CalloutFuncs{},
		monitor:  health.NewMonitor(),
		limiter:  rate.NewLimiter(rate.Limit(controlRate), controlBurst),
		cameras:  make(map[int]*Camera),
		tapCfg:   config.Default().Tap,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.WrapInvalid(err, "Session", "NewSession", "apply option")
		}
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "spy", "host", server.Host)
	}

	port := server.Port
	if port == 0 {
		port = 8000
	}
	clientOpts := []httpclient.ClientOption{
		httpclient.WithPort(port),
		httpclient.WithCredentials(server.Username, server.Password),
		httpclient.WithLogger(s.logger),
		httpclient.WithMetrics(s.metrics),
	}
	if server.UseTLS {
		tlsCfg, err := tlsutil.ClientConfig(server.Host, server.TLS)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts, httpclient.WithTLSConfig(tlsCfg))
	}
	if server.DialTimeout > 0 {
		clientOpts = append(clientOpts, httpclient.WithDialTimeout(server.DialTimeout))
	}
	client, err := httpclient.NewClient(server.Host, clientOpts...)
	if err != nil {
		return nil, err
	}
	s.client = client
	return s, nil
}

// Start brings the session up. The first configuration snapshot is fetched
// immediately and the camera model builds as replies arrive; Start itself
// does not wait for the server, so watch for the Ready callout. The context
// bounds the whole session: cancellation is equivalent to Stop without the
// drain.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Session", "Start", "start session")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("session starting", "address", s.client.Address())
	s.monitor.UpdateDegraded("model", "waiting for first configuration snapshot")
	if s.tapCfg.Enabled {
		s.monitor.UpdateDegraded("tap", "waiting for first configuration snapshot")
	}
	s.Refresh()
	return nil
}

// Stop closes the event tap and every in-flight request, then waits up to
// timeout for the request goroutines to drain. Callouts are suppressed from
// the moment Stop begins.
func (s *Session) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrNotStarted, "Session", "Stop", "stop session")
	}
	if s.stopped {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "Session", "Stop", "stop session")
	}
	s.stopped = true
	tap := s.tap
	s.tap = nil
	cancel := s.cancel
	s.mu.Unlock()

	s.logger.Info("session stopping")
	if tap != nil {
		tap.close()
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrShutdownTimeout, "Session", "Stop", "drain request goroutines")
	}
	s.monitor.UpdateUnhealthy("model", "session stopped")
	s.logger.Info("session stopped")
	return nil
}

// Refresh schedules a configuration snapshot fetch. Snapshot handling is
// single-flight: a refresh requested while one is in progress runs after
// the current pass completes, and any further requests coalesce into that
// one follow-up. Before Start and after Stop it does nothing.
func (s *Session) Refresh() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	if s.refreshing {
		s.pending = true
		s.mu.Unlock()
		return
	}
	s.refreshing = true
	ctx := s.ctx
	s.mu.Unlock()
	s.fetchSnapshot(ctx)
}

func (s *Session) refreshDone() {
	s.mu.Lock()
	s.refreshing = false
	again := s.pending && !s.stopped
	s.pending = false
	s.mu.Unlock()
	if again {
		s.Refresh()
	}
}

// fetchSnapshot performs one snapshot exchange. The Server header is
// checked before the body arrives; a host that is not a camera server fails
// the pass immediately.
func (s *Session) fetchSnapshot(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.RecordRefresh()
	}
	var (
		req    *httpclient.Request
		status int
		reason string
	)
	h := &httpclient.HandlerFuncs{
		OnStatus: func(code int, r string) {
			status, reason = code, r
		},
		OnHeaders: func(hm *httpclient.HeaderMap) {
			version, err := parseWebVersion(hm.Get("Server"))
			if err != nil {
				s.monitor.UpdateFromError("model", err)
				s.calloutError(err)
				req.Close()
				s.refreshDone()
				return
			}
			s.mu.Lock()
			s.server.WebVersion = version
			s.mu.Unlock()
		},
		OnBody: func(data []byte) {
			defer s.refreshDone()
			if status != 200 {
				err := errors.Wrap(&httpclient.StatusError{Code: status, Reason: reason},
					"Session", "Refresh", "fetch system info")
				s.monitor.UpdateFromError("model", err)
				s.calloutError(err)
				return
			}
			s.configure(data)
		},
		OnFail: func(err error) {
			s.monitor.UpdateFromError("model", err)
			s.calloutError(err)
			s.refreshDone()
		},
	}
	req = s.client.NewRequest("GET", "/++systemInfo", h)
	if err := req.Start(ctx); err != nil {
		s.monitor.UpdateFromError("model", err)
		s.calloutError(err)
		s.refreshDone()
		return
	}
	s.track(req)
}

// configure applies one snapshot document: server fields, then the camera
// reconciliation, then first-pass setup (event tap, file lists), and
// finally the callouts in added, removed, status, ready order.
func (s *Session) configure(data []byte) {
	doc, err := parseSystemInfo(data)
	if err != nil {
		s.monitor.UpdateFromError("model", err)
		s.calloutError(err)
		return
	}

	s.mu.Lock()
	s.server.Name = doc.Server.Name
	s.server.Version = doc.Server.Version
	s.server.EventStreamCount = doc.Server.EventStreamCount
	webVersion := s.server.WebVersion

	var added, removed, changed []*Camera
	seen := make(map[int]bool, len(doc.Cameras))
	for _, cd := range doc.Cameras {
		if cd.Number == nil {
			s.logger.Warn("skipping camera element without a number", "name", cd.Name)
			continue
		}
		number := *cd.Number
		seen[number] = true
		fresh := newCamera(s, cd, webVersion)
		if live, ok := s.cameras[number]; ok {
			if live.refresh(fresh) {
				changed = append(changed, live)
			}
		} else {
			s.cameras[number] = fresh
			added = append(added, fresh)
		}
	}
	for number, cam := range s.cameras {
		if !seen[number] {
			delete(s.cameras, number)
			removed = append(removed, cam)
		}
	}
	cameras := make(map[int]*Camera, len(s.cameras))
	for number, cam := range s.cameras {
		cameras[number] = cam
	}
	var tap *tapSession
	if s.tapCfg.Enabled && s.tap == nil && !s.stopped {
		tap = newTapSession(s, s.ctx)
		s.tap = tap
	}
	fetchLists := s.lists == nil
	if fetchLists {
		s.lists = make(map[string][]string, 2)
	}
	ctx := s.ctx
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordCameras(len(cameras))
	}
	s.monitor.UpdateHealthy("model", fmt.Sprintf("%d cameras", len(cameras)))
	for _, cam := range removed {
		s.monitor.Remove(cameraComponent(cam.Number()))
	}
	for _, cam := range cameras {
		s.updateCameraHealth(cam)
	}

	if tap != nil {
		tap.connect()
	}
	if fetchLists {
		s.fetchList(ctx, "scripts")
		s.fetchList(ctx, "sounds")
	}

	for _, cam := range added {
		s.recordCallout("added")
		s.callouts.CameraAdded(cam)
	}
	for _, cam := range removed {
		s.recordCallout("removed")
		s.callouts.CameraRemoved(cam)
	}
	for _, cam := range changed {
		s.recordCallout("status")
		s.callouts.CameraStatus(cam)
	}
	s.recordCallout("ready")
	s.callouts.Ready(cameras)
}

// fileListPattern pulls entry names out of the server's plain HTML file
// list pages.
var fileListPattern = regexp.MustCompile(`<a href=.*?>([^<]+)</a>`)

// fetchList retrieves one of the server's file list pages. Failures are
// logged rather than surfaced; the lists are a convenience, not part of the
// camera model.
func (s *Session) fetchList(ctx context.Context, name string) {
	var req *httpclient.Request
	h := &httpclient.HandlerFuncs{
		OnBody: func(data []byte) {
			code, _ := req.Status()
			if code != 200 {
				s.logger.Warn("file list fetch rejected", "list", name, "status", code)
				return
			}
			matches := fileListPattern.FindAllSubmatch(data, -1)
			entries := make([]string, 0, len(matches))
			for _, m := range matches {
				entries = append(entries, string(m[1]))
			}
			s.mu.Lock()
			s.lists[name] = entries
			s.mu.Unlock()
			s.recordCallout("list")
			s.callouts.ListAvailable(name, entries)
		},
		OnFail: func(err error) {
			s.logger.Warn("file list fetch failed", "list", name, "error", err)
		},
	}
	req = s.client.NewRequest("GET", "/++"+name, h)
	if err := req.Start(ctx); err != nil {
		s.logger.Warn("file list fetch failed", "list", name, "error", err)
		return
	}
	s.track(req)
}

// RestartWebServer asks the server to restart its web interface. The reply
// often never arrives because the listener goes down with it; the dropped
// connection surfaces through the Error callout and is expected.
func (s *Session) RestartWebServer(ctx context.Context) error {
	return s.control(ctx, "GET", "/++ssControlRestartWebServer", nil)
}

// RunScript runs one of the server's action scripts by name, as listed by
// Scripts.
func (s *Session) RunScript(ctx context.Context, name string) error {
	return s.control(ctx, "GET", "/++doScript", url.Values{"name": {name}})
}

// PlaySound plays one of the server's alert sounds by name, as listed by
// Sounds.
func (s *Session) PlaySound(ctx context.Context, name string) error {
	return s.control(ctx, "GET", "/++doSound", url.Values{"name": {name}})
}

// control issues a fire-and-forget operation request. The error return
// covers preconditions: session state and the rate limit wait, which ctx
// bounds. Failures of the exchange itself come back through the Error
// callout, as does a non-200 status.
func (s *Session) control(ctx context.Context, action, path string, query url.Values) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrNotStarted, "Session", "control", "issue "+path)
	}
	if s.stopped {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "Session", "control", "issue "+path)
	}
	s.mu.Unlock()

	if err := s.limiter.Wait(ctx); err != nil {
		return errors.WrapTransient(errors.ErrRateLimited, "Session", "control", "wait for "+path)
	}

	var req *httpclient.Request
	h := &httpclient.HandlerFuncs{
		OnBody: func([]byte) {
			code, reason := req.Status()
			if code != 200 {
				s.calloutError(errors.Wrap(&httpclient.StatusError{Code: code, Reason: reason},
					"Session", "control", path))
			}
		},
		OnFail: func(err error) {
			s.calloutError(err)
		},
	}
	req = s.client.NewRequest(action, path, h)
	if query != nil {
		req.SetQuery(query)
	}
	if err := req.Start(ctx); err != nil {
		return err
	}
	s.track(req)
	return nil
}

// Server returns what is known about the server so far. Fields fill in as
// the first snapshot arrives.
func (s *Session) Server() ServerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server
}

func (s *Session) webVersion() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server.WebVersion
}

// Camera returns the camera with the given server number, or nil.
func (s *Session) Camera(number int) *Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cameras[number]
}

// CameraByName returns a camera by display name, or nil. Names are not
// guaranteed unique; collisions return an arbitrary one.
func (s *Session) CameraByName(name string) *Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cam := range s.cameras {
		if cam.Name() == name {
			return cam
		}
	}
	return nil
}

// Cameras returns a snapshot of the camera model keyed by camera number.
func (s *Session) Cameras() map[int]*Camera {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]*Camera, len(s.cameras))
	for number, cam := range s.cameras {
		out[number] = cam
	}
	return out
}

// Scripts returns the server's action scripts, once the list has been
// fetched.
func (s *Session) Scripts() []string {
	return s.list("scripts")
}

// Sounds returns the server's alert sounds, once the list has been fetched.
func (s *Session) Sounds() []string {
	return s.list("sounds")
}

func (s *Session) list(name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.lists[name]
	out := make([]string, len(entries))
	copy(out, entries)
	return out
}

// Health aggregates the session's component health: the camera model, the
// event tap, and one entry per camera.
func (s *Session) Health() health.Status {
	return s.monitor.AggregateHealth("session")
}

func (s *Session) updateCameraHealth(cam *Camera) {
	name := cameraComponent(cam.Number())
	if cam.Connected() {
		s.monitor.UpdateHealthy(name, cam.Name())
	} else {
		s.monitor.UpdateDegraded(name, cam.Name()+" disconnected")
	}
}

func cameraComponent(number int) string {
	return fmt.Sprintf("camera:%d", number)
}

// calloutError reports an absorbed failure, unless the session has been
// stopped.
func (s *Session) calloutError(err error) {
	s.mu.Lock()
	suppressed := s.stopped
	s.mu.Unlock()
	if suppressed {
		return
	}
	if s.metrics != nil {
		s.metrics.RecordError("spy", errors.Classify(err).String())
	}
	s.callouts.Error(err)
}

func (s *Session) recordCallout(kind string) {
	if s.metrics != nil {
		s.metrics.RecordCallout(kind)
	}
}

// track ties a started request into Stop's drain.
func (s *Session) track(req *httpclient.Request) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-req.Done()
	}()
}
