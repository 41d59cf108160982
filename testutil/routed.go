package testutil

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// route is the scripted behavior for one path prefix: a queue of scripts,
// the kept-open connections serving it, and every request it has received.
type route struct {
	scripts  []Script
	conns    []net.Conn
	requests [][]byte
}

// RoutedServer is a real TCP server that picks a Script by request path
// instead of accept order, for tests whose client issues several concurrent
// requests so connection order is nondeterministic. Register routes with
// Handle before the client connects. Requests with no matching route get a
// 404 and a closed connection. All methods are safe for concurrent use.
//
// Scripts with ReadToEOF are not supported here; the request must be
// readable up front so the path can select the route.
type RoutedServer struct {
	t  testing.TB
	ln net.Listener

	mu     sync.Mutex
	routes map[string]*route
	all    []net.Conn
	closed bool

	wg sync.WaitGroup
}

// NewRoutedServer starts a routed server on a loopback port. It registers
// its own cleanup with t.
func NewRoutedServer(t testing.TB) *RoutedServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &RoutedServer{
		t:      t,
		ln:     ln,
		routes: make(map[string]*route),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	t.Cleanup(s.Close)
	return s
}

// Handle registers the scripts played, in order, for requests whose path
// starts with prefix. Once the queue is down to its last script that script
// repeats for every further request. The longest matching prefix wins when
// routes overlap.
func (s *RoutedServer) Handle(prefix string, scripts ...Script) {
	if len(scripts) == 0 {
		s.t.Fatalf("route %s needs at least one script", prefix)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[prefix] = &route{scripts: scripts}
}

// Host returns the loopback address the server listens on.
func (s *RoutedServer) Host() string {
	return "127.0.0.1"
}

// Port returns the port the server listens on.
func (s *RoutedServer) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Requests returns copies of every request the route has received so far.
func (s *RoutedServer) Requests(prefix string) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.routes[prefix]
	if r == nil {
		return nil
	}
	out := make([][]byte, len(r.requests))
	copy(out, r.requests)
	return out
}

// WaitRequests blocks until the route has received at least n requests,
// failing the test if the timeout expires first.
func (s *RoutedServer) WaitRequests(prefix string, n int, timeout time.Duration) [][]byte {
	s.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		reqs := s.Requests(prefix)
		if len(reqs) >= n {
			return reqs
		}
		if time.Now().After(deadline) {
			s.t.Fatalf("route %s: got %d requests, want %d", prefix, len(reqs), n)
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Push writes data on the route's most recent kept-open connection,
// waiting for one to appear if necessary.
func (s *RoutedServer) Push(prefix string, data []byte) {
	s.t.Helper()
	conn := s.waitConn(prefix)
	if _, err := conn.Write(data); err != nil {
		s.t.Fatalf("push to %s: %v", prefix, err)
	}
}

// CloseConn closes the route's most recent kept-open connection, waiting
// for one to appear if necessary.
func (s *RoutedServer) CloseConn(prefix string) {
	s.t.Helper()
	conn := s.waitConn(prefix)
	s.mu.Lock()
	r := s.routes[prefix]
	for i, c := range r.conns {
		if c == conn {
			r.conns = append(r.conns[:i], r.conns[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	conn.Close()
}

// Close shuts the listener and every connection down and waits for the
// serving goroutines to finish. It is safe to call more than once.
func (s *RoutedServer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conns := s.all
	s.mu.Unlock()

	s.ln.Close()
	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
}

func (s *RoutedServer) waitConn(prefix string) net.Conn {
	s.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s.mu.Lock()
		r := s.routes[prefix]
		var conn net.Conn
		if r != nil && len(r.conns) > 0 {
			conn = r.conns[len(r.conns)-1]
		}
		s.mu.Unlock()
		if conn != nil {
			return conn
		}
		if time.Now().After(deadline) {
			s.t.Fatalf("route %s: no open connection", prefix)
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (s *RoutedServer) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.all = append(s.all, conn)
		s.mu.Unlock()
		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *RoutedServer) serve(conn net.Conn) {
	defer s.wg.Done()

	req := readRequest(conn, false)
	path := requestPath(req)

	s.mu.Lock()
	var r *route
	best := -1
	for prefix, candidate := range s.routes {
		if strings.HasPrefix(path, prefix) && len(prefix) > best {
			best = len(prefix)
			r = candidate
		}
	}
	if r == nil {
		s.mu.Unlock()
		conn.Write([]byte("HTTP/1.1 404 Not Found\r\n\r\n"))
		conn.Close()
		return
	}
	r.requests = append(r.requests, req)
	script := r.scripts[0]
	if len(r.scripts) > 1 {
		r.scripts = r.scripts[1:]
	}
	s.mu.Unlock()

	if len(script.Reply) > 0 {
		if _, err := conn.Write(script.Reply); err != nil {
			conn.Close()
			return
		}
	}
	if script.KeepOpen {
		s.mu.Lock()
		r.conns = append(r.conns, conn)
		s.mu.Unlock()
		return
	}
	conn.Close()
}

// requestPath extracts the path of an HTTP request line, without the query.
func requestPath(req []byte) string {
	line, _, _ := strings.Cut(string(req), "\r\n")
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return ""
	}
	path, _, _ := strings.Cut(fields[1], "?")
	return path
}
