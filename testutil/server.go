package testutil

import (
	"bytes"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Script describes how the server handles one accepted connection: read the
// request, write Reply, then close unless KeepOpen.
type Script struct {
	// Reply is written verbatim after the request has been read.
	Reply []byte

	// KeepOpen holds the connection open after Reply so the test can Push
	// more bytes or close it explicitly. Used for streaming endpoints.
	KeepOpen bool

	// ReadToEOF reads the request until the client half-closes instead of
	// stopping at the header/Content-Length boundary. Used for streamed
	// request bodies.
	ReadToEOF bool
}

// ScriptedServer is a real TCP server that plays one Script per accepted
// connection, in accept order, and records what each client sent.
// Connections beyond the scripted count are closed immediately. All methods
// are safe for concurrent use.
type ScriptedServer struct {
	t  testing.TB
	ln net.Listener

	mu       sync.Mutex
	scripts  []Script
	all      []net.Conn
	ready    map[int]net.Conn
	received map[int][]byte
	closed   bool

	wg sync.WaitGroup
}

// NewScriptedServer starts a server on a loopback port with the given
// scripts. It registers its own cleanup with t.
func NewScriptedServer(t testing.TB, scripts ...Script) *ScriptedServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &ScriptedServer{
		t:        t,
		ln:       ln,
		scripts:  scripts,
		ready:    make(map[int]net.Conn),
		received: make(map[int][]byte),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	t.Cleanup(s.Close)
	return s
}

// Host returns the loopback address the server listens on.
func (s *ScriptedServer) Host() string {
	return "127.0.0.1"
}

// Port returns the listening port.
func (s *ScriptedServer) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// ConnCount returns the number of connections accepted so far.
func (s *ScriptedServer) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.all)
}

// WaitConns blocks until at least n connections have been accepted, failing
// the test after timeout.
func (s *ScriptedServer) WaitConns(n int, timeout time.Duration) {
	s.t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.ConnCount() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.t.Fatalf("timed out waiting for %d connections (have %d)", n, s.ConnCount())
}

// Request blocks until the request on connection i has been fully read and
// returns its raw bytes, failing the test after two seconds.
func (s *ScriptedServer) Request(i int) []byte {
	s.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		req, ok := s.received[i]
		s.mu.Unlock()
		if ok {
			return req
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.t.Fatalf("timed out waiting for request on connection %d", i)
	return nil
}

// Push writes data to held-open connection i, after its scripted reply has
// gone out. Used to stream records to a live client.
func (s *ScriptedServer) Push(i int, data []byte) {
	s.t.Helper()
	conn := s.waitReady(i)
	if _, err := conn.Write(data); err != nil {
		s.t.Fatalf("push to connection %d: %v", i, err)
	}
}

// CloseConn closes connection i from the server side, simulating a server
// drop.
func (s *ScriptedServer) CloseConn(i int) {
	s.t.Helper()
	s.waitReady(i).Close()
}

// Close shuts the server down and closes every connection. Idempotent;
// registered as a test cleanup by the constructor.
func (s *ScriptedServer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.ln.Close()
	for _, c := range s.all {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// waitReady blocks until connection i has its reply written, so pushed data
// cannot interleave with the scripted reply.
func (s *ScriptedServer) waitReady(i int) net.Conn {
	s.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		conn, ok := s.ready[i]
		s.mu.Unlock()
		if ok {
			return conn
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.t.Fatalf("timed out waiting for connection %d to be served", i)
	return nil
}

func (s *ScriptedServer) acceptLoop() {
	defer s.wg.Done()
	for i := 0; ; i++ {
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
		var script Script
		scripted := i < len(s.scripts)
		if scripted {
			script = s.scripts[i]
		}
		s.all = append(s.all, conn)
		s.mu.Unlock()

		if !scripted {
			conn.Close()
			continue
		}
		s.wg.Add(1)
		go s.serve(conn, i, script)
	}
}

func (s *ScriptedServer) serve(conn net.Conn, i int, script Script) {
	defer s.wg.Done()

	req := readRequest(conn, script.ReadToEOF)
	s.mu.Lock()
	s.received[i] = req
	s.mu.Unlock()

	if len(script.Reply) > 0 {
		if _, err := conn.Write(script.Reply); err != nil {
			conn.Close()
			return
		}
	}

	if script.KeepOpen {
		s.mu.Lock()
		s.ready[i] = conn
		s.mu.Unlock()
		return
	}
	conn.Close()
}

// readRequest reads one HTTP request: headers, then Content-Length bytes of
// body if declared. With toEOF it reads until the client half-closes.
func readRequest(conn net.Conn, toEOF bool) []byte {
	buf := make([]byte, 4096)
	var req []byte
	for {
		n, err := conn.Read(buf)
		req = append(req, buf[:n]...)
		if err != nil {
			return req
		}
		if toEOF {
			continue
		}
		headerEnd := bytes.Index(req, []byte("\r\n\r\n"))
		if headerEnd < 0 {
			continue
		}
		if len(req) >= headerEnd+4+contentLength(req[:headerEnd]) {
			return req
		}
	}
}

func contentLength(head []byte) int {
	for _, line := range bytes.Split(head, []byte("\r\n")) {
		name, val, ok := bytes.Cut(line, []byte(":"))
		if !ok {
			continue
		}
		if strings.EqualFold(string(bytes.TrimSpace(name)), "Content-Length") {
			if n, err := strconv.Atoi(string(bytes.TrimSpace(val))); err == nil {
				return n
			}
		}
	}
	return 0
}
