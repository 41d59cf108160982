// Package httpclient implements the non-blocking HTTP/1.1 client engine used
// to talk to camera servers.
package httpclient

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/c360/camstream/errors"
	"github.com/c360/camstream/metric"
)

const defaultUserAgent = "camstream/1.0"

// Client holds the connection settings shared by every request to one
// server. It is immutable after construction and safe for concurrent use;
// each request it creates runs its own connection and goroutine.
type Client struct {
	host     string
	port     int
	username string
	password string

	useTLS    bool
	tlsConfig *tls.Config

	dialTimeout time.Duration
	compression bool
	userAgent   string

	logger  *slog.Logger
	metrics *metric.Metrics
}

// NewClient creates a client for the server at host with optional
// configuration.
func NewClient(host string, opts ...ClientOption) (*Client, error) {
	if host == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Client", "NewClient", "host is required")
	}

	c := &Client{
		host:        host,
		port:        80,
		dialTimeout: 10 * time.Second,
		compression: true,
		userAgent:   defaultUserAgent,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	if c.logger == nil {
		c.logger = slog.Default().With("component", "httpclient", "host", c.host)
	}

	return c, nil
}

// Host returns the configured server host.
func (c *Client) Host() string {
	return c.host
}

// Port returns the configured server port.
func (c *Client) Port() int {
	return c.port
}

// Address returns the dial address in host:port form.
func (c *Client) Address() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// NewRequest creates a request for action (the HTTP method) against path.
// The request does nothing until Start; configure query, body, and headers
// first. handler receives the reply events.
func (c *Client) NewRequest(action, path string, handler Handler) *Request {
	return newRequest(c, action, path, handler)
}

// dial establishes the TCP connection, wrapping it in TLS when configured.
// The context bounds the whole connection attempt including the handshake.
func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Address())
	if err != nil {
		return nil, err
	}

	if !c.useTLS {
		return conn, nil
	}

	cfg := c.tlsConfig
	if cfg == nil {
		cfg = &tls.Config{ServerName: c.host, MinVersion: tls.VersionTLS12}
	}
	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}
