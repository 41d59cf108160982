package httpclient

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/camstream/metric"
)

// ClientOption is a functional option for configuring the Client
type ClientOption func(*Client) error

// WithPort sets the server port (default 80)
func WithPort(port int) ClientOption {
	return func(c *Client) error {
		if port < 1 || port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", port)
		}
		c.port = port
		return nil
	}
}

// WithCredentials sets HTTP basic authentication credentials
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) error {
		c.username = username
		c.password = password
		return nil
	}
}

// WithTLS enables TLS for all connections
func WithTLS(enabled bool) ClientOption {
	return func(c *Client) error {
		c.useTLS = enabled
		return nil
	}
}

// WithTLSConfig sets a custom TLS configuration, implying TLS connections
func WithTLSConfig(cfg *tls.Config) ClientOption {
	return func(c *Client) error {
		c.tlsConfig = cfg
		if cfg != nil {
			c.useTLS = true
		}
		return nil
	}
}

// WithDialTimeout bounds connection establishment (default 10s)
func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d < 0 {
			return fmt.Errorf("dial timeout must be non-negative, got %v", d)
		}
		c.dialTimeout = d
		return nil
	}
}

// WithCompression controls whether requests advertise gzip support
// (default on). Streaming consumers disable it so records arrive as sent.
func WithCompression(enabled bool) ClientOption {
	return func(c *Client) error {
		c.compression = enabled
		return nil
	}
}

// WithUserAgent overrides the User-Agent header value
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) error {
		if ua != "" {
			c.userAgent = ua
		}
		return nil
	}
}

// WithLogger sets a custom structured logger for the client
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithMetrics wires request metrics into the given collector
func WithMetrics(m *metric.Metrics) ClientOption {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}
