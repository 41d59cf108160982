// Package tlsutil builds TLS client configurations for connections to a
// camera server.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/c360/camstream/config"
	"github.com/c360/camstream/errors"
)

// ClientConfig creates a tls.Config for connections to serverName from the
// configured options. The system CA bundle is always trusted; CAFiles add
// trust for the self-signed and site-CA certificates camera servers
// commonly present.
func ClientConfig(serverName string, opts config.TLSOptions) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		ServerName: serverName,
		MinVersion: parseTLSVersion(opts.MinVersion),
	}

	// Start with system CA pool
	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		// If system pool unavailable, create empty pool
		rootCAs = x509.NewCertPool()
	}

	// Add additional CAs from config
	for _, caFile := range opts.CAFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "ClientConfig",
				fmt.Sprintf("read CA file %s", caFile))
		}
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, errors.WrapFatal(
				fmt.Errorf("invalid PEM data"),
				"tlsutil", "ClientConfig",
				fmt.Sprintf("parse CA certificate from %s", caFile))
		}
	}

	tlsConfig.RootCAs = rootCAs

	// Setting this is intentional via config; operators accept the
	// security implications for servers that cannot carry a real
	// certificate
	if opts.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	return tlsConfig, nil
}

// parseTLSVersion converts version string to crypto/tls constant
// Returns tls.VersionTLS12 if empty or invalid
func parseTLSVersion(version string) uint16 {
	switch version {
	case "1.3":
		return tls.VersionTLS13
	case "1.2":
		return tls.VersionTLS12
	default:
		return tls.VersionTLS12 // Safe default
	}
}
