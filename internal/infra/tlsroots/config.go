package tlsroots

import (
	"crypto/tls"
	"fmt"
	"log/slog"
)

// ServerOptions locates the admin endpoint key pair and the optional CA
// that client certificates must chain to.
type ServerOptions struct {
	CertFile     string
	KeyFile      string
	ClientCAFile string
}

// ServerConfig builds a TLS server configuration whose certificate follows
// the key pair files. The returned watcher is already started; the caller
// stops it on shutdown.
func ServerConfig(opts ServerOptions, logger *slog.Logger) (*tls.Config, *Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := NewWatcher(opts.CertFile, opts.KeyFile, WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}

	cfg := &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: w.GetCertificate,
	}
	if opts.ClientCAFile != "" {
		pool := NewEmptyPool()
		if err := pool.AddCertFile(opts.ClientCAFile); err != nil {
			return nil, nil, err
		}
		cfg.ClientCAs = pool.Pool()
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	if err := w.Start(); err != nil {
		return nil, nil, err
	}
	return cfg, w, nil
}

// ClientConfig builds a TLS client configuration trusting the system
// roots plus the certificates in caFile, if set. A client key pair is
// presented when certFile is set.
func ClientConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	pool := NewPool()
	if caFile != "" {
		if err := pool.AddCertFile(caFile); err != nil {
			return nil, err
		}
	}
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    pool.Pool(),
	}
	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("tlsroots: load client key pair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
