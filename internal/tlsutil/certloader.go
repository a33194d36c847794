// Package tlsutil serves the status server's TLS certificate and swaps it
// in place when the certificate or key file is rewritten, so certificates
// can be rotated without a restart.
package tlsutil

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Faith-Rounds/flash-arb-bot/internal/reload"
)

// CertLoader holds the active certificate. A failed reload keeps the
// previous certificate in use.
type CertLoader struct {
	cert     atomic.Pointer[tls.Certificate]
	certFile string
	keyFile  string
	debounce time.Duration
	logger   *slog.Logger
}

// New loads the initial key pair. An error here is a startup failure.
func New(certFile, keyFile string, debounce time.Duration, logger *slog.Logger) (*CertLoader, error) {
	cl := &CertLoader{
		certFile: certFile,
		keyFile:  keyFile,
		debounce: debounce,
		logger:   logger,
	}
	if err := cl.load(); err != nil {
		return nil, fmt.Errorf("initial certificate load: %w", err)
	}
	return cl, nil
}

// Start watches both files until ctx is cancelled. A watch failure is
// returned, but the loaded certificate remains usable.
func (cl *CertLoader) Start(ctx context.Context) error {
	for _, path := range []string{cl.certFile, cl.keyFile} {
		w := reload.NewWatcher(path, cl.debounce, cl.logger)
		if err := w.Start(ctx, func() { cl.Reload() }); err != nil { //nolint:errcheck
			return err
		}
	}
	cl.logger.Info("TLS certificate loaded, watching for changes",
		"cert_file", cl.certFile, "key_file", cl.keyFile)
	return nil
}

// GetCertificate is the tls.Config.GetCertificate callback.
func (cl *CertLoader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return cl.cert.Load(), nil
}

// TLSConfig returns a server config backed by the loader.
func (cl *CertLoader) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: cl.GetCertificate,
	}
}

// Reload re-reads the key pair from disk.
func (cl *CertLoader) Reload() error {
	if err := cl.load(); err != nil {
		cl.logger.Error("TLS certificate reload failed, keeping current",
			"error", err, "cert_file", cl.certFile, "key_file", cl.keyFile)
		return err
	}
	cl.logger.Info("TLS certificate reloaded", "cert_file", cl.certFile)
	return nil
}

func (cl *CertLoader) load() error {
	cert, err := tls.LoadX509KeyPair(cl.certFile, cl.keyFile)
	if err != nil {
		return err
	}
	cl.cert.Store(&cert)
	return nil
}
