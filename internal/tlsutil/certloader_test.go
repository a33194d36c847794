package tlsutil

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// writeTestCert writes a self-signed pair with the given serial number into
// dir, replacing each file by rename.
func writeTestCert(t *testing.T, dir string, serial int64) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: "executor"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	certFile = filepath.Join(dir, "tls.crt")
	keyFile = filepath.Join(dir, "tls.key")
	replace(t, keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}))
	replace(t, certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}))
	return certFile, keyFile
}

func replace(t *testing.T, path string, data []byte) {
	t.Helper()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}
}

func serialOf(t *testing.T, cl *CertLoader) int64 {
	t.Helper()
	cert, err := cl.GetCertificate(&tls.ClientHelloInfo{})
	if err != nil || cert == nil {
		t.Fatalf("GetCertificate: %v", err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatal(err)
	}
	return leaf.SerialNumber.Int64()
}

func TestCertLoader_InitialLoad(t *testing.T) {
	certFile, keyFile := writeTestCert(t, t.TempDir(), 1)

	cl, err := New(certFile, keyFile, 50*time.Millisecond, testLogger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if serialOf(t, cl) != 1 {
		t.Error("unexpected certificate")
	}
	if cl.TLSConfig().MinVersion != tls.VersionTLS12 {
		t.Error("expected TLS 1.2 minimum")
	}
}

func TestCertLoader_InvalidCert(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "tls.crt")
	keyFile := filepath.Join(dir, "tls.key")
	os.WriteFile(certFile, []byte("invalid"), 0o644) //nolint:errcheck
	os.WriteFile(keyFile, []byte("invalid"), 0o644)  //nolint:errcheck

	if _, err := New(certFile, keyFile, 0, testLogger); err == nil {
		t.Fatal("expected error for invalid cert")
	}
}

func TestCertLoader_FailedReloadKeepsCurrent(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeTestCert(t, dir, 1)

	cl, err := New(certFile, keyFile, 0, testLogger)
	if err != nil {
		t.Fatal(err)
	}

	replace(t, certFile, []byte("garbage"))
	if err := cl.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if serialOf(t, cl) != 1 {
		t.Error("failed reload must keep the previous certificate")
	}
}

func TestCertLoader_WatchPicksUpRotation(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeTestCert(t, dir, 1)

	cl, err := New(certFile, keyFile, 50*time.Millisecond, testLogger)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := cl.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	writeTestCert(t, dir, 2)

	deadline := time.Now().Add(3 * time.Second)
	for serialOf(t, cl) != 2 {
		if time.Now().After(deadline) {
			t.Fatal("rotated certificate was not loaded")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
