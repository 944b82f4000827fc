package tlsroots

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeCertAndKey writes a self-signed certificate valid for validFor and
// its key, returning both paths.
func writeCertAndKey(t *testing.T, dir, name string, validFor time.Duration) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: name},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(validFor),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey() error = %v", err)
	}

	certFile := filepath.Join(dir, name+".crt")
	keyFile := filepath.Join(dir, name+".key")
	if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600); err != nil {
		t.Fatal(err)
	}
	return certFile, keyFile
}

func TestNewPool(t *testing.T) {
	if NewPool().CertPool() == nil {
		t.Fatal("CertPool() returned nil")
	}
}

func TestAddCertPEM_NoCerts(t *testing.T) {
	p := NewPool()
	if err := p.AddCertPEM(nil); !errors.Is(err, ErrNoCertsFound) {
		t.Errorf("AddCertPEM(nil) error = %v, want %v", err, ErrNoCertsFound)
	}
	if err := p.AddCertPEM([]byte("not a certificate")); !errors.Is(err, ErrNoCertsFound) {
		t.Errorf("AddCertPEM() error = %v, want %v", err, ErrNoCertsFound)
	}
}

func TestAddCertPEM_InvalidCert(t *testing.T) {
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte("junk")})
	if err := NewPool().AddCertPEM(data); err == nil {
		t.Error("AddCertPEM() expected error for invalid certificate")
	}
}

func TestAddCertFileAndDir(t *testing.T) {
	dir := t.TempDir()
	certFile, _ := writeCertAndKey(t, dir, "ca", time.Hour)
	if err := os.WriteFile(filepath.Join(dir, "notes.pem"), []byte("nothing here"), 0o600); err != nil {
		t.Fatal(err)
	}

	p := NewPool()
	if err := p.AddCertFile(certFile); err != nil {
		t.Fatalf("AddCertFile() error = %v", err)
	}
	if err := p.AddCertFile(filepath.Join(dir, "missing.crt")); err == nil {
		t.Error("AddCertFile() expected error for missing file")
	}
	if err := NewPool().AddCertDir(dir); err != nil {
		t.Errorf("AddCertDir() error = %v", err)
	}
	if err := NewPool().AddCertDir(filepath.Join(dir, "nope")); err == nil {
		t.Error("AddCertDir() expected error for missing dir")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"disabled ignores files", Config{CertFile: "a.crt"}, nil},
		{"no client cert", Config{Enabled: true}, nil},
		{"both files", Config{Enabled: true, CertFile: "a", KeyFile: "b"}, nil},
		{"cert only", Config{Enabled: true, CertFile: "a"}, ErrIncompleteKeyPair},
		{"key only", Config{Enabled: true, KeyFile: "b"}, ErrIncompleteKeyPair},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClientConfig(t *testing.T) {
	cfg, kp, err := ClientConfig(Config{})
	if err != nil || cfg != nil || kp != nil {
		t.Fatalf("disabled ClientConfig() = %v, %v, %v", cfg, kp, err)
	}

	dir := t.TempDir()
	caFile, _ := writeCertAndKey(t, dir, "ca", time.Hour)
	certFile, keyFile := writeCertAndKey(t, dir, "client", time.Hour)

	cfg, kp, err = ClientConfig(Config{
		Enabled:    true,
		CAFile:     caFile,
		CertFile:   certFile,
		KeyFile:    keyFile,
		ServerName: "store.internal",
	})
	if err != nil {
		t.Fatalf("ClientConfig() error = %v", err)
	}
	if cfg.ServerName != "store.internal" {
		t.Errorf("ServerName = %q", cfg.ServerName)
	}
	if cfg.RootCAs == nil || cfg.GetClientCertificate == nil {
		t.Error("roots and client certificate should be set")
	}
	if kp == nil {
		t.Fatal("KeyPair should be returned")
	}
	cert, err := cfg.GetClientCertificate(nil)
	if err != nil || cert == nil {
		t.Errorf("GetClientCertificate() = %v, %v", cert, err)
	}

	if _, _, err := ClientConfig(Config{Enabled: true, CAFile: filepath.Join(dir, "missing")}); err == nil {
		t.Error("ClientConfig() expected error for missing CA file")
	}
}

func TestClientConfig_CADir(t *testing.T) {
	dir := t.TempDir()
	writeCertAndKey(t, dir, "ca", time.Hour)
	if err := os.WriteFile(filepath.Join(dir, "readme.pem"), []byte("no certificate"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, kp, err := ClientConfig(Config{Enabled: true, CADir: dir})
	if err != nil {
		t.Fatalf("ClientConfig() error = %v", err)
	}
	if cfg.RootCAs == nil || kp != nil {
		t.Errorf("ClientConfig() = %v, %v; want roots without key pair", cfg.RootCAs, kp)
	}

	if _, _, err := ClientConfig(Config{Enabled: true, CADir: filepath.Join(dir, "missing")}); err == nil {
		t.Error("ClientConfig() expected error for missing CA dir")
	}
}

func TestKeyPair_Reload(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeCertAndKey(t, dir, "client", time.Hour)

	kp, err := LoadKeyPair(certFile, keyFile)
	if err != nil {
		t.Fatalf("LoadKeyPair() error = %v", err)
	}
	first := kp.NotAfter()
	if first.IsZero() {
		t.Fatal("NotAfter() should be set")
	}

	writeCertAndKey(t, dir, "client", 48*time.Hour)
	if err := kp.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if !kp.NotAfter().After(first) {
		t.Errorf("NotAfter() = %v, want later than %v", kp.NotAfter(), first)
	}

	if err := os.WriteFile(certFile, []byte("broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	before := kp.NotAfter()
	if err := kp.Reload(); err == nil {
		t.Error("Reload() expected error for broken file")
	}
	if !kp.NotAfter().Equal(before) {
		t.Error("failed reload must keep the previous certificate")
	}

	gotCert, gotKey := kp.Files()
	if gotCert != certFile || gotKey != keyFile {
		t.Errorf("Files() = %q, %q", gotCert, gotKey)
	}
}

func TestLoadKeyPair_Missing(t *testing.T) {
	if _, err := LoadKeyPair("/nonexistent.crt", "/nonexistent.key"); err == nil {
		t.Error("LoadKeyPair() expected error")
	}
}
