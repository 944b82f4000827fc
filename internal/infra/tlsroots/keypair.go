package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sync"
	"time"
)

// KeyPair holds a client certificate that can be swapped while
// connections are being dialed.
type KeyPair struct {
	certFile string
	keyFile  string

	mu   sync.RWMutex
	cert *tls.Certificate
}

// LoadKeyPair reads certFile and keyFile.
func LoadKeyPair(certFile, keyFile string) (*KeyPair, error) {
	kp := &KeyPair{certFile: certFile, keyFile: keyFile}
	if err := kp.Reload(); err != nil {
		return nil, err
	}
	return kp, nil
}

// Reload re-reads both files. On failure the previous certificate stays
// in use.
func (kp *KeyPair) Reload() error {
	cert, err := tls.LoadX509KeyPair(kp.certFile, kp.keyFile)
	if err != nil {
		return fmt.Errorf("tlsroots: load key pair: %w", err)
	}
	if cert.Leaf == nil && len(cert.Certificate) > 0 {
		if leaf, err := x509.ParseCertificate(cert.Certificate[0]); err == nil {
			cert.Leaf = leaf
		}
	}

	kp.mu.Lock()
	kp.cert = &cert
	kp.mu.Unlock()
	return nil
}

// Files returns the certificate and key paths.
func (kp *KeyPair) Files() (certFile, keyFile string) {
	return kp.certFile, kp.keyFile
}

// NotAfter returns the expiry of the current certificate.
func (kp *KeyPair) NotAfter() time.Time {
	kp.mu.RLock()
	defer kp.mu.RUnlock()
	if kp.cert == nil || kp.cert.Leaf == nil {
		return time.Time{}
	}
	return kp.cert.Leaf.NotAfter
}

// GetClientCertificate implements tls.Config.GetClientCertificate.
func (kp *KeyPair) GetClientCertificate(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
	kp.mu.RLock()
	defer kp.mu.RUnlock()
	return kp.cert, nil
}
