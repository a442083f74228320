// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/spec-kit/wallet-pass-service/internal/config"
)

// SigningFixture is a throwaway authority and a signer certificate issued by it.
type SigningFixture struct {
	CAPEM     string
	SignerPEM string
	KeyPEM    string
	CA        *x509.Certificate
	Signer    *x509.Certificate
	Key       *rsa.PrivateKey
}

// NewSigningFixture generates a CA plus signer pair valid for one hour.
func NewSigningFixture(t *testing.T) *SigningFixture {
	t.Helper()

	caKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate ca key: %v", err)
	}
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test WWDR"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("create ca: %v", err)
	}
	ca, _ := x509.ParseCertificate(caDER)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate signer key: %v", err)
	}
	signerTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "Pass Type ID: pass.com.example.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	signerDER, err := x509.CreateCertificate(rand.Reader, signerTmpl, ca, &key.PublicKey, caKey)
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}
	signer, _ := x509.ParseCertificate(signerDER)

	return &SigningFixture{
		CAPEM:     string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER})),
		SignerPEM: string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: signerDER})),
		KeyPEM:    string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})),
		CA:        ca,
		Signer:    signer,
		Key:       key,
	}
}

// Secrets encodes the fixture the way the deployment stores it.
func (f *SigningFixture) Secrets() config.Secrets {
	return config.Secrets{
		WWDRCert:     B64(f.CAPEM),
		SignerCert:   B64(f.SignerPEM + f.KeyPEM),
		SignerFormat: config.SignerFormatPEM,
	}
}

// B64 base64-encodes s with the standard alphabet.
func B64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
