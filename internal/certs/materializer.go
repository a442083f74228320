package certs

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/pkcs12"

	"github.com/spec-kit/wallet-pass-service/internal/config"
)

var (
	// ErrCertificateUnavailable means a secret is missing or holds no PEM data.
	ErrCertificateUnavailable = errors.New("certificate material unavailable")
	// ErrCertificateInvalid means PEM data was present but could not be parsed.
	ErrCertificateInvalid = errors.New("certificate material invalid")
)

// Secret labels used in logs and errors.
const (
	LabelWWDR   = "wwdr certificate"
	LabelSigner = "signer certificate"
)

// Bundle is the request-scoped signing material. It is rebuilt from secrets on
// every use and never persisted.
type Bundle struct {
	WWDR       *x509.Certificate
	Signer     *x509.Certificate
	Key        crypto.Signer
	Passphrase string
}

// TLSCertificate presents the signer as a TLS client certificate.
func (b *Bundle) TLSCertificate() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{b.Signer.Raw},
		PrivateKey:  b.Key,
		Leaf:        b.Signer,
	}
}

// Materializer decodes secrets. It logs failures by label, never secret content.
type Materializer struct {
	logger *zap.Logger
}

// NewMaterializer constructs a materializer.
func NewMaterializer(logger *zap.Logger) *Materializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{logger: logger}
}

// Decode base64-decodes a secret. Anything without a PEM header is reported as
// absent rather than as an error.
func (m *Materializer) Decode(label, secret string) Material {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		m.logger.Warn("certificate secret empty", zap.String("label", label))
		return Material{}
	}
	raw, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		m.logger.Warn("certificate secret is not base64", zap.String("label", label), zap.Error(err))
		return Material{}
	}
	text := string(raw)
	if !strings.Contains(text, "-----BEGIN ") {
		m.logger.Warn("certificate secret has no pem header", zap.String("label", label))
		return Material{}
	}
	return Material{Present: true, Text: text}
}

// FromPKCS12 converts a base64 PKCS#12 archive into PEM text.
func (m *Materializer) FromPKCS12(label, secret, passphrase string) Material {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(secret))
	if err != nil || len(raw) == 0 {
		m.logger.Warn("pkcs12 secret is not base64", zap.String("label", label))
		return Material{}
	}
	blocks, err := pkcs12.ToPEM(raw, passphrase)
	if err != nil {
		m.logger.Warn("pkcs12 secret could not be opened", zap.String("label", label), zap.Error(err))
		return Material{}
	}
	var sb strings.Builder
	for _, b := range blocks {
		// ToPEM attaches bag attributes as headers; the extractor works on bare blocks.
		_ = pem.Encode(&sb, &pem.Block{Type: b.Type, Bytes: b.Bytes})
	}
	return Material{Present: true, Text: sb.String()}
}

// Load builds the signing bundle from the three pass secrets.
func (m *Materializer) Load(secrets config.Secrets) (*Bundle, error) {
	wwdrText := m.Decode(LabelWWDR, secrets.WWDRCert)
	if !wwdrText.Present {
		return nil, fmt.Errorf("%s: %w", LabelWWDR, ErrCertificateUnavailable)
	}

	var signerText Material
	if secrets.SignerFormat == config.SignerFormatPKCS12 {
		signerText = m.FromPKCS12(LabelSigner, secrets.SignerCert, secrets.SignerPassphrase)
	} else {
		signerText = m.Decode(LabelSigner, secrets.SignerCert)
	}
	if !signerText.Present {
		return nil, fmt.Errorf("%s: %w", LabelSigner, ErrCertificateUnavailable)
	}

	wwdr, err := m.parseCertificate(LabelWWDR, Extract(wwdrText.Text, LabelCertificate))
	if err != nil {
		return nil, err
	}
	signer, err := m.parseCertificate(LabelSigner, Extract(signerText.Text, LabelCertificate))
	if err != nil {
		return nil, err
	}
	key, err := m.parseKey(ExtractPrivateKey(signerText.Text), secrets.SignerPassphrase)
	if err != nil {
		return nil, err
	}

	return &Bundle{WWDR: wwdr, Signer: signer, Key: key, Passphrase: secrets.SignerPassphrase}, nil
}

func (m *Materializer) parseCertificate(label string, block Block) (*x509.Certificate, error) {
	if !block.Present {
		m.logger.Warn("certificate block missing", zap.String("label", label))
		return nil, fmt.Errorf("%s: %w", label, ErrCertificateUnavailable)
	}
	p, _ := pem.Decode(block.Bytes)
	if p == nil {
		return nil, fmt.Errorf("%s: %w", label, ErrCertificateInvalid)
	}
	cert, err := x509.ParseCertificate(p.Bytes)
	if err != nil {
		m.logger.Warn("certificate parse failed", zap.String("label", label), zap.Error(err))
		return nil, fmt.Errorf("%s: %w: %v", label, ErrCertificateInvalid, err)
	}
	return cert, nil
}

func (m *Materializer) parseKey(block Block, passphrase string) (crypto.Signer, error) {
	const label = "signer private key"
	if !block.Present {
		m.logger.Warn("private key block missing", zap.String("label", label))
		return nil, fmt.Errorf("%s: %w", label, ErrCertificateUnavailable)
	}
	p, _ := pem.Decode(block.Bytes)
	if p == nil {
		return nil, fmt.Errorf("%s: %w", label, ErrCertificateInvalid)
	}
	der := p.Bytes
	if x509.IsEncryptedPEMBlock(p) { //nolint:staticcheck
		decrypted, err := x509.DecryptPEMBlock(p, []byte(passphrase)) //nolint:staticcheck
		if err != nil {
			m.logger.Warn("private key decryption failed", zap.String("label", label))
			return nil, fmt.Errorf("%s: %w: %v", label, ErrCertificateInvalid, err)
		}
		der = decrypted
	}
	key, err := parsePrivateKey(der)
	if err != nil {
		m.logger.Warn("private key parse failed", zap.String("label", label))
		return nil, fmt.Errorf("%s: %w: %v", label, ErrCertificateInvalid, err)
	}
	return key, nil
}

func parsePrivateKey(der []byte) (crypto.Signer, error) {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		switch k := key.(type) {
		case *rsa.PrivateKey:
			return k, nil
		case *ecdsa.PrivateKey:
			return k, nil
		default:
			return nil, fmt.Errorf("unsupported key type %T", key)
		}
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, errors.New("unrecognised private key encoding")
}
