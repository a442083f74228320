// Package certs turns opaque secret blobs into pass-signing certificate material.
package certs

import "strings"

// Labels of the PEM blocks the signer secret may carry.
const (
	LabelCertificate   = "CERTIFICATE"
	LabelPrivateKey    = "PRIVATE KEY"
	LabelRSAPrivateKey = "RSA PRIVATE KEY"
	LabelECPrivateKey  = "EC PRIVATE KEY"
)

// privateKeyLabels is the lookup order for the signer key.
var privateKeyLabels = []string{LabelPrivateKey, LabelRSAPrivateKey, LabelECPrivateKey}

// Material is the decoded text of a secret. Present is false when the secret
// held no PEM data at all.
type Material struct {
	Present bool
	Text    string
}

// Block is one PEM block cut out of a larger PEM text, header and footer included.
type Block struct {
	Present bool
	Label   string
	Bytes   []byte
}

// Extract returns the first block whose BEGIN/END markers carry exactly label.
func Extract(text, label string) Block {
	begin := "-----BEGIN " + label + "-----"
	end := "-----END " + label + "-----"

	start := strings.Index(text, begin)
	if start < 0 {
		return Block{}
	}
	stop := strings.Index(text[start+len(begin):], end)
	if stop < 0 {
		return Block{}
	}
	stop += start + len(begin) + len(end)
	return Block{Present: true, Label: label, Bytes: []byte(text[start:stop])}
}

// ExtractPrivateKey looks for the signer key under the generic label first,
// then the RSA and EC specific ones.
func ExtractPrivateKey(text string) Block {
	for _, label := range privateKeyLabels {
		if b := Extract(text, label); b.Present {
			return b
		}
	}
	return Block{}
}
