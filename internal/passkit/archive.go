package passkit

import (
	"archive/zip"
	"bytes"
	"crypto/sha1" //nolint:gosec
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/smallstep/pkcs7"

	"github.com/spec-kit/wallet-pass-service/internal/certs"
)

// Reserved archive entries.
const (
	FilePass      = "pass.json"
	FileManifest  = "manifest.json"
	FileSignature = "signature"
)

// Manifest maps archive entries to their SHA-1 hex digest.
type Manifest map[string]string

// NewManifest hashes every file.
func NewManifest(files map[string][]byte) Manifest {
	m := make(Manifest, len(files))
	for name, data := range files {
		sum := sha1.Sum(data) //nolint:gosec
		m[name] = hex.EncodeToString(sum[:])
	}
	return m
}

// Sign produces a detached PKCS#7 signature over the manifest bytes, carrying
// the authority certificate alongside the signer.
func Sign(manifest []byte, bundle *certs.Bundle) ([]byte, error) {
	if bundle == nil {
		return nil, errors.New("nil certificate bundle")
	}
	sd, err := pkcs7.NewSignedData(manifest)
	if err != nil {
		return nil, fmt.Errorf("init signed data: %w", err)
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	if err := sd.AddSignerChain(bundle.Signer, bundle.Key, []*x509.Certificate{bundle.WWDR}, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, fmt.Errorf("add signer: %w", err)
	}
	sd.Detach()
	sig, err := sd.Finish()
	if err != nil {
		return nil, fmt.Errorf("finish signature: %w", err)
	}
	return sig, nil
}

// WriteArchive zips files together with their manifest and signature.
func WriteArchive(files map[string][]byte, bundle *certs.Bundle) ([]byte, error) {
	manifest, err := json.Marshal(NewManifest(files))
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	signature, err := Sign(manifest, bundle)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name string, data []byte) error {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	for _, name := range names {
		if err := write(name, files[name]); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := write(FileManifest, manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if err := write(FileSignature, signature); err != nil {
		return nil, fmt.Errorf("write signature: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadArchive returns every entry of a pass archive.
func ReadArchive(data []byte) (map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	files := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		files[f.Name] = content
	}
	return files, nil
}

// ParsePass reads pass.json back out of an archive.
func ParsePass(data []byte) (*Pass, error) {
	files, err := ReadArchive(data)
	if err != nil {
		return nil, err
	}
	raw, ok := files[FilePass]
	if !ok {
		return nil, errors.New("archive has no pass.json")
	}
	var p Pass
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode pass.json: %w", err)
	}
	return &p, nil
}
