package assertion

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeydtaylor/steeze-bearer/pkg/failure"
	"software.sslmate.com/src/go-pkcs12"
)

// LoadPrivateKey reads the RSA signing key from a key store file.
// ".p12"/".pfx" files are PKCS#12 stores opened with passphrase; anything
// else is treated as PEM (PKCS#1, PKCS#8, or a passphrase-encrypted PEM block).
func LoadPrivateKey(path, passphrase string) (*rsa.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, failure.New(failure.KindKeyMaterial, "key store filename not configured")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.Wrap(failure.KindKeyMaterial, err, "read key store %s", path)
	}

	var key any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".p12", ".pfx":
		key, _, _, err = pkcs12.DecodeChain(b, passphrase)
		if err != nil {
			return nil, failure.Wrap(failure.KindKeyMaterial, err, "open key store %s", path)
		}
	default:
		key, err = parsePEMKey(b, passphrase)
		if err != nil {
			return nil, failure.Wrap(failure.KindKeyMaterial, err, "parse key %s", path)
		}
	}

	rk, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, failure.New(failure.KindKeyMaterial, "key in %s is not an RSA private key", path)
	}
	return rk, nil
}

func parsePEMKey(b []byte, passphrase string) (any, error) {
	for {
		var block *pem.Block
		block, b = pem.Decode(b)
		if block == nil {
			return nil, errors.New("no private key PEM block found")
		}
		switch block.Type {
		case "RSA PRIVATE KEY", "PRIVATE KEY":
		case "ENCRYPTED PRIVATE KEY":
			return nil, errors.New("encrypted PKCS#8 keys are not supported; use a PKCS#12 key store")
		default:
			continue
		}

		der := block.Bytes
		//nolint:staticcheck // legacy encrypted PEM is still what older tooling emits
		if x509.IsEncryptedPEMBlock(block) {
			var err error
			der, err = x509.DecryptPEMBlock(block, []byte(passphrase))
			if err != nil {
				return nil, err
			}
		}

		if block.Type == "RSA PRIVATE KEY" {
			return x509.ParsePKCS1PrivateKey(der)
		}
		return x509.ParsePKCS8PrivateKey(der)
	}
}
