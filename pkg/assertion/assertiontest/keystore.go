// Package assertiontest writes throwaway key stores for tests.
package assertiontest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"software.sslmate.com/src/go-pkcs12"
)

const Passphrase = "changeit"

var (
	keyOnce sync.Once
	key     *rsa.PrivateKey
	keyErr  error
)

// Key returns a process-wide 2048-bit RSA key so tests don't pay for
// generation more than once.
func Key(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		key, keyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	require.NoError(t, keyErr)
	return key
}

// WritePKCS12 writes Key(t) plus a self-signed certificate to a .p12 store
// protected by Passphrase and returns its path.
func WritePKCS12(t testing.TB) string {
	t.Helper()
	k := Key(t)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "steeze-bearer-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &k.PublicKey, k)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pfx, err := pkcs12.Modern.Encode(k, cert, nil, Passphrase)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "partner.p12")
	require.NoError(t, os.WriteFile(path, pfx, 0o600))
	return path
}

// WritePEM writes Key(t) as an unencrypted PKCS#8 PEM file.
func WritePEM(t testing.TB) string {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(Key(t))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "partner.pem")
	b := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}
