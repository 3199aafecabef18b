// Package assertion builds the self-signed RS256 assertion presented to the
// authorization server in the JWT-bearer grant.
package assertion

import (
	"crypto/rsa"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joeydtaylor/steeze-bearer/pkg/failure"
)

// DefaultLifetime is how long a freshly signed assertion stays valid.
const DefaultLifetime = 300 * time.Second

// Claims is the fixed claim set {iss, sub, aud, exp}. Field order is the
// serialised order.
type Claims struct {
	Issuer    string `json:"iss"`
	Subject   string `json:"sub"`
	Audience  string `json:"aud"`
	ExpiresAt int64  `json:"exp"`
}

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}
func (c Claims) GetIssuedAt() (*jwt.NumericDate, error)  { return nil, nil }
func (c Claims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c Claims) GetIssuer() (string, error)              { return c.Issuer, nil }
func (c Claims) GetSubject() (string, error)             { return c.Subject, nil }
func (c Claims) GetAudience() (jwt.ClaimStrings, error) {
	return jwt.ClaimStrings{c.Audience}, nil
}

type Options struct {
	Issuer     string
	Subject    string
	Audience   string
	KeyFile    string
	Passphrase string
	Lifetime   time.Duration
}

// Signer is stateless between calls; the key store is re-read on every Sign.
type Signer struct {
	opts    Options
	loadKey func(path, passphrase string) (*rsa.PrivateKey, error)
}

func NewSigner(opts Options) *Signer {
	if opts.Lifetime <= 0 {
		opts.Lifetime = DefaultLifetime
	}
	return &Signer{opts: opts, loadKey: LoadPrivateKey}
}

// ClaimsAt returns the claim set an assertion signed at now carries.
func (s *Signer) ClaimsAt(now time.Time) Claims {
	return Claims{
		Issuer:    s.opts.Issuer,
		Subject:   s.opts.Subject,
		Audience:  s.opts.Audience,
		ExpiresAt: now.Unix() + int64(s.opts.Lifetime/time.Second),
	}
}

// Sign returns header.claims.signature, each segment base64url without padding.
func (s *Signer) Sign(now time.Time) (string, error) {
	key, err := s.loadKey(s.opts.KeyFile, s.opts.Passphrase)
	if err != nil {
		return "", err
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, s.ClaimsAt(now))
	// header is exactly {"alg":"RS256"}
	delete(tok.Header, "typ")

	signed, err := tok.SignedString(key)
	if err != nil {
		return "", failure.Wrap(failure.KindSigning, err, "sign assertion")
	}
	return signed, nil
}
