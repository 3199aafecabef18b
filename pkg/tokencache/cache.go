// Package tokencache holds the single process-wide access token.
//
// The (token, expiry) pair is swapped as one value, so readers never observe
// a token without its expiry. Concurrent refreshes are not serialised: two
// callers that both see a stale entry will both refresh and the last Set
// wins. Every refresh yields an equally valid token, so the duplicate
// exchange costs one extra round trip and nothing else.
package tokencache

import (
	"sync/atomic"
	"time"
)

const (
	// DefaultLifetime is the fixed cache window for a token. The token
	// endpoint's own expires_in (if any) is not consulted.
	DefaultLifetime = 300 * time.Second
	// DefaultSkew triggers refresh this long before the cached expiry.
	DefaultSkew = 5 * time.Second
)

type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

type Cache struct {
	lifetime time.Duration
	cur      atomic.Pointer[Token]
}

func New(lifetime time.Duration) *Cache {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Cache{lifetime: lifetime}
}

// IsStale reports whether now >= expiresAt - skew. An empty cache is stale.
func (c *Cache) IsStale(now time.Time, skew time.Duration) bool {
	t := c.cur.Load()
	if t == nil {
		return true
	}
	return !now.Before(t.ExpiresAt.Add(-skew))
}

// Fresh returns the cached token when it is not stale at now. Staleness and
// the returned token come from the same load.
func (c *Cache) Fresh(now time.Time, skew time.Duration) (Token, bool) {
	t := c.cur.Load()
	if t == nil || !now.Before(t.ExpiresAt.Add(-skew)) {
		return Token{}, false
	}
	return *t, true
}

func (c *Cache) Get() (Token, bool) {
	t := c.cur.Load()
	if t == nil {
		return Token{}, false
	}
	return *t, true
}

// Set stores accessToken with expiresAt = issuedAt + lifetime and returns
// the stored pair.
func (c *Cache) Set(accessToken string, issuedAt time.Time) Token {
	t := &Token{AccessToken: accessToken, ExpiresAt: issuedAt.Add(c.lifetime)}
	c.cur.Store(t)
	return *t
}

func (c *Cache) Lifetime() time.Duration { return c.lifetime }
