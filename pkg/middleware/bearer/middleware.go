// Package bearer intercepts requests under configured path prefixes and
// relays them to the partner API with a cached OAuth access token obtained
// through the JWT-bearer grant.
package bearer

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/joeydtaylor/steeze-bearer/pkg/exchange"
	"github.com/joeydtaylor/steeze-bearer/pkg/relay"
	"github.com/joeydtaylor/steeze-bearer/pkg/tokencache"
	"go.uber.org/zap"
)

type Signer interface {
	Sign(now time.Time) (string, error)
}

type Exchanger interface {
	Exchange(ctx context.Context, assertion string) (exchange.TokenResponse, error)
}

type Relayer interface {
	Do(ctx context.Context, in relay.Request, token string) (relay.Response, error)
}

// Deps are the collaborators of the interceptor. Cache, Now and Log default
// when nil; a zero Skew refreshes only once the token has expired.
type Deps struct {
	Enabled  bool
	Prefixes []string
	Signer   Signer
	Exchange Exchanger
	Cache    *tokencache.Cache
	Relay    Relayer
	Skew     time.Duration
	Now      func() time.Time
	Log      *zap.Logger
}

type Middleware struct {
	enabled  bool
	prefixes []string

	signer   Signer
	exchange Exchanger
	cache    *tokencache.Cache
	relay    Relayer

	skew time.Duration
	now  func() time.Time
	log  *zap.Logger
}

func New(d Deps) *Middleware {
	m := &Middleware{
		enabled:  d.Enabled,
		prefixes: append([]string(nil), d.Prefixes...),
		signer:   d.Signer,
		exchange: d.Exchange,
		cache:    d.Cache,
		relay:    d.Relay,
		skew:     d.Skew,
		now:      d.Now,
		log:      d.Log,
	}
	if m.cache == nil {
		m.cache = tokencache.New(tokencache.DefaultLifetime)
	}
	if m.skew < 0 {
		m.skew = 0
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	return m
}

// Intercepts reports whether r would be handled by the interceptor rather
// than passed to the next handler.
func (m *Middleware) Intercepts(r *http.Request) bool {
	if m == nil || !m.enabled {
		return false
	}
	return MatchPrefix(r.URL.Path, m.prefixes)
}

// MatchPrefix reports whether path starts with any of prefixes.
func MatchPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
