package bearer

import (
	"context"
	"time"

	"github.com/joeydtaylor/steeze-bearer/pkg/failure"
	"github.com/joeydtaylor/steeze-bearer/pkg/middleware/metrics"
	"go.uber.org/zap"
)

// Token returns a fresh access token, refreshing synchronously when the
// cached one is missing or inside the skew window.
func (m *Middleware) Token(ctx context.Context) (string, error) {
	if tok, ok := m.cache.Fresh(m.now(), m.skew); ok {
		return tok.AccessToken, nil
	}
	return m.refresh(ctx)
}

// refresh signs a new assertion and exchanges it. The cache is only written
// on success; the caller uses the token it obtained, not a re-read.
func (m *Middleware) refresh(ctx context.Context) (string, error) {
	start := m.now()
	m.log.Info("refreshing access token")

	assertion, err := m.signer.Sign(start)
	if err != nil {
		m.fail(err)
		return "", err
	}

	tr, err := m.exchange.Exchange(ctx, assertion)
	if err != nil {
		m.fail(err)
		return "", err
	}

	tok := m.cache.Set(tr.AccessToken, m.now())
	metrics.RecordRefresh("success")
	m.log.Info("access token refreshed",
		zap.String("tokenType", tr.TokenType),
		zap.String("scope", tr.Scope),
		zap.Time("expiresAt", tok.ExpiresAt),
		zap.Duration("took", m.now().Sub(start)),
	)
	return tok.AccessToken, nil
}

func (m *Middleware) fail(err error) {
	kind := failure.KindOf(err)
	metrics.RecordRefresh(kind.String())
	m.log.Error("access token refresh failed",
		zap.String("kind", kind.String()),
		zap.String("code", kind.Code()),
		zap.Error(err),
	)
}

// Expiry exposes the cached token's expiry, zero when nothing is cached.
func (m *Middleware) Expiry() time.Time {
	if tok, ok := m.cache.Get(); ok {
		return tok.ExpiresAt
	}
	return time.Time{}
}
