package core

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joeydtaylor/steeze-bearer/pkg/config"
	"github.com/joeydtaylor/steeze-bearer/pkg/exchange"
	"github.com/joeydtaylor/steeze-bearer/pkg/middleware/bearer"
	"github.com/joeydtaylor/steeze-bearer/pkg/middleware/body"
	"github.com/joeydtaylor/steeze-bearer/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-bearer/pkg/relay"
	httpx "github.com/joeydtaylor/steeze-bearer/pkg/transport/httpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubSigner struct{}

func (stubSigner) Sign(time.Time) (string, error) { return "a.b.c", nil }

type stubExchange struct{}

func (stubExchange) Exchange(context.Context, string) (exchange.TokenResponse, error) {
	return exchange.TokenResponse{AccessToken: "tok1", TokenType: "Bearer", Scope: "api"}, nil
}

type echoRelay struct{}

func (echoRelay) Do(ctx context.Context, in relay.Request, token string) (relay.Response, error) {
	b, _ := body.RequestBody(ctx)
	return relay.Response{
		StatusCode:  http.StatusOK,
		ContentType: "text/plain",
		Body:        []byte(in.Method + " " + in.Path + " " + token + " " + b),
	}, nil
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := config.Default()
	cfg.Enabled = true
	cfg.AppliedPathPrefixes = []string{"/api/"}
	cfg.ServiceHost = "https://partner.example.com"
	cfg.CertPassword = "changeit"
	cfg.Body.Enabled = true
	cfg.Body.CacheRequestBody = true

	log := zaptest.NewLogger(t)
	bm := bearer.New(bearer.Deps{
		Enabled:  cfg.Enabled,
		Prefixes: cfg.AppliedPathPrefixes,
		Signer:   stubSigner{},
		Exchange: stubExchange{},
		Relay:    echoRelay{},
		Log:      log,
	})

	return BuildRouter(cfg, BuildDeps{
		Bearer:  bm,
		Body:    body.New(cfg.BodyOptions(), log),
		LogMW:   logger.NewMiddleware(log),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "# metrics") }),
		Router:  httpx.NewChi(),
	})
}

func TestBuildRouter_Intercepts(t *testing.T) {
	h := testRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/accounts", strings.NewReader(`{"x":1}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `POST /api/accounts tok1 {"x":1}`, rec.Body.String())
}

func TestBuildRouter_OwnRoutes(t *testing.T) {
	h := testRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "# metrics", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/server/info", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cert_password":"*"`)
	assert.NotContains(t, rec.Body.String(), "changeit")
}

func TestBuildRouter_NotFound(t *testing.T) {
	h := testRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no route for /other")
}
