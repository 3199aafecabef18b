package bearer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeydtaylor/steeze-bearer/pkg/assertion"
	"github.com/joeydtaylor/steeze-bearer/pkg/assertion/assertiontest"
	"github.com/joeydtaylor/steeze-bearer/pkg/exchange"
	"github.com/joeydtaylor/steeze-bearer/pkg/failure"
	"github.com/joeydtaylor/steeze-bearer/pkg/relay"
	"github.com/joeydtaylor/steeze-bearer/pkg/tokencache"
	"github.com/joeydtaylor/steeze-bearer/pkg/transport/httpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type tokenEndpoint struct {
	srv    *httptest.Server
	calls  atomic.Int32
	mu     sync.Mutex
	forms  []url.Values
	status atomic.Int32
	body   func(n int32) string
	gate   chan struct{}
}

func newTokenEndpoint(t *testing.T, status int, body func(n int32) string) *tokenEndpoint {
	t.Helper()
	te := &tokenEndpoint{body: body}
	te.status.Store(int32(status))
	te.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := te.calls.Add(1)
		_ = r.ParseForm()
		te.mu.Lock()
		te.forms = append(te.forms, r.PostForm)
		te.mu.Unlock()
		if te.gate != nil {
			<-te.gate
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(te.status.Load()))
		_, _ = io.WriteString(w, te.body(n))
	}))
	t.Cleanup(te.srv.Close)
	return te
}

func (te *tokenEndpoint) form(i int) url.Values {
	te.mu.Lock()
	defer te.mu.Unlock()
	return te.forms[i]
}

func okTokens(n int32) string {
	return fmt.Sprintf(`{"access_token":"tok%d","token_type":"Bearer","scope":"api"}`, n)
}

type targetAPI struct {
	srv   *httptest.Server
	calls atomic.Int32
	mu    sync.Mutex
	auths []string
	uris  []string
}

func (ta *targetAPI) seen() (auths, uris []string) {
	ta.mu.Lock()
	defer ta.mu.Unlock()
	return append([]string(nil), ta.auths...), append([]string(nil), ta.uris...)
}

func newTargetAPI(t *testing.T) *targetAPI {
	t.Helper()
	ta := &targetAPI{}
	ta.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ta.calls.Add(1)
		ta.mu.Lock()
		ta.auths = append(ta.auths, r.Header.Get("Authorization"))
		ta.uris = append(ta.uris, r.RequestURI)
		ta.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{"records":[]}`)
	}))
	t.Cleanup(ta.srv.Close)
	return ta
}

type fixture struct {
	mw     *Middleware
	cache  *tokencache.Cache
	clock  *clock
	token  *tokenEndpoint
	target *targetAPI
	next   atomic.Int32
}

func newFixture(t *testing.T, token *tokenEndpoint, keyFile string) *fixture {
	t.Helper()
	f := &fixture{
		cache:  tokencache.New(tokencache.DefaultLifetime),
		clock:  &clock{now: t0},
		token:  token,
		target: newTargetAPI(t),
	}
	log := zaptest.NewLogger(t)
	hc := httpx.Static(&http.Client{Timeout: 5 * time.Second})

	f.mw = New(Deps{
		Enabled:  true,
		Prefixes: []string{"/api/", "/services/data/"},
		Signer: assertion.NewSigner(assertion.Options{
			Issuer:     "client-id",
			Subject:    "svc@example.com",
			Audience:   "https://login.example.com",
			KeyFile:    keyFile,
			Passphrase: assertiontest.Passphrase,
		}),
		Exchange: exchange.New(token.srv.URL, hc, log),
		Cache:    f.cache,
		Relay:    relay.New(f.target.srv.URL, hc, log),
		Skew:     tokencache.DefaultSkew,
		Now:      f.clock.Now,
		Log:      log,
	})
	return f
}

func (f *fixture) handler() http.Handler {
	return f.mw.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		f.next.Add(1)
		w.WriteHeader(http.StatusTeapot)
	}))
}

func (f *fixture) do(method, target string, body io.Reader) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler().ServeHTTP(rec, httptest.NewRequest(method, target, body))
	return rec
}

func TestMatchPrefix(t *testing.T) {
	prefixes := []string{"/api/", "/services/data/"}
	assert.True(t, MatchPrefix("/api/accounts", prefixes))
	assert.True(t, MatchPrefix("/services/data/v58.0/query", prefixes))
	assert.False(t, MatchPrefix("/apiary", prefixes))
	assert.False(t, MatchPrefix("/health", prefixes))
	assert.False(t, MatchPrefix("/api/accounts", nil))
}

func TestMiddleware_BypassesUnmatchedPaths(t *testing.T) {
	f := newFixture(t, newTokenEndpoint(t, http.StatusOK, okTokens), assertiontest.WritePKCS12(t))

	rec := f.do(http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.EqualValues(t, 1, f.next.Load())
	assert.Zero(t, f.token.calls.Load())
	assert.Zero(t, f.target.calls.Load())
}

func TestMiddleware_DisabledPassesThrough(t *testing.T) {
	f := newFixture(t, newTokenEndpoint(t, http.StatusOK, okTokens), assertiontest.WritePKCS12(t))
	f.mw.enabled = false

	rec := f.do(http.MethodGet, "/api/accounts", nil)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Zero(t, f.token.calls.Load())
}

func TestMiddleware_FirstRequestRefreshesAndRelays(t *testing.T) {
	f := newFixture(t, newTokenEndpoint(t, http.StatusOK, okTokens), assertiontest.WritePKCS12(t))

	rec := f.do(http.MethodGet, "/api/accounts?x=1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"records":[]}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Zero(t, f.next.Load())

	require.EqualValues(t, 1, f.token.calls.Load())
	form := f.token.form(0)
	assert.Equal(t, exchange.GrantTypeJWTBearer, form.Get("grant_type"))
	assert.Len(t, strings.Split(form.Get("assertion"), "."), 3)

	require.EqualValues(t, 1, f.target.calls.Load())
	auths, uris := f.target.seen()
	assert.Equal(t, "Bearer tok1", auths[0])
	assert.Equal(t, "/api/accounts?x=1", uris[0])

	tok, ok := f.cache.Get()
	require.True(t, ok)
	assert.Equal(t, "tok1", tok.AccessToken)
	assert.Equal(t, t0.Add(300*time.Second), tok.ExpiresAt)
	assert.Equal(t, tok.ExpiresAt, f.mw.Expiry())
}

func TestMiddleware_ReusesFreshTokenAndRefreshesInsideSkew(t *testing.T) {
	f := newFixture(t, newTokenEndpoint(t, http.StatusOK, okTokens), assertiontest.WritePKCS12(t))

	f.do(http.MethodGet, "/api/a", nil)
	f.clock.Advance(294 * time.Second)
	f.do(http.MethodGet, "/api/b", nil)
	assert.EqualValues(t, 1, f.token.calls.Load())

	// 295s is exactly expiry minus skew.
	f.clock.Advance(time.Second)
	f.do(http.MethodGet, "/api/c", nil)
	assert.EqualValues(t, 2, f.token.calls.Load())

	auths, _ := f.target.seen()
	assert.Equal(t, []string{"Bearer tok1", "Bearer tok1", "Bearer tok2"}, auths)
}

func TestMiddleware_UpstreamRejectionAbortsRelay(t *testing.T) {
	te := newTokenEndpoint(t, http.StatusBadRequest, func(int32) string { return `{"error":"invalid_grant"}` })
	f := newFixture(t, te, assertiontest.WritePKCS12(t))

	rec := f.do(http.MethodGet, "/api/accounts", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"ERR10052"`)
	assert.Contains(t, rec.Body.String(), "invalid_grant")
	assert.Zero(t, f.target.calls.Load())

	_, ok := f.cache.Get()
	assert.False(t, ok)
}

func TestMiddleware_FailedRefreshKeepsPreviousToken(t *testing.T) {
	te := newTokenEndpoint(t, http.StatusOK, okTokens)
	f := newFixture(t, te, assertiontest.WritePKCS12(t))

	f.do(http.MethodGet, "/api/a", nil)
	te.status.Store(http.StatusInternalServerError)
	f.clock.Advance(10 * time.Minute)

	rec := f.do(http.MethodGet, "/api/b", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, ok := f.cache.Get()
	require.True(t, ok)
	assert.Equal(t, "tok1", tok.AccessToken)
}

func TestMiddleware_MethodNotAllowedWithoutNetwork(t *testing.T) {
	f := newFixture(t, newTokenEndpoint(t, http.StatusOK, okTokens), assertiontest.WritePKCS12(t))

	rec := f.do(http.MethodOptions, "/api/x", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "OPTIONS")
	assert.Contains(t, rec.Body.String(), "/api/x")
	assert.Contains(t, rec.Body.String(), `"code":"ERR10008"`)
	assert.Zero(t, f.token.calls.Load())
	assert.Zero(t, f.target.calls.Load())
	assert.Zero(t, f.next.Load())
}

func TestMiddleware_KeyMaterialFailure(t *testing.T) {
	f := newFixture(t, newTokenEndpoint(t, http.StatusOK, okTokens), filepath.Join(t.TempDir(), "missing.p12"))

	rec := f.do(http.MethodPost, "/api/accounts", strings.NewReader(`{}`))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), failure.KindKeyMaterial.Code())
	assert.Zero(t, f.token.calls.Load())
	assert.Zero(t, f.target.calls.Load())
}

func TestMiddleware_ConcurrentRefreshesBothSucceed(t *testing.T) {
	te := newTokenEndpoint(t, http.StatusOK, okTokens)
	te.gate = make(chan struct{})
	f := newFixture(t, te, assertiontest.WritePKCS12(t))
	h := f.handler()

	codes := make([]int, 2)
	var g errgroup.Group
	for i := range codes {
		i := i
		g.Go(func() error {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts", nil))
			codes[i] = rec.Code
			return nil
		})
	}

	// Hold the token endpoint until both requests have seen the empty cache.
	require.Eventually(t, func() bool { return te.calls.Load() == 2 }, 5*time.Second, 5*time.Millisecond)
	close(te.gate)
	require.NoError(t, g.Wait())

	assert.Equal(t, []int{http.StatusOK, http.StatusOK}, codes)
	assert.EqualValues(t, 2, f.target.calls.Load())

	tok, ok := f.cache.Get()
	require.True(t, ok)
	assert.Contains(t, []string{"tok1", "tok2"}, tok.AccessToken)
	assert.False(t, f.cache.IsStale(t0, tokencache.DefaultSkew))
}

func TestToken_UsesCacheWithoutNetwork(t *testing.T) {
	f := newFixture(t, newTokenEndpoint(t, http.StatusOK, okTokens), assertiontest.WritePKCS12(t))
	f.cache.Set("preloaded", t0)

	tok, err := f.mw.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "preloaded", tok)
	assert.Zero(t, f.token.calls.Load())
}
