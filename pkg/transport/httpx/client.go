// pkg/transport/httpx/client.go
package httpx

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// HTTPDoer is satisfied by *http.Client and allows easy mocking in tests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// ClientSource hands out the shared outbound client.
type ClientSource interface {
	Client() (HTTPDoer, error)
}

type staticSource struct{ d HTTPDoer }

func (s staticSource) Client() (HTTPDoer, error) { return s.d, nil }

// Static wraps an already-built client (tests, custom transports).
func Static(d HTTPDoer) ClientSource { return staticSource{d: d} }

const defaultProxyPort = 443

type ClientOptions struct {
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	EnableHTTP2    bool
	ProxyHost      string
	ProxyPort      int
	// InsecureSkipVerify disables certificate and hostname verification.
	// Opt-in only; logged at WARN when the client is built.
	InsecureSkipVerify bool
	CAFile             string
}

// NewClient builds the pooled outbound client.
func NewClient(opts ClientOptions, log *zap.Logger) (*http.Client, error) {
	if log == nil {
		log = zap.NewNop()
	}

	t := cleanhttp.DefaultPooledTransport()
	if opts.ConnectTimeout > 0 {
		t.DialContext = (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext
		t.TLSHandshakeTimeout = opts.ConnectTimeout
	}

	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if opts.CAFile != "" {
		b, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca_file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(b) {
			return nil, errors.New("ca_file contains no PEM certificates")
		}
		tlsCfg.RootCAs = pool
	}
	if opts.InsecureSkipVerify {
		log.Warn("outbound TLS verification disabled by configuration")
		tlsCfg.InsecureSkipVerify = true // opt-in only
	}
	t.TLSClientConfig = tlsCfg

	if opts.ProxyHost != "" {
		port := opts.ProxyPort
		if port == 0 {
			port = defaultProxyPort
		}
		t.Proxy = http.ProxyURL(&url.URL{
			Scheme: "http",
			Host:   net.JoinHostPort(opts.ProxyHost, strconv.Itoa(port)),
		})
	}

	if opts.EnableHTTP2 {
		t.ForceAttemptHTTP2 = true
		if err := http2.ConfigureTransport(t); err != nil {
			return nil, fmt.Errorf("configure http2: %w", err)
		}
	} else {
		t.ForceAttemptHTTP2 = false
		// non-nil empty map disables the bundled h2 upgrade
		t.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	}

	return &http.Client{Transport: t, Timeout: opts.RequestTimeout}, nil
}

// LazyClient builds the outbound client on first use and reuses it after.
// A failed build is not cached; the next caller tries again.
type LazyClient struct {
	opts ClientOptions
	log  *zap.Logger

	mu     sync.Mutex
	client atomic.Pointer[http.Client]
	builds atomic.Int32
}

func NewLazyClient(opts ClientOptions, log *zap.Logger) *LazyClient {
	return &LazyClient{opts: opts, log: log}
}

func (l *LazyClient) Client() (HTTPDoer, error) {
	if c := l.client.Load(); c != nil {
		return c, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if c := l.client.Load(); c != nil {
		return c, nil
	}
	c, err := NewClient(l.opts, l.log)
	if err != nil {
		return nil, err
	}
	l.builds.Add(1)
	l.client.Store(c)
	return c, nil
}

// Builds reports how many clients were constructed (0 or 1 once healthy).
func (l *LazyClient) Builds() int { return int(l.builds.Load()) }
