// Package relay forwards an intercepted request to the partner API with a
// bearer token and hands the response back unmodified.
package relay

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/joeydtaylor/steeze-bearer/pkg/failure"
	"github.com/joeydtaylor/steeze-bearer/pkg/middleware/body"
	"github.com/joeydtaylor/steeze-bearer/pkg/middleware/metrics"
	"github.com/joeydtaylor/steeze-bearer/pkg/transport/httpx"
	"go.uber.org/zap"
)

type Request struct {
	Method      string
	// Path is the escaped request path.
	Path        string
	RawQuery    string
	ContentType string
	Body        io.Reader
}

// FromHTTP captures the parts of r the relay forwards. Path keeps the
// inbound escaping so encoded '?', '#' and '/' reach the target unchanged.
func FromHTTP(r *http.Request) Request {
	return Request{
		Method:      r.Method,
		Path:        r.URL.EscapedPath(),
		RawQuery:    r.URL.RawQuery,
		ContentType: r.Header.Get("Content-Type"),
		Body:        r.Body,
	}
}

type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Write copies the relayed response to w.
func (res Response) Write(w http.ResponseWriter) {
	if res.ContentType != "" {
		w.Header().Set("Content-Type", res.ContentType)
	} else {
		// nil entry stops net/http from sniffing one
		w.Header()["Content-Type"] = nil
	}
	w.WriteHeader(res.StatusCode)
	if len(res.Body) > 0 {
		_, _ = w.Write(res.Body)
	}
}

type Relay struct {
	host    string
	clients httpx.ClientSource
	log     *zap.Logger
}

func New(host string, clients httpx.ClientSource, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{host: strings.TrimSpace(host), clients: clients, log: log}
}

// TargetURL builds the outbound URL. GET and DELETE always carry the "?"
// separator; body methods only add it when there is a query.
func (rl *Relay) TargetURL(m Method, path, rawQuery string) string {
	u := rl.host + path
	if !m.HasBody() || rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}

// Do sends in to the service host with an Authorization: Bearer header.
func (rl *Relay) Do(ctx context.Context, in Request, token string) (Response, error) {
	m := ParseMethod(in.Method)
	if err := CheckMethod(in.Method, in.Path); err != nil {
		return Response{}, err
	}

	var payload io.Reader
	if m.HasBody() {
		b, err := readBody(ctx, in.Body)
		if err != nil {
			return Response{}, failure.Wrap(failure.KindRelayConnection, err, "read request body for %s", in.Path)
		}
		payload = strings.NewReader(b)
	}

	target := rl.TargetURL(m, in.Path, in.RawQuery)
	req, err := http.NewRequestWithContext(ctx, m.String(), target, payload)
	if err != nil {
		return Response{}, failure.Wrap(failure.KindRelayConnection, err, "build request for %s", target)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in.ContentType != "" {
		req.Header.Set("Content-Type", in.ContentType)
	}

	hc, err := rl.clients.Client()
	if err != nil {
		return Response{}, failure.Wrap(failure.KindTransportSetup, err, "create http client")
	}

	res, err := hc.Do(req)
	if err != nil {
		metrics.RecordRelay(m.String(), 0)
		rl.log.Error("relay failed", zap.String("method", m.String()), zap.String("uri", in.Path), zap.Error(err))
		return Response{}, failure.Wrap(failure.KindRelayConnection, err, "%s %s", m, in.Path)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, failure.Wrap(failure.KindRelayConnection, err, "read response for %s", in.Path)
	}
	metrics.RecordRelay(m.String(), res.StatusCode)

	return Response{
		StatusCode:  res.StatusCode,
		ContentType: res.Header.Get("Content-Type"),
		Body:        b,
	}, nil
}

// readBody prefers the body buffered by the body middleware.
func readBody(ctx context.Context, r io.Reader) (string, error) {
	if b, ok := body.RequestBody(ctx); ok {
		return b, nil
	}
	if r == nil {
		return "", nil
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
