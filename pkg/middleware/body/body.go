// Package body buffers inbound request bodies so later handlers (the relay in
// particular) can read them without draining the original stream.
package body

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/joeydtaylor/steeze-bearer/pkg/failure"
	"go.uber.org/zap"
)

const DefaultMaxBytes int64 = 1 << 20

type ctxKey struct{}

// WithRequestBody stores a buffered body on ctx.
func WithRequestBody(ctx context.Context, b string) context.Context {
	return context.WithValue(ctx, ctxKey{}, b)
}

// RequestBody returns the buffered body, if an upstream middleware stored one.
func RequestBody(ctx context.Context) (string, bool) {
	b, ok := ctx.Value(ctxKey{}).(string)
	return b, ok
}

type Options struct {
	Enabled bool
	// Cache publishes the buffered body on the request context.
	Cache    bool
	MaxBytes int64
}

type Middleware struct {
	opts Options
	log  *zap.Logger
}

func New(opts Options, log *zap.Logger) *Middleware {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Middleware{opts: opts, log: log}
}

func (m *Middleware) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !m.opts.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody || !hasBody(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			// Read and restore so downstream can consume it again.
			b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, m.opts.MaxBytes))
			r.Body.Close()
			if err != nil {
				var tooBig *http.MaxBytesError
				if errors.As(err, &tooBig) {
					m.log.Warn("request body over limit",
						zap.String("uri", r.URL.Path),
						zap.Int64("limit", tooBig.Limit),
					)
					failure.WriteStatus(w, failure.Status{
						StatusCode:  http.StatusRequestEntityTooLarge,
						Code:        "ERR10068",
						Message:     "REQUEST_BODY_TOO_LARGE",
						Description: "request body exceeds the configured limit",
					})
					return
				}
				m.log.Error("cannot read request body", zap.String("uri", r.URL.Path), zap.Error(err))
				failure.WriteStatus(w, failure.Status{
					StatusCode:  http.StatusBadRequest,
					Code:        "ERR10067",
					Message:     "REQUEST_BODY_UNREADABLE",
					Description: err.Error(),
				})
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(b))

			if m.opts.Cache {
				r = r.WithContext(WithRequestBody(r.Context(), string(b)))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasBody(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}
