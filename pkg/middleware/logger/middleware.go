package logger

import (
	"net/http"
	"time"

	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/steeze-bearer/pkg/middleware/bearer"
	"github.com/joeydtaylor/steeze-bearer/pkg/middleware/body"
	"go.uber.org/zap"
)

type Middleware struct {
	access *zap.Logger
}

// NewMiddleware logs to access, or to log/http-access.log when access is nil.
func NewMiddleware(access *zap.Logger) *Middleware { return &Middleware{access: access} }

func (m *Middleware) logger() *zap.Logger {
	if m != nil && m.access != nil {
		return m.access
	}
	return accessLogger()
}

// Middleware writes one access log line per request. bm may be nil; when set
// the line records whether the request was relayed by the interceptor.
func (m *Middleware) Middleware(bm *bearer.Middleware) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := m.logger()

			ww := chimd.NewWrapResponseWriter(w, r.ProtoMajor)

			scheme := "http"
			if r.TLS != nil {
				scheme = "https"
			}

			start := time.Now()
			defer func() {
				lat := time.Since(start)

				log := l.With(
					zap.String("dateTime", start.UTC().Format(time.RFC1123)),
					zap.String("requestId", chimd.GetReqID(r.Context())),
					zap.String("httpScheme", scheme),
					zap.Bool("intercepted", bm.Intercepts(r)),
					zap.String("httpProto", r.Proto),
					zap.String("httpMethod", r.Method),
					zap.String("remoteAddr", r.RemoteAddr),
					zap.String("uri", r.URL.Path),
					zap.Duration("lat", lat),
					zap.Int("responseSize", ww.BytesWritten()),
					zap.Int("status", ww.Status()),
				)

				// Redact by default; the body is only available when buffered upstream.
				if b, ok := body.RequestBody(r.Context()); ok && shouldLogBody(r, b) {
					log.Info("", zap.String("requestData", b))
				} else {
					log.Info("")
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
