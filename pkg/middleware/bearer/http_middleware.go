package bearer

import (
	"net/http"

	"github.com/joeydtaylor/steeze-bearer/pkg/failure"
	"github.com/joeydtaylor/steeze-bearer/pkg/relay"
	"go.uber.org/zap"
)

func (m *Middleware) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.Intercepts(r) {
				next.ServeHTTP(w, r)
				return
			}

			// Reject unsupported verbs before touching the token endpoint.
			if err := relay.CheckMethod(r.Method, r.URL.Path); err != nil {
				m.log.Warn("method not allowed",
					zap.String("httpMethod", r.Method),
					zap.String("uri", r.URL.Path),
				)
				failure.Write(w, err)
				return
			}

			token, err := m.Token(r.Context())
			if err != nil {
				failure.Write(w, err)
				return
			}

			res, err := m.relay.Do(r.Context(), relay.FromHTTP(r), token)
			if err != nil {
				failure.Write(w, err)
				return
			}
			res.Write(w)
		})
	}
}
