package core

import (
	"net/http"

	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/steeze-bearer/pkg/config"
	hmetrics "github.com/joeydtaylor/steeze-bearer/pkg/middleware/metrics"
)

func BuildRouter(cfg config.Config, d BuildDeps) http.Handler {
	r := d.Router
	r.Use(chimd.RequestID, chimd.Recoverer, chimd.Heartbeat("/ping"))

	// body first so the access log and the relay both see the buffered copy
	if d.Body != nil {
		r.Use(d.Body.Middleware())
	}
	if d.LogMW != nil {
		r.Use(d.LogMW.Middleware(d.Bearer))
	}

	hmetrics.AddMetricsSkipPaths("/ping")
	hmetrics.SetPathNormalizer(hmetrics.PrefixNormalizer(cfg.AppliedPathPrefixes))
	r.Use(hmetrics.Collect())

	if d.Bearer != nil {
		r.Use(d.Bearer.Middleware())
	}

	if d.Metrics != nil {
		r.Get("/metrics", d.Metrics)
	}
	r.Get("/server/info", infoHandler(cfg))

	fallback := d.Fallback
	if fallback == nil {
		fallback = http.HandlerFunc(notFound)
	}
	r.NotFound(fallback)
	return r.Mux()
}
