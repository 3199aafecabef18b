package core

import (
	"net/http"

	"github.com/joeydtaylor/steeze-bearer/pkg/middleware/bearer"
	"github.com/joeydtaylor/steeze-bearer/pkg/middleware/body"
	"github.com/joeydtaylor/steeze-bearer/pkg/middleware/logger"
	httpx "github.com/joeydtaylor/steeze-bearer/pkg/transport/httpx"
)

type BuildDeps struct {
	Bearer  *bearer.Middleware
	Body    *body.Middleware
	LogMW   *logger.Middleware
	Metrics http.Handler
	Router  httpx.Router
	// Fallback serves requests the interceptor passes through. Defaults to a
	// JSON 404.
	Fallback http.Handler
}
