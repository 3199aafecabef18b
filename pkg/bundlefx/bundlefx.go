// bundlefx/bundlefx.go
package bundlefx

import (
	"github.com/joeydtaylor/steeze-bearer/pkg/config"
	"github.com/joeydtaylor/steeze-bearer/pkg/middleware/bearer"
	"github.com/joeydtaylor/steeze-bearer/pkg/middleware/body"
	"github.com/joeydtaylor/steeze-bearer/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-bearer/pkg/middleware/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideBody builds the body buffering middleware from config.
func ProvideBody(cfg config.Config, log *zap.Logger) *body.Middleware {
	return body.New(cfg.BodyOptions(), log)
}

// Module provided to fx. The host application supplies config.Config.
var Module = fx.Options(
	bearer.Module,
	logger.Module,
	metrics.Module,
	fx.Provide(ProvideBody),
)
