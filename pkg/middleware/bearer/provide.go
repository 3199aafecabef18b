package bearer

import (
	"github.com/joeydtaylor/steeze-bearer/pkg/assertion"
	"github.com/joeydtaylor/steeze-bearer/pkg/config"
	"github.com/joeydtaylor/steeze-bearer/pkg/exchange"
	"github.com/joeydtaylor/steeze-bearer/pkg/relay"
	"github.com/joeydtaylor/steeze-bearer/pkg/tokencache"
	"github.com/joeydtaylor/steeze-bearer/pkg/transport/httpx"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideInterceptor wires the interceptor from configuration. The outbound
// client is shared by the token exchange and the relay and is only built on
// the first intercepted request.
func ProvideInterceptor(cfg config.Config, log *zap.Logger) *Middleware {
	clients := httpx.NewLazyClient(cfg.ClientOptions(), log)

	if cfg.Enabled {
		log.Info("bearer interceptor enabled",
			zap.Strings("prefixes", cfg.AppliedPathPrefixes),
			zap.String("serviceHost", cfg.ServiceHost),
			zap.String("tokenUrl", cfg.TokenURL),
		)
	}

	return New(Deps{
		Enabled:  cfg.Enabled,
		Prefixes: cfg.AppliedPathPrefixes,
		Signer:   assertion.NewSigner(cfg.SignerOptions()),
		Exchange: exchange.New(cfg.TokenURL, clients, log),
		Cache:    tokencache.New(cfg.TokenLifetime()),
		Relay:    relay.New(cfg.ServiceHost, clients, log),
		Skew:     cfg.Skew(),
		Log:      log,
	})
}

var Module = fx.Options(
	fx.Provide(ProvideInterceptor),
)
