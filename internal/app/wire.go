//go:build wireinject

package app

import (
	"github.com/google/wire"

	"poa/internal/config"
)

var providerSet = wire.NewSet(
	provideStore,
	provideRegistry,
	provideRates,
	provideAggregator,
	provideReporter,
	provideNotifier,
	provideNormalizer,
	provideExecution,
	provideHTTPServer,
	provideScheduler,
	provideSummary,
	newApp,
)

func buildAppWithWire(cfg *config.Config) (*App, func(), error) {
	wire.Build(providerSet)
	return nil, nil, nil
}
