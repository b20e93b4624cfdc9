//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FactorLab/pkg/config"
	"FactorLab/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideRedisCache,
		ProvideCache,
		ProvideClickHouseClient,

		// Repositories
		ProvideSeriesProvider,
		ProvideResultStore,
		ProvideSignalStore,
		ProvideSignalPublisher,
		ProvideStrategyStore,
		ProvideFundamentals,

		// Engine and use cases
		ProvideEngine,
		ProvideComputeUseCase,
		ProvideEvaluateUseCase,
		ProvideJobHandler,

		// Transports
		ProvideKafkaConsumer,
		ProvideJobQueue,
		ProvideRateLimiter,
		ProvideAPIHandler,
		ProvideHTTPServer,
		ProvideScheduler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
