//go:build wireinject
// +build wireinject

package di

import (
	"Verdict/pkg/config"
	"Verdict/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Domain configuration
		ProvideRuleSet,
		ProvideFeeds,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideDecisionStore,
		ProvideSnapshotStore,
		ProvideRecCache,
		ProvidePublisher,

		// Pipeline stages
		ProvideGatherer,
		ProvideEngine,
		ProvideVerifier,
		ProvideSimulator,
		ProvidePositionManager,
		ProvideHealthAggregator,
		ProvideEvaluator,

		// Application
		ProvideApp,
	)
	return &server.App{}, nil
}
