package di

import (
	"context"
	"fmt"
	"time"

	"Verdict/internal/domain/models"
	"Verdict/internal/domain/repository"
	"Verdict/internal/engine"
	"Verdict/internal/health"
	"Verdict/internal/position"
	internalrepo "Verdict/internal/repository"
	"Verdict/internal/rules"
	"Verdict/internal/service/feeds"
	"Verdict/internal/tamper"
	"Verdict/internal/usecase"
	"Verdict/internal/verify"
	"Verdict/pkg/cache"
	pkgch "Verdict/pkg/clickhouse"
	"Verdict/pkg/config"
	pkgkafka "Verdict/pkg/kafka"
	"Verdict/pkg/logger"
	"Verdict/pkg/metrics"
	"Verdict/pkg/server"
)

// ProvideLogger creates the process logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRuleSet loads the verification rule file. A structurally invalid
// file is fatal at startup.
func ProvideRuleSet(cfg *config.Config) (*rules.Set, error) {
	set, err := rules.Load(cfg.Verification.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("rule set: %w", err)
	}
	return set, nil
}

// ProvideFeeds creates the feed providers.
func ProvideFeeds() usecase.Feeds {
	sim := feeds.NewSimulated()
	return usecase.Feeds{
		Market:      sim,
		Sentiment:   sim,
		Onchain:     sim,
		Oracle:      sim,
		Attestation: sim,
	}
}

// ProvideGatherer creates the signal gatherer.
func ProvideGatherer(f usecase.Feeds, cfg *config.Config, m repository.Metrics, log *logger.Logger) *usecase.Gatherer {
	return usecase.NewGatherer(f, cfg.Providers.Timeout, m, log)
}

// ProvideEngine creates the decision engine from configured weights.
func ProvideEngine(cfg *config.Config, log *logger.Logger) *engine.Engine {
	return engine.New(engine.Config{
		Weights: engine.Weights{
			Sentiment: cfg.Engine.Weights.Sentiment,
			Momentum:  cfg.Engine.Weights.Momentum,
			Onchain:   cfg.Engine.Weights.Onchain,
			Risk:      cfg.Engine.Weights.Risk,
		},
		LongThreshold:        cfg.Engine.LongThreshold,
		ShortThreshold:       cfg.Engine.ShortThreshold,
		StaleConfidenceFloor: cfg.Engine.StaleConfidenceFloor,
	}, log)
}

// ProvideVerifier creates the verification orchestrator.
func ProvideVerifier(set *rules.Set, cfg *config.Config, log *logger.Logger) *verify.Verifier {
	return verify.New(set, cfg.Verification.PriceTolerance, log)
}

// ProvideSimulator creates the attack simulator, with every attack disabled.
func ProvideSimulator(log *logger.Logger) *tamper.Simulator {
	return tamper.New(log)
}

// ProvideClickHouseClient creates the audit database client, or nil when the
// backend is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithDialTimeout(cfg.ClickHouse.DialTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideDecisionStore creates the ClickHouse audit store, or nil without a
// client.
func ProvideDecisionStore(client *pkgch.Client) (repository.DecisionStore, error) {
	if client == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return internalrepo.NewDecisionStore(ctx, client)
}

// ProvideSnapshotStore creates the Redis-backed position snapshot store, or
// nil when Redis is disabled.
func ProvideSnapshotStore(cfg *config.Config) (repository.PositionSnapshotStore, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return internalrepo.NewPositionSnapshots(rc), nil
}

// ProvideRecCache creates the in-process cache for latest recommendations.
func ProvideRecCache() cache.Service {
	return cache.NewMemoryCache()
}

// ProvidePositionManager creates the position lifecycle manager.
func ProvidePositionManager(cfg *config.Config, snaps repository.PositionSnapshotStore, m repository.Metrics, log *logger.Logger) *position.Manager {
	return position.New(position.Config{
		MinConfidence:      cfg.Position.MinConfidence,
		ReversalConfidence: cfg.Position.ReversalConfidence,
		TakeProfitROI:      cfg.Position.TakeProfitROI,
		StopLossROI:        cfg.Position.StopLossROI,
		SizingConservative: cfg.Position.Sizing.Conservative,
		SizingModerate:     cfg.Position.Sizing.Moderate,
		SizingAggressive:   cfg.Position.Sizing.Aggressive,
	}, snaps, m, log)
}

// ProvideHealthAggregator creates the health poller with a probe per feed
// plus one per enabled backend.
func ProvideHealthAggregator(cfg *config.Config, f usecase.Feeds, ch *pkgch.Client, m repository.Metrics, log *logger.Logger) *health.Aggregator {
	critical := cfg.Health.Critical
	if len(critical) == 0 {
		critical = []string{models.FeedMarket, models.FeedOracle}
	}

	agg := health.New(health.Config{
		PollBudget:  cfg.Health.PollBudget,
		Interval:    cfg.Health.Interval,
		HistorySize: cfg.Health.HistorySize,
		Critical:    critical,
	}, m, log)

	const probeSymbol = "BTC"
	agg.Register(models.FeedMarket, func(ctx context.Context) (bool, error) {
		_, err := f.Market.Quote(ctx, probeSymbol)
		return false, err
	})
	agg.Register(models.FeedSentiment, func(ctx context.Context) (bool, error) {
		_, err := f.Sentiment.Sentiment(ctx, probeSymbol)
		return false, err
	})
	agg.Register(models.FeedOnchain, func(ctx context.Context) (bool, error) {
		_, err := f.Onchain.Onchain(ctx, probeSymbol)
		return false, err
	})
	agg.Register(models.FeedOracle, func(ctx context.Context) (bool, error) {
		_, err := f.Oracle.ReferencePrice(ctx, probeSymbol)
		return false, err
	})
	agg.Register(models.FeedAttestation, func(ctx context.Context) (bool, error) {
		proof, err := f.Attestation.Proof(ctx, probeSymbol)
		if err != nil {
			return false, err
		}
		return proof == "", nil
	})

	if ch != nil {
		agg.Register("clickhouse", func(ctx context.Context) (bool, error) {
			return false, ch.Health(ctx)
		})
	}

	return agg
}

// ProvideKafkaProducer creates the Kafka producer, or nil when no brokers are
// configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.BatchSize, cfg.Kafka.BatchTimeout),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher creates the recommendation publisher, or nil without a
// producer.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideEvaluator wires the evaluation pipeline.
func ProvideEvaluator(
	g *usecase.Gatherer,
	e *engine.Engine,
	v *verify.Verifier,
	set *rules.Set,
	sim *tamper.Simulator,
	pm *position.Manager,
	h *health.Aggregator,
	pub repository.Publisher,
	dec repository.DecisionStore,
	rc cache.Service,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.Evaluator {
	return usecase.NewEvaluator(usecase.Deps{
		Gatherer:  g,
		Engine:    e,
		Verifier:  v,
		RuleSet:   set,
		Simulator: sim,
		Positions: pm,
		Health:    h,
		Publisher: pub,
		Decisions: dec,
		RecCache:  rc,
		Metrics:   m,
		Log:       log,
	})
}

// ProvideApp creates the application with shutdown closers for every enabled
// backend.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	eval *usecase.Evaluator,
	h *health.Aggregator,
	pub repository.Publisher,
	dec repository.DecisionStore,
	snaps repository.PositionSnapshotStore,
) *server.App {
	var closers []func() error
	if pub != nil {
		closers = append(closers, pub.Close)
	}
	if dec != nil {
		closers = append(closers, dec.Close)
	}
	if snaps != nil {
		closers = append(closers, snaps.Close)
	}
	return server.New(cfg, log, eval, h, closers...)
}
