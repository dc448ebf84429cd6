package usecase

import (
	"context"
	"fmt"
	"time"

	"Verdict/internal/domain/models"
	"Verdict/internal/domain/repository"
	"Verdict/internal/engine"
	"Verdict/internal/health"
	"Verdict/internal/position"
	"Verdict/internal/rules"
	"Verdict/internal/tamper"
	"Verdict/internal/verify"
	"Verdict/pkg/cache"
	"Verdict/pkg/logger"
)

const recCacheTTL = time.Minute

// Session describes one evaluation stream: who is asking, for which symbol,
// with what risk appetite.
type Session struct {
	Key          string
	Symbol       string
	Profile      models.RiskProfile
	PortfolioUSD float64
}

// CycleResult is the full outcome of one evaluation cycle.
type CycleResult struct {
	Session        string                 `json:"session"`
	Bundle         *models.SignalBundle   `json:"bundle"`
	Recommendation *models.Recommendation `json:"recommendation"`
	Verification   verify.Result          `json:"verification"`
	Position       *models.Position       `json:"position,omitempty"`
	Duration       time.Duration          `json:"duration"`
}

// Evaluator runs the full pipeline for a session: gather, optionally inject
// simulated attacks, fuse, verify, advance the position state machine, audit
// and publish. It is the single entry point the transport and the loop share.
type Evaluator struct {
	gatherer  *Gatherer
	engine    *engine.Engine
	verifier  *verify.Verifier
	ruleSet   *rules.Set
	simulator *tamper.Simulator
	positions *position.Manager
	health    *health.Aggregator

	publisher repository.Publisher
	decisions repository.DecisionStore
	recCache  cache.Service

	metrics repository.Metrics
	log     *logger.Logger
}

// Deps carries the evaluator's collaborators. Publisher, Decisions and
// RecCache may be nil when the corresponding backend is disabled.
type Deps struct {
	Gatherer  *Gatherer
	Engine    *engine.Engine
	Verifier  *verify.Verifier
	RuleSet   *rules.Set
	Simulator *tamper.Simulator
	Positions *position.Manager
	Health    *health.Aggregator
	Publisher repository.Publisher
	Decisions repository.DecisionStore
	RecCache  cache.Service
	Metrics   repository.Metrics
	Log       *logger.Logger
}

// NewEvaluator wires the pipeline.
func NewEvaluator(d Deps) *Evaluator {
	return &Evaluator{
		gatherer:  d.Gatherer,
		engine:    d.Engine,
		verifier:  d.Verifier,
		ruleSet:   d.RuleSet,
		simulator: d.Simulator,
		positions: d.Positions,
		health:    d.Health,
		publisher: d.Publisher,
		decisions: d.Decisions,
		recCache:  d.RecCache,
		metrics:   d.Metrics,
		log:       d.Log,
	}
}

// Evaluate runs one cycle for the session. The cycle always completes: feed
// outages degrade the bundle, verification failures block the recommendation,
// and backend write errors are logged without aborting.
func (e *Evaluator) Evaluate(ctx context.Context, s Session) (*CycleResult, error) {
	start := time.Now()

	bundle := e.gatherer.Gather(ctx, s.Symbol)
	bundle = e.simulator.Inject(bundle)

	rec := e.engine.Fuse(bundle, s.Profile)
	res := e.verifier.Verify(bundle, rec)

	pos, err := e.positions.Apply(ctx, s.Key, rec, bundle, s.Profile, s.PortfolioUSD)
	if err != nil {
		// A concurrent transition on the same key lost the race. The store is
		// unchanged, so the cycle result is still coherent.
		e.log.Warn("position transition rejected",
			logger.String("session", s.Key),
			logger.String("symbol", s.Symbol),
			logger.Error(err))
	}

	e.audit(ctx, s, bundle, rec)
	e.cacheRecommendation(ctx, s, rec)
	e.publish(ctx, s, rec)

	e.metrics.RecordCycle(s.Symbol, time.Since(start).Seconds())
	e.metrics.RecordSignal(s.Symbol, rec.Signal)
	if !rec.Verified {
		// The detailed reason carries per-cycle values; the class keeps the
		// metric label space bounded.
		e.metrics.RecordBlocked(res.BlockClass)
	}

	return &CycleResult{
		Session:        s.Key,
		Bundle:         bundle,
		Recommendation: rec,
		Verification:   res,
		Position:       pos,
		Duration:       time.Since(start),
	}, nil
}

// GetRecommendation returns the most recent recommendation for the session,
// if one is cached.
func (e *Evaluator) GetRecommendation(ctx context.Context, session, symbol string) (*models.Recommendation, error) {
	if e.recCache == nil {
		return nil, cache.ErrCacheMiss
	}
	var rec models.Recommendation
	if err := e.recCache.Get(ctx, recKey(session, symbol), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetPosition returns the latest position for the session key, open or closed.
func (e *Evaluator) GetPosition(session, symbol string) (*models.Position, bool) {
	return e.positions.Get(session, symbol)
}

// OpenPosition manually opens a position from the most recent verified
// recommendation for the session. Opening over an existing open position is
// an invalid transition.
func (e *Evaluator) OpenPosition(ctx context.Context, session, symbol string, profile models.RiskProfile, portfolioUSD float64) (*models.Position, error) {
	rec, err := e.GetRecommendation(ctx, session, symbol)
	if err != nil {
		return nil, fmt.Errorf("no recent recommendation for %s:%s: %w", session, symbol, err)
	}
	bundle := e.gatherer.Gather(ctx, symbol)
	return e.positions.Open(ctx, session, rec, bundle, profile, portfolioUSD)
}

// ClosePosition manually closes the open position at the current market price.
func (e *Evaluator) ClosePosition(ctx context.Context, session, symbol string) (*models.Position, error) {
	bundle := e.gatherer.Gather(ctx, symbol)
	price := 0.0
	if bundle.HasPrice {
		price = bundle.Price
	}
	return e.positions.Close(ctx, session, symbol, price)
}

// ListRules returns the loaded verification rule set summary.
func (e *Evaluator) ListRules() rules.Summary {
	return e.ruleSet.Summarize()
}

// SimulateAttack enables a named attack for subsequent cycles.
func (e *Evaluator) SimulateAttack(attack string) error {
	return e.simulator.Enable(tamper.Attack(attack))
}

// DisableAttack disables a named attack.
func (e *Evaluator) DisableAttack(attack string) error {
	return e.simulator.Disable(tamper.Attack(attack))
}

// ResetSimulation disables every active attack.
func (e *Evaluator) ResetSimulation() {
	e.simulator.Reset()
}

// ActiveAttacks lists the currently enabled attacks.
func (e *Evaluator) ActiveAttacks() []tamper.Attack {
	return e.simulator.Active()
}

// GetHealth returns the aggregated component health snapshot.
func (e *Evaluator) GetHealth() models.AggregateHealth {
	return e.health.Aggregate()
}

// GetStats returns audit-trail statistics. Without a decision store it
// returns zero stats.
func (e *Evaluator) GetStats(ctx context.Context) (repository.DecisionStats, error) {
	if e.decisions == nil {
		return repository.DecisionStats{}, nil
	}
	return e.decisions.Stats(ctx)
}

func (e *Evaluator) audit(ctx context.Context, s Session, bundle *models.SignalBundle, rec *models.Recommendation) {
	if e.decisions == nil {
		return
	}
	err := e.decisions.Record(ctx, &repository.DecisionRecord{
		Timestamp:     rec.Timestamp,
		Session:       s.Key,
		Symbol:        s.Symbol,
		Signal:        rec.Signal,
		Confidence:    rec.Confidence,
		SignalScore:   rec.SignalScore,
		Verified:      rec.Verified,
		BlockReason:   rec.BlockReason,
		Hash:          rec.VerificationHash,
		OraclePrice:   bundle.OraclePrice,
		DeclaredPrice: bundle.Price,
	})
	if err != nil {
		e.log.Error("decision audit failed", logger.Error(err),
			logger.String("session", s.Key))
	}
}

func (e *Evaluator) cacheRecommendation(ctx context.Context, s Session, rec *models.Recommendation) {
	if e.recCache == nil {
		return
	}
	if err := e.recCache.Set(ctx, recKey(s.Key, s.Symbol), rec, recCacheTTL); err != nil {
		e.log.Error("recommendation cache failed", logger.Error(err))
	}
}

func (e *Evaluator) publish(ctx context.Context, s Session, rec *models.Recommendation) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, s.Key, rec); err != nil {
		e.log.Error("recommendation publish failed", logger.Error(err),
			logger.String("session", s.Key))
	}
}

func recKey(session, symbol string) string {
	return fmt.Sprintf("rec:%s:%s", session, symbol)
}
