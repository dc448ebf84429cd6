package position

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"Verdict/internal/domain/models"
	"Verdict/internal/domain/repository"
	"Verdict/pkg/logger"
)

// Config holds the entry, sizing and exit parameters.
type Config struct {
	// Minimum recommendation confidence to open a new position.
	MinConfidence float64
	// Minimum confidence of an opposite-direction recommendation to force
	// a reversal close.
	ReversalConfidence float64
	TakeProfitROI      float64 // close when ROI reaches this, e.g. 15
	StopLossROI        float64 // close when ROI falls to this, e.g. -10

	// Fraction of the portfolio committed per profile.
	SizingConservative float64
	SizingModerate     float64
	SizingAggressive   float64
}

// DefaultConfig returns the production entry and exit parameters.
func DefaultConfig() Config {
	return Config{
		MinConfidence:      55,
		ReversalConfidence: 70,
		TakeProfitROI:      15,
		StopLossROI:        -10,
		SizingConservative: 0.10,
		SizingModerate:     0.25,
		SizingAggressive:   0.50,
	}
}

// Manager owns the position lifecycle for every (session, symbol) key. The
// in-memory map is authoritative; committed transitions are mirrored to the
// snapshot store best effort. At most one OPEN position exists per key.
type Manager struct {
	cfg       Config
	snapshots repository.PositionSnapshotStore
	metrics   repository.Metrics
	log       *logger.Logger

	mu        sync.Mutex
	positions map[string]*models.Position // latest position per key
	locks     map[string]*sync.Mutex
}

// New creates a position manager. snapshots may be nil when persistence is
// disabled.
func New(cfg Config, snapshots repository.PositionSnapshotStore, metrics repository.Metrics, log *logger.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		snapshots: snapshots,
		metrics:   metrics,
		log:       log,
		positions: make(map[string]*models.Position),
		locks:     make(map[string]*sync.Mutex),
	}
}

// Apply advances the position state machine for one evaluation cycle. With no
// open position it opens one when the recommendation is verified, directional
// and confident enough. With an open position it marks PnL to the current
// price and closes on stop loss, take profit or a confident signal reversal,
// in that precedence. The returned position is a copy; nil means no position
// exists for the key.
func (m *Manager) Apply(ctx context.Context, session string, rec *models.Recommendation, bundle *models.SignalBundle, profile models.RiskProfile, portfolioUSD float64) (*models.Position, error) {
	key := session + ":" + rec.Symbol
	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	cur := m.get(key)
	if cur == nil || cur.State == models.PositionClosed {
		return m.maybeOpen(ctx, session, rec, bundle, profile, portfolioUSD)
	}
	return m.mark(ctx, cur, rec, bundle)
}

// Open opens a position for the key directly from a verified directional
// recommendation, bypassing the confidence gate the cycle path applies.
// Opening a key that already holds an open position is an invalid transition
// and leaves the store untouched.
func (m *Manager) Open(ctx context.Context, session string, rec *models.Recommendation, bundle *models.SignalBundle, profile models.RiskProfile, portfolioUSD float64) (*models.Position, error) {
	key := session + ":" + rec.Symbol
	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if cur := m.get(key); cur != nil && cur.State == models.PositionOpen {
		return nil, &models.InvalidTransitionError{
			SessionKey: session,
			Symbol:     rec.Symbol,
			Op:         "open",
			Reason:     "position already open",
		}
	}
	if !rec.Verified || rec.Signal == models.SignalHold {
		return nil, &models.InvalidTransitionError{
			SessionKey: session,
			Symbol:     rec.Symbol,
			Op:         "open",
			Reason:     "recommendation is not a verified directional signal",
		}
	}
	if !bundle.HasPrice || portfolioUSD <= 0 {
		return nil, &models.InvalidTransitionError{
			SessionKey: session,
			Symbol:     rec.Symbol,
			Op:         "open",
			Reason:     "no market price or portfolio to size against",
		}
	}
	return m.open(ctx, session, rec, bundle, profile, portfolioUSD), nil
}

// Close manually closes the open position for the key. Closing a key with no
// open position is an invalid transition and leaves the store untouched.
func (m *Manager) Close(ctx context.Context, session, symbol string, price float64) (*models.Position, error) {
	key := session + ":" + symbol
	lock := m.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	cur := m.get(key)
	if cur == nil || cur.State == models.PositionClosed {
		return nil, &models.InvalidTransitionError{
			SessionKey: session,
			Symbol:     symbol,
			Op:         "close",
			Reason:     "no open position",
		}
	}

	next := *cur
	if price > 0 {
		next.PnLUSD, next.ROIPct = markToPrice(&next, price)
	}
	m.close(&next, models.CloseManual, time.Now().UTC())
	m.commit(ctx, &next)
	return copyOf(&next), nil
}

// Get returns a copy of the latest position for the key, open or closed.
func (m *Manager) Get(session, symbol string) (*models.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[session+":"+symbol]
	if !ok {
		return nil, false
	}
	return copyOf(p), true
}

// OpenCount returns the number of open positions across all keys.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCountLocked()
}

func (m *Manager) maybeOpen(ctx context.Context, session string, rec *models.Recommendation, bundle *models.SignalBundle, profile models.RiskProfile, portfolioUSD float64) (*models.Position, error) {
	if !rec.Verified || rec.Signal == models.SignalHold || rec.Confidence < m.cfg.MinConfidence {
		return nil, nil
	}
	if portfolioUSD <= 0 || !bundle.HasPrice {
		return nil, nil
	}
	return m.open(ctx, session, rec, bundle, profile, portfolioUSD), nil
}

// open builds and commits a new position. Callers hold the key lock and have
// already established that no open position exists.
func (m *Manager) open(ctx context.Context, session string, rec *models.Recommendation, bundle *models.SignalBundle, profile models.RiskProfile, portfolioUSD float64) *models.Position {
	// Entry fills at the price the recommendation was verified against.
	p := &models.Position{
		ID:          uuid.NewString(),
		SessionKey:  session,
		Symbol:      rec.Symbol,
		Direction:   rec.Signal,
		EntryPrice:  bundle.Price,
		SizeUSD:     m.sizeFor(profile) * portfolioUSD,
		Leverage:    rec.SuggestedLeverage,
		RiskProfile: profile,
		State:       models.PositionOpen,
		OpenedAt:    rec.Timestamp,
	}
	m.commit(ctx, p)

	m.log.Info("position opened",
		logger.String("id", p.ID),
		logger.String("symbol", p.Symbol),
		logger.String("direction", string(p.Direction)),
		logger.Float64("size_usd", p.SizeUSD),
		logger.Int("leverage", p.Leverage))
	return copyOf(p)
}

func (m *Manager) mark(ctx context.Context, cur *models.Position, rec *models.Recommendation, bundle *models.SignalBundle) (*models.Position, error) {
	next := *cur
	if bundle.HasPrice {
		next.PnLUSD, next.ROIPct = markToPrice(&next, bundle.Price)
	}

	// Exit precedence: protect capital first, then take profit, then follow
	// the signal.
	switch {
	case bundle.HasPrice && next.ROIPct <= m.cfg.StopLossROI:
		m.close(&next, models.CloseStopLoss, bundle.Timestamp)
	case bundle.HasPrice && next.ROIPct >= m.cfg.TakeProfitROI:
		m.close(&next, models.CloseTakeProfit, bundle.Timestamp)
	case rec.Verified && rec.Signal == next.Direction.Opposite() && rec.Confidence >= m.cfg.ReversalConfidence:
		m.close(&next, models.CloseSignalReversal, bundle.Timestamp)
	}

	m.commit(ctx, &next)
	return copyOf(&next), nil
}

func (m *Manager) close(p *models.Position, reason models.CloseReason, at time.Time) {
	p.State = models.PositionClosed
	p.CloseReason = reason
	p.ClosedAt = at

	m.metrics.RecordRealizedPnL(p.Symbol, p.PnLUSD)
	m.log.Info("position closed",
		logger.String("id", p.ID),
		logger.String("symbol", p.Symbol),
		logger.String("reason", string(reason)),
		logger.Float64("pnl_usd", p.PnLUSD),
		logger.Float64("roi_pct", p.ROIPct))
}

// commit publishes the new state to the authoritative map, then mirrors it to
// the snapshot store. Snapshot failures are logged and never roll back the
// transition.
func (m *Manager) commit(ctx context.Context, p *models.Position) {
	m.mu.Lock()
	m.positions[p.Key()] = copyOf(p)
	open := m.openCountLocked()
	m.mu.Unlock()

	m.metrics.RecordOpenPositions(open)

	if m.snapshots != nil {
		if err := m.snapshots.Save(ctx, p); err != nil {
			m.log.Error("position snapshot failed", logger.Error(err),
				logger.String("key", p.Key()))
		}
	}
}

func (m *Manager) get(key string) *models.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positions[key]
}

func (m *Manager) keyLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

func (m *Manager) openCountLocked() int {
	n := 0
	for _, p := range m.positions {
		if p.State == models.PositionOpen {
			n++
		}
	}
	return n
}

func (m *Manager) sizeFor(profile models.RiskProfile) float64 {
	switch profile {
	case models.ProfileAggressive:
		return m.cfg.SizingAggressive
	case models.ProfileModerate:
		return m.cfg.SizingModerate
	default:
		return m.cfg.SizingConservative
	}
}

// markToPrice computes unrealized PnL and ROI at the given price. ROI is on
// margin, so leverage amplifies the raw price move.
func markToPrice(p *models.Position, price float64) (pnlUSD, roiPct float64) {
	if p.EntryPrice <= 0 || p.SizeUSD <= 0 {
		return 0, 0
	}
	dir := 1.0
	if p.Direction == models.SignalShort {
		dir = -1
	}
	move := (price - p.EntryPrice) / p.EntryPrice
	pnlUSD = round2(p.SizeUSD * float64(p.Leverage) * move * dir)
	roiPct = round2(pnlUSD / p.SizeUSD * 100)
	return pnlUSD, roiPct
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func copyOf(p *models.Position) *models.Position {
	c := *p
	return &c
}
