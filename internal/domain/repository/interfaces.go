package repository

import (
	"context"
	"time"

	"Verdict/internal/domain/models"
)

// MarketQuote is the market feed's per-fetch payload.
type MarketQuote struct {
	Price       float64
	Volume24h   float64
	PctChange1h float64
	PctChange24 float64
	PctChange7d float64
}

// SentimentReading is the sentiment feed's per-fetch payload.
type SentimentReading struct {
	Score     float64 // [-100, 100]
	ShortTerm float64 // [-100, 100]
	RiskLevel models.RiskLevel
	Factors   []string
}

// OnchainReading is the on-chain feed's per-fetch payload.
type OnchainReading struct {
	Activity  float64 // [-100, 100]
	Liquidity float64 // [-100, 100]
}

// Feed interfaces: one fetch call per input type. Implementations return a
// value or fail soft with an error; they never block past their context.
type MarketFeed interface {
	Quote(ctx context.Context, symbol string) (MarketQuote, error)
}

type SentimentFeed interface {
	Sentiment(ctx context.Context, symbol string) (SentimentReading, error)
}

type OnchainFeed interface {
	Onchain(ctx context.Context, symbol string) (OnchainReading, error)
}

type OracleFeed interface {
	ReferencePrice(ctx context.Context, symbol string) (float64, error)
}

type AttestationFeed interface {
	Proof(ctx context.Context, symbol string) (string, error)
}

// Publisher fans out finished recommendations to downstream subscribers.
type Publisher interface {
	Publish(ctx context.Context, session string, rec *models.Recommendation) error
	Close() error
}

// DecisionRecord is one audited evaluation cycle.
type DecisionRecord struct {
	Timestamp     time.Time
	Session       string
	Symbol        string
	Signal        models.Signal
	Confidence    float64
	SignalScore   float64
	Verified      bool
	BlockReason   string
	Hash          string
	OraclePrice   float64
	DeclaredPrice float64
}

// DecisionStats summarizes the audit trail.
type DecisionStats struct {
	Total       uint64
	Valid       uint64
	Invalid     uint64
	SuccessRate float64
}

// DecisionStore persists the audit trail of verified decisions.
type DecisionStore interface {
	Record(ctx context.Context, rec *DecisionRecord) error
	Stats(ctx context.Context) (DecisionStats, error)
	Close() error
}

// PositionSnapshotStore persists committed position transitions so a restarted
// process can inspect recent state. The in-memory store stays authoritative.
type PositionSnapshotStore interface {
	Save(ctx context.Context, p *models.Position) error
	Load(ctx context.Context, sessionKey, symbol string) (*models.Position, error)
	Close() error
}

// Metrics records operational counters and gauges.
type Metrics interface {
	RecordCycle(symbol string, seconds float64)
	RecordSignal(symbol string, signal models.Signal)
	RecordBlocked(reason string)
	RecordFeedError(feed string)
	RecordOpenPositions(n int)
	RecordRealizedPnL(symbol string, usd float64)
	RecordComponentHealth(component string, status models.HealthStatus)
}
