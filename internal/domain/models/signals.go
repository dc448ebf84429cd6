package models

import "time"

// Signal is the categorical trading recommendation.
type Signal string

const (
	SignalLong  Signal = "LONG"
	SignalShort Signal = "SHORT"
	SignalHold  Signal = "HOLD"
)

// Opposite returns the reversed direction. HOLD has no opposite.
func (s Signal) Opposite() Signal {
	switch s {
	case SignalLong:
		return SignalShort
	case SignalShort:
		return SignalLong
	default:
		return SignalHold
	}
}

// RiskLevel is the sentiment feed's qualitative risk assessment.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskProfile selects position sizing and leverage caps.
type RiskProfile string

const (
	ProfileConservative RiskProfile = "conservative"
	ProfileModerate     RiskProfile = "moderate"
	ProfileAggressive   RiskProfile = "aggressive"
)

// Feed names used for degradation tracking and health polling.
const (
	FeedMarket      = "market"
	FeedSentiment   = "sentiment"
	FeedOnchain     = "onchain"
	FeedOracle      = "oracle"
	FeedAttestation = "attestation"
)

// SignalBundle is the immutable per-cycle snapshot of every upstream signal.
// A feed that failed soft leaves its fields at neutral values and records its
// name in Degraded.
type SignalBundle struct {
	Symbol string

	// Market feed
	HasPrice    bool
	Price       float64
	Volume24h   float64
	PctChange1h float64
	PctChange24 float64
	PctChange7d float64

	// Sentiment feed, scores in [-100, 100]
	SentimentScore     float64
	SentimentShortTerm float64
	RiskLevel          RiskLevel

	// On-chain feed, scores in [-100, 100]
	OnchainActivity  float64
	OnchainLiquidity float64

	// Oracle feed: independent reference price for the tolerance check
	HasOraclePrice bool
	OraclePrice    float64

	// Attestation feed: empty proof means attestation is unavailable or invalid
	AttestationProof string

	Timestamp time.Time
	Degraded  []string
}

// IsDegraded reports whether the named feed fell back to defaults.
func (b *SignalBundle) IsDegraded(feed string) bool {
	for _, d := range b.Degraded {
		if d == feed {
			return true
		}
	}
	return false
}

// ScoreBreakdown carries the weighted per-term contributions to the composite.
type ScoreBreakdown struct {
	Sentiment float64 `json:"sentiment"`
	Momentum  float64 `json:"momentum"`
	Onchain   float64 `json:"onchain"`
	Risk      float64 `json:"risk"`
}

// Recommendation is the fused output of one evaluation cycle. It is produced
// once by the engine, stamped by verification, and immutable afterwards.
type Recommendation struct {
	Symbol            string         `json:"symbol"`
	Signal            Signal         `json:"signal"`
	Confidence        float64        `json:"confidence"`   // [0, 100]
	SignalScore       float64        `json:"signal_score"` // [-100, 100]
	Breakdown         ScoreBreakdown `json:"breakdown"`
	SuggestedLeverage int            `json:"suggested_leverage"`
	MaxSafeLeverage   int            `json:"max_safe_leverage"`
	Reasoning         string         `json:"reasoning"`
	Verified          bool           `json:"verified"`
	VerificationHash  string         `json:"verification_hash,omitempty"`
	BlockReason       string         `json:"block_reason,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
}
