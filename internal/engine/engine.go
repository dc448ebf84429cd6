package engine

import (
	"fmt"
	"math"

	"Verdict/internal/domain/models"
	"Verdict/pkg/logger"
)

// Weights distributes the composite score across the four sub-signals.
// Validated at startup to sum to 1.0.
type Weights struct {
	Sentiment float64
	Momentum  float64
	Onchain   float64
	Risk      float64
}

// DefaultWeights returns the production weighting.
func DefaultWeights() Weights {
	return Weights{Sentiment: 0.35, Momentum: 0.30, Onchain: 0.20, Risk: 0.15}
}

// Config holds fusion parameters.
type Config struct {
	Weights        Weights
	LongThreshold  float64 // composite above this goes LONG
	ShortThreshold float64 // composite below the negative of this goes SHORT
	// Confidence floor when any feed fell back to defaults.
	StaleConfidenceFloor float64
}

// DefaultConfig returns production fusion parameters.
func DefaultConfig() Config {
	return Config{
		Weights:              DefaultWeights(),
		LongThreshold:        15,
		ShortThreshold:       15,
		StaleConfidenceFloor: 5,
	}
}

// Engine fuses a signal bundle into a recommendation. Fuse is pure: identical
// bundles produce identical recommendations.
type Engine struct {
	cfg Config
	log *logger.Logger
}

// New creates a decision engine.
func New(cfg Config, log *logger.Logger) *Engine {
	return &Engine{cfg: cfg, log: log}
}

// Momentum saturation: raw momentum blends the 1h and 24h windows, then runs
// through tanh so a 25% blended move lands at ~76 and extreme moves cap at
// 100 without a cliff.
const (
	momentumShortWeight = 0.4
	momentumLongWeight  = 0.6
	momentumScale       = 25.0
)

// Fuse computes the weighted composite score and maps it to a categorical
// recommendation. A bundle without a price fails closed: HOLD, confidence 0.
func (e *Engine) Fuse(bundle *models.SignalBundle, profile models.RiskProfile) *models.Recommendation {
	maxLev := MaxSafeLeverage(profile)

	if !bundle.HasPrice {
		e.log.Warn("bundle has no price, failing closed",
			logger.String("symbol", bundle.Symbol))
		return &models.Recommendation{
			Symbol:            bundle.Symbol,
			Signal:            models.SignalHold,
			Confidence:        0,
			SignalScore:       0,
			SuggestedLeverage: 1,
			MaxSafeLeverage:   maxLev,
			Reasoning:         "market price unavailable, holding",
			Timestamp:         bundle.Timestamp,
		}
	}

	w := e.cfg.Weights
	breakdown := models.ScoreBreakdown{
		Sentiment: w.Sentiment * sentimentTerm(bundle),
		Momentum:  w.Momentum * momentumTerm(bundle),
		Onchain:   w.Onchain * onchainTerm(bundle),
		Risk:      w.Risk * riskTerm(bundle.RiskLevel),
	}

	composite := clamp(breakdown.Sentiment+breakdown.Momentum+breakdown.Onchain+breakdown.Risk, -100, 100)

	signal := models.SignalHold
	switch {
	case composite > e.cfg.LongThreshold:
		signal = models.SignalLong
	case composite < -e.cfg.ShortThreshold:
		signal = models.SignalShort
	}

	confidence := math.Min(100, 2*math.Abs(composite))
	if len(bundle.Degraded) > 0 && confidence < e.cfg.StaleConfidenceFloor {
		confidence = e.cfg.StaleConfidenceFloor
	}

	return &models.Recommendation{
		Symbol:            bundle.Symbol,
		Signal:            signal,
		Confidence:        round2(confidence),
		SignalScore:       round2(composite),
		Breakdown:         breakdown,
		SuggestedLeverage: suggestLeverage(confidence, maxLev),
		MaxSafeLeverage:   maxLev,
		Reasoning:         reasoning(composite, bundle),
		Timestamp:         bundle.Timestamp,
	}
}

// MaxSafeLeverage is the hard cap per risk profile. Unknown profiles get the
// conservative cap.
func MaxSafeLeverage(profile models.RiskProfile) int {
	switch profile {
	case models.ProfileAggressive:
		return 20
	case models.ProfileModerate:
		return 10
	default:
		return 5
	}
}

// suggestLeverage maps confidence to leverage: a nondecreasing ladder that
// never exceeds the profile cap.
func suggestLeverage(confidence float64, cap int) int {
	var lev int
	switch {
	case confidence < 40:
		lev = 1
	case confidence < 60:
		lev = cap / 4
	case confidence < 80:
		lev = cap / 2
	default:
		lev = cap
	}
	if lev < 1 {
		lev = 1
	}
	if lev > cap {
		lev = cap
	}
	return lev
}

func sentimentTerm(b *models.SignalBundle) float64 {
	blended := 0.6*b.SentimentScore + 0.4*b.SentimentShortTerm
	return clamp(blended, -100, 100)
}

func momentumTerm(b *models.SignalBundle) float64 {
	raw := momentumShortWeight*b.PctChange1h + momentumLongWeight*b.PctChange24
	return 100 * math.Tanh(raw/momentumScale)
}

func onchainTerm(b *models.SignalBundle) float64 {
	return clamp(0.5*b.OnchainActivity+0.5*b.OnchainLiquidity, -100, 100)
}

// riskTerm converts the qualitative risk level into a [-100,100] contribution:
// low +80, medium +30, high -40.
func riskTerm(level models.RiskLevel) float64 {
	return 100 - 2*riskPenalty(level)
}

func riskPenalty(level models.RiskLevel) float64 {
	switch level {
	case models.RiskLow:
		return 10
	case models.RiskHigh:
		return 70
	default:
		return 35
	}
}

func reasoning(composite float64, b *models.SignalBundle) string {
	s := fmt.Sprintf("signal score %.2f | 24h change %.2f%% | risk %s", composite, b.PctChange24, b.RiskLevel)
	if len(b.Degraded) > 0 {
		s += fmt.Sprintf(" | degraded feeds: %d", len(b.Degraded))
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
