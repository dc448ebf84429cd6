package engine

import (
	"math"
	"reflect"
	"testing"
	"time"

	"Verdict/internal/domain/models"
	"Verdict/pkg/logger"
)

func bullishBundle() *models.SignalBundle {
	return &models.SignalBundle{
		Symbol:             "BTC",
		HasPrice:           true,
		Price:              64000,
		PctChange1h:        2.0,
		PctChange24:        6.5,
		SentimentScore:     70,
		SentimentShortTerm: 55,
		RiskLevel:          models.RiskLow,
		OnchainActivity:    40,
		OnchainLiquidity:   60,
		HasOraclePrice:     true,
		OraclePrice:        64010,
		AttestationProof:   "0xproof",
		Timestamp:          time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
	}
}

func newEngine() *Engine {
	return New(DefaultConfig(), logger.Nop())
}

func TestFuseBullishGoesLong(t *testing.T) {
	rec := newEngine().Fuse(bullishBundle(), models.ProfileModerate)

	if rec.Signal != models.SignalLong {
		t.Fatalf("expected LONG, got %s (score %.2f)", rec.Signal, rec.SignalScore)
	}
	if rec.SignalScore <= 15 {
		t.Fatalf("expected composite above long threshold, got %.2f", rec.SignalScore)
	}
	if rec.Confidence <= 0 || rec.Confidence > 100 {
		t.Fatalf("confidence out of range: %.2f", rec.Confidence)
	}
}

func TestFuseBearishGoesShort(t *testing.T) {
	b := bullishBundle()
	b.SentimentScore = -75
	b.SentimentShortTerm = -60
	b.PctChange1h = -3
	b.PctChange24 = -8
	b.OnchainActivity = -50
	b.OnchainLiquidity = -40
	b.RiskLevel = models.RiskHigh

	rec := newEngine().Fuse(b, models.ProfileModerate)
	if rec.Signal != models.SignalShort {
		t.Fatalf("expected SHORT, got %s (score %.2f)", rec.Signal, rec.SignalScore)
	}
}

func TestFuseNeutralHolds(t *testing.T) {
	b := bullishBundle()
	b.SentimentScore = 0
	b.SentimentShortTerm = 0
	b.PctChange1h = 0
	b.PctChange24 = 0
	b.OnchainActivity = 0
	b.OnchainLiquidity = 0
	b.RiskLevel = models.RiskMedium

	rec := newEngine().Fuse(b, models.ProfileModerate)
	if rec.Signal != models.SignalHold {
		t.Fatalf("expected HOLD, got %s (score %.2f)", rec.Signal, rec.SignalScore)
	}
}

func TestFuseMissingPriceFailsClosed(t *testing.T) {
	b := bullishBundle()
	b.HasPrice = false

	rec := newEngine().Fuse(b, models.ProfileAggressive)
	if rec.Signal != models.SignalHold {
		t.Fatalf("expected HOLD, got %s", rec.Signal)
	}
	if rec.Confidence != 0 {
		t.Fatalf("expected confidence 0, got %.2f", rec.Confidence)
	}
}

func TestFuseDeterministic(t *testing.T) {
	e := newEngine()
	a := e.Fuse(bullishBundle(), models.ProfileModerate)
	b := e.Fuse(bullishBundle(), models.ProfileModerate)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("fuse is not deterministic:\n%+v\n%+v", a, b)
	}
}

func TestLeverageNeverExceedsCap(t *testing.T) {
	profiles := map[models.RiskProfile]int{
		models.ProfileConservative: 5,
		models.ProfileModerate:     10,
		models.ProfileAggressive:   20,
	}
	for profile, cap := range profiles {
		if got := MaxSafeLeverage(profile); got != cap {
			t.Fatalf("%s: cap %d, want %d", profile, got, cap)
		}
		for conf := 0.0; conf <= 100; conf += 1 {
			lev := suggestLeverage(conf, cap)
			if lev < 1 || lev > cap {
				t.Fatalf("%s: leverage %d out of [1,%d] at confidence %.0f", profile, lev, cap, conf)
			}
		}
	}
}

func TestLeverageNondecreasingInConfidence(t *testing.T) {
	prev := 0
	for conf := 0.0; conf <= 100; conf += 0.5 {
		lev := suggestLeverage(conf, 20)
		if lev < prev {
			t.Fatalf("leverage decreased: %d -> %d at confidence %.1f", prev, lev, conf)
		}
		prev = lev
	}
}

func TestMomentumSaturates(t *testing.T) {
	b := bullishBundle()
	b.PctChange1h = 500
	b.PctChange24 = 500

	term := momentumTerm(b)
	if term <= 99 || term > 100 {
		t.Fatalf("extreme move should saturate near 100, got %.4f", term)
	}

	// Monotonic in the 24h change.
	prev := math.Inf(-1)
	for pct := -50.0; pct <= 50; pct += 1 {
		b.PctChange1h = 0
		b.PctChange24 = pct
		v := momentumTerm(b)
		if v < prev {
			t.Fatalf("momentum not monotonic at %.0f%%", pct)
		}
		prev = v
	}
}

func TestStaleConfidenceFloor(t *testing.T) {
	b := bullishBundle()
	b.SentimentScore = 0
	b.SentimentShortTerm = 0
	b.PctChange1h = 0
	b.PctChange24 = 0
	b.OnchainActivity = 0
	b.OnchainLiquidity = 0
	b.RiskLevel = models.RiskMedium
	b.Degraded = []string{models.FeedSentiment}

	// Medium risk still contributes 0.15*30=4.5 -> confidence 9, above floor.
	// Zero out the risk term to land below the floor.
	cfg := DefaultConfig()
	cfg.Weights = Weights{Sentiment: 0.4, Momentum: 0.3, Onchain: 0.3, Risk: 0}
	rec := New(cfg, logger.Nop()).Fuse(b, models.ProfileModerate)

	if rec.Confidence != cfg.StaleConfidenceFloor {
		t.Fatalf("expected floored confidence %.1f, got %.2f", cfg.StaleConfidenceFloor, rec.Confidence)
	}
}
