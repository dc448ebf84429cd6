package tamper

import (
	"errors"
	"testing"
	"time"

	"Verdict/internal/domain/models"
	"Verdict/pkg/logger"
)

func sampleBundle() *models.SignalBundle {
	return &models.SignalBundle{
		Symbol:             "BTC",
		HasPrice:           true,
		Price:              100,
		SentimentScore:     60,
		SentimentShortTerm: 40,
		HasOraclePrice:     true,
		OraclePrice:        100,
		AttestationProof:   "0xproof",
		Timestamp:          time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		Degraded:           []string{models.FeedOnchain},
	}
}

func TestInjectNoAttacksIsIdentity(t *testing.T) {
	s := New(logger.Nop())
	in := sampleBundle()
	out := s.Inject(in)

	if out == in {
		t.Fatalf("inject must return a copy")
	}
	if out.Price != in.Price || out.AttestationProof != in.AttestationProof {
		t.Fatalf("clean inject changed the bundle: %+v", out)
	}
}

func TestPriceManipulationLeavesOracleHonest(t *testing.T) {
	s := New(logger.Nop())
	if err := s.Enable(AttackPriceManipulation); err != nil {
		t.Fatalf("enable: %v", err)
	}

	in := sampleBundle()
	out := s.Inject(in)

	if out.Price != 115 {
		t.Fatalf("expected declared price 115, got %.2f", out.Price)
	}
	if out.OraclePrice != 100 {
		t.Fatalf("oracle price must stay honest, got %.2f", out.OraclePrice)
	}
	if in.Price != 100 {
		t.Fatalf("input bundle was mutated")
	}
}

func TestSentimentCorruptionInvertsAndClamps(t *testing.T) {
	s := New(logger.Nop())
	if err := s.Enable(AttackSentimentCorruption); err != nil {
		t.Fatalf("enable: %v", err)
	}

	in := sampleBundle()
	in.SentimentScore = 90
	out := s.Inject(in)

	if out.SentimentScore != -100 {
		t.Fatalf("expected clamped -100, got %.2f", out.SentimentScore)
	}
	if out.SentimentShortTerm != -60 {
		t.Fatalf("expected -60, got %.2f", out.SentimentShortTerm)
	}
}

func TestProofInvalidation(t *testing.T) {
	s := New(logger.Nop())
	if err := s.Enable(AttackProofInvalidation); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if out := s.Inject(sampleBundle()); out.AttestationProof != "" {
		t.Fatalf("proof must be stripped, got %q", out.AttestationProof)
	}
}

func TestMultiVectorAppliesAllAttacks(t *testing.T) {
	s := New(logger.Nop())
	if err := s.Enable(AttackMultiVector); err != nil {
		t.Fatalf("enable: %v", err)
	}

	out := s.Inject(sampleBundle())
	if out.Price != 115 || out.AttestationProof != "" || out.SentimentScore != -90 {
		t.Fatalf("multi vector incomplete: %+v", out)
	}
}

func TestResetRestoresCleanCycles(t *testing.T) {
	s := New(logger.Nop())
	_ = s.Enable(AttackPriceManipulation)
	_ = s.Enable(AttackProofInvalidation)

	if got := len(s.Active()); got != 2 {
		t.Fatalf("expected 2 active attacks, got %d", got)
	}

	s.Reset()
	if got := len(s.Active()); got != 0 {
		t.Fatalf("reset left attacks active: %d", got)
	}

	out := s.Inject(sampleBundle())
	if out.Price != 100 || out.AttestationProof != "0xproof" {
		t.Fatalf("cycle not clean after reset: %+v", out)
	}
}

func TestUnknownAttackRejected(t *testing.T) {
	s := New(logger.Nop())
	if err := s.Enable("ddos"); !errors.Is(err, models.ErrUnknownAttack) {
		t.Fatalf("expected ErrUnknownAttack, got %v", err)
	}
	if err := s.Disable("ddos"); !errors.Is(err, models.ErrUnknownAttack) {
		t.Fatalf("expected ErrUnknownAttack, got %v", err)
	}
}

func TestDisableSingleAttack(t *testing.T) {
	s := New(logger.Nop())
	_ = s.Enable(AttackPriceManipulation)
	_ = s.Enable(AttackSentimentCorruption)
	_ = s.Disable(AttackPriceManipulation)

	out := s.Inject(sampleBundle())
	if out.Price != 100 {
		t.Fatalf("disabled attack still applied")
	}
	if out.SentimentScore == sampleBundle().SentimentScore {
		t.Fatalf("remaining attack not applied")
	}
}
