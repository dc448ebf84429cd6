package verify

import (
	"strings"
	"testing"
	"time"

	"Verdict/internal/domain/models"
	"Verdict/internal/rules"
	"Verdict/pkg/logger"
)

const verifierRules = `
rules:
  - name: oracle_price_match
    severity: critical
    condition: price_diff_pct <= 0.01
    message: declared price deviates from oracle reference
  - name: attestation_present
    severity: critical
    condition: attestation_proof != ''
    message: attestation proof missing or invalid
  - name: confidence_sane
    severity: warning
    condition: confidence <= 95
    message: suspiciously high confidence
`

func newVerifier(t *testing.T) *Verifier {
	t.Helper()
	set, err := rules.Parse([]byte(verifierRules))
	if err != nil {
		t.Fatalf("parse rules: %v", err)
	}
	return New(set, 0.01, logger.Nop())
}

func cleanBundle() *models.SignalBundle {
	return &models.SignalBundle{
		Symbol:           "BTC",
		HasPrice:         true,
		Price:            64000,
		HasOraclePrice:   true,
		OraclePrice:      64010,
		AttestationProof: "0xproof",
		Timestamp:        time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
	}
}

func cleanRec(b *models.SignalBundle) *models.Recommendation {
	return &models.Recommendation{
		Symbol:      b.Symbol,
		Signal:      models.SignalLong,
		Confidence:  80,
		SignalScore: 40,
		Timestamp:   b.Timestamp,
	}
}

func TestVerifyCleanBundlePasses(t *testing.T) {
	v := newVerifier(t)
	b := cleanBundle()
	rec := cleanRec(b)

	res := v.Verify(b, rec)
	if !res.Verified {
		t.Fatalf("expected verified, blocked: %s", res.BlockReason)
	}
	if !rec.Verified || rec.BlockReason != "" {
		t.Fatalf("recommendation not stamped: %+v", rec)
	}
	if rec.VerificationHash != res.Hash || res.Hash == "" {
		t.Fatalf("hash not stamped")
	}
}

func TestVerifyBlocksOnPriceManipulation(t *testing.T) {
	v := newVerifier(t)
	b := cleanBundle()
	b.Price = b.OraclePrice * 1.20
	rec := cleanRec(b)

	res := v.Verify(b, rec)
	if res.Verified {
		t.Fatalf("20%% price deviation must block")
	}
	if !strings.Contains(res.BlockReason, "oracle_price_match") {
		t.Fatalf("unexpected block reason: %q", res.BlockReason)
	}
	if res.BlockClass != "oracle_price_match" {
		t.Fatalf("unexpected block class: %q", res.BlockClass)
	}
	if res.PriceDiffPct < 0.19 {
		t.Fatalf("unexpected diff: %.4f", res.PriceDiffPct)
	}
}

// The class must stay label-safe: one value per failure mode, no embedded
// measurements.
func TestBlockClassStaysCoarse(t *testing.T) {
	// No oracle rule in the set, so the tolerance and availability branches
	// classify the block.
	set, err := rules.Parse([]byte(`
rules:
  - name: attestation_present
    severity: critical
    condition: attestation_proof != ''
    message: attestation proof missing or invalid
`))
	if err != nil {
		t.Fatalf("parse rules: %v", err)
	}
	v := New(set, 0.01, logger.Nop())

	b := cleanBundle()
	b.Price = b.OraclePrice * 1.20
	res := v.Verify(b, cleanRec(b))
	if res.BlockClass != BlockPriceTolerance {
		t.Fatalf("expected %q, got %q", BlockPriceTolerance, res.BlockClass)
	}
	if !strings.ContainsAny(res.BlockReason, "0123456789") {
		t.Fatalf("detailed reason should carry the measured deviation: %q", res.BlockReason)
	}
	if strings.ContainsAny(res.BlockClass, "0123456789") {
		t.Fatalf("block class must not embed per-cycle values: %q", res.BlockClass)
	}

	b = cleanBundle()
	b.HasOraclePrice = false
	b.OraclePrice = 0
	res = v.Verify(b, cleanRec(b))
	if res.BlockClass != BlockOracleUnavailable {
		t.Fatalf("expected %q, got %q", BlockOracleUnavailable, res.BlockClass)
	}

	res = v.Verify(cleanBundle(), cleanRec(cleanBundle()))
	if !res.Verified || res.BlockClass != "" {
		t.Fatalf("verified result must carry no block class: %+v", res)
	}
}

func TestVerifyBlocksOnMissingAttestation(t *testing.T) {
	v := newVerifier(t)
	b := cleanBundle()
	b.AttestationProof = ""
	rec := cleanRec(b)

	res := v.Verify(b, rec)
	if res.Verified {
		t.Fatalf("missing attestation must block")
	}
	if !strings.Contains(res.BlockReason, "attestation_present") {
		t.Fatalf("unexpected block reason: %q", res.BlockReason)
	}
}

func TestVerifyWarningNeverBlocks(t *testing.T) {
	v := newVerifier(t)
	b := cleanBundle()
	rec := cleanRec(b)
	rec.Confidence = 99

	res := v.Verify(b, rec)
	if !res.Verified {
		t.Fatalf("warning failure must not block: %s", res.BlockReason)
	}
	if res.Report.Failed != 1 || res.Report.CriticalFailed != 0 {
		t.Fatalf("unexpected report: %+v", res.Report)
	}
}

func TestVerifyBlocksWithoutOraclePrice(t *testing.T) {
	v := newVerifier(t)
	b := cleanBundle()
	b.HasOraclePrice = false
	b.OraclePrice = 0
	rec := cleanRec(b)

	res := v.Verify(b, rec)
	if res.Verified {
		t.Fatalf("missing oracle must fail closed")
	}
	if res.PriceDiffPct != 1.0 {
		t.Fatalf("missing oracle should read as full deviation, got %.4f", res.PriceDiffPct)
	}
}

func TestHashStableAndSensitive(t *testing.T) {
	ts := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	a := Hash("BTC", ts, 64010, 64000, true, models.SignalLong)
	b := Hash("BTC", ts, 64010, 64000, true, models.SignalLong)
	if a != b {
		t.Fatalf("hash not deterministic")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %q", a)
	}

	variants := []string{
		Hash("ETH", ts, 64010, 64000, true, models.SignalLong),
		Hash("BTC", ts.Add(time.Second), 64010, 64000, true, models.SignalLong),
		Hash("BTC", ts, 64011, 64000, true, models.SignalLong),
		Hash("BTC", ts, 64010, 64001, true, models.SignalLong),
		Hash("BTC", ts, 64010, 64000, false, models.SignalLong),
		Hash("BTC", ts, 64010, 64000, true, models.SignalShort),
	}
	for i, v := range variants {
		if v == a {
			t.Fatalf("variant %d collides with base hash", i)
		}
	}
}
