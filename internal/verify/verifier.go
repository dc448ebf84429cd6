package verify

import (
	"fmt"
	"math"

	"Verdict/internal/domain/models"
	"Verdict/internal/rules"
	"Verdict/pkg/logger"
)

// Result is the outcome of verifying one recommendation against the oracle
// reference price and the declarative rule set.
type Result struct {
	Verified     bool              `json:"verified"`
	PriceDiffPct float64           `json:"price_diff_pct"`
	Report       models.RuleReport `json:"report"`
	BlockReason  string            `json:"block_reason,omitempty"`
	// BlockClass is the low-cardinality classification of BlockReason: the
	// failing rule name, "oracle_unavailable" or "price_tolerance". Metric
	// labels use this, never the detailed reason string.
	BlockClass string `json:"block_class,omitempty"`
	Hash       string `json:"hash"`
}

// Block classes for non-rule verification failures.
const (
	BlockOracleUnavailable = "oracle_unavailable"
	BlockPriceTolerance    = "price_tolerance"
)

// Verifier cross-checks a fused recommendation before it is allowed to drive
// positions. A recommendation verifies only when the declared price sits
// within tolerance of the oracle reference and no critical rule fails.
type Verifier struct {
	set       *rules.Set
	tolerance float64
	log       *logger.Logger
}

// New creates a verifier. Tolerance is the relative price deviation
// (e.g. 0.01 for 1%) above which verification blocks.
func New(set *rules.Set, tolerance float64, log *logger.Logger) *Verifier {
	return &Verifier{set: set, tolerance: tolerance, log: log}
}

// Verify evaluates the rule set and the oracle tolerance check, stamps the
// recommendation with the outcome, and returns the full result. The whole
// report runs every time; failures never short-circuit the remaining rules.
func (v *Verifier) Verify(bundle *models.SignalBundle, rec *models.Recommendation) Result {
	res := Result{PriceDiffPct: priceDiffPct(bundle)}

	res.Report = v.set.Evaluate(buildContext(bundle, rec, res.PriceDiffPct))

	oracleOK := bundle.HasOraclePrice && bundle.OraclePrice > 0
	withinTolerance := oracleOK && res.PriceDiffPct <= v.tolerance
	res.Verified = withinTolerance && res.Report.CriticalFailed == 0

	switch {
	case res.Report.CriticalFailed > 0:
		first := res.Report.FirstCriticalFailure()
		res.BlockClass = first.RuleName
		res.BlockReason = fmt.Sprintf("rule %s failed: %s", first.RuleName, blockMessage(first))
	case !oracleOK:
		res.BlockClass = BlockOracleUnavailable
		res.BlockReason = "oracle reference price unavailable"
	case !withinTolerance:
		res.BlockClass = BlockPriceTolerance
		res.BlockReason = fmt.Sprintf("price deviation %.4f exceeds tolerance %.4f", res.PriceDiffPct, v.tolerance)
	}

	res.Hash = Hash(rec.Symbol, rec.Timestamp, bundle.OraclePrice, bundle.Price, res.Verified, rec.Signal)

	rec.Verified = res.Verified
	rec.VerificationHash = res.Hash
	rec.BlockReason = res.BlockReason

	if !res.Verified {
		v.log.Warn("recommendation blocked",
			logger.String("symbol", rec.Symbol),
			logger.String("reason", res.BlockReason),
			logger.Float64("price_diff_pct", res.PriceDiffPct))
	}
	return res
}

// priceDiffPct is the relative deviation of the declared market price from
// the oracle reference. A missing or zero oracle price reads as a full
// deviation so verification fails closed.
func priceDiffPct(bundle *models.SignalBundle) float64 {
	if !bundle.HasOraclePrice || bundle.OraclePrice <= 0 {
		return 1.0
	}
	return math.Abs(bundle.OraclePrice-bundle.Price) / bundle.OraclePrice
}

// buildContext exposes every bundle and recommendation field the rule
// mini-language can reference.
func buildContext(bundle *models.SignalBundle, rec *models.Recommendation, diffPct float64) rules.Context {
	return rules.Context{
		"price":                bundle.Price,
		"volume_24h":           bundle.Volume24h,
		"pct_change_1h":        bundle.PctChange1h,
		"pct_change_24h":       bundle.PctChange24,
		"pct_change_7d":        bundle.PctChange7d,
		"sentiment_score":      bundle.SentimentScore,
		"sentiment_short_term": bundle.SentimentShortTerm,
		"risk_level":           string(bundle.RiskLevel),
		"onchain_activity":     bundle.OnchainActivity,
		"onchain_liquidity":    bundle.OnchainLiquidity,
		"oracle_price":         bundle.OraclePrice,
		"attestation_proof":    bundle.AttestationProof,
		"price_diff_pct":       diffPct,
		"degraded_feeds":       float64(len(bundle.Degraded)),
		"signal":               string(rec.Signal),
		"confidence":           rec.Confidence,
		"signal_score":         rec.SignalScore,
		"suggested_leverage":   float64(rec.SuggestedLeverage),
		"max_safe_leverage":    float64(rec.MaxSafeLeverage),
	}
}

func blockMessage(r *models.RuleResult) string {
	if r.Message != "" {
		return r.Message
	}
	if r.Err != "" {
		return r.Err
	}
	return "condition not satisfied"
}
