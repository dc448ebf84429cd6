package position

import (
	"context"
	"sync"
	"testing"
	"time"

	"Verdict/internal/domain/models"
	"Verdict/internal/domain/repository"
	"Verdict/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordCycle(string, float64)                       {}
func (nopMetrics) RecordSignal(string, models.Signal)                {}
func (nopMetrics) RecordBlocked(string)                              {}
func (nopMetrics) RecordFeedError(string)                            {}
func (nopMetrics) RecordOpenPositions(int)                           {}
func (nopMetrics) RecordRealizedPnL(string, float64)                 {}
func (nopMetrics) RecordComponentHealth(string, models.HealthStatus) {}

type memSnapshots struct {
	mu    sync.Mutex
	saves int
	last  *models.Position
}

func (s *memSnapshots) Save(_ context.Context, p *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	c := *p
	s.last = &c
	return nil
}

func (s *memSnapshots) Load(context.Context, string, string) (*models.Position, error) {
	return nil, nil
}
func (s *memSnapshots) Close() error { return nil }

var _ repository.PositionSnapshotStore = (*memSnapshots)(nil)

func newManager(snaps repository.PositionSnapshotStore) *Manager {
	return New(DefaultConfig(), snaps, nopMetrics{}, logger.Nop())
}

func longRec(confidence float64) *models.Recommendation {
	return &models.Recommendation{
		Symbol:            "BTC",
		Signal:            models.SignalLong,
		Confidence:        confidence,
		SuggestedLeverage: 10,
		MaxSafeLeverage:   10,
		Verified:          true,
		Timestamp:         time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
	}
}

func holdRec() *models.Recommendation {
	r := longRec(0)
	r.Signal = models.SignalHold
	return r
}

func priceBundle(price float64) *models.SignalBundle {
	return &models.SignalBundle{
		Symbol:    "BTC",
		HasPrice:  true,
		Price:     price,
		Timestamp: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
	}
}

func TestApplyOpensVerifiedConfidentSignal(t *testing.T) {
	snaps := &memSnapshots{}
	m := newManager(snaps)

	p, err := m.Apply(context.Background(), "sess", longRec(80), priceBundle(10.0), models.ProfileModerate, 4000)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if p == nil || p.State != models.PositionOpen {
		t.Fatalf("expected open position, got %+v", p)
	}
	if p.EntryPrice != 10.0 || p.SizeUSD != 1000 || p.Leverage != 10 {
		t.Fatalf("unexpected position: %+v", p)
	}
	if p.ID == "" {
		t.Fatalf("position needs an id")
	}
	if snaps.saves != 1 {
		t.Fatalf("expected 1 snapshot save, got %d", snaps.saves)
	}
}

func TestApplyNeverOpensWhenGated(t *testing.T) {
	m := newManager(nil)
	ctx := context.Background()
	bundle := priceBundle(10.0)

	blocked := longRec(80)
	blocked.Verified = false
	blocked.BlockReason = "rule failed"

	cases := []*models.Recommendation{
		blocked,
		longRec(54.9), // below minimum confidence
		holdRec(),
	}
	for i, rec := range cases {
		p, err := m.Apply(ctx, "sess", rec, bundle, models.ProfileModerate, 4000)
		if err != nil || p != nil {
			t.Fatalf("case %d: expected no position, got %+v err %v", i, p, err)
		}
	}
	if m.OpenCount() != 0 {
		t.Fatalf("no position should be open")
	}
}

func TestApplyTakeProfitCloses(t *testing.T) {
	m := newManager(nil)
	ctx := context.Background()

	if _, err := m.Apply(ctx, "sess", longRec(80), priceBundle(10.0), models.ProfileModerate, 4000); err != nil {
		t.Fatalf("open: %v", err)
	}

	// 1.5% price move at 10x leverage is 15% ROI on margin.
	p, err := m.Apply(ctx, "sess", holdRec(), priceBundle(10.15), models.ProfileModerate, 4000)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if p.State != models.PositionClosed || p.CloseReason != models.CloseTakeProfit {
		t.Fatalf("expected take profit close, got %+v", p)
	}
	if p.PnLUSD != 150 || p.ROIPct != 15 {
		t.Fatalf("expected pnl 150 roi 15, got %.2f %.2f", p.PnLUSD, p.ROIPct)
	}
}

func TestApplyStopLossBeatsTakeProfitPrecedence(t *testing.T) {
	m := newManager(nil)
	ctx := context.Background()

	if _, err := m.Apply(ctx, "sess", longRec(80), priceBundle(10.0), models.ProfileModerate, 4000); err != nil {
		t.Fatalf("open: %v", err)
	}

	p, err := m.Apply(ctx, "sess", holdRec(), priceBundle(9.89), models.ProfileModerate, 4000)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if p.State != models.PositionClosed || p.CloseReason != models.CloseStopLoss {
		t.Fatalf("expected stop loss close, got %+v", p)
	}
	if p.ROIPct > -10 {
		t.Fatalf("expected roi at or below -10, got %.2f", p.ROIPct)
	}
}

func TestApplySignalReversalNeedsConfidence(t *testing.T) {
	m := newManager(nil)
	ctx := context.Background()

	if _, err := m.Apply(ctx, "sess", longRec(80), priceBundle(10.0), models.ProfileModerate, 4000); err != nil {
		t.Fatalf("open: %v", err)
	}

	weak := longRec(60)
	weak.Signal = models.SignalShort
	p, err := m.Apply(ctx, "sess", weak, priceBundle(10.01), models.ProfileModerate, 4000)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if p.State != models.PositionOpen {
		t.Fatalf("weak reversal must not close: %+v", p)
	}

	strong := longRec(75)
	strong.Signal = models.SignalShort
	p, err = m.Apply(ctx, "sess", strong, priceBundle(10.01), models.ProfileModerate, 4000)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if p.State != models.PositionClosed || p.CloseReason != models.CloseSignalReversal {
		t.Fatalf("expected reversal close, got %+v", p)
	}
}

func TestShortPositionPnL(t *testing.T) {
	m := newManager(nil)
	ctx := context.Background()

	rec := longRec(80)
	rec.Signal = models.SignalShort
	if _, err := m.Apply(ctx, "sess", rec, priceBundle(10.0), models.ProfileModerate, 4000); err != nil {
		t.Fatalf("open: %v", err)
	}

	p, err := m.Apply(ctx, "sess", holdRec(), priceBundle(9.95), models.ProfileModerate, 4000)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if p.PnLUSD != 50 || p.ROIPct != 5 {
		t.Fatalf("short pnl wrong: %.2f %.2f", p.PnLUSD, p.ROIPct)
	}
}

func TestOpenRejectsDoubleOpen(t *testing.T) {
	m := newManager(nil)
	ctx := context.Background()

	first, err := m.Open(ctx, "sess", longRec(80), priceBundle(10.0), models.ProfileModerate, 4000)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if first == nil || first.State != models.PositionOpen {
		t.Fatalf("expected open position, got %+v", first)
	}

	if _, err := m.Open(ctx, "sess", longRec(80), priceBundle(10.5), models.ProfileModerate, 4000); !models.IsInvalidTransition(err) {
		t.Fatalf("double open must be invalid transition, got %v", err)
	}

	// The losing attempt left the store untouched.
	cur, ok := m.Get("sess", "BTC")
	if !ok || cur.ID != first.ID || cur.EntryPrice != 10.0 {
		t.Fatalf("store mutated by rejected open: %+v", cur)
	}
	if m.OpenCount() != 1 {
		t.Fatalf("expected one open position, got %d", m.OpenCount())
	}
}

func TestOpenBypassesConfidenceGateButNotVerification(t *testing.T) {
	m := newManager(nil)
	ctx := context.Background()

	// Below the cycle path's confidence gate, still a valid manual entry.
	p, err := m.Open(ctx, "sess", longRec(40), priceBundle(10.0), models.ProfileModerate, 4000)
	if err != nil || p == nil || p.State != models.PositionOpen {
		t.Fatalf("manual open below confidence gate: %+v err %v", p, err)
	}

	blocked := longRec(80)
	blocked.Verified = false
	if _, err := m.Open(ctx, "other", blocked, priceBundle(10.0), models.ProfileModerate, 4000); !models.IsInvalidTransition(err) {
		t.Fatalf("unverified recommendation must be rejected, got %v", err)
	}
	if _, err := m.Open(ctx, "other", holdRec(), priceBundle(10.0), models.ProfileModerate, 4000); !models.IsInvalidTransition(err) {
		t.Fatalf("HOLD must be rejected, got %v", err)
	}
}

func TestManualCloseAndDoubleClose(t *testing.T) {
	m := newManager(nil)
	ctx := context.Background()

	if _, err := m.Apply(ctx, "sess", longRec(80), priceBundle(10.0), models.ProfileModerate, 4000); err != nil {
		t.Fatalf("open: %v", err)
	}

	p, err := m.Close(ctx, "sess", "BTC", 10.05)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if p.State != models.PositionClosed || p.CloseReason != models.CloseManual {
		t.Fatalf("expected manual close, got %+v", p)
	}

	if _, err := m.Close(ctx, "sess", "BTC", 10.05); !models.IsInvalidTransition(err) {
		t.Fatalf("double close must be invalid transition, got %v", err)
	}
	if _, err := m.Close(ctx, "sess", "ETH", 1); !models.IsInvalidTransition(err) {
		t.Fatalf("closing unknown key must be invalid transition, got %v", err)
	}
}

func TestReopenAfterCloseGetsNewPosition(t *testing.T) {
	m := newManager(nil)
	ctx := context.Background()

	first, err := m.Apply(ctx, "sess", longRec(80), priceBundle(10.0), models.ProfileModerate, 4000)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := m.Close(ctx, "sess", "BTC", 10.0); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := m.Apply(ctx, "sess", longRec(80), priceBundle(11.0), models.ProfileModerate, 4000)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if second == nil || second.State != models.PositionOpen {
		t.Fatalf("expected reopened position")
	}
	if second.ID == first.ID {
		t.Fatalf("closed position must not be reused")
	}
	if second.EntryPrice != 11.0 {
		t.Fatalf("new entry price expected, got %.2f", second.EntryPrice)
	}
}

func TestConcurrentApplySingleOpen(t *testing.T) {
	m := newManager(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Apply(ctx, "sess", longRec(80), priceBundle(10.0), models.ProfileModerate, 4000)
		}()
	}
	wg.Wait()

	if m.OpenCount() != 1 {
		t.Fatalf("expected exactly one open position, got %d", m.OpenCount())
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	m := newManager(nil)
	ctx := context.Background()

	if _, err := m.Apply(ctx, "a", longRec(80), priceBundle(10.0), models.ProfileConservative, 1000); err != nil {
		t.Fatalf("open a: %v", err)
	}
	if _, err := m.Apply(ctx, "b", longRec(80), priceBundle(20.0), models.ProfileAggressive, 1000); err != nil {
		t.Fatalf("open b: %v", err)
	}

	pa, _ := m.Get("a", "BTC")
	pb, _ := m.Get("b", "BTC")
	if pa.SizeUSD != 100 || pb.SizeUSD != 500 {
		t.Fatalf("profile sizing wrong: %.2f %.2f", pa.SizeUSD, pb.SizeUSD)
	}
	if pa.EntryPrice == pb.EntryPrice {
		t.Fatalf("sessions leaked state")
	}
}
