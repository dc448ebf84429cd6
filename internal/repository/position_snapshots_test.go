package repository

import (
	"context"
	"testing"
	"time"

	"Verdict/internal/domain/models"
	"Verdict/pkg/cache"
)

func TestPositionSnapshotsRoundTrip(t *testing.T) {
	s := NewPositionSnapshots(cache.NewMemoryCache())
	ctx := context.Background()

	p := &models.Position{
		ID:         "pos-1",
		SessionKey: "sess",
		Symbol:     "BTC",
		Direction:  models.SignalLong,
		EntryPrice: 10,
		SizeUSD:    1000,
		Leverage:   10,
		State:      models.PositionOpen,
		OpenedAt:   time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
	}
	if err := s.Save(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load(ctx, "sess", "BTC")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || got.ID != "pos-1" || got.EntryPrice != 10 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestPositionSnapshotsMissingKey(t *testing.T) {
	s := NewPositionSnapshots(cache.NewMemoryCache())

	got, err := s.Load(context.Background(), "sess", "ETH")
	if err != nil {
		t.Fatalf("missing key must not error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil snapshot, got %+v", got)
	}
}

func TestPositionSnapshotsOverwrite(t *testing.T) {
	s := NewPositionSnapshots(cache.NewMemoryCache())
	ctx := context.Background()

	p := &models.Position{ID: "pos-1", SessionKey: "sess", Symbol: "BTC", State: models.PositionOpen}
	if err := s.Save(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}

	p.State = models.PositionClosed
	p.CloseReason = models.CloseTakeProfit
	if err := s.Save(ctx, p); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := s.Load(ctx, "sess", "BTC")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.State != models.PositionClosed || got.CloseReason != models.CloseTakeProfit {
		t.Fatalf("expected closed snapshot, got %+v", got)
	}
}
