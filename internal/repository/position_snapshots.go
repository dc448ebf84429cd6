package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Verdict/internal/domain/models"
	domain "Verdict/internal/domain/repository"
	"Verdict/pkg/cache"
)

const snapshotTTL = 7 * 24 * time.Hour

// PositionSnapshots mirrors committed position transitions into a cache
// backend, normally Redis, so recent state survives a restart. The in-memory
// manager stays authoritative.
type PositionSnapshots struct {
	cache cache.Service
}

var _ domain.PositionSnapshotStore = (*PositionSnapshots)(nil)

// NewPositionSnapshots creates the snapshot store.
func NewPositionSnapshots(c cache.Service) *PositionSnapshots {
	return &PositionSnapshots{cache: c}
}

// Save overwrites the snapshot for the position's key.
func (s *PositionSnapshots) Save(ctx context.Context, p *models.Position) error {
	return s.cache.Set(ctx, snapshotKey(p.SessionKey, p.Symbol), p, snapshotTTL)
}

// Load returns the stored snapshot, or nil when none exists.
func (s *PositionSnapshots) Load(ctx context.Context, sessionKey, symbol string) (*models.Position, error) {
	var p models.Position
	err := s.cache.Get(ctx, snapshotKey(sessionKey, symbol), &p)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Close releases the cache backend.
func (s *PositionSnapshots) Close() error {
	return s.cache.Close()
}

func snapshotKey(sessionKey, symbol string) string {
	return fmt.Sprintf("position:%s:%s", sessionKey, symbol)
}
