package repository

import (
	"context"
	"fmt"

	domain "Verdict/internal/domain/repository"
	"Verdict/pkg/clickhouse"
)

var decisionSchema = []string{
	`CREATE TABLE IF NOT EXISTS decisions (
		ts             DateTime64(3),
		session        String,
		symbol         LowCardinality(String),
		signal         LowCardinality(String),
		confidence     Float64,
		signal_score   Float64,
		verified       UInt8,
		block_reason   String,
		hash           FixedString(64),
		oracle_price   Float64,
		declared_price Float64
	) ENGINE = MergeTree()
	ORDER BY (symbol, ts)
	TTL toDateTime(ts) + INTERVAL 90 DAY`,
}

// DecisionStore persists the audit trail of evaluation cycles in ClickHouse.
type DecisionStore struct {
	client *clickhouse.Client
}

var _ domain.DecisionStore = (*DecisionStore)(nil)

// NewDecisionStore creates the store and ensures its schema exists.
func NewDecisionStore(ctx context.Context, client *clickhouse.Client) (*DecisionStore, error) {
	if err := client.InitSchema(ctx, decisionSchema); err != nil {
		return nil, fmt.Errorf("decision schema: %w", err)
	}
	return &DecisionStore{client: client}, nil
}

// Record appends one decision to the audit trail.
func (s *DecisionStore) Record(ctx context.Context, rec *domain.DecisionRecord) error {
	const q = `INSERT INTO decisions
		(ts, session, symbol, signal, confidence, signal_score, verified, block_reason, hash, oracle_price, declared_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	verified := uint8(0)
	if rec.Verified {
		verified = 1
	}

	_, err := s.client.DB().ExecContext(ctx, q,
		rec.Timestamp, rec.Session, rec.Symbol, string(rec.Signal),
		rec.Confidence, rec.SignalScore, verified, rec.BlockReason,
		rec.Hash, rec.OraclePrice, rec.DeclaredPrice)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// Stats aggregates the audit trail into verification counters.
func (s *DecisionStore) Stats(ctx context.Context) (domain.DecisionStats, error) {
	const q = `SELECT count(), countIf(verified = 1), countIf(verified = 0) FROM decisions`

	var stats domain.DecisionStats
	row := s.client.DB().QueryRowContext(ctx, q)
	if err := row.Scan(&stats.Total, &stats.Valid, &stats.Invalid); err != nil {
		return domain.DecisionStats{}, fmt.Errorf("decision stats: %w", err)
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Valid) / float64(stats.Total) * 100
	}
	return stats, nil
}

// Close releases the underlying connection pool.
func (s *DecisionStore) Close() error {
	return s.client.Close()
}
