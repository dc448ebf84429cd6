package models

import "time"

// HealthStatus classifies a polled component.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusOffline  HealthStatus = "offline"
)

// HealthRecord is the latest poll outcome for one component. A timeout or
// poll error always yields an offline record, never an error return.
type HealthRecord struct {
	Component   string       `json:"component"`
	Status      HealthStatus `json:"status"`
	LatencyMS   int64        `json:"latency_ms"`
	Err         string       `json:"error,omitempty"`
	LastChecked time.Time    `json:"last_checked"`
}

// HealthSummary carries rollup counts over one aggregation pass.
type HealthSummary struct {
	Total        int     `json:"total"`
	Healthy      int     `json:"healthy"`
	Degraded     int     `json:"degraded"`
	Offline      int     `json:"offline"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

// AggregateHealth is the full health snapshot: overall rollup, per-component
// records and summary counts.
type AggregateHealth struct {
	Overall    HealthStatus            `json:"overall"`
	Components map[string]HealthRecord `json:"components"`
	Summary    HealthSummary           `json:"summary"`
	Timestamp  time.Time               `json:"timestamp"`
}
