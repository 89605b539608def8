// Package db is the storage layer for experiments, variants, their metric
// history, and allocation history, backed by PostgreSQL via pgx.
package db

import "time"

// ExperimentStatus is the lifecycle state of an Experiment.
type ExperimentStatus string

const (
	StatusActive   ExperimentStatus = "active"
	StatusPaused   ExperimentStatus = "paused"
	StatusArchived ExperimentStatus = "archived"
)

// MetricSource identifies who supplied a batch of metrics.
type MetricSource string

const (
	SourceAPI    MetricSource = "api"
	SourceGAM    MetricSource = "gam"
	SourceCDP    MetricSource = "cdp"
	SourceManual MetricSource = "manual"
)

// Experiment is one A/B test.
type Experiment struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Status      ExperimentStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Variants    []Variant        `json:"variants"`
}

// Variant is one arm of an Experiment.
type Variant struct {
	ID           string `json:"id"`
	ExperimentID string `json:"experiment_id"`
	Name         string `json:"name"`
	IsControl    bool   `json:"is_control"`
}

// RawMetric is one append-only ingestion record for a variant/date.
type RawMetric struct {
	ID          string
	VariantID   string
	MetricDate  time.Time
	Impressions int64
	Clicks      int64
	Sessions    *int64
	Revenue     *float64
	Source      MetricSource
	BatchID     string
	IngestedAt  time.Time
}

// DailyMetric is the deduplicated, upserted rollup for a (variant, date).
type DailyMetric struct {
	ID          string
	VariantID   string
	MetricDate  time.Time
	Impressions int64
	Clicks      int64
	Sessions    *int64
	Revenue     *float64
	UpdatedAt   time.Time
}

// AllocationRecord is one parent row per allocation computation.
type AllocationRecord struct {
	ID               string    `json:"id"`
	ExperimentID     string    `json:"experiment_id"`
	ComputedAt       time.Time `json:"computed_at"`
	WindowDays       int       `json:"window_days"`
	AlgorithmName    string    `json:"algorithm_name"`
	AlgorithmVersion string    `json:"algorithm_version"`
	Seed             uint64    `json:"seed"`
	UsedFallback     bool      `json:"used_fallback"`
	TotalImpressions int64     `json:"total_impressions"`
	TotalClicks      int64     `json:"total_clicks"`
}

// AllocationDetail is one per-variant child row of an AllocationRecord.
type AllocationDetail struct {
	ID                   string   `json:"id"`
	AllocationID         string   `json:"allocation_id"`
	VariantID            string   `json:"variant_id"`
	VariantName          string   `json:"variant_name"`
	IsControl            bool     `json:"is_control"`
	AllocationPercentage float64  `json:"allocation_percentage"`
	Impressions          int64    `json:"impressions"`
	Clicks               int64    `json:"clicks"`
	CTR                  float64  `json:"ctr"`
	BetaAlpha            float64  `json:"beta_alpha"`
	BetaBeta             float64  `json:"beta_beta"`
	CTRCILower           *float64 `json:"ctr_ci_lower,omitempty"`
	CTRCIUpper           *float64 `json:"ctr_ci_upper,omitempty"`
}

// AggregateRow is the result of aggregate_for_allocation for a single
// variant: summed counts over the requested window plus an in-query Wilson
// 95% interval. Optional columns are nil when the source data carries no
// sessions/revenue for that variant.
type AggregateRow struct {
	VariantID    string
	VariantName  string
	IsControl    bool
	Impressions  int64
	Clicks       int64
	Sessions     *int64
	Revenue      *float64
	CTRCILower   *float64
	CTRCIUpper   *float64
}

// MetricEntry is one caller-supplied (variant, counts) tuple for
// record_metrics.
type MetricEntry struct {
	VariantName string
	Impressions int64
	Clicks      int64
	Sessions    *int64
	Revenue     *float64
}

// VariantInput describes one variant at experiment-creation time.
type VariantInput struct {
	Name      string
	IsControl bool
}

// HistoryEntry pairs one AllocationRecord with its AllocationDetails, as
// returned by get_history.
type HistoryEntry struct {
	Record  AllocationRecord   `json:"record"`
	Details []AllocationDetail `json:"details"`
}
