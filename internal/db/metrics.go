package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/trafficbandit/allocator/internal/apperr"
)

// RecordMetrics appends one raw_metrics row per entry and folds each into
// the matching daily_metrics row via upsert, all within a single
// transaction so a partial batch never becomes partially visible.
func (db *DB) RecordMetrics(ctx context.Context, experimentID string, metricDate time.Time, entries []MetricEntry, source MetricSource, batchID string) (int, error) {
	if len(entries) == 0 {
		return 0, apperr.Field("metrics", "at least one metric entry is required")
	}
	for _, e := range entries {
		if e.Clicks > e.Impressions {
			return 0, apperr.Newf(apperr.Validation, "variant %q: clicks (%d) cannot exceed impressions (%d)", e.VariantName, e.Clicks, e.Impressions)
		}
		if e.Impressions < 0 || e.Clicks < 0 {
			return 0, apperr.Newf(apperr.Validation, "variant %q: impressions and clicks must be non-negative", e.VariantName)
		}
	}

	result, err := db.withBreaker(func() (interface{}, error) {
		return db.recordMetricsTx(ctx, experimentID, metricDate, entries, source, batchID)
	})
	if err != nil {
		return 0, translateExperimentErr(err)
	}
	return result.(int), nil
}

func (db *DB) recordMetricsTx(ctx context.Context, experimentID string, metricDate time.Time, entries []MetricEntry, source MetricSource, batchID string) (int, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	dateOnly := metricDate.UTC().Format("2006-01-02")

	for _, e := range entries {
		var variantID string
		err := tx.QueryRow(ctx,
			`SELECT id FROM variants WHERE experiment_id = $1 AND name = $2`,
			experimentID, e.VariantName,
		).Scan(&variantID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, apperr.Newf(apperr.NotFound, "variant %q does not belong to experiment %q", e.VariantName, experimentID)
			}
			return 0, fmt.Errorf("failed to resolve variant %q: %w", e.VariantName, err)
		}

		rawID := uuid.New().String()
		_, err = tx.Exec(ctx,
			`INSERT INTO raw_metrics (id, variant_id, metric_date, impressions, clicks, sessions, revenue, source, batch_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			rawID, variantID, dateOnly, e.Impressions, e.Clicks, e.Sessions, e.Revenue, string(source), batchID,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert raw metric for variant %s: %w", e.VariantName, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO daily_metrics (variant_id, metric_date, impressions, clicks, sessions, revenue, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (variant_id, metric_date) DO UPDATE SET
				impressions = EXCLUDED.impressions,
				clicks = EXCLUDED.clicks,
				sessions = EXCLUDED.sessions,
				revenue = EXCLUDED.revenue,
				updated_at = NOW()`,
			variantID, dateOnly, e.Impressions, e.Clicks, e.Sessions, e.Revenue,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert daily metric for variant %s: %w", e.VariantName, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().Str("experiment_id", experimentID).Int("entries", len(entries)).Str("batch_id", batchID).Msg("metrics recorded")
	return len(entries), nil
}

// AggregateForAllocation sums daily_metrics over the half-open window
// [today-windowDays, today) for every variant of the experiment, computing
// the Wilson 95% CTR confidence interval in-query so zero-impression
// variants never divide by zero. Variants with no rows in the window still
// appear, via the left join, with zeroed totals and a null CI.
func (db *DB) AggregateForAllocation(ctx context.Context, experimentID string, windowDays int) ([]AggregateRow, error) {
	result, err := db.withBreaker(func() (interface{}, error) {
		return db.aggregateForAllocation(ctx, experimentID, windowDays)
	})
	if err != nil {
		return nil, translateExperimentErr(err)
	}
	return result.([]AggregateRow), nil
}

func (db *DB) aggregateForAllocation(ctx context.Context, experimentID string, windowDays int) ([]AggregateRow, error) {
	// Wilson 95% CI, inlined so it can be computed per-variant without
	// pulling per-day rows back to the application: z=1.96, z^2=3.8416,
	// matching internal/stats.WilsonInterval's constants exactly.
	const query = `
		SELECT
			v.id,
			v.name,
			v.is_control,
			COALESCE(SUM(dm.impressions), 0) AS impressions,
			COALESCE(SUM(dm.clicks), 0) AS clicks,
			SUM(dm.sessions) AS sessions,
			SUM(dm.revenue) AS revenue,
			CASE WHEN COALESCE(SUM(dm.impressions), 0) > 0 THEN (
				(SUM(dm.clicks)::double precision / SUM(dm.impressions) + 1.9208 / SUM(dm.impressions)
					- 1.96 * SQRT((SUM(dm.clicks)::double precision / SUM(dm.impressions)) * (1 - SUM(dm.clicks)::double precision / SUM(dm.impressions)) / SUM(dm.impressions) + 0.9604 / (SUM(dm.impressions) * SUM(dm.impressions)))
				) / (1 + 3.8416 / SUM(dm.impressions))
			) ELSE NULL END AS ctr_ci_lower,
			CASE WHEN COALESCE(SUM(dm.impressions), 0) > 0 THEN (
				(SUM(dm.clicks)::double precision / SUM(dm.impressions) + 1.9208 / SUM(dm.impressions)
					+ 1.96 * SQRT((SUM(dm.clicks)::double precision / SUM(dm.impressions)) * (1 - SUM(dm.clicks)::double precision / SUM(dm.impressions)) / SUM(dm.impressions) + 0.9604 / (SUM(dm.impressions) * SUM(dm.impressions)))
				) / (1 + 3.8416 / SUM(dm.impressions))
			) ELSE NULL END AS ctr_ci_upper
		FROM variants v
		LEFT JOIN daily_metrics dm
			ON dm.variant_id = v.id
			AND dm.metric_date >= CURRENT_DATE - ($2 || ' days')::interval
			AND dm.metric_date < CURRENT_DATE
		WHERE v.experiment_id = $1
		GROUP BY v.id, v.name, v.is_control
		ORDER BY v.is_control DESC, v.name ASC`

	rows, err := db.pool.Query(ctx, query, experimentID, windowDays)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate metrics: %w", err)
	}
	defer rows.Close()

	var out []AggregateRow
	for rows.Next() {
		var r AggregateRow
		if err := rows.Scan(
			&r.VariantID, &r.VariantName, &r.IsControl,
			&r.Impressions, &r.Clicks, &r.Sessions, &r.Revenue,
			&r.CTRCILower, &r.CTRCIUpper,
		); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aggregate rows: %w", err)
	}
	if len(out) == 0 {
		return nil, apperr.Newf(apperr.NotFound, "experiment %q has no variants", experimentID)
	}

	return out, nil
}
