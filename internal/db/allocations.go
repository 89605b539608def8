package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SaveAllocation persists one allocation computation: the parent record and
// its per-variant details, inserted together so a reader never observes a
// record with a partial detail set.
func (db *DB) SaveAllocation(ctx context.Context, record AllocationRecord, details []AllocationDetail) (string, error) {
	result, err := db.withBreaker(func() (interface{}, error) {
		return db.saveAllocationTx(ctx, record, details)
	})
	if err != nil {
		return "", translateExperimentErr(err)
	}
	return result.(string), nil
}

func (db *DB) saveAllocationTx(ctx context.Context, record AllocationRecord, details []AllocationDetail) (string, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	allocationID := uuid.New().String()

	_, err = tx.Exec(ctx, `
		INSERT INTO allocation_records
			(id, experiment_id, window_days, algorithm_name, algorithm_version, seed, used_fallback, total_impressions, total_clicks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		allocationID, record.ExperimentID, record.WindowDays, record.AlgorithmName, record.AlgorithmVersion,
		int64(record.Seed), record.UsedFallback, record.TotalImpressions, record.TotalClicks,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert allocation record: %w", err)
	}

	for _, d := range details {
		detailID := uuid.New().String()
		_, err = tx.Exec(ctx, `
			INSERT INTO allocation_details
				(id, allocation_id, variant_id, variant_name, is_control, allocation_percentage,
				 impressions, clicks, ctr, beta_alpha, beta_beta, ctr_ci_lower, ctr_ci_upper)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			detailID, allocationID, d.VariantID, d.VariantName, d.IsControl, d.AllocationPercentage,
			d.Impressions, d.Clicks, d.CTR, d.BetaAlpha, d.BetaBeta, d.CTRCILower, d.CTRCIUpper,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert allocation detail for variant %s: %w", d.VariantName, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().Str("allocation_id", allocationID).Str("experiment_id", record.ExperimentID).
		Bool("used_fallback", record.UsedFallback).Msg("allocation saved")
	return allocationID, nil
}

// GetHistory returns the most recent allocation computations for an
// experiment, newest first, each with its full set of per-variant details.
func (db *DB) GetHistory(ctx context.Context, experimentID string, limit int) ([]HistoryEntry, error) {
	result, err := db.withBreaker(func() (interface{}, error) {
		return db.getHistory(ctx, experimentID, limit)
	})
	if err != nil {
		return nil, translateExperimentErr(err)
	}
	return result.([]HistoryEntry), nil
}

func (db *DB) getHistory(ctx context.Context, experimentID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.pool.Query(ctx, `
		SELECT id, experiment_id, computed_at, window_days, algorithm_name, algorithm_version,
		       seed, used_fallback, total_impressions, total_clicks
		FROM allocation_records
		WHERE experiment_id = $1
		ORDER BY computed_at DESC
		LIMIT $2`,
		experimentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation records: %w", err)
	}

	var records []AllocationRecord
	for rows.Next() {
		var r AllocationRecord
		var seed int64
		if err := rows.Scan(
			&r.ID, &r.ExperimentID, &r.ComputedAt, &r.WindowDays, &r.AlgorithmName, &r.AlgorithmVersion,
			&seed, &r.UsedFallback, &r.TotalImpressions, &r.TotalClicks,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan allocation record: %w", err)
		}
		r.Seed = uint64(seed)
		records = append(records, r)
	}
	rowErr := rows.Err()
	rows.Close()
	if rowErr != nil {
		return nil, fmt.Errorf("error iterating allocation records: %w", rowErr)
	}

	out := make([]HistoryEntry, 0, len(records))
	for _, r := range records {
		details, err := db.getAllocationDetails(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, HistoryEntry{Record: r, Details: details})
	}

	return out, nil
}

func (db *DB) getAllocationDetails(ctx context.Context, allocationID string) ([]AllocationDetail, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, allocation_id, variant_id, variant_name, is_control, allocation_percentage,
		       impressions, clicks, ctr, beta_alpha, beta_beta, ctr_ci_lower, ctr_ci_upper
		FROM allocation_details
		WHERE allocation_id = $1
		ORDER BY is_control DESC, variant_name ASC`,
		allocationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation details: %w", err)
	}
	defer rows.Close()

	var details []AllocationDetail
	for rows.Next() {
		var d AllocationDetail
		if err := rows.Scan(
			&d.ID, &d.AllocationID, &d.VariantID, &d.VariantName, &d.IsControl, &d.AllocationPercentage,
			&d.Impressions, &d.Clicks, &d.CTR, &d.BetaAlpha, &d.BetaBeta, &d.CTRCILower, &d.CTRCIUpper,
		); err != nil {
			return nil, fmt.Errorf("failed to scan allocation detail: %w", err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation details: %w", err)
	}

	return details, nil
}
