//go:build integration

package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficbandit/allocator/internal/db"
	"github.com/trafficbandit/allocator/internal/db/testhelpers"
)

func TestExperimentLifecycle_AgainstRealPostgres(t *testing.T) {
	tc := testhelpers.SetupTestDatabase(t)
	require.NoError(t, tc.ApplyMigrations("../../migrations"))

	store := tc.DB
	ctx := context.Background()

	exp, err := store.CreateExperiment(ctx, "checkout-cta", "cta color test", []db.VariantInput{
		{Name: "blue", IsControl: true},
		{Name: "green", IsControl: false},
	})
	require.NoError(t, err)
	require.Len(t, exp.Variants, 2)

	n, err := store.RecordMetrics(ctx, exp.ID, time.Now().UTC().AddDate(0, 0, -1), []db.MetricEntry{
		{VariantName: "blue", Impressions: 1000, Clicks: 50},
		{VariantName: "green", Impressions: 1000, Clicks: 70},
	}, db.SourceAPI, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := store.AggregateForAllocation(ctx, exp.ID, 14)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.EqualValues(t, 1000, r.Impressions)
	}

	allocationID, err := store.SaveAllocation(ctx, db.AllocationRecord{
		ExperimentID:     exp.ID,
		WindowDays:       14,
		AlgorithmName:    "thompson-sampling",
		AlgorithmVersion: "1.0.0",
		Seed:             42,
		TotalImpressions: 2000,
		TotalClicks:      120,
	}, []db.AllocationDetail{
		{VariantID: rows[0].VariantID, VariantName: rows[0].VariantName, IsControl: rows[0].IsControl, AllocationPercentage: 48.00, Impressions: 1000, Clicks: 50, CTR: 0.05, BetaAlpha: 51, BetaBeta: 951},
		{VariantID: rows[1].VariantID, VariantName: rows[1].VariantName, IsControl: rows[1].IsControl, AllocationPercentage: 52.00, Impressions: 1000, Clicks: 70, CTR: 0.07, BetaAlpha: 71, BetaBeta: 931},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, allocationID)

	history, err := store.GetHistory(ctx, exp.ID, 5)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Len(t, history[0].Details, 2)
}

func TestRecordMetrics_RepeatedIngestIsIdempotent(t *testing.T) {
	tc := testhelpers.SetupTestDatabase(t)
	require.NoError(t, tc.ApplyMigrations("../../migrations"))

	store := tc.DB
	ctx := context.Background()

	exp, err := store.CreateExperiment(ctx, "repeat-ingest", "idempotence check", []db.VariantInput{
		{Name: "control", IsControl: true},
		{Name: "treatment", IsControl: false},
	})
	require.NoError(t, err)

	metricDate := time.Now()
	entries := []db.MetricEntry{{VariantName: "control", Impressions: 10000, Clicks: 320}}

	_, err = store.RecordMetrics(ctx, exp.ID, metricDate, entries, db.SourceAPI, "batch-1")
	require.NoError(t, err)
	_, err = store.RecordMetrics(ctx, exp.ID, metricDate, entries, db.SourceAPI, "batch-2")
	require.NoError(t, err)

	variantID := exp.Variants[0].ID

	var rawCount int
	require.NoError(t, tc.DB.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM raw_metrics WHERE variant_id = $1`, variantID,
	).Scan(&rawCount))
	assert.Equal(t, 2, rawCount, "each POST appends its own raw metric row")

	var dailyCount int
	var impressions, clicks int64
	require.NoError(t, tc.DB.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM daily_metrics WHERE variant_id = $1`, variantID,
	).Scan(&dailyCount))
	assert.Equal(t, 1, dailyCount, "repeated ingest leaves exactly one DailyMetric row")

	require.NoError(t, tc.DB.Pool().QueryRow(ctx,
		`SELECT impressions, clicks FROM daily_metrics WHERE variant_id = $1`, variantID,
	).Scan(&impressions, &clicks))
	assert.EqualValues(t, 10000, impressions, "latest write wins, not accumulated")
	assert.EqualValues(t, 320, clicks, "latest write wins, not accumulated")
}
