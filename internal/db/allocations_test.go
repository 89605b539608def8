package db

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAllocation_Success(t *testing.T) {
	store, mock := newMockDB(t)

	record := AllocationRecord{
		ExperimentID:     "exp-1",
		WindowDays:       14,
		AlgorithmName:    "thompson-sampling",
		AlgorithmVersion: "1.0.0",
		Seed:             123456,
		UsedFallback:     false,
		TotalImpressions: 1500,
		TotalClicks:      60,
	}
	details := []AllocationDetail{
		{VariantName: "control", IsControl: true, AllocationPercentage: 45.50, Impressions: 1000, Clicks: 40, CTR: 0.04, BetaAlpha: 41, BetaBeta: 961},
		{VariantName: "treatment", IsControl: false, AllocationPercentage: 54.50, Impressions: 500, Clicks: 20, CTR: 0.04, BetaAlpha: 21, BetaBeta: 481},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO allocation_records").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO allocation_details").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO allocation_details").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	id, err := store.SaveAllocation(context.Background(), record, details)

	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetHistory_ReturnsRecordsWithDetails(t *testing.T) {
	store, mock := newMockDB(t)

	now := time.Now()
	recordRows := pgxmock.NewRows([]string{
		"id", "experiment_id", "computed_at", "window_days", "algorithm_name", "algorithm_version",
		"seed", "used_fallback", "total_impressions", "total_clicks",
	}).AddRow("alloc-1", "exp-1", now, 14, "thompson-sampling", "1.0.0", int64(999), false, int64(1500), int64(60))

	mock.ExpectQuery("SELECT id, experiment_id, computed_at").
		WithArgs("exp-1", 10).
		WillReturnRows(recordRows)

	detailRows := pgxmock.NewRows([]string{
		"id", "allocation_id", "variant_id", "variant_name", "is_control", "allocation_percentage",
		"impressions", "clicks", "ctr", "beta_alpha", "beta_beta", "ctr_ci_lower", "ctr_ci_upper",
	}).AddRow("detail-1", "alloc-1", "variant-1", "control", true, 45.50, int64(1000), int64(40), 0.04, 41.0, 961.0, nil, nil)

	mock.ExpectQuery("SELECT id, allocation_id, variant_id").
		WithArgs("alloc-1").
		WillReturnRows(detailRows)

	history, err := store.GetHistory(context.Background(), "exp-1", 10)

	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "thompson-sampling", history[0].Record.AlgorithmName)
	require.Len(t, history[0].Details, 1)
	assert.Equal(t, "control", history[0].Details[0].VariantName)
	require.NoError(t, mock.ExpectationsWereMet())
}
