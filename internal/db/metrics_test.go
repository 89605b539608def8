package db

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficbandit/allocator/internal/apperr"
)

func TestRecordMetrics_RejectsClicksExceedingImpressions(t *testing.T) {
	store, _ := newMockDB(t)

	_, err := store.RecordMetrics(context.Background(), "exp-1", time.Now(), []MetricEntry{
		{VariantName: "control", Impressions: 100, Clicks: 500},
	}, SourceAPI, "batch-1")

	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Validation, appErr.Kind)
}

func TestRecordMetrics_RejectsEmptyBatch(t *testing.T) {
	store, _ := newMockDB(t)

	_, err := store.RecordMetrics(context.Background(), "exp-1", time.Now(), nil, SourceAPI, "batch-1")

	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Validation, appErr.Kind)
}

func TestRecordMetrics_Success(t *testing.T) {
	store, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM variants").
		WithArgs("exp-1", "control").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("variant-1"))
	mock.ExpectExec("INSERT INTO raw_metrics").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO daily_metrics").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := store.RecordMetrics(context.Background(), "exp-1", time.Now(), []MetricEntry{
		{VariantName: "control", Impressions: 1000, Clicks: 40},
	}, SourceAPI, "batch-1")

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordMetrics_UnknownVariant(t *testing.T) {
	store, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM variants").
		WithArgs("exp-1", "ghost").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := store.RecordMetrics(context.Background(), "exp-1", time.Now(), []MetricEntry{
		{VariantName: "ghost", Impressions: 10, Clicks: 1},
	}, SourceAPI, "batch-1")

	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.NotFound, appErr.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregateForAllocation_ZeroDataVariantAppearsWithNullCI(t *testing.T) {
	store, mock := newMockDB(t)

	rows := pgxmock.NewRows([]string{
		"id", "name", "is_control", "impressions", "clicks", "sessions", "revenue", "ctr_ci_lower", "ctr_ci_upper",
	}).
		AddRow("variant-1", "control", true, int64(0), int64(0), nil, nil, nil, nil).
		AddRow("variant-2", "treatment", false, int64(500), int64(25), nil, nil, 0.034, 0.072)

	mock.ExpectQuery("SELECT").
		WithArgs("exp-1", 14).
		WillReturnRows(rows)

	result, err := store.AggregateForAllocation(context.Background(), "exp-1", 14)

	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Nil(t, result[0].CTRCILower)
	assert.NotNil(t, result[1].CTRCILower)
}

func TestAggregateForAllocation_NoVariants(t *testing.T) {
	store, mock := newMockDB(t)

	mock.ExpectQuery("SELECT").
		WithArgs("exp-missing", 14).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "is_control", "impressions", "clicks", "sessions", "revenue", "ctr_ci_lower", "ctr_ci_upper",
		}))

	_, err := store.AggregateForAllocation(context.Background(), "exp-missing", 14)

	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.NotFound, appErr.Kind)
}
