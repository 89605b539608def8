package db

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trafficbandit/allocator/internal/apperr"
)

func newMockDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return &DB{pool: mock}, mock
}

func TestCreateExperiment_Success(t *testing.T) {
	store, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO experiments").
		WithArgs(pgxmock.AnyArg(), "homepage-hero", "hero banner test").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO variants").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "control", true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO variants").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "treatment", false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	exp, err := store.CreateExperiment(context.Background(), "homepage-hero", "hero banner test", []VariantInput{
		{Name: "control", IsControl: true},
		{Name: "treatment", IsControl: false},
	})

	require.NoError(t, err)
	assert.Equal(t, "homepage-hero", exp.Name)
	assert.Len(t, exp.Variants, 2)
	assert.True(t, exp.Variants[0].IsControl)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateExperiment_RequiresAtLeastTwoVariants(t *testing.T) {
	store, _ := newMockDB(t)

	_, err := store.CreateExperiment(context.Background(), "solo", "", []VariantInput{
		{Name: "only", IsControl: true},
	})

	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Validation, appErr.Kind)
}

func TestCreateExperiment_RequiresAControl(t *testing.T) {
	store, _ := newMockDB(t)

	_, err := store.CreateExperiment(context.Background(), "no-control", "", []VariantInput{
		{Name: "a", IsControl: false},
		{Name: "b", IsControl: false},
	})

	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Validation, appErr.Kind)
}

func TestCreateExperiment_NameConflict(t *testing.T) {
	store, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO experiments").
		WithArgs(pgxmock.AnyArg(), "dup", "").
		WillReturnError(&mockPgError{code: "23505"})
	mock.ExpectRollback()

	_, err := store.CreateExperiment(context.Background(), "dup", "", []VariantInput{
		{Name: "control", IsControl: true},
		{Name: "treatment", IsControl: false},
	})

	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.NameConflict, appErr.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetExperiment_NotFound(t *testing.T) {
	store, mock := newMockDB(t)

	mock.ExpectQuery("SELECT id, name, description, status, created_at, updated_at FROM experiments").
		WithArgs("missing-experiment").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description", "status", "created_at", "updated_at"}))

	_, err := store.GetExperiment(context.Background(), "missing-experiment")

	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.NotFound, appErr.Kind)
}

// mockPgError satisfies the SQLState() interface isUniqueViolation checks
// for, without pulling in a real pgconn.PgError construction.
type mockPgError struct{ code string }

func (e *mockPgError) Error() string   { return "pg error: " + e.code }
func (e *mockPgError) SQLState() string { return e.code }
