package api

import (
	"context"
	"time"

	"github.com/trafficbandit/allocator/internal/db"
)

// fakeStore is a hand-written db.Store double, configurable per test via
// its function fields; a nil function field falls back to a canned result.
type fakeStore struct {
	createFn func(ctx context.Context, name, description string, variants []db.VariantInput) (*db.Experiment, error)

	experiment *db.Experiment
	getErr     error

	recordFn func(ctx context.Context, experimentID string, metricDate time.Time, entries []db.MetricEntry, source db.MetricSource, batchID string) (int, error)

	aggregateRows map[int][]db.AggregateRow
	saveErr       error

	history    []db.HistoryEntry
	historyErr error
}

func (f *fakeStore) CreateExperiment(ctx context.Context, name, description string, variants []db.VariantInput) (*db.Experiment, error) {
	if f.createFn != nil {
		return f.createFn(ctx, name, description, variants)
	}
	return f.experiment, nil
}

func (f *fakeStore) GetExperiment(ctx context.Context, idOrName string) (*db.Experiment, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.experiment, nil
}

func (f *fakeStore) RecordMetrics(ctx context.Context, experimentID string, metricDate time.Time, entries []db.MetricEntry, source db.MetricSource, batchID string) (int, error) {
	if f.recordFn != nil {
		return f.recordFn(ctx, experimentID, metricDate, entries, source, batchID)
	}
	return len(entries), nil
}

func (f *fakeStore) AggregateForAllocation(ctx context.Context, experimentID string, windowDays int) ([]db.AggregateRow, error) {
	return f.aggregateRows[windowDays], nil
}

func (f *fakeStore) SaveAllocation(ctx context.Context, record db.AllocationRecord, details []db.AllocationDetail) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	return "allocation-1", nil
}

func (f *fakeStore) GetHistory(ctx context.Context, experimentID string, limit int) ([]db.HistoryEntry, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func (f *fakeStore) Health(ctx context.Context) error { return nil }

var _ db.Store = (*fakeStore)(nil)
