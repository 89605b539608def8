package allocator

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/trafficbandit/allocator/internal/db"
	"github.com/trafficbandit/allocator/internal/metrics"
	"github.com/trafficbandit/allocator/internal/stats"
)

// Config holds the tunable constants of the Bayesian allocation algorithm.
// Changing PriorAlpha, PriorBeta, or ThompsonSamples changes the algorithm
// and should accompany an AlgorithmVersion bump.
type Config struct {
	DefaultWindowDays int
	MaxWindowDays     int
	MinImpressions    int64
	ThompsonSamples   int
	PriorAlpha        float64
	PriorBeta         float64
	AlgorithmVersion  string
}

// DefaultConfig returns the algorithm defaults from spec.md §6.
func DefaultConfig() Config {
	return Config{
		DefaultWindowDays: 14,
		MaxWindowDays:     30,
		MinImpressions:    200,
		ThompsonSamples:   10000,
		PriorAlpha:        1,
		PriorBeta:         99,
		AlgorithmVersion:  "1.0.0",
	}
}

// Orchestrator computes allocations against a Store, holding no mutable
// state of its own — every randomness source is constructed fresh per call.
type Orchestrator struct {
	store  db.Store
	config Config
}

// New creates an Orchestrator bound to store with the given algorithm
// configuration.
func New(store db.Store, config Config) *Orchestrator {
	return &Orchestrator{store: store, config: config}
}

// Allocate runs the full allocation algorithm for experimentID. windowDays
// of 0 means "use the configured default."
func (o *Orchestrator) Allocate(ctx context.Context, experimentID string, windowDays int) (*AllocationResponse, error) {
	start := time.Now()

	if windowDays <= 0 {
		windowDays = o.config.DefaultWindowDays
	}

	experiment, err := o.store.GetExperiment(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	rows, err := o.store.AggregateForAllocation(ctx, experiment.ID, windowDays)
	if err != nil {
		return nil, err
	}

	actualWindow := windowDays
	windowExpanded := false
	if !allSufficient(rows, o.config.MinImpressions) && windowDays < o.config.MaxWindowDays {
		rows, err = o.store.AggregateForAllocation(ctx, experiment.ID, o.config.MaxWindowDays)
		if err != nil {
			return nil, err
		}
		actualWindow = o.config.MaxWindowDays
		windowExpanded = true
	}

	usedFallback := !allSufficient(rows, o.config.MinImpressions)

	arms := make([]stats.Arm, len(rows))
	for i, r := range rows {
		var posterior stats.Posterior
		if usedFallback {
			posterior = stats.Posterior{Alpha: o.config.PriorAlpha, Beta: o.config.PriorBeta}
		} else {
			posterior = stats.BuildPosterior(o.config.PriorAlpha, o.config.PriorBeta, r.Impressions, r.Clicks)
		}
		arms[i] = stats.Arm{Name: r.VariantID, Alpha: posterior.Alpha, Beta: posterior.Beta, Position: i}
	}

	today := time.Now().UTC()
	seed := stats.DeterministicSeed(experiment.ID, today)
	rng := rand.New(rand.NewSource(int64(seed)))

	var sampled []stats.Allocation
	outcome := metrics.OutcomeSampled
	if totalImpressions(rows) == 0 {
		names := make([]string, len(rows))
		for i, r := range rows {
			names[i] = r.VariantID
		}
		sampled = stats.UniformAllocation(names)
		outcome = metrics.OutcomeUniform
	} else {
		sampled = stats.Sample(rng, arms, o.config.ThompsonSamples)
		if usedFallback {
			outcome = metrics.OutcomeFallback
		}
	}

	response := o.buildResponse(experiment, rows, sampled, actualWindow, usedFallback)

	o.persist(ctx, experiment.ID, rows, sampled, actualWindow, usedFallback, seed)

	metrics.RecordAllocation(outcome, float64(time.Since(start).Milliseconds()), windowExpanded)

	return response, nil
}

func allSufficient(rows []db.AggregateRow, minImpressions int64) bool {
	for _, r := range rows {
		if !stats.Sufficient(r.Impressions, minImpressions) {
			return false
		}
	}
	return true
}

func totalImpressions(rows []db.AggregateRow) int64 {
	var total int64
	for _, r := range rows {
		total += r.Impressions
	}
	return total
}

func (o *Orchestrator) buildResponse(experiment *db.Experiment, rows []db.AggregateRow, sampled []stats.Allocation, windowDays int, usedFallback bool) *AllocationResponse {
	pctByVariant := make(map[string]float64, len(sampled))
	for _, a := range sampled {
		pctByVariant[a.Name] = a.Percentage
	}

	allocations := make([]VariantAllocation, len(rows))
	for i, r := range rows {
		var ctr float64
		if r.Impressions > 0 {
			ctr = float64(r.Clicks) / float64(r.Impressions)
		}

		var ci *ConfidenceInterval
		if r.CTRCILower != nil && r.CTRCIUpper != nil {
			ci = &ConfidenceInterval{Lower: *r.CTRCILower, Upper: *r.CTRCIUpper}
		}

		allocations[i] = VariantAllocation{
			VariantName:          r.VariantName,
			IsControl:            r.IsControl,
			AllocationPercentage: pctByVariant[r.VariantID],
			Metrics: VariantMetrics{
				Impressions: r.Impressions,
				Clicks:      r.Clicks,
				CTR:         ctr,
				CTRCI:       ci,
				Sessions:    r.Sessions,
				Revenue:     r.Revenue,
			},
		}
	}

	sortAllocations(allocations)

	algorithm := AlgorithmName
	if usedFallback {
		algorithm += AlgorithmFallbackSuffix
	}

	return &AllocationResponse{
		ExperimentID:   experiment.ID,
		ExperimentName: experiment.Name,
		ComputedAt:     time.Now().UTC(),
		Algorithm:      algorithm,
		WindowDays:     windowDays,
		Allocations:    allocations,
	}
}

// sortAllocations orders entries by (is_control desc, allocation_percentage
// desc), per spec.md §4.3 step 8.
func sortAllocations(allocations []VariantAllocation) {
	for i := 1; i < len(allocations); i++ {
		j := i
		for j > 0 && lessAllocation(allocations[j], allocations[j-1]) {
			allocations[j], allocations[j-1] = allocations[j-1], allocations[j]
			j--
		}
	}
}

func lessAllocation(a, b VariantAllocation) bool {
	if a.IsControl != b.IsControl {
		return a.IsControl
	}
	return a.AllocationPercentage > b.AllocationPercentage
}

// persist writes the AllocationRecord and its details. Failure is logged,
// not returned, per spec.md §4.3 step 9.
func (o *Orchestrator) persist(ctx context.Context, experimentID string, rows []db.AggregateRow, sampled []stats.Allocation, windowDays int, usedFallback bool, seed uint64) {
	pctByVariant := make(map[string]float64, len(sampled))
	for _, a := range sampled {
		pctByVariant[a.Name] = a.Percentage
	}

	var totalImpressions, totalClicks int64
	details := make([]db.AllocationDetail, len(rows))
	for i, r := range rows {
		totalImpressions += r.Impressions
		totalClicks += r.Clicks

		var ctr float64
		if r.Impressions > 0 {
			ctr = float64(r.Clicks) / float64(r.Impressions)
		}

		var alpha, beta float64
		if usedFallback {
			alpha, beta = o.config.PriorAlpha, o.config.PriorBeta
		} else {
			posterior := stats.BuildPosterior(o.config.PriorAlpha, o.config.PriorBeta, r.Impressions, r.Clicks)
			alpha, beta = posterior.Alpha, posterior.Beta
		}

		details[i] = db.AllocationDetail{
			VariantID:            r.VariantID,
			VariantName:          r.VariantName,
			IsControl:            r.IsControl,
			AllocationPercentage: pctByVariant[r.VariantID],
			Impressions:          r.Impressions,
			Clicks:               r.Clicks,
			CTR:                  ctr,
			BetaAlpha:            alpha,
			BetaBeta:             beta,
			CTRCILower:           r.CTRCILower,
			CTRCIUpper:           r.CTRCIUpper,
		}
	}

	record := db.AllocationRecord{
		ExperimentID:     experimentID,
		WindowDays:       windowDays,
		AlgorithmName:    AlgorithmName,
		AlgorithmVersion: o.config.AlgorithmVersion,
		Seed:             seed,
		UsedFallback:     usedFallback,
		TotalImpressions: totalImpressions,
		TotalClicks:      totalClicks,
	}

	if _, err := o.store.SaveAllocation(ctx, record, details); err != nil {
		log.Error().Err(err).Str("experiment_id", experimentID).Msg("failed to persist allocation record")
		metrics.RecordAllocationPersistFailure()
	}
}
