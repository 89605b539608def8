package stats

import (
	"math"
	"math/rand"
	"sort"
)

// Arm is one variant's posterior going into the Thompson sampler. Position
// is the arm's index in the caller's input order; Sample does not read it
// (ties go to the earlier slice index), SortArmsByPosition restores it.
type Arm struct {
	Name     string
	Alpha    float64
	Beta     float64
	Position int
}

// Allocation is one arm's resulting traffic share, rounded to two decimal
// places.
type Allocation struct {
	Name       string
	Percentage float64
}

// Sample runs Monte Carlo Thompson Sampling over arms using rng (which the
// caller must seed deterministically for reproducibility) and samples draws
// per arm. It returns allocations in the same order as the input arms.
//
// Empty input returns an empty result. Ties on the per-draw argmax go to
// the arm earlier in the slice.
func Sample(rng *rand.Rand, arms []Arm, samples int) []Allocation {
	if len(arms) == 0 {
		return nil
	}
	if len(arms) == 1 {
		return []Allocation{{Name: arms[0].Name, Percentage: 100.0}}
	}

	wins := make([]int, len(arms))
	for i := 0; i < samples; i++ {
		bestIdx := 0
		bestVal := -1.0
		for j, arm := range arms {
			draw := betaSample(rng, arm.Alpha, arm.Beta)
			if draw > bestVal {
				bestVal = draw
				bestIdx = j
			}
		}
		wins[bestIdx]++
	}

	allocations := make([]Allocation, len(arms))
	for i, arm := range arms {
		pct := round2(float64(wins[i]) / float64(samples) * 100)
		allocations[i] = Allocation{Name: arm.Name, Percentage: pct}
	}

	fixRoundingResidue(allocations)
	return allocations
}

// round2 rounds to two decimal places using round-half-away-from-zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// fixRoundingResidue adjusts the currently-largest allocation by the
// residue so the set sums to exactly 100.00, per the sampler contract.
func fixRoundingResidue(allocations []Allocation) {
	if len(allocations) == 0 {
		return
	}

	sum := 0.0
	for _, a := range allocations {
		sum += a.Percentage
	}
	residue := round2(100.0 - sum)
	if residue == 0 {
		return
	}

	largest := 0
	for i := 1; i < len(allocations); i++ {
		if allocations[i].Percentage > allocations[largest].Percentage {
			largest = i
		}
	}
	allocations[largest].Percentage = round2(allocations[largest].Percentage + residue)
}

// UniformAllocation returns an even split across names when there is no
// data to drive sampling (e.g. total impressions across all arms is zero),
// rounded to two decimals with the largest bucket absorbing the residue.
func UniformAllocation(names []string) []Allocation {
	if len(names) == 0 {
		return nil
	}
	share := round2(100.0 / float64(len(names)))
	allocations := make([]Allocation, len(names))
	for i, name := range names {
		allocations[i] = Allocation{Name: name, Percentage: share}
	}
	fixRoundingResidue(allocations)
	return allocations
}

// SortArmsByPosition stably sorts arms by Arm.Position, restoring the
// caller's input order and with it Sample's tie-break order.
func SortArmsByPosition(arms []Arm) {
	sort.SliceStable(arms, func(i, j int) bool {
		return arms[i].Position < arms[j].Position
	})
}
