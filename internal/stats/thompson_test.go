package stats

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(int64(seed)))
}

func TestSample_EmptyInput(t *testing.T) {
	assert.Nil(t, Sample(newRNG(1), nil, 1000))
}

func TestSample_SingleArmIsAllIn(t *testing.T) {
	allocations := Sample(newRNG(1), []Arm{{Name: "only", Alpha: 1, Beta: 99}}, 1000)
	require.Len(t, allocations, 1)
	assert.Equal(t, 100.0, allocations[0].Percentage)
}

func TestSample_SumsToExactly100(t *testing.T) {
	arms := []Arm{
		{Name: "control", Alpha: 101, Beta: 9901, Position: 0},
		{Name: "treatment", Alpha: 501, Beta: 9501, Position: 1},
		{Name: "third", Alpha: 50, Beta: 50, Position: 2},
	}
	allocations := Sample(newRNG(42), arms, 10000)
	require.Len(t, allocations, 3)

	sum := 0.0
	for _, a := range allocations {
		sum += a.Percentage
	}
	assert.InDelta(t, 100.0, sum, 1e-9)
}

func TestSample_Deterministic(t *testing.T) {
	arms := []Arm{
		{Name: "control", Alpha: 101, Beta: 9901},
		{Name: "treatment", Alpha: 501, Beta: 9501},
	}
	a1 := Sample(newRNG(777), arms, 10000)
	a2 := Sample(newRNG(777), arms, 10000)
	assert.Equal(t, a1, a2)
}

func TestSample_ClearWinner(t *testing.T) {
	// control: n=10000 k=100 (1%); treatment: n=10000 k=500 (5%)
	arms := []Arm{
		BuildArm("control", 1, 99, 10000, 100, 0),
		BuildArm("treatment", 1, 99, 10000, 500, 1),
	}
	allocations := Sample(newRNG(99), arms, 10000)

	var control, treatment float64
	for _, a := range allocations {
		switch a.Name {
		case "control":
			control = a.Percentage
		case "treatment":
			treatment = a.Percentage
		}
	}
	assert.Greater(t, treatment, 95.0)
	assert.Less(t, control, 5.0)
}

func TestSample_Tie(t *testing.T) {
	arms := []Arm{
		BuildArm("a", 1, 99, 10000, 300, 0),
		BuildArm("b", 1, 99, 10000, 300, 1),
	}
	allocations := Sample(newRNG(5), arms, 10000)
	for _, a := range allocations {
		assert.GreaterOrEqual(t, a.Percentage, 40.0)
		assert.LessOrEqual(t, a.Percentage, 60.0)
	}
}

func TestUniformAllocation_SumsTo100(t *testing.T) {
	names := []string{"a", "b", "c"}
	allocations := UniformAllocation(names)
	sum := 0.0
	for _, a := range allocations {
		sum += a.Percentage
	}
	assert.InDelta(t, 100.0, sum, 1e-9)
}

func TestSample_FallbackConvergesToOneOverN(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e"}
	arms := make([]Arm, len(names))
	for i, n := range names {
		arms[i] = Arm{Name: n, Alpha: 1, Beta: 99, Position: i}
	}
	allocations := Sample(newRNG(123), arms, 10000)
	expected := 100.0 / float64(len(names))
	for _, a := range allocations {
		assert.True(t, math.Abs(a.Percentage-expected) <= 5.0)
	}
}

// BuildArm is a small test helper mirroring how the orchestrator derives
// arms from posteriors.
func BuildArm(name string, priorAlpha, priorBeta float64, impressions, clicks int64, position int) Arm {
	p := BuildPosterior(priorAlpha, priorBeta, impressions, clicks)
	return Arm{Name: name, Alpha: p.Alpha, Beta: p.Beta, Position: position}
}
