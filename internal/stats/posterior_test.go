package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPosterior_ParametersPositive(t *testing.T) {
	cases := []struct {
		impressions, clicks int64
	}{
		{0, 0},
		{100, 0},
		{100, 100},
		{10000, 320},
	}

	for _, c := range cases {
		p := BuildPosterior(1, 99, c.impressions, c.clicks)
		assert.Greater(t, p.Alpha, 0.0)
		assert.Greater(t, p.Beta, 0.0)
		assert.Equal(t, 1+float64(c.clicks), p.Alpha)
		assert.Equal(t, 99+float64(c.impressions-c.clicks), p.Beta)
	}
}

func TestBuildPosterior_ClicksEqualImpressions(t *testing.T) {
	p := BuildPosterior(1, 99, 500, 500)
	assert.Equal(t, 99.0, p.Beta)
}

func TestSufficient(t *testing.T) {
	assert.True(t, Sufficient(200, 200))
	assert.True(t, Sufficient(201, 200))
	assert.False(t, Sufficient(199, 200))
	assert.False(t, Sufficient(0, 200))
}
