package stats

import (
	"math"
	"math/rand"
)

// gammaSample draws one sample from Gamma(shape, 1) using the
// Marsaglia-Tsang method. shape must be > 0.
func gammaSample(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		// Boost shape by one and correct with a uniform draw, per
		// Marsaglia-Tsang's treatment of the shape<1 case.
		u := rng.Float64()
		return gammaSample(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)

	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v

		u := rng.Float64()
		x2 := x * x

		if u < 1-0.0331*x2*x2 {
			return d * v
		}
		if math.Log(u) < 0.5*x2+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// betaSample draws one sample from Beta(alpha, beta) by combining two
// independent Gamma draws: X/(X+Y) where X~Gamma(alpha,1), Y~Gamma(beta,1).
func betaSample(rng *rand.Rand, alpha, beta float64) float64 {
	x := gammaSample(rng, alpha)
	y := gammaSample(rng, beta)
	return x / (x + y)
}
