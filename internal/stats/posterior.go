package stats

// Posterior holds the Beta distribution parameters for a variant's CTR
// after incorporating observed impressions and clicks.
type Posterior struct {
	Alpha float64
	Beta  float64
}

// BuildPosterior constructs the Beta-Bernoulli posterior Beta(priorAlpha+k,
// priorBeta+n-k) for n impressions and k clicks. Both parameters are
// strictly positive whenever the prior is, since k <= n by contract.
func BuildPosterior(priorAlpha, priorBeta float64, impressions, clicks int64) Posterior {
	return Posterior{
		Alpha: priorAlpha + float64(clicks),
		Beta:  priorBeta + float64(impressions-clicks),
	}
}

// Sufficient reports whether impressions meets the minimum sample
// threshold for a posterior-driven allocation.
func Sufficient(impressions, minImpressions int64) bool {
	return impressions >= minImpressions
}
