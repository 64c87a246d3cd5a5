package mcts

import (
	"math"
	"math/rand"
)

// rootNoiseAlpha and rootNoiseEps are the spec.md §4.10 Dirichlet
// root-exploration parameters.
const (
	rootNoiseAlpha       = 0.3
	rootNoiseEps         = 0.25
	rootNoiseMoveCeiling = 20
)

// gammaSample draws from Gamma(alpha, 1) via Marsaglia-Tsang for
// alpha >= 1, recursing on alpha+1 and correcting by U^(1/alpha) for
// alpha < 1, per spec.md §4.10.
func gammaSample(rng *rand.Rand, alpha float64) float64 {
	if alpha < 1 {
		u := rng.Float64()
		return gammaSample(rng, alpha+1) * math.Pow(u, 1/alpha)
	}

	d := alpha - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// dirichletSample draws an m-length sample from Dirichlet(alpha, ..., alpha).
func dirichletSample(rng *rand.Rand, alpha float64, m int) []float64 {
	samples := make([]float64, m)
	var sum float64
	for i := range samples {
		samples[i] = gammaSample(rng, alpha)
		sum += samples[i]
	}
	if sum == 0 {
		sum = 1
	}
	for i := range samples {
		samples[i] /= sum
	}
	return samples
}
