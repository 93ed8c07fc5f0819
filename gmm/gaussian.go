package gmm

import "math"

// Gaussian represents a single multivariate Gaussian component with diagonal covariance.
type Gaussian struct {
	Mean     []float64 // [dim]
	Variance []float64 // [dim] diagonal covariance
	Weight   float64   // mixture weight

	// Pre-computed values
	logWeight    float64
	logNormConst float64
	invVariance  []float64 // [dim] 1/Variance, precomputed to avoid division in hot loop
}

// Precompute recalculates cached normalization constants and inverse variances.
// Must be called after updating Mean, Variance, or Weight.
func (g *Gaussian) Precompute() {
	dim := len(g.Mean)
	g.logNormConst = float64(dim)/2.0*math.Log(2*math.Pi) + 0.5*sumLog(g.Variance)
	if cap(g.invVariance) < dim {
		g.invVariance = make([]float64, dim)
	}
	g.invVariance = g.invVariance[:dim]
	for i := range g.Variance {
		g.invVariance[i] = 1.0 / g.Variance[i]
	}
	g.logWeight = math.Log(g.Weight)
}

// LogProb computes the log density of observation x under this Gaussian,
// excluding the mixture weight.
func (g *Gaussian) LogProb(x []float64) float64 {
	maha := 0.0
	for i, xi := range x {
		diff := xi - g.Mean[i]
		maha += diff * diff * g.invVariance[i]
	}
	return -0.5*maha - g.logNormConst
}

// LogWeight returns the cached log mixture weight.
func (g *Gaussian) LogWeight() float64 { return g.logWeight }

func sumLog(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += math.Log(x)
	}
	return s
}
