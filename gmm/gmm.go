package gmm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ieee0824/voiceprint-go/internal/mathutil"
)

// DefaultVarianceFloor is the smallest variance a component may take.
const DefaultVarianceFloor = 1e-5

// GMM is a Gaussian Mixture Model with diagonal covariance.
type GMM struct {
	Components []Gaussian
	Dim        int

	// VarianceFloor is applied whenever variances are set or re-estimated.
	VarianceFloor float64

	// Packed caches for batch scoring. Built by Precompute().
	packedInvVar     []float64 // [k*dim]
	packedMeanInvVar []float64 // [k*dim] mean/variance
	packedBias       []float64 // [k] logWeight - logNormConst - 0.5*Σ mean²/variance
}

// New creates a GMM with k components of dimension dim: zero means, unit
// variances and uniform weights.
func New(k, dim int) *GMM {
	g := &GMM{
		Components:    make([]Gaussian, k),
		Dim:           dim,
		VarianceFloor: DefaultVarianceFloor,
	}
	w := 1.0 / float64(k)
	for i := range g.Components {
		g.Components[i] = Gaussian{
			Mean:     make([]float64, dim),
			Variance: ones(dim),
			Weight:   w,
		}
	}
	g.Precompute()
	return g
}

// NewWithParams creates a GMM from given parameters. The slices are copied.
func NewWithParams(means, variances [][]float64, weights []float64) (*GMM, error) {
	k := len(means)
	if k == 0 {
		return nil, fmt.Errorf("%w: no components", ErrDimensionMismatch)
	}
	if len(variances) != k || len(weights) != k {
		return nil, fmt.Errorf("%w: %d means, %d variances, %d weights",
			ErrDimensionMismatch, k, len(variances), len(weights))
	}
	dim := len(means[0])
	g := &GMM{
		Components:    make([]Gaussian, k),
		Dim:           dim,
		VarianceFloor: DefaultVarianceFloor,
	}
	for i := range g.Components {
		if len(means[i]) != dim || len(variances[i]) != dim {
			return nil, fmt.Errorf("%w: component %d has dimension %d/%d, want %d",
				ErrDimensionMismatch, i, len(means[i]), len(variances[i]), dim)
		}
		g.Components[i] = Gaussian{
			Mean:     mathutil.CloneVec(means[i]),
			Variance: mathutil.CloneVec(variances[i]),
			Weight:   weights[i],
		}
	}
	g.applyVarianceFloor()
	g.Precompute()
	return g, nil
}

func ones(n int) []float64 {
	v := make([]float64, n)
	mathutil.FillVec(v, 1)
	return v
}

// NumComponents returns the number of Gaussian components.
func (g *GMM) NumComponents() int { return len(g.Components) }

// SupervectorLen returns NumComponents()*Dim.
func (g *GMM) SupervectorLen() int { return len(g.Components) * g.Dim }

// Precompute rebuilds all per-component and packed caches.
// Call after any direct mutation of Components.
func (g *GMM) Precompute() {
	k := len(g.Components)
	dim := g.Dim
	g.packedInvVar = resize(g.packedInvVar, k*dim)
	g.packedMeanInvVar = resize(g.packedMeanInvVar, k*dim)
	g.packedBias = resize(g.packedBias, k)
	for i := range g.Components {
		c := &g.Components[i]
		c.Precompute()
		off := i * dim
		quad := 0.0
		for d := 0; d < dim; d++ {
			iv := c.invVariance[d]
			g.packedInvVar[off+d] = iv
			g.packedMeanInvVar[off+d] = c.Mean[d] * iv
			quad += c.Mean[d] * c.Mean[d] * iv
		}
		g.packedBias[i] = c.logWeight - c.logNormConst - 0.5*quad
	}
}

func resize(v []float64, n int) []float64 {
	if cap(v) < n {
		return make([]float64, n)
	}
	return v[:n]
}

func (g *GMM) applyVarianceFloor() {
	for i := range g.Components {
		for d, v := range g.Components[i].Variance {
			if v < g.VarianceFloor {
				g.Components[i].Variance[d] = g.VarianceFloor
			}
		}
	}
}

// LogProb computes log p(x | GMM) = log Σ_k w_k N(x; μ_k, σ_k).
func (g *GMM) LogProb(x []float64) float64 {
	lp := make([]float64, len(g.Components))
	for i := range g.Components {
		lp[i] = g.Components[i].logWeight + g.Components[i].LogProb(x)
	}
	return logSumExp(lp)
}

// logSumExp is floats.LogSumExp with log(0) for a machine without components.
func logSumExp(lp []float64) float64 {
	if len(lp) == 0 {
		return math.Inf(-1)
	}
	return floats.LogSumExp(lp)
}

// AccStatistics accumulates the zeroth, first and second order statistics
// of a single frame into s and returns the frame log-likelihood.
func (g *GMM) AccStatistics(x []float64, s *Stats) float64 {
	k := len(g.Components)
	lp := make([]float64, k)
	for i := range g.Components {
		lp[i] = g.Components[i].logWeight + g.Components[i].LogProb(x)
	}
	return accumulateFrame(x, lp, s)
}

// accumulateFrame converts weighted component log densities into
// responsibilities and adds the frame to s. lp is overwritten.
func accumulateFrame(x, lp []float64, s *Stats) float64 {
	total := logSumExp(lp)
	for i, l := range lp {
		post := math.Exp(l - total)
		s.N[i] += post
		px := s.SumPx[i]
		pxx := s.SumPxx[i]
		for d, xd := range x {
			scaled := post * xd
			px[d] += scaled
			pxx[d] += scaled * xd
		}
	}
	s.T++
	s.LogLikelihood += total
	return total
}

// Statistics computes the sufficient statistics of a whole session.
func (g *GMM) Statistics(frames [][]float64) (*Stats, error) {
	s := NewStats(len(g.Components), g.Dim)
	if len(frames) == 0 {
		return s, nil
	}
	flat, err := flattenFrames(frames, g.Dim)
	if err != nil {
		return nil, err
	}
	ws := NewBatchWorkspace(len(frames), g.Dim, len(g.Components))
	g.AccStatisticsBatch(flat, len(frames), s, ws)
	return s, nil
}

func flattenFrames(frames [][]float64, dim int) ([]float64, error) {
	flat := make([]float64, 0, len(frames)*dim)
	for t, f := range frames {
		if len(f) != dim {
			return nil, fmt.Errorf("%w: frame %d has dimension %d, want %d",
				ErrDimensionMismatch, t, len(f), dim)
		}
		flat = append(flat, f...)
	}
	return flat, nil
}

// Means returns a copy of the component means.
func (g *GMM) Means() [][]float64 {
	out := make([][]float64, len(g.Components))
	for i := range g.Components {
		out[i] = mathutil.CloneVec(g.Components[i].Mean)
	}
	return out
}

// Variances returns a copy of the component variances.
func (g *GMM) Variances() [][]float64 {
	out := make([][]float64, len(g.Components))
	for i := range g.Components {
		out[i] = mathutil.CloneVec(g.Components[i].Variance)
	}
	return out
}

// Weights returns a copy of the mixture weights.
func (g *GMM) Weights() []float64 {
	out := make([]float64, len(g.Components))
	for i := range g.Components {
		out[i] = g.Components[i].Weight
	}
	return out
}

// SetMeans replaces all component means.
func (g *GMM) SetMeans(means [][]float64) error {
	if err := g.checkShape(means); err != nil {
		return err
	}
	for i := range g.Components {
		copy(g.Components[i].Mean, means[i])
	}
	g.Precompute()
	return nil
}

// SetVariances replaces all component variances, applying the variance floor.
func (g *GMM) SetVariances(variances [][]float64) error {
	if err := g.checkShape(variances); err != nil {
		return err
	}
	for i := range g.Components {
		copy(g.Components[i].Variance, variances[i])
	}
	g.applyVarianceFloor()
	g.Precompute()
	return nil
}

// SetWeights replaces the mixture weights.
func (g *GMM) SetWeights(weights []float64) error {
	if len(weights) != len(g.Components) {
		return fmt.Errorf("%w: %d weights for %d components",
			ErrDimensionMismatch, len(weights), len(g.Components))
	}
	for i := range g.Components {
		g.Components[i].Weight = weights[i]
	}
	g.Precompute()
	return nil
}

func (g *GMM) checkShape(m [][]float64) error {
	if len(m) != len(g.Components) {
		return fmt.Errorf("%w: %d rows for %d components", ErrDimensionMismatch, len(m), len(g.Components))
	}
	for i, row := range m {
		if len(row) != g.Dim {
			return fmt.Errorf("%w: row %d has dimension %d, want %d", ErrDimensionMismatch, i, len(row), g.Dim)
		}
	}
	return nil
}

// MeanSupervector returns the component means concatenated (component-major).
func (g *GMM) MeanSupervector() []float64 {
	out := make([]float64, 0, g.SupervectorLen())
	for i := range g.Components {
		out = append(out, g.Components[i].Mean...)
	}
	return out
}

// VarianceSupervector returns the component variances concatenated (component-major).
func (g *GMM) VarianceSupervector() []float64 {
	out := make([]float64, 0, g.SupervectorLen())
	for i := range g.Components {
		out = append(out, g.Components[i].Variance...)
	}
	return out
}

// SetMeanSupervector sets the means from a component-major supervector.
func (g *GMM) SetMeanSupervector(sv []float64) error {
	if len(sv) != g.SupervectorLen() {
		return fmt.Errorf("%w: supervector length %d, want %d", ErrDimensionMismatch, len(sv), g.SupervectorLen())
	}
	for i := range g.Components {
		copy(g.Components[i].Mean, sv[i*g.Dim:(i+1)*g.Dim])
	}
	g.Precompute()
	return nil
}

// SetVarianceSupervector sets the variances from a component-major supervector.
func (g *GMM) SetVarianceSupervector(sv []float64) error {
	if len(sv) != g.SupervectorLen() {
		return fmt.Errorf("%w: supervector length %d, want %d", ErrDimensionMismatch, len(sv), g.SupervectorLen())
	}
	for i := range g.Components {
		copy(g.Components[i].Variance, sv[i*g.Dim:(i+1)*g.Dim])
	}
	g.applyVarianceFloor()
	g.Precompute()
	return nil
}

// SameShape reports an error unless o has the same number of components and dimension.
func (g *GMM) SameShape(o *GMM) error {
	if len(o.Components) != len(g.Components) || o.Dim != g.Dim {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch,
			len(g.Components), g.Dim, len(o.Components), o.Dim)
	}
	return nil
}

// CopyFrom copies means, variances and weights from o, which must have the same shape.
func (g *GMM) CopyFrom(o *GMM) error {
	if err := g.SameShape(o); err != nil {
		return err
	}
	for i := range g.Components {
		copy(g.Components[i].Mean, o.Components[i].Mean)
		copy(g.Components[i].Variance, o.Components[i].Variance)
		g.Components[i].Weight = o.Components[i].Weight
	}
	g.Precompute()
	return nil
}

// Clone returns a deep copy of g.
func (g *GMM) Clone() *GMM {
	c := &GMM{
		Components:    make([]Gaussian, len(g.Components)),
		Dim:           g.Dim,
		VarianceFloor: g.VarianceFloor,
	}
	for i := range g.Components {
		c.Components[i] = Gaussian{
			Mean:     mathutil.CloneVec(g.Components[i].Mean),
			Variance: mathutil.CloneVec(g.Components[i].Variance),
			Weight:   g.Components[i].Weight,
		}
	}
	c.Precompute()
	return c
}
