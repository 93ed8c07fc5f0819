package gmm

import (
	"errors"
	"fmt"
	"math"
)

var errMStepBeforeEStep = errors.New("gmm: m-step before e-step")

// TrainerConfig selects which GMM parameters an M-step re-estimates.
type TrainerConfig struct {
	UpdateMeans     bool
	UpdateVariances bool
	UpdateWeights   bool
	// Components whose accumulated responsibility is below this keep their
	// previous (ML) or prior (MAP) mean and variance.
	ResponsibilityThreshold float64
}

// DefaultTrainerConfig updates every parameter and uses machine epsilon as
// the responsibility threshold.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		UpdateMeans:             true,
		UpdateVariances:         true,
		UpdateWeights:           true,
		ResponsibilityThreshold: math.Nextafter(1, 2) - 1,
	}
}

func (c TrainerConfig) validate() error {
	if c.ResponsibilityThreshold < 0 || math.IsNaN(c.ResponsibilityThreshold) {
		return fmt.Errorf("%w: responsibility threshold %g", ErrInvalidConfig, c.ResponsibilityThreshold)
	}
	return nil
}

// Trainer implements the E-step shared by the ML and MAP strategies: it
// accumulates sufficient statistics of the training frames under the
// current machine.
type Trainer struct {
	Config TrainerConfig

	stats *Stats
	flat  []float64
	ws    *BatchWorkspace
}

// Stats returns the statistics accumulated by the last E-step.
func (t *Trainer) Stats() *Stats { return t.stats }

// Initialize validates the frames and sizes the accumulators for g.
func (t *Trainer) Initialize(g *GMM, data [][]float64) error {
	if err := t.Config.validate(); err != nil {
		return err
	}
	if len(data) == 0 {
		return ErrNoData
	}
	for i, x := range data {
		if len(x) != g.Dim {
			return fmt.Errorf("%w: frame %d has dimension %d, want %d", ErrDimensionMismatch, i, len(x), g.Dim)
		}
	}
	if t.stats == nil || t.stats.Validate(g.NumComponents(), g.Dim) != nil {
		t.stats = NewStats(g.NumComponents(), g.Dim)
	}
	if t.ws == nil {
		t.ws = NewBatchWorkspace(len(data), g.Dim, g.NumComponents())
	}
	return nil
}

// EStep recomputes responsibilities and statistics for all frames.
func (t *Trainer) EStep(g *GMM, data [][]float64) error {
	if t.stats == nil {
		return errors.New("gmm: e-step before initialize")
	}
	t.stats.Init()
	t.flat = t.flat[:0]
	for i, x := range data {
		if len(x) != g.Dim {
			return fmt.Errorf("%w: frame %d has dimension %d, want %d", ErrDimensionMismatch, i, len(x), g.Dim)
		}
		t.flat = append(t.flat, x...)
	}
	g.AccStatisticsBatch(t.flat, len(data), t.stats, t.ws)
	return nil
}

// ComputeLikelihood returns the average frame log-likelihood of the last E-step.
func (t *Trainer) ComputeLikelihood(g *GMM) float64 {
	if t.stats == nil || t.stats.T == 0 {
		return math.NaN()
	}
	return t.stats.LogLikelihood / float64(t.stats.T)
}

// Finalize is a no-op.
func (t *Trainer) Finalize(g *GMM, data [][]float64) error { return nil }
