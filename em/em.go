// Package em implements a generic expectation-maximisation driver. Model
// specific behaviour is supplied by a Strategy.
package em

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/ieee0824/voiceprint-go/internal/mathutil"
)

var (
	// ErrNonFinite is returned when training produces a NaN or infinite value.
	ErrNonFinite = errors.New("em: non-finite value")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("em: invalid config")
)

// Strategy supplies the model-specific steps of an EM run over machine M
// and sampler S.
type Strategy[M any, S any] interface {
	Initialize(m M, data S) error
	EStep(m M, data S) error
	MStep(m M, data S) error
	// ComputeLikelihood returns the average log-likelihood of the last E-step.
	ComputeLikelihood(m M) float64
	Finalize(m M, data S) error
}

// Config holds EM iteration parameters.
type Config struct {
	ConvergenceThreshold float64 // relative likelihood change that stops training
	MaxIterations        int     // 0 = unbounded
	ComputeLikelihood    bool    // disable to run a fixed number of iterations
}

// DefaultConfig returns the default EM parameters.
func DefaultConfig() Config {
	return Config{
		ConvergenceThreshold: 0.001,
		MaxIterations:        10,
		ComputeLikelihood:    true,
	}
}

// Validate rejects negative limits and a configuration that can never stop:
// an unbounded iteration count with the likelihood check disabled.
func (c Config) Validate() error {
	if c.ConvergenceThreshold < 0 || math.IsNaN(c.ConvergenceThreshold) {
		return fmt.Errorf("%w: threshold %g", ErrInvalidConfig, c.ConvergenceThreshold)
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("%w: max iterations %d", ErrInvalidConfig, c.MaxIterations)
	}
	if c.MaxIterations == 0 && !c.ComputeLikelihood {
		return fmt.Errorf("%w: unbounded iterations without likelihood computation", ErrInvalidConfig)
	}
	return nil
}

// Trainer drives a Strategy until convergence or the iteration limit.
type Trainer[M any, S any] struct {
	Strategy Strategy[M, S]
	Config   Config
	Logger   *slog.Logger

	history []float64
}

// New creates a Trainer for the given strategy.
func New[M any, S any](s Strategy[M, S], cfg Config) *Trainer[M, S] {
	return &Trainer[M, S]{Strategy: s, Config: cfg}
}

func (t *Trainer[M, S]) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// History returns the average likelihood recorded after each iteration of
// the last Train call. It is empty when likelihood computation is disabled.
func (t *Trainer[M, S]) History() []float64 {
	out := make([]float64, len(t.history))
	copy(out, t.history)
	return out
}

// Train runs EM on m. Reaching MaxIterations without converging is not an error.
func (t *Trainer[M, S]) Train(m M, data S) error {
	if t.Strategy == nil {
		return errors.New("em: no strategy")
	}
	if err := t.Config.Validate(); err != nil {
		return err
	}
	log := t.logger()
	t.history = t.history[:0]

	if err := t.Strategy.Initialize(m, data); err != nil {
		return fmt.Errorf("em: initialize: %w", err)
	}
	if err := t.Strategy.EStep(m, data); err != nil {
		return fmt.Errorf("em: e-step: %w", err)
	}

	prev := -math.MaxFloat64
	for iter := 0; ; iter++ {
		if err := t.Strategy.MStep(m, data); err != nil {
			return fmt.Errorf("em: m-step %d: %w", iter, err)
		}
		if err := t.Strategy.EStep(m, data); err != nil {
			return fmt.Errorf("em: e-step %d: %w", iter, err)
		}

		if t.Config.ComputeLikelihood {
			cur := t.Strategy.ComputeLikelihood(m)
			if !mathutil.IsFinite(cur) {
				return fmt.Errorf("%w: likelihood %v at iteration %d", ErrNonFinite, cur, iter)
			}
			t.history = append(t.history, cur)
			log.Debug("em iteration", "iteration", iter, "previous", prev, "likelihood", cur)
			if converged(prev, cur, t.Config.ConvergenceThreshold) {
				log.Info("em converged", "iterations", iter+1, "likelihood", cur)
				break
			}
			prev = cur
		}

		if t.Config.MaxIterations > 0 && iter+1 >= t.Config.MaxIterations {
			log.Info("em reached max iterations", "iterations", iter+1)
			break
		}
	}

	if err := t.Strategy.Finalize(m, data); err != nil {
		return fmt.Errorf("em: finalize: %w", err)
	}
	return nil
}

func converged(prev, cur, threshold float64) bool {
	if prev == 0 {
		return math.Abs(prev-cur) <= threshold
	}
	return math.Abs((prev-cur)/prev) <= threshold
}
