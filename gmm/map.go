package gmm

import (
	"fmt"
	"math"
)

// Adaptation selects how the MAP adaptation coefficient α is computed for a
// component with accumulated responsibility n. Implemented by
// RelevanceAdaptation and FixedAdaptation.
type Adaptation interface {
	alpha(n float64) float64
	validate() error
}

// RelevanceAdaptation uses α = n / (n + Factor).
type RelevanceAdaptation struct {
	Factor float64
}

func (a RelevanceAdaptation) alpha(n float64) float64 {
	if a.Factor == 0 {
		return 1
	}
	return n / (n + a.Factor)
}

func (a RelevanceAdaptation) validate() error {
	if a.Factor < 0 || math.IsNaN(a.Factor) {
		return fmt.Errorf("%w: relevance factor %g", ErrInvalidConfig, a.Factor)
	}
	return nil
}

// FixedAdaptation uses the same α for every component.
type FixedAdaptation struct {
	Alpha float64
}

func (a FixedAdaptation) alpha(float64) float64 { return a.Alpha }

func (a FixedAdaptation) validate() error {
	if !(a.Alpha >= 0 && a.Alpha <= 1) {
		return fmt.Errorf("%w: alpha %g not in [0,1]", ErrInvalidConfig, a.Alpha)
	}
	return nil
}

// MAPTrainer adapts a GMM towards training data starting from a prior GMM.
type MAPTrainer struct {
	Trainer
	Adaptation Adaptation

	prior *GMM
}

// NewMAPTrainer creates a MAP strategy with the given adaptation policy.
func NewMAPTrainer(cfg TrainerConfig, adapt Adaptation) (*MAPTrainer, error) {
	if adapt == nil {
		return nil, fmt.Errorf("%w: nil adaptation", ErrInvalidConfig)
	}
	if err := adapt.validate(); err != nil {
		return nil, err
	}
	return &MAPTrainer{Trainer: Trainer{Config: cfg}, Adaptation: adapt}, nil
}

// SetPriorGMM attaches the prior. It fails when the prior's shape differs
// from a previously attached one; the machine shape is checked in Initialize.
func (t *MAPTrainer) SetPriorGMM(prior *GMM) error {
	if prior == nil {
		return ErrNoPrior
	}
	if t.prior != nil {
		if err := t.prior.SameShape(prior); err != nil {
			return err
		}
	}
	t.prior = prior
	return nil
}

// PriorGMM returns the attached prior, or nil.
func (t *MAPTrainer) PriorGMM() *GMM { return t.prior }

// Initialize copies the prior parameters into g.
func (t *MAPTrainer) Initialize(g *GMM, data [][]float64) error {
	if t.prior == nil {
		return ErrNoPrior
	}
	if err := g.SameShape(t.prior); err != nil {
		return fmt.Errorf("prior: %w", err)
	}
	if err := t.Trainer.Initialize(g, data); err != nil {
		return err
	}
	return g.CopyFrom(t.prior)
}

// MStep interpolates between the statistics of the last E-step and the prior.
func (t *MAPTrainer) MStep(g *GMM, data [][]float64) error {
	if t.prior == nil {
		return ErrNoPrior
	}
	s := t.stats
	if s == nil {
		return errMStepBeforeEStep
	}
	if err := s.Validate(g.NumComponents(), g.Dim); err != nil {
		return err
	}
	total := float64(s.T)

	if t.Config.UpdateWeights {
		sum := 0.0
		for i := range g.Components {
			a := t.Adaptation.alpha(s.N[i])
			w := a*s.N[i]/total + (1-a)*t.prior.Components[i].Weight
			g.Components[i].Weight = w
			sum += w
		}
		for i := range g.Components {
			g.Components[i].Weight /= sum
		}
	}

	for i := range g.Components {
		c := &g.Components[i]
		p := &t.prior.Components[i]
		n := s.N[i]
		if n < t.Config.ResponsibilityThreshold {
			if t.Config.UpdateMeans {
				copy(c.Mean, p.Mean)
			}
			if t.Config.UpdateVariances {
				copy(c.Variance, p.Variance)
			}
			continue
		}
		a := t.Adaptation.alpha(n)
		if t.Config.UpdateMeans {
			for d := range c.Mean {
				c.Mean[d] = a*s.SumPx[i][d]/n + (1-a)*p.Mean[d]
			}
		}
		if t.Config.UpdateVariances {
			for d := range c.Variance {
				v := a*s.SumPxx[i][d]/n + (1-a)*(p.Variance[d]+p.Mean[d]*p.Mean[d]) - c.Mean[d]*c.Mean[d]
				if v < g.VarianceFloor {
					v = g.VarianceFloor
				}
				c.Variance[d] = v
			}
		}
	}
	g.Precompute()
	return nil
}
