package gmm

// MLTrainer re-estimates a GMM by maximum likelihood.
type MLTrainer struct {
	Trainer
}

// NewMLTrainer creates a maximum-likelihood strategy.
func NewMLTrainer(cfg TrainerConfig) *MLTrainer {
	return &MLTrainer{Trainer: Trainer{Config: cfg}}
}

// MStep updates g from the statistics of the last E-step.
func (t *MLTrainer) MStep(g *GMM, data [][]float64) error {
	s := t.stats
	if s == nil {
		return errMStepBeforeEStep
	}
	if err := s.Validate(g.NumComponents(), g.Dim); err != nil {
		return err
	}
	total := float64(s.T)
	for i := range g.Components {
		c := &g.Components[i]
		n := s.N[i]
		if t.Config.UpdateWeights {
			c.Weight = n / total
		}
		if n < t.Config.ResponsibilityThreshold {
			continue
		}
		if t.Config.UpdateMeans {
			for d := range c.Mean {
				c.Mean[d] = s.SumPx[i][d] / n
			}
		}
		if t.Config.UpdateVariances {
			for d := range c.Variance {
				v := s.SumPxx[i][d]/n - c.Mean[d]*c.Mean[d]
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
