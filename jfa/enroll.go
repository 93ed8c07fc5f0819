package jfa

import (
	"errors"
	"fmt"

	"github.com/ieee0824/voiceprint-go/gmm"
	"github.com/ieee0824/voiceprint-go/internal/mathutil"
)

// Trainer enrols speakers against a trained BaseMachine.
type Trainer struct {
	base *BaseTrainer
}

// NewTrainer creates an enrolment trainer. Enrolment replaces the factors
// and sum statistics held by base.
func NewTrainer(base *BaseTrainer) *Trainer {
	return &Trainer{base: base}
}

// Enroll estimates the speaker factors y and z of one speaker from its
// sessions and stores them in m. U, V and d are not modified.
func (t *Trainer) Enroll(m *Machine, sessions []*gmm.Stats, nIter int) error {
	if m == nil || m.Base != t.base.Machine() {
		return errors.New("jfa: machine does not share the trainer's base machine")
	}
	if nIter < 0 {
		return fmt.Errorf("jfa: negative iteration count %d", nIter)
	}
	ds, err := NewDataset([][]*gmm.Stats{sessions})
	if err != nil {
		return err
	}
	b := t.base
	if err := b.InitFactors(ds); err != nil {
		return err
	}
	if err := b.PrecomputeSumStatistics(ds); err != nil {
		return err
	}
	for iter := 0; iter < nIter; iter++ {
		if err := b.UpdateY(ds); err != nil {
			return fmt.Errorf("jfa: enrol iteration %d update y: %w", iter, err)
		}
		if err := b.UpdateX(ds); err != nil {
			return fmt.Errorf("jfa: enrol iteration %d update x: %w", iter, err)
		}
		if err := b.UpdateZ(ds); err != nil {
			return fmt.Errorf("jfa: enrol iteration %d update z: %w", iter, err)
		}
	}
	m.Y = mathutil.CloneVec(b.y[0])
	m.Z = mathutil.CloneVec(b.z[0])
	return nil
}
