package jfa

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ieee0824/voiceprint-go/gmm"
)

// ErrEmptySession is returned when scoring statistics without frames.
var ErrEmptySession = errors.New("jfa: session has no frames")

// Machine is an enrolled speaker: the shared BaseMachine plus the speaker
// factors y and z.
type Machine struct {
	Base *BaseMachine
	Y    []float64 // [rv]
	Z    []float64 // [CD]
}

// NewMachine creates a machine with zero speaker factors.
func NewMachine(base *BaseMachine) *Machine {
	return &Machine{
		Base: base,
		Y:    make([]float64, base.RankV()),
		Z:    make([]float64, base.SupervectorLen()),
	}
}

// SpeakerShift returns V y + d ⊙ z, the speaker's offset from the UBM mean supervector.
func (m *Machine) SpeakerShift() ([]float64, error) {
	b := m.Base
	cd := b.SupervectorLen()
	if len(m.Y) != b.RankV() || len(m.Z) != cd {
		return nil, fmt.Errorf("%w: y has length %d, z has length %d", ErrDimensionMismatch, len(m.Y), len(m.Z))
	}
	shift := make([]float64, cd)
	mat.NewVecDense(cd, shift).MulVec(b.v, mat.NewVecDense(len(m.Y), m.Y))
	for k := range shift {
		shift[k] += b.d[k] * m.Z[k]
	}
	return shift, nil
}

// Forward scores the statistics of a test session against the speaker.
// The session factor x is estimated first; the score is the linear
// approximation of the log-likelihood ratio
//
//	(Vy + Dz)ᵀ Σ⁻¹ (F − N m − N U x) / T
func (m *Machine) Forward(s *gmm.Stats) (float64, error) {
	b := m.Base
	if err := b.check(s.NumComponents(), s.Dim()); err != nil {
		return 0, err
	}
	if s.T == 0 {
		return 0, ErrEmptySession
	}
	shift, err := m.SpeakerShift()
	if err != nil {
		return 0, err
	}
	mean := b.ubm.MeanSupervector()
	sigma := b.ubm.VarianceSupervector()

	ws := NewWorkspace(b)
	ws.u.precompute(b.u, sigma, b.Dim())
	firstOrder(s, ws.fn)
	nExp := ws.expand(s.N)
	for k := range ws.fn {
		ws.fn[k] -= nExp[k] * (mean[k] + shift[k])
	}
	x := make([]float64, b.RankU())
	if err := ws.u.posterior(s.N, ws.fn, x); err != nil {
		return 0, err
	}
	ux := mat.NewVecDense(len(ws.tmp), ws.tmp)
	ux.MulVec(b.u, mat.NewVecDense(len(x), x))

	firstOrder(s, ws.fn)
	score := 0.0
	for k, sk := range shift {
		score += sk / sigma[k] * (ws.fn[k] - nExp[k]*mean[k] - nExp[k]*ws.tmp[k])
	}
	return score / float64(s.T), nil
}
