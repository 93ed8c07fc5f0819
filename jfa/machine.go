// Package jfa implements Joint Factor Analysis and Inter-Session Variability
// modelling on top of a GMM universal background model.
//
// A speaker's mean supervector is modelled as m + Vy + Dz + Ux, where m is the
// UBM mean supervector, V spans speaker variability, U spans session
// variability and D is diagonal.
package jfa

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ieee0824/voiceprint-go/gmm"
	"github.com/ieee0824/voiceprint-go/internal/mathutil"
)

// BaseMachine holds the UBM and the JFA hyperparameters U, V and d.
type BaseMachine struct {
	ubm *gmm.GMM
	u   *mat.Dense // [CD × ru]
	v   *mat.Dense // [CD × rv]
	d   []float64  // [CD]
}

// NewBaseMachine creates a machine with zero hyperparameters of ranks ru and rv.
func NewBaseMachine(ubm *gmm.GMM, ru, rv int) (*BaseMachine, error) {
	if ubm == nil || ubm.SupervectorLen() == 0 {
		return nil, fmt.Errorf("%w: empty UBM", ErrDimensionMismatch)
	}
	if ru < 1 || rv < 1 {
		return nil, fmt.Errorf("%w: ranks must be positive, got ru=%d rv=%d", ErrDimensionMismatch, ru, rv)
	}
	cd := ubm.SupervectorLen()
	return &BaseMachine{
		ubm: ubm,
		u:   mat.NewDense(cd, ru, nil),
		v:   mat.NewDense(cd, rv, nil),
		d:   make([]float64, cd),
	}, nil
}

// UBM returns the universal background model.
func (m *BaseMachine) UBM() *gmm.GMM { return m.ubm }

// NumComponents returns C, the number of UBM components.
func (m *BaseMachine) NumComponents() int { return m.ubm.NumComponents() }

// Dim returns the feature dimension.
func (m *BaseMachine) Dim() int { return m.ubm.Dim }

// SupervectorLen returns C·D.
func (m *BaseMachine) SupervectorLen() int { return m.ubm.SupervectorLen() }

// RankU returns the number of columns of U.
func (m *BaseMachine) RankU() int { _, c := m.u.Dims(); return c }

// RankV returns the number of columns of V.
func (m *BaseMachine) RankV() int { _, c := m.v.Dims(); return c }

// U returns a copy of the session subspace.
func (m *BaseMachine) U() *mat.Dense { return mat.DenseCopyOf(m.u) }

// V returns a copy of the speaker subspace.
func (m *BaseMachine) V() *mat.Dense { return mat.DenseCopyOf(m.v) }

// D returns a copy of the diagonal of D.
func (m *BaseMachine) D() []float64 { return mathutil.CloneVec(m.d) }

// SetU replaces U. Its shape must be CD × RankU.
func (m *BaseMachine) SetU(u mat.Matrix) error {
	if err := checkDims("U", u, m.SupervectorLen(), m.RankU()); err != nil {
		return err
	}
	m.u.Copy(u)
	return nil
}

// SetV replaces V. Its shape must be CD × RankV.
func (m *BaseMachine) SetV(v mat.Matrix) error {
	if err := checkDims("V", v, m.SupervectorLen(), m.RankV()); err != nil {
		return err
	}
	m.v.Copy(v)
	return nil
}

// SetD replaces the diagonal of D.
func (m *BaseMachine) SetD(d []float64) error {
	if len(d) != m.SupervectorLen() {
		return fmt.Errorf("%w: d has length %d, want %d", ErrDimensionMismatch, len(d), m.SupervectorLen())
	}
	copy(m.d, d)
	return nil
}

// SetUBM replaces the UBM with one of identical shape.
func (m *BaseMachine) SetUBM(ubm *gmm.GMM) error {
	if err := m.ubm.SameShape(ubm); err != nil {
		return fmt.Errorf("jfa: %w", err)
	}
	m.ubm = ubm
	return nil
}

func checkDims(name string, a mat.Matrix, rows, cols int) error {
	r, c := a.Dims()
	if r != rows || c != cols {
		return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrDimensionMismatch, name, r, c, rows, cols)
	}
	return nil
}

// check validates that statistics shaped c × dim fit the machine.
func (m *BaseMachine) check(c, dim int) error {
	if c != m.NumComponents() || dim != m.Dim() {
		return fmt.Errorf("%w: statistics are %dx%d, machine is %dx%d",
			ErrDimensionMismatch, c, dim, m.NumComponents(), m.Dim())
	}
	return nil
}
