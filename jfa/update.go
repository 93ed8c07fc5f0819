package jfa

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ieee0824/voiceprint-go/em"
	"github.com/ieee0824/voiceprint-go/gmm"
	"github.com/ieee0824/voiceprint-go/internal/mathutil"
)

// firstOrder writes the first order statistics of s as a supervector into dst.
func firstOrder(s *gmm.Stats, dst []float64) {
	dim := s.Dim()
	for c, row := range s.SumPx {
		copy(dst[c*dim:(c+1)*dim], row)
	}
}

// subtractUx subtracts N_ih ⊙ U x_ih for every session of identity i from fn.
func (t *BaseTrainer) subtractUx(ds *Dataset, i int, fn []float64) {
	ws := t.ws
	ru, cd := t.machine.RankU(), t.machine.SupervectorLen()
	ux := mat.NewVecDense(cd, ws.tmp)
	for h := 0; h < ds.NumSessions(i); h++ {
		ux.MulVec(t.machine.u, mat.NewVecDense(ru, t.x[i][h]))
		nh := ws.expand(ds.Session(i, h).N)
		for k := range fn {
			fn[k] -= nh[k] * ws.tmp[k]
		}
	}
}

// centredIdentityStats computes
//
//	fn = Σ_h F_ih − Σ_h N_ih ⊙ offset − Σ_h N_ih ⊙ U x_ih
//
// into ws.fn for identity i.
func (t *BaseTrainer) centredIdentityStats(ds *Dataset, i int, offset []float64) []float64 {
	ws := t.ws
	nExp := ws.expand(t.sumN[i])
	for k := range ws.fn {
		ws.fn[k] = t.sumF[i][k] - nExp[k]*offset[k]
	}
	t.subtractUx(ds, i, ws.fn)
	return ws.fn
}

// speakerOffset writes m + V y_i (+ d ⊙ z_i when withZ) into dst.
func (t *BaseTrainer) speakerOffset(i int, withY, withZ bool, mean, dst []float64) {
	m := t.machine
	if withY {
		mat.NewVecDense(len(dst), dst).MulVec(m.v, mat.NewVecDense(m.RankV(), t.y[i]))
	} else {
		mathutil.FillVec(dst, 0)
	}
	for k := range dst {
		dst[k] += mean[k]
		if withZ {
			dst[k] += m.d[k] * t.z[i][k]
		}
	}
}

// UpdateY computes the posterior speaker factors y_i and accumulates the
// statistics needed by UpdateV.
func (t *BaseTrainer) UpdateY(ds *Dataset) error {
	if err := t.checkFactors(ds); err != nil {
		return err
	}
	m, ws := t.machine, t.ws
	mean := m.ubm.MeanSupervector()
	ws.v.precompute(m.v, m.ubm.VarianceSupervector(), m.Dim())
	ws.v.resetAccumulators()
	for i := range t.y {
		t.speakerOffset(i, false, true, mean, ws.offset)
		fn := t.centredIdentityStats(ds, i, ws.offset)
		if err := ws.v.posterior(t.sumN[i], fn, t.y[i]); err != nil {
			return fmt.Errorf("identity %d: %w", i, err)
		}
		ws.v.accumulate(t.sumN[i], fn, t.y[i])
	}
	ws.v.ready = true
	return nil
}

// UpdateV re-estimates V from the accumulators of the last UpdateY.
func (t *BaseTrainer) UpdateV() error {
	if !t.ws.v.ready {
		return fmt.Errorf("%w: UpdateV before UpdateY", ErrNotInitialized)
	}
	return UpdateSubspace(t.ws.v.a1, t.ws.v.a2, t.machine.v)
}

// UpdateX computes the posterior session factors x_ih and accumulates the
// statistics needed by UpdateU.
func (t *BaseTrainer) UpdateX(ds *Dataset) error {
	if err := t.checkFactors(ds); err != nil {
		return err
	}
	m, ws := t.machine, t.ws
	mean := m.ubm.MeanSupervector()
	ws.u.precompute(m.u, m.ubm.VarianceSupervector(), m.Dim())
	ws.u.resetAccumulators()
	for i := range t.x {
		t.speakerOffset(i, true, true, mean, ws.offset)
		for h := range t.x[i] {
			s := ds.Session(i, h)
			firstOrder(s, ws.fn)
			nh := ws.expand(s.N)
			for k := range ws.fn {
				ws.fn[k] -= nh[k] * ws.offset[k]
			}
			if err := ws.u.posterior(s.N, ws.fn, t.x[i][h]); err != nil {
				return fmt.Errorf("identity %d session %d: %w", i, h, err)
			}
			ws.u.accumulate(s.N, ws.fn, t.x[i][h])
		}
	}
	ws.u.ready = true
	return nil
}

// UpdateU re-estimates U from the accumulators of the last UpdateX.
func (t *BaseTrainer) UpdateU() error {
	if !t.ws.u.ready {
		return fmt.Errorf("%w: UpdateU before UpdateX", ErrNotInitialized)
	}
	return UpdateSubspace(t.ws.u.a1, t.ws.u.a2, t.machine.u)
}

// UpdateZ computes the diagonal speaker factors z_i and accumulates the
// statistics needed by UpdateD.
func (t *BaseTrainer) UpdateZ(ds *Dataset) error {
	if err := t.checkFactors(ds); err != nil {
		return err
	}
	m, ws := t.machine, t.ws
	mean := m.ubm.MeanSupervector()
	sigma := m.ubm.VarianceSupervector()
	mathutil.FillVec(ws.zA1, 0)
	mathutil.FillVec(ws.zA2, 0)
	for i := range t.z {
		t.speakerOffset(i, true, false, mean, ws.offset)
		fn := t.centredIdentityStats(ds, i, ws.offset)
		nExp := ws.expand(t.sumN[i])
		for k, dk := range m.d {
			p := 1 / (1 + dk*dk/sigma[k]*nExp[k])
			zk := p * dk / sigma[k] * fn[k]
			t.z[i][k] = zk
			ws.zA1[k] += (p + zk*zk) * nExp[k]
			ws.zA2[k] += fn[k] * zk
		}
		if !mathutil.AllFinite(t.z[i]) {
			return fmt.Errorf("%w: z of identity %d", em.ErrNonFinite, i)
		}
	}
	ws.zReady = true
	return nil
}

// UpdateD re-estimates d from the accumulators of the last UpdateZ.
// Entries without any occupancy keep their value.
func (t *BaseTrainer) UpdateD() error {
	ws := t.ws
	if !ws.zReady {
		return fmt.Errorf("%w: UpdateD before UpdateZ", ErrNotInitialized)
	}
	for k := range t.machine.d {
		if ws.zA1[k] == 0 {
			continue
		}
		t.machine.d[k] = ws.zA2[k] / ws.zA1[k]
	}
	if !mathutil.AllFinite(t.machine.d) {
		return fmt.Errorf("%w: d", em.ErrNonFinite)
	}
	return nil
}

// UpdateSubspace solves the per-component normal equations of a subspace
// update: for every component c, dst_c = A2_c · A1_c⁻¹ where dst_c and A2_c
// are the D rows of component c. a1 holds one r × r matrix per component,
// a2 and dst are CD × r. Components whose A1 is all zero keep their rows.
func UpdateSubspace(a1 []*mat.Dense, a2, dst *mat.Dense) error {
	rows, r := a2.Dims()
	if len(a1) == 0 || rows%len(a1) != 0 {
		return fmt.Errorf("%w: %d rows for %d components", ErrDimensionMismatch, rows, len(a1))
	}
	if err := checkDims("dst", dst, rows, r); err != nil {
		return err
	}
	dim := rows / len(a1)
	var sol mat.Dense
	for c, a := range a1 {
		if err := checkDims("A1", a, r, r); err != nil {
			return err
		}
		if isZero(a) {
			continue
		}
		block := a2.Slice(c*dim, (c+1)*dim, 0, r)
		sol.Reset()
		// A1_c · dst_cᵀ = A2_cᵀ
		if err := sol.Solve(a, block.T()); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
				return fmt.Errorf("%w: component %d: %v", em.ErrNonFinite, c, err)
			}
		}
		dst.Slice(c*dim, (c+1)*dim, 0, r).(*mat.Dense).Copy(sol.T())
	}
	return checkFinite("subspace", dst)
}

func isZero(a *mat.Dense) bool {
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if a.At(i, j) != 0 {
				return false
			}
		}
	}
	return true
}
