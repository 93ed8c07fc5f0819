package jfa

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ieee0824/voiceprint-go/em"
	"github.com/ieee0824/voiceprint-go/internal/mathutil"
)

// subspace holds the scratch state of one low-rank update (U or V).
type subspace struct {
	rank      int
	tSigmaInv *mat.Dense      // [r × CD] Wᵀ Σ⁻¹
	prod      []*mat.SymDense // [C] r × r: W_cᵀ Σ_c⁻¹ W_c
	a1        []*mat.Dense    // [C] r × r normal-equation accumulators
	a2        *mat.Dense      // [CD × r]
	precision *mat.SymDense   // r × r: I + Σ_c n_c prod_c
	inv       *mat.SymDense   // r × r
	chol      mat.Cholesky
	rhs       *mat.VecDense // [r]
	scaled    *mat.Dense    // [D × r] Σ_c^{-1/2} W_c
	ready     bool          // accumulators hold a complete pass
}

func newSubspace(c, dim, r int) subspace {
	s := subspace{
		rank:      r,
		tSigmaInv: mat.NewDense(r, c*dim, nil),
		prod:      make([]*mat.SymDense, c),
		a1:        make([]*mat.Dense, c),
		a2:        mat.NewDense(c*dim, r, nil),
		precision: mat.NewSymDense(r, nil),
		inv:       mat.NewSymDense(r, nil),
		rhs:       mat.NewVecDense(r, nil),
		scaled:    mat.NewDense(dim, r, nil),
	}
	for i := 0; i < c; i++ {
		s.prod[i] = mat.NewSymDense(r, nil)
		s.a1[i] = mat.NewDense(r, r, nil)
	}
	return s
}

// precompute caches Wᵀ Σ⁻¹ and the per-component products W_cᵀ Σ_c⁻¹ W_c.
func (s *subspace) precompute(w *mat.Dense, sigma []float64, dim int) {
	for k, sk := range sigma {
		for a := 0; a < s.rank; a++ {
			s.tSigmaInv.Set(a, k, w.At(k, a)/sk)
		}
	}
	for c := range s.prod {
		for i := 0; i < dim; i++ {
			k := c*dim + i
			isd := 1 / math.Sqrt(sigma[k])
			for a := 0; a < s.rank; a++ {
				s.scaled.Set(i, a, w.At(k, a)*isd)
			}
		}
		s.prod[c].SymOuterK(1, s.scaled.T())
	}
}

func (s *subspace) resetAccumulators() {
	for _, a := range s.a1 {
		a.Zero()
	}
	s.a2.Zero()
	s.ready = false
}

// posterior computes the posterior mean of the latent factor for occupancies
// n (per component) and centred first-order statistics fn, leaving the
// posterior covariance in s.inv.
func (s *subspace) posterior(n, fn, dst []float64) error {
	r := s.rank
	for a := 0; a < r; a++ {
		for b := a; b < r; b++ {
			v := 0.0
			if a == b {
				v = 1
			}
			for c, nc := range n {
				v += nc * s.prod[c].At(a, b)
			}
			s.precision.SetSym(a, b, v)
		}
	}
	if ok := s.chol.Factorize(s.precision); !ok {
		return fmt.Errorf("%w: posterior precision is not positive definite", em.ErrNonFinite)
	}
	if err := s.chol.InverseTo(s.inv); err != nil {
		return fmt.Errorf("%w: %v", em.ErrNonFinite, err)
	}
	s.rhs.MulVec(s.tSigmaInv, mat.NewVecDense(len(fn), fn))
	mat.NewVecDense(r, dst).MulVec(s.inv, s.rhs)
	if !mathutil.AllFinite(dst) {
		return fmt.Errorf("%w: latent factor", em.ErrNonFinite)
	}
	return nil
}

// accumulate adds the contribution of the last posterior to A1 and A2.
func (s *subspace) accumulate(n, fn, factor []float64) {
	r := s.rank
	for c, nc := range n {
		a1 := s.a1[c]
		for a := 0; a < r; a++ {
			for b := 0; b < r; b++ {
				a1.Set(a, b, a1.At(a, b)+(s.inv.At(a, b)+factor[a]*factor[b])*nc)
			}
		}
	}
	s.a2.RankOne(s.a2, 1, mat.NewVecDense(len(fn), fn), mat.NewVecDense(r, factor))
}

// Workspace holds the scratch buffers of one training session. It is sized
// from a BaseMachine and reused across iterations.
type Workspace struct {
	c, dim, ru, rv int

	u, v subspace

	fn     []float64 // [CD] centred first-order statistics
	offset []float64 // [CD]
	tmp    []float64 // [CD]
	nExp   []float64 // [CD] occupancies expanded to supervector length
	zA1    []float64 // [CD]
	zA2    []float64 // [CD]
	zReady bool
}

// NewWorkspace allocates a workspace for m.
func NewWorkspace(m *BaseMachine) *Workspace {
	ws := &Workspace{}
	ws.Ensure(m)
	return ws
}

// Ensure reallocates the buffers when m's dimensions differ from the
// workspace's. It reports whether a reallocation happened.
func (ws *Workspace) Ensure(m *BaseMachine) bool {
	c, dim, ru, rv := m.NumComponents(), m.Dim(), m.RankU(), m.RankV()
	if ws.c == c && ws.dim == dim && ws.ru == ru && ws.rv == rv {
		return false
	}
	cd := c * dim
	*ws = Workspace{
		c: c, dim: dim, ru: ru, rv: rv,
		u:      newSubspace(c, dim, ru),
		v:      newSubspace(c, dim, rv),
		fn:     make([]float64, cd),
		offset: make([]float64, cd),
		tmp:    make([]float64, cd),
		nExp:   make([]float64, cd),
		zA1:    make([]float64, cd),
		zA2:    make([]float64, cd),
	}
	return true
}

// expand writes the per-component occupancies n into ws.nExp (length CD).
func (ws *Workspace) expand(n []float64) []float64 {
	for c, nc := range n {
		mathutil.FillVec(ws.nExp[c*ws.dim:(c+1)*ws.dim], nc)
	}
	return ws.nExp
}
