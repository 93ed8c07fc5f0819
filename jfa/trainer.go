package jfa

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/ieee0824/voiceprint-go/em"
	"github.com/ieee0824/voiceprint-go/internal/mathutil"
)

// BaseTrainer trains the hyperparameters U, V and d of a BaseMachine by
// alternating closed-form updates of the latent factors and the subspaces.
type BaseTrainer struct {
	// Seed drives the random initialisation of U, V and d.
	Seed   int64
	Logger *slog.Logger

	machine *BaseMachine
	ws      *Workspace
	rng     *rand.Rand

	// latent factors per identity
	x [][][]float64 // [id][session][ru]
	y [][]float64   // [id][rv]
	z [][]float64   // [id][CD]

	// per-identity sums over sessions
	sumN [][]float64 // [id][C]
	sumF [][]float64 // [id][CD]
}

// NewBaseTrainer creates a trainer for m.
func NewBaseTrainer(m *BaseMachine) *BaseTrainer {
	return &BaseTrainer{machine: m, ws: NewWorkspace(m)}
}

// Machine returns the machine being trained.
func (t *BaseTrainer) Machine() *BaseMachine { return t.machine }

func (t *BaseTrainer) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

func (t *BaseTrainer) random() *rand.Rand {
	if t.rng == nil {
		t.rng = rand.New(rand.NewSource(t.Seed))
	}
	return t.rng
}

func (t *BaseTrainer) checkDataset(ds *Dataset) error {
	if ds == nil {
		return ErrEmptyDataset
	}
	if err := t.machine.check(ds.NumComponents(), ds.Dim()); err != nil {
		return err
	}
	if t.ws.Ensure(t.machine) {
		// rank changes invalidate factors sized for the old machine
		t.x, t.y, t.z = nil, nil, nil
	}
	return nil
}

// checkFactors verifies that factors and sums were initialised for ds.
func (t *BaseTrainer) checkFactors(ds *Dataset) error {
	if err := t.checkDataset(ds); err != nil {
		return err
	}
	if t.y == nil || len(t.y) != ds.NumIdentities() {
		return fmt.Errorf("%w: factors not initialised for %d identities", ErrNotInitialized, ds.NumIdentities())
	}
	for i := range t.x {
		if len(t.x[i]) != ds.NumSessions(i) {
			return fmt.Errorf("%w: identity %d has %d sessions, factors sized for %d",
				ErrDimensionMismatch, i, ds.NumSessions(i), len(t.x[i]))
		}
	}
	if len(t.sumN) != ds.NumIdentities() {
		return fmt.Errorf("%w: sum statistics not precomputed", ErrNotInitialized)
	}
	return nil
}

// InitFactors allocates zeroed latent factors for every identity and session of ds.
func (t *BaseTrainer) InitFactors(ds *Dataset) error {
	if err := t.checkDataset(ds); err != nil {
		return err
	}
	ru, rv, cd := t.machine.RankU(), t.machine.RankV(), t.machine.SupervectorLen()
	n := ds.NumIdentities()
	t.x = make([][][]float64, n)
	t.y = make([][]float64, n)
	t.z = make([][]float64, n)
	for i := 0; i < n; i++ {
		t.x[i] = mathutil.NewMat(ds.NumSessions(i), ru)
		t.y[i] = make([]float64, rv)
		t.z[i] = make([]float64, cd)
	}
	return nil
}

// PrecomputeSumStatistics caches Σ_h N_ih and Σ_h F_ih for every identity.
func (t *BaseTrainer) PrecomputeSumStatistics(ds *Dataset) error {
	if err := t.checkDataset(ds); err != nil {
		return err
	}
	n := ds.NumIdentities()
	t.sumN = make([][]float64, n)
	t.sumF = make([][]float64, n)
	for i := 0; i < n; i++ {
		t.sumN[i] = make([]float64, ds.NumComponents())
		t.sumF[i] = make([]float64, t.machine.SupervectorLen())
		for h := 0; h < ds.NumSessions(i); h++ {
			s := ds.Session(i, h)
			for c, v := range s.N {
				t.sumN[i][c] += v
			}
			for c, row := range s.SumPx {
				off := c * ds.Dim()
				for d, v := range row {
					t.sumF[i][off+d] += v
				}
			}
		}
	}
	return nil
}

// SumN returns a copy of the per-identity zeroth order sums.
func (t *BaseTrainer) SumN() [][]float64 { return mathutil.CloneMat(t.sumN) }

// SumF returns a copy of the per-identity first order sums.
func (t *BaseTrainer) SumF() [][]float64 { return mathutil.CloneMat(t.sumF) }

// X returns a copy of the session factors.
func (t *BaseTrainer) X() [][][]float64 {
	out := make([][][]float64, len(t.x))
	for i := range t.x {
		out[i] = mathutil.CloneMat(t.x[i])
	}
	return out
}

// Y returns a copy of the speaker factors.
func (t *BaseTrainer) Y() [][]float64 { return mathutil.CloneMat(t.y) }

// Z returns a copy of the diagonal speaker factors.
func (t *BaseTrainer) Z() [][]float64 { return mathutil.CloneMat(t.z) }

// SetFactors replaces the latent factors. Shapes must match the machine ranks.
func (t *BaseTrainer) SetFactors(x [][][]float64, y, z [][]float64) error {
	if len(x) != len(y) || len(y) != len(z) {
		return fmt.Errorf("%w: factors for %d/%d/%d identities", ErrDimensionMismatch, len(x), len(y), len(z))
	}
	ru, rv, cd := t.machine.RankU(), t.machine.RankV(), t.machine.SupervectorLen()
	for i := range y {
		if len(y[i]) != rv || len(z[i]) != cd {
			return fmt.Errorf("%w: identity %d has y of length %d and z of length %d", ErrDimensionMismatch, i, len(y[i]), len(z[i]))
		}
		for h := range x[i] {
			if len(x[i][h]) != ru {
				return fmt.Errorf("%w: identity %d session %d has x of length %d", ErrDimensionMismatch, i, h, len(x[i][h]))
			}
		}
	}
	t.x = make([][][]float64, len(x))
	for i := range x {
		t.x[i] = mathutil.CloneMat(x[i])
	}
	t.y = mathutil.CloneMat(y)
	t.z = mathutil.CloneMat(z)
	return nil
}

func (t *BaseTrainer) fillRandom(data []float64) {
	rng := t.random()
	for i := range data {
		data[i] = rng.Float64()
	}
}

// InitializeRandomU draws U uniformly from [0, 1).
func (t *BaseTrainer) InitializeRandomU() { t.fillRandom(t.machine.u.RawMatrix().Data) }

// InitializeRandomV draws V uniformly from [0, 1).
func (t *BaseTrainer) InitializeRandomV() { t.fillRandom(t.machine.v.RawMatrix().Data) }

// InitializeRandomD draws d uniformly from [0, 1).
func (t *BaseTrainer) InitializeRandomD() { t.fillRandom(t.machine.d) }

// InitializeUVD randomly initialises all hyperparameters.
func (t *BaseTrainer) InitializeUVD() {
	t.InitializeRandomU()
	t.InitializeRandomV()
	t.InitializeRandomD()
}

// InitializeVDISV sets V to zero and d to sqrt(Σ / relevanceFactor).
func (t *BaseTrainer) InitializeVDISV(relevanceFactor float64) error {
	if !(relevanceFactor > 0) || math.IsInf(relevanceFactor, 0) {
		return fmt.Errorf("jfa: relevance factor must be positive and finite, got %g", relevanceFactor)
	}
	t.machine.v.Zero()
	for k, s := range t.machine.ubm.VarianceSupervector() {
		t.machine.d[k] = math.Sqrt(s / relevanceFactor)
	}
	return nil
}

// Train initialises factors, sum statistics and random hyperparameters and
// runs nIter iterations of TrainNoInit.
func (t *BaseTrainer) Train(ds *Dataset, nIter int) error {
	if err := t.InitFactors(ds); err != nil {
		return err
	}
	if err := t.PrecomputeSumStatistics(ds); err != nil {
		return err
	}
	t.InitializeUVD()
	return t.TrainNoInit(ds, nIter)
}

// TrainNoInit runs nIter rounds of (Y, V), (X, U), (Z, D) updates starting
// from the current factors and hyperparameters, then refreshes the factors
// against the final hyperparameters.
func (t *BaseTrainer) TrainNoInit(ds *Dataset, nIter int) error {
	if err := t.checkFactors(ds); err != nil {
		return err
	}
	log := t.logger()
	for iter := 0; iter < nIter; iter++ {
		steps := []struct {
			name string
			run  func() error
		}{
			{"y", func() error { return t.UpdateY(ds) }},
			{"v", t.UpdateV},
			{"x", func() error { return t.UpdateX(ds) }},
			{"u", t.UpdateU},
			{"z", func() error { return t.UpdateZ(ds) }},
			{"d", t.UpdateD},
		}
		for _, s := range steps {
			if err := s.run(); err != nil {
				return fmt.Errorf("jfa: iteration %d update %s: %w", iter, s.name, err)
			}
		}
		log.Debug("jfa iteration", "iteration", iter, "identities", ds.NumIdentities())
	}
	if err := t.refresh(ds, true); err != nil {
		return err
	}
	log.Info("jfa training done", "iterations", nIter)
	return nil
}

// TrainISV initialises factors, sum statistics, a random U and the ISV
// closed-form V and d, then runs TrainISVNoInit.
func (t *BaseTrainer) TrainISV(ds *Dataset, nIter int, relevanceFactor float64) error {
	if err := t.InitFactors(ds); err != nil {
		return err
	}
	if err := t.PrecomputeSumStatistics(ds); err != nil {
		return err
	}
	t.InitializeRandomU()
	if err := t.InitializeVDISV(relevanceFactor); err != nil {
		return err
	}
	return t.TrainISVNoInit(ds, nIter)
}

// TrainISVNoInit runs nIter rounds of (X, U) updates with V and d held fixed,
// then refreshes X and Z.
func (t *BaseTrainer) TrainISVNoInit(ds *Dataset, nIter int) error {
	if err := t.checkFactors(ds); err != nil {
		return err
	}
	log := t.logger()
	for iter := 0; iter < nIter; iter++ {
		if err := t.UpdateX(ds); err != nil {
			return fmt.Errorf("jfa: iteration %d update x: %w", iter, err)
		}
		if err := t.UpdateU(); err != nil {
			return fmt.Errorf("jfa: iteration %d update u: %w", iter, err)
		}
		log.Debug("isv iteration", "iteration", iter, "identities", ds.NumIdentities())
	}
	if err := t.refresh(ds, false); err != nil {
		return err
	}
	log.Info("isv training done", "iterations", nIter)
	return nil
}

// refresh recomputes the latent factors against the current hyperparameters.
func (t *BaseTrainer) refresh(ds *Dataset, withY bool) error {
	if withY {
		if err := t.UpdateY(ds); err != nil {
			return fmt.Errorf("jfa: final update y: %w", err)
		}
	}
	if err := t.UpdateX(ds); err != nil {
		return fmt.Errorf("jfa: final update x: %w", err)
	}
	if err := t.UpdateZ(ds); err != nil {
		return fmt.Errorf("jfa: final update z: %w", err)
	}
	return nil
}

// checkFinite reports an error wrapping em.ErrNonFinite if a contains NaN or ±Inf.
func checkFinite(name string, a mat.RawMatrixer) error {
	if !mathutil.AllFinite(a.RawMatrix().Data) {
		return fmt.Errorf("%w: %s", em.ErrNonFinite, name)
	}
	return nil
}
