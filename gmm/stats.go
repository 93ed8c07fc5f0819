package gmm

import (
	"fmt"

	"github.com/ieee0824/voiceprint-go/internal/mathutil"
)

// Stats holds the zeroth, first and second order sufficient statistics of a
// set of frames with respect to a GMM.
type Stats struct {
	T             int          // number of accumulated frames
	LogLikelihood float64      // sum of frame log-likelihoods
	N             []float64    // [C] zeroth order: Σ_t P(c|x_t)
	SumPx         mathutil.Mat // [C][D] first order: Σ_t P(c|x_t) x_t
	SumPxx        mathutil.Mat // [C][D] second order: Σ_t P(c|x_t) x_t²
}

// NewStats allocates zeroed statistics for c components of dimension d.
func NewStats(c, d int) *Stats {
	return &Stats{
		N:      make([]float64, c),
		SumPx:  mathutil.NewMat(c, d),
		SumPxx: mathutil.NewMat(c, d),
	}
}

// NumComponents returns the number of components the statistics are sized for.
func (s *Stats) NumComponents() int { return len(s.N) }

// Dim returns the feature dimension.
func (s *Stats) Dim() int {
	if len(s.SumPx) == 0 {
		return 0
	}
	return len(s.SumPx[0])
}

// Init resets all accumulators to zero.
func (s *Stats) Init() {
	s.T = 0
	s.LogLikelihood = 0
	mathutil.FillVec(s.N, 0)
	mathutil.FillMat(s.SumPx, 0)
	mathutil.FillMat(s.SumPxx, 0)
}

// Add accumulates o into s.
func (s *Stats) Add(o *Stats) error {
	if err := o.Validate(s.NumComponents(), s.Dim()); err != nil {
		return err
	}
	s.T += o.T
	s.LogLikelihood += o.LogLikelihood
	for i, n := range o.N {
		s.N[i] += n
	}
	mathutil.AddMat(s.SumPx, o.SumPx)
	mathutil.AddMat(s.SumPxx, o.SumPxx)
	return nil
}

// Validate checks that the statistics are sized for c components of dimension d.
func (s *Stats) Validate(c, d int) error {
	if len(s.N) != c || len(s.SumPx) != c || len(s.SumPxx) != c {
		return fmt.Errorf("%w: stats have %d components, want %d", ErrDimensionMismatch, len(s.N), c)
	}
	for i := 0; i < c; i++ {
		if len(s.SumPx[i]) != d || len(s.SumPxx[i]) != d {
			return fmt.Errorf("%w: stats component %d has dimension %d, want %d",
				ErrDimensionMismatch, i, len(s.SumPx[i]), d)
		}
	}
	return nil
}

// FirstOrderSupervector returns SumPx flattened component-major (length C·D).
func (s *Stats) FirstOrderSupervector() []float64 {
	return mathutil.Flatten(s.SumPx)
}

// Clone returns a deep copy of s.
func (s *Stats) Clone() *Stats {
	return &Stats{
		T:             s.T,
		LogLikelihood: s.LogLikelihood,
		N:             mathutil.CloneVec(s.N),
		SumPx:         mathutil.CloneMat(s.SumPx),
		SumPxx:        mathutil.CloneMat(s.SumPxx),
	}
}
