// Package kmeans implements K-Means clustering as an EM strategy. It is used
// to initialise the means of a universal background model.
package kmeans

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/ieee0824/voiceprint-go/internal/mathutil"
)

var (
	// ErrDimensionMismatch is returned when samples and means disagree in dimension.
	ErrDimensionMismatch = errors.New("kmeans: dimension mismatch")
	// ErrTooFewSamples is returned when there are fewer distinct samples than clusters.
	ErrTooFewSamples = errors.New("kmeans: too few distinct samples")
)

// Machine holds the cluster means.
type Machine struct {
	Means [][]float64 // [k][dim]
}

// New creates a machine with k zero means of dimension dim.
func New(k, dim int) *Machine {
	return &Machine{Means: mathutil.NewMat(k, dim)}
}

// NumClusters returns k.
func (m *Machine) NumClusters() int { return len(m.Means) }

// Dim returns the feature dimension.
func (m *Machine) Dim() int {
	if len(m.Means) == 0 {
		return 0
	}
	return len(m.Means[0])
}

// Closest returns the index of the nearest mean and the squared Euclidean distance to it.
func (m *Machine) Closest(x []float64) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	for i, mu := range m.Means {
		d := sqDist(x, mu)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

func sqDist(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// VariancesAndWeights assigns every sample to its closest mean and returns
// the per-cluster variances and the fraction of samples in each cluster.
func (m *Machine) VariancesAndWeights(data [][]float64) ([][]float64, []float64, error) {
	if err := m.checkData(data); err != nil {
		return nil, nil, err
	}
	k, dim := m.NumClusters(), m.Dim()
	counts := make([]float64, k)
	sums := mathutil.NewMat(k, dim)
	sumSq := mathutil.NewMat(k, dim)
	for _, x := range data {
		c, _ := m.Closest(x)
		counts[c]++
		for d, v := range x {
			sums[c][d] += v
			sumSq[c][d] += v * v
		}
	}
	variances := mathutil.NewMat(k, dim)
	weights := make([]float64, k)
	for c := 0; c < k; c++ {
		weights[c] = counts[c] / float64(len(data))
		if counts[c] == 0 {
			continue
		}
		for d := 0; d < dim; d++ {
			mean := sums[c][d] / counts[c]
			variances[c][d] = sumSq[c][d]/counts[c] - mean*mean
		}
	}
	return variances, weights, nil
}

func (m *Machine) checkData(data [][]float64) error {
	dim := m.Dim()
	for i, x := range data {
		if len(x) != dim {
			return fmt.Errorf("%w: sample %d has dimension %d, want %d", ErrDimensionMismatch, i, len(x), dim)
		}
	}
	return nil
}

// InitMethod selects how Initialize seeds the means.
type InitMethod int

const (
	// InitRandom picks distinct random samples as initial means.
	InitRandom InitMethod = iota
	// InitKeep keeps the machine's current means.
	InitKeep
)

// Trainer is an em.Strategy for K-Means.
type Trainer struct {
	Init InitMethod
	Seed int64

	counts     []float64
	sums       mathutil.Mat
	avgMinDist float64
}

// NewTrainer creates a K-Means strategy.
func NewTrainer(init InitMethod, seed int64) *Trainer {
	return &Trainer{Init: init, Seed: seed}
}

// Initialize seeds the means and sizes the accumulators.
func (t *Trainer) Initialize(m *Machine, data [][]float64) error {
	if m.NumClusters() == 0 {
		return fmt.Errorf("%w: machine has no clusters", ErrDimensionMismatch)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: no samples", ErrTooFewSamples)
	}
	if err := m.checkData(data); err != nil {
		return err
	}
	if t.Init == InitRandom {
		if err := t.seedMeans(m, data); err != nil {
			return err
		}
	}
	t.counts = make([]float64, m.NumClusters())
	t.sums = mathutil.NewMat(m.NumClusters(), m.Dim())
	return nil
}

func (t *Trainer) seedMeans(m *Machine, data [][]float64) error {
	rng := rand.New(rand.NewSource(t.Seed))
	chosen := 0
	for _, idx := range rng.Perm(len(data)) {
		if chosen == m.NumClusters() {
			break
		}
		dup := false
		for c := 0; c < chosen; c++ {
			if floats.Equal(m.Means[c], data[idx]) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		copy(m.Means[chosen], data[idx])
		chosen++
	}
	if chosen < m.NumClusters() {
		return fmt.Errorf("%w: found %d, need %d", ErrTooFewSamples, chosen, m.NumClusters())
	}
	return nil
}

// EStep assigns samples to their closest mean.
func (t *Trainer) EStep(m *Machine, data [][]float64) error {
	mathutil.FillVec(t.counts, 0)
	mathutil.FillMat(t.sums, 0)
	total := 0.0
	for _, x := range data {
		c, d := m.Closest(x)
		t.counts[c]++
		floats.Add(t.sums[c], x)
		total += d
	}
	t.avgMinDist = total / float64(len(data))
	return nil
}

// MStep moves each non-empty cluster mean to the centroid of its samples.
func (t *Trainer) MStep(m *Machine, data [][]float64) error {
	for c := range m.Means {
		if t.counts[c] == 0 {
			continue
		}
		floats.ScaleTo(m.Means[c], 1/t.counts[c], t.sums[c])
	}
	return nil
}

// ComputeLikelihood returns the average squared distance of each sample to
// its closest mean.
func (t *Trainer) ComputeLikelihood(m *Machine) float64 { return t.avgMinDist }

// Finalize is a no-op.
func (t *Trainer) Finalize(m *Machine, data [][]float64) error { return nil }

// Counts returns the cluster sizes from the last E-step.
func (t *Trainer) Counts() []float64 { return mathutil.CloneVec(t.counts) }
