package gmm

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestResponsibilitiesSumToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	g := randomGMM(rng, 4, 3)
	xs, _ := randomFrames(rng, 25, 3)
	for i, x := range xs {
		s := NewStats(4, 3)
		g.AccStatistics(x, s)
		sum := 0.0
		for _, n := range s.N {
			sum += n
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("frame %d: responsibilities sum to %.15f", i, sum)
		}
	}
}

func TestResponsibilitiesFarFrame(t *testing.T) {
	g, err := NewWithParams([][]float64{{-1}, {1}}, [][]float64{{1}, {1}}, []float64{0.5, 0.5})
	if err != nil {
		t.Fatal(err)
	}
	x := []float64{2e15}

	s := NewStats(2, 1)
	ll := g.AccStatistics(x, s)
	if got := s.N[0] + s.N[1]; math.Abs(got-1) > 1e-12 {
		t.Errorf("single frame: responsibilities sum to %g", got)
	}
	if s.N[1] != 1 {
		t.Errorf("N = %v, want all mass on the +1 component", s.N)
	}
	// log N(2e15; 1, 1) + log 0.5
	want := -0.5*math.Log(2*math.Pi) - 0.5*(2e15-1)*(2e15-1) + math.Log(0.5)
	if math.Abs(ll-want) > 1e-12*math.Abs(want) {
		t.Errorf("log-likelihood = %g, want %g", ll, want)
	}
	if a, b := ll, g.LogProb(x); math.Abs(a-b) > 1e-12*math.Abs(a) {
		t.Errorf("AccStatistics %g != LogProb %g", a, b)
	}

	batch, err := g.Statistics([][]float64{x, {0}})
	if err != nil {
		t.Fatal(err)
	}
	if got := batch.N[0] + batch.N[1]; math.Abs(got-2) > 1e-12 {
		t.Errorf("batch: responsibilities sum to %g, want 2", got)
	}
}

func TestStatisticsSession(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	g := randomGMM(rng, 2, 2)
	xs, _ := randomFrames(rng, 10, 2)
	s, err := g.Statistics(xs)
	if err != nil {
		t.Fatal(err)
	}
	if s.T != 10 {
		t.Errorf("T = %d, want 10", s.T)
	}
	if math.Abs(s.N[0]+s.N[1]-10) > 1e-9 {
		t.Errorf("ΣN = %f, want 10", s.N[0]+s.N[1])
	}
	if _, err := g.Statistics([][]float64{{1, 2, 3}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("bad frame: err = %v", err)
	}
}

func TestStatsAddInitValidate(t *testing.T) {
	a := NewStats(2, 1)
	a.T = 3
	a.N[0], a.N[1] = 1, 2
	a.SumPx[1][0] = 4
	b := a.Clone()
	if err := a.Add(b); err != nil {
		t.Fatal(err)
	}
	if a.T != 6 || a.N[1] != 4 || a.SumPx[1][0] != 8 {
		t.Errorf("after Add: T=%d N=%v SumPx=%v", a.T, a.N, a.SumPx)
	}
	if b.T != 3 || b.N[1] != 2 {
		t.Error("Add modified its argument")
	}
	if err := a.Add(NewStats(3, 1)); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Add mismatch: err = %v", err)
	}
	if err := a.Validate(2, 2); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Validate dim mismatch: err = %v", err)
	}
	a.Init()
	if a.T != 0 || a.N[1] != 0 || a.SumPx[1][0] != 0 || a.LogLikelihood != 0 {
		t.Error("Init did not reset")
	}
}

func TestFirstOrderSupervector(t *testing.T) {
	s := NewStats(2, 2)
	s.SumPx[0][0], s.SumPx[0][1], s.SumPx[1][0], s.SumPx[1][1] = 1, 2, 3, 4
	got := s.FirstOrderSupervector()
	want := []float64{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("FirstOrderSupervector = %v, want %v", got, want)
		}
	}
}
