package gmm

import (
	"errors"
	"math"
	"testing"
)

func TestGaussianLogProb(t *testing.T) {
	g := Gaussian{
		Mean:     []float64{0.0},
		Variance: []float64{1.0},
		Weight:   1.0,
	}
	g.Precompute()

	// Standard normal at x=0: log(1/sqrt(2π)) ≈ -0.9189
	lp := g.LogProb([]float64{0.0})
	expected := -0.5 * math.Log(2*math.Pi)
	if math.Abs(lp-expected) > 1e-12 {
		t.Errorf("LogProb(0) = %f, want %f", lp, expected)
	}

	lp5 := g.LogProb([]float64{5.0})
	if math.Abs(lp5-(expected-12.5)) > 1e-12 {
		t.Errorf("LogProb(5) = %f, want %f", lp5, expected-12.5)
	}
}

func TestGMMLogProb(t *testing.T) {
	g, err := NewWithParams(
		[][]float64{{0.0}, {5.0}},
		[][]float64{{1.0}, {1.0}},
		[]float64{0.5, 0.5},
	)
	if err != nil {
		t.Fatal(err)
	}

	lp0 := g.LogProb([]float64{0.0})
	lp5 := g.LogProb([]float64{5.0})
	lp25 := g.LogProb([]float64{2.5})

	if math.IsNaN(lp0) || math.IsInf(lp0, 0) {
		t.Errorf("LogProb(0) = %f (not finite)", lp0)
	}
	// symmetric mixture
	if math.Abs(lp0-lp5) > 1e-12 {
		t.Errorf("LogProb(0)=%f and LogProb(5)=%f should be equal", lp0, lp5)
	}
	if lp25 > lp0 {
		t.Errorf("LogProb(2.5)=%f > LogProb(0)=%f", lp25, lp0)
	}
}

func TestNewWithParamsMismatch(t *testing.T) {
	_, err := NewWithParams(
		[][]float64{{0, 0}, {1}},
		[][]float64{{1, 1}, {1, 1}},
		[]float64{0.5, 0.5},
	)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("ragged means: err = %v", err)
	}
	_, err = NewWithParams([][]float64{{0}}, [][]float64{{1}}, []float64{0.5, 0.5})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("weight count: err = %v", err)
	}
}

func TestVarianceFloor(t *testing.T) {
	g, err := NewWithParams([][]float64{{0, 0}}, [][]float64{{1e-9, 2}}, []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	if v := g.Components[0].Variance[0]; v != DefaultVarianceFloor {
		t.Errorf("variance = %g, want floor %g", v, DefaultVarianceFloor)
	}
	g.VarianceFloor = 0.5
	if err := g.SetVariances([][]float64{{0.1, 3}}); err != nil {
		t.Fatal(err)
	}
	if got := g.Variances()[0]; got[0] != 0.5 || got[1] != 3 {
		t.Errorf("variances = %v, want [0.5 3]", got)
	}
}

func TestSupervectors(t *testing.T) {
	g := New(3, 2)
	sv := []float64{1, 2, 3, 4, 5, 6}
	if err := g.SetMeanSupervector(sv); err != nil {
		t.Fatal(err)
	}
	if g.Components[1].Mean[0] != 3 || g.Components[2].Mean[1] != 6 {
		t.Errorf("means = %v", g.Means())
	}
	got := g.MeanSupervector()
	for i := range sv {
		if got[i] != sv[i] {
			t.Fatalf("MeanSupervector = %v, want %v", got, sv)
		}
	}
	if err := g.SetVarianceSupervector(sv[:5]); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("short supervector: err = %v", err)
	}
	if n := len(g.VarianceSupervector()); n != 6 {
		t.Errorf("VarianceSupervector length = %d, want 6", n)
	}
}

func TestCloneIsDeep(t *testing.T) {
	g := New(2, 2)
	c := g.Clone()
	c.Components[0].Mean[0] = 42
	if g.Components[0].Mean[0] == 42 {
		t.Error("Clone shares mean storage")
	}
	if err := g.CopyFrom(New(3, 2)); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("CopyFrom shape mismatch: err = %v", err)
	}
	if err := g.CopyFrom(c); err != nil {
		t.Fatal(err)
	}
	if g.Components[0].Mean[0] != 42 {
		t.Error("CopyFrom did not copy means")
	}
}
