package gmm

import (
	"bytes"
	"math"
	"math/rand"
	"testing"
)

func TestGMMSaveLoad(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	g := randomGMM(rng, 3, 4)
	g.VarianceFloor = 1e-3

	var buf bytes.Buffer
	if err := g.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.NumComponents() != 3 || loaded.Dim != 4 || loaded.VarianceFloor != 1e-3 {
		t.Fatalf("loaded shape %dx%d floor %g", loaded.NumComponents(), loaded.Dim, loaded.VarianceFloor)
	}
	x := []float64{0.1, -0.2, 0.3, 1}
	if a, b := g.LogProb(x), loaded.LogProb(x); math.Abs(a-b) > 1e-12 {
		t.Errorf("LogProb before=%f after=%f", a, b)
	}
}

func TestStatsSaveLoad(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	g := randomGMM(rng, 2, 3)
	xs, _ := randomFrames(rng, 20, 3)
	s, err := g.Statistics(xs)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := s.Save(&buf); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadStats(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if err := loaded.Validate(2, 3); err != nil {
		t.Fatal(err)
	}
	if loaded.T != s.T || loaded.LogLikelihood != s.LogLikelihood || loaded.SumPxx[1][2] != s.SumPxx[1][2] {
		t.Errorf("stats differ after round trip")
	}
}

func TestLoadGarbage(t *testing.T) {
	if _, err := Load(bytes.NewReader([]byte{0xc1})); err == nil {
		t.Error("expected decode error")
	}
}
