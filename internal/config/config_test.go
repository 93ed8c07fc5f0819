package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ieee0824/voiceprint-go/em"
	"github.com/ieee0824/voiceprint-go/gmm"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if c.EM.Threshold != 0.001 || c.EM.MaxIterations != 10 || !c.EM.ComputeLikelihood {
		t.Errorf("EM defaults = %+v", c.EM)
	}
	if c.GMM.VarianceFloor != gmm.DefaultVarianceFloor {
		t.Errorf("VarianceFloor = %v", c.GMM.VarianceFloor)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	src := []byte(`
em:
  max_iterations: 25
gmm:
  update_variances: false
jfa:
  rank_u: 5
store:
  in_memory: true
`)
	c, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if c.EM.MaxIterations != 25 {
		t.Errorf("MaxIterations = %d, want 25", c.EM.MaxIterations)
	}
	if c.EM.Threshold != 0.001 {
		t.Errorf("Threshold = %v, want default 0.001", c.EM.Threshold)
	}
	if c.GMM.UpdateVariances {
		t.Error("UpdateVariances should be overridden to false")
	}
	if !c.GMM.UpdateMeans {
		t.Error("UpdateMeans should keep its default")
	}
	if c.JFA.RankU != 5 || c.JFA.RankV != 2 {
		t.Errorf("JFA ranks = %d/%d, want 5/2", c.JFA.RankU, c.JFA.RankV)
	}
	if !c.BadgerOptions().InMemory {
		t.Error("BadgerOptions().InMemory = false")
	}
	if got := c.EMConfig().MaxIterations; got != 25 {
		t.Errorf("EMConfig().MaxIterations = %d", got)
	}
	if got := c.TrainerConfig(); got.UpdateVariances {
		t.Errorf("TrainerConfig() = %+v", got)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"negative threshold", "em:\n  threshold: -1\n"},
		{"zero floor", "gmm:\n  variance_floor: 0\n"},
		{"alpha above one", "map:\n  alpha: 1.5\n"},
		{"zero rank", "jfa:\n  rank_v: 0\n"},
		{"no clusters", "kmeans:\n  clusters: 0\n"},
		{"no store", "store:\n  dir: \"\"\n"},
		{"unbounded em", "em:\n  max_iterations: 0\n  compute_likelihood: false\n"},
		{"unbounded kmeans", "em:\n  compute_likelihood: false\nkmeans:\n  max_iterations: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.src)); !errors.Is(err, ErrInvalid) {
				t.Errorf("Parse = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestValidateWrapsEMConfigError(t *testing.T) {
	c := Default()
	c.EM.ComputeLikelihood = false
	c.EM.MaxIterations = 0
	err := c.Validate()
	if !errors.Is(err, ErrInvalid) || !errors.Is(err, em.ErrInvalidConfig) {
		t.Errorf("Validate = %v, want ErrInvalid wrapping em.ErrInvalidConfig", err)
	}

	c = Default()
	c.KMeans.MaxIterations = 0
	if err := c.Validate(); err != nil {
		t.Errorf("kmeans.max_iterations 0 with likelihood check: Validate = %v", err)
	}
}

func TestParseMalformed(t *testing.T) {
	if _, err := Parse([]byte("em: [1, 2")); err == nil {
		t.Error("malformed YAML should fail")
	}
}

func TestAdaptation(t *testing.T) {
	c := Default()
	if _, ok := c.Adaptation().(gmm.RelevanceAdaptation); !ok {
		t.Errorf("default adaptation = %T, want RelevanceAdaptation", c.Adaptation())
	}
	c.MAP.Alpha = 0.3
	a, ok := c.Adaptation().(gmm.FixedAdaptation)
	if !ok || a.Alpha != 0.3 {
		t.Errorf("adaptation = %#v, want FixedAdaptation{0.3}", c.Adaptation())
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voiceprint.yaml")
	if err := os.WriteFile(path, []byte("kmeans:\n  clusters: 8\n"), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.KMeans.Clusters != 8 {
		t.Errorf("Clusters = %d, want 8", c.KMeans.Clusters)
	}
	if c.KMeansEMConfig().MaxIterations != c.KMeans.MaxIterations {
		t.Error("KMeansEMConfig should use kmeans.max_iterations")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of a missing file should fail")
	}
}
