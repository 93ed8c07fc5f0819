package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var history = []float64{-12.5, -9.75, -9.1, -9.05}

func TestSaveConvergence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ubm.png")
	if err := SaveConvergence(path, "UBM", history); err != nil {
		t.Fatal(err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() == 0 {
		t.Error("empty image")
	}
}

func TestWriteConvergenceSVG(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteConvergence(&buf, "svg", "MAP", history); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "<svg") {
		t.Error("output is not SVG")
	}
}

func TestConvergenceEmpty(t *testing.T) {
	if _, err := Convergence("x", nil); !errors.Is(err, ErrNoHistory) {
		t.Errorf("Convergence(nil) = %v, want ErrNoHistory", err)
	}
	if err := SaveConvergence(filepath.Join(t.TempDir(), "x.png"), "x", nil); !errors.Is(err, ErrNoHistory) {
		t.Errorf("SaveConvergence(nil) = %v, want ErrNoHistory", err)
	}
}

func TestConvergenceSingleIteration(t *testing.T) {
	p, err := Convergence("one", []float64{-3})
	if err != nil {
		t.Fatal(err)
	}
	if p.Title.Text != "one" {
		t.Errorf("title = %q", p.Title.Text)
	}
}
