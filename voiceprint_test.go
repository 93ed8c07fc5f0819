package voiceprint

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/ieee0824/voiceprint-go/gmm"
	"github.com/ieee0824/voiceprint-go/jfa"
	"github.com/ieee0824/voiceprint-go/store"
)

func testBase(t *testing.T) *jfa.BaseMachine {
	t.Helper()
	const c, dim = 4, 3
	means := make([][]float64, c)
	vars := make([][]float64, c)
	weights := make([]float64, c)
	for i := range means {
		means[i] = []float64{10 * float64(i), -10 * float64(i), 5 * float64(i)}
		vars[i] = []float64{1, 1, 1}
		weights[i] = 1 / float64(c)
	}
	ubm, err := gmm.NewWithParams(means, vars, weights)
	if err != nil {
		t.Fatal(err)
	}
	base, err := jfa.NewBaseMachine(ubm, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := jfa.NewBaseTrainer(base).InitializeVDISV(4); err != nil {
		t.Fatal(err)
	}
	return base
}

// speech draws frames around the UBM means shifted by offset.
func speech(rng *rand.Rand, ubm *gmm.GMM, offset float64, n int) [][]float64 {
	frames := make([][]float64, n)
	for f := range frames {
		c := rng.Intn(ubm.NumComponents())
		frames[f] = make([]float64, ubm.Dim)
		for d := range frames[f] {
			frames[f][d] = ubm.Components[c].Mean[d] + offset + 0.3*rng.NormFloat64()
		}
	}
	return frames
}

func TestEnrollScoreRanking(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(11))
	base := testBase(t)
	sys, err := New(nil, base, store.NewMemory(), WithEnrollIterations(4))
	if err != nil {
		t.Fatal(err)
	}
	ubm := sys.UBM

	if err := sys.Enroll(ctx, "alice", [][][]float64{speech(rng, ubm, 1, 80), speech(rng, ubm, 1, 80)}); err != nil {
		t.Fatal(err)
	}
	if err := sys.Enroll(ctx, "bob", [][][]float64{speech(rng, ubm, -1, 80)}); err != nil {
		t.Fatal(err)
	}

	probe := speech(rng, ubm, 1, 80)
	target, err := sys.Score(ctx, "alice", probe)
	if err != nil {
		t.Fatal(err)
	}
	impostor, err := sys.Score(ctx, "bob", probe)
	if err != nil {
		t.Fatal(err)
	}
	if target <= impostor {
		t.Errorf("target score %f <= impostor score %f", target, impostor)
	}

	ids, err := sys.Speakers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "alice" || ids[1] != "bob" {
		t.Errorf("Speakers = %v", ids)
	}

	if err := sys.Forget(ctx, "bob"); err != nil {
		t.Fatal(err)
	}
	if _, err := sys.Score(ctx, "bob", probe); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Score after Forget = %v, want ErrNotFound", err)
	}
}

func TestEnrollRecord(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(2))
	st := store.NewMemory()
	sys, err := New(nil, testBase(t), st)
	if err != nil {
		t.Fatal(err)
	}
	sessions := [][][]float64{speech(rng, sys.UBM, 0.5, 40), speech(rng, sys.UBM, 0.5, 40), speech(rng, sys.UBM, 0.5, 40)}
	if err := sys.Enroll(ctx, "carol", sessions); err != nil {
		t.Fatal(err)
	}
	rec, err := st.Get(ctx, "carol")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Sessions != 3 {
		t.Errorf("Sessions = %d, want 3", rec.Sessions)
	}
	if len(rec.Y) != sys.Base.RankV() || len(rec.Z) != sys.Base.SupervectorLen() {
		t.Errorf("factor lengths y=%d z=%d", len(rec.Y), len(rec.Z))
	}
	if rec.Enrolled.IsZero() {
		t.Error("Enrolled not set")
	}
}

func TestEnrollErrors(t *testing.T) {
	ctx := context.Background()
	sys, err := New(nil, testBase(t), store.NewMemory())
	if err != nil {
		t.Fatal(err)
	}
	if err := sys.Enroll(ctx, "x", nil); !errors.Is(err, ErrNoSessions) {
		t.Errorf("Enroll(nil) = %v, want ErrNoSessions", err)
	}
	bad := [][][]float64{{{1, 2}}}
	if err := sys.Enroll(ctx, "x", bad); !errors.Is(err, gmm.ErrDimensionMismatch) {
		t.Errorf("Enroll(bad dim) = %v, want ErrDimensionMismatch", err)
	}
	if _, err := sys.Score(ctx, "nobody", [][]float64{{0, 0, 0}}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Score(unknown) = %v, want ErrNotFound", err)
	}
}

func TestScoreMismatchedRecord(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	sys, err := New(nil, testBase(t), st)
	if err != nil {
		t.Fatal(err)
	}
	st.Put(ctx, &store.Record{ID: "old", Y: []float64{1, 2}, Z: []float64{1}})
	if _, err := sys.Score(ctx, "old", [][]float64{{0, 0, 0}}); !errors.Is(err, jfa.ErrDimensionMismatch) {
		t.Errorf("Score = %v, want ErrDimensionMismatch", err)
	}
}

func TestNewValidation(t *testing.T) {
	base := testBase(t)
	if _, err := New(nil, nil, store.NewMemory()); err == nil {
		t.Error("nil base should fail")
	}
	if _, err := New(nil, base, nil); err == nil {
		t.Error("nil store should fail")
	}
	if _, err := New(gmm.New(2, 3), base, store.NewMemory()); !errors.Is(err, gmm.ErrDimensionMismatch) {
		t.Errorf("foreign UBM: err = %v", err)
	}
	if _, err := New(nil, base, store.NewMemory(), WithEnrollIterations(0)); err == nil {
		t.Error("zero enrol iterations should fail")
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "base.msgpack")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := testBase(t).Save(f); err != nil {
		t.Fatal(err)
	}
	f.Close()

	sys, err := Open(path, store.NewMemory())
	if err != nil {
		t.Fatal(err)
	}
	if sys.Base.NumComponents() != 4 || sys.UBM.Dim != 3 {
		t.Errorf("loaded shape %dx%d", sys.Base.NumComponents(), sys.UBM.Dim)
	}
	if _, err := Open(filepath.Join(t.TempDir(), "missing"), store.NewMemory()); err == nil {
		t.Error("Open of a missing file should fail")
	}
}
