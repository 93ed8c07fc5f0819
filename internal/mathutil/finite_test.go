package mathutil

import (
	"math"
	"testing"
)

func TestAllFinite(t *testing.T) {
	if !AllFinite([]float64{0, -1, 1e300}) {
		t.Error("finite slice reported as non-finite")
	}
	if AllFinite([]float64{0, math.NaN()}) {
		t.Error("NaN not detected")
	}
	if AllFinite([]float64{math.Inf(-1)}) {
		t.Error("-Inf not detected")
	}
	if IsFinite(math.Inf(1)) {
		t.Error("IsFinite(+Inf) = true")
	}
}
