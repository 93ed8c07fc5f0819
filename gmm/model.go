package gmm

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// serializable types for msgpack encoding
type serializedGMM struct {
	Dim           int                  `msgpack:"dim"`
	VarianceFloor float64              `msgpack:"variance_floor"`
	Components    []serializedGaussian `msgpack:"components"`
}

type serializedGaussian struct {
	Mean     []float64 `msgpack:"mean"`
	Variance []float64 `msgpack:"variance"`
	Weight   float64   `msgpack:"weight"`
}

type serializedStats struct {
	T             int         `msgpack:"t"`
	LogLikelihood float64     `msgpack:"log_likelihood"`
	N             []float64   `msgpack:"n"`
	SumPx         [][]float64 `msgpack:"sum_px"`
	SumPxx        [][]float64 `msgpack:"sum_pxx"`
}

// Save serializes the GMM to a writer using msgpack encoding.
func (g *GMM) Save(w io.Writer) error {
	sg := serializedGMM{Dim: g.Dim, VarianceFloor: g.VarianceFloor}
	for _, c := range g.Components {
		sg.Components = append(sg.Components, serializedGaussian{
			Mean:     c.Mean,
			Variance: c.Variance,
			Weight:   c.Weight,
		})
	}
	return msgpack.NewEncoder(w).Encode(&sg)
}

// Load deserializes a GMM from a reader.
func Load(r io.Reader) (*GMM, error) {
	var sg serializedGMM
	if err := msgpack.NewDecoder(r).Decode(&sg); err != nil {
		return nil, fmt.Errorf("gmm: decode: %w", err)
	}
	g := &GMM{Dim: sg.Dim, VarianceFloor: sg.VarianceFloor}
	for i, sc := range sg.Components {
		if len(sc.Mean) != sg.Dim || len(sc.Variance) != sg.Dim {
			return nil, fmt.Errorf("%w: component %d in stored model", ErrDimensionMismatch, i)
		}
		g.Components = append(g.Components, Gaussian{
			Mean:     sc.Mean,
			Variance: sc.Variance,
			Weight:   sc.Weight,
		})
	}
	g.Precompute()
	return g, nil
}

// Save serializes the statistics to a writer using msgpack encoding.
func (s *Stats) Save(w io.Writer) error {
	return msgpack.NewEncoder(w).Encode(&serializedStats{
		T:             s.T,
		LogLikelihood: s.LogLikelihood,
		N:             s.N,
		SumPx:         s.SumPx,
		SumPxx:        s.SumPxx,
	})
}

// LoadStats deserializes statistics from a reader.
func LoadStats(r io.Reader) (*Stats, error) {
	var ss serializedStats
	if err := msgpack.NewDecoder(r).Decode(&ss); err != nil {
		return nil, fmt.Errorf("gmm: decode stats: %w", err)
	}
	d := 0
	if len(ss.SumPx) > 0 {
		d = len(ss.SumPx[0])
	}
	s := NewStats(len(ss.N), d)
	s.T = ss.T
	s.LogLikelihood = ss.LogLikelihood
	copy(s.N, ss.N)
	for i := range s.SumPx {
		if i >= len(ss.SumPx) || i >= len(ss.SumPxx) || len(ss.SumPx[i]) != d || len(ss.SumPxx[i]) != d {
			return nil, fmt.Errorf("%w: component %d in stored stats", ErrDimensionMismatch, i)
		}
		copy(s.SumPx[i], ss.SumPx[i])
		copy(s.SumPxx[i], ss.SumPxx[i])
	}
	return s, nil
}
