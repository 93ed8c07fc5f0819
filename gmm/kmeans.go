package gmm

import (
	"fmt"
	"math"

	"github.com/ieee0824/voiceprint-go/kmeans"
)

// FromKMeans builds a GMM whose means are the K-Means centroids and whose
// variances and weights are the per-cluster statistics of data. The GMM
// uses varianceFloor, which also floors the initial variances of empty or
// single-sample clusters. Empty clusters get a weight of zero.
func FromKMeans(km *kmeans.Machine, data [][]float64, varianceFloor float64) (*GMM, error) {
	if !(varianceFloor > 0) || math.IsInf(varianceFloor, 0) {
		return nil, fmt.Errorf("%w: variance floor %g", ErrInvalidConfig, varianceFloor)
	}
	if km.NumClusters() == 0 {
		return nil, fmt.Errorf("%w: no components", ErrDimensionMismatch)
	}
	variances, weights, err := km.VariancesAndWeights(data)
	if err != nil {
		return nil, err
	}
	g := New(km.NumClusters(), km.Dim())
	g.VarianceFloor = varianceFloor
	if err := g.SetMeans(km.Means); err != nil {
		return nil, err
	}
	if err := g.SetVariances(variances); err != nil {
		return nil, err
	}
	if err := g.SetWeights(weights); err != nil {
		return nil, err
	}
	return g, nil
}
