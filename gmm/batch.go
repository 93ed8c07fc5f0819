package gmm

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// BatchWorkspace holds pre-allocated buffers for batch scoring.
type BatchWorkspace struct {
	Xsq   []float64 // T * D
	Term1 []float64 // T * K
	LP    []float64 // T * K weighted component log densities
}

// NewBatchWorkspace creates a workspace for T frames, D dimensions, K mixture components.
func NewBatchWorkspace(T, D, K int) *BatchWorkspace {
	return &BatchWorkspace{
		Xsq:   make([]float64, T*D),
		Term1: make([]float64, T*K),
		LP:    make([]float64, T*K),
	}
}

// Ensure grows workspace buffers if needed.
func (ws *BatchWorkspace) Ensure(T, D, K int) {
	ws.Xsq = resize(ws.Xsq, T*D)
	ws.Term1 = resize(ws.Term1, T*K)
	ws.LP = resize(ws.LP, T*K)
}

// componentLogProbs fills ws.LP with log(w_k) + log N(x_t; μ_k, σ_k) for
// every frame t and component k.
//
//	maha(x,μ,invVar) = Σ(x²·invVar) - 2·Σ(x·μ·invVar) + Σ(μ²·invVar)
//	term1 = X² @ invVar^T       (T×D) × (K×D)^T → (T×K)
//	lp    = X  @ meanInvVar^T   (T×D) × (K×D)^T → (T×K)
//	lp[t,k] += -0.5*term1[t,k] + bias[k]
func (g *GMM) componentLogProbs(xs []float64, T int, ws *BatchWorkspace) {
	K := len(g.Components)
	D := g.Dim
	ws.Ensure(T, D, K)
	if T == 0 || K == 0 {
		return
	}

	for i, v := range xs[:T*D] {
		ws.Xsq[i] = v * v
	}

	invVar := blas64.General{Rows: K, Cols: D, Stride: D, Data: g.packedInvVar}
	meanInvVar := blas64.General{Rows: K, Cols: D, Stride: D, Data: g.packedMeanInvVar}
	term1 := blas64.General{Rows: T, Cols: K, Stride: K, Data: ws.Term1}
	lp := blas64.General{Rows: T, Cols: K, Stride: K, Data: ws.LP}

	blas64.Gemm(blas.NoTrans, blas.Trans, 1,
		blas64.General{Rows: T, Cols: D, Stride: D, Data: ws.Xsq}, invVar, 0, term1)
	blas64.Gemm(blas.NoTrans, blas.Trans, 1,
		blas64.General{Rows: T, Cols: D, Stride: D, Data: xs[:T*D]}, meanInvVar, 0, lp)

	for t := 0; t < T; t++ {
		row := t * K
		for k := 0; k < K; k++ {
			ws.LP[row+k] += -0.5*ws.Term1[row+k] + g.packedBias[k]
		}
	}
}

// LogProbBatch computes log p(x_t | GMM) for T frames.
// xs is a flat [T*Dim] array of feature vectors (row-major); dst is [T].
func (g *GMM) LogProbBatch(xs []float64, T int, dst []float64, ws *BatchWorkspace) {
	g.componentLogProbs(xs, T, ws)
	K := len(g.Components)
	for t := 0; t < T; t++ {
		dst[t] = logSumExp(ws.LP[t*K : (t+1)*K])
	}
}

// AccStatisticsBatch accumulates T frames into s and returns their summed log-likelihood.
func (g *GMM) AccStatisticsBatch(xs []float64, T int, s *Stats, ws *BatchWorkspace) float64 {
	g.componentLogProbs(xs, T, ws)
	K := len(g.Components)
	D := g.Dim
	total := 0.0
	for t := 0; t < T; t++ {
		total += accumulateFrame(xs[t*D:(t+1)*D], ws.LP[t*K:(t+1)*K], s)
	}
	return total
}
