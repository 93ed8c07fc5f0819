package gmm

import "errors"

var (
	// ErrDimensionMismatch is returned when component counts or feature
	// dimensionality disagree between a machine, a prior and statistics.
	ErrDimensionMismatch = errors.New("gmm: dimension mismatch")

	// ErrNoPrior is returned by MAP initialization when no prior GMM is attached.
	ErrNoPrior = errors.New("gmm: no prior GMM attached")

	// ErrNoData is returned when training is attempted on an empty sample set.
	ErrNoData = errors.New("gmm: no training data")

	// ErrInvalidConfig is returned for out-of-range trainer options.
	ErrInvalidConfig = errors.New("gmm: invalid configuration")
)
