package jfa

import (
	"errors"
	"fmt"

	"github.com/ieee0824/voiceprint-go/gmm"
)

var (
	// ErrDimensionMismatch wraps gmm.ErrDimensionMismatch for JFA shapes
	// (component count, feature dimension, ranks, identity/session layout).
	ErrDimensionMismatch = fmt.Errorf("jfa: %w", gmm.ErrDimensionMismatch)

	// ErrEmptyDataset is returned for datasets without identities or with an
	// identity that has no sessions.
	ErrEmptyDataset = errors.New("jfa: empty dataset")

	// ErrNotInitialized is returned when an update runs before the factors
	// or accumulators it depends on exist.
	ErrNotInitialized = errors.New("jfa: trainer not initialized")
)
