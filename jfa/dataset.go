package jfa

import (
	"fmt"

	"github.com/ieee0824/voiceprint-go/gmm"
)

// Dataset groups per-session statistics by identity: Dataset.Session(i, h)
// is session h of identity i. All statistics share one shape.
type Dataset struct {
	sessions [][]*gmm.Stats
	c, dim   int
}

// NewDataset validates and wraps statistics grouped by identity.
// The outer slices are copied; the statistics themselves are shared.
func NewDataset(identities [][]*gmm.Stats) (*Dataset, error) {
	if len(identities) == 0 {
		return nil, ErrEmptyDataset
	}
	ds := &Dataset{sessions: make([][]*gmm.Stats, len(identities))}
	for i, sessions := range identities {
		if len(sessions) == 0 {
			return nil, fmt.Errorf("%w: identity %d has no sessions", ErrEmptyDataset, i)
		}
		ds.sessions[i] = make([]*gmm.Stats, len(sessions))
		for h, s := range sessions {
			if s == nil {
				return nil, fmt.Errorf("%w: identity %d session %d is nil", ErrEmptyDataset, i, h)
			}
			if i == 0 && h == 0 {
				ds.c, ds.dim = s.NumComponents(), s.Dim()
			}
			if err := s.Validate(ds.c, ds.dim); err != nil {
				return nil, fmt.Errorf("identity %d session %d: %w", i, h, err)
			}
			ds.sessions[i][h] = s
		}
	}
	return ds, nil
}

// NumIdentities returns the number of identities.
func (ds *Dataset) NumIdentities() int { return len(ds.sessions) }

// NumSessions returns the number of sessions of identity i.
func (ds *Dataset) NumSessions(i int) int { return len(ds.sessions[i]) }

// Session returns session h of identity i.
func (ds *Dataset) Session(i, h int) *gmm.Stats { return ds.sessions[i][h] }

// NumComponents returns the number of GMM components of the statistics.
func (ds *Dataset) NumComponents() int { return ds.c }

// Dim returns the feature dimension of the statistics.
func (ds *Dataset) Dim() int { return ds.dim }
