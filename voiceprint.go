// Package voiceprint enrols and verifies speakers with a Joint Factor
// Analysis model trained on top of a universal background GMM.
package voiceprint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ieee0824/voiceprint-go/gmm"
	"github.com/ieee0824/voiceprint-go/jfa"
	"github.com/ieee0824/voiceprint-go/store"
)

// ErrNoSessions is returned when enrolling a speaker without audio.
var ErrNoSessions = errors.New("voiceprint: no enrolment sessions")

// DefaultEnrollIterations is the number of y, x, z refresh rounds per enrolment.
const DefaultEnrollIterations = 5

// System is the top-level speaker verifier.
type System struct {
	UBM   *gmm.GMM
	Base  *jfa.BaseMachine
	Store store.Store

	EnrollIterations int
	logger           *slog.Logger

	mu      sync.Mutex // guards trainer
	trainer *jfa.BaseTrainer
}

// Option configures a System.
type Option func(*System)

// WithEnrollIterations sets the number of enrolment iterations.
func WithEnrollIterations(n int) Option {
	return func(s *System) {
		s.EnrollIterations = n
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *System) {
		s.logger = l
	}
}

// New creates a System. ubm must have the shape of the UBM inside base; a
// nil ubm uses base's.
func New(ubm *gmm.GMM, base *jfa.BaseMachine, st store.Store, opts ...Option) (*System, error) {
	if base == nil || st == nil {
		return nil, errors.New("voiceprint: base machine and store are required")
	}
	if ubm == nil {
		ubm = base.UBM()
	}
	if err := ubm.SameShape(base.UBM()); err != nil {
		return nil, fmt.Errorf("voiceprint: ubm: %w", err)
	}
	s := &System{
		UBM:              ubm,
		Base:             base,
		Store:            st,
		EnrollIterations: DefaultEnrollIterations,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.EnrollIterations < 1 {
		return nil, fmt.Errorf("voiceprint: enrol iterations must be positive, got %d", s.EnrollIterations)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.trainer = jfa.NewBaseTrainer(base)
	s.trainer.Logger = s.logger
	return s, nil
}

// Open creates a System from a saved base machine. The UBM is the one
// embedded in the base machine.
func Open(basePath string, st store.Store, opts ...Option) (*System, error) {
	f, err := os.Open(basePath)
	if err != nil {
		return nil, fmt.Errorf("open base machine: %w", err)
	}
	defer f.Close()
	base, err := jfa.LoadBaseMachine(f)
	if err != nil {
		return nil, fmt.Errorf("load base machine: %w", err)
	}
	return New(nil, base, st, opts...)
}

// Enroll estimates the speaker factors of id from one or more sessions of
// feature frames and stores them, replacing any previous enrolment.
func (s *System) Enroll(ctx context.Context, id string, sessions [][][]float64) error {
	if len(sessions) == 0 {
		return ErrNoSessions
	}
	stats := make([]*gmm.Stats, len(sessions))
	for h, frames := range sessions {
		st, err := s.UBM.Statistics(frames)
		if err != nil {
			return fmt.Errorf("voiceprint: session %d: %w", h, err)
		}
		stats[h] = st
	}

	m := jfa.NewMachine(s.Base)
	s.mu.Lock()
	err := jfa.NewTrainer(s.trainer).Enroll(m, stats, s.EnrollIterations)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("voiceprint: enrol %q: %w", id, err)
	}

	rec := &store.Record{
		ID:       id,
		Y:        m.Y,
		Z:        m.Z,
		Sessions: len(sessions),
		Enrolled: time.Now().UTC(),
	}
	if err := s.Store.Put(ctx, rec); err != nil {
		return err
	}
	s.logger.Info("enrolled", "speaker", id, "sessions", len(sessions))
	return nil
}

// Machine returns the enrolled machine of a speaker.
func (s *System) Machine(ctx context.Context, id string) (*jfa.Machine, error) {
	rec, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m := jfa.NewMachine(s.Base)
	if len(rec.Y) != len(m.Y) || len(rec.Z) != len(m.Z) {
		return nil, fmt.Errorf("voiceprint: record %q does not match the base machine: %w",
			id, jfa.ErrDimensionMismatch)
	}
	m.Y, m.Z = rec.Y, rec.Z
	return m, nil
}

// Score returns the verification score of frames against an enrolled
// speaker. Higher scores favour the claimed identity.
func (s *System) Score(ctx context.Context, id string, frames [][]float64) (float64, error) {
	m, err := s.Machine(ctx, id)
	if err != nil {
		return 0, err
	}
	st, err := s.UBM.Statistics(frames)
	if err != nil {
		return 0, fmt.Errorf("voiceprint: %w", err)
	}
	score, err := m.Forward(st)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("scored", "speaker", id, "frames", len(frames), "score", score)
	return score, nil
}

// Forget removes a speaker.
func (s *System) Forget(ctx context.Context, id string) error {
	return s.Store.Delete(ctx, id)
}

// Speakers lists the enrolled speakers.
func (s *System) Speakers(ctx context.Context) ([]string, error) {
	return s.Store.List(ctx)
}
