// Package config loads the training and enrolment parameters of the
// voiceprint command from YAML.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/ieee0824/voiceprint-go/em"
	"github.com/ieee0824/voiceprint-go/gmm"
	"github.com/ieee0824/voiceprint-go/store"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid value")

// Config is the root configuration.
type Config struct {
	EM     EM     `yaml:"em"`
	GMM    GMM    `yaml:"gmm"`
	MAP    MAP    `yaml:"map"`
	KMeans KMeans `yaml:"kmeans"`
	JFA    JFA    `yaml:"jfa"`
	Store  Store  `yaml:"store"`
}

// EM holds the iteration parameters shared by every EM run.
type EM struct {
	Threshold         float64 `yaml:"threshold"`
	MaxIterations     int     `yaml:"max_iterations"`
	ComputeLikelihood bool    `yaml:"compute_likelihood"`
}

// GMM holds the M-step update flags.
type GMM struct {
	UpdateMeans             bool    `yaml:"update_means"`
	UpdateVariances         bool    `yaml:"update_variances"`
	UpdateWeights           bool    `yaml:"update_weights"`
	ResponsibilityThreshold float64 `yaml:"responsibility_threshold"`
	VarianceFloor           float64 `yaml:"variance_floor"`
}

// MAP selects the adaptation policy. Alpha > 0 selects fixed adaptation.
type MAP struct {
	RelevanceFactor float64 `yaml:"relevance_factor"`
	Alpha           float64 `yaml:"alpha"`
}

// KMeans configures UBM initialisation.
type KMeans struct {
	Clusters      int   `yaml:"clusters"`
	Seed          int64 `yaml:"seed"`
	MaxIterations int   `yaml:"max_iterations"`
}

// JFA configures base machine training and enrolment.
type JFA struct {
	RankU            int     `yaml:"rank_u"`
	RankV            int     `yaml:"rank_v"`
	Iterations       int     `yaml:"iterations"`
	RelevanceFactor  float64 `yaml:"relevance_factor"`
	Seed             int64   `yaml:"seed"`
	EnrollIterations int     `yaml:"enroll_iterations"`
}

// Store configures the speaker store.
type Store struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
}

// Default returns the built-in configuration.
func Default() *Config {
	emc := em.DefaultConfig()
	gc := gmm.DefaultTrainerConfig()
	return &Config{
		EM: EM{
			Threshold:         emc.ConvergenceThreshold,
			MaxIterations:     emc.MaxIterations,
			ComputeLikelihood: emc.ComputeLikelihood,
		},
		GMM: GMM{
			UpdateMeans:             gc.UpdateMeans,
			UpdateVariances:         gc.UpdateVariances,
			UpdateWeights:           gc.UpdateWeights,
			ResponsibilityThreshold: gc.ResponsibilityThreshold,
			VarianceFloor:           gmm.DefaultVarianceFloor,
		},
		MAP:    MAP{RelevanceFactor: 4},
		KMeans: KMeans{Clusters: 64, Seed: 1, MaxIterations: 20},
		JFA: JFA{
			RankU:            2,
			RankV:            2,
			Iterations:       10,
			RelevanceFactor:  4,
			Seed:             1,
			EnrollIterations: 5,
		},
		Store: Store{Dir: "voiceprints"},
	}
}

// Load reads a YAML file on top of Default. Keys absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	checks := []struct {
		ok   bool
		name string
		v    any
	}{
		{c.EM.Threshold >= 0 && !math.IsNaN(c.EM.Threshold), "em.threshold", c.EM.Threshold},
		{c.EM.MaxIterations >= 0, "em.max_iterations", c.EM.MaxIterations},
		{c.GMM.ResponsibilityThreshold >= 0, "gmm.responsibility_threshold", c.GMM.ResponsibilityThreshold},
		{c.GMM.VarianceFloor > 0, "gmm.variance_floor", c.GMM.VarianceFloor},
		{c.MAP.RelevanceFactor >= 0, "map.relevance_factor", c.MAP.RelevanceFactor},
		{c.MAP.Alpha >= 0 && c.MAP.Alpha <= 1, "map.alpha", c.MAP.Alpha},
		{c.KMeans.Clusters >= 1, "kmeans.clusters", c.KMeans.Clusters},
		{c.KMeans.MaxIterations >= 0, "kmeans.max_iterations", c.KMeans.MaxIterations},
		{c.JFA.RankU >= 1, "jfa.rank_u", c.JFA.RankU},
		{c.JFA.RankV >= 1, "jfa.rank_v", c.JFA.RankV},
		{c.JFA.Iterations >= 0, "jfa.iterations", c.JFA.Iterations},
		{c.JFA.RelevanceFactor > 0, "jfa.relevance_factor", c.JFA.RelevanceFactor},
		{c.JFA.EnrollIterations >= 1, "jfa.enroll_iterations", c.JFA.EnrollIterations},
		{c.Store.InMemory || c.Store.Dir != "", "store.dir", c.Store.Dir},
	}
	for _, chk := range checks {
		if !chk.ok {
			return fmt.Errorf("%w: %s = %v", ErrInvalid, chk.name, chk.v)
		}
	}
	// em.max_iterations 0 with compute_likelihood false never stops.
	if err := c.EMConfig().Validate(); err != nil {
		return fmt.Errorf("%w: em: %w", ErrInvalid, err)
	}
	if err := c.KMeansEMConfig().Validate(); err != nil {
		return fmt.Errorf("%w: kmeans: %w", ErrInvalid, err)
	}
	return nil
}

// EMConfig returns the EM driver parameters.
func (c *Config) EMConfig() em.Config {
	return em.Config{
		ConvergenceThreshold: c.EM.Threshold,
		MaxIterations:        c.EM.MaxIterations,
		ComputeLikelihood:    c.EM.ComputeLikelihood,
	}
}

// KMeansEMConfig returns the EM parameters used for K-Means initialisation.
func (c *Config) KMeansEMConfig() em.Config {
	cfg := c.EMConfig()
	cfg.MaxIterations = c.KMeans.MaxIterations
	return cfg
}

// TrainerConfig returns the GMM M-step flags.
func (c *Config) TrainerConfig() gmm.TrainerConfig {
	return gmm.TrainerConfig{
		UpdateMeans:             c.GMM.UpdateMeans,
		UpdateVariances:         c.GMM.UpdateVariances,
		UpdateWeights:           c.GMM.UpdateWeights,
		ResponsibilityThreshold: c.GMM.ResponsibilityThreshold,
	}
}

// Adaptation returns the MAP adaptation policy.
func (c *Config) Adaptation() gmm.Adaptation {
	if c.MAP.Alpha > 0 {
		return gmm.FixedAdaptation{Alpha: c.MAP.Alpha}
	}
	return gmm.RelevanceAdaptation{Factor: c.MAP.RelevanceFactor}
}

// BadgerOptions returns the speaker store options.
func (c *Config) BadgerOptions() store.BadgerOptions {
	return store.BadgerOptions{Dir: c.Store.Dir, InMemory: c.Store.InMemory}
}
