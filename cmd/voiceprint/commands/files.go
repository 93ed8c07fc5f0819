package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ieee0824/voiceprint-go/gmm"
	"github.com/ieee0824/voiceprint-go/jfa"
)

// readFeatures loads a msgpack [][]float64 feature matrix.
func readFeatures(path string) ([][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var frames [][]float64
	if err := msgpack.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return frames, nil
}

// readAllFeatures concatenates the frames of several feature files.
func readAllFeatures(paths []string) ([][]float64, error) {
	var all [][]float64
	for _, p := range paths {
		frames, err := readFeatures(p)
		if err != nil {
			return nil, err
		}
		all = append(all, frames...)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no frames in %d feature file(s)", len(paths))
	}
	return all, nil
}

func loadGMM(path string) (*gmm.GMM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := gmm.Load(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return g, nil
}

func loadStats(path string) (*gmm.Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := gmm.LoadStats(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return s, nil
}

// create writes through fn into path, removing the file on failure.
func create(path string, fn func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// Manifest lists the statistics files of each training identity. Relative
// paths are resolved against the manifest's directory.
type Manifest struct {
	Identities []Identity `yaml:"identities"`
}

// Identity is one speaker of the training set.
type Identity struct {
	ID       string   `yaml:"id"`
	Sessions []string `yaml:"sessions"`
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range m.Identities {
		for h, s := range m.Identities[i].Sessions {
			if !filepath.IsAbs(s) {
				m.Identities[i].Sessions[h] = filepath.Join(dir, s)
			}
		}
	}
	return &m, nil
}

// loadDataset reads every statistics file of the manifest.
func loadDataset(m *Manifest) (*jfa.Dataset, error) {
	ids := make([][]*gmm.Stats, len(m.Identities))
	for i, id := range m.Identities {
		for _, p := range id.Sessions {
			s, err := loadStats(p)
			if err != nil {
				return nil, fmt.Errorf("identity %q: %w", id.ID, err)
			}
			ids[i] = append(ids[i], s)
		}
	}
	return jfa.NewDataset(ids)
}
