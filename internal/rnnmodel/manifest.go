// Package rnnmodel implements the RNN collaborator specified by the
// denoising core: given a 42-element feature vector and prior hidden
// state, it returns 22 per-band gains and a voice-activity probability,
// and advances its own hidden state.
package rnnmodel

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"
)

// supportedFormat is the range of model manifest format_version strings
// this engine understands. A model built for a newer, incompatible layout
// is rejected at load time rather than silently misread.
var supportedFormat = mustConstraint(">= 1.0.0, < 2.0.0")

func mustConstraint(s string) version.Constraints {
	c, err := version.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Manifest describes the shape of a model blob: layer sizes and the
// format version of the blob layout. It is the yaml-described sibling of
// the raw weight blob, pairing a binary asset with a small yaml config.
type Manifest struct {
	FormatVersion  string `yaml:"format_version"`
	Name           string `yaml:"name"`
	InputSize      int    `yaml:"input_size"`
	DenseSize      int    `yaml:"dense_size"`
	VadGRUSize     int    `yaml:"vad_gru_size"`
	NoiseGRUSize   int    `yaml:"noise_gru_size"`
	DenoiseGRUSize int    `yaml:"denoise_gru_size"`
	NBBands        int    `yaml:"nb_bands"`
}

func parseManifest(raw []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("rnnmodel: parse manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

func (m Manifest) validate() error {
	v, err := version.NewVersion(m.FormatVersion)
	if err != nil {
		return fmt.Errorf("rnnmodel: invalid format_version %q: %w", m.FormatVersion, err)
	}
	if !supportedFormat.Check(v) {
		return fmt.Errorf("rnnmodel: model format_version %s not supported by this engine (want %s)", m.FormatVersion, supportedFormat)
	}
	if m.InputSize <= 0 || m.DenseSize <= 0 || m.VadGRUSize <= 0 ||
		m.NoiseGRUSize <= 0 || m.DenoiseGRUSize <= 0 || m.NBBands <= 0 {
		return fmt.Errorf("rnnmodel: manifest %q has a non-positive layer size", m.Name)
	}
	return nil
}

// floatCount returns the number of float32 values the manifest's layout
// requires, in the order newDenseGRU consumes them.
func (m Manifest) floatCount() int {
	gateParams := func(inputSize, units int) int {
		return inputSize*units + units*units + units
	}
	vadGRUInput := m.DenseSize
	noiseGRUInput := m.DenseSize + m.VadGRUSize + m.InputSize
	denoiseGRUInput := m.VadGRUSize + m.NoiseGRUSize + m.InputSize

	n := m.InputSize*m.DenseSize + m.DenseSize // input dense
	n += 3 * gateParams(vadGRUInput, m.VadGRUSize)
	n += 3 * gateParams(noiseGRUInput, m.NoiseGRUSize)
	n += 3 * gateParams(denoiseGRUInput, m.DenoiseGRUSize)
	n += m.DenoiseGRUSize*m.NBBands + m.NBBands // denoise output
	n += m.VadGRUSize*1 + 1                     // vad output
	return n
}

func readFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rnnmodel: %w", err)
	}
	return b, nil
}
