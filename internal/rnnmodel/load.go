package rnnmodel

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
)

//go:embed data/default_model.yaml
var defaultManifestYAML []byte

//go:embed data/default_model.bin
var defaultWeightsBin []byte

// DefaultModel builds the Runtime backed by the engine's embedded
// placeholder model (see data/default_model.yaml). It never fails: the
// embedded pair is validated once, at package init.
func DefaultModel() Runtime {
	return newDenseGRU(defaultManifest, defaultWeights)
}

var (
	defaultManifest Manifest
	defaultWeights  []float32
)

func init() {
	m, err := parseManifest(defaultManifestYAML)
	if err != nil {
		panic(fmt.Sprintf("rnnmodel: embedded default manifest is invalid: %v", err))
	}
	w, err := decodeWeights(defaultWeightsBin, m.floatCount())
	if err != nil {
		panic(fmt.Sprintf("rnnmodel: embedded default weights are invalid: %v", err))
	}
	defaultManifest, defaultWeights = m, w
}

// LoadModel loads a manifest/weights pair from disk: manifestPath points
// at a yaml Manifest, weightsPath at its matching flat float32 blob. A
// model whose format_version this engine does not understand, or whose
// blob length does not match the manifest's declared shape, is rejected
// here rather than partway through a stream.
func LoadModel(manifestPath, weightsPath string) (Runtime, error) {
	rawManifest, err := readFile(manifestPath)
	if err != nil {
		return nil, err
	}
	m, err := parseManifest(rawManifest)
	if err != nil {
		return nil, err
	}
	rawWeights, err := readFile(weightsPath)
	if err != nil {
		return nil, err
	}
	w, err := decodeWeights(rawWeights, m.floatCount())
	if err != nil {
		return nil, fmt.Errorf("rnnmodel: loading %s: %w", weightsPath, err)
	}
	return newDenseGRU(m, w), nil
}

func decodeWeights(raw []byte, wantFloats int) ([]float32, error) {
	if len(raw) != wantFloats*4 {
		return nil, fmt.Errorf("weight blob has %d bytes, manifest shape requires %d", len(raw), wantFloats*4)
	}
	out := make([]float32, wantFloats)
	for i := range out {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}
