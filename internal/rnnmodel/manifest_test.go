package rnnmodel

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func validManifestYAML() []byte {
	return []byte(`
format_version: "1.0.0"
name: "test-model"
input_size: 42
dense_size: 24
vad_gru_size: 24
noise_gru_size: 48
denoise_gru_size: 96
nb_bands: 22
`)
}

func TestParseManifestValid(t *testing.T) {
	m, err := parseManifest(validManifestYAML())
	if err != nil {
		t.Fatalf("parseManifest: %v", err)
	}
	if m.InputSize != 42 || m.NBBands != 22 {
		t.Errorf("unexpected manifest: %+v", m)
	}
}

func TestParseManifestRejectsIncompatibleFormatVersion(t *testing.T) {
	raw := []byte(`
format_version: "2.0.0"
name: "future-model"
input_size: 42
dense_size: 24
vad_gru_size: 24
noise_gru_size: 48
denoise_gru_size: 96
nb_bands: 22
`)
	if _, err := parseManifest(raw); err == nil {
		t.Fatal("expected error for format_version 2.0.0, got nil")
	}
}

func TestParseManifestRejectsNonPositiveSizes(t *testing.T) {
	raw := []byte(`
format_version: "1.0.0"
name: "broken"
input_size: 0
dense_size: 24
vad_gru_size: 24
noise_gru_size: 48
denoise_gru_size: 96
nb_bands: 22
`)
	if _, err := parseManifest(raw); err == nil {
		t.Fatal("expected error for zero input_size, got nil")
	}
}

func TestManifestFloatCountMatchesEmbeddedDefault(t *testing.T) {
	m, err := parseManifest(validManifestYAML())
	if err != nil {
		t.Fatalf("parseManifest: %v", err)
	}
	if got, want := m.floatCount(), defaultManifest.floatCount(); got != want {
		t.Errorf("floatCount() = %d, want %d (matching embedded default manifest's shape)", got, want)
	}
}

func TestLoadModelRoundTrip(t *testing.T) {
	m, err := parseManifest(validManifestYAML())
	if err != nil {
		t.Fatalf("parseManifest: %v", err)
	}

	n := m.floatCount()
	raw := make([]byte, n*4)
	for i := 0; i < n; i++ {
		bits := math.Float32bits(float32(i%7) * 0.01)
		binary.LittleEndian.PutUint32(raw[i*4:i*4+4], bits)
	}

	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "model.yaml")
	weightsPath := filepath.Join(dir, "model.bin")
	if err := os.WriteFile(manifestPath, validManifestYAML(), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if err := os.WriteFile(weightsPath, raw, 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}

	rt, err := LoadModel(manifestPath, weightsPath)
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}

	var features [42]float32
	gains, vad := rt.Eval(features)
	for i, g := range gains {
		if g < 0 || g > 1 {
			t.Errorf("gains[%d] = %v, want in [0,1]", i, g)
		}
	}
	if vad < 0 || vad > 1 {
		t.Errorf("vadProb = %v, want in [0,1]", vad)
	}
}

func TestLoadModelRejectsShortWeights(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "model.yaml")
	weightsPath := filepath.Join(dir, "model.bin")
	if err := os.WriteFile(manifestPath, validManifestYAML(), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if err := os.WriteFile(weightsPath, []byte{0, 1, 2, 3}, 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}
	if _, err := LoadModel(manifestPath, weightsPath); err == nil {
		t.Fatal("expected error for undersized weight blob, got nil")
	}
}

func TestDefaultModelEvalStaysBounded(t *testing.T) {
	rt := DefaultModel()
	var features [42]float32
	for i := range features {
		features[i] = float32(i%5) - 2
	}
	gains, vad := rt.Eval(features)
	for i, g := range gains {
		if g < 0 || g > 1 {
			t.Errorf("gains[%d] = %v, want in [0,1]", i, g)
		}
	}
	if vad < 0 || vad > 1 {
		t.Errorf("vadProb = %v, want in [0,1]", vad)
	}
	rt.Reset()
}
