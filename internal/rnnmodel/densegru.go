package rnnmodel

// Runtime is the RNN gain/VAD evaluator: given the current frame's
// feature vector, it produces per-band gains and a voice-activity
// probability, advancing internal GRU state.
type Runtime interface {
	Eval(features [42]float32) (gains [22]float32, vadProb float32)
	Reset()
}

// DenseGRU is the concrete Runtime: one input dense layer feeding three
// GRU layers (vad, noise, denoise), followed by two small dense output
// heads producing the gain vector and VAD probability.
type DenseGRU struct {
	manifest Manifest

	denseW, denseB []float32

	vadGRU     *gruLayer
	noiseGRU   *gruLayer
	denoiseGRU *gruLayer

	denoiseOutW, denoiseOutB []float32
	vadOutW, vadOutB         []float32
}

// newDenseGRU builds a DenseGRU runtime from a manifest and the matching
// flat weight slice (see Manifest.floatCount for the expected length).
func newDenseGRU(m Manifest, weights []float32) *DenseGRU {
	w := &weightCursor{buf: weights}

	d := &DenseGRU{manifest: m}
	d.denseW, d.denseB = w.dense(m.InputSize, m.DenseSize)

	vadGRUInput := m.DenseSize
	d.vadGRU = newGRULayer(vadGRUInput, m.VadGRUSize, w)

	noiseGRUInput := m.DenseSize + m.VadGRUSize + m.InputSize
	d.noiseGRU = newGRULayer(noiseGRUInput, m.NoiseGRUSize, w)

	denoiseGRUInput := m.VadGRUSize + m.NoiseGRUSize + m.InputSize
	d.denoiseGRU = newGRULayer(denoiseGRUInput, m.DenoiseGRUSize, w)

	d.denoiseOutW, d.denoiseOutB = w.dense(m.DenoiseGRUSize, m.NBBands)
	d.vadOutW, d.vadOutB = w.dense(m.VadGRUSize, 1)

	return d
}

// Eval implements Runtime.
func (d *DenseGRU) Eval(features [42]float32) (gains [22]float32, vadProb float32) {
	x := features[:]

	dense := denseLayer(x, d.denseW, d.denseB, d.manifest.InputSize, d.manifest.DenseSize, tanhf32)

	vadState := d.vadGRU.step(dense)

	noiseInput := make([]float32, 0, d.manifest.DenseSize+d.manifest.VadGRUSize+d.manifest.InputSize)
	noiseInput = append(noiseInput, dense...)
	noiseInput = append(noiseInput, vadState...)
	noiseInput = append(noiseInput, x...)
	noiseState := d.noiseGRU.step(noiseInput)

	denoiseInput := make([]float32, 0, d.manifest.VadGRUSize+d.manifest.NoiseGRUSize+d.manifest.InputSize)
	denoiseInput = append(denoiseInput, vadState...)
	denoiseInput = append(denoiseInput, noiseState...)
	denoiseInput = append(denoiseInput, x...)
	denoiseState := d.denoiseGRU.step(denoiseInput)

	g := denseLayer(denoiseState, d.denoiseOutW, d.denoiseOutB, d.manifest.DenoiseGRUSize, d.manifest.NBBands, sigmoid)
	copy(gains[:], g)

	vad := denseLayer(vadState, d.vadOutW, d.vadOutB, d.manifest.VadGRUSize, 1, sigmoid)
	vadProb = vad[0]

	return gains, vadProb
}

// Reset implements Runtime, clearing all three GRU hidden states. Used
// when a stream restarts without reconstructing the whole runtime.
func (d *DenseGRU) Reset() {
	d.vadGRU.reset()
	d.noiseGRU.reset()
	d.denoiseGRU.reset()
}
