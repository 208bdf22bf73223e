package rnndsp

import "github.com/cwsl/rnnoise-go/internal/rnnmodel"

// State holds one denoising stream's per-call memory. Every field here
// is private and mutated only by ProcessFrame and Reset; a State must not be
// shared across goroutines, but distinct States share nothing mutable
// (the process-wide tables in tables.go are read-only) and so may run
// fully concurrently.
type State struct {
	analysisMem  [Frame]float32
	synthesisMem [Frame]float32

	pitchBuf [PitchBufSize]float32
	// pitchEnhBuf is reserved for a training-time pitch-enhancement path
	// this runtime does not implement; nothing writes to it.
	pitchEnhBuf [PitchBufSize]float32

	cepstralMem [CepsMem][NBBands]float32
	memID       int

	lastPeriod int
	lastGain   float32

	hpf   biquad
	lastG [NBBands]float32

	rnn rnnmodel.Runtime

	window        [Window]float32
	analysis      frameAnalysis
	pitchAnalysis frameAnalysis

	synthDst [Window]float32
	synthSeq []float64
}

// NewState builds a fresh stream state bound to the given RNN runtime.
// The returned State starts with empty analysis, pitch and cepstral
// history, and with every band's previous gain (the reference for the
// 0.6x gain floor) at unity.
func NewState(model rnnmodel.Runtime) *State {
	s := &State{
		rnn:           model,
		hpf:           newHPF(),
		analysis:      newFrameAnalysis(),
		pitchAnalysis: newFrameAnalysis(),
		synthSeq:      make([]float64, Window),
	}
	for i := range s.lastG {
		s.lastG[i] = 1
	}
	return s
}

// Reset clears all per-stream memory and the bound RNN runtime's
// recurrent state, as if the State were freshly constructed. Useful for
// reusing a State across unrelated streams without reallocating its
// scratch buffers.
func (s *State) Reset() {
	s.analysisMem = [Frame]float32{}
	s.synthesisMem = [Frame]float32{}
	s.pitchBuf = [PitchBufSize]float32{}
	s.pitchEnhBuf = [PitchBufSize]float32{}
	s.cepstralMem = [CepsMem][NBBands]float32{}
	s.memID = 0
	s.lastPeriod = 0
	s.lastGain = 0
	s.hpf = newHPF()
	for i := range s.lastG {
		s.lastG[i] = 1
	}
	s.rnn.Reset()
}
