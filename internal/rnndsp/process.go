package rnndsp

// FrameSize is the number of samples ProcessFrame consumes and produces
// per call: 10ms at 48kHz.
const FrameSize = Frame

// ProcessFrame denoises one 480-sample (10ms @ 48kHz) frame in, writing
// the denoised frame to out, and returns the RNN's voice-activity
// probability for the frame. It runs the full per-frame pipeline:
// high-pass, analysis, pitch tracking, feature extraction, RNN gain/VAD
// inference, pitch-comb post filter, gain-floor smoothing, and
// overlap-add synthesis. ProcessFrame is not safe for concurrent use on
// the same State, but distinct States never share mutable memory and may
// run on separate goroutines freely.
func (s *State) ProcessFrame(out *[Frame]float32, in *[Frame]float32) (vadProb float32) {
	var hp [Frame]float32
	s.hpf.apply(hp[:], in[:])

	copy(s.pitchBuf[:PitchBufSize-Frame], s.pitchBuf[Frame:])
	copy(s.pitchBuf[PitchBufSize-Frame:], hp[:])

	slideWindow(&s.window, &s.analysisMem, &hp)
	X := s.analysis.transform(&s.window)

	var Ex [NBBands]float32
	computeBandEnergy(&Ex, X)

	pitchIndex, pitchGain := analyzePitch(&s.pitchBuf, s.lastPeriod, s.lastGain)
	s.lastPeriod = pitchIndex
	s.lastGain = pitchGain

	features, P, Ep, Exp, silent := s.extractFeatures(&Ex, X, pitchIndex)

	if !silent {
		gains, vp := s.rnn.Eval(features)
		vadProb = vp

		combFilter(X, P, &Ex, &Ep, &Exp, &gains)

		for i := 0; i < NBBands; i++ {
			if floor := 0.6 * s.lastG[i]; gains[i] < floor {
				gains[i] = floor
			}
			s.lastG[i] = gains[i]
		}

		var gf [Freq]float32
		interpBandGain(&gf, &gains)
		for i := range X {
			X[i] = complex(real(X[i])*float64(gf[i]), imag(X[i])*float64(gf[i]))
		}
	}

	s.synthesize(out, X)
	return vadProb
}
