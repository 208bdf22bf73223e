package rnndsp

// frameAnalysis bundles the scratch a single windowed-FFT computation
// needs: the complex spectrum and the float64 sequence buffer gonum's
// FFT uses internally. A State keeps two of these — one for the current
// frame, one for the pitch-shifted frame used in band correlation — so
// both spectra can be live at once without reallocating per call.
type frameAnalysis struct {
	seq  []float64
	spec []complex128
}

func newFrameAnalysis() frameAnalysis {
	return frameAnalysis{
		seq:  make([]float64, Window),
		spec: make([]complex128, Freq),
	}
}

// slideWindow builds a Window-length buffer from the previous frame's
// tail (mem) followed by the new Frame-length block (in), the 50%
// overlap the analysis FFT requires, then updates mem to in for the
// next call.
func slideWindow(dst *[Window]float32, mem *[Frame]float32, in *[Frame]float32) {
	copy(dst[:Frame], mem[:])
	copy(dst[Frame:], in[:])
	*mem = *in
}

// transform windows buf in place and returns its one-sided spectrum,
// using the process-wide FFT plan and this frameAnalysis's own scratch.
func (a *frameAnalysis) transform(buf *[Window]float32) []complex128 {
	applyWindow(buf)
	return common().fft.Forward(a.spec, buf[:], a.seq)
}

// pitchWindow extracts the Window-length segment of pitchBuf ending lag
// samples before the buffer's end, the frame the current input is
// compared against when computing pitch-gated band correlation
// features.
func pitchWindow(pitchBuf *[PitchBufSize]float32, lag int) [Window]float32 {
	var buf [Window]float32
	start := PitchBufSize - lag - Window
	if start < 0 {
		start = 0
	}
	copy(buf[:], pitchBuf[start:start+Window])
	return buf
}
