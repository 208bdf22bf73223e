package rnndsp

// synthesize inverse-transforms the gained spectrum X back to a
// Window-length time-domain buffer, applies the synthesis window, then
// overlap-adds it against the stream's synthesis memory to produce
// Frame output samples. The unconsumed tail becomes the synthesis
// memory for the next call.
func (s *State) synthesize(out *[Frame]float32, X []complex128) {
	xSlice := common().fft.Inverse(s.synthDst[:], X, s.synthSeq)
	x := (*[Window]float32)(xSlice)
	applyWindow(x)
	for i := 0; i < Frame; i++ {
		out[i] = x[i] + s.synthesisMem[i]
	}
	copy(s.synthesisMem[:], x[Frame:])
}
