package rnndsp

// biquad is a direct-form-II-transposed second-order IIR filter with an
// implicit leading 1 on the numerator, streaming two-element state. It
// mirrors the shape of the audio extensions' configurable BiQuadFilter,
// but fixes its coefficients at construction since the only filter this
// core applies is the built-in DC/hum high-pass.
type biquad struct {
	b0, b1 float64
	a0, a1 float64
	mem0, mem1 float64
}

// hpfCoeffs are the built-in hum-suppressing high-pass filter
// coefficients applied to every input frame before analysis.
var hpfCoeffs = biquad{b0: -2, b1: 1, a0: -1.99599, a1: 0.99600}

// newHPF returns a fresh biquad with the built-in HPF coefficients and
// zeroed state, ready to filter a new stream.
func newHPF() biquad {
	return biquad{b0: hpfCoeffs.b0, b1: hpfCoeffs.b1, a0: hpfCoeffs.a0, a1: hpfCoeffs.a1}
}

// apply filters N samples of x into y, updating the filter's streaming
// state. All inner products accumulate in double precision even though
// the samples themselves are float32.
func (f *biquad) apply(y, x []float32) {
	for i, xi := range x {
		xid := float64(xi)
		yid := xid + f.mem0
		f.mem0 = f.mem1 + f.b0*xid - f.a0*yid
		f.mem1 = f.b1*xid - f.a1*yid
		y[i] = float32(yid)
	}
}
