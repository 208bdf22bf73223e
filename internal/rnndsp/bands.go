package rnndsp

// computeBandEnergy fills the 22 critical-band energies of a spectrum X
// (length Freq) using the triangular, 50%-overlapping Bark-like
// filterbank described by bandEdges. Accumulation happens in double
// precision even though the public band-energy type is float32.
func computeBandEnergy(out *[NBBands]float32, x []complex128) {
	var sum [NBBands]float64
	for k := 0; k < NBBands-1; k++ {
		start := bandEdges[k] << 2
		size := (bandEdges[k+1] - bandEdges[k]) << 2
		for j := 0; j < size; j++ {
			c := x[start+j]
			t := real(c)*real(c) + imag(c)*imag(c)
			frac := float64(j) / float64(size)
			sum[k] += (1 - frac) * t
			sum[k+1] += frac * t
		}
	}
	sum[0] *= 2
	sum[NBBands-1] *= 2
	for k := 0; k < NBBands; k++ {
		out[k] = float32(sum[k])
	}
}

// computeBandCorr fills the 22 critical-band cross-correlations between
// spectra X and P, structurally identical to computeBandEnergy but
// correlating rather than squaring.
func computeBandCorr(out *[NBBands]float32, x, p []complex128) {
	var sum [NBBands]float64
	for k := 0; k < NBBands-1; k++ {
		start := bandEdges[k] << 2
		size := (bandEdges[k+1] - bandEdges[k]) << 2
		for j := 0; j < size; j++ {
			xc, pc := x[start+j], p[start+j]
			t := real(xc)*real(pc) + imag(xc)*imag(pc)
			frac := float64(j) / float64(size)
			sum[k] += (1 - frac) * t
			sum[k+1] += frac * t
		}
	}
	sum[0] *= 2
	sum[NBBands-1] *= 2
	for k := 0; k < NBBands; k++ {
		out[k] = float32(sum[k])
	}
}

// interpBandGain expands 22 per-band values into a per-bin gain curve of
// length Freq by linear interpolation across each band's bins.
func interpBandGain(out *[Freq]float32, band *[NBBands]float32) {
	for i := range out {
		out[i] = 0
	}
	for k := 0; k < NBBands-1; k++ {
		start := bandEdges[k] << 2
		size := (bandEdges[k+1] - bandEdges[k]) << 2
		for j := 0; j < size; j++ {
			frac := float32(j) / float32(size)
			out[start+j] = (1-frac)*band[k] + frac*band[k+1]
		}
	}
}
