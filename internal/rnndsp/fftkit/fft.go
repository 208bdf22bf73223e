// Package fftkit supplies the length-960 complex FFT the denoising core
// treats as an external collaborator: a forward transform of a real
// time-domain frame to its one-sided spectrum, and the matching inverse,
// scaled so that a forward/inverse round trip returns the original frame.
//
// It is a thin wrapper over gonum.org/v1/gonum/dsp/fourier.FFT, a
// real-input FFT type.
package fftkit

import "gonum.org/v1/gonum/dsp/fourier"

// Plan wraps a process-wide, read-only gonum FFT plan for a fixed
// transform length. gonum's FFT type holds only precomputed twiddle
// factors; all mutable scratch is supplied by the caller via dst/seq
// arguments, so a single Plan may be shared across concurrently running
// streams without synchronization.
type Plan struct {
	n   int
	fft *fourier.FFT
}

// NewPlan builds a Plan for transform length n. Construction allocates;
// callers build one Plan per process and share it.
func NewPlan(n int) *Plan {
	return &Plan{n: n, fft: fourier.NewFFT(n)}
}

// Len returns the transform length this Plan was built for.
func (p *Plan) Len() int { return p.n }

// Forward computes the one-sided spectrum (n/2+1 bins) of a real,
// length-n time-domain signal, unscaled: no 1/N normalization is applied
// on the forward transform.
// dst and seqScratch are caller-owned scratch buffers (length n/2+1 and n
// respectively) reused across frames to keep the hot path allocation-free;
// the returned slice aliases dst when its capacity suffices.
func (p *Plan) Forward(dst []complex128, timeDomain []float32, seqScratch []float64) []complex128 {
	for i, v := range timeDomain {
		seqScratch[i] = float64(v)
	}
	return p.fft.Coefficients(dst, seqScratch)
}

// Inverse reconstructs a length-n time-domain signal from a one-sided
// spectrum (n/2+1 bins, Hermitian symmetry assumed and applied
// internally by gonum). gonum's inverse is unnormalized, so the result is
// scaled by 1/N: Inverse(Forward(x)) returns x, sample for sample, in its
// original order. seqScratch is caller-owned scratch of length n.
func (p *Plan) Inverse(dst []float32, freqDomain []complex128, seqScratch []float64) []float32 {
	y := p.fft.Sequence(seqScratch, freqDomain)
	scale := 1 / float64(p.n)
	for i := 0; i < p.n; i++ {
		dst[i] = float32(y[i] * scale)
	}
	return dst
}
