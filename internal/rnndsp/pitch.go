package rnndsp

import "math"

// Downsampled-domain pitch constants. The analyzer halves the sample
// rate of the 1728-sample pitch buffer before the expensive lag search,
// then refines the result back in the full-rate domain. See DESIGN.md
// for the factor-2 downsample choice and how it relates to the search
// range and frame length below.
const (
	dsBufSize   = PitchBufSize / 2 // 864
	dsMinPeriod = PitchMinPeriod / 2
	dsMaxPeriod = PitchMaxPeriod / 2
	dsFrameSize = PitchFrameSize / 2 // 480

	doublingMaxDivisor = 6
	fineSearchRadius   = 4
)

// analyzePitch runs the four-stage open-loop pitch estimator: downsample
// + LPC-whiten, coarse lag search, fine refinement, and doubling removal
// with continuity hysteresis against the stream's last period/gain. It
// returns a pitch index clamped to [PitchMinPeriod, PitchMaxPeriod] and a
// gain in [0,1].
func analyzePitch(pitchBuf *[PitchBufSize]float32, lastPeriod int, lastGain float32) (pitchIndex int, gain float32) {
	var ds [dsBufSize]float32
	downsamplePitchBuf(&ds, pitchBuf)
	whitenLPC(ds[:], 4)

	coarse := coarseSearch(&ds)
	candidate := coarse * 2

	refined, refinedCorr := fineSearch(pitchBuf, candidate, fineSearchRadius)
	final, finalCorr := removeDoubling(pitchBuf, refined, refinedCorr, lastPeriod, lastGain)

	if final < PitchMinPeriod {
		final = PitchMinPeriod
	}
	if final > PitchMaxPeriod {
		final = PitchMaxPeriod
	}
	g := float32(finalCorr)
	if g < 0 {
		g = 0
	}
	if g > 1 {
		g = 1
	}
	return final, g
}

// downsamplePitchBuf halves the sample rate of the high-passed input
// history with a 3-tap lowpass (0.25, 0.5, 0.25).
func downsamplePitchBuf(out *[dsBufSize]float32, in *[PitchBufSize]float32) {
	out[0] = 0.25*in[1] + 0.5*in[0]
	for i := 1; i < dsBufSize-1; i++ {
		j := 2 * i
		out[i] = 0.25*in[j-1] + 0.5*in[j] + 0.25*in[j+1]
	}
	last := dsBufSize - 1
	out[last] = 0.25*in[2*last-1] + 0.5*in[2*last]
}

// whitenLPC computes an order-N autocorrelation LPC over buf, applies a
// bandwidth expansion for stability, adds a first-order pre-emphasis
// zero, and replaces buf in place with the residual of the resulting FIR
// whitening filter. Flattening the spectrum this way makes the coarse
// lag search respond to periodicity rather than formant structure.
func whitenLPC(buf []float32, order int) {
	ac := autocorr(buf, order)
	if ac[0] == 0 {
		return
	}
	ac[0] *= 1.0001
	for i := 1; i <= order; i++ {
		d := 0.008 * float64(i)
		ac[i] -= ac[i] * d * d
	}
	lpc := levinsonDurbin(ac, order)
	// levinsonDurbin returns predictor coefficients; negate them so the
	// FIR below subtracts the prediction and leaves the residual.
	for i := range lpc {
		lpc[i] = -lpc[i]
	}

	// Bandwidth-expand the LPC roots inward for robustness, then splice
	// in a single pre-emphasis zero at 0.8.
	gamma := 1.0
	for i := 0; i < order; i++ {
		gamma *= 0.9
		lpc[i] *= gamma
	}
	fir := make([]float64, order+1)
	fir[0] = lpc[0] + 0.8
	for i := 1; i < order; i++ {
		fir[i] = lpc[i] + 0.8*lpc[i-1]
	}
	fir[order] = 0.8 * lpc[order-1]

	mem := make([]float64, order+1)
	for i := range buf {
		x := float64(buf[i])
		y := x
		for k := 0; k < order+1; k++ {
			y += fir[k] * mem[k]
		}
		for k := order; k > 0; k-- {
			mem[k] = mem[k-1]
		}
		mem[0] = x
		buf[i] = float32(y)
	}
}

// autocorr returns the order+1 autocorrelation coefficients of x at lags
// 0..order.
func autocorr(x []float32, order int) []float64 {
	ac := make([]float64, order+1)
	for lag := 0; lag <= order; lag++ {
		var sum float64
		for i := lag; i < len(x); i++ {
			sum += float64(x[i]) * float64(x[i-lag])
		}
		ac[lag] = sum
	}
	return ac
}

// levinsonDurbin solves the normal equations for an order-N LPC
// predictor from autocorrelation coefficients ac[0..order].
func levinsonDurbin(ac []float64, order int) []float64 {
	lpc := make([]float64, order)
	err := ac[0]
	if err <= 0 {
		return lpc
	}
	for i := 0; i < order; i++ {
		acc := ac[i+1]
		for j := 0; j < i; j++ {
			acc -= lpc[j] * ac[i-j]
		}
		k := acc / err
		newLPC := make([]float64, i+1)
		newLPC[i] = k
		for j := 0; j < i; j++ {
			newLPC[j] = lpc[j] - k*lpc[i-1-j]
		}
		copy(lpc, newLPC)
		err *= 1 - k*k
		if err <= 0 {
			break
		}
	}
	return lpc
}

// normalizedCorr returns the cosine-similarity style normalized
// correlation between x[a:a+n] and x[b:b+n].
func normalizedCorr(x []float32, a, b, n int) float64 {
	var num, ea, eb float64
	for i := 0; i < n; i++ {
		xa := float64(x[a+i])
		xb := float64(x[b+i])
		num += xa * xb
		ea += xa * xa
		eb += xb * xb
	}
	denom := math.Sqrt(ea*eb) + 1e-9
	return num / denom
}

// coarseSearch finds the downsampled-domain lag in
// [3*dsMinPeriod, dsMaxPeriod-dsMinPeriod] maximizing normalized
// autocorrelation between the buffer's last dsFrameSize samples and the
// segment that many samples earlier.
func coarseSearch(ds *[dsBufSize]float32) int {
	frameStart := dsBufSize - dsFrameSize
	lo := 3 * dsMinPeriod
	hi := dsMaxPeriod - dsMinPeriod
	bestLag := lo
	bestCorr := -1.0
	for lag := lo; lag <= hi; lag++ {
		c := normalizedCorr(ds[:], frameStart, frameStart-lag, dsFrameSize)
		if c > bestCorr {
			bestCorr = c
			bestLag = lag
		}
	}
	return bestLag
}

// fineSearch refines a downsampled-domain candidate (already scaled to
// the full-rate domain by the caller) to single-sample precision by
// searching a small neighborhood directly against the full-rate pitch
// buffer.
func fineSearch(pitchBuf *[PitchBufSize]float32, candidate, radius int) (lag int, corr float64) {
	frameStart := PitchBufSize - PitchFrameSize
	bestLag := candidate
	bestCorr := -1.0
	for l := candidate - radius; l <= candidate+radius; l++ {
		if l < PitchMinPeriod || l > PitchMaxPeriod {
			continue
		}
		c := normalizedCorr(pitchBuf[:], frameStart, frameStart-l, PitchFrameSize)
		if c > bestCorr {
			bestCorr = c
			bestLag = l
		}
	}
	return bestLag, bestCorr
}

// removeDoubling tests integer sub-multiples of lag, preferring the smallest
// one whose normalized correlation stays close enough to the best
// correlation found, with hysteresis toward last_period/last_gain to
// favor frame-to-frame continuity.
func removeDoubling(pitchBuf *[PitchBufSize]float32, lag int, corr float64, lastPeriod int, lastGain float32) (int, float64) {
	frameStart := PitchBufSize - PitchFrameSize
	bestLag, bestCorr := lag, corr
	for d := doublingMaxDivisor; d >= 2; d-- {
		cand := (lag + d/2) / d
		if cand < PitchMinPeriod {
			continue
		}
		c := normalizedCorr(pitchBuf[:], frameStart, frameStart-cand, PitchFrameSize)
		threshold := 0.7 * corr
		if lastPeriod > 0 && absInt(cand-lastPeriod) <= 2 && float64(lastGain) > 0.5 {
			threshold *= 0.8
		}
		if c >= threshold {
			bestLag, bestCorr = cand, c
			break
		}
	}
	return bestLag, bestCorr
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
