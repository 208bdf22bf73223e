// Package rnndsp implements the per-frame hybrid DSP/RNN speech denoising
// core: analysis FFT, critical-band energies, pitch analysis, the
// 42-feature vector, the pitch-comb post filter, and overlap-add
// synthesis. It depends on an rnnmodel.Runtime for gain/VAD prediction
// and on fftkit for the length-960 complex FFT; everything else is
// self-contained.
package rnndsp

import (
	"math"
	"sync"

	"github.com/cwsl/rnnoise-go/internal/rnndsp/fftkit"
)

const (
	Frame = 480
	Window = 960
	Freq   = 481

	NBBands = 22

	PitchMinPeriod = 60
	PitchMaxPeriod = 768
	PitchFrameSize = 960
	PitchBufSize   = PitchMaxPeriod + PitchFrameSize

	CepsMem     = 8
	NBDeltaCeps = 6
	NBFeatures  = NBBands + 3*NBDeltaCeps + 2 // 42
)

// bandEdges are Bark-like critical band edges in units of 200 Hz / 4-bin
// groups; the bin index of edge k is bandEdges[k]<<2.
var bandEdges = [NBBands]int{
	0, 1, 2, 3, 4, 5, 6, 7, 8, 10, 12, 14, 16, 20, 24, 28, 34, 40, 48, 60, 78, 100,
}

type commonTables struct {
	halfWindow [Frame]float32
	dct        [NBBands][NBBands]float32
	fft        *fftkit.Plan
}

var (
	tablesOnce sync.Once
	tables     commonTables
)

// common lazily, idempotently builds the process-wide immutable tables
// (analysis window, DCT basis, FFT plan) and is safe to call from every
// State's first frame: sync.Once gives the publication barrier needed
// for safe concurrent access without exposing the tables themselves.
func common() *commonTables {
	tablesOnce.Do(func() {
		for i := 0; i < Frame; i++ {
			inner := math.Pi / 2 * (float64(i) + 0.5) / Frame
			tables.halfWindow[i] = float32(math.Sin(math.Pi / 2 * math.Sin(inner) * math.Sin(inner)))
		}
		for i := 0; i < NBBands; i++ {
			for j := 0; j < NBBands; j++ {
				v := math.Cos((float64(i) + 0.5) * float64(j) * math.Pi / NBBands)
				if j == 0 {
					v *= math.Sqrt(0.5)
				}
				tables.dct[i][j] = float32(v)
			}
		}
		tables.fft = fftkit.NewPlan(Window)
	})
	return &tables
}

// dct computes the length-22 DCT-II used for BFCC and pitch-cepstrum
// features: out[i] = sqrt(2/22) * sum_j in[j] * common().dct[j][i].
func dct(out, in *[NBBands]float32) {
	t := common()
	for i := 0; i < NBBands; i++ {
		var sum float32
		for j := 0; j < NBBands; j++ {
			sum += in[j] * t.dct[j][i]
		}
		out[i] = sum * float32(math.Sqrt(2.0/22.0))
	}
}

// applyWindow multiplies a WINDOW-length buffer by the symmetric analysis
// window in place: W[i] = halfWindow[i], W[959-i] = halfWindow[i].
func applyWindow(x *[Window]float32) {
	t := common()
	for i := 0; i < Frame; i++ {
		x[i] *= t.halfWindow[i]
		x[Window-1-i] *= t.halfWindow[i]
	}
}
