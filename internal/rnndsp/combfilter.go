package rnndsp

import "math"

// combFilter adds a pitch-synchronous comb component to the analysis
// spectrum X (before the per-band gains are applied), reinforcing harmonic structure a purely per-band gain
// would smear, then renormalizes every band back to its pre-comb energy
// so the comb stage changes the spectral shape within a band without
// changing the band's total energy.
func combFilter(X []complex128, P []complex128, Ex, Ep, Exp, g *[NBBands]float32) {
	var r [NBBands]float32
	for i := 0; i < NBBands; i++ {
		gi := g[i]
		var v float32
		if Exp[i] > gi {
			v = 1
		} else {
			num := Exp[i] * Exp[i] * (1 - gi*gi)
			den := 0.001 + gi*gi*(1-Exp[i]*Exp[i])
			v = float32(math.Sqrt(float64(num / den)))
			if v < 0 {
				v = 0
			}
			if v > 1 {
				v = 1
			}
		}
		v *= float32(math.Sqrt(float64(Ex[i] / (1e-8 + Ep[i]))))
		r[i] = v
	}

	var rf [Freq]float32
	interpBandGain(&rf, &r)
	for i := range X {
		X[i] = complex(real(X[i])+float64(rf[i])*real(P[i]), imag(X[i])+float64(rf[i])*imag(P[i]))
	}

	var newE [NBBands]float32
	computeBandEnergy(&newE, X)
	var norm [NBBands]float32
	for i := 0; i < NBBands; i++ {
		norm[i] = float32(math.Sqrt(float64(Ex[i] / (1e-8 + newE[i]))))
	}
	var normF [Freq]float32
	interpBandGain(&normF, &norm)
	for i := range X {
		X[i] = complex(real(X[i])*float64(normF[i]), imag(X[i])*float64(normF[i]))
	}
}
