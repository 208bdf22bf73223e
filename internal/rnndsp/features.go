package rnndsp

import "math"

// extractFeatures builds the 42-element feature vector: smoothed log
// band energies condensed via a 22-point DCT (with ring-buffered first-
// and second-order cepstral deltas), a pitch-correlation DCT, a
// spectral-variability measure, and a normalized pitch-period feature.
// It reports silence (E < 0.04) by zeroing the vector and returning
// silent=true; cepstral history is left untouched so a burst of silence
// doesn't corrupt the delta ring.
func (s *State) extractFeatures(Ex *[NBBands]float32, X []complex128, pitchIndex int) (features [NBFeatures]float32, P []complex128, Ep, Exp [NBBands]float32, silent bool) {
	var Ly [NBBands]float32
	var E float32
	logMax := float32(-2)
	follow := float32(-2)
	for i := 0; i < NBBands; i++ {
		v := float32(math.Log10(float64(1e-2 + Ex[i])))
		v = max32(logMax-7, max32(follow-1.5, v))
		logMax = max32(logMax, v)
		follow = max32(follow-1.5, v)
		Ly[i] = v
		E += Ex[i]
	}

	pWin := pitchWindow(&s.pitchBuf, pitchIndex)
	P = s.pitchAnalysis.transform(&pWin)
	computeBandEnergy(&Ep, P)
	computeBandCorr(&Exp, X, P)
	for i := 0; i < NBBands; i++ {
		Exp[i] = Exp[i] / float32(math.Sqrt(float64(0.001+Ex[i]*Ep[i])))
	}
	var pitchDCT [NBBands]float32
	dct(&pitchDCT, &Exp)

	if E < 0.04 {
		return [NBFeatures]float32{}, P, Ep, Exp, true
	}

	var bfcc [NBBands]float32
	dct(&bfcc, &Ly)
	bfcc[0] -= 12
	bfcc[1] -= 4

	memID := s.memID
	ceps0 := &s.cepstralMem[memID]
	idx1 := (memID - 1 + CepsMem) % CepsMem
	idx2 := (memID - 2 + CepsMem) % CepsMem
	ceps1 := &s.cepstralMem[idx1]
	ceps2 := &s.cepstralMem[idx2]
	*ceps0 = bfcc
	s.memID = (memID + 1) % CepsMem

	for i := 0; i < NBDeltaCeps; i++ {
		features[i] = ceps0[i] + ceps1[i] + ceps2[i]
		features[NBBands+i] = ceps0[i] - ceps2[i]
		features[NBBands+NBDeltaCeps+i] = ceps0[i] - 2*ceps1[i] + ceps2[i]
	}
	for i := NBDeltaCeps; i < NBBands; i++ {
		features[i] = bfcc[i]
	}
	for i := 0; i < NBDeltaCeps; i++ {
		features[NBBands+2*NBDeltaCeps+i] = pitchDCT[i]
	}
	features[NBBands+2*NBDeltaCeps] -= 1.3
	features[NBBands+2*NBDeltaCeps+1] -= 0.9

	var variability float32
	for i := 0; i < CepsMem; i++ {
		mindist := float32(math.MaxFloat32)
		for j := 0; j < CepsMem; j++ {
			if j == i {
				continue
			}
			var dist float32
			for k := 0; k < NBBands; k++ {
				d := s.cepstralMem[i][k] - s.cepstralMem[j][k]
				dist += d * d
			}
			if dist < mindist {
				mindist = dist
			}
		}
		variability += mindist
	}
	features[NBBands+3*NBDeltaCeps] = 0.01 * (float32(pitchIndex) - 300)
	features[NBBands+3*NBDeltaCeps+1] = variability/CepsMem - 2.1

	return features, P, Ep, Exp, false
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
