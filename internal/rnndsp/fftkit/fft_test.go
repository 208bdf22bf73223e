package fftkit

import (
	"math"
	"testing"
)

func TestPlanForwardInverseRoundTrip(t *testing.T) {
	const n = 960
	p := NewPlan(n)

	in := make([]float32, n)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * float64(i) * 11 / float64(n)))
	}

	seq := make([]float64, n)
	dst := make([]complex128, n/2+1)
	spec := p.Forward(dst, in, seq)
	if len(spec) != n/2+1 {
		t.Fatalf("Forward returned %d bins, want %d", len(spec), n/2+1)
	}

	out := make([]float32, n)
	p.Inverse(out, spec, seq)

	// Inverse undoes Forward exactly: out[i] corresponds to in[i] at unit
	// gain, for every i.
	if d := math.Abs(float64(out[0] - in[0])); d > 1e-2 {
		t.Errorf("out[0] = %v, want ~%v", out[0], in[0])
	}
	for i := 1; i < n; i++ {
		got := out[i]
		want := in[i]
		if d := math.Abs(float64(got - want)); d > 1e-2 {
			t.Errorf("out[%d] = %v, want ~%v (in[%d])", i, got, want, i)
		}
	}
}

func TestPlanLen(t *testing.T) {
	p := NewPlan(960)
	if p.Len() != 960 {
		t.Errorf("Len() = %d, want 960", p.Len())
	}
}
