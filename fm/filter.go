package fm

import (
	"math"
	"math/cmplx"
)

// lowpass is a single-pole IIR low-pass filter.
type lowpass struct {
	a float64
	y float64
}

func newLowpass(cutoff, rate float64) *lowpass {
	return &lowpass{a: 1 - math.Exp(-2*math.Pi*cutoff/rate)}
}

func (f *lowpass) process(x float64) float64 {
	f.y += f.a * (x - f.y)
	return f.y
}

// resonator tracks a single tone with a leaky complex oscillator. It is
// used to recover the phase of the 19 kHz stereo pilot.
type resonator struct {
	coeff complex128
	gain  float64
	y     complex128
}

func newResonator(freq, rate, bandwidth float64) *resonator {
	r := math.Exp(-2 * math.Pi * bandwidth / rate)
	w := 2 * math.Pi * freq / rate
	return &resonator{
		coeff: complex(r*math.Cos(w), r*math.Sin(w)),
		gain:  1 - r,
	}
}

// process feeds one sample and returns cos of the doubled pilot phase,
// used to regenerate the 38 kHz subcarrier without a PLL.
func (f *resonator) process(x float64) float64 {
	f.y = f.coeff*f.y + complex(f.gain*x, 0)
	amp := cmplx.Abs(f.y)
	if amp < 1e-9 {
		return 0
	}
	c := real(f.y) / amp
	return 2*c*c - 1
}

// resampler converts between sample rates with linear interpolation.
type resampler struct {
	step   float64 // input samples per output sample
	pos    float64
	prev   float64
	primed bool
}

func newResampler(inRate, outRate float64) *resampler {
	return &resampler{step: inRate / outRate}
}

func (r *resampler) process(in []float64) []float64 {
	out := make([]float64, 0, int(float64(len(in))/r.step)+2)
	for _, s := range in {
		if !r.primed {
			r.prev, r.primed = s, true
			continue
		}
		for r.pos < 1 {
			out = append(out, r.prev+(s-r.prev)*r.pos)
			r.pos += r.step
		}
		r.pos--
		r.prev = s
	}
	return out
}

// goertzel returns the amplitude of a single frequency component of the
// chunk.
func goertzel(in []float64, freq, rate float64) float64 {
	if len(in) == 0 {
		return 0
	}
	coeff := 2 * math.Cos(2*math.Pi*freq/rate)
	var s1, s2 float64
	for _, x := range in {
		s0 := x + coeff*s1 - s2
		s2, s1 = s1, s0
	}
	power := s1*s1 + s2*s2 - coeff*s1*s2
	if power < 0 {
		power = 0
	}
	return 2 * math.Sqrt(power) / float64(len(in))
}
