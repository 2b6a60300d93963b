// Package fm implements a broadcast FM decoder: frequency translation to
// baseband, downsampling, quadrature discrimination, stereo pilot
// detection and de-emphasis. The decoder is stateful across chunks and
// must never be called concurrently with itself.
package fm

import (
	"errors"
	"math"

	"github.com/dudk/radiopipe/signal"
)

// Decoder defaults.
const (
	// DefaultDeemphasis is the de-emphasis time constant in µs.
	DefaultDeemphasis = 50.0
	// DefaultBandwidthIF is the IF signal bandwidth in Hz.
	DefaultBandwidthIF = 200.0e3
	// DefaultFreqDev is the full scale carrier frequency deviation in Hz.
	DefaultFreqDev = 60.0e3
	// DefaultBandwidthPCM is the audio bandwidth in Hz.
	DefaultBandwidthPCM = 15.0e3
)

const (
	pilotFreq      = 19.0e3
	pilotThreshold = 0.01
	levelSmoothing = 0.05
)

// ErrIFRateTooLow is returned when the IF sample rate cannot carry the
// signal bandwidth.
var ErrIFRateTooLow = errors.New("IF sample rate is too low")

// Config holds demodulator parameters. Zero values of Deemphasis, FreqDev,
// BandwidthPCM and Downsample fall back to defaults.
type Config struct {
	IFRate       float64 // IQ sample rate in Hz
	TuningOffset float64 // station offset from the tuned centre in Hz
	PCMRate      int     // audio sample rate in Hz
	Stereo       bool    // decode the stereo subcarrier
	Deemphasis   float64 // de-emphasis time constant in µs
	FreqDev      float64 // full scale frequency deviation in Hz
	BandwidthPCM float64 // audio bandwidth in Hz
	Downsample   int     // baseband downsampling factor
}

// Demodulator decodes broadcast FM from IQ chunks. It implements
// pipe.Decoder.
type Demodulator struct {
	cfg          Config
	basebandRate float64

	// frequency translation
	phase     float64
	phaseStep float64

	// baseband downsampling accumulator
	sumI, sumQ float64
	sumN       int

	// discriminator state
	lastI, lastQ float64
	discScale    float64

	// audio chain
	monoLP  [2]*lowpass
	lrLP    [2]*lowpass
	pilot   *resonator
	monoRS  *resampler
	lrRS    *resampler
	deemphL *lowpass
	deemphR *lowpass

	ifLevel    float64
	bbLevel    float64
	pilotLevel float64
	stereoDet  bool
}

// New creates a new demodulator for the provided config.
func New(cfg Config) (*Demodulator, error) {
	if cfg.IFRate <= 0 {
		return nil, errors.New("IF sample rate is not defined")
	}
	if cfg.PCMRate <= 0 {
		return nil, errors.New("PCM sample rate is not defined")
	}
	if cfg.Deemphasis == 0 {
		cfg.Deemphasis = DefaultDeemphasis
	}
	if cfg.FreqDev == 0 {
		cfg.FreqDev = DefaultFreqDev
	}
	if cfg.BandwidthPCM == 0 {
		cfg.BandwidthPCM = DefaultBandwidthPCM
	}
	if cfg.Downsample < 1 {
		cfg.Downsample = 1
	}
	basebandRate := cfg.IFRate / float64(cfg.Downsample)
	if basebandRate < 2*cfg.BandwidthPCM || basebandRate < float64(cfg.PCMRate) {
		return nil, ErrIFRateTooLow
	}

	deemphCutoff := 1 / (2 * math.Pi * cfg.Deemphasis * 1e-6)
	d := &Demodulator{
		cfg:          cfg,
		basebandRate: basebandRate,
		phaseStep:    2 * math.Pi * cfg.TuningOffset / cfg.IFRate,
		discScale:    basebandRate / (2 * math.Pi * cfg.FreqDev),
		pilot:        newResonator(pilotFreq, basebandRate, 100),
		monoRS:       newResampler(basebandRate, float64(cfg.PCMRate)),
		lrRS:         newResampler(basebandRate, float64(cfg.PCMRate)),
		deemphL:      newLowpass(deemphCutoff, float64(cfg.PCMRate)),
		deemphR:      newLowpass(deemphCutoff, float64(cfg.PCMRate)),
	}
	for i := range d.monoLP {
		d.monoLP[i] = newLowpass(cfg.BandwidthPCM, basebandRate)
		d.lrLP[i] = newLowpass(cfg.BandwidthPCM, basebandRate)
	}
	return d, nil
}

// Process decodes one IQ chunk into an audio chunk. Stereo output is
// interleaved.
func (d *Demodulator) Process(iq []signal.IQ) []signal.Sample {
	if len(iq) == 0 {
		return nil
	}

	var sq float64
	for _, s := range iq {
		i, q := float64(real(s)), float64(imag(s))
		sq += i*i + q*q
	}
	rms := math.Sqrt(sq / float64(len(iq)))
	d.ifLevel = (1-levelSmoothing)*d.ifLevel + levelSmoothing*rms

	bb := d.discriminate(iq)

	_, brms := signal.MeanRMS(bb)
	d.bbLevel = (1-levelSmoothing)*d.bbLevel + levelSmoothing*brms

	d.pilotLevel = goertzel(bb, pilotFreq, d.basebandRate)
	d.stereoDet = d.cfg.Stereo && d.pilotLevel > pilotThreshold

	mono := make([]float64, len(bb))
	for i, x := range bb {
		mono[i] = d.monoLP[1].process(d.monoLP[0].process(x))
	}

	if !d.cfg.Stereo {
		m := d.monoRS.process(mono)
		out := make([]signal.Sample, len(m))
		for i := range m {
			out[i] = d.deemphL.process(m[i])
		}
		return out
	}

	lr := make([]float64, len(bb))
	for i, x := range bb {
		subcarrier := d.pilot.process(x)
		v := 0.0
		if d.stereoDet {
			v = 2 * x * subcarrier
		}
		lr[i] = d.lrLP[1].process(d.lrLP[0].process(v))
	}
	m := d.monoRS.process(mono)
	s := d.lrRS.process(lr)
	out := make([]signal.Sample, 2*len(m))
	for i := range m {
		out[2*i] = d.deemphL.process(m[i] + s[i])
		out[2*i+1] = d.deemphR.process(m[i] - s[i])
	}
	return out
}

// discriminate shifts the chunk to baseband, downsamples it and converts
// phase rotation to instantaneous frequency, normalized so that full
// deviation maps to ±1.
func (d *Demodulator) discriminate(iq []signal.IQ) []float64 {
	bb := make([]float64, 0, len(iq)/d.cfg.Downsample+1)
	for _, s := range iq {
		i, q := float64(real(s)), float64(imag(s))
		cos, sin := math.Cos(d.phase), math.Sin(d.phase)
		ri := i*cos + q*sin
		rq := q*cos - i*sin
		d.phase += d.phaseStep
		if d.phase > 2*math.Pi {
			d.phase -= 2 * math.Pi
		} else if d.phase < -2*math.Pi {
			d.phase += 2 * math.Pi
		}

		d.sumI += ri
		d.sumQ += rq
		d.sumN++
		if d.sumN < d.cfg.Downsample {
			continue
		}
		bi := d.sumI / float64(d.sumN)
		bq := d.sumQ / float64(d.sumN)
		d.sumI, d.sumQ, d.sumN = 0, 0, 0

		dr := bi*d.lastI + bq*d.lastQ
		dj := bq*d.lastI - bi*d.lastQ
		d.lastI, d.lastQ = bi, bq
		bb = append(bb, math.Atan2(dj, dr)*d.discScale)
	}
	return bb
}

// IFLevel returns the smoothed RMS level of the IF signal.
func (d *Demodulator) IFLevel() float64 { return d.ifLevel }

// BasebandLevel returns the smoothed RMS level of the demodulated
// baseband.
func (d *Demodulator) BasebandLevel() float64 { return d.bbLevel }

// PilotLevel returns the level of the 19 kHz stereo pilot in the latest
// chunk.
func (d *Demodulator) PilotLevel() float64 { return d.pilotLevel }

// StereoDetected returns true if the stereo pilot was detected in the
// latest chunk.
func (d *Demodulator) StereoDetected() bool { return d.stereoDet }

// TuningOffset returns the station offset from the tuned centre in Hz.
func (d *Demodulator) TuningOffset() float64 { return d.cfg.TuningOffset }

// BasebandRate returns the sample rate of the discriminated baseband.
func (d *Demodulator) BasebandRate() float64 { return d.basebandRate }
