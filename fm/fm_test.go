package fm_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/radiopipe/fm"
	"github.com/dudk/radiopipe/signal"
)

const (
	ifRate    = 240000.0
	pcmRate   = 48000
	freqDev   = 60000.0
	chunkSize = 4800
)

// synthesize produces an FM modulated IQ stream of the provided baseband
// signal, carried at centre frequency plus offset.
func synthesize(modulation []float64, offset float64) []signal.IQ {
	iq := make([]signal.IQ, len(modulation))
	phase := 0.0
	for i, m := range modulation {
		phase += 2 * math.Pi * (offset + freqDev*m) / ifRate
		iq[i] = complex(float32(math.Cos(phase)), float32(math.Sin(phase)))
	}
	return iq
}

func tone(freq, amplitude float64, n int) []float64 {
	m := make([]float64, n)
	for i := range m {
		m[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/ifRate)
	}
	return m
}

func rms(chunk []signal.Sample) float64 {
	_, r := signal.MeanRMS(chunk)
	return r
}

func TestMonoTone(t *testing.T) {
	d, err := fm.New(fm.Config{
		IFRate:  ifRate,
		PCMRate: pcmRate,
		FreqDev: freqDev,
	})
	require.NoError(t, err)

	chunks := 20
	iq := synthesize(tone(1000, 0.5, chunks*chunkSize), 0)

	var out []signal.Sample
	for i := 0; i < chunks; i++ {
		chunk := d.Process(iq[i*chunkSize : (i+1)*chunkSize])
		out = append(out, chunk...)
	}

	// one input chunk resamples to chunkSize/(ifRate/pcmRate) samples,
	// minus one sample used to prime the interpolator
	expected := chunks * chunkSize * pcmRate / int(ifRate)
	assert.InDelta(t, expected, len(out), 2)
	for _, s := range out {
		require.False(t, math.IsNaN(s))
	}

	// a 0.5 deviation tone decodes to ~0.33 RMS after de-emphasis,
	// measured past the filter warm-up
	assert.InDelta(t, 0.34, rms(out[len(out)/2:]), 0.08)
	assert.Greater(t, d.IFLevel(), 0.5)
	assert.Greater(t, d.BasebandLevel(), 0.15)
	assert.False(t, d.StereoDetected())
	assert.Equal(t, 0.0, d.TuningOffset())
}

func TestTuningOffset(t *testing.T) {
	offset := 60000.0
	d, err := fm.New(fm.Config{
		IFRate:       ifRate,
		TuningOffset: offset,
		PCMRate:      pcmRate,
		FreqDev:      freqDev,
	})
	require.NoError(t, err)

	chunks := 10
	iq := synthesize(tone(1000, 0.5, chunks*chunkSize), offset)

	var out []signal.Sample
	for i := 0; i < chunks; i++ {
		out = append(out, d.Process(iq[i*chunkSize:(i+1)*chunkSize])...)
	}

	assert.Equal(t, offset, d.TuningOffset())
	assert.Greater(t, rms(out[len(out)/2:]), 0.2)
}

func TestPilotDetection(t *testing.T) {
	t.Run("pilot present", func(t *testing.T) {
		d, err := fm.New(fm.Config{
			IFRate:  ifRate,
			PCMRate: pcmRate,
			FreqDev: freqDev,
			Stereo:  true,
		})
		require.NoError(t, err)

		chunks := 10
		iq := synthesize(tone(19000, 0.1, chunks*chunkSize), 0)
		var out []signal.Sample
		for i := 0; i < chunks; i++ {
			out = d.Process(iq[i*chunkSize : (i+1)*chunkSize])
		}

		assert.True(t, d.StereoDetected())
		assert.InDelta(t, 0.1, d.PilotLevel(), 0.03)
		// stereo output is interleaved
		assert.Zero(t, len(out)%2)
	})

	t.Run("pilot absent", func(t *testing.T) {
		d, err := fm.New(fm.Config{
			IFRate:  ifRate,
			PCMRate: pcmRate,
			FreqDev: freqDev,
			Stereo:  true,
		})
		require.NoError(t, err)

		iq := synthesize(tone(1000, 0.5, 10*chunkSize), 0)
		for i := 0; i < 10; i++ {
			d.Process(iq[i*chunkSize : (i+1)*chunkSize])
		}

		assert.False(t, d.StereoDetected())
		assert.Less(t, d.PilotLevel(), 0.01)
	})

	t.Run("stereo disabled", func(t *testing.T) {
		d, err := fm.New(fm.Config{
			IFRate:  ifRate,
			PCMRate: pcmRate,
			FreqDev: freqDev,
		})
		require.NoError(t, err)

		iq := synthesize(tone(19000, 0.1, 10*chunkSize), 0)
		for i := 0; i < 10; i++ {
			d.Process(iq[i*chunkSize : (i+1)*chunkSize])
		}

		assert.False(t, d.StereoDetected())
	})
}

func TestDownsample(t *testing.T) {
	d, err := fm.New(fm.Config{
		IFRate:     ifRate,
		PCMRate:    pcmRate,
		FreqDev:    freqDev,
		Downsample: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, ifRate/4, d.BasebandRate())

	// moderate deviation so the discriminated phase step stays well
	// within ±π at the reduced baseband rate
	chunks := 10
	iq := synthesize(tone(1000, 0.3, chunks*chunkSize), 0)
	var out []signal.Sample
	for i := 0; i < chunks; i++ {
		out = append(out, d.Process(iq[i*chunkSize:(i+1)*chunkSize])...)
	}

	// downsampling must not change the output rate
	expected := chunks * chunkSize * pcmRate / int(ifRate)
	assert.InDelta(t, expected, len(out), 2)
	assert.Greater(t, rms(out[len(out)/2:]), 0.1)
}

func TestNewValidation(t *testing.T) {
	_, err := fm.New(fm.Config{PCMRate: pcmRate})
	assert.Error(t, err)

	_, err = fm.New(fm.Config{IFRate: ifRate})
	assert.Error(t, err)

	_, err = fm.New(fm.Config{IFRate: 20000, PCMRate: 48000})
	assert.Equal(t, fm.ErrIFRateTooLow, err)

	_, err = fm.New(fm.Config{IFRate: ifRate, PCMRate: pcmRate})
	assert.NoError(t, err)

	_, err = fm.New(fm.Config{IFRate: ifRate, PCMRate: pcmRate, Downsample: 64})
	assert.Equal(t, fm.ErrIFRateTooLow, err)
}

func TestProcessEmptyChunk(t *testing.T) {
	d, err := fm.New(fm.Config{IFRate: ifRate, PCMRate: pcmRate})
	require.NoError(t, err)
	assert.Nil(t, d.Process(nil))
}
