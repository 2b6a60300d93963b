package signal_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/radiopipe/signal"
)

func TestGain(t *testing.T) {
	tests := []struct {
		chunk    []signal.Sample
		gain     signal.Sample
		expected []signal.Sample
	}{
		{
			chunk:    []signal.Sample{1, -1, 0.5, 0},
			gain:     0.5,
			expected: []signal.Sample{0.5, -0.5, 0.25, 0},
		},
		{
			chunk:    []signal.Sample{},
			gain:     0.5,
			expected: []signal.Sample{},
		},
		{
			chunk:    []signal.Sample{0.25, 0.25},
			gain:     2,
			expected: []signal.Sample{0.5, 0.5},
		},
	}

	for _, test := range tests {
		signal.Gain(test.chunk, test.gain)
		assert.Equal(t, test.expected, test.chunk)
	}
}

func TestMeanRMS(t *testing.T) {
	tests := []struct {
		chunk []signal.Sample
		mean  signal.Sample
		rms   signal.Sample
	}{
		{
			chunk: []signal.Sample{1, 1, 1, 1},
			mean:  1,
			rms:   1,
		},
		{
			chunk: []signal.Sample{1, -1, 1, -1},
			mean:  0,
			rms:   1,
		},
		{
			chunk: []signal.Sample{0.5, -0.5},
			mean:  0,
			rms:   0.5,
		},
		{
			chunk: nil,
			mean:  0,
			rms:   0,
		},
	}

	for _, test := range tests {
		mean, rms := signal.MeanRMS(test.chunk)
		assert.InDelta(t, test.mean, mean, 1e-12)
		assert.InDelta(t, test.rms, rms, 1e-12)
	}
}

func TestAsInt16(t *testing.T) {
	tests := []struct {
		chunk    []signal.Sample
		expected []int16
	}{
		{
			chunk:    []signal.Sample{0, 1, -1},
			expected: []int16{0, math.MaxInt16 - 1, -(math.MaxInt16 - 1)},
		},
		{
			chunk:    []signal.Sample{2, -2},
			expected: []int16{math.MaxInt16 - 1, -(math.MaxInt16 - 1)},
		},
		{
			chunk:    []signal.Sample{0.5},
			expected: []int16{(math.MaxInt16 - 1) / 2},
		},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, signal.AsInt16(test.chunk))
	}
}

func TestDurationOf(t *testing.T) {
	assert.Equal(t, "1s", signal.DurationOf(48000, 48000).String())
	assert.Equal(t, "500ms", signal.DurationOf(48000, 24000).String())
}
