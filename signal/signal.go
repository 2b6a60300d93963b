// Package signal provides types and helpers to manipulate sample chunks:
//	- raw IQ samples as produced by an SDR frontend
//	- decoded PCM samples, interleaved when more than one channel is used
package signal

import (
	"math"
	"time"
)

// Sample is a single PCM audio sample.
type Sample = float64

// IQ is a single complex baseband sample.
type IQ = complex64

// BitDepth16 is the only bit depth supported by the raw and wav sinks.
const BitDepth16 = 16

// multiplier used for float to int16 conversion.
const multiplier16 = math.MaxInt16 - 1

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// Gain applies a static linear gain to the chunk in place.
func Gain(chunk []Sample, gain Sample) {
	for i := range chunk {
		chunk[i] *= gain
	}
}

// MeanRMS returns mean and root mean square of the chunk.
// Zero values are returned for an empty chunk.
func MeanRMS(chunk []Sample) (mean, rms Sample) {
	if len(chunk) == 0 {
		return 0, 0
	}
	var sum, sqsum Sample
	for _, s := range chunk {
		sum += s
		sqsum += s * s
	}
	n := Sample(len(chunk))
	return sum / n, Sample(math.Sqrt(float64(sqsum / n)))
}

// AsInt16 converts a chunk of float samples in the [-1, 1] range to
// 16-bit integers. Values outside of the range are clipped.
func AsInt16(chunk []Sample) []int16 {
	ints := make([]int16, len(chunk))
	for i, s := range chunk {
		switch {
		case s > 1:
			ints[i] = multiplier16
		case s < -1:
			ints[i] = -multiplier16
		default:
			ints[i] = int16(s * multiplier16)
		}
	}
	return ints
}

// AsInts converts a chunk to a plain int slice with 16-bit scaling.
// It is used by sinks built on top of the go-audio buffers.
func AsInts(chunk []Sample) []int {
	ints := make([]int, len(chunk))
	for i, s := range chunk {
		switch {
		case s > 1:
			ints[i] = multiplier16
		case s < -1:
			ints[i] = -multiplier16
		default:
			ints[i] = int(s * multiplier16)
		}
	}
	return ints
}

// Level converts a linear level to decibels. A zero level maps to
// negative infinity.
func Level(l float64) float64 {
	return 20 * math.Log10(l)
}
