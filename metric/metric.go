// Package metric exposes pipe run counters through expvar.
package metric

import (
	"expvar"
	"fmt"

	"github.com/dudk/radiopipe/signal"
)

const (
	// ChunkCounter measures number of processed chunks.
	ChunkCounter = "Chunks"
	// SampleCounter measures number of decoded samples.
	SampleCounter = "Samples"
	// DurationCounter measures duration of decoded audio.
	DurationCounter = "Duration"
	// SinkFailureCounter measures number of failed sink writes.
	SinkFailureCounter = "SinkFailures"
)

// Metric holds counters of a single pipe run. A nil Metric is valid and
// counts nothing.
type Metric struct {
	sampleRate   int
	chunks       *expvar.Int
	samples      *expvar.Int
	duration     *expvar.String
	sinkFailures *expvar.Int
}

// New publishes a new set of counters under the provided label. Labels must
// be unique within the process.
func New(label string, sampleRate int) *Metric {
	return &Metric{
		sampleRate:   sampleRate,
		chunks:       expvar.NewInt(fmt.Sprintf("%s.%s", label, ChunkCounter)),
		samples:      expvar.NewInt(fmt.Sprintf("%s.%s", label, SampleCounter)),
		duration:     expvar.NewString(fmt.Sprintf("%s.%s", label, DurationCounter)),
		sinkFailures: expvar.NewInt(fmt.Sprintf("%s.%s", label, SinkFailureCounter)),
	}
}

// Chunk counts a processed chunk and its samples.
func (m *Metric) Chunk(samples int) {
	if m == nil {
		return
	}
	m.chunks.Add(1)
	m.samples.Add(int64(samples))
	m.duration.Set(signal.DurationOf(m.sampleRate, m.samples.Value()).String())
}

// SinkFailure counts a failed sink write.
func (m *Metric) SinkFailure() {
	if m == nil {
		return
	}
	m.sinkFailures.Add(1)
}

// Chunks returns the number of processed chunks.
func (m *Metric) Chunks() int64 {
	if m == nil {
		return 0
	}
	return m.chunks.Value()
}

// Samples returns the number of decoded samples.
func (m *Metric) Samples() int64 {
	if m == nil {
		return 0
	}
	return m.samples.Value()
}

// SinkFailures returns the number of failed sink writes.
func (m *Metric) SinkFailures() int64 {
	if m == nil {
		return 0
	}
	return m.sinkFailures.Value()
}
