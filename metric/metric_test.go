package metric_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/radiopipe/metric"
)

func TestMetric(t *testing.T) {
	m := metric.New(t.Name(), 48000)

	m.Chunk(4800)
	m.Chunk(4800)
	m.SinkFailure()

	assert.Equal(t, int64(2), m.Chunks())
	assert.Equal(t, int64(9600), m.Samples())
	assert.Equal(t, int64(1), m.SinkFailures())
}

func TestNilMetric(t *testing.T) {
	var m *metric.Metric

	m.Chunk(100)
	m.SinkFailure()

	assert.Equal(t, int64(0), m.Chunks())
	assert.Equal(t, int64(0), m.Samples())
	assert.Equal(t, int64(0), m.SinkFailures())
}
