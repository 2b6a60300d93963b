// Package mock provides test doubles for pipe collaborators.
package mock

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dudk/radiopipe/pipe"
	"github.com/dudk/radiopipe/signal"
)

// ErrWrite is returned by a failing mock sink write.
var ErrWrite = errors.New("mock write failed")

// Source produces Limit scripted IQ chunks and then idles like real
// hardware, returning empty chunks until a stop is requested through
// Cancel. Sample values are stamped with the chunk index so that ordering
// can be verified downstream.
type Source struct {
	ChunkSize int
	Limit     int
	Interval  time.Duration
	Err       error
	ErrAfter  int
	Cancel    *pipe.Canceller

	fetched int
}

// FetchChunk implements pipe.Source.
func (s *Source) FetchChunk() ([]signal.IQ, error) {
	if s.Interval > 0 {
		time.Sleep(s.Interval)
	}
	if s.Err != nil && s.fetched >= s.ErrAfter {
		return nil, s.Err
	}
	if s.fetched >= s.Limit {
		for s.Cancel != nil && !s.Cancel.Cancelled() {
			time.Sleep(time.Millisecond)
		}
		return nil, nil
	}
	chunk := make([]signal.IQ, s.ChunkSize)
	for i := range chunk {
		chunk[i] = complex(float32(s.fetched), float32(i))
	}
	s.fetched++
	return chunk, nil
}

// Fetched returns the number of produced chunks.
func (s *Source) Fetched() int {
	return s.fetched
}

// Decoder passes the real part of IQ samples through as audio samples and
// counts calls. The counter is atomic so tests can poll it while the
// decode loop is running.
type Decoder struct {
	StereoAfter int // processed chunks after which the stereo flag latches, <0 never
	Pilot       float64

	processed atomic.Int64
}

// Process implements pipe.Decoder.
func (d *Decoder) Process(iq []signal.IQ) []signal.Sample {
	d.processed.Add(1)
	chunk := make([]signal.Sample, len(iq))
	for i := range iq {
		chunk[i] = signal.Sample(real(iq[i]))
	}
	return chunk
}

// Processed returns the number of decoded chunks.
func (d *Decoder) Processed() int {
	return int(d.processed.Load())
}

// IFLevel implements pipe.Decoder.
func (d *Decoder) IFLevel() float64 { return 1 }

// BasebandLevel implements pipe.Decoder.
func (d *Decoder) BasebandLevel() float64 { return 1 }

// PilotLevel implements pipe.Decoder.
func (d *Decoder) PilotLevel() float64 { return d.Pilot }

// TuningOffset implements pipe.Decoder.
func (d *Decoder) TuningOffset() float64 { return 0 }

// StereoDetected implements pipe.Decoder.
func (d *Decoder) StereoDetected() bool {
	return d.StereoAfter >= 0 && d.processed.Load() > int64(d.StereoAfter)
}

// Sink records written chunks. Every FailEvery-th write fails with
// ErrWrite, zero disables failures. Delay simulates a slow device.
type Sink struct {
	FailEvery int
	Delay     time.Duration

	mu     sync.Mutex
	chunks [][]signal.Sample
	writes int
}

// Write implements pipe.Sink.
func (s *Sink) Write(chunk []signal.Sample) error {
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.FailEvery > 0 && s.writes%s.FailEvery == 0 {
		return ErrWrite
	}
	s.chunks = append(s.chunks, chunk)
	return nil
}

// Chunks returns recorded chunks.
func (s *Sink) Chunks() [][]signal.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks
}

// Writes returns the number of write calls, including failed ones.
func (s *Sink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Samples returns the total number of recorded samples.
func (s *Sink) Samples() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, chunk := range s.chunks {
		n += len(chunk)
	}
	return n
}
