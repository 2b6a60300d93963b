// Package audio provides sinks consuming decoded sample chunks: raw and
// wav files, mp3 encoding and portaudio playback. Every sink implements
// pipe.Sink plus a Close flush hook called after the pipeline drains.
package audio

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/dudk/radiopipe/signal"
)

// RawSink writes interleaved signed 16-bit little-endian PCM samples.
type RawSink struct {
	w io.Writer
	f *os.File // nil when writing to a caller-owned writer
}

// NewRaw creates a raw sink writing to path. Path "-" means stdout.
func NewRaw(path string) (*RawSink, error) {
	if path == "-" {
		return &RawSink{w: os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create raw output")
	}
	return &RawSink{w: f, f: f}, nil
}

// NewRawWriter creates a raw sink writing to w.
func NewRawWriter(w io.Writer) *RawSink {
	return &RawSink{w: w}
}

// Write implements pipe.Sink.
func (s *RawSink) Write(chunk []signal.Sample) error {
	ints := signal.AsInt16(chunk)
	buf := make([]byte, 2*len(ints))
	for i, v := range ints {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(v))
	}
	_, err := s.w.Write(buf)
	return err
}

// Close closes the underlying file, if any.
func (s *RawSink) Close() error {
	if s.f == nil {
		return nil
	}
	return s.f.Close()
}
