package audio

import (
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	"github.com/dudk/radiopipe/signal"
)

// WavSink saves audio to a 16-bit PCM wav file.
type WavSink struct {
	file    *os.File
	encoder *wav.Encoder
	format  *goaudio.Format
}

// NewWav creates a new wav sink.
func NewWav(path string, sampleRate, numChannels int) (*WavSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create wav output")
	}
	return &WavSink{
		file:    f,
		encoder: wav.NewEncoder(f, sampleRate, signal.BitDepth16, numChannels, 1),
		format: &goaudio.Format{
			NumChannels: numChannels,
			SampleRate:  sampleRate,
		},
	}, nil
}

// Write implements pipe.Sink.
func (s *WavSink) Write(chunk []signal.Sample) error {
	return s.encoder.Write(&goaudio.IntBuffer{
		Format:         s.format,
		Data:           signal.AsInts(chunk),
		SourceBitDepth: signal.BitDepth16,
	})
}

// Close finalizes the wav header and closes the file.
func (s *WavSink) Close() error {
	if err := s.encoder.Close(); err != nil {
		return err
	}
	return s.file.Close()
}
