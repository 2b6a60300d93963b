package audio

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
	"github.com/viert/lame"

	"github.com/dudk/radiopipe/signal"
)

// MP3Sink encodes audio to an mp3 file.
type MP3Sink struct {
	file *os.File
	wr   *lame.LameWriter
}

// NewMP3 creates a new mp3 sink. Bit rate is in kbps, quality ranges from
// 0 (best) to 9 (worst).
func NewMP3(path string, sampleRate, numChannels, bitRate, quality int) (*MP3Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create mp3 output")
	}
	wr := lame.NewWriter(f)
	wr.Encoder.SetBitrate(bitRate)
	wr.Encoder.SetQuality(quality)
	wr.Encoder.SetNumChannels(numChannels)
	wr.Encoder.SetInSamplerate(sampleRate)
	if numChannels == 1 {
		wr.Encoder.SetMode(lame.MONO)
	} else {
		wr.Encoder.SetMode(lame.JOINT_STEREO)
	}
	wr.Encoder.InitParams()
	return &MP3Sink{file: f, wr: wr}, nil
}

// Write implements pipe.Sink.
func (s *MP3Sink) Write(chunk []signal.Sample) error {
	ints := signal.AsInt16(chunk)
	buf := make([]byte, 2*len(ints))
	for i, v := range ints {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(v))
	}
	_, err := s.wr.Write(buf)
	return err
}

// Close flushes the encoder and closes the file.
func (s *MP3Sink) Close() error {
	if err := s.wr.Close(); err != nil {
		return err
	}
	return s.file.Close()
}
