package audio

import (
	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"

	"github.com/dudk/radiopipe/signal"
)

// Playback plays audio through the default portaudio device.
//
// Decoded chunks vary in length while the portaudio stream writes fixed
// frames, so samples are staged in a pending buffer and written out one
// full frame buffer at a time.
type Playback struct {
	stream      *portaudio.Stream
	buf         []float32
	pending     []float32
	numChannels int
}

// NewPlayback initializes portaudio and opens the default output stream.
func NewPlayback(sampleRate, numChannels, bufferFrames int) (*Playback, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errors.Wrap(err, "initialize portaudio")
	}
	p := &Playback{
		buf:         make([]float32, bufferFrames*numChannels),
		numChannels: numChannels,
	}
	stream, err := portaudio.OpenDefaultStream(0, numChannels, float64(sampleRate), bufferFrames, &p.buf)
	if err != nil {
		portaudio.Terminate()
		return nil, errors.Wrap(err, "open playback stream")
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, errors.Wrap(err, "start playback stream")
	}
	p.stream = stream
	return p, nil
}

// Write implements pipe.Sink.
func (p *Playback) Write(chunk []signal.Sample) error {
	for _, s := range chunk {
		p.pending = append(p.pending, float32(s))
	}
	for len(p.pending) >= len(p.buf) {
		copy(p.buf, p.pending)
		p.pending = append(p.pending[:0], p.pending[len(p.buf):]...)
		if err := p.stream.Write(); err != nil {
			return err
		}
	}
	return nil
}

// Close plays out pending samples and terminates portaudio structures.
func (p *Playback) Close() error {
	if len(p.pending) > 0 {
		for i := range p.buf {
			if i < len(p.pending) {
				p.buf[i] = p.pending[i]
			} else {
				p.buf[i] = 0
			}
		}
		p.pending = p.pending[:0]
		p.stream.Write()
	}
	if err := p.stream.Stop(); err != nil {
		return err
	}
	if err := p.stream.Close(); err != nil {
		return err
	}
	return portaudio.Terminate()
}
