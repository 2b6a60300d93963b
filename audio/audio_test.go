package audio_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/radiopipe/audio"
	"github.com/dudk/radiopipe/signal"
)

func TestRawSink(t *testing.T) {
	var buf bytes.Buffer
	sink := audio.NewRawWriter(&buf)

	require.NoError(t, sink.Write([]signal.Sample{0, 0.5, -1}))
	require.NoError(t, sink.Close())

	// S16_LE: 0, 16383, -32766
	assert.Equal(t, []byte{0x00, 0x00, 0xff, 0x3f, 0x02, 0x80}, buf.Bytes())
}

func TestRawSinkFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.raw")
	sink, err := audio.NewRaw(path)
	require.NoError(t, err)

	require.NoError(t, sink.Write([]signal.Sample{1, 1}))
	require.NoError(t, sink.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, content, 4)
}

func TestWavSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	sink, err := audio.NewWav(path, 48000, 1)
	require.NoError(t, err)

	chunk := make([]signal.Sample, 48)
	for i := range chunk {
		chunk[i] = 0.25
	}
	require.NoError(t, sink.Write(chunk))
	require.NoError(t, sink.Write(chunk))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	decoder := wav.NewDecoder(f)
	require.True(t, decoder.IsValidFile())
	assert.Equal(t, uint32(48000), decoder.SampleRate)

	decoded, err := decoder.FullPCMBuffer()
	require.NoError(t, err)
	require.Len(t, decoded.Data, 96)
	assert.Equal(t, signal.AsInts(chunk)[0], decoded.Data[0])
}
