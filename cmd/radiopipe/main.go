// Command radiopipe decodes FM broadcast radio from an RTL-SDR device and
// plays or records the audio.
package main

import (
	"math"
	"os"
	"strconv"

	"github.com/davecgh/go-spew/spew"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/dudk/radiopipe/audio"
	"github.com/dudk/radiopipe/fm"
	"github.com/dudk/radiopipe/log"
	"github.com/dudk/radiopipe/metric"
	"github.com/dudk/radiopipe/pipe"
	"github.com/dudk/radiopipe/sdr"
	"github.com/dudk/radiopipe/signal"
)

// playbackFrames is the portaudio stream buffer size in frames.
const playbackFrames = 4096

type config struct {
	freq     float64
	devIndex int
	ifRate   float64
	pcmRate  int
	mono     bool
	rawFile  string
	wavFile  string
	mp3File  string
	bufSecs  float64
}

func main() {
	logger := log.GetLogger()

	// an optional .env provides flag defaults
	godotenv.Load()

	var cfg config
	flag.Float64VarP(&cfg.freq, "freq", "f", envFloat("RADIOPIPE_FREQ", 0), "frequency of radio station in Hz")
	flag.IntVarP(&cfg.devIndex, "dev", "d", envInt("RADIOPIPE_DEV", 0), "RTL-SDR device index")
	flag.Float64VarP(&cfg.ifRate, "ifrate", "s", envFloat("RADIOPIPE_IFRATE", 1.0e6), "IF sample rate in Hz")
	flag.IntVarP(&cfg.pcmRate, "pcmrate", "r", envInt("RADIOPIPE_PCMRATE", 48000), "audio sample rate in Hz")
	flag.BoolVarP(&cfg.mono, "mono", "M", false, "disable stereo decoding")
	flag.StringVarP(&cfg.rawFile, "raw", "R", "", "write audio as raw S16_LE samples, use '-' to write to stdout")
	flag.StringVarP(&cfg.wavFile, "wav", "W", "", "write audio to .WAV file")
	flag.StringVarP(&cfg.mp3File, "mp3", "O", "", "write audio to .MP3 file")
	flag.Float64VarP(&cfg.bufSecs, "buffer", "b", -1, "audio buffer size in seconds")
	flag.Parse()

	if cfg.freq <= 0 {
		flag.Usage()
		fatal(logger, "specify a tuning frequency")
	}
	if cfg.ifRate < 3*fm.DefaultBandwidthIF {
		fatal(logger, "IF sample rate must be at least %.0f Hz", 3*fm.DefaultBandwidthIF)
	}
	logger.Debugf("configuration:\n%v", spew.Sdump(cfg))

	// tune above the station to move the DC offset out of the passband
	tunerFreq := cfg.freq
	if cfg.ifRate >= 5*fm.DefaultBandwidthIF {
		tunerFreq += 0.25 * cfg.ifRate
	}

	device, err := sdr.Open(cfg.devIndex, sdr.Config{
		SampleRate: int(cfg.ifRate),
		Frequency:  int(tunerFreq),
		TunerGain:  -1,
	})
	if err != nil {
		fatal(logger, "rtlsdr: %v", err)
	}

	tunerFreq = device.Frequency()
	ifRate := device.SampleRate()
	logger.Infof("device tuned for %.6f MHz", tunerFreq*1.0e-6)
	logger.Infof("IF sample rate %.0f Hz", ifRate)

	// the baseband signal is empty above 100 kHz, so downsampling to
	// ~200 kS/s loses no information and speeds up later stages
	downsample := int(ifRate / 215.0e3)
	if downsample < 1 {
		downsample = 1
	}
	logger.Infof("baseband downsampling factor %v", downsample)

	// prevent aliasing at very low output sample rates
	bandwidthPCM := math.Min(fm.DefaultBandwidthPCM, 0.45*float64(cfg.pcmRate))
	logger.Infof("audio sample rate %v Hz", cfg.pcmRate)
	logger.Infof("audio bandwidth %.3f kHz", bandwidthPCM*1.0e-3)

	stereo := !cfg.mono
	numChannels := 1
	if stereo {
		numChannels = 2
	}

	decoder, err := fm.New(fm.Config{
		IFRate:       ifRate,
		TuningOffset: cfg.freq - tunerFreq,
		PCMRate:      cfg.pcmRate,
		Stereo:       stereo,
		BandwidthPCM: bandwidthPCM,
		Downsample:   downsample,
	})
	if err != nil {
		fatal(logger, "decoder: %v", err)
	}

	var (
		sink        pipe.Sink
		closer      interface{ Close() error }
		interactive bool
	)
	switch {
	case cfg.rawFile != "":
		logger.Infof("writing raw 16-bit audio samples to '%v'", cfg.rawFile)
		s, err := audio.NewRaw(cfg.rawFile)
		if err != nil {
			fatal(logger, "output: %v", err)
		}
		sink, closer = s, s
		interactive = cfg.rawFile == "-"
	case cfg.wavFile != "":
		logger.Infof("writing audio samples to '%v'", cfg.wavFile)
		s, err := audio.NewWav(cfg.wavFile, cfg.pcmRate, numChannels)
		if err != nil {
			fatal(logger, "output: %v", err)
		}
		sink, closer = s, s
	case cfg.mp3File != "":
		logger.Infof("writing mp3 audio to '%v'", cfg.mp3File)
		s, err := audio.NewMP3(cfg.mp3File, cfg.pcmRate, numChannels, 192, 2)
		if err != nil {
			fatal(logger, "output: %v", err)
		}
		sink, closer = s, s
	default:
		logger.Infof("playing audio via default device")
		s, err := audio.NewPlayback(cfg.pcmRate, numChannels, playbackFrames)
		if err != nil {
			fatal(logger, "output: %v", err)
		}
		sink, closer = s, s
		interactive = true
	}

	// default to one second of buffered audio for interactive outputs
	outputBufSamples := 0
	if cfg.bufSecs < 0 && interactive {
		outputBufSamples = cfg.pcmRate * numChannels
	} else if cfg.bufSecs > 0 {
		outputBufSamples = int(cfg.bufSecs*float64(cfg.pcmRate)) * numChannels
	}
	if outputBufSamples > 0 {
		logger.Infof("output buffer %.1f seconds",
			float64(outputBufSamples)/float64(cfg.pcmRate*numChannels))
	}

	cancel := pipe.NewCanceller()
	cancel.NotifySignals()

	m := metric.New("radiopipe", cfg.pcmRate*numChannels)
	p, err := pipe.New(device, decoder, sink,
		pipe.WithName("radiopipe"),
		pipe.WithCanceller(cancel),
		pipe.WithLogger(logger),
		pipe.WithMetric(m),
		pipe.WithStatus(os.Stderr),
		pipe.WithInputRate(ifRate),
		pipe.WithOutputFormat(cfg.pcmRate, numChannels),
		pipe.WithOutputBuffer(outputBufSamples),
		pipe.WithFrequency(tunerFreq),
	)
	if err != nil {
		fatal(logger, "pipe: %v", err)
	}

	runErr := p.Run()

	if err := closer.Close(); err != nil {
		logger.Errorf("close output: %v", err)
	}
	if err := device.Close(); err != nil {
		logger.Errorf("close device: %v", err)
	}
	logger.Debugf("decoded %v chunks, %v of audio", m.Chunks(),
		signal.DurationOf(cfg.pcmRate*numChannels, m.Samples()))
	if runErr != nil {
		os.Exit(1)
	}
}

func fatal(logger log.Logger, format string, args ...interface{}) {
	logger.Errorf(format, args...)
	os.Exit(1)
}

func envFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return fallback
}
