// Package pipe moves sample chunks from a radio source through a decoder to
// an audio sink. The source runs in its own goroutine so the hardware is
// drained at capture cadence, the decode loop runs on the goroutine calling
// Run and an optional delivery worker decouples the sink from decode
// latency. All loops terminate cooperatively through a shared Canceller and
// end-marker propagation, without losing chunks pushed before the stop.
package pipe

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"

	"github.com/dudk/radiopipe/buffer"
	"github.com/dudk/radiopipe/log"
	"github.com/dudk/radiopipe/metric"
	"github.com/dudk/radiopipe/signal"
)

// Source is a collaborator producing chunks of raw IQ samples. FetchChunk
// blocks until the next chunk was acquired. A returned error is
// unrecoverable and terminates the run.
type Source interface {
	FetchChunk() ([]signal.IQ, error)
}

// Decoder is a collaborator transforming IQ chunks into audio chunks. It is
// stateful and is never called concurrently with itself. The accessors
// report the state after the latest Process call.
type Decoder interface {
	Process([]signal.IQ) []signal.Sample
	IFLevel() float64
	BasebandLevel() float64
	StereoDetected() bool
	PilotLevel() float64
	TuningOffset() float64
}

// Sink is a collaborator consuming decoded audio chunks. Write is
// synchronous and reports failures by value. It is called either from the
// decode loop or from the delivery worker, never from both.
type Sink interface {
	Write([]signal.Sample) error
}

var (
	// ErrSourceNotDefined is returned if pipe is created without a source.
	ErrSourceNotDefined = errors.New("source is not defined")
	// ErrDecoderNotDefined is returned if pipe is created without a decoder.
	ErrDecoderNotDefined = errors.New("decoder is not defined")
	// ErrSinkNotDefined is returned if pipe is created without a sink.
	ErrSinkNotDefined = errors.New("sink is not defined")
	// ErrRunReused is returned on an attempt to run the same pipe twice.
	ErrRunReused = errors.New("pipe cannot be run twice")
)

const (
	// input buffer occupancy over this multiple of the per-second input
	// rate means the decode loop cannot keep up with the source.
	overflowFactor = 10

	// per-chunk smoothing factor of the audio level estimate.
	levelSmoothing = 0.05

	defaultInputRate  = 1.0e6
	defaultOutputRate = 48000
	defaultChannels   = 1
	defaultGain       = 0.5
	defaultWarmupTrim = 1
)

// Pipe owns the buffers and worker goroutines of a single streaming run.
type Pipe struct {
	uid  string
	name string

	source  Source
	decoder Decoder
	sink    Sink

	cancel *Canceller
	logger log.Logger
	metric *metric.Metric
	status io.Writer

	inputRate        float64
	outputRate       int
	numChannels      int
	outputBufSamples int
	warmupChunks     int
	gain             signal.Sample
	frequency        float64

	input  *buffer.Buffer[signal.IQ]
	output *buffer.Buffer[signal.Sample]

	started     atomic.Bool
	ingestDone  chan struct{}
	deliverDone chan struct{}

	errMu  sync.Mutex
	runErr error

	// decode loop state
	level          float64
	gotStereo      bool
	overflowWarned bool
}

// Option provides a way to set functional parameters to pipe.
type Option func(p *Pipe) error

// New creates a new pipe with provided collaborators and options.
func New(source Source, decoder Decoder, sink Sink, options ...Option) (*Pipe, error) {
	switch {
	case source == nil:
		return nil, ErrSourceNotDefined
	case decoder == nil:
		return nil, ErrDecoderNotDefined
	case sink == nil:
		return nil, ErrSinkNotDefined
	}
	p := &Pipe{
		uid:          xid.New().String(),
		source:       source,
		decoder:      decoder,
		sink:         sink,
		cancel:       NewCanceller(),
		logger:       log.GetLogger(),
		inputRate:    defaultInputRate,
		outputRate:   defaultOutputRate,
		numChannels:  defaultChannels,
		warmupChunks: defaultWarmupTrim,
		gain:         defaultGain,
		input:        buffer.New[signal.IQ](),
	}
	for _, option := range options {
		if err := option(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// WithName sets name to Pipe.
func WithName(n string) Option {
	return func(p *Pipe) error {
		p.name = n
		return nil
	}
}

// WithCanceller sets a shared cancellation handle to Pipe. If this option
// is not provided, the pipe creates its own.
func WithCanceller(c *Canceller) Option {
	return func(p *Pipe) error {
		p.cancel = c
		return nil
	}
}

// WithLogger sets logger to Pipe.
func WithLogger(l log.Logger) Option {
	return func(p *Pipe) error {
		p.logger = l
		return nil
	}
}

// WithMetric adds metrics for this pipe.
func WithMetric(m *metric.Metric) Option {
	return func(p *Pipe) error {
		p.metric = m
		return nil
	}
}

// WithStatus sets the writer for the overwritten status line. Without this
// option the status line is suppressed.
func WithStatus(w io.Writer) Option {
	return func(p *Pipe) error {
		p.status = w
		return nil
	}
}

// WithInputRate sets the nominal IQ sample rate used by the input overflow
// advisory.
func WithInputRate(rate float64) Option {
	return func(p *Pipe) error {
		if rate <= 0 {
			return errors.New("input rate must be positive")
		}
		p.inputRate = rate
		return nil
	}
}

// WithOutputFormat sets the PCM sample rate and number of channels of
// decoded chunks. Used by the status line only.
func WithOutputFormat(sampleRate, numChannels int) Option {
	return func(p *Pipe) error {
		if sampleRate <= 0 || numChannels <= 0 {
			return errors.New("output format must be positive")
		}
		p.outputRate = sampleRate
		p.numChannels = numChannels
		return nil
	}
}

// WithOutputBuffer enables the buffered output path: decoded chunks go
// through a buffer with the provided nominal depth in samples and a
// delivery worker writes them to the sink. Zero depth keeps the direct
// path.
func WithOutputBuffer(samples int) Option {
	return func(p *Pipe) error {
		if samples < 0 {
			return errors.New("output buffer size must not be negative")
		}
		p.outputBufSamples = samples
		return nil
	}
}

// WithWarmupChunks sets the number of leading chunks dropped while decoder
// filters settle.
func WithWarmupChunks(n int) Option {
	return func(p *Pipe) error {
		if n < 0 {
			return errors.New("warmup chunks must not be negative")
		}
		p.warmupChunks = n
		return nil
	}
}

// WithGain sets the static headroom gain applied to decoded chunks.
func WithGain(gain signal.Sample) Option {
	return func(p *Pipe) error {
		p.gain = gain
		return nil
	}
}

// WithFrequency sets the tuner frequency in Hz reported by the status line.
func WithFrequency(hz float64) Option {
	return func(p *Pipe) error {
		p.frequency = hz
		return nil
	}
}

// Run executes the pipe on the calling goroutine and blocks until all
// stages have terminated. It returns the error of a fatal source failure,
// nil otherwise. A pipe can only be run once.
func (p *Pipe) Run() error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrRunReused
	}
	p.logger.Debugf("%v: starting", p)

	p.ingestDone = make(chan struct{})
	go p.ingest()

	if p.outputBufSamples > 0 {
		p.output = buffer.New[signal.Sample]()
		p.deliverDone = make(chan struct{})
		go p.deliver()
	}

	p.decode()
	if p.status != nil {
		fmt.Fprintln(p.status)
	}

	// the ingest worker notices cancellation within one source read and
	// pushes its end marker, the delivery worker drains what is left.
	<-p.ingestDone
	if p.output != nil {
		p.output.PushEnd()
		<-p.deliverDone
	}
	p.logger.Debugf("%v: done", p)
	return p.runError()
}

// Stop requests cooperative termination of the pipe. It is idempotent and
// safe to call from any goroutine.
func (p *Pipe) Stop() {
	p.cancel.Cancel()
}

// ingest drains the source at capture cadence and publishes chunks into
// the input buffer. A source error is fatal: it is recorded as the run
// error and cancels the whole pipe. The end marker is pushed exactly once
// on the way out.
func (p *Pipe) ingest() {
	defer close(p.ingestDone)
	defer p.input.PushEnd()
	for !p.cancel.Cancelled() {
		chunk, err := p.source.FetchChunk()
		if err != nil {
			p.logger.Errorf("source: %v", err)
			p.setError(err)
			p.cancel.Cancel()
			return
		}
		p.input.Push(chunk)
	}
}

// decode is the primary loop: pull, decode, track levels, deliver.
func (p *Pipe) decode() {
	for block := 0; !p.cancel.Cancelled(); block++ {
		if !p.overflowWarned && float64(p.input.QueuedSamples()) > overflowFactor*p.inputRate {
			p.logger.Warnf("input buffer is growing (system too slow)")
			p.overflowWarned = true
		}

		iq := p.input.Pull()
		if len(iq) == 0 {
			break
		}

		chunk := p.decoder.Process(iq)

		_, rms := signal.MeanRMS(chunk)
		p.level = (1-levelSmoothing)*p.level + levelSmoothing*rms

		signal.Gain(chunk, p.gain)

		p.metric.Chunk(len(chunk))
		p.printStatus(block)
		p.reportStereoEdge()

		// leading chunks are noisy while the decoder filters settle
		if block < p.warmupChunks {
			continue
		}

		if p.output != nil {
			p.output.Push(chunk)
		} else if err := p.sink.Write(chunk); err != nil {
			p.metric.SinkFailure()
			p.logger.Errorf("sink: %v", err)
		}
	}
}

// deliver drains the output buffer and writes chunks to the sink. Waiting
// for the nominal fill keeps the loop from waking up on every single chunk
// when production barely keeps pace with consumption. Sink failures are
// transient: reported and skipped.
func (p *Pipe) deliver() {
	defer close(p.deliverDone)
	for !p.cancel.Cancelled() {
		if p.output.QueuedSamples() == 0 {
			p.output.WaitBufferFill(p.outputBufSamples)
		}
		if p.output.PullEndReached() {
			break
		}
		chunk := p.output.Pull()
		if err := p.sink.Write(chunk); err != nil {
			p.metric.SinkFailure()
			p.logger.Errorf("sink: %v", err)
		}
	}
}

func (p *Pipe) printStatus(block int) {
	if p.status == nil {
		return
	}
	fmt.Fprintf(p.status,
		"\rblk=%6d freq=%8.4fMHz IF=%+5.1fdB BB=%+5.1fdB audio=%+5.1fdB ",
		block,
		(p.frequency+p.decoder.TuningOffset())*1.0e-6,
		signal.Level(p.decoder.IFLevel()),
		signal.Level(p.decoder.BasebandLevel())+3.01,
		signal.Level(p.level)+3.01)
	if p.output != nil {
		fmt.Fprintf(p.status, "buf=%.1fs ",
			float64(p.output.QueuedSamples())/float64(p.numChannels)/float64(p.outputRate))
	}
}

// reportStereoEdge reports transitions of the decoder lock flag,
// edge-triggered.
func (p *Pipe) reportStereoEdge() {
	stereo := p.decoder.StereoDetected()
	if stereo == p.gotStereo {
		return
	}
	p.gotStereo = stereo
	if stereo {
		p.logger.Infof("got stereo signal (pilot level = %f)", p.decoder.PilotLevel())
	} else {
		p.logger.Infof("lost stereo signal")
	}
}

func (p *Pipe) setError(err error) {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	if p.runErr == nil {
		p.runErr = err
	}
}

func (p *Pipe) runError() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.runErr
}

// Convert pipe to string. Name is included if it has value.
func (p *Pipe) String() string {
	if p.name == "" {
		return p.uid
	}
	return fmt.Sprintf("%v %v", p.name, p.uid)
}
