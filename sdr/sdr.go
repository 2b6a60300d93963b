// Package sdr acquires raw IQ sample chunks from an RTL-SDR device.
package sdr

import (
	rtl "github.com/jpoirier/gortlsdr"
	"github.com/pkg/errors"

	"github.com/dudk/radiopipe/signal"
)

// blockLength is the number of bytes requested per device read.
const blockLength = 65536

// Config holds device parameters.
type Config struct {
	SampleRate int // IF sample rate in Hz
	Frequency  int // tuner centre frequency in Hz
	TunerGain  int // tenths of dB, negative selects automatic gain control
}

// Device reads IQ chunks from an RTL-SDR dongle. It implements
// pipe.Source. Reads are blocking and any read error is unrecoverable.
type Device struct {
	dev *rtl.Context
	buf []byte
	lut [256]float32
}

// Open opens the RTL-SDR device with the provided index and configures it
// for streaming.
func Open(devIndex int, cfg Config) (*Device, error) {
	dev, err := rtl.Open(devIndex)
	if err != nil {
		return nil, errors.Wrapf(err, "open rtlsdr device %v", devIndex)
	}
	d := &Device{
		dev: dev,
		buf: make([]byte, blockLength),
	}
	// unsigned 8-bit IQ pairs centred at 127.5
	for i := range d.lut {
		d.lut[i] = (float32(i) - 127.5) / 127.5
	}
	if err := d.configure(cfg); err != nil {
		dev.Close()
		return nil, err
	}
	return d, nil
}

func (d *Device) configure(cfg Config) error {
	if err := d.dev.SetSampleRate(cfg.SampleRate); err != nil {
		return errors.Wrap(err, "set sample rate")
	}
	if err := d.dev.SetCenterFreq(cfg.Frequency); err != nil {
		return errors.Wrap(err, "set centre frequency")
	}
	if cfg.TunerGain < 0 {
		if err := d.dev.SetTunerGainMode(false); err != nil {
			return errors.Wrap(err, "set automatic gain")
		}
	} else {
		if err := d.dev.SetTunerGainMode(true); err != nil {
			return errors.Wrap(err, "set manual gain mode")
		}
		if err := d.dev.SetTunerGain(cfg.TunerGain); err != nil {
			return errors.Wrap(err, "set tuner gain")
		}
	}
	if err := d.dev.ResetBuffer(); err != nil {
		return errors.Wrap(err, "reset buffer")
	}
	return nil
}

// FetchChunk implements pipe.Source. It blocks until the device delivers
// the next block of samples.
func (d *Device) FetchChunk() ([]signal.IQ, error) {
	n, err := d.dev.ReadSync(d.buf, len(d.buf))
	if err != nil {
		return nil, errors.Wrap(err, "rtlsdr read")
	}
	n -= n % 2
	chunk := make([]signal.IQ, n/2)
	for i := range chunk {
		chunk[i] = complex(d.lut[d.buf[2*i]], d.lut[d.buf[2*i+1]])
	}
	return chunk, nil
}

// Frequency returns the actual tuned centre frequency in Hz.
func (d *Device) Frequency() float64 {
	return float64(d.dev.GetCenterFreq())
}

// SampleRate returns the actual device sample rate in Hz.
func (d *Device) SampleRate() float64 {
	return float64(d.dev.GetSampleRate())
}

// Close releases the device.
func (d *Device) Close() error {
	return d.dev.Close()
}
