package pipe

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// stopMessage is precomputed so the signal path never allocates.
var stopMessage = []byte("\ngot stop signal, stopping ...\n")

// Canceller is a write-once cancellation handle shared by all pipe loops.
// It is passed explicitly into every loop instead of being a package
// global, so multiple pipes can run and stop independently.
type Canceller struct {
	flag atomic.Bool
}

// NewCanceller returns a new canceller in a non-cancelled state.
func NewCanceller() *Canceller {
	return &Canceller{}
}

// Cancel requests cooperative termination of all loops sharing this handle.
// The flag is one-way: once set it is never reset.
func (c *Canceller) Cancel() {
	c.flag.Store(true)
}

// Cancelled returns true once termination was requested. Loops poll it at
// iteration boundaries only, a running step is never interrupted.
func (c *Canceller) Cancelled() bool {
	return c.flag.Load()
}

// NotifySignals cancels the handle on SIGINT or SIGTERM. The handling path
// is minimal: an atomic store and a single unbuffered write of a
// precomputed message, as it may run concurrently with anything else.
func (c *Canceller) NotifySignals() {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		c.flag.Store(true)
		os.Stderr.Write(stopMessage)
	}()
}
