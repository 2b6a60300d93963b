// Package buffer provides a thread-safe FIFO of sample chunks used to move
// data between pipeline stages running on different goroutines.
package buffer

import "sync"

// Buffer is a queue of sample chunks with end-of-stream signaling.
//
// It is a monitor: queue contents, the queued element total and the end
// marker are updated together under a single lock, so a consumer observes
// the end marker only after every chunk pushed before it. Chunks are handed
// over by reference, never copied, and every hand-off transfers ownership.
//
// A buffer instance is meant to be shared by a single producer and a single
// consumer, although all operations are safe from any goroutine. Growth is
// unbounded: overflow detection is the caller's responsibility via
// QueuedSamples.
type Buffer[T any] struct {
	mu        sync.Mutex
	cond      *sync.Cond
	queue     [][]T
	queued    int
	endMarked bool
}

// New returns a new empty buffer.
func New[T any]() *Buffer[T] {
	b := &Buffer[T]{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Push appends a chunk to the queue and wakes all waiters. Pushing an empty
// chunk is a no-op, so waiters are never woken up without data to consume.
// Push must not be called after PushEnd.
func (b *Buffer[T]) Push(chunk []T) {
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	b.queued += len(chunk)
	b.queue = append(b.queue, chunk)
	b.mu.Unlock()
	b.cond.Broadcast()
}

// PushEnd marks the end of the data stream and wakes all waiters.
// It is idempotent.
func (b *Buffer[T]) PushEnd() {
	b.mu.Lock()
	b.endMarked = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

// QueuedSamples returns the number of queued elements. The value is a
// snapshot and may be stale the moment it is returned.
func (b *Buffer[T]) QueuedSamples() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queued
}

// Pull removes and returns the head chunk. If the queue is empty, it blocks
// until a chunk is pushed or the end is marked. Once the end marker is
// reached and the queue is drained, Pull returns a nil chunk.
func (b *Buffer[T]) Pull() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.queue) == 0 && !b.endMarked {
		b.cond.Wait()
	}
	if len(b.queue) == 0 {
		return nil
	}
	chunk := b.queue[0]
	b.queue[0] = nil
	b.queue = b.queue[1:]
	b.queued -= len(chunk)
	return chunk
}

// PullEndReached returns true if the end marker was pushed and all queued
// chunks have been pulled.
func (b *Buffer[T]) PullEndReached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queued == 0 && b.endMarked
}

// WaitBufferFill blocks until the buffer contains at least minFill elements
// or the end is marked. It lets a consumer wait out a slow producer instead
// of waking up on every single chunk.
func (b *Buffer[T]) WaitBufferFill(minFill int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.queued < minFill && !b.endMarked {
		b.cond.Wait()
	}
}
