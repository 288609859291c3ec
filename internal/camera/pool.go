package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrPoolExhausted is returned by TryAcquire when every buffer is
	// checked out. The blocking Acquire never returns it.
	ErrPoolExhausted = errors.New("buffer pool exhausted")

	// ErrBufferReleased is returned when a buffer is released twice.
	// Double release is always a caller bug; it is reported rather than
	// ignored so ownership violations surface in tests.
	ErrBufferReleased = errors.New("buffer already released")
)

// Buffer is an exclusively owned slab handed out by a BufferPool. Raw holds
// the packed payload as read off the wire; Pixels holds the decoded samples.
// At any instant a buffer is owned by exactly one stage: the receive loop
// between Acquire and hand-off, then the consumer until Release.
type Buffer struct {
	Raw    []byte
	Pixels []uint16

	pool     *BufferPool
	mu       sync.Mutex
	released bool
}

// Release returns the buffer to the pool's free set. A second Release of
// the same checkout returns ErrBufferReleased and leaves the pool intact.
func (b *Buffer) Release() error {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return ErrBufferReleased
	}
	b.released = true
	b.mu.Unlock()

	// Never blocks: the free channel has capacity for every buffer.
	b.pool.free <- b
	return nil
}

func (b *Buffer) checkout() {
	b.mu.Lock()
	b.released = false
	b.mu.Unlock()
}

// BufferPool manages a bounded set of reusable frame buffers. Acquisition
// blocks when the set is empty, which is the backpressure policy: a fast
// sender cannot force unbounded allocation, it simply waits on the consumer.
type BufferPool struct {
	free     chan *Buffer
	capacity int
	rawBytes int
}

// NewBufferPool allocates count buffers, each with rawBytes of packed
// payload space and the matching decoded-sample capacity.
func NewBufferPool(count, rawBytes int) (*BufferPool, error) {
	if count <= 0 {
		return nil, fmt.Errorf("buffer count must be positive, got %d", count)
	}
	if rawBytes <= 0 {
		return nil, fmt.Errorf("buffer size must be positive, got %d", rawBytes)
	}
	p := &BufferPool{
		free:     make(chan *Buffer, count),
		capacity: count,
		rawBytes: rawBytes,
	}
	for i := 0; i < count; i++ {
		p.free <- &Buffer{
			Raw:      make([]byte, rawBytes),
			Pixels:   make([]uint16, UnpackedLen(rawBytes)),
			pool:     p,
			released: true,
		}
	}
	return p, nil
}

// Acquire blocks until a buffer is free or ctx is cancelled.
func (p *BufferPool) Acquire(ctx context.Context) (*Buffer, error) {
	select {
	case b := <-p.free:
		b.checkout()
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire returns a free buffer immediately or ErrPoolExhausted.
func (p *BufferPool) TryAcquire() (*Buffer, error) {
	select {
	case b := <-p.free:
		b.checkout()
		return b, nil
	default:
		return nil, ErrPoolExhausted
	}
}

// Capacity returns the total number of buffers the pool owns.
func (p *BufferPool) Capacity() int { return p.capacity }

// RawBytes returns the packed payload capacity of each buffer.
func (p *BufferPool) RawBytes() int { return p.rawBytes }

// Free returns how many buffers are currently available.
func (p *BufferPool) Free() int { return len(p.free) }
