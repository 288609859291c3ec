package camera

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAllocation(t *testing.T) {
	t.Parallel()

	p, err := NewBufferPool(3, 100)
	require.NoError(t, err)

	assert.Equal(t, 3, p.Capacity())
	assert.Equal(t, 100, p.RawBytes())
	assert.Equal(t, 3, p.Free())

	b, err := p.TryAcquire()
	require.NoError(t, err)
	assert.Len(t, b.Raw, 100)
	assert.Len(t, b.Pixels, UnpackedLen(100))
}

func TestPoolRejectsBadSizes(t *testing.T) {
	t.Parallel()

	_, err := NewBufferPool(0, 100)
	assert.Error(t, err)
	_, err = NewBufferPool(2, 0)
	assert.Error(t, err)
}

func TestPoolHandsOutDistinctBuffers(t *testing.T) {
	t.Parallel()

	p, err := NewBufferPool(4, 10)
	require.NoError(t, err)

	seen := make(map[*Buffer]bool)
	for i := 0; i < 4; i++ {
		b, err := p.TryAcquire()
		require.NoError(t, err)
		assert.False(t, seen[b], "buffer %d handed out twice", i)
		seen[b] = true
	}

	_, err = p.TryAcquire()
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestPoolAcquireBlocksUntilRelease(t *testing.T) {
	t.Parallel()

	p, err := NewBufferPool(1, 10)
	require.NoError(t, err)

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	acquired := make(chan *Buffer)
	go func() {
		b, err := p.Acquire(context.Background())
		if err == nil {
			acquired <- b
		}
	}()

	select {
	case <-acquired:
		t.Fatal("acquire returned while every buffer was checked out")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, held.Release())

	select {
	case b := <-acquired:
		assert.Same(t, held, b, "released buffer should be recycled")
	case <-time.After(time.Second):
		t.Fatal("acquire did not observe the release")
	}
}

func TestPoolAcquireHonoursContext(t *testing.T) {
	t.Parallel()

	p, err := NewBufferPool(1, 10)
	require.NoError(t, err)

	_, err = p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoubleReleaseReported(t *testing.T) {
	t.Parallel()

	p, err := NewBufferPool(2, 10)
	require.NoError(t, err)

	b, err := p.TryAcquire()
	require.NoError(t, err)

	require.NoError(t, b.Release())
	assert.ErrorIs(t, b.Release(), ErrBufferReleased)

	// The pool must still hold exactly its original buffers.
	assert.Equal(t, 2, p.Free())
}

func TestReleaseAfterReacquireIsFresh(t *testing.T) {
	t.Parallel()

	p, err := NewBufferPool(1, 10)
	require.NoError(t, err)

	b, err := p.TryAcquire()
	require.NoError(t, err)
	require.NoError(t, b.Release())

	// The same slab comes back out; its release state must be reset.
	again, err := p.TryAcquire()
	require.NoError(t, err)
	assert.Same(t, b, again)
	assert.NoError(t, again.Release())
}
