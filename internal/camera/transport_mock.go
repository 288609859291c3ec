package camera

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MockConn is a scripted Conn for tests. It serves a fixed byte stream and
// then behaves according to Tail: returning EOF (server closed) or timing
// out against the configured read deadline (stalled stream).
type MockConn struct {
	mu       sync.Mutex
	data     []byte
	pos      int
	deadline time.Time
	closed   bool
	tailHang bool // once drained: hang until deadline instead of EOF
}

// NewMockConn returns a connection that serves stream and then reports EOF.
func NewMockConn(stream []byte) *MockConn {
	return &MockConn{data: stream}
}

// NewHangingMockConn returns a connection that serves stream and then stalls,
// failing reads with a timeout once the read deadline passes.
func NewHangingMockConn(stream []byte) *MockConn {
	return &MockConn{data: stream, tailHang: true}
}

func (c *MockConn) Read(p []byte) (int, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return 0, fmt.Errorf("read on closed connection")
		}
		if c.pos < len(c.data) {
			n := copy(p, c.data[c.pos:])
			c.pos += n
			c.mu.Unlock()
			return n, nil
		}
		hang, deadline := c.tailHang, c.deadline
		c.mu.Unlock()

		if !hang {
			return 0, io.EOF
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return 0, timeoutError{}
		}
		time.Sleep(time.Millisecond)
	}
}

func (c *MockConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	return nil
}

// Close is idempotent.
func (c *MockConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Closed reports whether Close has been called.
func (c *MockConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// timeoutError mimics a net.Error deadline expiry.
type timeoutError struct{}

func (timeoutError) Error() string   { return "read deadline exceeded" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// MockDialer hands out a prepared connection, or fails with Err.
type MockDialer struct {
	Conn *MockConn
	Err  error

	mu    sync.Mutex
	dials int
}

func (d *MockDialer) Dial(ctx context.Context, address string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Conn, nil
}

// Dials returns how many times Dial was invoked.
func (d *MockDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
