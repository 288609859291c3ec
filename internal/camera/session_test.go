package camera

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polarisvision/camlink/internal/timeutil"
)

const (
	testWidth  = 8
	testHeight = 4
)

// syntheticStream renders n consecutive wire frames into one byte stream.
func syntheticStream(t *testing.T, n int) []byte {
	t.Helper()
	src, err := NewSyntheticSource(testWidth, testHeight)
	require.NoError(t, err)

	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		require.NoError(t, src.WriteFrame(&buf, uint64(i)*1e6))
	}
	return buf.Bytes()
}

func testSession(t *testing.T, conn *MockConn) *Session {
	t.Helper()
	s, err := NewSession(SessionConfig{
		Address:       "test:8888",
		MaxFrameBytes: 4096,
		Dialer:        &MockDialer{Conn: conn},
		Clock:         timeutil.NewMockClock(time.Unix(1000, 0)),
	})
	require.NoError(t, err)
	return s
}

func TestSessionConfigValidation(t *testing.T) {
	t.Parallel()

	_, err := NewSession(SessionConfig{})
	assert.Error(t, err, "address is required")

	_, err = NewSession(SessionConfig{Address: "x:1", PoolSize: 2, QueueDepth: 2})
	assert.Error(t, err, "queue depth must be below pool size")

	_, err = NewSession(SessionConfig{Address: "x:1", MaxFrameBytes: AbsoluteMaxFrameBytes + 1})
	assert.Error(t, err, "max frame bytes above protocol limit")
}

func TestSessionReceivesFrames(t *testing.T) {
	t.Parallel()

	conn := NewMockConn(syntheticStream(t, 3))
	s := testSession(t, conn)

	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(context.Background()) }()

	var got []*DecodedFrame
	for f := range s.Frames() {
		got = append(got, f)
	}
	require.Len(t, got, 3)

	for i, f := range got {
		assert.Equal(t, uint32(i), f.FrameID)
		assert.Equal(t, uint32(testWidth), f.Width)
		assert.Equal(t, uint32(testHeight), f.Height)
		assert.Equal(t, uint32(PixFmtSBGGR10), f.PixFmt)
		assert.Len(t, f.Pixels, testWidth*testHeight)
		for _, p := range f.Pixels {
			require.LessOrEqual(t, p, uint16(MaxSample))
		}
		require.NoError(t, f.Release())
	}

	// The server closing mid-stream ends the session with an error.
	err := <-runErr
	assert.ErrorIs(t, err, ErrConnectionClosed)

	stats := s.Stats()
	assert.Equal(t, int64(3), stats.FramesReceived)
	assert.Equal(t, int64(3*PackedSize(testWidth, testHeight)), stats.BytesReceived)
	assert.True(t, conn.Closed())
	assert.Equal(t, StateDisconnected, s.State())
}

func TestSessionRejectsBadMagic(t *testing.T) {
	t.Parallel()

	stream := syntheticStream(t, 1)
	stream[0] ^= 0xFF
	s := testSession(t, NewMockConn(stream))

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidMagic)

	_, open := <-s.Frames()
	assert.False(t, open, "frames channel must be closed after a fatal error")
}

func TestSessionRejectsOversizedFrame(t *testing.T) {
	t.Parallel()

	h := FrameHeader{
		Magic:  FrameMagic,
		Width:  testWidth,
		Height: testHeight,
		PixFmt: PixFmtSBGGR10,
		Size:   5000, // above the 4096 session limit
	}
	s := testSession(t, NewMockConn(EncodeFrameHeader(h)))

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestSessionDropsUndecodableFrame(t *testing.T) {
	t.Parallel()

	// One frame in a foreign pixel format, then a good frame. The bad
	// frame is dropped without killing the stream.
	bad := FrameHeader{
		Magic:  FrameMagic,
		Width:  testWidth,
		Height: testHeight,
		PixFmt: 0x56595559, // YUYV
		Size:   PackedSize(testWidth, testHeight),
	}
	var stream bytes.Buffer
	stream.Write(EncodeFrameHeader(bad))
	stream.Write(make([]byte, bad.Size))
	stream.Write(syntheticStream(t, 1))

	s := testSession(t, NewMockConn(stream.Bytes()))

	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(context.Background()) }()

	var got []*DecodedFrame
	for f := range s.Frames() {
		got = append(got, f)
	}
	require.Len(t, got, 1)
	assert.Equal(t, uint32(PixFmtSBGGR10), got[0].PixFmt)
	require.NoError(t, got[0].Release())

	<-runErr
	assert.Equal(t, int64(1), s.Stats().FramesReceived, "dropped frames must not count")
}

func TestSessionCancellation(t *testing.T) {
	t.Parallel()

	// The stream stalls after two frames; cancelling the context must
	// end the session cleanly once the pending read deadline expires.
	s, err := NewSession(SessionConfig{
		Address:       "test:8888",
		MaxFrameBytes: 4096,
		ReadTimeout:   20 * time.Millisecond,
		Dialer:        &MockDialer{Conn: NewHangingMockConn(syntheticStream(t, 2))},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx) }()

	var got []*DecodedFrame
	for f := range s.Frames() {
		got = append(got, f)
		require.NoError(t, f.Release())
		if len(got) == 2 {
			cancel()
		}
	}
	require.Len(t, got, 2)

	select {
	case err := <-runErr:
		assert.NoError(t, err, "cancellation is a clean shutdown")
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop after cancellation")
	}
}

func TestSessionStalledStreamIsFatal(t *testing.T) {
	t.Parallel()

	// Without cancellation, a stream that stops delivering bytes must
	// fail once the read deadline passes.
	s, err := NewSession(SessionConfig{
		Address:       "test:8888",
		MaxFrameBytes: 4096,
		ReadTimeout:   20 * time.Millisecond,
		Dialer:        &MockDialer{Conn: NewHangingMockConn(nil)},
	})
	require.NoError(t, err)

	err = s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "expected a timeout error, got %v", err)
}

func TestSessionDialFailure(t *testing.T) {
	t.Parallel()

	dialErr := errors.New("connection refused")
	s, err := NewSession(SessionConfig{
		Address: "test:8888",
		Dialer:  &MockDialer{Err: dialErr},
	})
	require.NoError(t, err)

	err = s.Run(context.Background())
	assert.ErrorIs(t, err, dialErr)

	_, open := <-s.Frames()
	assert.False(t, open)
}

func TestShouldSave(t *testing.T) {
	t.Parallel()

	cases := []struct {
		frameID  uint32
		interval int
		want     bool
	}{
		{0, 0, true},
		{7, 1, true},
		{0, 10, true},
		{10, 10, true},
		{15, 10, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, shouldSave(tc.frameID, tc.interval),
			"frame %d interval %d", tc.frameID, tc.interval)
	}
}
