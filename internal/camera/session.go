package camera

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/polarisvision/camlink/internal/monitoring"
	"github.com/polarisvision/camlink/internal/timeutil"
)

// SessionState tracks the receive lifecycle.
type SessionState int32

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateReceiving
	StateStopping
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReceiving:
		return "receiving"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// SessionConfig configures one receive session. It is read once at session
// start and never mutated by the receive loop.
type SessionConfig struct {
	// Address is the camera server "host:port".
	Address string

	// ReadTimeout is the per-read deadline. It bounds both dead-stream
	// detection and worst-case shutdown latency for a read in flight.
	// Defaults to DefaultReadTimeout.
	ReadTimeout time.Duration

	// MaxFrameBytes is the largest payload the session accepts; it also
	// sizes every pool buffer. Defaults to 8 MiB, enough for a 2592x1944
	// SBGGR10 frame.
	MaxFrameBytes uint32

	// PoolSize is the number of frame buffers in flight between the
	// receive loop and the consumer. Defaults to 4.
	PoolSize int

	// QueueDepth is the decoded-frame hand-off channel depth. Defaults
	// to 2. Must be smaller than PoolSize or the loop could fill the
	// queue and starve itself of buffers.
	QueueDepth int

	// SaveInterval persists every Nth frame by frame id when a Saver is
	// configured. Values below 1 save every frame.
	SaveInterval int

	// Saver, when non-nil, persists frames per SaveInterval.
	Saver *FrameSaver

	// LogEvery emits a progress line every N decoded frames. 0 disables.
	LogEvery int

	// Dialer defaults to a TCPDialer.
	Dialer Dialer

	// Clock defaults to real time.
	Clock timeutil.Clock
}

const (
	defaultMaxFrameBytes = 8 * 1024 * 1024
	defaultPoolSize      = 4
	defaultQueueDepth    = 2
)

// Session owns one connection's receive loop and every resource it touches:
// the buffer pool, the stats tracker and the decoded-frame hand-off queue.
// Nothing is shared process-wide; two sessions are fully independent.
type Session struct {
	id     string
	cfg    SessionConfig
	dialer Dialer
	clock  timeutil.Clock
	pool   *BufferPool
	stats  *StatsTracker
	frames chan *DecodedFrame
	state  atomic.Int32
}

// NewSession validates cfg, fills defaults and allocates the buffer pool.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Address == "" {
		return nil, errors.New("session: address is required")
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.MaxFrameBytes == 0 {
		cfg.MaxFrameBytes = defaultMaxFrameBytes
	}
	if cfg.MaxFrameBytes > AbsoluteMaxFrameBytes {
		return nil, fmt.Errorf("session: max frame bytes %d exceeds protocol limit %d",
			cfg.MaxFrameBytes, AbsoluteMaxFrameBytes)
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = defaultPoolSize
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	if cfg.QueueDepth >= cfg.PoolSize {
		return nil, fmt.Errorf("session: queue depth %d must be smaller than pool size %d",
			cfg.QueueDepth, cfg.PoolSize)
	}
	if cfg.Dialer == nil {
		cfg.Dialer = TCPDialer{}
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}

	pool, err := NewBufferPool(cfg.PoolSize, int(cfg.MaxFrameBytes))
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	s := &Session{
		id:     uuid.NewString(),
		cfg:    cfg,
		dialer: cfg.Dialer,
		clock:  cfg.Clock,
		pool:   pool,
		stats:  NewStatsTracker(cfg.Clock),
		frames: make(chan *DecodedFrame, cfg.QueueDepth),
	}
	if cfg.Saver != nil {
		cfg.Saver.BindSession(s.id)
	}
	return s, nil
}

// ID returns the session identifier used in logs and the frame index.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// Stats returns a consistent snapshot of the session counters.
func (s *Session) Stats() Stats { return s.stats.Snapshot() }

// StatsTracker exposes the underlying tracker for the final summary log.
func (s *Session) StatsTracker() *StatsTracker { return s.stats }

// Frames returns the hand-off channel. The consumer owns each delivered
// frame until it calls Release; the channel is closed when Run returns.
func (s *Session) Frames() <-chan *DecodedFrame { return s.frames }

func (s *Session) setState(st SessionState) { s.state.Store(int32(st)) }

// Run connects and receives frames until ctx is cancelled or a
// session-fatal transport or framing error occurs. The connection is closed
// and the frames channel drained of ownership on every exit path. Run does
// not retry; restart policy belongs to the caller.
func (s *Session) Run(ctx context.Context) error {
	s.setState(StateConnecting)
	defer s.setState(StateDisconnected)

	conn, err := s.dialer.Dial(ctx, s.cfg.Address)
	if err != nil {
		close(s.frames)
		return fmt.Errorf("session %s: %w", s.id, err)
	}
	monitoring.Logf("session %s: connected to %s", s.id, s.cfg.Address)

	s.setState(StateReceiving)
	err = s.receiveLoop(ctx, conn)

	s.setState(StateStopping)
	if cerr := conn.Close(); cerr != nil {
		monitoring.Logf("session %s: close: %v", s.id, cerr)
	}
	close(s.frames)

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		monitoring.Logf("session %s: stopped", s.id)
		return nil
	}
	return fmt.Errorf("session %s: %w", s.id, err)
}

func (s *Session) receiveLoop(ctx context.Context, conn Conn) error {
	header := make([]byte, HeaderSize)

	for {
		// Cooperative cancellation, checked once per frame boundary.
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := conn.SetReadDeadline(s.clock.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		if err := ReadFull(conn, header); err != nil {
			if IsTimeout(err) && ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read header: %w", err)
		}

		h, err := ParseFrameHeader(header)
		if err != nil {
			// The stream is desynchronized; there is no safe way to
			// resynchronize mid-stream.
			return err
		}
		if err := h.Validate(s.cfg.MaxFrameBytes); err != nil {
			return err
		}

		buf, err := s.pool.Acquire(ctx)
		if err != nil {
			return err
		}

		payload := buf.Raw[:h.Size]
		if err := conn.SetReadDeadline(s.clock.Now().Add(s.cfg.ReadTimeout)); err != nil {
			buf.Release()
			return fmt.Errorf("set read deadline: %w", err)
		}
		if err := ReadFull(conn, payload); err != nil {
			buf.Release()
			if IsTimeout(err) && ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read payload (frame %d, %d bytes): %w", h.FrameID, h.Size, err)
		}

		frame, err := s.decode(h, buf)
		if err != nil {
			// A malformed payload does not desynchronize the stream:
			// drop the frame and keep receiving.
			monitoring.Logf("session %s: dropping frame %d: %v", s.id, h.FrameID, err)
			buf.Release()
			continue
		}

		s.stats.AddFrame(len(payload))

		if s.cfg.Saver != nil && shouldSave(h.FrameID, s.cfg.SaveInterval) {
			if err := s.cfg.Saver.Save(frame, payload); err != nil {
				// Persistence trouble never kills the stream.
				monitoring.Logf("session %s: save frame %d: %v", s.id, h.FrameID, err)
			}
		}

		select {
		case s.frames <- frame:
		case <-ctx.Done():
			frame.Release()
			return ctx.Err()
		}

		if s.cfg.LogEvery > 0 {
			if snap := s.stats.Snapshot(); snap.FramesReceived%int64(s.cfg.LogEvery) == 0 {
				monitoring.Logf("session %s: %d frames, avg %.2f fps",
					s.id, snap.FramesReceived, snap.AvgFPS)
			}
		}
	}
}

// decode unpacks one payload into the buffer's pixel slab and wraps it as a
// DecodedFrame owning the buffer.
func (s *Session) decode(h FrameHeader, buf *Buffer) (*DecodedFrame, error) {
	if h.PixFmt != PixFmtSBGGR10 {
		return nil, fmt.Errorf("%w: unsupported pixel format %s (0x%08x)", ErrDecode, h.FourCC(), h.PixFmt)
	}
	want := h.PixelCount()
	if want == 0 {
		return nil, fmt.Errorf("%w: zero-area frame %dx%d", ErrDecode, h.Width, h.Height)
	}
	got := UnpackSBGGR10(buf.Raw[:h.Size], buf.Pixels)
	if got < want {
		return nil, fmt.Errorf("%w: payload yields %d samples, frame needs %d", ErrDecode, got, want)
	}
	return &DecodedFrame{
		FrameID:   h.FrameID,
		Width:     h.Width,
		Height:    h.Height,
		PixFmt:    h.PixFmt,
		Timestamp: h.Timestamp,
		RawSize:   int(h.Size),
		Pixels:    buf.Pixels[:want],
		buf:       buf,
	}, nil
}

// shouldSave keeps the sender's convention: persist frames whose id is a
// multiple of the interval.
func shouldSave(frameID uint32, interval int) bool {
	if interval <= 1 {
		return true
	}
	return frameID%uint32(interval) == 0
}
