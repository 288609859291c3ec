package camera

import (
	"sync"
	"time"

	"github.com/polarisvision/camlink/internal/monitoring"
	"github.com/polarisvision/camlink/internal/timeutil"
)

// Stats is a consistent snapshot of session throughput counters. All fields
// are simultaneously valid: a reader never sees the frame count advanced
// without the matching byte count.
type Stats struct {
	FramesReceived int64
	BytesReceived  int64
	StartTime      time.Time
	LastFrameTime  time.Time
	AvgFPS         float64
}

// Elapsed returns the receive duration covered by the snapshot.
func (s Stats) Elapsed() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	return s.LastFrameTime.Sub(s.StartTime)
}

// StatsTracker maintains running throughput counters for one session. The
// receive loop is the sole writer; any number of goroutines may take
// snapshots concurrently.
type StatsTracker struct {
	mu    sync.Mutex
	clock timeutil.Clock
	stats Stats
}

// NewStatsTracker creates a tracker. A nil clock uses real time.
func NewStatsTracker(clock timeutil.Clock) *StatsTracker {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &StatsTracker{clock: clock}
}

// AddFrame records one successfully decoded frame of payloadLen wire bytes.
// AvgFPS is a cumulative average (frames / elapsed since first frame), not
// an exponential smoother, so repeated runs over the same input reproduce
// the same value.
func (t *StatsTracker) AddFrame(payloadLen int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if t.stats.StartTime.IsZero() {
		t.stats.StartTime = now
	}
	t.stats.FramesReceived++
	t.stats.BytesReceived += int64(payloadLen)
	t.stats.LastFrameTime = now

	elapsed := now.Sub(t.stats.StartTime).Seconds()
	if elapsed < 1e-9 {
		elapsed = 1e-9 // first frame: avoid a zero divisor
	}
	t.stats.AvgFPS = float64(t.stats.FramesReceived) / elapsed
}

// Snapshot returns a simultaneously valid copy of all counters.
func (t *StatsTracker) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// LogFinal writes the end-of-session summary.
func (t *StatsTracker) LogFinal() {
	s := t.Snapshot()
	if s.FramesReceived == 0 {
		monitoring.Logf("session stats: no frames received")
		return
	}
	elapsed := s.Elapsed().Seconds()
	mb := float64(s.BytesReceived) / (1024 * 1024)
	rate := 0.0
	if elapsed > 0 {
		rate = mb / elapsed
	}
	monitoring.Logf("session stats: %d frames, %.2f MB in %.2fs (%.2f fps, %.2f MB/s)",
		s.FramesReceived, mb, elapsed, s.AvgFPS, rate)
}
