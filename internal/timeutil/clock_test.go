package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClockAdvance(t *testing.T) {
	t.Parallel()

	start := time.Unix(1000, 0)
	clock := NewMockClock(start)
	assert.Equal(t, start, clock.Now())

	clock.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), clock.Now())
	assert.Equal(t, 90*time.Second, clock.Since(start))
}

func TestMockTickerFiresOnSchedule(t *testing.T) {
	t.Parallel()

	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(10 * time.Second)
	defer ticker.Stop()

	clock.Advance(9 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired before its interval elapsed")
	default:
	}

	clock.Advance(time.Second)
	select {
	case tick := <-ticker.C():
		assert.Equal(t, time.Unix(10, 0), tick)
	default:
		t.Fatal("ticker did not fire at its interval")
	}
}

func TestMockTickerStop(t *testing.T) {
	t.Parallel()

	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Second)
	ticker.Stop()

	clock.Advance(5 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestRealClockTicker(t *testing.T) {
	t.Parallel()

	ticker := RealClock{}.NewTicker(time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker did not fire")
	}
	require.NotZero(t, RealClock{}.Now())
}
