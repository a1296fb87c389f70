package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestStatsSnapshot(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	stats := newStatsWithClock(clock.Now)

	for i := 0; i < 20; i++ {
		stats.UpdateCapture(10 * time.Millisecond)
		stats.UpdateProcess(4*time.Millisecond, i%2 == 0)
		stats.UpdateEncode(6 * time.Millisecond)
	}
	clock.now = clock.now.Add(2 * time.Second)

	snap := stats.Snapshot()
	assert.Equal(t, 2*time.Second, snap.Window)
	assert.InDelta(t, 10.0, snap.CaptureFPS, 1e-9)
	assert.InDelta(t, 10.0, snap.ProcessFPS, 1e-9)
	assert.InDelta(t, 10.0, snap.EncodeFPS, 1e-9)
	assert.Equal(t, int64(10), snap.Detections)
	assert.Equal(t, 10*time.Millisecond, snap.AvgCapture)
	assert.Equal(t, 4*time.Millisecond, snap.AvgProcess)
	assert.Equal(t, 6*time.Millisecond, snap.AvgEncode)
	assert.Zero(t, snap.Skipped)
}

func TestStatsSkippedFrames(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	stats := newStatsWithClock(clock.Now)

	for i := 0; i < 3; i++ {
		stats.UpdateSkipped()
	}
	stats.UpdateCapture(time.Millisecond)
	clock.now = clock.now.Add(time.Second)

	snap := stats.Report("session")
	assert.Equal(t, int64(3), snap.Skipped)
	// Skipped frames are not captures
	assert.InDelta(t, 1.0, snap.CaptureFPS, 1e-9)

	clock.now = clock.now.Add(time.Second)
	assert.Zero(t, stats.Snapshot().Skipped)
}

func TestStatsSnapshotResets(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	stats := newStatsWithClock(clock.Now)

	stats.UpdateCapture(time.Millisecond)
	clock.now = clock.now.Add(time.Second)
	stats.Snapshot()

	clock.now = clock.now.Add(time.Second)
	snap := stats.Report("session")
	assert.Zero(t, snap.CaptureFPS)
	assert.Zero(t, snap.AvgCapture)
	assert.Equal(t, time.Second, snap.Window)
}

func TestStatsZeroWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	stats := newStatsWithClock(clock.Now)

	stats.UpdateCapture(time.Millisecond)
	snap := stats.Snapshot()
	assert.InDelta(t, 1.0, snap.CaptureFPS, 1e-9)
}
