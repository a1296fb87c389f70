package pipeline

import (
	"fmt"
	"sync"
	"time"
)

// ReportInterval is how often a stream logs its pipeline performance
const ReportInterval = 15 * time.Second

// Stats tracks performance metrics for the stages of a stream
type Stats struct {
	mu             sync.Mutex
	captureCount   int64
	processCount   int64
	encodeCount    int64
	detectCount    int64
	skippedCount   int64
	lastReportTime time.Time

	// Timing measurements
	captureTimeTotal time.Duration
	processTimeTotal time.Duration
	encodeTimeTotal  time.Duration

	now func() time.Time
}

// Snapshot is one reporting window of Stats
type Snapshot struct {
	Window     time.Duration
	CaptureFPS float64
	ProcessFPS float64
	EncodeFPS  float64
	Detections int64
	// Skipped counts frames read but dropped as empty or not BGR
	Skipped    int64
	AvgCapture time.Duration
	AvgProcess time.Duration
	AvgEncode  time.Duration
}

// NewStats creates a new pipeline statistics tracker
func NewStats() *Stats {
	return newStatsWithClock(time.Now)
}

func newStatsWithClock(now func() time.Time) *Stats {
	return &Stats{
		lastReportTime: now(),
		now:            now,
	}
}

// UpdateCapture records one frame read
func (ps *Stats) UpdateCapture(duration time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.captureCount++
	ps.captureTimeTotal += duration
}

// UpdateSkipped records one frame dropped before processing
func (ps *Stats) UpdateSkipped() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.skippedCount++
}

// UpdateProcess records one detect/estimate/annotate pass
func (ps *Stats) UpdateProcess(duration time.Duration, detected bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.processCount++
	ps.processTimeTotal += duration
	if detected {
		ps.detectCount++
	}
}

// UpdateEncode records one JPEG encode and write
func (ps *Stats) UpdateEncode(duration time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.encodeCount++
	ps.encodeTimeTotal += duration
}

// Snapshot returns the current window and resets the counters
func (ps *Stats) Snapshot() Snapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := ps.now()
	window := now.Sub(ps.lastReportTime)
	seconds := window.Seconds()
	if seconds <= 0 {
		seconds = 1.0 // Prevent division by zero
	}

	snap := Snapshot{
		Window:     window,
		CaptureFPS: float64(ps.captureCount) / seconds,
		ProcessFPS: float64(ps.processCount) / seconds,
		EncodeFPS:  float64(ps.encodeCount) / seconds,
		Detections: ps.detectCount,
		Skipped:    ps.skippedCount,
	}
	if ps.captureCount > 0 {
		snap.AvgCapture = ps.captureTimeTotal / time.Duration(ps.captureCount)
	}
	if ps.processCount > 0 {
		snap.AvgProcess = ps.processTimeTotal / time.Duration(ps.processCount)
	}
	if ps.encodeCount > 0 {
		snap.AvgEncode = ps.encodeTimeTotal / time.Duration(ps.encodeCount)
	}

	// Reset counters but keep timestamps
	ps.captureCount = 0
	ps.processCount = 0
	ps.encodeCount = 0
	ps.detectCount = 0
	ps.skippedCount = 0
	ps.captureTimeTotal = 0
	ps.processTimeTotal = 0
	ps.encodeTimeTotal = 0
	ps.lastReportTime = now

	return snap
}

// Report logs a snapshot under the PERF component
func (ps *Stats) Report(sessionID string) Snapshot {
	snap := ps.Snapshot()
	debugMsg("PERF", fmt.Sprintf("Pipeline Performance (last %v):", snap.Window.Round(time.Second)), sessionID)
	debugMsg("PERF", fmt.Sprintf("Capture: %.1f fps (Read: %v, %d skipped)", snap.CaptureFPS, snap.AvgCapture, snap.Skipped), sessionID)
	debugMsg("PERF", fmt.Sprintf("Process: %.1f fps (Detect+Estimate: %v, %d detections)", snap.ProcessFPS, snap.AvgProcess, snap.Detections), sessionID)
	debugMsg("PERF", fmt.Sprintf("Encode:  %.1f fps (Encode+Write: %v)", snap.EncodeFPS, snap.AvgEncode), sessionID)
	return snap
}
