package tracking

import (
	"github.com/pkg/errors"
)

// DefaultTrajectoryCapacity is the number of samples kept for speed estimation
const DefaultTrajectoryCapacity = 10

// ErrOutOfOrder is returned when a sample is older than the newest buffered sample
var ErrOutOfOrder = errors.New("sample timestamp precedes newest buffered sample")

// Trajectory is a fixed-capacity rolling window of samples, oldest first.
// It is owned by a single session and is not safe for concurrent use.
type Trajectory struct {
	samples  []Sample
	capacity int
}

// NewTrajectory creates an empty trajectory. Capacities below 2 are raised to 2
// since no speed can be computed from fewer samples.
func NewTrajectory(capacity int) *Trajectory {
	if capacity < 2 {
		capacity = 2
	}
	return &Trajectory{
		samples:  make([]Sample, 0, capacity+1),
		capacity: capacity,
	}
}

// Push appends a sample, evicting the oldest once the window is full
func (t *Trajectory) Push(s Sample) error {
	if n := len(t.samples); n > 0 && s.Time.Before(t.samples[n-1].Time) {
		return errors.Wrapf(ErrOutOfOrder, "got %s, newest is %s",
			s.Time.Format("15:04:05.000"), t.samples[n-1].Time.Format("15:04:05.000"))
	}

	t.samples = append(t.samples, s)
	if len(t.samples) > t.capacity {
		// Shift in place so the backing array never grows past capacity+1
		copy(t.samples, t.samples[1:])
		t.samples = t.samples[:t.capacity]
	}
	return nil
}

// Samples returns the buffered samples, oldest first. The slice aliases the
// buffer and is only valid until the next Push.
func (t *Trajectory) Samples() []Sample {
	return t.samples
}

// Len returns the number of buffered samples
func (t *Trajectory) Len() int {
	return len(t.samples)
}

// Capacity returns the maximum number of buffered samples
func (t *Trajectory) Capacity() int {
	return t.capacity
}

// First returns the oldest sample
func (t *Trajectory) First() (Sample, bool) {
	if len(t.samples) == 0 {
		return Sample{}, false
	}
	return t.samples[0], true
}

// Last returns the newest sample
func (t *Trajectory) Last() (Sample, bool) {
	if len(t.samples) == 0 {
		return Sample{}, false
	}
	return t.samples[len(t.samples)-1], true
}
