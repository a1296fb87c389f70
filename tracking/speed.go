package tracking

import (
	"math"

	"github.com/pkg/errors"
)

const (
	// MetersPerSecondToKMH converts m/s to km/h
	MetersPerSecondToKMH = 3.6
	// StandardGravity is the free-fall acceleration used by the vertical model (m/s²)
	StandardGravity = 9.8
	// DefaultPixelsPerMeter is the hand-tuned calibration for the default camera setup
	DefaultPixelsPerMeter = 50.0
)

// Speed model names accepted by NewSpeedModel
const (
	ModelBaseline = "baseline"
	ModelFreeFall = "freefall"
	ModelSmoothed = "smoothed"
)

// SpeedModel turns buffered samples into a speed estimate
type SpeedModel interface {
	Estimate(samples []Sample) Estimate
	Name() string
}

// NewSpeedModel returns the named model
func NewSpeedModel(name string, pixelsPerMeter, gravity float64) (SpeedModel, error) {
	if pixelsPerMeter <= 0 {
		return nil, errors.Errorf("pixels per meter must be positive, got %v", pixelsPerMeter)
	}

	switch name {
	case ModelBaseline:
		return BaselineModel{PixelsPerMeter: pixelsPerMeter}, nil
	case ModelFreeFall:
		return FreeFallModel{PixelsPerMeter: pixelsPerMeter, Gravity: gravity}, nil
	case ModelSmoothed:
		return SmoothedModel{FreeFall: FreeFallModel{PixelsPerMeter: pixelsPerMeter, Gravity: gravity}}, nil
	default:
		return nil, errors.Errorf("unknown speed model %q (want %s, %s or %s)",
			name, ModelBaseline, ModelFreeFall, ModelSmoothed)
	}
}

// BaselineModel measures straight-line pixel displacement between the oldest
// and newest sample
type BaselineModel struct {
	PixelsPerMeter float64
}

func (m BaselineModel) Name() string { return ModelBaseline }

// Estimate implements SpeedModel
func (m BaselineModel) Estimate(samples []Sample) Estimate {
	if len(samples) < 2 {
		return noEstimate(StatusInsufficientSamples)
	}
	return m.between(samples[0], samples[len(samples)-1])
}

func (m BaselineModel) between(first, last Sample) Estimate {
	elapsed := last.Time.Sub(first.Time).Seconds()
	if elapsed <= 0 {
		return noEstimate(StatusZeroElapsed)
	}

	meters := last.Position.Sub(first.Position).Norm() / m.PixelsPerMeter
	return Estimate{KMH: meters / elapsed * MetersPerSecondToKMH, Status: StatusOK}
}

// FreeFallModel adds an assumed free-fall drop of ½·g·t² to the measured
// displacement. The camera only sees one plane, so the vertical term is an
// approximation that assumes the ball falls unobstructed for the whole interval.
type FreeFallModel struct {
	PixelsPerMeter float64
	Gravity        float64 // Zero means StandardGravity
}

func (m FreeFallModel) Name() string { return ModelFreeFall }

// Estimate implements SpeedModel
func (m FreeFallModel) Estimate(samples []Sample) Estimate {
	if len(samples) < 2 {
		return noEstimate(StatusInsufficientSamples)
	}
	return m.between(samples[0], samples[len(samples)-1])
}

func (m FreeFallModel) between(first, last Sample) Estimate {
	elapsed := last.Time.Sub(first.Time).Seconds()
	if elapsed <= 0 {
		return noEstimate(StatusZeroElapsed)
	}

	g := m.Gravity
	if g == 0 {
		g = StandardGravity
	}

	horizontal := last.Position.Sub(first.Position).Norm() / m.PixelsPerMeter
	vertical := 0.5 * g * elapsed * elapsed
	meters := math.Hypot(horizontal, vertical)

	return Estimate{KMH: meters / elapsed * MetersPerSecondToKMH, Status: StatusOK}
}

// SmoothedModel averages free-fall estimates taken from every start sample to
// the newest one. Pairs without a value (the newest sample with itself, or
// zero elapsed time) are left out of the average.
type SmoothedModel struct {
	FreeFall FreeFallModel
}

func (m SmoothedModel) Name() string { return ModelSmoothed }

// Estimate implements SpeedModel
func (m SmoothedModel) Estimate(samples []Sample) Estimate {
	if len(samples) < 2 {
		return noEstimate(StatusInsufficientSamples)
	}

	last := samples[len(samples)-1]
	total := 0.0
	count := 0
	for _, start := range samples[:len(samples)-1] {
		est := m.FreeFall.between(start, last)
		if !est.Valid() {
			continue
		}
		total += est.KMH
		count++
	}

	if count == 0 {
		return noEstimate(StatusZeroElapsed)
	}
	return Estimate{KMH: total / float64(count), Status: StatusOK}
}
