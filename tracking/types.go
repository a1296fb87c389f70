package tracking

import (
	"fmt"
	"time"

	"github.com/golang/geo/r2"
)

// debugMsgFunc is a function that will be set by main package to use unified logging
var debugMsgFunc func(component, message string, sessionID ...string)

// SetDebugFunction allows main package to provide the debug logger
func SetDebugFunction(fn func(component, message string, sessionID ...string)) {
	debugMsgFunc = fn
}

// debugMsg is a wrapper that handles nil checks
func debugMsg(component, message string, sessionID ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, sessionID...)
	}
}

// Sample is a single ball observation: where it was and when.
type Sample struct {
	Position r2.Point  // Pixel coordinates (raw or filtered centroid)
	Time     time.Time // Capture time, monotonic when taken from time.Now
}

// Status explains why an Estimate does or does not carry a value
type Status int

const (
	StatusOK Status = iota
	StatusNoDetection
	StatusInsufficientSamples
	StatusZeroElapsed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNoDetection:
		return "NO_DETECTION"
	case StatusInsufficientSamples:
		return "INSUFFICIENT_SAMPLES"
	case StatusZeroElapsed:
		return "ZERO_ELAPSED"
	default:
		return "UNKNOWN"
	}
}

// Estimate is a speed value in km/h, present only when Status is StatusOK.
type Estimate struct {
	KMH    float64
	Status Status
}

// Valid reports whether the estimate carries a usable speed
func (e Estimate) Valid() bool {
	return e.Status == StatusOK
}

func (e Estimate) String() string {
	if !e.Valid() {
		return e.Status.String()
	}
	return fmt.Sprintf("%.2f km/h", e.KMH)
}

func noEstimate(status Status) Estimate {
	return Estimate{Status: status}
}
