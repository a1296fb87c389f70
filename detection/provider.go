package detection

import (
	"github.com/golang/geo/r2"
	"gocv.io/x/gocv"
)

// Global debug function for detection package
var debugMsgFunc func(string, string, ...string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(string, string, ...string)) {
	debugMsgFunc = fn
}

// debugMsg is a wrapper that handles nil checks
func debugMsg(component, message string, sessionID ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, sessionID...)
	}
}

// Detector finds the ball in a single BGR frame
type Detector interface {
	// Detect returns the ball centroid in pixel coordinates, or false when
	// nothing qualifies. Frames are independent.
	Detect(frame gocv.Mat) (r2.Point, bool)
	// Close releases any native resources held by the detector
	Close() error
}
