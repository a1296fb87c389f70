package stream

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Global debug function for stream package
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

// Source produces BGR frames
type Source interface {
	// Read fills dst with the next frame and reports false once the source has failed
	Read(dst *gocv.Mat) bool
	Close() error
}

// Camera is a Source backed by a local capture device or video file
type Camera struct {
	device  string
	capture *gocv.VideoCapture
}

// OpenCamera opens device. Numeric strings are device IDs; anything else is
// handed to OpenCV as a file or URL.
func OpenCamera(device string) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, errors.Wrapf(err, "opening capture device %s", device)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Errorf("capture device %s did not open", device)
	}

	debugMsg("CAPTURE", "Opened capture device "+device)
	return &Camera{device: device, capture: capture}, nil
}

// Read implements Source
func (c *Camera) Read(dst *gocv.Mat) bool {
	return c.capture.Read(dst)
}

// Close implements Source
func (c *Camera) Close() error {
	debugMsg("CAPTURE", "Releasing capture device "+c.device)
	return c.capture.Close()
}
