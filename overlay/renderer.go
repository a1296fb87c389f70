package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"pitchcam/tracking"

	"gocv.io/x/gocv"
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

// Text placement for the speed readout
var speedOrigin = image.Point{10, 30}

const (
	speedFontScale = 1.0
	lineThickness  = 2
	markerSize     = 8
)

// Options toggles the optional drawing layers
type Options struct {
	// Trajectory draws the buffered path and a crosshair on the newest sample
	Trajectory bool
}

// Renderer draws the speed readout and reference line on outgoing frames
type Renderer struct {
	opts        Options
	speedColor  color.RGBA
	lineColor   color.RGBA
	pathColor   color.RGBA
	markerColor color.RGBA
}

// NewRenderer creates a new overlay renderer
func NewRenderer(opts Options) *Renderer {
	return &Renderer{
		opts:        opts,
		speedColor:  color.RGBA{0, 255, 0, 255},   // Green readout
		lineColor:   color.RGBA{255, 0, 0, 255},   // Red reference line
		pathColor:   color.RGBA{0, 255, 0, 180},   // Semi-transparent green path
		markerColor: color.RGBA{255, 255, 0, 255}, // Yellow crosshair
	}
}

// FormatSpeed renders the readout text for a speed in km/h
func FormatSpeed(kmh float64) string {
	return fmt.Sprintf("Speed: %.2f km/h", kmh)
}

// Annotate draws on img in place. The speed text only appears for a valid
// estimate; the mid-frame reference line is always drawn.
func (r *Renderer) Annotate(img *gocv.Mat, est tracking.Estimate, samples []tracking.Sample) {
	if img.Empty() {
		debugMsg("OVERLAY", "Skipping annotation of empty frame")
		return
	}

	if r.opts.Trajectory {
		r.drawTrajectory(img, samples)
	}

	if est.Valid() {
		gocv.PutText(img, FormatSpeed(est.KMH), speedOrigin, gocv.FontHersheySimplex, speedFontScale, r.speedColor, lineThickness)
	}

	mid := img.Rows() / 2
	gocv.Line(img, image.Point{0, mid}, image.Point{img.Cols(), mid}, r.lineColor, lineThickness)
}

// drawTrajectory draws the buffered path with a crosshair on the newest sample
func (r *Renderer) drawTrajectory(img *gocv.Mat, samples []tracking.Sample) {
	if len(samples) == 0 {
		return
	}

	for i := 1; i < len(samples); i++ {
		prev := toPixel(samples[i-1].Position.X, samples[i-1].Position.Y)
		curr := toPixel(samples[i].Position.X, samples[i].Position.Y)

		gocv.Line(img, prev, curr, r.pathColor, lineThickness)
		gocv.Circle(img, curr, 2, r.pathColor, -1)
	}

	newest := samples[len(samples)-1].Position
	r.drawCrosshair(img, toPixel(newest.X, newest.Y))
}

func (r *Renderer) drawCrosshair(img *gocv.Mat, center image.Point) {
	gocv.Line(img,
		image.Point{center.X - markerSize, center.Y},
		image.Point{center.X + markerSize, center.Y},
		r.markerColor, 1)
	gocv.Line(img,
		image.Point{center.X, center.Y - markerSize},
		image.Point{center.X, center.Y + markerSize},
		r.markerColor, 1)

	// Center dot
	gocv.Circle(img, center, 2, r.markerColor, -1)
}

func toPixel(x, y float64) image.Point {
	return image.Point{int(math.Round(x)), int(math.Round(y))}
}
