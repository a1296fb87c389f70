package detection

import (
	"fmt"
	"image"

	"github.com/golang/geo/r2"
	"gocv.io/x/gocv"
)

const (
	// DefaultMinArea and DefaultMaxArea bound an accepted contour area in px² (exclusive)
	DefaultMinArea = 50.0
	DefaultMaxArea = 500.0
	// DefaultKernelSize is the side of the rectangular structuring element
	DefaultKernelSize = 5
)

// HSV is a color in OpenCV units: H in [0,180], S and V in [0,255]
type HSV struct {
	H float64 `json:"h" mapstructure:"h"`
	S float64 `json:"s" mapstructure:"s"`
	V float64 `json:"v" mapstructure:"v"`
}

func (c HSV) scalar() gocv.Scalar {
	return gocv.NewScalar(c.H, c.S, c.V, 0)
}

// ColorRange is an inclusive HSV threshold
type ColorRange struct {
	Lower HSV `json:"lower" mapstructure:"lower"`
	Upper HSV `json:"upper" mapstructure:"upper"`
}

// WhiteBall matches a white baseball under normal indoor light
var WhiteBall = ColorRange{
	Lower: HSV{H: 0, S: 0, V: 100},
	Upper: HSV{H: 180, S: 30, V: 255},
}

// BlobConfig configures a BlobDetector
type BlobConfig struct {
	Range   ColorRange
	MinArea float64
	MaxArea float64
	// Morphology erodes then dilates the mask before contour search
	Morphology bool
	KernelSize int
}

// DefaultBlobConfig returns the white ball detector settings
func DefaultBlobConfig() BlobConfig {
	return BlobConfig{
		Range:      WhiteBall,
		MinArea:    DefaultMinArea,
		MaxArea:    DefaultMaxArea,
		KernelSize: DefaultKernelSize,
	}
}

// BlobDetector thresholds a frame in HSV space and returns the centroid of the
// first external contour whose area is in range.
//
// The working Mats are reused between frames, so a detector must not be shared
// between goroutines.
type BlobDetector struct {
	cfg    BlobConfig
	kernel gocv.Mat
	hsv    gocv.Mat
	mask   gocv.Mat
}

// NewBlobDetector allocates the structuring element and working buffers
func NewBlobDetector(cfg BlobConfig) *BlobDetector {
	if cfg.KernelSize <= 0 {
		cfg.KernelSize = DefaultKernelSize
	}

	return &BlobDetector{
		cfg:    cfg,
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Pt(cfg.KernelSize, cfg.KernelSize)),
		hsv:    gocv.NewMat(),
		mask:   gocv.NewMat(),
	}
}

// Detect implements Detector. Frames that are not 3-channel BGR never match.
func (d *BlobDetector) Detect(frame gocv.Mat) (r2.Point, bool) {
	if frame.Empty() || frame.Channels() != 3 {
		return r2.Point{}, false
	}

	gocv.CvtColor(frame, &d.hsv, gocv.ColorBGRToHSV)
	gocv.InRangeWithScalar(d.hsv, d.cfg.Range.Lower.scalar(), d.cfg.Range.Upper.scalar(), &d.mask)

	if d.cfg.Morphology {
		gocv.Erode(d.mask, &d.mask, d.kernel)
		gocv.Dilate(d.mask, &d.mask, d.kernel)
	}

	return d.detectMask(d.mask)
}

// DetectMask runs contour search on an already thresholded single-channel mask
func (d *BlobDetector) DetectMask(mask gocv.Mat) (r2.Point, bool) {
	return d.detectMask(mask)
}

func (d *BlobDetector) detectMask(mask gocv.Mat) (r2.Point, bool) {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if !AreaInRange(area, d.cfg.MinArea, d.cfg.MaxArea) {
			continue
		}

		moments, err := ContourMoments(contour.ToPoints())
		if err != nil {
			debugMsg("BLOB", fmt.Sprintf("Contour %d moments failed: %v", i, err))
			continue
		}
		centroid, ok := moments.Centroid()
		if !ok {
			debugMsg("BLOB", fmt.Sprintf("Contour %d has area %.1f but zero m00, skipping", i, area))
			continue
		}
		return centroid, true
	}

	return r2.Point{}, false
}

// Close implements Detector
func (d *BlobDetector) Close() error {
	d.kernel.Close()
	d.hsv.Close()
	d.mask.Close()
	return nil
}

// AreaInRange reports whether min < area < max
func AreaInRange(area, min, max float64) bool {
	return area > min && area < max
}
