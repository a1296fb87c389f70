package detection

import (
	"encoding/binary"
	"image"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Moments holds the spatial moments of a closed polygon
type Moments struct {
	M00 float64
	M10 float64
	M01 float64
}

// ContourMoments computes the moments of a contour outline with OpenCV. The
// points are passed as an Nx1 CV_32SC2 point set, so OpenCV integrates the
// polygon rather than rasterising it.
func ContourMoments(points []image.Point) (Moments, error) {
	if len(points) == 0 {
		return Moments{}, nil
	}

	data := make([]byte, 8*len(points))
	for i, p := range points {
		binary.NativeEndian.PutUint32(data[8*i:], uint32(int32(p.X)))
		binary.NativeEndian.PutUint32(data[8*i+4:], uint32(int32(p.Y)))
	}

	mat, err := gocv.NewMatFromBytes(len(points), 1, gocv.MatTypeCV32SC2, data)
	if err != nil {
		return Moments{}, errors.Wrap(err, "building contour mat")
	}
	defer mat.Close()

	m := gocv.Moments(mat, false)
	return Moments{M00: m["m00"], M10: m["m10"], M01: m["m01"]}, nil
}

// PolygonMoments computes m00, m10 and m01 of the polygon outlined by points
// in pure Go, treating the last point as connected back to the first.
// Orientation does not matter; a clockwise outline yields the same positive
// moments. It agrees with ContourMoments and needs no native library.
func PolygonMoments(points []image.Point) Moments {
	var m Moments
	n := len(points)
	if n < 3 {
		return m
	}

	for i := 0; i < n; i++ {
		x0, y0 := float64(points[i].X), float64(points[i].Y)
		next := points[(i+1)%n]
		x1, y1 := float64(next.X), float64(next.Y)

		cross := x0*y1 - x1*y0
		m.M00 += cross
		m.M10 += (x0 + x1) * cross
		m.M01 += (y0 + y1) * cross
	}

	m.M00 /= 2
	m.M10 /= 6
	m.M01 /= 6

	if m.M00 < 0 {
		m.M00, m.M10, m.M01 = -m.M00, -m.M10, -m.M01
	}
	return m
}

// Centroid returns (m10/m00, m01/m00), or false for a degenerate polygon
func (m Moments) Centroid() (r2.Point, bool) {
	if m.M00 == 0 {
		return r2.Point{}, false
	}
	return r2.Point{X: m.M10 / m.M00, Y: m.M01 / m.M00}, true
}
