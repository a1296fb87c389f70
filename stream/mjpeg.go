package stream

import (
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Boundary separates the JPEG parts of the stream
const Boundary = "frame"

// DefaultJPEGQuality matches OpenCV's own default
const DefaultJPEGQuality = 95

// Sink consumes annotated frames
type Sink interface {
	WriteFrame(frame gocv.Mat) error
}

// MJPEGWriter encodes frames as JPEG parts of a multipart/x-mixed-replace body.
// The closing boundary is never written; the stream ends when the client leaves.
type MJPEGWriter struct {
	parts   *multipart.Writer
	flusher http.Flusher
	quality int
}

// NewMJPEGWriter writes parts to w, flushing after each one when w supports it
func NewMJPEGWriter(w io.Writer, quality int) *MJPEGWriter {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	parts := multipart.NewWriter(w)
	// Boundary is a valid RFC 2046 token, so this cannot fail
	_ = parts.SetBoundary(Boundary)

	flusher, _ := w.(http.Flusher)
	return &MJPEGWriter{parts: parts, flusher: flusher, quality: quality}
}

// ContentType is the response header value for the stream
func (m *MJPEGWriter) ContentType() string {
	return "multipart/x-mixed-replace; boundary=" + Boundary
}

// WriteFrame implements Sink
func (m *MJPEGWriter) WriteFrame(frame gocv.Mat) error {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{gocv.IMWriteJpegQuality, m.quality})
	if err != nil {
		return errors.Wrap(err, "encoding jpeg")
	}
	defer buf.Close()

	return m.WriteJPEG(buf.GetBytes())
}

// WriteJPEG writes one already encoded JPEG as a part
func (m *MJPEGWriter) WriteJPEG(jpeg []byte) error {
	header := textproto.MIMEHeader{}
	header.Set("Content-Type", "image/jpeg")
	header.Set("Content-Length", strconv.Itoa(len(jpeg)))

	part, err := m.parts.CreatePart(header)
	if err != nil {
		return errors.Wrap(err, "starting stream part")
	}
	if _, err := part.Write(jpeg); err != nil {
		return errors.Wrap(err, "writing stream part")
	}

	if m.flusher != nil {
		m.flusher.Flush()
	}
	return nil
}
