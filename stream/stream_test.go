package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pitchcam/pipeline"
	"pitchcam/store"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// fakeSource yields a fixed number of frames with a white block moving right.
// Gray sources produce single-channel frames instead.
type fakeSource struct {
	remaining int
	x         int
	gray      bool
	closed    bool
}

func (f *fakeSource) Read(dst *gocv.Mat) bool {
	if f.remaining == 0 {
		return false
	}
	f.remaining--

	matType := gocv.MatTypeCV8UC3
	if f.gray {
		matType = gocv.MatTypeCV8UC1
	}
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 120, 160, matType)
	defer frame.Close()
	gocv.Rectangle(&frame, image.Rect(f.x, 40, f.x+10, 50), color.RGBA{255, 255, 255, 255}, -1)
	f.x += 5

	frame.CopyTo(dst)
	return true
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

type countingSink struct {
	frames int
	err    error
}

func (c *countingSink) WriteFrame(frame gocv.Mat) error {
	if c.err != nil {
		return c.err
	}
	c.frames++
	return nil
}

type fakeReadings struct {
	readings []store.Reading
	limit    int
	err      error
}

func (f *fakeReadings) RecentReadings(limit int) ([]store.Reading, error) {
	f.limit = limit
	return f.readings, f.err
}

func newTestSession(t *testing.T) *pipeline.Session {
	t.Helper()
	sess, err := pipeline.NewSession(pipeline.DefaultConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

func TestRun(t *testing.T) {
	t.Run("stops with ErrSourceExhausted", func(t *testing.T) {
		src := &fakeSource{remaining: 4, x: 10}
		sink := &countingSink{}
		stats := pipeline.NewStats()

		err := Run(context.Background(), src, newTestSession(t), sink, stats)
		assert.ErrorIs(t, err, ErrSourceExhausted)
		assert.Equal(t, 4, sink.frames)

		snap := stats.Snapshot()
		assert.Equal(t, int64(4), snap.Detections)
		assert.Zero(t, snap.Skipped)
	})

	t.Run("non-BGR frames are counted as skipped", func(t *testing.T) {
		src := &fakeSource{remaining: 3, x: 10, gray: true}
		sink := &countingSink{}
		stats := pipeline.NewStats()

		err := Run(context.Background(), src, newTestSession(t), sink, stats)
		assert.ErrorIs(t, err, ErrSourceExhausted)
		assert.Zero(t, sink.frames)

		snap := stats.Snapshot()
		assert.Equal(t, int64(3), snap.Skipped)
		assert.Zero(t, snap.Detections)
		assert.Zero(t, snap.CaptureFPS)
	})

	t.Run("stops when the client goes away", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		sink := &countingSink{}
		err := Run(ctx, &fakeSource{remaining: 4}, newTestSession(t), sink, nil)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, sink.frames)
	})

	t.Run("sink failure ends the stream", func(t *testing.T) {
		sink := &countingSink{err: errors.New("broken pipe")}
		err := Run(context.Background(), &fakeSource{remaining: 4}, newTestSession(t), sink, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken pipe")
		assert.NotErrorIs(t, err, ErrSourceExhausted)
	})
}

func readParts(t *testing.T, body io.Reader, n int) [][]byte {
	t.Helper()
	reader := multipart.NewReader(body, Boundary)
	var parts [][]byte
	for i := 0; i < n; i++ {
		part, err := reader.NextPart()
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", part.Header.Get("Content-Type"))
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		parts = append(parts, data)
	}
	return parts
}

func TestMJPEGWriter(t *testing.T) {
	t.Run("writes one part per jpeg", func(t *testing.T) {
		var buf bytes.Buffer
		w := NewMJPEGWriter(&buf, 80)

		require.NoError(t, w.WriteJPEG([]byte("first")))
		require.NoError(t, w.WriteJPEG([]byte("second")))

		parts := readParts(t, &buf, 2)
		assert.Equal(t, []byte("first"), parts[0])
		assert.Equal(t, []byte("second"), parts[1])
	})

	t.Run("content type names the boundary", func(t *testing.T) {
		mediaType, params, err := mime.ParseMediaType(NewMJPEGWriter(io.Discard, 80).ContentType())
		require.NoError(t, err)
		assert.Equal(t, "multipart/x-mixed-replace", mediaType)
		assert.Equal(t, "frame", params["boundary"])
	})

	t.Run("encodes frames as jpeg", func(t *testing.T) {
		frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0), 32, 32, gocv.MatTypeCV8UC3)
		defer frame.Close()

		rec := httptest.NewRecorder()
		require.NoError(t, NewMJPEGWriter(rec, 0).WriteFrame(frame))
		assert.True(t, rec.Flushed)

		parts := readParts(t, rec.Body, 1)
		require.Greater(t, len(parts[0]), 2)
		assert.Equal(t, []byte{0xFF, 0xD8}, parts[0][:2])
	})
}

func TestServerIndex(t *testing.T) {
	srv := NewServer(Options{Readings: &fakeReadings{}})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `src="/video_feed"`)
	assert.Contains(t, rec.Body.String(), "/speeds?limit=10")
}

func TestServerIndexWithoutSpeedLog(t *testing.T) {
	srv := NewServer(Options{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "/speeds")
}

func TestServerSpeeds(t *testing.T) {
	t.Run("disabled speed log is not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewServer(Options{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/speeds", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("lists readings as json", func(t *testing.T) {
		stamp := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
		readings := &fakeReadings{readings: []store.Reading{
			{SessionID: "abc", KMH: 3.6, Model: "baseline", Samples: 10, Timestamp: stamp},
		}}

		rec := httptest.NewRecorder()
		NewServer(Options{Readings: readings}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/speeds?limit=5", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 5, readings.limit)

		var got []store.Reading
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "abc", got[0].SessionID)
		assert.InDelta(t, 3.6, got[0].KMH, 1e-9)
		assert.True(t, got[0].Timestamp.Equal(stamp))
	})

	t.Run("default limit", func(t *testing.T) {
		readings := &fakeReadings{}
		rec := httptest.NewRecorder()
		NewServer(Options{Readings: readings}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/speeds", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, store.DefaultRecentLimit, readings.limit)
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewServer(Options{Readings: &fakeReadings{}}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/speeds?limit=abc", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewServer(Options{Readings: &fakeReadings{err: errors.New("locked")}}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/speeds", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestServerVideoFeed(t *testing.T) {
	t.Run("streams every frame then ends", func(t *testing.T) {
		src := &fakeSource{remaining: 3, x: 10}
		srv := NewServer(Options{
			OpenSource:  func() (Source, error) { return src, nil },
			NewSession:  func() (*pipeline.Session, error) { return pipeline.NewSession(pipeline.DefaultConfig(), nil) },
			JPEGQuality: 70,
		})

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/video_feed", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", rec.Header().Get("Content-Type"))
		assert.True(t, src.closed)

		parts := readParts(t, rec.Body, 3)
		for _, p := range parts {
			assert.Equal(t, []byte{0xFF, 0xD8}, p[:2])
		}
	})

	t.Run("camera unavailable", func(t *testing.T) {
		srv := NewServer(Options{
			OpenSource: func() (Source, error) { return nil, errors.New("no device") },
		})

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/video_feed", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("session failure releases the source", func(t *testing.T) {
		src := &fakeSource{remaining: 3}
		srv := NewServer(Options{
			OpenSource: func() (Source, error) { return src, nil },
			NewSession: func() (*pipeline.Session, error) { return nil, errors.New("bad model") },
		})

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/video_feed", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.True(t, src.closed)
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewServer(Options{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
