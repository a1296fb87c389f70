package stream

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"pitchcam/pipeline"
	"pitchcam/store"

	"github.com/pkg/errors"
	"goji.io"
	"goji.io/pat"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// ReadingLister serves the speed log
type ReadingLister interface {
	RecentReadings(limit int) ([]store.Reading, error)
}

// Options wires a Server to its dependencies
type Options struct {
	// OpenSource opens a fresh frame source for each stream
	OpenSource func() (Source, error)
	// NewSession builds a fresh tracking session for each stream
	NewSession func() (*pipeline.Session, error)
	// Readings is nil when the speed log is disabled
	Readings    ReadingLister
	JPEGQuality int
	Title       string
}

// Server serves the viewer page, the annotated stream and the speed log
type Server struct {
	opts Options
	mux  *goji.Mux
}

// NewServer builds the routes
func NewServer(opts Options) *Server {
	if opts.Title == "" {
		opts.Title = "Ball Speed"
	}

	s := &Server{opts: opts, mux: goji.NewMux()}
	s.mux.HandleFunc(pat.Get("/"), s.handleIndex)
	s.mux.HandleFunc(pat.Get("/video_feed"), s.handleVideoFeed)
	s.mux.HandleFunc(pat.Get("/speeds"), s.handleSpeeds)
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Title  string
		Speeds bool
	}{
		Title:  s.opts.Title,
		Speeds: s.opts.Readings != nil,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		debugMsg("HTTP", fmt.Sprintf("Rendering index failed: %v", err))
	}
}

func (s *Server) handleVideoFeed(w http.ResponseWriter, r *http.Request) {
	src, err := s.opts.OpenSource()
	if err != nil {
		debugMsg("HTTP", fmt.Sprintf("Cannot open source for %s: %v", r.RemoteAddr, err))
		http.Error(w, "camera unavailable", http.StatusServiceUnavailable)
		return
	}
	defer src.Close()

	sess, err := s.opts.NewSession()
	if err != nil {
		debugMsg("HTTP", fmt.Sprintf("Cannot start session for %s: %v", r.RemoteAddr, err))
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}
	defer sess.Close()

	sink := NewMJPEGWriter(w, s.opts.JPEGQuality)
	w.Header().Set("Content-Type", sink.ContentType())
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	debugMsg("HTTP", "Streaming to "+r.RemoteAddr, sess.ID())
	err = Run(r.Context(), src, sess, sink, pipeline.NewStats())
	if peak, ok := sess.PeakKMH(); ok {
		debugMsg("HTTP", fmt.Sprintf("Stream ended (%v), peak %.2f km/h", err, peak), sess.ID())
	} else {
		debugMsg("HTTP", fmt.Sprintf("Stream ended (%v)", err), sess.ID())
	}
}

func (s *Server) handleSpeeds(w http.ResponseWriter, r *http.Request) {
	if s.opts.Readings == nil {
		http.NotFound(w, r)
		return
	}

	limit := store.DefaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	readings, err := s.opts.Readings.RecentReadings(limit)
	if err != nil {
		debugMsg("HTTP", fmt.Sprintf("Listing speeds failed: %v", err))
		http.Error(w, "speed log unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(readings); err != nil {
		debugMsg("HTTP", errors.Wrap(err, "encoding speeds").Error())
	}
}
