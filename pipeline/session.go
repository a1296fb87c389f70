package pipeline

import (
	"fmt"
	"time"

	"pitchcam/detection"
	"pitchcam/overlay"
	"pitchcam/store"
	"pitchcam/tracking"

	"github.com/golang/geo/r2"
	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// Global debug function for pipeline package
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

// Recorder persists valid speed readings
type Recorder interface {
	RecordSpeed(r store.Reading) error
}

// Config holds everything needed to build a Session
type Config struct {
	Blob               detection.BlobConfig
	TrajectoryCapacity int
	// Kalman routes detections through the filter before they are buffered
	Kalman         bool
	KalmanConfig   tracking.KalmanConfig
	SpeedModel     string
	PixelsPerMeter float64
	Gravity        float64
	Overlay        overlay.Options
	// RecordEvery is the minimum gap between two recorded readings; zero records every valid estimate
	RecordEvery time.Duration
}

// DefaultConfig returns the white ball, baseline model settings
func DefaultConfig() Config {
	return Config{
		Blob:               detection.DefaultBlobConfig(),
		TrajectoryCapacity: tracking.DefaultTrajectoryCapacity,
		KalmanConfig:       tracking.DefaultKalmanConfig(),
		SpeedModel:         tracking.ModelBaseline,
		PixelsPerMeter:     tracking.DefaultPixelsPerMeter,
		Gravity:            tracking.StandardGravity,
	}
}

// FrameResult describes what happened to one frame
type FrameResult struct {
	Detected bool
	// Raw is the detected centroid
	Raw r2.Point
	// Filtered is the position pushed into the trajectory (Raw when the filter is off)
	Filtered r2.Point
	Estimate tracking.Estimate
}

// Session owns the per-stream tracking state. It is not safe for concurrent
// use; every stream builds its own.
type Session struct {
	id         string
	detector   detection.Detector
	trajectory *tracking.Trajectory
	filter     *tracking.KalmanFilter
	model      tracking.SpeedModel
	renderer   *overlay.Renderer
	recorder   Recorder

	recordEvery  time.Duration
	lastRecorded time.Time
	frames       int
	detections   int
	peak         tracking.Estimate
}

// NewSession builds a session with a blob detector. recorder may be nil.
func NewSession(cfg Config, recorder Recorder) (*Session, error) {
	return newSession(cfg, detection.NewBlobDetector(cfg.Blob), recorder)
}

func newSession(cfg Config, detector detection.Detector, recorder Recorder) (*Session, error) {
	model, err := tracking.NewSpeedModel(cfg.SpeedModel, cfg.PixelsPerMeter, cfg.Gravity)
	if err != nil {
		detector.Close()
		return nil, err
	}

	s := &Session{
		id:          uuid.NewString(),
		detector:    detector,
		trajectory:  tracking.NewTrajectory(cfg.TrajectoryCapacity),
		model:       model,
		renderer:    overlay.NewRenderer(cfg.Overlay),
		recorder:    recorder,
		recordEvery: cfg.RecordEvery,
		peak:        tracking.Estimate{Status: tracking.StatusInsufficientSamples},
	}
	if cfg.Kalman {
		s.filter = tracking.NewKalmanFilter(cfg.KalmanConfig)
	}

	debugMsg("SESSION", fmt.Sprintf("Session started (model=%s, kalman=%v, capacity=%d)",
		model.Name(), cfg.Kalman, s.trajectory.Capacity()), s.id)
	return s, nil
}

// ID returns the session UUID
func (s *Session) ID() string {
	return s.id
}

// ProcessFrame detects the ball, updates the trajectory, estimates speed and
// annotates frame in place. Speed is only recomputed on frames with a detection.
func (s *Session) ProcessFrame(frame *gocv.Mat, now time.Time) FrameResult {
	s.frames++
	res := FrameResult{Estimate: tracking.Estimate{Status: tracking.StatusNoDetection}}

	raw, ok := s.detector.Detect(*frame)
	if ok {
		s.detections++
		res.Detected = true
		res.Raw = raw
		res.Filtered = raw

		// A stale frame must not advance the filter either
		if last, ok := s.trajectory.Last(); ok && now.Before(last.Time) {
			debugMsg("SESSION", fmt.Sprintf("Dropping sample: %v (%s before last)",
				tracking.ErrOutOfOrder, last.Time.Sub(now)), s.id)
		} else {
			if s.filter != nil {
				res.Filtered = s.filter.Update(raw)
			}
			if err := s.trajectory.Push(tracking.Sample{Position: res.Filtered, Time: now}); err != nil {
				debugMsg("SESSION", fmt.Sprintf("Dropping sample: %v", err), s.id)
			}
		}

		res.Estimate = s.model.Estimate(s.trajectory.Samples())
		if res.Estimate.Valid() {
			if !s.peak.Valid() || res.Estimate.KMH > s.peak.KMH {
				s.peak = res.Estimate
			}
			s.record(res.Estimate, now)
		}
	}

	s.renderer.Annotate(frame, res.Estimate, s.trajectory.Samples())
	return res
}

func (s *Session) record(est tracking.Estimate, now time.Time) {
	if s.recorder == nil {
		return
	}
	if s.recordEvery > 0 && !s.lastRecorded.IsZero() && now.Sub(s.lastRecorded) < s.recordEvery {
		return
	}

	reading := store.Reading{
		SessionID: s.id,
		KMH:       est.KMH,
		Model:     s.model.Name(),
		Samples:   s.trajectory.Len(),
		Timestamp: now,
	}
	if err := s.recorder.RecordSpeed(reading); err != nil {
		debugMsg("SESSION", fmt.Sprintf("Failed to record speed: %v", err), s.id)
		return
	}
	s.lastRecorded = now
}

// PeakKMH returns the highest valid estimate seen by the session
func (s *Session) PeakKMH() (float64, bool) {
	return s.peak.KMH, s.peak.Valid()
}

// Close releases the detector's native resources
func (s *Session) Close() error {
	debugMsg("SESSION", fmt.Sprintf("Session closed after %d frames (%d detections)", s.frames, s.detections), s.id)
	return s.detector.Close()
}
