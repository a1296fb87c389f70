package tracking

import (
	"fmt"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultProcessNoise scales the identity process noise covariance
	DefaultProcessNoise = 0.03
	// DefaultMeasurementNoise scales the identity measurement noise covariance
	DefaultMeasurementNoise = 1.0
)

// KalmanConfig holds the fixed noise scales of the filter
type KalmanConfig struct {
	ProcessNoise     float64
	MeasurementNoise float64
	// SeedFromFirst starts the state at the first observation instead of the origin
	SeedFromFirst bool
}

// DefaultKalmanConfig returns the hand-tuned noise scales
func DefaultKalmanConfig() KalmanConfig {
	return KalmanConfig{
		ProcessNoise:     DefaultProcessNoise,
		MeasurementNoise: DefaultMeasurementNoise,
	}
}

// KalmanFilter implements a constant-velocity 2D Kalman filter over pixel
// coordinates. Time is measured in frames, so velocity is pixels per frame.
//
// The state starts at the origin with zero covariance unless SeedFromFirst is
// set, so the first few filtered positions lag far behind the observations.
type KalmanFilter struct {
	// State vector [x, y, vx, vy]
	state *mat.VecDense
	// Covariance matrix
	P *mat.Dense
	// Transition matrix (identity plus one frame of velocity on position rows)
	F *mat.Dense
	// Observation matrix extracting position
	H *mat.Dense
	// Process noise
	Q *mat.Dense
	// Measurement noise
	R *mat.Dense

	seedFromFirst bool
	initialized   bool
	updates       int
}

// NewKalmanFilter creates a new Kalman filter
func NewKalmanFilter(cfg KalmanConfig) *KalmanFilter {
	q := cfg.ProcessNoise
	r := cfg.MeasurementNoise

	return &KalmanFilter{
		state: mat.NewVecDense(4, nil),
		P:     mat.NewDense(4, 4, nil),
		F: mat.NewDense(4, 4, []float64{
			1, 0, 1, 0,
			0, 1, 0, 1,
			0, 0, 1, 0,
			0, 0, 0, 1,
		}),
		H: mat.NewDense(2, 4, []float64{
			1, 0, 0, 0,
			0, 1, 0, 0,
		}),
		Q: mat.NewDense(4, 4, []float64{
			q, 0, 0, 0,
			0, q, 0, 0,
			0, 0, q, 0,
			0, 0, 0, q,
		}),
		R: mat.NewDense(2, 2, []float64{
			r, 0,
			0, r,
		}),
		seedFromFirst: cfg.SeedFromFirst,
	}
}

// Update runs one predict/correct cycle with an observed centroid and
// returns the filtered position
func (kf *KalmanFilter) Update(observed r2.Point) r2.Point {
	if !kf.initialized {
		kf.initialized = true
		if kf.seedFromFirst {
			kf.state.SetVec(0, observed.X)
			kf.state.SetVec(1, observed.Y)
			kf.updates++
			return observed
		}
	}

	kf.Predict()
	kf.Correct(observed)
	kf.updates++

	return kf.Position()
}

// Predict propagates state and covariance forward one frame
func (kf *KalmanFilter) Predict() {
	// x = F * x
	var x mat.VecDense
	x.MulVec(kf.F, kf.state)
	kf.state = &x

	// P = F * P * F' + Q
	var p mat.Dense
	p.Product(kf.F, kf.P, kf.F.T())
	p.Add(&p, kf.Q)
	kf.P = &p
}

// Correct folds an observed position into the predicted state
func (kf *KalmanFilter) Correct(observed r2.Point) {
	z := mat.NewVecDense(2, []float64{observed.X, observed.Y})

	// Innovation
	var hx, innovation mat.VecDense
	hx.MulVec(kf.H, kf.state)
	innovation.SubVec(z, &hx)

	// Innovation covariance S = H * P * H' + R
	var s mat.Dense
	s.Product(kf.H, kf.P, kf.H.T())
	s.Add(&s, kf.R)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		debugMsg("KALMAN", fmt.Sprintf("Innovation covariance not invertible (%v) - skipping correction", err))
		return
	}

	// Kalman gain K = P * H' * inv(S)
	var k mat.Dense
	k.Product(kf.P, kf.H.T(), &sInv)

	// Update state
	var dx mat.VecDense
	dx.MulVec(&k, &innovation)
	kf.state.AddVec(kf.state, &dx)

	// P = (I - K*H) * P
	var kh, ikh, p mat.Dense
	kh.Mul(&k, kf.H)
	ikh.Sub(identity(4), &kh)
	p.Mul(&ikh, kf.P)
	kf.P = &p
}

// Position returns the filtered position
func (kf *KalmanFilter) Position() r2.Point {
	return r2.Point{X: kf.state.AtVec(0), Y: kf.state.AtVec(1)}
}

// Velocity returns the filtered velocity in pixels per frame
func (kf *KalmanFilter) Velocity() r2.Point {
	return r2.Point{X: kf.state.AtVec(2), Y: kf.state.AtVec(3)}
}

// Updates returns how many observations the filter has absorbed
func (kf *KalmanFilter) Updates() int {
	return kf.updates
}

// Reset returns the filter to its zero state
func (kf *KalmanFilter) Reset() {
	kf.state = mat.NewVecDense(4, nil)
	kf.P = mat.NewDense(4, 4, nil)
	kf.initialized = false
	kf.updates = 0
}

func identity(n int) *mat.Dense {
	id := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		id.Set(i, i, 1)
	}
	return id
}
