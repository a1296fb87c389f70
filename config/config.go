package config

import (
	"time"

	"pitchcam/detection"
	"pitchcam/overlay"
	"pitchcam/pipeline"
	"pitchcam/tracking"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// DetectionConfig holds blob detector settings
type DetectionConfig struct {
	Lower      detection.HSV `json:"lower" mapstructure:"lower"`
	Upper      detection.HSV `json:"upper" mapstructure:"upper"`
	MinArea    float64       `json:"minArea" mapstructure:"minArea"`
	MaxArea    float64       `json:"maxArea" mapstructure:"maxArea"`
	Morphology bool          `json:"morphology" mapstructure:"morphology"`
	KernelSize int           `json:"kernelSize" mapstructure:"kernelSize"`
}

// TrackingConfig holds trajectory and filter settings
type TrackingConfig struct {
	Capacity         int     `json:"capacity" mapstructure:"capacity"`
	Kalman           bool    `json:"kalman" mapstructure:"kalman"`
	ProcessNoise     float64 `json:"processNoise" mapstructure:"processNoise"`
	MeasurementNoise float64 `json:"measurementNoise" mapstructure:"measurementNoise"`
	SeedFromFirst    bool    `json:"seedFromFirst" mapstructure:"seedFromFirst"`
}

// SpeedConfig selects and calibrates the speed model
type SpeedConfig struct {
	Model          string  `json:"model" mapstructure:"model"`
	PixelsPerMeter float64 `json:"pixelsPerMeter" mapstructure:"pixelsPerMeter"`
	Gravity        float64 `json:"gravity" mapstructure:"gravity"`
}

// StoreConfig holds speed log settings. An empty path disables the log.
type StoreConfig struct {
	Path        string        `json:"path" mapstructure:"path"`
	RecordEvery time.Duration `json:"recordEvery" mapstructure:"recordEvery"`
}

// Config is the full service configuration
type Config struct {
	LogLevel    string          `json:"logLevel" mapstructure:"logLevel"`
	Addr        string          `json:"addr" mapstructure:"addr"`
	Device      string          `json:"device" mapstructure:"device"`
	JPEGQuality int             `json:"jpegQuality" mapstructure:"jpegQuality"`
	Trajectory  bool            `json:"trajectory" mapstructure:"trajectory"`
	Detection   DetectionConfig `json:"detection" mapstructure:"detection"`
	Tracking    TrackingConfig  `json:"tracking" mapstructure:"tracking"`
	Speed       SpeedConfig     `json:"speed" mapstructure:"speed"`
	Store       StoreConfig     `json:"store" mapstructure:"store"`
}

var logLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("addr", ":5000")
	viper.SetDefault("device", "0")
	viper.SetDefault("jpegQuality", 95)
	viper.SetDefault("trajectory", false)

	viper.SetDefault("detection.lower.h", detection.WhiteBall.Lower.H)
	viper.SetDefault("detection.lower.s", detection.WhiteBall.Lower.S)
	viper.SetDefault("detection.lower.v", detection.WhiteBall.Lower.V)
	viper.SetDefault("detection.upper.h", detection.WhiteBall.Upper.H)
	viper.SetDefault("detection.upper.s", detection.WhiteBall.Upper.S)
	viper.SetDefault("detection.upper.v", detection.WhiteBall.Upper.V)
	viper.SetDefault("detection.minArea", detection.DefaultMinArea)
	viper.SetDefault("detection.maxArea", detection.DefaultMaxArea)
	viper.SetDefault("detection.morphology", false)
	viper.SetDefault("detection.kernelSize", detection.DefaultKernelSize)

	viper.SetDefault("tracking.capacity", tracking.DefaultTrajectoryCapacity)
	viper.SetDefault("tracking.kalman", false)
	viper.SetDefault("tracking.processNoise", tracking.DefaultProcessNoise)
	viper.SetDefault("tracking.measurementNoise", tracking.DefaultMeasurementNoise)
	viper.SetDefault("tracking.seedFromFirst", false)

	viper.SetDefault("speed.model", tracking.ModelBaseline)
	viper.SetDefault("speed.pixelsPerMeter", tracking.DefaultPixelsPerMeter)
	viper.SetDefault("speed.gravity", tracking.StandardGravity)

	viper.SetDefault("store.path", "")
	viper.SetDefault("store.recordEvery", "0s")
}

// Load sets defaults, reads the JSON file at path when one is given, and
// returns the validated configuration
func Load(path string) (*Config, error) {
	setDefaults()

	if path != "" {
		viper.SetConfigFile(path)
		viper.SetConfigType("json")
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "error reading config file")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "error decoding config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	if !logLevels[c.LogLevel] {
		return errors.Errorf("invalid logLevel %q", c.LogLevel)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return errors.Errorf("jpegQuality must be in [1,100], got %d", c.JPEGQuality)
	}

	d := c.Detection
	if err := validateHSV("detection.lower", d.Lower); err != nil {
		return err
	}
	if err := validateHSV("detection.upper", d.Upper); err != nil {
		return err
	}
	if d.Lower.H > d.Upper.H || d.Lower.S > d.Upper.S || d.Lower.V > d.Upper.V {
		return errors.New("detection.lower must not exceed detection.upper")
	}
	if d.MinArea < 0 || d.MinArea >= d.MaxArea {
		return errors.Errorf("detection area range (%v, %v) is empty", d.MinArea, d.MaxArea)
	}
	if d.KernelSize < 1 {
		return errors.Errorf("detection.kernelSize must be positive, got %d", d.KernelSize)
	}

	if c.Tracking.Capacity < 2 {
		return errors.Errorf("tracking.capacity must be at least 2, got %d", c.Tracking.Capacity)
	}
	if c.Tracking.ProcessNoise <= 0 || c.Tracking.MeasurementNoise <= 0 {
		return errors.New("tracking noise scales must be positive")
	}

	if c.Speed.Gravity <= 0 {
		return errors.Errorf("speed.gravity must be positive, got %v", c.Speed.Gravity)
	}
	if _, err := tracking.NewSpeedModel(c.Speed.Model, c.Speed.PixelsPerMeter, c.Speed.Gravity); err != nil {
		return errors.Wrap(err, "speed")
	}

	if c.Store.RecordEvery < 0 {
		return errors.New("store.recordEvery must not be negative")
	}
	return nil
}

func validateHSV(key string, c detection.HSV) error {
	if c.H < 0 || c.H > 180 {
		return errors.Errorf("%s.h must be in [0,180], got %v", key, c.H)
	}
	if c.S < 0 || c.S > 255 || c.V < 0 || c.V > 255 {
		return errors.Errorf("%s s/v must be in [0,255]", key)
	}
	return nil
}

// SessionConfig converts the file settings into a per-stream pipeline config
func (c *Config) SessionConfig() pipeline.Config {
	return pipeline.Config{
		Blob: detection.BlobConfig{
			Range:      detection.ColorRange{Lower: c.Detection.Lower, Upper: c.Detection.Upper},
			MinArea:    c.Detection.MinArea,
			MaxArea:    c.Detection.MaxArea,
			Morphology: c.Detection.Morphology,
			KernelSize: c.Detection.KernelSize,
		},
		TrajectoryCapacity: c.Tracking.Capacity,
		Kalman:             c.Tracking.Kalman,
		KalmanConfig: tracking.KalmanConfig{
			ProcessNoise:     c.Tracking.ProcessNoise,
			MeasurementNoise: c.Tracking.MeasurementNoise,
			SeedFromFirst:    c.Tracking.SeedFromFirst,
		},
		SpeedModel:     c.Speed.Model,
		PixelsPerMeter: c.Speed.PixelsPerMeter,
		Gravity:        c.Speed.Gravity,
		Overlay:        overlay.Options{Trajectory: c.Trajectory},
		RecordEvery:    c.Store.RecordEvery,
	}
}
