// Package config provides the configuration of a capture run, merged by viper from command line
// flags, environment variables (SLIMCAM_ prefix), an optional YAML config file and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fako1024/slimcam/capture"
	"github.com/fako1024/slimcam/capture/v4l2"
	"github.com/fako1024/slimcam/session"
	"github.com/spf13/viper"
)

// EnvPrefix denotes the prefix of all environment variables overriding configuration keys
const EnvPrefix = "SLIMCAM"

// Config denotes the complete configuration of a capture run
type Config struct {
	// Device is the path of the video capture device
	Device string `mapstructure:"device" yaml:"device"`
	// Format is the pixel format to capture in (uyvy, yuyv or bayer)
	Format string `mapstructure:"format" yaml:"format"`
	// Size selects the resolution (0: 2560x1920, 1: 1280x960, 2: 640x480)
	Size int `mapstructure:"size" yaml:"size"`
	// Exposure is the exposure time in microseconds (0 leaves it untouched)
	Exposure int `mapstructure:"exposure" yaml:"exposure"`
	// Gain holds the analog gains (0 leaves a gain untouched)
	Gain GainConfig `mapstructure:"gain" yaml:"gain"`
	// NoSnap applies the settings to the device without capturing any frames
	NoSnap bool `mapstructure:"nosnap" yaml:"nosnap"`

	// OutputDir is the directory persisted frames are written to
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	// Buffers is the number of buffers requested from the device
	Buffers int `mapstructure:"buffers" yaml:"buffers"`
	// SaveEvery is the interval (in frames) at which a frame is persisted
	SaveEvery int `mapstructure:"save_every" yaml:"save_every"`
	// WaitTimeout is the maximum time to wait for a frame before giving up
	WaitTimeout time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`

	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// GainConfig denotes the per-channel / global gain settings. A global gain overrides all
// per-channel gains
type GainConfig struct {
	Red    int `mapstructure:"red" yaml:"red"`
	Blue   int `mapstructure:"blue" yaml:"blue"`
	Green1 int `mapstructure:"green1" yaml:"green1"`
	Green2 int `mapstructure:"green2" yaml:"green2"`
	Global int `mapstructure:"global" yaml:"global"`
}

// LogConfig denotes the logging settings
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `mapstructure:"level" yaml:"level"`
	// Encoding is the log encoding (logfmt, json, plain)
	Encoding string `mapstructure:"encoding" yaml:"encoding"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Device:      v4l2.DefaultDevicePath,
		Format:      capture.PixelFormatUYVY.Name(),
		Size:        int(capture.SizeNative),
		OutputDir:   ".",
		Buffers:     session.DefaultBufferCount,
		SaveEvery:   session.DefaultSaveEvery,
		WaitTimeout: capture.DefaultWaitTimeout,
		Log: LogConfig{
			Level:    "info",
			Encoding: "logfmt",
		},
	}
}

// SetDefaults registers default values with the provided viper instance
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("device", defaults.Device)
	v.SetDefault("format", defaults.Format)
	v.SetDefault("size", defaults.Size)
	v.SetDefault("exposure", defaults.Exposure)
	v.SetDefault("nosnap", defaults.NoSnap)

	// Gain defaults
	v.SetDefault("gain.red", defaults.Gain.Red)
	v.SetDefault("gain.blue", defaults.Gain.Blue)
	v.SetDefault("gain.green1", defaults.Gain.Green1)
	v.SetDefault("gain.green2", defaults.Gain.Green2)
	v.SetDefault("gain.global", defaults.Gain.Global)

	// Capture defaults
	v.SetDefault("output_dir", defaults.OutputDir)
	v.SetDefault("buffers", defaults.Buffers)
	v.SetDefault("save_every", defaults.SaveEvery)
	v.SetDefault("wait_timeout", defaults.WaitTimeout)

	// Logging defaults
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.encoding", defaults.Log.Encoding)
}

// BindEnv enables overriding any configuration key via environment variables, e.g.
// SLIMCAM_GAIN_RED for gain.red
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from viper into a Config struct and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	// logging.Init only accepts lower case encodings
	cfg.Format = strings.ToLower(cfg.Format)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Encoding = strings.ToLower(cfg.Log.Encoding)

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// CaptureFormat returns the capture format (pixel format and resolution) to negotiate
func (c *Config) CaptureFormat() (capture.Format, error) {
	pixFmt, err := capture.ParsePixelFormat(c.Format)
	if err != nil {
		return capture.Format{}, err
	}
	return capture.NewFormat(pixFmt, capture.Size(c.Size))
}

// Controls returns the hardware controls to apply at startup
func (c *Config) Controls() capture.Controls {
	return capture.Controls{
		Exposure: c.Exposure,
		Gains: capture.Gains{
			Red:    c.Gain.Red,
			Blue:   c.Gain.Blue,
			Green1: c.Gain.Green1,
			Green2: c.Gain.Green2,
			Global: c.Gain.Global,
		},
	}
}

// SessionOptions returns the options of the capture session
func (c *Config) SessionOptions() []session.Option {
	return []session.Option{
		session.WithBufferCount(c.Buffers),
		session.WithSaveEvery(c.SaveEvery),
		session.WithWaitTimeout(c.WaitTimeout),
		session.WithControls(c.Controls()),
	}
}
