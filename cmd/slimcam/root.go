package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/els0r/telemetry/logging"
	"github.com/fako1024/slimcam/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagKeys maps command line flags to their configuration keys
var flagKeys = map[string]string{
	"device":       "device",
	"format":       "format",
	"size":         "size",
	"exposure":     "exposure",
	"red":          "gain.red",
	"blue":         "gain.blue",
	"green1":       "gain.green1",
	"green2":       "gain.green2",
	"gain":         "gain.global",
	"nosnap":       "nosnap",
	"output-dir":   "output_dir",
	"buffers":      "buffers",
	"save-every":   "save_every",
	"wait-timeout": "wait_timeout",
	"log-level":    "log.level",
	"log-encoding": "log.encoding",
}

// newRootCmd builds the command tree. The returned function releases the logger set up during
// execution and has to be called once the command has returned
func newRootCmd(v *viper.Viper) (*cobra.Command, logging.ShutdownFunc) {
	var (
		cfg             *config.Config
		shutdownLogging logging.ShutdownFunc
	)

	rootCmd := &cobra.Command{
		Use:   "slimcam",
		Short: "Continuous V4L2 frame capture",
		Long: `slimcam continuously captures frames from a V4L2 video device using a ring of
memory mapped buffers. Every Kth frame (100 by default) is written to disk as raw
buffer contents by a background worker. If the worker is still busy when the next
frame is due, that frame is skipped instead of stalling the capture.

Exposure and gains are applied once at startup. Exposure is clamped to [63, 142644]
microseconds, gains outside of [1, 161] are ignored and a global gain overrides all
per-channel gains.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) (err error) {
			if cfg, err = loadConfig(v); err != nil {
				return err
			}
			shutdownLogging, err = logging.Init(logging.LevelFromString(cfg.Log.Level), logging.Encoding(cfg.Log.Encoding))
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}

	defaults := config.Default()
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (YAML)")
	flags.StringP("device", "d", defaults.Device, "Video capture device")
	flags.StringP("format", "f", defaults.Format, "Pixel format [uyvy, yuyv, bayer]")
	flags.IntP("size", "s", defaults.Size, "Image size  0:2560x1920  1:1280x960  2:640x480")
	flags.IntP("exposure", "e", defaults.Exposure, "Exposure time in microseconds")
	flags.IntP("red", "r", defaults.Gain.Red, "Red gain")
	flags.IntP("blue", "b", defaults.Gain.Blue, "Blue gain")
	flags.IntP("green1", "G", defaults.Gain.Green1, "Green1 gain")
	flags.IntP("green2", "g", defaults.Gain.Green2, "Green2 gain")
	flags.IntP("gain", "n", defaults.Gain.Global, "Global gain (overrides per-channel gains)")
	flags.BoolP("nosnap", "o", defaults.NoSnap, "Only apply gain/exposure settings, no picture")
	flags.String("output-dir", defaults.OutputDir, "Directory to write captured frames to")
	flags.Int("buffers", defaults.Buffers, "Number of buffers to request from the device")
	flags.Int("save-every", defaults.SaveEvery, "Persist every Nth frame")
	flags.Duration("wait-timeout", defaults.WaitTimeout, "Maximum time to wait for a frame")
	flags.String("log-level", defaults.Log.Level, "Log level [debug, info, warn, error]")
	flags.String("log-encoding", defaults.Log.Encoding, "Log encoding [logfmt, json, plain]")

	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %s", flag, err))
		}
	}
	if err := v.BindPFlag("config", flags.Lookup("config")); err != nil {
		panic(fmt.Sprintf("failed to bind flag config: %s", err))
	}

	rootCmd.AddCommand(newConfigCmd(func() *config.Config {
		return cfg
	}))

	return rootCmd, func() error {
		if shutdownLogging == nil {
			return nil
		}
		return shutdownLogging()
	}
}

func loadConfig(v *viper.Viper) (*config.Config, error) {
	config.SetDefaults(v)
	config.BindEnv(v)

	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
