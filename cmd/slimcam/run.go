package main

import (
	"context"
	"log/slog"

	"github.com/els0r/telemetry/logging"
	"github.com/fako1024/slimcam/capture/v4l2"
	"github.com/fako1024/slimcam/config"
	"github.com/fako1024/slimcam/persist"
	"github.com/fako1024/slimcam/session"
)

func run(ctx context.Context, cfg *config.Config) (err error) {
	ctx = logging.WithFields(ctx, slog.String("device", cfg.Device))
	logger := logging.FromContext(ctx)

	format, err := cfg.CaptureFormat()
	if err != nil {
		return err
	}
	persister, err := persist.NewFilePersister(cfg.OutputDir)
	if err != nil {
		return err
	}

	dev, err := v4l2.Open(cfg.Device)
	if err != nil {
		return err
	}
	s, err := session.New(dev, persister, format, cfg.SessionOptions()...)
	if err != nil {
		if cerr := dev.Close(); cerr != nil {
			logger.Errorf("failed to close device: %s", cerr)
		}
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			logger.Errorf("failed to release device: %s", cerr)
		}
	}()

	if err := s.Setup(ctx); err != nil {
		return err
	}
	if cfg.NoSnap {
		logger.Infof("applied settings for %s, skipping capture", format)
		return nil
	}

	logger.Infof("capturing %s, persisting every %d frames to %s", format, cfg.SaveEvery, cfg.OutputDir)

	return s.Run(ctx)
}
