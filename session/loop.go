package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/els0r/telemetry/logging"
	"github.com/fako1024/slimcam/capture"
	"github.com/fako1024/slimcam/capture/ring"
	"github.com/fako1024/slimcam/handoff"
)

// acquire runs the acquisition loop until the context is done or a fatal error occurs
func (s *Session) acquire(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	var accepted uint64
	for {
		if ctx.Err() != nil {
			return nil
		}

		res, err := s.dev.WaitReadable(s.waitTimeout)
		if err != nil {
			if errors.Is(err, capture.ErrCaptureStopped) {
				logger.Debug("capture stopped by device")
				return nil
			}
			return fmt.Errorf("failed to wait for next frame: %w", err)
		}
		switch res {
		case capture.Interrupted:
			continue
		case capture.TimedOut:
			return fmt.Errorf("%w (no frame within %v)", capture.ErrWaitTimeout, s.waitTimeout)
		}

		index, err := s.dev.Dequeue()
		if err != nil {
			switch {
			case errors.Is(err, capture.ErrNotReady):
				logger.Debug("spurious wake-up, no buffer ready")
				continue
			case errors.Is(err, capture.ErrCaptureStopped):
				logger.Debug("capture stopped while dequeuing")
				return nil
			}
			return fmt.Errorf("failed to dequeue buffer: %w", err)
		}

		buf, err := s.ring.At(index)
		if err != nil {
			return fmt.Errorf("device returned unknown buffer: %w", err)
		}
		if err := s.ring.Transfer(index, ring.OwnerDevice, ring.OwnerLoop); err != nil {
			return err
		}
		buf.MarkDequeued()
		s.stats.received.Add(1)

		accepted++
		if err := s.route(ctx, index, accepted%s.saveEvery == 0); err != nil {
			return err
		}
	}
}

// route either diverts a candidate frame to the save worker or hands the buffer straight back
// to the device. A candidate the worker cannot take right now is requeued without being saved
func (s *Session) route(ctx context.Context, index int, candidate bool) error {
	if candidate {
		s.stats.selected.Add(1)

		if err := s.ring.Transfer(index, ring.OwnerLoop, ring.OwnerWorker); err != nil {
			return err
		}
		res := s.slot.TryPost(index)
		if res == handoff.Accepted {
			return nil
		}

		logging.FromContext(ctx).Debugf("save path %s, requeueing candidate buffer %d", res, index)
		s.stats.skipped.Add(1)
		if err := s.ring.Transfer(index, ring.OwnerWorker, ring.OwnerLoop); err != nil {
			return err
		}
	}

	return s.requeue(index, ring.OwnerLoop)
}
