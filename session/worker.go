package session

import (
	"context"
	"errors"

	"github.com/els0r/telemetry/logging"
	"github.com/fako1024/slimcam/capture/ring"
	"github.com/fako1024/slimcam/persist"
)

// saveWorker persists every buffer posted to the handoff slot and returns it to the device
// afterwards, until the slot is shut down and drained. Persistence failures are logged and
// counted only, failures to return a buffer to the device are collected and returned
func (s *Session) saveWorker(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	var errs []error
	for {
		index, ok := s.slot.WaitAndTake()
		if !ok {
			return errors.Join(errs...)
		}

		if err := s.save(ctx, index); err != nil {
			logger.Errorf("failed to return buffer %d to device: %s", index, err)
			errs = append(errs, err)
		}
	}
}

func (s *Session) save(ctx context.Context, index int) error {
	buf, err := s.ring.At(index)
	if err != nil {
		return err
	}

	frame := persist.Frame{
		PixelFormat: s.format.PixelFormat,
		BufferIndex: index,
		Sequence:    buf.Dequeued(),
	}
	if err := s.persister.Persist(buf.Data(), frame); err != nil {
		s.stats.saveErrors.Add(1)
		logging.FromContext(ctx).Warnf("failed to persist frame %s: %s", frame.FileName(), err)
	} else {
		buf.MarkPersisted()
		s.stats.saved.Add(1)
	}

	// The buffer goes back to the device regardless of the outcome
	return s.requeue(index, ring.OwnerWorker)
}
