/*
Package session implements a continuous capture session on top of a capture.Device: a fixed ring
of memory mapped buffers is perpetually handed back to the device by the acquisition loop, while
every Kth frame is diverted to a background save worker through a single-slot handoff.

The acquisition loop never waits for the save path. If a candidate frame arrives while the
previous one is still being persisted, the candidate is returned to the device right away and
is not persisted. Buffer ownership (device, loop or worker) is tracked per buffer and every
transfer between owners is checked, so a buffer can never be held by two parties at once.

A typical lifecycle looks like this:

	s, err := session.New(dev, persister, format)
	if err != nil {
		...
	}
	defer s.Close()

	if err := s.Setup(ctx); err != nil {
		...
	}
	if err := s.Run(ctx); err != nil {
		...
	}
*/
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/els0r/telemetry/logging"
	"github.com/fako1024/slimcam/capture"
	"github.com/fako1024/slimcam/capture/ring"
	"github.com/fako1024/slimcam/handoff"
	"github.com/fako1024/slimcam/persist"
	"github.com/sourcegraph/conc"
)

var (

	// ErrAlreadyRun denotes that Run() was called more than once on the same session
	ErrAlreadyRun = errors.New("session was already run")
)

// Session denotes a single capture session, owning the buffer ring, the handoff slot and the
// save worker
type Session struct {
	dev       capture.Device
	persister persist.Persister
	format    capture.Format
	controls  capture.Controls

	ring *ring.Ring
	slot mailbox

	bufferCount int
	saveEvery   uint64
	waitTimeout time.Duration

	started atomic.Bool
	stats   counters
}

// mailbox denotes the single-slot handoff between acquisition loop and save worker
type mailbox interface {
	TryPost(index int) handoff.PostResult
	WaitAndTake() (index int, ok bool)
	Shutdown()
	Pending() int
}

type counters struct {
	received   atomic.Uint64
	selected   atomic.Uint64
	skipped    atomic.Uint64
	saved      atomic.Uint64
	saveErrors atomic.Uint64
}

// New instantiates a new capture session for the given device, persisting candidate frames via
// the provided persister
func New(dev capture.Device, persister persist.Persister, format capture.Format, options ...Option) (*Session, error) {
	if dev == nil {
		return nil, errors.New("no capture device provided")
	}
	if persister == nil {
		return nil, errors.New("no persister provided")
	}

	s := &Session{
		dev:         dev,
		persister:   persister,
		format:      format,
		ring:        ring.New(dev),
		slot:        handoff.New(),
		bufferCount: DefaultBufferCount,
		saveEvery:   DefaultSaveEvery,
		waitTimeout: capture.DefaultWaitTimeout,
	}
	for _, opt := range options {
		opt(s)
	}

	return s, nil
}

// Setup configures the capture format, negotiates and maps the buffer ring and applies the
// hardware controls. Upon failure, any buffers mapped so far are released again
func (s *Session) Setup(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	if err := s.dev.ConfigureFormat(s.format); err != nil {
		return fmt.Errorf("failed to configure format %s: %w", s.format, err)
	}

	requested := min(s.bufferCount, ring.MaxBuffers)
	granted, err := s.ring.Setup(requested)
	if err != nil {
		return err
	}
	if granted < requested {
		logger.Warnf("device granted %d buffers, fewer than the %d requested", granted, requested)
	}

	if err := s.ring.MapAll(); err != nil {
		return err
	}

	if err := s.dev.ApplyControls(s.controls); err != nil {
		return errors.Join(fmt.Errorf("failed to apply controls: %w", err), s.ring.UnmapAll())
	}

	logger.Debugf("set up ring of %d buffers for %s", granted, s.format)

	return nil
}

// Run starts streaming and runs the acquisition loop (and the save worker) until the context is
// cancelled or a fatal error occurs. Upon return, the save worker has terminated, streaming is
// stopped and all buffers have been reclaimed from the device. A session can only be run once
func (s *Session) Run(ctx context.Context) error {
	if s.ring.Len() == 0 {
		return ring.ErrNotSetup
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}

	ctx = logging.WithFields(ctx, slog.String("format", s.format.String()))
	logger := logging.FromContext(ctx)

	if err := s.startStreaming(); err != nil {
		return err
	}

	var (
		wg        conc.WaitGroup
		workerErr error
	)
	wg.Go(func() {
		workerErr = s.saveWorker(ctx)
	})

	// Release the acquisition loop from waiting for the device as soon as the context is done
	unblocked := make(chan struct{})
	stopUnblock := context.AfterFunc(ctx, func() {
		defer close(unblocked)
		if err := s.dev.Unblock(); err != nil {
			logger.Warnf("failed to unblock device: %s", err)
		}
	})

	loopErr := s.acquire(ctx)
	if !stopUnblock() {
		<-unblocked
	}
	if loopErr != nil {
		logger.Errorf("acquisition loop failed: %s", loopErr)
	}

	// Wake up the worker and wait for it to finish any save in progress
	s.slot.Shutdown()
	if recovered := wg.WaitAndRecover(); recovered != nil {
		workerErr = errors.Join(workerErr, recovered.AsError())
	}

	errs := []error{loopErr, workerErr}
	if err := s.dev.StopStreaming(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop streaming: %w", err))
	}
	s.ring.Reset()

	logger.Infof("capture finished: %s", s.Stats())

	return errors.Join(errs...)
}

// Stats returns the current statistics of the session
func (s *Session) Stats() capture.Stats {
	return capture.Stats{
		FramesReceived: s.stats.received.Load(),
		FramesSelected: s.stats.selected.Load(),
		FramesSkipped:  s.stats.skipped.Load(),
		FramesSaved:    s.stats.saved.Load(),
		SaveErrors:     s.stats.saveErrors.Load(),
		PendingIndex:   s.slot.Pending(),
		PerBuffer:      s.ring.DequeueCounts(),
	}
}

// Close releases all buffer mappings and closes the underlying device
func (s *Session) Close() error {
	return errors.Join(s.ring.UnmapAll(), s.dev.Close())
}

func (s *Session) startStreaming() error {
	for i := 0; i < s.ring.Len(); i++ {
		if err := s.requeue(i, ring.OwnerNone); err != nil {
			return errors.Join(err, s.abortStreaming())
		}
	}

	if err := s.dev.StartStreaming(); err != nil {
		return errors.Join(fmt.Errorf("failed to start streaming: %w", err), s.abortStreaming())
	}

	return nil
}

func (s *Session) abortStreaming() error {
	defer s.ring.Reset()
	return s.dev.StopStreaming()
}

// requeue hands the buffer back to the device. If the device refuses it, ownership stays with
// the previous owner
func (s *Session) requeue(index int, from ring.Owner) error {
	if err := s.ring.Transfer(index, from, ring.OwnerDevice); err != nil {
		return err
	}
	if err := s.dev.Queue(index); err != nil {
		return errors.Join(
			fmt.Errorf("failed to queue buffer %d: %w", index, err),
			s.ring.Transfer(index, ring.OwnerDevice, from),
		)
	}

	return nil
}
