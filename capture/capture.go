/*
Package capture defines the generic contract between a video capture device and the acquisition
path (see package session): the device operations the acquisition loop depends on, the pixel
formats / resolutions it can negotiate, hardware controls applied at startup and the statistics
collected during a capture run.
*/
package capture

import (
	"errors"
	"time"

	"github.com/fako1024/slimcam/capture/ring"
)

// DefaultWaitTimeout denotes the default maximum time to wait for a device to become readable
const DefaultWaitTimeout = 30 * time.Second

var (

	// ErrCaptureStopped denotes that the capture was stopped
	ErrCaptureStopped = errors.New("capture was stopped")

	// ErrNotReady denotes that no completed buffer is available (yet) for dequeueing
	ErrNotReady = errors.New("no buffer ready")

	// ErrWaitTimeout denotes that no frame arrived within the wait timeout
	ErrWaitTimeout = errors.New("timeout waiting for device to become readable")

	// ErrFormatMismatch denotes that the device negotiated a format different from the requested one
	ErrFormatMismatch = errors.New("negotiated format differs from requested format")
)

// WaitResult denotes the outcome of waiting for a device to become readable
type WaitResult int

const (

	// Readable denotes that the device has (at least one) completed buffer available
	Readable WaitResult = iota

	// TimedOut denotes that the wait timeout expired without the device becoming readable
	TimedOut

	// Interrupted denotes that the wait was interrupted (by a signal or an explicit Unblock())
	Interrupted
)

// String returns a human-readable representation of the wait result
func (w WaitResult) String() string {
	switch w {
	case Readable:
		return "readable"
	case TimedOut:
		return "timed out"
	case Interrupted:
		return "interrupted"
	}
	return "unknown"
}

// Device denotes a video capture device providing a ring of (memory mapped) buffers
type Device interface {

	// Mapper provides buffer negotiation and memory mapping for the ring
	ring.Mapper

	// ConfigureFormat sets the capture format. A negotiated format differing from the requested
	// one is a hard error (ErrFormatMismatch)
	ConfigureFormat(format Format) error

	// ApplyControls applies (already normalized) hardware controls
	ApplyControls(controls Controls) error

	// Queue hands the buffer with the given index to the device
	Queue(index int) error

	// Dequeue retrieves the index of the next completed buffer from the device. The operation
	// is non-blocking and returns ErrNotReady if no buffer is available
	Dequeue() (int, error)

	// StartStreaming starts the capture stream
	StartStreaming() error

	// StopStreaming stops the capture stream, implicitly reclaiming all queued buffers
	StopStreaming() error

	// WaitReadable waits (up to the provided timeout) for the device to become readable
	WaitReadable(timeout time.Duration) (WaitResult, error)

	// Unblock releases an ongoing WaitReadable() call (reported as Interrupted)
	Unblock() error

	// Close closes the device
	Close() error
}
