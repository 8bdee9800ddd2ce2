package session

import (
	"time"

	"github.com/fako1024/slimcam/capture"
	"github.com/fako1024/slimcam/capture/ring"
)

const (

	// DefaultSaveEvery denotes the default interval (in accepted frames) between candidate frames
	DefaultSaveEvery = 100

	// DefaultBufferCount denotes the default number of buffers requested from the device
	DefaultBufferCount = ring.MaxBuffers
)

// Option denotes a functional option for the Session
type Option func(*Session)

// WithBufferCount sets the number of buffers requested from the device (capped at ring.MaxBuffers)
func WithBufferCount(n int) Option {
	return func(s *Session) {
		s.bufferCount = n
	}
}

// WithSaveEvery sets the interval (in accepted frames) at which a frame becomes a candidate for
// persistence
func WithSaveEvery(k int) Option {
	return func(s *Session) {
		s.saveEvery = uint64(max(k, 1))
	}
}

// WithWaitTimeout sets the maximum time to wait for the device to become readable before the
// capture is considered stalled
func WithWaitTimeout(timeout time.Duration) Option {
	return func(s *Session) {
		if timeout <= 0 {
			timeout = capture.DefaultWaitTimeout
		}
		s.waitTimeout = timeout
	}
}

// WithControls sets the hardware controls to apply during Setup()
func WithControls(c capture.Controls) Option {
	return func(s *Session) {
		s.controls = c
	}
}
