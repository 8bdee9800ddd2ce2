//go:build linux
// +build linux

/*
Package event provides access to system-level event file descriptors that act as wake-up and
notification mechanism for the video capture path. A capture device is polled (PPOLL, with a
timeout) together with an event file descriptor, allowing a waiting acquisition loop to be
released from the outside (e.g. upon shutdown) without having to wait for the timeout to expire.
The same primitive doubles as counting semaphore for mock devices, standing in for the readiness
of an actual video device file descriptor.
*/
package event

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// EvtFileDescriptor denotes a system-level event file descriptor
type EvtFileDescriptor int

// EvtData denotes the data sent / received during an event
type EvtData [8]byte

var (

	// SignalUnblock ends any ongoing PPOLL syscall (similar to a timeout)
	SignalUnblock = EvtData{1, 0, 0, 0, 0, 0, 0, 0}

	// SignalStop causes the capture to stop
	SignalStop = EvtData{0, 0, 0, 0, 0, 0, 0, 1}
)

// New instantiates a new non-blocking event file descriptor
func New() (EvtFileDescriptor, error) {
	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return -1, fmt.Errorf("failed to create event file descriptor: %w", err)
	}

	return EvtFileDescriptor(efd), nil
}

// NewSemaphore instantiates a new non-blocking event file descriptor in semaphore mode, i.e.
// each Post() makes the descriptor readable once more and each Acquire() consumes exactly one unit
func NewSemaphore() (EvtFileDescriptor, error) {
	efd, err := unix.Eventfd(0, unix.EFD_SEMAPHORE|unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return -1, fmt.Errorf("failed to create semaphore event file descriptor: %w", err)
	}

	return EvtFileDescriptor(efd), nil
}

// Signal sends an event via the event file descriptor
func (e EvtFileDescriptor) Signal(data EvtData) error {
	n, err := unix.Write(int(e), data[:])
	if err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("failed to send event (unexpected number of bytes written, want %d, have %d)", len(data), n)
	}

	return nil
}

// ReadEvent reads the event data from the event file descriptor
func (e EvtFileDescriptor) ReadEvent() (EvtData, error) {
	var data EvtData
	n, err := unix.Read(int(e), data[:])
	if err != nil {
		return data, fmt.Errorf("failed to read event data: %w", err)
	}
	if n != len(data) {
		return data, fmt.Errorf("failed to read event data (unexpected number of bytes read, want %d, have %d)", len(data), n)
	}

	return data, nil
}

// Post increments a semaphore event file descriptor by one
func (e EvtFileDescriptor) Post() error {
	return e.Signal(SignalUnblock)
}

// Acquire decrements a semaphore event file descriptor by one. If the semaphore is
// currently zero, unix.EAGAIN is returned
func (e EvtFileDescriptor) Acquire() error {
	var data EvtData
	n, err := unix.Read(int(e), data[:])
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("failed to acquire semaphore (unexpected number of bytes read, want %d, have %d)", len(data), n)
	}

	return nil
}

// Close closes the event file descriptor
func (e EvtFileDescriptor) Close() error {
	return unix.Close(int(e))
}
