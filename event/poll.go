//go:build linux
// +build linux

package event

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	eventPollIn    = unix.POLLIN
	eventConnReset = unix.POLLHUP | unix.POLLERR | unix.POLLNVAL
)

// PollResult denotes the outcome of a single Poll() call
type PollResult struct {

	// EfdHasEvent is set if the event file descriptor was signaled
	EfdHasEvent bool

	// FdReady is set if the polled file descriptor has data available
	FdReady bool

	// FdError is set if the polled file descriptor reported an error / hangup condition
	FdError bool
}

// TimedOut returns if the poll returned without any event
func (p PollResult) TimedOut() bool {
	return !p.EfdHasEvent && !p.FdReady && !p.FdError
}

// Poll polls for events on the file descriptor and the event file descriptor (waiting for a
// POLLIN event on either of them). A non-positive timeout blocks indefinitely.
func Poll(efd EvtFileDescriptor, fd int, events int16, timeout time.Duration) (res PollResult, errno unix.Errno) {
	pollEvents := [...]unix.PollFd{
		{
			Fd:     int32(efd),
			Events: unix.POLLIN,
		},
		{
			Fd:     int32(fd),
			Events: events,
		},
	}

	var ts *unix.Timespec
	if timeout > 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}

	if _, errno = pollBlock(&pollEvents[0], len(pollEvents), ts); errno != 0 {
		return
	}

	res.EfdHasEvent = pollEvents[0].Revents&eventPollIn != 0
	res.FdReady = pollEvents[1].Revents&eventPollIn != 0
	res.FdError = pollEvents[1].Revents&eventConnReset != 0

	return
}

func pollBlock(fds *unix.PollFd, nfds int, timeout *unix.Timespec) (int, unix.Errno) {

	// #nosec: G103
	n, _, e := unix.Syscall6(unix.SYS_PPOLL, uintptr(unsafe.Pointer(fds)),
		uintptr(nfds), uintptr(unsafe.Pointer(timeout)), 0, 0, 0)

	return int(n), e
}
