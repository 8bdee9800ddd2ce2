//go:build linux
// +build linux

/*
Package v4l2 implements a capture.Device on top of the Video4Linux2 memory mapping streaming API
(without cgo). The device is opened in non-blocking mode, hence dequeueing never blocks and has to
be paired with WaitReadable(), which polls the device together with an event file descriptor that
allows releasing a waiting caller at any time (e.g. upon shutdown).

In addition, a MockDevice is provided, mimicking the behavior of an actual device (including its
readiness semantics via an event file descriptor semaphore) for testing purposes. It can be
excluded from a build via the slimcam_nomock build tag.
*/
package v4l2

import (
	"errors"
	"fmt"
	"os"
	"time"
	"unsafe"

	"github.com/fako1024/slimcam/capture"
	"github.com/fako1024/slimcam/event"
	"golang.org/x/sys/unix"
)

// DefaultDevicePath denotes the default video device
const DefaultDevicePath = "/dev/video0"

// Device denotes a V4L2 video capture device
type Device struct {
	path string

	fd  int
	efd event.EvtFileDescriptor

	nBuffers  int
	streaming bool
}

// Open opens the V4L2 device at the given path (in non-blocking mode)
func Open(path string) (*Device, error) {

	if path == "" {
		return nil, errors.New("no device path provided")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, newDeviceError(path, "opening", err)
	}
	if info.Mode()&os.ModeCharDevice == 0 {
		return nil, newDeviceError(path, "opening", errors.New("not a character device"))
	}

	// Open non-blocking so VIDIOC_DQBUF returns immediately if no buffer is ready
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, newDeviceError(path, "opening", err)
	}

	efd, err := event.New()
	if err != nil {
		_ = unix.Close(fd)
		return nil, newDeviceError(path, "opening", err)
	}

	return &Device{
		path: path,
		fd:   fd,
		efd:  efd,
	}, nil
}

// Path returns the path of the device
func (d *Device) Path() string {
	return d.path
}

// ConfigureFormat sets the capture format via VIDIOC_S_FMT. If the driver adjusts any of
// the requested parameters, capture.ErrFormatMismatch is returned
func (d *Device) ConfigureFormat(f capture.Format) error {
	var req format
	req.typ = bufTypeVideoCapture
	pix := req.pix()
	pix.width = f.Width
	pix.height = f.Height
	pix.pixelFormat = uint32(f.PixelFormat)
	pix.field = fieldNone

	if err := ioctl(d.fd, vidiocSFmt, unsafe.Pointer(&req)); err != nil { // #nosec: G103
		return newDeviceError(d.path, "VIDIOC_S_FMT", err)
	}

	if pix.width != f.Width || pix.height != f.Height || pix.pixelFormat != uint32(f.PixelFormat) {
		return newDeviceError(d.path, "VIDIOC_S_FMT", fmt.Errorf("%w: requested %s, got %dx%d %s",
			capture.ErrFormatMismatch, f, pix.width, pix.height, capture.PixelFormat(pix.pixelFormat)))
	}

	return nil
}

// RequestBuffers requests n memory mapped buffers via VIDIOC_REQBUFS and returns the number of
// buffers actually allocated by the driver
func (d *Device) RequestBuffers(n int) (int, error) {
	req := requestBuffers{
		count:  uint32(n),
		typ:    bufTypeVideoCapture,
		memory: memoryMMAP,
	}
	if err := ioctl(d.fd, vidiocReqBufs, unsafe.Pointer(&req)); err != nil { // #nosec: G103
		return 0, newDeviceError(d.path, "VIDIOC_REQBUFS", err)
	}

	d.nBuffers = int(req.count)
	return d.nBuffers, nil
}

// MapBuffer queries the buffer with the given index (VIDIOC_QUERYBUF) and maps it into memory
func (d *Device) MapBuffer(index int) ([]byte, error) {
	if index < 0 || index >= d.nBuffers {
		return nil, newDeviceError(d.path, "mapping", fmt.Errorf("invalid buffer index %d", index))
	}

	buf := newBuffer(index)
	if err := ioctl(d.fd, vidiocQueryBuf, unsafe.Pointer(&buf)); err != nil { // #nosec: G103
		return nil, newDeviceError(d.path, "VIDIOC_QUERYBUF", err)
	}

	data, err := unix.Mmap(d.fd, int64(buf.offset()), int(buf.length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, newDeviceError(d.path, "mmap", err)
	}

	return data, nil
}

// UnmapBuffer releases a mapping obtained via MapBuffer()
func (d *Device) UnmapBuffer(data []byte) error {
	if err := unix.Munmap(data); err != nil {
		return newDeviceError(d.path, "munmap", err)
	}
	return nil
}

// Queue hands the buffer with the given index to the driver (VIDIOC_QBUF)
func (d *Device) Queue(index int) error {
	if index < 0 || index >= d.nBuffers {
		return newDeviceError(d.path, "VIDIOC_QBUF", fmt.Errorf("invalid buffer index %d", index))
	}

	buf := newBuffer(index)
	if err := ioctl(d.fd, vidiocQBuf, unsafe.Pointer(&buf)); err != nil { // #nosec: G103
		return newDeviceError(d.path, "VIDIOC_QBUF", err)
	}

	return nil
}

// Dequeue retrieves the next filled buffer from the driver (VIDIOC_DQBUF). Since the device is
// opened in non-blocking mode, capture.ErrNotReady is returned if no buffer is available
func (d *Device) Dequeue() (int, error) {
	buf := newBuffer(0)
	if err := ioctl(d.fd, vidiocDQBuf, unsafe.Pointer(&buf)); err != nil { // #nosec: G103
		if errors.Is(err, unix.EAGAIN) {
			return -1, capture.ErrNotReady
		}
		return -1, newDeviceError(d.path, "VIDIOC_DQBUF", err)
	}

	if int(buf.index) >= d.nBuffers {
		return -1, newDeviceError(d.path, "VIDIOC_DQBUF", fmt.Errorf("invalid buffer index returned: %d", buf.index))
	}

	return int(buf.index), nil
}

// StartStreaming starts the capture stream (VIDIOC_STREAMON)
func (d *Device) StartStreaming() error {
	if d.streaming {
		return newDeviceError(d.path, "VIDIOC_STREAMON", errors.New("already streaming"))
	}

	typ := int32(bufTypeVideoCapture)
	if err := ioctl(d.fd, vidiocStreamOn, unsafe.Pointer(&typ)); err != nil { // #nosec: G103
		return newDeviceError(d.path, "VIDIOC_STREAMON", err)
	}
	d.streaming = true

	return nil
}

// StopStreaming stops the capture stream (VIDIOC_STREAMOFF), returning all buffers (including
// the ones queued before the stream was started) to the application
func (d *Device) StopStreaming() error {
	if !d.streaming && d.nBuffers == 0 {
		return nil
	}

	typ := int32(bufTypeVideoCapture)
	if err := ioctl(d.fd, vidiocStreamOff, unsafe.Pointer(&typ)); err != nil { // #nosec: G103
		return newDeviceError(d.path, "VIDIOC_STREAMOFF", err)
	}
	d.streaming = false

	return nil
}

// WaitReadable waits for the device to become readable (or the timeout to expire)
func (d *Device) WaitReadable(timeout time.Duration) (capture.WaitResult, error) {
	if d.fd < 0 {
		return capture.Interrupted, capture.ErrCaptureStopped
	}
	return waitReadable(d.efd, d.fd, timeout)
}

// Unblock releases an ongoing WaitReadable() call
func (d *Device) Unblock() error {
	if d == nil || d.efd < 0 || d.fd < 0 {
		return errors.New("cannot call Unblock() on nil / closed device")
	}

	return d.efd.Signal(event.SignalUnblock)
}

// Close closes the device (stopping the stream if still running). Any buffer mappings
// have to be released before
func (d *Device) Close() error {
	if d == nil || d.efd < 0 || d.fd < 0 {
		return errors.New("cannot call Close() on nil / closed device")
	}

	errs := []error{d.StopStreaming()}
	if err := unix.Close(d.fd); err != nil {
		errs = append(errs, newDeviceError(d.path, "closing", err))
	}
	if err := d.efd.Close(); err != nil {
		errs = append(errs, newDeviceError(d.path, "closing event file descriptor", err))
	}
	d.fd, d.efd = -1, -1

	return errors.Join(errs...)
}

func waitReadable(efd event.EvtFileDescriptor, fd int, timeout time.Duration) (capture.WaitResult, error) {
	res, errno := event.Poll(efd, fd, unix.POLLIN|unix.POLLERR, timeout)
	if errno != 0 {
		if errno == unix.EINTR {
			return capture.Interrupted, nil
		}
		return capture.Interrupted, fmt.Errorf("error polling for next frame: %w", errno)
	}

	// If an event was received, consume it and report it accordingly
	if res.EfdHasEvent {
		efdData, err := efd.ReadEvent()
		if err != nil {
			return capture.Interrupted, fmt.Errorf("error reading event: %w", err)
		}
		switch efdData {
		case event.SignalUnblock:
			return capture.Interrupted, nil
		case event.SignalStop:
			return capture.Interrupted, capture.ErrCaptureStopped
		default:
			return capture.Interrupted, fmt.Errorf("unknown event during poll for next frame: %v", efdData)
		}
	}

	if res.FdError {
		return capture.Interrupted, errors.New("error condition on device during poll for next frame")
	}
	if res.TimedOut() {
		return capture.TimedOut, nil
	}

	return capture.Readable, nil
}
