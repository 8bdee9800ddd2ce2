//go:build linux && !slimcam_nomock
// +build linux,!slimcam_nomock

package v4l2

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fako1024/slimcam/capture"
	"github.com/fako1024/slimcam/capture/ring"
	"github.com/fako1024/slimcam/event"
)

const (
	mockDefaultBufferSize = 4096
	queuePollInterval     = 100 * time.Microsecond
)

var (

	// ErrMockNoBufferQueued signifies that a frame could not be captured by the mock device because
	// no buffer was queued (an actual device would drop the frame)
	ErrMockNoBufferQueued = errors.New("no buffer queued, frame dropped")

	// ErrMockNotStreaming signifies that a frame was added while the mock device was not streaming
	ErrMockNotStreaming = errors.New("mock device not streaming")
)

// MockDevice denotes a fully mocked video capture device, behaving just like an actual one (in
// particular with respect to buffer ownership: a buffer can only be filled once queued and cannot
// be queued twice). Readiness is signaled via an event file descriptor semaphore, hence the same
// polling logic as for an actual device is used.
// Since it implements capture.Device, it can be used as a stand-in replacement:
//
// dev, err := v4l2.Open("/dev/video0")
// ==>
// dev, err := v4l2.NewMockDevice(<options>...)
type MockDevice struct {
	sem event.EvtFileDescriptor
	efd event.EvtFileDescriptor

	bufSize    int
	maxBuffers int
	failMapAt  int
	negotiated *capture.Format

	format   capture.Format
	controls []capture.Controls

	buffers   [][]byte
	isQueued  []bool
	queued    []int
	done      []int
	streaming bool
	closed    bool

	nFrames     uint64
	nDropped    uint64
	nUnmapped   int
	dequeueErr  error
	queueLog    []int
	dequeueLog  []int
	queueErrors []error

	sync.Mutex
}

// MockOption denotes a functional option for the MockDevice
type MockOption func(*MockDevice)

// MockBufferSize sets the size of each mock buffer
func MockBufferSize(size int) MockOption {
	return func(m *MockDevice) {
		m.bufSize = size
	}
}

// MockMaxBuffers sets the maximum number of buffers the mock device grants
func MockMaxBuffers(n int) MockOption {
	return func(m *MockDevice) {
		m.maxBuffers = n
	}
}

// MockFailMapAt causes mapping the buffer with the given index to fail
func MockFailMapAt(index int) MockOption {
	return func(m *MockDevice) {
		m.failMapAt = index
	}
}

// MockNegotiatedFormat causes the mock device to negotiate the given format regardless of the
// requested one
func MockNegotiatedFormat(f capture.Format) MockOption {
	return func(m *MockDevice) {
		m.negotiated = &f
	}
}

// NewMockDevice instantiates a new mock video capture device
func NewMockDevice(options ...MockOption) (*MockDevice, error) {
	sem, err := event.NewSemaphore()
	if err != nil {
		return nil, err
	}
	efd, err := event.New()
	if err != nil {
		_ = sem.Close()
		return nil, err
	}

	m := &MockDevice{
		sem:        sem,
		efd:        efd,
		bufSize:    mockDefaultBufferSize,
		maxBuffers: ring.MaxBuffers,
		failMapAt:  -1,
	}
	for _, opt := range options {
		opt(m)
	}

	return m, nil
}

// ConfigureFormat sets the capture format
func (m *MockDevice) ConfigureFormat(f capture.Format) error {
	m.Lock()
	defer m.Unlock()

	if m.negotiated != nil && *m.negotiated != f {
		return fmt.Errorf("%w: requested %s, got %s", capture.ErrFormatMismatch, f, *m.negotiated)
	}
	m.format = f

	return nil
}

// Format returns the currently configured format
func (m *MockDevice) Format() capture.Format {
	m.Lock()
	defer m.Unlock()

	return m.format
}

// ApplyControls records the (normalized) controls
func (m *MockDevice) ApplyControls(c capture.Controls) error {
	m.Lock()
	defer m.Unlock()

	m.controls = append(m.controls, c.Normalize())
	return nil
}

// Controls returns all controls applied so far
func (m *MockDevice) Controls() []capture.Controls {
	m.Lock()
	defer m.Unlock()

	return append([]capture.Controls(nil), m.controls...)
}

// RequestBuffers allocates up to n mock buffers
func (m *MockDevice) RequestBuffers(n int) (int, error) {
	m.Lock()
	defer m.Unlock()

	if m.streaming {
		return 0, errors.New("cannot request buffers while streaming")
	}

	n = min(n, m.maxBuffers)
	m.buffers = make([][]byte, n)
	m.isQueued = make([]bool, n)
	for i := range m.buffers {
		m.buffers[i] = make([]byte, m.bufSize)
	}

	return n, nil
}

// MapBuffer returns the mock buffer with the given index
func (m *MockDevice) MapBuffer(index int) ([]byte, error) {
	m.Lock()
	defer m.Unlock()

	if index < 0 || index >= len(m.buffers) {
		return nil, fmt.Errorf("invalid buffer index %d", index)
	}
	if index == m.failMapAt {
		return nil, fmt.Errorf("failed to map buffer %d", index)
	}

	return m.buffers[index], nil
}

// UnmapBuffer counts the release of a mock buffer
func (m *MockDevice) UnmapBuffer(_ []byte) error {
	m.Lock()
	defer m.Unlock()

	m.nUnmapped++
	return nil
}

// Queue hands the buffer with the given index to the mock device
func (m *MockDevice) Queue(index int) error {
	m.Lock()
	defer m.Unlock()

	if index < 0 || index >= len(m.buffers) {
		return m.queueError(fmt.Errorf("invalid buffer index %d", index))
	}
	if m.isQueued[index] {
		return m.queueError(fmt.Errorf("buffer %d already queued", index))
	}

	m.isQueued[index] = true
	m.queued = append(m.queued, index)
	m.queueLog = append(m.queueLog, index)

	return nil
}

// Dequeue retrieves the next filled buffer from the mock device
func (m *MockDevice) Dequeue() (int, error) {
	m.Lock()
	defer m.Unlock()

	if m.closed {
		return -1, capture.ErrCaptureStopped
	}
	if m.dequeueErr != nil {
		err := m.dequeueErr
		m.dequeueErr = nil
		return -1, err
	}
	if len(m.done) == 0 {
		return -1, capture.ErrNotReady
	}
	if err := m.sem.Acquire(); err != nil {
		return -1, capture.ErrNotReady
	}

	index := m.done[0]
	m.done = m.done[1:]
	m.isQueued[index] = false
	m.dequeueLog = append(m.dequeueLog, index)

	return index, nil
}

// StartStreaming starts the mock stream
func (m *MockDevice) StartStreaming() error {
	m.Lock()
	defer m.Unlock()

	if m.streaming {
		return errors.New("already streaming")
	}
	m.streaming = true

	return nil
}

// StopStreaming stops the mock stream (if running), reclaiming all queued / filled buffers
func (m *MockDevice) StopStreaming() error {
	m.Lock()
	defer m.Unlock()

	for len(m.done) > 0 {
		if err := m.sem.Acquire(); err != nil {
			return err
		}
		m.done = m.done[1:]
	}
	for i := range m.isQueued {
		m.isQueued[i] = false
	}
	m.queued = m.queued[:0]
	m.streaming = false

	return nil
}

// WaitReadable waits for the mock device to become readable (or the timeout to expire)
func (m *MockDevice) WaitReadable(timeout time.Duration) (capture.WaitResult, error) {
	if m.isClosed() {
		return capture.Interrupted, capture.ErrCaptureStopped
	}
	return waitReadable(m.efd, int(m.sem), timeout)
}

// Unblock releases an ongoing WaitReadable() call
func (m *MockDevice) Unblock() error {
	if m.isClosed() {
		return errors.New("cannot call Unblock() on closed device")
	}
	return m.efd.Signal(event.SignalUnblock)
}

// Close closes the mock device
func (m *MockDevice) Close() error {
	m.Lock()
	defer m.Unlock()

	if m.closed {
		return errors.New("cannot call Close() on closed device")
	}
	m.closed = true
	m.streaming = false

	return errors.Join(m.sem.Close(), m.efd.Close())
}

// AddFrame fills the oldest queued buffer with a new frame (its data starting with the frame
// number, little endian) and marks it as ready to be dequeued
func (m *MockDevice) AddFrame() error {
	m.Lock()
	defer m.Unlock()

	if !m.streaming {
		return ErrMockNotStreaming
	}
	if len(m.queued) == 0 {
		m.nDropped++
		return ErrMockNoBufferQueued
	}

	index := m.queued[0]
	m.queued = m.queued[1:]

	m.nFrames++
	if buf := m.buffers[index]; len(buf) >= 8 {
		binary.LittleEndian.PutUint64(buf, m.nFrames)
	}
	m.done = append(m.done, index)

	return m.sem.Post()
}

// CanAddFrame returns if a frame can currently be added (i.e. a buffer is queued)
func (m *MockDevice) CanAddFrame() bool {
	m.Lock()
	defer m.Unlock()

	return m.streaming && len(m.queued) > 0
}

// FailDequeue causes the next call to Dequeue() to return the provided error
func (m *MockDevice) FailDequeue(err error) {
	m.Lock()
	defer m.Unlock()

	m.dequeueErr = err
}

// Run continuously adds n frames in the background (waiting for a queued buffer before adding
// each one, mimicking a device that never drops a frame), with the given interval in between
func (m *MockDevice) Run(n int, interval time.Duration) <-chan error {
	errChan := make(chan error, 1)
	go func(errs chan error) {
		defer close(errs)

		for i := 0; i < n; i++ {
			for !m.CanAddFrame() {
				if m.isClosed() {
					errs <- capture.ErrCaptureStopped
					return
				}
				time.Sleep(queuePollInterval)
			}
			if err := m.AddFrame(); err != nil {
				errs <- err
				return
			}
			if interval > 0 {
				time.Sleep(interval)
			}
		}

		errs <- nil
	}(errChan)

	return errChan
}

// Stats returns the number of frames captured / dropped and buffers unmapped by the mock device
func (m *MockDevice) Stats() (nFrames, nDropped uint64, nUnmapped int) {
	m.Lock()
	defer m.Unlock()

	return m.nFrames, m.nDropped, m.nUnmapped
}

// QueueLog returns the indices of all buffers queued so far (in order)
func (m *MockDevice) QueueLog() []int {
	m.Lock()
	defer m.Unlock()

	return append([]int(nil), m.queueLog...)
}

// DequeueLog returns the indices of all buffers dequeued so far (in order)
func (m *MockDevice) DequeueLog() []int {
	m.Lock()
	defer m.Unlock()

	return append([]int(nil), m.dequeueLog...)
}

// QueueErrors returns all errors encountered by Queue() calls
func (m *MockDevice) QueueErrors() []error {
	m.Lock()
	defer m.Unlock()

	return append([]error(nil), m.queueErrors...)
}

// IsQueued returns if the buffer with the given index is currently queued with the device (either
// waiting to be filled or filled and waiting to be dequeued)
func (m *MockDevice) IsQueued(index int) bool {
	m.Lock()
	defer m.Unlock()

	return index >= 0 && index < len(m.isQueued) && m.isQueued[index]
}

// FrameNumber returns the frame number stored in the given buffer data by AddFrame()
func FrameNumber(data []byte) uint64 {
	if len(data) < 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(data)
}

func (m *MockDevice) queueError(err error) error {
	m.queueErrors = append(m.queueErrors, err)
	return err
}

func (m *MockDevice) isClosed() bool {
	m.Lock()
	defer m.Unlock()

	return m.closed
}
