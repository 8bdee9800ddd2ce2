/*
Package ring implements the fixed-size ring of (hardware backed) capture buffers shared between a
video device and its consumers. Each buffer is exclusively owned by exactly one party at any given
time: the device (queued, hardware may write into it), the acquisition loop (dequeued) or the save
worker (diverted for persistence). Ownership changes are compare-and-swap transitions from the
expected owner, so any attempt to hand over a buffer not currently held by the caller is detected
instead of silently leading to dual ownership.
*/
package ring

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// MaxBuffers denotes the maximum number of buffers a ring can hold
const MaxBuffers = 8

var (

	// ErrOwnership denotes an attempt to transfer a buffer not held by the expected owner
	ErrOwnership = errors.New("buffer not held by expected owner")

	// ErrNotSetup denotes an operation on a ring that has not been set up (yet)
	ErrNotSetup = errors.New("ring not set up")

	// ErrInvalidIndex denotes a buffer index outside of the ring
	ErrInvalidIndex = errors.New("invalid buffer index")
)

// Mapper denotes the device side of a ring: buffer negotiation and memory mapping
type Mapper interface {

	// RequestBuffers requests the given number of buffers and returns the number actually granted
	RequestBuffers(n int) (int, error)

	// MapBuffer maps the buffer with the given index into memory
	MapBuffer(index int) ([]byte, error)

	// UnmapBuffer releases a buffer mapping obtained via MapBuffer()
	UnmapBuffer(data []byte) error
}

// Ring denotes a fixed-capacity ring of buffers
type Ring struct {
	mapper  Mapper
	buffers [MaxBuffers]Buffer
	n       int
}

// New instantiates a new (empty) ring backed by the provided mapper
func New(mapper Mapper) *Ring {
	r := &Ring{
		mapper: mapper,
	}
	for i := range r.buffers {
		r.buffers[i].index = i
	}
	return r
}

// Setup requests the given number of buffers (capped at MaxBuffers) and accepts whatever the
// device grants (as long as it is at least one and not more than requested)
func (r *Ring) Setup(requested int) (int, error) {
	if r.mapper == nil {
		return 0, errors.New("no mapper provided")
	}
	if r.n > 0 {
		return 0, errors.New("ring already set up")
	}
	if requested <= 0 {
		return 0, fmt.Errorf("invalid number of buffers requested: %d", requested)
	}
	requested = min(requested, MaxBuffers)

	granted, err := r.mapper.RequestBuffers(requested)
	if err != nil {
		return 0, fmt.Errorf("failed to request %d buffers: %w", requested, err)
	}
	if granted <= 0 {
		return 0, fmt.Errorf("device granted no buffers (requested %d)", requested)
	}
	if granted > requested {
		return 0, fmt.Errorf("device granted %d buffers, exceeding the %d requested", granted, requested)
	}

	r.n = granted
	return granted, nil
}

// MapAll maps all buffers of the ring. If mapping any buffer fails, all buffers mapped so far are
// unmapped again before returning the error
func (r *Ring) MapAll() error {
	if r.n == 0 {
		return ErrNotSetup
	}

	for i := 0; i < r.n; i++ {
		if r.buffers[i].data != nil {
			continue
		}
		data, err := r.mapper.MapBuffer(i)
		if err == nil && len(data) == 0 {
			err = errors.New("empty mapping")
		}
		if err != nil {
			mapErr := fmt.Errorf("failed to map buffer %d: %w", i, err)
			if uerr := r.UnmapAll(); uerr != nil {
				return errors.Join(mapErr, uerr)
			}
			return mapErr
		}
		r.buffers[i].data = data
	}

	return nil
}

// UnmapAll releases all existing buffer mappings. It is idempotent and safe to call on a ring
// that was never set up or mapped
func (r *Ring) UnmapAll() error {
	if r == nil {
		return nil
	}

	var errs []error
	for i := range r.buffers {
		b := &r.buffers[i]
		if b.data == nil {
			continue
		}
		if err := r.mapper.UnmapBuffer(b.data); err != nil {
			errs = append(errs, fmt.Errorf("failed to unmap buffer %d: %w", i, err))
		}
		b.data = nil
	}

	return errors.Join(errs...)
}

// Len returns the number of buffers in the ring
func (r *Ring) Len() int {
	return r.n
}

// At returns the buffer with the given index
func (r *Ring) At(index int) (*Buffer, error) {
	if index < 0 || index >= r.n {
		return nil, fmt.Errorf("%w: %d (ring size %d)", ErrInvalidIndex, index, r.n)
	}
	return &r.buffers[index], nil
}

// Transfer moves ownership of the buffer with the given index from one owner to another
func (r *Ring) Transfer(index int, from, to Owner) error {
	b, err := r.At(index)
	if err != nil {
		return err
	}
	if !b.owner.CompareAndSwap(int32(from), int32(to)) {
		return fmt.Errorf("%w: cannot transfer buffer %d from %s to %s (currently held by %s)", ErrOwnership, index, from, to, b.Owner())
	}
	return nil
}

// Reset returns all buffers to OwnerNone (e.g. after the device reclaimed all of them by
// stopping the stream)
func (r *Ring) Reset() {
	for i := 0; i < r.n; i++ {
		r.buffers[i].owner.Store(int32(OwnerNone))
	}
}

// Owners returns a snapshot of the current owner of each buffer
func (r *Ring) Owners() []Owner {
	owners := make([]Owner, r.n)
	for i := 0; i < r.n; i++ {
		owners[i] = r.buffers[i].Owner()
	}
	return owners
}

// DequeueCounts returns a snapshot of the dequeue counters of all buffers
func (r *Ring) DequeueCounts() []uint64 {
	counts := make([]uint64, r.n)
	for i := 0; i < r.n; i++ {
		counts[i] = r.buffers[i].Dequeued()
	}
	return counts
}

// Buffer denotes a single memory mapped buffer of the ring
type Buffer struct {
	index int
	data  []byte

	owner     atomic.Int32
	dequeued  atomic.Uint64
	persisted atomic.Uint64
}

// Index returns the (stable) index of the buffer in the ring
func (b *Buffer) Index() int {
	return b.index
}

// Data returns the mapped memory region of the buffer. Its contents may only be accessed while
// holding ownership of the buffer
func (b *Buffer) Data() []byte {
	return b.data
}

// Len returns the length of the mapped memory region
func (b *Buffer) Len() int {
	return len(b.data)
}

// Owner returns the current owner of the buffer
func (b *Buffer) Owner() Owner {
	return Owner(b.owner.Load())
}

// Dequeued returns how often the buffer was dequeued from the device
func (b *Buffer) Dequeued() uint64 {
	return b.dequeued.Load()
}

// MarkDequeued increments the dequeue counter and returns its new value
func (b *Buffer) MarkDequeued() uint64 {
	return b.dequeued.Add(1)
}

// Persisted returns how often the buffer contents were persisted successfully
func (b *Buffer) Persisted() uint64 {
	return b.persisted.Load()
}

// MarkPersisted increments the persistence counter and returns its new value
func (b *Buffer) MarkPersisted() uint64 {
	return b.persisted.Add(1)
}
