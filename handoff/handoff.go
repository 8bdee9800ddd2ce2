/*
Package handoff provides a single-slot mailbox transferring buffer indices from a producer that
must never block (the acquisition loop) to a single blocking consumer (the save worker).

The slot holds at most one pending index. Posting is non-blocking in every respect: if the slot's
lock cannot be acquired immediately or an index is still pending, the post is refused and the
caller keeps ownership of the buffer. Consumers wait on a condition variable and re-check the
predicate after every wake-up, so spurious wake-ups are harmless.
*/
package handoff

import "sync"

const noIndex = -1

// PostResult denotes the outcome of a TryPost() call
type PostResult int

const (

	// Accepted denotes that the index was placed in the slot
	Accepted PostResult = iota

	// Busy denotes that the slot was occupied (or contended) and the index was not placed
	Busy

	// Closed denotes that the slot was shut down and no longer accepts indices
	Closed
)

// String returns a human-readable representation of the post result
func (p PostResult) String() string {
	switch p {
	case Accepted:
		return "accepted"
	case Busy:
		return "busy"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Slot denotes a single-item handoff mailbox
type Slot struct {
	mu   sync.Mutex
	cond *sync.Cond

	pending  int
	shutdown bool
}

// New instantiates a new, empty handoff slot
func New() *Slot {
	s := &Slot{
		pending: noIndex,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// TryPost attempts to place the given buffer index in the slot without blocking
func (s *Slot) TryPost(index int) PostResult {
	if index < 0 {
		panic("handoff: negative buffer index")
	}

	if !s.mu.TryLock() {
		return Busy
	}
	defer s.mu.Unlock()

	if s.shutdown {
		return Closed
	}
	if s.pending != noIndex {
		return Busy
	}

	s.pending = index
	s.cond.Signal()

	return Accepted
}

// WaitAndTake blocks until an index is available or the slot is shut down. A pending index is
// always handed out (even after shutdown was requested) so that no accepted buffer is stranded.
// Once the slot is empty and shut down, ok is false
func (s *Slot) WaitAndTake() (index int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.pending == noIndex && !s.shutdown {
		s.cond.Wait()
	}

	if s.pending == noIndex {
		return noIndex, false
	}

	index, s.pending = s.pending, noIndex
	return index, true
}

// Shutdown marks the slot as shut down and wakes up any waiting consumer
func (s *Slot) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

// IsShutdown returns if Shutdown() was called on the slot
func (s *Slot) IsShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.shutdown
}

// Pending returns the currently pending index (or -1 if the slot is empty)
func (s *Slot) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending
}
