package ring

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type testMapper struct {
	granted   int
	failMapAt int
	bufSize   int

	mapped   map[int]bool
	unmapped int
}

func newTestMapper(granted int) *testMapper {
	return &testMapper{
		granted:   granted,
		failMapAt: -1,
		bufSize:   16,
		mapped:    make(map[int]bool),
	}
}

func (m *testMapper) RequestBuffers(n int) (int, error) {
	if m.granted < 0 {
		return 0, errors.New("VIDIOC_REQBUFS failed")
	}
	return min(n, m.granted), nil
}

func (m *testMapper) MapBuffer(index int) ([]byte, error) {
	if index == m.failMapAt {
		return nil, errors.New("mmap failed")
	}
	m.mapped[index] = true
	return make([]byte, m.bufSize), nil
}

func (m *testMapper) UnmapBuffer(data []byte) error {
	m.unmapped++
	return nil
}

func TestSetup(t *testing.T) {

	t.Run("GrantAll", func(t *testing.T) {
		r := New(newTestMapper(MaxBuffers))
		n, err := r.Setup(4)
		require.Nil(t, err)
		require.Equal(t, 4, n)
		require.Equal(t, 4, r.Len())
	})

	t.Run("GrantFewer", func(t *testing.T) {
		r := New(newTestMapper(3))
		n, err := r.Setup(MaxBuffers)
		require.Nil(t, err)
		require.Equal(t, 3, n)
	})

	t.Run("CapAtMax", func(t *testing.T) {
		r := New(newTestMapper(100))
		n, err := r.Setup(100)
		require.Nil(t, err)
		require.Equal(t, MaxBuffers, n)
	})

	t.Run("GrantNone", func(t *testing.T) {
		r := New(newTestMapper(0))
		_, err := r.Setup(4)
		require.EqualError(t, err, "device granted no buffers (requested 4)")
	})

	t.Run("RequestFailure", func(t *testing.T) {
		r := New(newTestMapper(-1))
		_, err := r.Setup(4)
		require.EqualError(t, err, "failed to request 4 buffers: VIDIOC_REQBUFS failed")
	})

	t.Run("InvalidRequest", func(t *testing.T) {
		r := New(newTestMapper(4))
		_, err := r.Setup(0)
		require.Error(t, err)
	})

	t.Run("SetupTwice", func(t *testing.T) {
		r := New(newTestMapper(4))
		_, err := r.Setup(4)
		require.Nil(t, err)
		_, err = r.Setup(4)
		require.EqualError(t, err, "ring already set up")
	})
}

func TestMapAll(t *testing.T) {

	t.Run("NotSetUp", func(t *testing.T) {
		r := New(newTestMapper(4))
		require.ErrorIs(t, r.MapAll(), ErrNotSetup)
	})

	t.Run("Success", func(t *testing.T) {
		m := newTestMapper(4)
		r := New(m)
		_, err := r.Setup(4)
		require.Nil(t, err)
		require.Nil(t, r.MapAll())

		for i := 0; i < r.Len(); i++ {
			b, err := r.At(i)
			require.Nil(t, err)
			require.Equal(t, i, b.Index())
			require.Equal(t, m.bufSize, b.Len())
			require.Equal(t, OwnerNone, b.Owner())
		}

		require.Nil(t, r.UnmapAll())
		require.Equal(t, 4, m.unmapped)

		// Idempotent
		require.Nil(t, r.UnmapAll())
		require.Equal(t, 4, m.unmapped)
	})

	t.Run("PartialFailure", func(t *testing.T) {
		m := newTestMapper(6)
		m.failMapAt = 3
		r := New(m)
		_, err := r.Setup(6)
		require.Nil(t, err)

		require.EqualError(t, r.MapAll(), "failed to map buffer 3: mmap failed")
		require.Equal(t, 3, m.unmapped)
		for i := 0; i < r.Len(); i++ {
			b, err := r.At(i)
			require.Nil(t, err)
			require.Nil(t, b.Data())
		}
	})

	t.Run("ZeroRing", func(t *testing.T) {
		var r *Ring
		require.Nil(t, r.UnmapAll())
		require.Nil(t, New(nil).UnmapAll())
	})
}

func TestTransfer(t *testing.T) {

	r := New(newTestMapper(2))
	_, err := r.Setup(2)
	require.Nil(t, err)

	require.Nil(t, r.Transfer(0, OwnerNone, OwnerDevice))
	require.ErrorIs(t, r.Transfer(0, OwnerNone, OwnerDevice), ErrOwnership)
	require.Nil(t, r.Transfer(0, OwnerDevice, OwnerLoop))
	require.Nil(t, r.Transfer(0, OwnerLoop, OwnerWorker))
	require.ErrorIs(t, r.Transfer(0, OwnerLoop, OwnerDevice), ErrOwnership)
	require.Nil(t, r.Transfer(0, OwnerWorker, OwnerDevice))
	require.Equal(t, []Owner{OwnerDevice, OwnerNone}, r.Owners())

	require.ErrorIs(t, r.Transfer(2, OwnerNone, OwnerDevice), ErrInvalidIndex)
	require.ErrorIs(t, r.Transfer(-1, OwnerNone, OwnerDevice), ErrInvalidIndex)

	r.Reset()
	require.Equal(t, []Owner{OwnerNone, OwnerNone}, r.Owners())
}

func TestTransferExclusive(t *testing.T) {

	r := New(newTestMapper(1))
	_, err := r.Setup(1)
	require.Nil(t, err)
	require.Nil(t, r.Transfer(0, OwnerNone, OwnerLoop))

	// Only one of many concurrent claims on the same buffer may succeed
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Transfer(0, OwnerLoop, OwnerWorker) == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, OwnerWorker, r.Owners()[0])
}

func TestCounters(t *testing.T) {

	r := New(newTestMapper(2))
	_, err := r.Setup(2)
	require.Nil(t, err)

	b, err := r.At(1)
	require.Nil(t, err)
	require.Equal(t, uint64(1), b.MarkDequeued())
	require.Equal(t, uint64(2), b.MarkDequeued())
	require.Equal(t, uint64(1), b.MarkPersisted())
	require.Equal(t, []uint64{0, 2}, r.DequeueCounts())
	require.Equal(t, uint64(1), b.Persisted())
}
