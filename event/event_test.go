//go:build linux
// +build linux

package event

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSignalRoundtrip(t *testing.T) {

	efd, err := New()
	require.Nil(t, err)
	defer func() {
		require.Nil(t, efd.Close())
	}()

	for _, sig := range []EvtData{SignalUnblock, SignalStop} {
		require.Nil(t, efd.Signal(sig))
		data, err := efd.ReadEvent()
		require.Nil(t, err)
		require.Equal(t, sig, data)
	}

	// Nothing left to read
	_, err = efd.ReadEvent()
	require.ErrorIs(t, err, unix.EAGAIN)
}

func TestSemaphore(t *testing.T) {

	sem, err := NewSemaphore()
	require.Nil(t, err)
	defer func() {
		require.Nil(t, sem.Close())
	}()

	require.True(t, errors.Is(sem.Acquire(), unix.EAGAIN))
	for i := 0; i < 3; i++ {
		require.Nil(t, sem.Post())
	}
	for i := 0; i < 3; i++ {
		require.Nil(t, sem.Acquire())
	}
	require.ErrorIs(t, sem.Acquire(), unix.EAGAIN)
}

func TestPoll(t *testing.T) {

	efd, err := New()
	require.Nil(t, err)
	sem, err := NewSemaphore()
	require.Nil(t, err)
	defer func() {
		require.Nil(t, efd.Close())
		require.Nil(t, sem.Close())
	}()

	t.Run("Timeout", func(t *testing.T) {
		start := time.Now()
		res, errno := Poll(efd, int(sem), unix.POLLIN|unix.POLLERR, 50*time.Millisecond)
		require.Equal(t, unix.Errno(0), errno)
		require.True(t, res.TimedOut())
		require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	})

	t.Run("FdReady", func(t *testing.T) {
		require.Nil(t, sem.Post())
		res, errno := Poll(efd, int(sem), unix.POLLIN|unix.POLLERR, time.Second)
		require.Equal(t, unix.Errno(0), errno)
		require.True(t, res.FdReady)
		require.False(t, res.EfdHasEvent)
		require.Nil(t, sem.Acquire())
	})

	t.Run("Unblock", func(t *testing.T) {
		errChan := make(chan error)
		go func() {
			res, errno := Poll(efd, int(sem), unix.POLLIN|unix.POLLERR, 0)
			if errno != 0 {
				errChan <- errno
				return
			}
			if !res.EfdHasEvent {
				errChan <- errors.New("expected event on event file descriptor")
				return
			}
			errChan <- nil
		}()

		time.Sleep(50 * time.Millisecond)
		require.Nil(t, efd.Signal(SignalUnblock))
		require.Nil(t, <-errChan)

		data, err := efd.ReadEvent()
		require.Nil(t, err)
		require.Equal(t, SignalUnblock, data)
	})
}
