package persist

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fako1024/slimcam/capture"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	for _, c := range []struct {
		frame    Frame
		expected string
	}{
		{Frame{capture.PixelFormatSGRBG10, 0, 1}, "bayer_0_1.img"},
		{Frame{capture.PixelFormatYUYV, 3, 100}, "yuyv_3_100.img"},
		{Frame{capture.PixelFormatUYVY, 7, 12345}, "uyvy_7_12345.img"},
	} {
		require.Equal(t, c.expected, c.frame.FileName())
	}
}

func TestFilePersister(t *testing.T) {

	fs := afero.NewMemMapFs()
	require.Nil(t, fs.MkdirAll("/frames", 0755))

	p, err := NewFilePersister("/frames", WithFs(fs))
	require.Nil(t, err)

	data := bytes.Repeat([]byte{0xAB, 0xCD}, 4096)
	frame := Frame{PixelFormat: capture.PixelFormatUYVY, BufferIndex: 2, Sequence: 100}
	require.Nil(t, p.Persist(data, frame))

	written, err := afero.ReadFile(fs, "/frames/uyvy_2_100.img")
	require.Nil(t, err)
	require.Equal(t, data, written)

	// Persisting again truncates the existing file
	require.Nil(t, p.Persist(data[:16], frame))
	written, err = afero.ReadFile(fs, "/frames/uyvy_2_100.img")
	require.Nil(t, err)
	require.Equal(t, data[:16], written)

	info, err := fs.Stat("/frames/uyvy_2_100.img")
	require.Nil(t, err)
	require.EqualValues(t, fileMode, info.Mode().Perm())
}

func TestFilePersisterErrors(t *testing.T) {

	t.Run("MissingDirectory", func(t *testing.T) {
		_, err := NewFilePersister("/nonexistent", WithFs(afero.NewMemMapFs()))
		require.Error(t, err)
	})

	t.Run("NotADirectory", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.Nil(t, afero.WriteFile(fs, "/file", []byte{1}, 0644))
		_, err := NewFilePersister("/file", WithFs(fs))
		require.EqualError(t, err, "output path /file is not a directory")
	})

	t.Run("ReadOnlyFilesystem", func(t *testing.T) {
		base := afero.NewMemMapFs()
		require.Nil(t, base.MkdirAll("/frames", 0755))

		p, err := NewFilePersister("/frames", WithFs(afero.NewReadOnlyFs(base)))
		require.Nil(t, err)
		require.Error(t, p.Persist([]byte{1, 2, 3}, Frame{PixelFormat: capture.PixelFormatYUYV}))
	})
}

func TestFunc(t *testing.T) {
	var seen Frame
	p := Func(func(data []byte, frame Frame) error {
		seen = frame
		return errors.New("failed")
	})

	require.EqualError(t, p.Persist(nil, Frame{BufferIndex: 5}), "failed")
	require.Equal(t, 5, seen.BufferIndex)
}
