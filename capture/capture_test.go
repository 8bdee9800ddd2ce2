package capture

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPixelFormats(t *testing.T) {
	for _, c := range []struct {
		name   string
		pixFmt PixelFormat
		fourCC string
	}{
		{"uyvy", PixelFormatUYVY, "UYVY"},
		{"YUYV", PixelFormatYUYV, "YUYV"},
		{"Bayer", PixelFormatSGRBG10, "BA10"},
	} {
		t.Run(c.name, func(t *testing.T) {
			pixFmt, err := ParsePixelFormat(c.name)
			require.Nil(t, err)
			require.Equal(t, c.pixFmt, pixFmt)
			require.Equal(t, c.fourCC, pixFmt.String())
		})
	}

	_, err := ParsePixelFormat("rgb24")
	require.EqualError(t, err, "invalid pixel format: rgb24")

	// Raw values as defined in linux/videodev2.h
	require.Equal(t, PixelFormat(0x59565955), PixelFormatUYVY)
	require.Equal(t, PixelFormat(0x56595559), PixelFormatYUYV)
	require.Equal(t, PixelFormat(0x30314142), PixelFormatSGRBG10)
}

func TestNewFormat(t *testing.T) {

	t.Run("Sizes", func(t *testing.T) {
		for size, expected := range map[Size][2]uint32{
			SizeNative: {2560, 1920},
			SizeHalf:   {1280, 960},
			SizeVGA:    {640, 480},
		} {
			f, err := NewFormat(PixelFormatYUYV, size)
			require.Nil(t, err)
			require.Equal(t, expected[0], f.Width)
			require.Equal(t, expected[1], f.Height)
		}
	})

	t.Run("InvalidSize", func(t *testing.T) {
		_, err := NewFormat(PixelFormatUYVY, Size(3))
		require.EqualError(t, err, "invalid size parameter 3")
	})

	t.Run("BayerLockedToNativeSize", func(t *testing.T) {
		f, err := NewFormat(PixelFormatSGRBG10, SizeNative)
		require.Nil(t, err)
		require.Equal(t, "2560x1920 bayer", f.String())

		for _, size := range []Size{SizeHalf, SizeVGA} {
			_, err := NewFormat(PixelFormatSGRBG10, size)
			require.EqualError(t, err, "bayer format restricted to size 2560x1920")
		}
	})
}

func TestNormalizeControls(t *testing.T) {
	for _, c := range []struct {
		in       Controls
		expected Controls
	}{
		{Controls{}, Controls{}},
		{Controls{Exposure: 1}, Controls{Exposure: MinExposure}},
		{Controls{Exposure: 1000}, Controls{Exposure: 1000}},
		{Controls{Exposure: 1000000}, Controls{Exposure: MaxExposure}},
		{Controls{Exposure: -5}, Controls{}},
		{
			Controls{Gains: Gains{Red: 0, Blue: 1, Green1: 161, Green2: 162, Global: -1}},
			Controls{Gains: Gains{Red: 0, Blue: 1, Green1: 161, Green2: 0, Global: 0}},
		},
	} {
		require.Equal(t, c.expected, c.in.Normalize())
	}

	require.True(t, Controls{Gains: Gains{Global: 8}}.UseGlobalGain())
	require.False(t, Controls{Gains: Gains{Red: 8}}.UseGlobalGain())
}

func TestStatsString(t *testing.T) {
	s := Stats{
		FramesSelected: 2,
		FramesSaved:    1,
		PendingIndex:   -1,
		PerBuffer:      []uint64{3, 4},
	}
	require.Equal(t, "pending: -1 buff[0]: 3 buff[1]: 4 total: 7 (selected: 2, skipped: 0, saved: 1, save errors: 0)", s.String())
}
