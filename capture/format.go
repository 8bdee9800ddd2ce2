package capture

import (
	"fmt"
	"strings"
)

// PixelFormat denotes a V4L2 pixel format (FourCC code)
type PixelFormat uint32

const (

	// PixelFormatUYVY denotes the packed UYVY 4:2:2 format
	PixelFormatUYVY PixelFormat = 'U' | 'Y'<<8 | 'V'<<16 | 'Y'<<24

	// PixelFormatYUYV denotes the packed YUYV 4:2:2 format
	PixelFormatYUYV PixelFormat = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24

	// PixelFormatSGRBG10 denotes the 10 bit raw Bayer (GRBG) format, only available at the
	// native sensor resolution
	PixelFormatSGRBG10 PixelFormat = 'B' | 'A'<<8 | '1'<<16 | '0'<<24
)

// ParsePixelFormat parses a pixel format from its name (case insensitive)
func ParsePixelFormat(name string) (PixelFormat, error) {
	switch strings.ToLower(name) {
	case "uyvy":
		return PixelFormatUYVY, nil
	case "yuyv":
		return PixelFormatYUYV, nil
	case "bayer":
		return PixelFormatSGRBG10, nil
	}
	return 0, fmt.Errorf("invalid pixel format: %s", name)
}

// Name returns the name of the pixel format, also used as prefix for persisted frames
func (p PixelFormat) Name() string {
	switch p {
	case PixelFormatSGRBG10:
		return "bayer"
	case PixelFormatYUYV:
		return "yuyv"
	case PixelFormatUYVY:
		return "uyvy"
	}
	return "unknown"
}

// String returns the FourCC code of the pixel format
func (p PixelFormat) String() string {
	return string([]byte{byte(p), byte(p >> 8), byte(p >> 16), byte(p >> 24)})
}

// Size denotes one of the supported image sizes
type Size int

const (

	// SizeNative denotes the full sensor resolution (2560x1920)
	SizeNative Size = iota

	// SizeHalf denotes half the sensor resolution (1280x960)
	SizeHalf

	// SizeVGA denotes VGA resolution (640x480)
	SizeVGA
)

// Resolution returns width and height for the given size
func (s Size) Resolution() (width, height uint32, err error) {
	switch s {
	case SizeNative:
		return 2560, 1920, nil
	case SizeHalf:
		return 1280, 960, nil
	case SizeVGA:
		return 640, 480, nil
	}
	return 0, 0, fmt.Errorf("invalid size parameter %d", s)
}

// Format denotes a capture format (resolution and pixel format)
type Format struct {
	Width       uint32
	Height      uint32
	PixelFormat PixelFormat
}

// NewFormat creates a new capture format for the given pixel format and size
func NewFormat(pixFmt PixelFormat, size Size) (Format, error) {
	if pixFmt.Name() == "unknown" {
		return Format{}, fmt.Errorf("unsupported pixel format %s", pixFmt)
	}
	if pixFmt == PixelFormatSGRBG10 && size != SizeNative {
		return Format{}, fmt.Errorf("bayer format restricted to size 2560x1920")
	}

	width, height, err := size.Resolution()
	if err != nil {
		return Format{}, err
	}

	return Format{
		Width:       width,
		Height:      height,
		PixelFormat: pixFmt,
	}, nil
}

// String returns a human-readable representation of the format
func (f Format) String() string {
	return fmt.Sprintf("%dx%d %s", f.Width, f.Height, f.PixelFormat.Name())
}
