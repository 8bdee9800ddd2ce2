//go:build linux
// +build linux

package v4l2

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Buffer types / memory types / fields, c.f.
// https://github.com/torvalds/linux/blob/master/include/uapi/linux/videodev2.h
const (
	bufTypeVideoCapture = 1
	memoryMMAP          = 1
	fieldNone           = 1
)

const (
	iocWrite = 1
	iocRead  = 2

	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
)

// pixFormat denotes the v4l2_pix_format structure
type pixFormat struct {
	width        uint32
	height       uint32
	pixelFormat  uint32
	field        uint32
	bytesPerLine uint32
	sizeImage    uint32
	colorspace   uint32
	priv         uint32
	flags        uint32
	ycbcrEnc     uint32
	quantization uint32
	xferFunc     uint32
}

// format denotes the v4l2_format structure. The union is declared as uint64 array to
// obtain the same alignment (and hence padding) as the C union, which contains pointers
type format struct {
	typ uint32
	fmt [200 / 8]uint64
}

func (f *format) pix() *pixFormat {
	return (*pixFormat)(unsafe.Pointer(&f.fmt[0])) // #nosec: G103
}

// requestBuffers denotes the v4l2_requestbuffers structure
type requestBuffers struct {
	count        uint32
	typ          uint32
	memory       uint32
	capabilities uint32
	flags        uint8
	reserved     [3]uint8
}

// timecode denotes the v4l2_timecode structure
type timecode struct {
	typ      uint32
	flags    uint32
	frames   uint8
	seconds  uint8
	minutes  uint8
	hours    uint8
	userBits [4]uint8
}

// buffer denotes the v4l2_buffer structure
type buffer struct {
	index     uint32
	typ       uint32
	bytesUsed uint32
	flags     uint32
	field     uint32
	timestamp unix.Timeval
	timecode  timecode
	sequence  uint32
	memory    uint32
	m         uintptr // union { offset, userptr, planes, fd }
	length    uint32
	reserved2 uint32
	requestFD int32
}

func newBuffer(index int) buffer {
	return buffer{
		index:  uint32(index),
		typ:    bufTypeVideoCapture,
		memory: memoryMMAP,
	}
}

func (b *buffer) offset() uint32 {
	return *(*uint32)(unsafe.Pointer(&b.m)) // #nosec: G103
}

// control denotes the v4l2_control structure
type control struct {
	id    uint32
	value int32
}

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<iocDirShift | uintptr('V')<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift
}

// #nosec: G103
var (
	vidiocSFmt      = ioc(iocRead|iocWrite, 5, unsafe.Sizeof(format{}))
	vidiocReqBufs   = ioc(iocRead|iocWrite, 8, unsafe.Sizeof(requestBuffers{}))
	vidiocQueryBuf  = ioc(iocRead|iocWrite, 9, unsafe.Sizeof(buffer{}))
	vidiocQBuf      = ioc(iocRead|iocWrite, 15, unsafe.Sizeof(buffer{}))
	vidiocDQBuf     = ioc(iocRead|iocWrite, 17, unsafe.Sizeof(buffer{}))
	vidiocStreamOn  = ioc(iocWrite, 18, unsafe.Sizeof(int32(0)))
	vidiocStreamOff = ioc(iocWrite, 19, unsafe.Sizeof(int32(0)))
	vidiocSCtrl     = ioc(iocRead|iocWrite, 28, unsafe.Sizeof(control{}))
)

// ioctl performs an ioctl() syscall on the file descriptor, retrying if interrupted
func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
		if errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			return errno
		}
		return nil
	}
}
