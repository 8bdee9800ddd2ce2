/*
Package persist writes raw frame buffers to storage. Each persisted frame ends up in its own
file, named deterministically from the pixel format, the buffer index and the buffer's sequence
number, containing the raw buffer contents without any framing / header.
*/
package persist

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fako1024/slimcam/capture"
	"github.com/spf13/afero"
)

const fileMode = 0664

// Frame denotes the metadata of a frame to be persisted
type Frame struct {
	PixelFormat capture.PixelFormat
	BufferIndex int
	Sequence    uint64
}

// FileName returns the (deterministic) file name for the frame
func (f Frame) FileName() string {
	return fmt.Sprintf("%s_%d_%d.img", f.PixelFormat.Name(), f.BufferIndex, f.Sequence)
}

// Persister denotes a sink for raw frame buffers
type Persister interface {

	// Persist stores the provided raw frame data. The data is only valid for the duration of the
	// call and must not be retained
	Persist(data []byte, frame Frame) error
}

// Func denotes a function acting as Persister
type Func func(data []byte, frame Frame) error

// Persist calls the underlying function
func (f Func) Persist(data []byte, frame Frame) error {
	return f(data, frame)
}

// FilePersister persists frames as individual files in a directory
type FilePersister struct {
	fs  afero.Fs
	dir string
}

// Option denotes a functional option for the FilePersister
type Option func(*FilePersister)

// WithFs sets a custom filesystem to write to (default: OS filesystem)
func WithFs(fs afero.Fs) Option {
	return func(p *FilePersister) {
		p.fs = fs
	}
}

// NewFilePersister instantiates a new persister writing to the given directory
func NewFilePersister(dir string, options ...Option) (*FilePersister, error) {
	if dir == "" {
		dir = "."
	}

	p := &FilePersister{
		fs:  afero.NewOsFs(),
		dir: dir,
	}
	for _, opt := range options {
		opt(p)
	}

	info, err := p.fs.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access output directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("output path %s is not a directory", dir)
	}

	return p, nil
}

// Persist writes the raw frame data to a file (truncating any existing file of the same name)
func (p *FilePersister) Persist(data []byte, frame Frame) (err error) {
	path := filepath.Join(p.dir, frame.FileName())

	file, err := p.fs.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, fileMode)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close %s: %w", path, cerr))
		}
	}()

	n, err := file.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if n != len(data) {
		return fmt.Errorf("failed to write %s: %w (%d of %d bytes)", path, io.ErrShortWrite, n, len(data))
	}

	return nil
}
