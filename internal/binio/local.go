package binio

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// localFile serves ReadAt from an mmap'd region when the mapping
// succeeds, falling back to pread on the open file otherwise.
type localFile struct {
	f    *os.File
	data []byte // nil when not mapped
	size int64
}

// OpenLocal opens a regular file as a stream.
func OpenLocal(path string) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	lf := &localFile{f: f, size: fi.Size()}
	if fi.Size() > 0 {
		// A failed mapping is not an error: pread still works (e.g. on
		// filesystems without mmap support).
		if data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED); err == nil {
			lf.data = data
		}
	}
	return newStream(lf, path), nil
}

func (lf *localFile) Size() int64 { return lf.size }

func (lf *localFile) ReadAt(p []byte, off int64) (int, error) {
	if lf.data != nil {
		if off >= int64(len(lf.data)) {
			return 0, io.EOF
		}
		n := copy(p, lf.data[off:])
		if n < len(p) {
			return n, io.EOF
		}
		return n, nil
	}
	return lf.f.ReadAt(p, off)
}

func (lf *localFile) Close() error {
	if lf.data != nil {
		if err := unix.Munmap(lf.data); err != nil {
			lf.f.Close()
			return err
		}
		lf.data = nil
	}
	return lf.f.Close()
}
