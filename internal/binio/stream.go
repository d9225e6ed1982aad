// Package binio implements the seekable, size-known byte source backing
// the contact matrix readers: a local file (mmap when possible) or a
// remote URL fetched with HTTP range requests through a chunked,
// forward-biased cache.
package binio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// ErrOutOfBounds is returned for seeks or reads past the end of the
// stream.
var ErrOutOfBounds = errors.New("out-of-bounds stream access")

// ErrTransport wraps I/O failures of the underlying file or connection.
var ErrTransport = errors.New("transport error")

type source interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// Stream is a positioned little-endian reader over a source of known
// size. It is not safe for concurrent use.
type Stream struct {
	src  source
	url  string
	pos  int64
	size int64
	// scratch avoids a per-read allocation for fixed-size values.
	scratch [8]byte
}

// Open returns a stream for a local path or an http(s):// URL.
func Open(pathOrURL string) (*Stream, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return OpenRemote(pathOrURL, DefaultChunkSize)
	}
	return OpenLocal(pathOrURL)
}

func newStream(src source, url string) *Stream {
	return &Stream{src: src, url: url, size: src.Size()}
}

// URL returns the path or URL the stream was opened with.
func (s *Stream) URL() string { return s.url }

// Size returns the total size of the source in bytes.
func (s *Stream) Size() int64 { return s.size }

// Pos returns the current read position.
func (s *Stream) Pos() int64 { return s.pos }

func (s *Stream) Close() error { return s.src.Close() }

// Seek moves the read position to an absolute offset. Seeking to
// exactly Size() is allowed; reading from there is not.
func (s *Stream) Seek(pos int64) error {
	if pos < 0 || pos > s.size {
		return fmt.Errorf("%w: seek to %d (stream size %d)", ErrOutOfBounds, pos, s.size)
	}
	s.pos = pos
	return nil
}

// Skip advances the position by n bytes.
func (s *Stream) Skip(n int64) error { return s.Seek(s.pos + n) }

// Read fills buf from the current position and advances it.
func (s *Stream) Read(buf []byte) error {
	if s.pos+int64(len(buf)) > s.size {
		return fmt.Errorf("%w: read of %d bytes at %d (stream size %d)", ErrOutOfBounds, len(buf), s.pos, s.size)
	}
	if _, err := s.src.ReadAt(buf, s.pos); err != nil {
		return fmt.Errorf("%w: read of %d bytes at %d: %v", ErrTransport, len(buf), s.pos, err)
	}
	s.pos += int64(len(buf))
	return nil
}

func (s *Stream) Uint8() (uint8, error) {
	b := s.scratch[:1]
	if err := s.Read(b); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *Stream) Int32() (int32, error) {
	b := s.scratch[:4]
	if err := s.Read(b); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (s *Stream) Int64() (int64, error) {
	b := s.scratch[:8]
	if err := s.Read(b); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (s *Stream) Float32() (float32, error) {
	b := s.scratch[:4]
	if err := s.Read(b); err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

func (s *Stream) Float64() (float64, error) {
	b := s.scratch[:8]
	if err := s.Read(b); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// Getline reads bytes up to (and consuming) the delimiter. The
// delimiter is not part of the result.
func (s *Stream) Getline(delim byte) (string, error) {
	var out bytes.Buffer
	var chunk [64]byte
	for {
		n := int64(len(chunk))
		if remaining := s.size - s.pos; remaining < n {
			n = remaining
		}
		if n == 0 {
			return "", fmt.Errorf("%w: unterminated string at %d", ErrOutOfBounds, s.pos-int64(out.Len()))
		}
		buf := chunk[:n]
		if _, err := s.src.ReadAt(buf, s.pos); err != nil {
			return "", fmt.Errorf("%w: read at %d: %v", ErrTransport, s.pos, err)
		}
		if i := bytes.IndexByte(buf, delim); i >= 0 {
			out.Write(buf[:i])
			s.pos += int64(i) + 1
			return out.String(), nil
		}
		out.Write(buf)
		s.pos += n
	}
}

// CString reads a NUL-terminated string.
func (s *Stream) CString() (string, error) { return s.Getline(0) }
