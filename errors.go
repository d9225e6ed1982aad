package hic

import (
	"errors"
	"fmt"

	"github.com/genomekit/hic/internal/binio"
)

var (
	// ErrInvalidFormat indicates a magic mismatch or a malformed header,
	// index or footer record. Unknown block types and truncated blocks
	// are reported as ErrCorruptedBlock.
	ErrInvalidFormat = errors.New("invalid file format")

	// ErrUnsupportedVersion indicates a file version outside [6, 9].
	ErrUnsupportedVersion = errors.New("unsupported file version")

	// ErrCorruptedBlock indicates a block that failed to decompress or
	// decode. It aborts the current query only; the file remains
	// usable.
	ErrCorruptedBlock = errors.New("corrupted interaction block")

	// ErrInvalidQuery indicates a malformed or lower-triangle query.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrOutOfBounds indicates a byte-stream or bin-table access past
	// the end.
	ErrOutOfBounds = binio.ErrOutOfBounds

	// ErrTransport wraps I/O failures of the underlying file or
	// connection.
	ErrTransport = binio.ErrTransport
)

// NormalizationNotFoundError reports that the requested weight vectors
// are unavailable for a chromosome pair at the requested resolution.
type NormalizationNotFoundError struct {
	Method     Normalization
	Chrom1     string
	Chrom2     string
	Resolution uint32
	Unit       MatrixUnit
}

func (e *NormalizationNotFoundError) Error() string {
	if e.Chrom1 == e.Chrom2 {
		return fmt.Sprintf("unable to find %s normalization vector for %s at %d (%s)",
			e.Method, e.Chrom1, e.Resolution, e.Unit)
	}
	return fmt.Sprintf("unable to find %s normalization vectors for %s:%s at %d (%s)",
		e.Method, e.Chrom1, e.Chrom2, e.Resolution, e.Unit)
}
