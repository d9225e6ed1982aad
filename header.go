package hic

import (
	"fmt"

	"github.com/genomekit/hic/genome"
	"github.com/genomekit/hic/internal/binio"
)

// Magic is the byte sequence block-compressed files start with.
var Magic = [4]byte{'H', 'I', 'C', 0}

// Header is the decoded file header of a block-compressed file.
type Header struct {
	Version           int32
	MasterIndexOffset int64
	GenomeID          string
	// NviPosition/NviLength locate the normalization vector index
	// (v9+ only; -1 otherwise).
	NviPosition int64
	NviLength   int64
	Attributes  map[string]string
	Chromosomes *genome.Reference
	Resolutions []uint32
}

// readMagic consumes and checks the magic string.
func readMagic(fs *binio.Stream) error {
	s, err := fs.Getline(0)
	if err != nil {
		return err
	}
	if s != "HIC" {
		return fmt.Errorf("%w: magic string missing, %s does not appear to be a hic file", ErrInvalidFormat, fs.URL())
	}
	return nil
}

// IsHicFile reports whether the file at pathOrURL starts with the
// block-compressed magic.
func IsHicFile(pathOrURL string) bool {
	fs, err := binio.Open(pathOrURL)
	if err != nil {
		return false
	}
	defer fs.Close()
	return readMagic(fs) == nil
}

func readHeader(fs *binio.Stream) (*Header, error) {
	if err := readMagic(fs); err != nil {
		return nil, err
	}

	h := &Header{NviPosition: -1, NviLength: -1}

	var err error
	if h.Version, err = fs.Int32(); err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}
	if h.Version < 6 || h.Version > 9 {
		return nil, fmt.Errorf("%w: found version %d, supported versions are 6-9", ErrUnsupportedVersion, h.Version)
	}
	if h.MasterIndexOffset, err = fs.Int64(); err != nil {
		return nil, fmt.Errorf("reading master index offset: %w", err)
	}
	if h.MasterIndexOffset < 0 || h.MasterIndexOffset >= fs.Size() {
		return nil, fmt.Errorf("%w: master index offset %d outside the file (size %d)",
			ErrInvalidFormat, h.MasterIndexOffset, fs.Size())
	}

	if h.GenomeID, err = fs.CString(); err != nil {
		return nil, fmt.Errorf("reading genome id: %w", err)
	}
	if h.GenomeID == "" {
		h.GenomeID = "unknown"
	}

	if h.Version > 8 {
		if h.NviPosition, err = fs.Int64(); err != nil {
			return nil, fmt.Errorf("reading nvi position: %w", err)
		}
		if h.NviLength, err = fs.Int64(); err != nil {
			return nil, fmt.Errorf("reading nvi length: %w", err)
		}
	}

	nAttrs, err := fs.Int32()
	if err != nil {
		return nil, fmt.Errorf("reading attribute count: %w", err)
	}
	h.Attributes = make(map[string]string, nAttrs)
	for i := int32(0); i < nAttrs; i++ {
		key, err := fs.CString()
		if err != nil {
			return nil, fmt.Errorf("reading attribute key: %w", err)
		}
		value, err := fs.CString()
		if err != nil {
			return nil, fmt.Errorf("reading attribute value: %w", err)
		}
		h.Attributes[key] = value
	}

	nChroms, err := fs.Int32()
	if err != nil {
		return nil, fmt.Errorf("reading chromosome count: %w", err)
	}
	if nChroms <= 0 {
		return nil, fmt.Errorf("%w: file lists no chromosomes", ErrInvalidFormat)
	}
	names := make([]string, nChroms)
	lengths := make([]uint32, nChroms)
	for i := range names {
		if names[i], err = fs.CString(); err != nil {
			return nil, fmt.Errorf("reading chromosome name: %w", err)
		}
		var length int64
		if h.Version > 8 {
			length, err = fs.Int64()
		} else {
			var l32 int32
			l32, err = fs.Int32()
			length = int64(l32)
		}
		if err != nil {
			return nil, fmt.Errorf("reading length of chromosome %q: %w", names[i], err)
		}
		lengths[i] = uint32(length)
	}
	if h.Chromosomes, err = genome.NewReference(names, lengths); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	nRes, err := fs.Int32()
	if err != nil {
		return nil, fmt.Errorf("reading resolution count: %w", err)
	}
	if nRes <= 0 {
		return nil, fmt.Errorf("%w: file lists no resolutions", ErrInvalidFormat)
	}
	seen := make(map[uint32]bool, nRes)
	for i := int32(0); i < nRes; i++ {
		res, err := fs.Int32()
		if err != nil {
			return nil, fmt.Errorf("reading resolution: %w", err)
		}
		if res <= 0 {
			return nil, fmt.Errorf("%w: resolution %d is not positive", ErrInvalidFormat, res)
		}
		if seen[uint32(res)] {
			continue
		}
		seen[uint32(res)] = true
		h.Resolutions = append(h.Resolutions, uint32(res))
	}

	// Fragment resolutions are not exercised by known files.
	if nFrag, err := fs.Int32(); err == nil && nFrag > 0 {
		debugf("hic: %s declares %d fragment resolutions; skipping them", fs.URL(), nFrag)
	}

	return h, nil
}

// HasResolution reports whether the header lists the given BP
// resolution.
func (h *Header) HasResolution(resolution uint32) bool {
	for _, r := range h.Resolutions {
		if r == resolution {
			return true
		}
	}
	return false
}
