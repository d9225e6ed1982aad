package hic

import (
	"fmt"
	"io"

	"github.com/google/renameio"

	"github.com/genomekit/hic/pixel"
	"github.com/genomekit/hic/transform"
)

// Merge k-way merges the whole-genome sorted streams of the given
// files into dst, summing counts at matching coordinates. All inputs
// must share one reference genome and be opened at the same
// resolution.
func Merge(dst io.WriteSeeker, files []*File) error {
	if len(files) < 2 {
		return fmt.Errorf("%w: cannot merge less than 2 files", ErrInvalidQuery)
	}
	first := files[0]
	for _, f := range files[1:] {
		if !f.Chromosomes().Equal(first.Chromosomes()) {
			return fmt.Errorf("%w: files %q and %q use different reference genomes",
				ErrInvalidQuery, first.Path(), f.Path())
		}
		if f.Resolution() != first.Resolution() {
			return fmt.Errorf("%w: files %q and %q are open at different resolutions (%d and %d)",
				ErrInvalidQuery, first.Path(), f.Path(), first.Resolution(), f.Resolution())
		}
	}

	sources := make([]pixel.Iter[float32], 0, len(files))
	for _, f := range files {
		sel, err := f.Fetch(NormNone)
		if err != nil {
			return err
		}
		sources = append(sources, sel.Pixels(true))
	}
	merger, err := transform.NewMerger(sources...)
	if err != nil {
		return err
	}

	w, err := NewWriter(dst, first.Chromosomes(), first.Resolution(), first.Assembly())
	if err != nil {
		return err
	}
	if err := w.AddPixels(merger); err != nil {
		return err
	}
	return w.Close()
}

// MergeToFile merges into a file at path, created atomically.
func MergeToFile(path string, files []*File) error {
	t, err := renameio.TempFile("", path)
	if err != nil {
		return err
	}
	defer t.Cleanup()
	if err := Merge(t, files); err != nil {
		return err
	}
	return t.CloseAtomicallyReplace()
}
