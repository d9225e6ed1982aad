package transform

import (
	"github.com/genomekit/hic/genome"
	"github.com/genomekit/hic/pixel"
)

// Joiner expands bare bin ids into full genomic coordinates by looking
// each bin up in the shared bin table. Zero buffering.
type Joiner[N pixel.Count] struct {
	src  pixel.Iter[N]
	bins *genome.BinTable

	current pixel.Pixel[N]
	err     error
}

func NewJoiner[N pixel.Count](src pixel.Iter[N], bins *genome.BinTable) *Joiner[N] {
	return &Joiner[N]{src: src, bins: bins}
}

func (j *Joiner[N]) Next() bool {
	if j.err != nil {
		return false
	}
	if !j.src.Next() {
		j.err = j.src.Err()
		return false
	}
	p := j.src.Pixel()
	b1, err := j.bins.At(p.Bin1ID)
	if err != nil {
		j.err = err
		return false
	}
	b2, err := j.bins.At(p.Bin2ID)
	if err != nil {
		j.err = err
		return false
	}
	j.current = pixel.Pixel[N]{Bin1: b1, Bin2: b2, Count: p.Count}
	return true
}

func (j *Joiner[N]) Pixel() pixel.Pixel[N] { return j.current }

func (j *Joiner[N]) Err() error { return j.err }

// ReadAll drains the joiner.
func (j *Joiner[N]) ReadAll() ([]pixel.Pixel[N], error) {
	var out []pixel.Pixel[N]
	for j.Next() {
		out = append(out, j.Pixel())
	}
	return out, j.Err()
}
