package transform

import (
	"github.com/genomekit/hic/pixel"
)

// DiagonalBand drops every pixel numBins or more bins away from the
// diagonal (|bin2 - bin1| >= numBins). When the source supports row
// jumping, whole row suffixes past the band are skipped instead of
// scanned. numBins == 0 produces an empty stream.
type DiagonalBand[N pixel.Count] struct {
	src     pixel.Iter[N]
	numBins uint64
	jumper  pixel.RowJumper
}

func NewDiagonalBand[N pixel.Count](src pixel.Iter[N], numBins uint64) *DiagonalBand[N] {
	b := &DiagonalBand[N]{src: src, numBins: numBins}
	if j, ok := src.(pixel.RowJumper); ok {
		b.jumper = j
	}
	return b
}

func (b *DiagonalBand[N]) Next() bool {
	if b.numBins == 0 {
		return false
	}
	for b.src.Next() {
		p := b.src.Pixel()
		var dist uint64
		if p.Bin2ID >= p.Bin1ID {
			dist = p.Bin2ID - p.Bin1ID
		} else {
			dist = p.Bin1ID - p.Bin2ID
		}
		if dist < b.numBins {
			return true
		}
		// On a sorted symmetric-upper stream, every later pixel of
		// this row is even farther out.
		if b.jumper != nil {
			b.jumper.JumpToNextRow()
		}
	}
	return false
}

func (b *DiagonalBand[N]) Pixel() pixel.ThinPixel[N] { return b.src.Pixel() }

func (b *DiagonalBand[N]) Err() error { return b.src.Err() }
