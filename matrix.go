package hic

import (
	"github.com/genomekit/hic/transform"
)

// Rect describes the selector's query rectangle for the matrix and
// table transformers.
func (s *PixelSelector) Rect() transform.Rect {
	return transform.Rect{
		RowOffset:      s.coord1.Bin1.ID,
		NumRows:        int(s.coord1.Bin2.ID - s.coord1.Bin1.ID + 1),
		ColOffset:      s.coord2.Bin1.ID,
		NumCols:        int(s.coord2.Bin2.ID - s.coord2.Bin1.ID + 1),
		SymmetricUpper: s.IsIntra(),
	}
}

// Rect covers the whole genome.
func (s *GenomeWideSelector) Rect() transform.Rect {
	n := int(s.bins.Len())
	return transform.Rect{NumRows: n, NumCols: n, SymmetricUpper: true}
}
