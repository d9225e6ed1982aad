package transform

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/genomekit/hic/pixel"
)

// Rect describes the output rectangle of a matrix transformer in
// global bin ids: rows cover [RowOffset, RowOffset+NumRows), columns
// [ColOffset, ColOffset+NumCols).
type Rect struct {
	RowOffset uint64
	NumRows   int
	ColOffset uint64
	NumCols   int
	// SymmetricUpper marks sources that store only bin1 <= bin2
	// pixels of a square region, whose mirror half is implicit.
	SymmetricUpper bool
}

// ToDense consumes a pixel stream and fills a row-major dense matrix
// over the rectangle. The requested span controls how symmetric-upper
// sources are mirrored into the off-triangle half; Full on an
// asymmetric source passes every pixel through.
func ToDense[N pixel.Count](it pixel.Iter[N], rect Rect, span QuerySpan) (*mat.Dense, error) {
	if span == LowerTriangle && !rect.SymmetricUpper {
		return nil, fmt.Errorf("transform: span=lower requires a symmetric-upper source")
	}
	m := mat.NewDense(rect.NumRows, rect.NumCols, nil)

	mirror := rect.SymmetricUpper && span == Full
	transpose := rect.SymmetricUpper && span == LowerTriangle

	set := func(bin1, bin2 uint64, v float64) {
		i := int(int64(bin1) - int64(rect.RowOffset))
		j := int(int64(bin2) - int64(rect.ColOffset))
		if i >= 0 && i < rect.NumRows && j >= 0 && j < rect.NumCols {
			m.Set(i, j, v)
		}
	}

	for it.Next() {
		p := it.Pixel()
		v := float64(p.Count)
		if transpose {
			set(p.Bin2ID, p.Bin1ID, v)
			continue
		}
		set(p.Bin1ID, p.Bin2ID, v)
		if mirror && p.Bin1ID != p.Bin2ID {
			set(p.Bin2ID, p.Bin1ID, v)
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return m, nil
}
