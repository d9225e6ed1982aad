package transform

import (
	"fmt"
	"sort"

	"github.com/genomekit/hic/pixel"
)

// CSR is a compressed sparse row matrix over the transformer's output
// rectangle.
type CSR[N pixel.Count] struct {
	NumRows int
	NumCols int
	// RowPtr has NumRows+1 entries; row i's columns and values live in
	// [RowPtr[i], RowPtr[i+1]).
	RowPtr []int64
	Cols   []int32
	Values []N
}

// At returns one element; zero when absent.
func (m *CSR[N]) At(i, j int) N {
	lo, hi := m.RowPtr[i], m.RowPtr[i+1]
	k := int64(sort.Search(int(hi-lo), func(k int) bool { return m.Cols[lo+int64(k)] >= int32(j) }))
	if lo+k < hi && m.Cols[lo+k] == int32(j) {
		return m.Values[lo+k]
	}
	var zero N
	return zero
}

// Nnz returns the number of stored elements.
func (m *CSR[N]) Nnz() int { return len(m.Values) }

// ToSparse consumes a pixel stream and fills a CSR matrix row by row.
// The reserve grows in amortized 1.25x steps driven by the upper bound
// rows x pixels-in-current-row.
func ToSparse[N pixel.Count](it pixel.Iter[N], rect Rect, span QuerySpan) (*CSR[N], error) {
	if span == LowerTriangle && !rect.SymmetricUpper {
		return nil, fmt.Errorf("transform: span=lower requires a symmetric-upper source")
	}

	mirror := rect.SymmetricUpper && span == Full
	transpose := rect.SymmetricUpper && span == LowerTriangle

	type entry struct {
		row, col int32
		count    N
	}
	var entries []entry
	reserve := func(rowLen int) {
		bound := rect.NumRows * rowLen
		if bound <= cap(entries) {
			return
		}
		grown := cap(entries) + cap(entries)/4
		if grown < bound {
			grown = bound
		}
		next := make([]entry, len(entries), grown)
		copy(next, entries)
		entries = next
	}

	add := func(bin1, bin2 uint64, count N) {
		i := int64(bin1) - int64(rect.RowOffset)
		j := int64(bin2) - int64(rect.ColOffset)
		if i < 0 || i >= int64(rect.NumRows) || j < 0 || j >= int64(rect.NumCols) {
			return
		}
		entries = append(entries, entry{row: int32(i), col: int32(j), count: count})
	}

	rowLen := 0
	var lastRow uint64
	haveRow := false
	for it.Next() {
		p := it.Pixel()
		if !haveRow || p.Bin1ID != lastRow {
			lastRow = p.Bin1ID
			haveRow = true
			rowLen = 0
		}
		rowLen++
		reserve(rowLen)
		if transpose {
			add(p.Bin2ID, p.Bin1ID, p.Count)
			continue
		}
		add(p.Bin1ID, p.Bin2ID, p.Count)
		if mirror && p.Bin1ID != p.Bin2ID {
			add(p.Bin2ID, p.Bin1ID, p.Count)
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(a, b int) bool {
		if entries[a].row != entries[b].row {
			return entries[a].row < entries[b].row
		}
		return entries[a].col < entries[b].col
	})

	m := &CSR[N]{
		NumRows: rect.NumRows,
		NumCols: rect.NumCols,
		RowPtr:  make([]int64, rect.NumRows+1),
		Cols:    make([]int32, len(entries)),
		Values:  make([]N, len(entries)),
	}
	for k, e := range entries {
		m.RowPtr[e.row+1]++
		m.Cols[k] = e.col
		m.Values[k] = e.count
	}
	for i := 0; i < rect.NumRows; i++ {
		m.RowPtr[i+1] += m.RowPtr[i]
	}
	return m, nil
}
