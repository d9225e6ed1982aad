package transform

import (
	"sort"

	"github.com/genomekit/hic/genome"
	"github.com/genomekit/hic/pixel"
)

// COOFrame is a three-column table of (bin1_id, bin2_id, count) rows.
type COOFrame[N pixel.Count] struct {
	Bin1IDs []uint64
	Bin2IDs []uint64
	Counts  []N
}

// Len returns the number of rows.
func (f *COOFrame[N]) Len() int { return len(f.Counts) }

// BG2Frame is a seven-column table with genomic coordinates on each
// side, plus the bin ids when withBinIDs is true.
type BG2Frame[N pixel.Count] struct {
	Chrom1 []string
	Start1 []uint32
	End1   []uint32
	Chrom2 []string
	Start2 []uint32
	End2   []uint32
	Counts []N

	Bin1IDs []uint64 // populated only when withBinIDs is true
	Bin2IDs []uint64
}

func (f *BG2Frame[N]) Len() int { return len(f.Counts) }

// frameChunkSize is the initial capacity of each COO column slice.
// Columns grow as single contiguous slices; they are not split into
// chunks or flushed.
const frameChunkSize = 4096

// spanPixels streams the source through the span expansion shared by
// both frame schemas: upper passes through, lower transposes, full
// mirrors off-diagonal pixels of symmetric-upper sources.
func spanPixels[N pixel.Count](it pixel.Iter[N], symmetricUpper bool, span QuerySpan, emit func(bin1, bin2 uint64, count N)) error {
	for it.Next() {
		p := it.Pixel()
		switch {
		case span == LowerTriangle && symmetricUpper:
			emit(p.Bin2ID, p.Bin1ID, p.Count)
		case span == Full && symmetricUpper:
			emit(p.Bin1ID, p.Bin2ID, p.Count)
			if p.Bin1ID != p.Bin2ID {
				emit(p.Bin2ID, p.Bin1ID, p.Count)
			}
		default:
			emit(p.Bin1ID, p.Bin2ID, p.Count)
		}
	}
	return it.Err()
}

// ToCOO accumulates a pixel stream into a COO table. A final stable
// sort on (bin1_id, bin2_id) runs only when the requested span is not
// upper-triangle (an upper-triangle stream is already sorted).
func ToCOO[N pixel.Count](it pixel.Iter[N], symmetricUpper bool, span QuerySpan) (*COOFrame[N], error) {
	f := &COOFrame[N]{
		Bin1IDs: make([]uint64, 0, frameChunkSize),
		Bin2IDs: make([]uint64, 0, frameChunkSize),
		Counts:  make([]N, 0, frameChunkSize),
	}
	err := spanPixels(it, symmetricUpper, span, func(bin1, bin2 uint64, count N) {
		f.Bin1IDs = append(f.Bin1IDs, bin1)
		f.Bin2IDs = append(f.Bin2IDs, bin2)
		f.Counts = append(f.Counts, count)
	})
	if err != nil {
		return nil, err
	}
	if span != UpperTriangle {
		sortFrame(f.Len(), func(a, b int) bool {
			if f.Bin1IDs[a] != f.Bin1IDs[b] {
				return f.Bin1IDs[a] < f.Bin1IDs[b]
			}
			return f.Bin2IDs[a] < f.Bin2IDs[b]
		}, func(a, b int) {
			f.Bin1IDs[a], f.Bin1IDs[b] = f.Bin1IDs[b], f.Bin1IDs[a]
			f.Bin2IDs[a], f.Bin2IDs[b] = f.Bin2IDs[b], f.Bin2IDs[a]
			f.Counts[a], f.Counts[b] = f.Counts[b], f.Counts[a]
		})
	}
	return f, nil
}

// ToBG2 accumulates a pixel stream into a BG2 table, joining genomic
// coordinates through the bin table.
func ToBG2[N pixel.Count](it pixel.Iter[N], bins *genome.BinTable, symmetricUpper bool, span QuerySpan, withBinIDs bool) (*BG2Frame[N], error) {
	f := &BG2Frame[N]{}
	var joinErr error
	err := spanPixels(it, symmetricUpper, span, func(bin1, bin2 uint64, count N) {
		if joinErr != nil {
			return
		}
		b1, err := bins.At(bin1)
		if err != nil {
			joinErr = err
			return
		}
		b2, err := bins.At(bin2)
		if err != nil {
			joinErr = err
			return
		}
		f.Chrom1 = append(f.Chrom1, b1.Chrom.Name)
		f.Start1 = append(f.Start1, b1.Start)
		f.End1 = append(f.End1, b1.End)
		f.Chrom2 = append(f.Chrom2, b2.Chrom.Name)
		f.Start2 = append(f.Start2, b2.Start)
		f.End2 = append(f.End2, b2.End)
		f.Counts = append(f.Counts, count)
		// Bin ids are tracked unconditionally: the final sort keys on
		// them. They are dropped afterwards unless requested.
		f.Bin1IDs = append(f.Bin1IDs, bin1)
		f.Bin2IDs = append(f.Bin2IDs, bin2)
	})
	if err != nil {
		return nil, err
	}
	if joinErr != nil {
		return nil, joinErr
	}
	if span != UpperTriangle {
		sortFrame(f.Len(), func(a, b int) bool {
			if f.Bin1IDs[a] != f.Bin1IDs[b] {
				return f.Bin1IDs[a] < f.Bin1IDs[b]
			}
			return f.Bin2IDs[a] < f.Bin2IDs[b]
		}, func(a, b int) {
			f.Chrom1[a], f.Chrom1[b] = f.Chrom1[b], f.Chrom1[a]
			f.Start1[a], f.Start1[b] = f.Start1[b], f.Start1[a]
			f.End1[a], f.End1[b] = f.End1[b], f.End1[a]
			f.Chrom2[a], f.Chrom2[b] = f.Chrom2[b], f.Chrom2[a]
			f.Start2[a], f.Start2[b] = f.Start2[b], f.Start2[a]
			f.End2[a], f.End2[b] = f.End2[b], f.End2[a]
			f.Counts[a], f.Counts[b] = f.Counts[b], f.Counts[a]
			f.Bin1IDs[a], f.Bin1IDs[b] = f.Bin1IDs[b], f.Bin1IDs[a]
			f.Bin2IDs[a], f.Bin2IDs[b] = f.Bin2IDs[b], f.Bin2IDs[a]
		})
	}
	if !withBinIDs {
		f.Bin1IDs, f.Bin2IDs = nil, nil
	}
	return f, nil
}

// sortFrame stable-sorts parallel column slices through a swap
// callback.
func sortFrame(n int, less func(a, b int) bool, swap func(a, b int)) {
	sort.Stable(&frameSorter{n: n, less: less, swap: swap})
}

type frameSorter struct {
	n    int
	less func(a, b int) bool
	swap func(a, b int)
}

func (s *frameSorter) Len() int           { return s.n }
func (s *frameSorter) Less(a, b int) bool { return s.less(a, b) }
func (s *frameSorter) Swap(a, b int)      { s.swap(a, b) }
