package hic

import (
	"fmt"
	"math/rand"

	"github.com/genomekit/hic/genome"
	"github.com/genomekit/hic/internal/cache"
	"github.com/genomekit/hic/pixel"
)

// PixelCoordinates describes one side of a rectangular selection as
// its first and last bin (inclusive).
type PixelCoordinates struct {
	Bin1 genome.Bin
	Bin2 genome.Bin
}

// PixelSelector binds a query rectangle to a footer and block index
// and produces pixel iterators. Selectors are cheap: no block is
// fetched until an iterator is advanced.
type PixelSelector struct {
	reader *blockReader
	footer *Footer
	coord1 PixelCoordinates
	coord2 PixelCoordinates
}

func newPixelSelector(r *fileReader, footer *Footer, blkCache *cache.BlockCache, bins *genome.BinTable, coord1, coord2 PixelCoordinates) (*PixelSelector, error) {
	isCis := coord1.Bin1.Chrom.ID == coord2.Bin1.Chrom.ID
	if (!isCis && coord1.Bin1.Chrom.ID > coord2.Bin1.Chrom.ID) ||
		(isCis && coord1.Bin1.Start > coord2.Bin1.Start) {
		return nil, fmt.Errorf("%w: query %s:%d-%d; %s:%d-%d overlaps with the lower triangle of the matrix",
			ErrInvalidQuery,
			coord1.Bin1.Chrom.Name, coord1.Bin1.Start, coord1.Bin2.End,
			coord2.Bin1.Chrom.Name, coord2.Bin1.Start, coord2.Bin2.End)
	}
	return &PixelSelector{
		reader: &blockReader{r: r, index: footer.index, bins: bins, cache: blkCache},
		footer: footer,
		coord1: coord1,
		coord2: coord2,
	}, nil
}

// Coord1 returns the bin1 (row) side of the query rectangle.
func (s *PixelSelector) Coord1() PixelCoordinates { return s.coord1 }

// Coord2 returns the bin2 (column) side.
func (s *PixelSelector) Coord2() PixelCoordinates { return s.coord2 }

// Bins returns the bin table the selector's ids refer to.
func (s *PixelSelector) Bins() *genome.BinTable { return s.reader.bins }

func (s *PixelSelector) Chrom1() genome.Chromosome { return s.coord1.Bin1.Chrom }
func (s *PixelSelector) Chrom2() genome.Chromosome { return s.coord2.Bin1.Chrom }

func (s *PixelSelector) IsIntra() bool { return s.Chrom1().ID == s.Chrom2().ID }

func (s *PixelSelector) MatrixType() MatrixType       { return s.footer.Type }
func (s *PixelSelector) Normalization() Normalization { return s.footer.Normalization }
func (s *PixelSelector) Resolution() uint32           { return s.footer.Resolution }

// Empty reports whether no block can possibly overlap the query.
func (s *PixelSelector) Empty() bool { return s.footer.empty() }

// Weights1 and Weights2 expose the normalization vectors bound to the
// two chromosomes (empty for NONE).
func (s *PixelSelector) Weights1() *Weights { return s.footer.weights1 }
func (s *PixelSelector) Weights2() *Weights { return s.footer.weights2 }

// Size returns the pixel-rectangle area, with the diagonal correction
// for intra-chromosomal queries when upperTriangle is set.
func (s *PixelSelector) Size(upperTriangle bool) uint64 {
	r0, r1 := s.coord1.Bin1.ID, s.coord1.Bin2.ID
	c0, c1 := s.coord2.Bin1.ID, s.coord2.Bin2.ID
	if !s.IsIntra() || !upperTriangle {
		return (r1 - r0 + 1) * (c1 - c0 + 1)
	}
	// Count cells (r, c) with c >= r.
	var total uint64
	if c0 > r0 {
		full := min64(r1, c0-1) - r0 + 1
		total += full * (c1 - c0 + 1)
	}
	a := max64(r0, c0)
	b := min64(r1, c1)
	if a <= b {
		n := b - a + 1
		// sum over r in [a, b] of (c1 - r + 1)
		total += n*(c1+1) - (a+b)*n/2
	}
	return total
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// transformPixel applies normalization and the matrix-type transform
// to one relative-bin pixel.
func (s *PixelSelector) transformPixel(p pixel.ThinPixel[float32]) pixel.ThinPixel[float32] {
	f := s.footer
	skipNorm := f.Normalization.IsNone() || f.Type == Expected
	if !skipNorm {
		w1 := f.weights1.At(p.Bin1ID)
		w2 := f.weights2.At(p.Bin2ID)
		p.Count = float32(f.weights1.Apply(float64(p.Count), w1, w2))
	}
	if f.Type == Observed {
		return p
	}

	var expected float64
	if !s.IsIntra() {
		expected = s.reader.index.matrixAvg(s.reader.bins)
	} else {
		d := p.Bin2ID - p.Bin1ID
		if d >= uint64(len(f.expected)) {
			d = uint64(len(f.expected)) - 1
		}
		expected = f.expected[d]
	}

	if f.Type == Expected {
		p.Count = float32(expected)
		return p
	}
	p.Count = float32(float64(p.Count) / expected)
	return p
}

// Pixels returns a forward iterator over the query rectangle. With
// sorted set, pixels come in strictly non-decreasing (bin1, bin2)
// order; unsorted iteration follows block-traversal order and is
// cheaper.
func (s *PixelSelector) Pixels(sorted bool) pixel.Iter[float32] {
	return newPixelIterator(s, sorted)
}

// ReadAll drains a sorted iterator into coordinate-expanded pixels.
func (s *PixelSelector) ReadAll() ([]pixel.Pixel[float32], error) {
	it := s.Pixels(true)
	var out []pixel.Pixel[float32]
	for it.Next() {
		p := it.Pixel()
		b1, err := s.reader.bins.At(p.Bin1ID)
		if err != nil {
			return nil, err
		}
		b2, err := s.reader.bins.At(p.Bin2ID)
		if err != nil {
			return nil, err
		}
		out = append(out, pixel.Pixel[float32]{Bin1: b1, Bin2: b2, Count: p.Count})
	}
	return out, it.Err()
}

// EstimateOptimalCacheSize samples block sizes and row overlaps to
// suggest a pixel cache budget (in bytes) under which a row sweep
// never refetches a block.
func (s *PixelSelector) EstimateOptimalCacheSize(numSamples int) (uint64, error) {
	idx := s.reader.index
	if idx.empty() {
		return 0, nil
	}
	if numSamples <= 0 {
		numSamples = 500
	}
	rng := rand.New(rand.NewSource(int64(len(idx.sorted))))

	// Average post-decompression block size.
	samples := numSamples
	if samples > len(idx.sorted) {
		samples = len(idx.sorted)
	}
	var avgBlockPixels uint64
	for _, i := range rng.Perm(len(idx.sorted))[:samples] {
		n, err := s.reader.readSize(idx.sorted[i])
		if err != nil {
			return 0, err
		}
		avgBlockPixels += uint64(n)
	}
	avgBlockPixels /= uint64(samples)

	// Maximum number of blocks overlapping a single-row query.
	chrom := s.coord1.Bin1.Chrom
	nbins := s.reader.bins.ChromBins(chrom)
	rows := numSamples
	if uint64(rows) > nbins {
		rows = int(nbins)
	}
	bin2Lo := s.coord2.Bin1.RelID
	bin2Hi := s.coord2.Bin2.RelID
	var maxRowBlocks uint64
	for i := 0; i < rows; i++ {
		row := uint64(rng.Int63n(int64(nbins)))
		n := uint64(len(idx.overlapping(row, row, bin2Lo, bin2Hi)))
		if n > maxRowBlocks {
			maxRowBlocks = n
		}
	}

	return maxRowBlocks * avgBlockPixels * pixel.SizeofThinPixel, nil
}
