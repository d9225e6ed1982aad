package hic

import (
	"math"
	"sort"

	"github.com/genomekit/hic/genome"
)

// BlockDescriptor locates one compressed interaction block in the
// file.
type BlockDescriptor struct {
	ID             uint64
	FileOffset     int64
	CompressedSize uint32
}

// blockIndex is the per-(chrom pair, resolution) table of block
// descriptors, together with the tile-grid geometry used to map pixel
// rectangles onto block sets.
//
// The grid is indexed by (bin2 tile, bin1 tile) for version < 9 files
// and inter-chromosomal matrices: id = bin2Tile*W + bin1Tile with
// W = blockColumnCount. Version 9 intra-chromosomal matrices use the
// position-along-diagonal scheme instead: pad = (bin1+bin2)/2/side,
// depth = log2(1 + |bin2-bin1|/sqrt2/side), id = depth*W + pad.
type blockIndex struct {
	chrom1     genome.Chromosome
	chrom2     genome.Chromosome
	unit       MatrixUnit
	resolution uint32
	version    int32

	blockBinCount    uint64 // tile side length, in bins
	blockColumnCount uint64
	sumCount         float64

	byID   map[uint64]BlockDescriptor
	sorted []BlockDescriptor // ascending block id
}

func (idx *blockIndex) empty() bool { return idx == nil || len(idx.sorted) == 0 }

func (idx *blockIndex) isIntra() bool { return idx.chrom1.ID == idx.chrom2.ID }

// matrixAvg is the mean count over the full inter-chromosomal matrix,
// used as the scalar expected value for trans queries.
func (idx *blockIndex) matrixAvg(bins *genome.BinTable) float64 {
	n1 := bins.ChromBins(idx.chrom1)
	n2 := bins.ChromBins(idx.chrom2)
	if n1 == 0 || n2 == 0 {
		return 0
	}
	return idx.sumCount / float64(n1*n2)
}

// overlapBlock pairs a descriptor with the bin1 tile it belongs to,
// so the sorted iterator can group blocks sharing a row of tiles.
type overlapBlock struct {
	BlockDescriptor
	bin1Tile uint64
}

// overlapping returns the blocks intersecting the relative-bin
// rectangle [bin1Lo, bin1Hi] x [bin2Lo, bin2Hi] (inclusive), ordered by
// (bin1 tile, block id).
func (idx *blockIndex) overlapping(bin1Lo, bin1Hi, bin2Lo, bin2Hi uint64) []overlapBlock {
	if idx.empty() {
		return nil
	}
	if idx.version > 8 && idx.isIntra() {
		return idx.overlappingV9Intra(bin1Lo, bin1Hi, bin2Lo, bin2Hi)
	}

	side := idx.blockBinCount
	col1 := bin1Lo / side
	col2 := (bin1Hi + 1) / side
	row1 := bin2Lo / side
	row2 := (bin2Hi + 1) / side

	var out []overlapBlock
	for r := row1; r <= row2; r++ {
		for c := col1; c <= col2; c++ {
			id := r*idx.blockColumnCount + c
			if desc, ok := idx.byID[id]; ok {
				out = append(out, overlapBlock{desc, c})
			}
		}
	}
	sortOverlap(out)
	return out
}

func (idx *blockIndex) overlappingV9Intra(bin1Lo, bin1Hi, bin2Lo, bin2Hi uint64) []overlapBlock {
	side := float64(idx.blockBinCount)

	padLo := (bin1Lo + bin2Lo) / 2 / idx.blockBinCount
	padHi := (bin1Hi+bin2Hi)/2/idx.blockBinCount + 1

	depthOf := func(a, b uint64) uint64 {
		var dist float64
		if a > b {
			dist = float64(a - b)
		} else {
			dist = float64(b - a)
		}
		return uint64(math.Log2(1 + dist/math.Sqrt2/side))
	}
	nearest := depthOf(bin1Lo, bin2Hi)
	furthest := depthOf(bin1Hi, bin2Lo)
	if nearest > furthest {
		nearest, furthest = furthest, nearest
	}
	if bin2Hi >= bin1Lo && bin1Hi >= bin2Lo {
		// The rectangle touches the diagonal.
		nearest = 0
	}

	var out []overlapBlock
	for depth := nearest; depth <= furthest; depth++ {
		for pad := padLo; pad <= padHi; pad++ {
			id := depth*idx.blockColumnCount + pad
			if desc, ok := idx.byID[id]; ok {
				out = append(out, overlapBlock{desc, pad})
			}
		}
	}
	sortOverlap(out)
	return out
}

func sortOverlap(blocks []overlapBlock) {
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].bin1Tile != blocks[j].bin1Tile {
			return blocks[i].bin1Tile < blocks[j].bin1Tile
		}
		return blocks[i].ID < blocks[j].ID
	})
}

// blockID maps one pixel (relative bins) to its block id. It is the
// inverse of the overlap queries above and is shared with the writer so
// that written files index exactly the way the reader expects.
func blockID(version int32, intra bool, blockBinCount, blockColumnCount, bin1, bin2 uint64) uint64 {
	if version > 8 && intra {
		pad := (bin1 + bin2) / 2 / blockBinCount
		var dist float64
		if bin2 > bin1 {
			dist = float64(bin2 - bin1)
		} else {
			dist = float64(bin1 - bin2)
		}
		depth := uint64(math.Log2(1 + dist/math.Sqrt2/float64(blockBinCount)))
		return depth*blockColumnCount + pad
	}
	return (bin2/blockBinCount)*blockColumnCount + bin1/blockBinCount
}
