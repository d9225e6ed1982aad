package hic

import (
	"sort"

	"github.com/genomekit/hic/pixel"
)

// pixelIterator streams the pixels of one selector. Depending on the
// file version and query it runs in one of three modes:
//
//   - unsorted: blocks in descriptor order, pixels in on-disk order;
//   - sorted row groups (v6 files and inter-chromosomal queries):
//     decode all blocks sharing a bin1 tile, clip, sort, yield;
//   - sorted intra sweep (v7 and later): a chunked row cursor over the
//     block grid with a per-iterator blacklist of blocks known not to
//     overlap the query.
//
// All modes hold at most one chunk of pixels; dropping the iterator
// releases every buffer.
type pixelIterator struct {
	sel    *PixelSelector
	sorted bool

	buffer []pixel.ThinPixel[float32]
	i      int
	err    error
	done   bool

	// clip bounds, relative bins
	bin1Lb, bin1Ub uint64
	bin2Lb, bin2Ub uint64
	// global offsets added after the transform
	bin1Offset, bin2Offset uint64

	// unsorted + sorted row-group modes
	overlap  []overlapBlock
	blockPos int

	// sorted intra sweep (v7 and later)
	v9Sweep    bool
	bin1Cursor uint64
	blacklist  map[uint64]bool

	// set by JumpToNextRow: pixels of this bin1 row are skipped
	skipRow uint64
	skip    bool
}

func newPixelIterator(sel *PixelSelector, sorted bool) *pixelIterator {
	it := &pixelIterator{
		sel:        sel,
		sorted:     sorted,
		bin1Lb:     sel.coord1.Bin1.RelID,
		bin1Ub:     sel.coord1.Bin2.RelID,
		bin2Lb:     sel.coord2.Bin1.RelID,
		bin2Ub:     sel.coord2.Bin2.RelID,
		bin1Offset: sel.reader.bins.ChromOffset(sel.Chrom1()),
		bin2Offset: sel.reader.bins.ChromOffset(sel.Chrom2()),
	}
	if sel.Empty() {
		it.done = true
		return it
	}
	idx := sel.reader.index
	if sorted && idx.version > 6 && sel.IsIntra() {
		it.v9Sweep = true
		it.bin1Cursor = it.bin1Lb
		it.blacklist = make(map[uint64]bool)
	} else {
		it.overlap = idx.overlapping(it.bin1Lb, it.bin1Ub, it.bin2Lb, it.bin2Ub)
		if len(it.overlap) == 0 {
			it.done = true
		}
	}
	return it
}

func (it *pixelIterator) Err() error { return it.err }

func (it *pixelIterator) Pixel() pixel.ThinPixel[float32] { return it.buffer[it.i-1] }

func (it *pixelIterator) Next() bool {
	for {
		if it.i < len(it.buffer) {
			p := it.buffer[it.i]
			it.i++
			if it.skip && p.Bin1ID == it.skipRow {
				continue
			}
			it.skip = false
			return true
		}
		if it.done {
			return false
		}
		it.readNextChunk()
	}
}

// JumpToNextRow drops the remaining pixels of the current bin1 row.
// Only meaningful on sorted iterators.
func (it *pixelIterator) JumpToNextRow() {
	if it.i == 0 || it.i > len(it.buffer) {
		return
	}
	it.skipRow = it.buffer[it.i-1].Bin1ID
	it.skip = true
}

func (it *pixelIterator) fail(err error) {
	it.err = err
	it.buffer = nil
	it.i = 0
	it.done = true
}

func (it *pixelIterator) readNextChunk() {
	if it.v9Sweep {
		it.readNextChunkV9IntraSorted()
		return
	}
	if it.sorted {
		it.readNextChunkSorted()
		return
	}
	it.readNextChunkUnsorted()
}

// appendClipped decodes, clips, transforms, and offsets the pixels of
// one block into the chunk buffer.
func (it *pixelIterator) appendClipped(blk []pixel.ThinPixel[float32]) {
	for _, p := range blk {
		if p.Bin1ID < it.bin1Lb || p.Bin1ID > it.bin1Ub || p.Bin2ID < it.bin2Lb || p.Bin2ID > it.bin2Ub {
			continue
		}
		pt := it.sel.transformPixel(p)
		pt.Bin1ID += it.bin1Offset
		pt.Bin2ID += it.bin2Offset
		it.buffer = append(it.buffer, pt)
	}
}

func (it *pixelIterator) readNextChunkUnsorted() {
	if it.blockPos >= len(it.overlap) {
		it.done = true
		return
	}
	it.buffer = it.buffer[:0]
	it.i = 0

	blk, err := it.sel.reader.read(it.overlap[it.blockPos].BlockDescriptor, false)
	it.blockPos++
	if err != nil {
		it.fail(err)
		return
	}
	it.appendClipped(blk)
}

func (it *pixelIterator) readNextChunkSorted() {
	if it.blockPos >= len(it.overlap) {
		it.done = true
		return
	}
	it.buffer = it.buffer[:0]
	it.i = 0

	// Decode the whole group of blocks sharing the current bin1 tile:
	// any pixel of the tile's rows may come from any of them, so the
	// group sorts as a unit.
	tile := it.overlap[it.blockPos].bin1Tile
	for it.blockPos < len(it.overlap) && it.overlap[it.blockPos].bin1Tile == tile {
		blk, err := it.sel.reader.read(it.overlap[it.blockPos].BlockDescriptor, false)
		it.blockPos++
		if err != nil {
			it.fail(err)
			return
		}
		it.appendClipped(blk)
	}

	sortPixelBuffer(it.buffer)
}

// chunkSize returns the number of bin1 rows covered per sweep step:
// about 0.5% of the query's row span, at most one tile side.
func (it *pixelIterator) chunkSize() uint64 {
	span := it.bin1Ub - it.bin1Lb
	n := uint64(0.005 * float64(span))
	if side := it.sel.reader.index.blockBinCount; n > side {
		n = side
	}
	if n == 0 {
		n = 1
	}
	return n
}

func (it *pixelIterator) readNextChunkV9IntraSorted() {
	if it.bin1Cursor > it.bin1Ub {
		it.done = true
		return
	}
	it.buffer = it.buffer[:0]
	it.i = 0

	bin1Last := it.bin1Cursor + it.chunkSize() - 1
	if bin1Last > it.bin1Ub {
		bin1Last = it.bin1Ub
	}

	blocks := it.sel.reader.index.overlapping(it.bin1Cursor, bin1Last, it.bin2Lb, it.bin2Ub)
	for _, blki := range blocks {
		if it.blacklist[blki.ID] {
			continue
		}
		blk, err := it.sel.reader.read(blki.BlockDescriptor, true)
		if err != nil {
			it.fail(err)
			return
		}
		blockOverlapsQuery := false
		for _, p := range blk {
			overlapsQuery := p.Bin1ID >= it.bin1Cursor && p.Bin1ID <= it.bin1Ub &&
				p.Bin2ID >= it.bin2Lb && p.Bin2ID <= it.bin2Ub
			blockOverlapsQuery = blockOverlapsQuery || overlapsQuery
			if !overlapsQuery || p.Bin1ID > bin1Last {
				continue
			}
			pt := it.sel.transformPixel(p)
			pt.Bin1ID += it.bin1Offset
			pt.Bin2ID += it.bin2Offset
			it.buffer = append(it.buffer, pt)
		}
		if !blockOverlapsQuery {
			// The sweep will never need this block again.
			it.sel.reader.evict(blki.ID)
			it.blacklist[blki.ID] = true
		}
	}

	sortPixelBuffer(it.buffer)
	it.bin1Cursor = bin1Last + 1
}

func sortPixelBuffer(buf []pixel.ThinPixel[float32]) {
	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].Bin1ID != buf[b].Bin1ID {
			return buf[a].Bin1ID < buf[b].Bin1ID
		}
		return buf[a].Bin2ID < buf[b].Bin2ID
	})
}
