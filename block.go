package hic

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"

	"github.com/genomekit/hic/genome"
	"github.com/genomekit/hic/internal/cache"
	"github.com/genomekit/hic/pixel"
)

// binaryBuffer is a little-endian cursor over one decompressed block.
type binaryBuffer struct {
	buf []byte
	i   int
}

func (b *binaryBuffer) remaining() int { return len(b.buf) - b.i }

func (b *binaryBuffer) need(n int) error {
	if b.remaining() < n {
		return fmt.Errorf("%w: truncated record (%d bytes left, need %d)", ErrCorruptedBlock, b.remaining(), n)
	}
	return nil
}

func (b *binaryBuffer) uint8() (uint8, error) {
	if err := b.need(1); err != nil {
		return 0, err
	}
	v := b.buf[b.i]
	b.i++
	return v, nil
}

func (b *binaryBuffer) int16() (int16, error) {
	if err := b.need(2); err != nil {
		return 0, err
	}
	v := int16(binary.LittleEndian.Uint16(b.buf[b.i:]))
	b.i += 2
	return v, nil
}

func (b *binaryBuffer) int32() (int32, error) {
	if err := b.need(4); err != nil {
		return 0, err
	}
	v := int32(binary.LittleEndian.Uint32(b.buf[b.i:]))
	b.i += 4
	return v, nil
}

func (b *binaryBuffer) float32() (float32, error) {
	if err := b.need(4); err != nil {
		return 0, err
	}
	v := math.Float32frombits(binary.LittleEndian.Uint32(b.buf[b.i:]))
	b.i += 4
	return v, nil
}

// readAndInflate fetches and decompresses one block. Blocks are
// DEFLATE streams with a zlib wrapper.
func (r *fileReader) readAndInflate(desc BlockDescriptor) ([]byte, error) {
	if err := r.fs.Seek(desc.FileOffset); err != nil {
		return nil, err
	}
	compressed := make([]byte, desc.CompressedSize)
	if err := r.fs.Read(compressed); err != nil {
		return nil, err
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: block at offset %d: %v", ErrCorruptedBlock, desc.FileOffset, err)
	}
	defer zr.Close()

	out := bytes.NewBuffer(make([]byte, 0, 3*desc.CompressedSize))
	if _, err := io.Copy(out, zr); err != nil {
		return nil, fmt.Errorf("%w: block at offset %d: %v", ErrCorruptedBlock, desc.FileOffset, err)
	}
	return out.Bytes(), nil
}

// blockReader decodes interaction blocks for one (chrom pair,
// resolution) matrix, through the file's shared pixel cache.
type blockReader struct {
	r     *fileReader
	index *blockIndex
	bins  *genome.BinTable
	cache *cache.BlockCache
}

func (br *blockReader) key(id uint64) cache.BlockKey {
	return cache.BlockKey{Chrom1ID: br.index.chrom1.ID, Chrom2ID: br.index.chrom2.ID, BlockID: id}
}

// read returns the decoded pixels of one block, relative-bin
// addressed. The returned slice is shared with the cache and must not
// be modified.
func (br *blockReader) read(desc BlockDescriptor, cacheBlock bool) ([]pixel.ThinPixel[float32], error) {
	if blk := br.cache.Find(br.key(desc.ID)); blk != nil {
		return blk, nil
	}
	raw, err := br.r.readAndInflate(desc)
	if err != nil {
		return nil, err
	}
	blk, err := decodeBlock(raw, br.r.version())
	if err != nil {
		return nil, fmt.Errorf("%s:%s block %d: %w", br.index.chrom1.Name, br.index.chrom2.Name, desc.ID, err)
	}
	if cacheBlock {
		br.cache.Insert(br.key(desc.ID), blk)
	}
	return blk, nil
}

// readSize returns the number of pixels in a block without decoding
// them.
func (br *blockReader) readSize(desc BlockDescriptor) (int, error) {
	if blk := br.cache.Find(br.key(desc.ID)); blk != nil {
		return len(blk), nil
	}
	raw, err := br.r.readAndInflate(desc)
	if err != nil {
		return 0, err
	}
	bb := &binaryBuffer{buf: raw}
	n, err := bb.int32()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (br *blockReader) evict(id uint64) {
	br.cache.Erase(br.key(id))
}

// decodeBlock parses one decompressed block into pixels. Bin ids are
// widened to 64 bits here; downstream code never sees the 16/32-bit
// delta encodings.
func decodeBlock(raw []byte, version int32) ([]pixel.ThinPixel[float32], error) {
	bb := &binaryBuffer{buf: raw}
	nRecords, err := bb.int32()
	if err != nil {
		return nil, err
	}
	if nRecords < 0 {
		return nil, fmt.Errorf("%w: negative record count %d", ErrCorruptedBlock, nRecords)
	}

	if version == 6 {
		return decodeV6Block(bb, int(nRecords))
	}

	bin1Offset, err := bb.int32()
	if err != nil {
		return nil, err
	}
	bin2Offset, err := bb.int32()
	if err != nil {
		return nil, err
	}
	floatCountsFlag, err := bb.uint8()
	if err != nil {
		return nil, err
	}
	shortCounts := floatCountsFlag == 0

	// v9 may narrow bin deltas to 16 bits; earlier versions always do.
	shortBin1, shortBin2 := true, true
	if version > 8 {
		f1, err := bb.uint8()
		if err != nil {
			return nil, err
		}
		f2, err := bb.uint8()
		if err != nil {
			return nil, err
		}
		shortBin1 = f1 == 0
		shortBin2 = f2 == 0
	}

	blockType, err := bb.uint8()
	if err != nil {
		return nil, err
	}
	switch blockType {
	case 1:
		return decodeType1Block(bb, int(nRecords), bin1Offset, bin2Offset, shortBin1, shortBin2, shortCounts)
	case 2:
		return decodeType2Block(bb, bin1Offset, bin2Offset, shortCounts)
	default:
		return nil, fmt.Errorf("%w: unknown interaction type %d (supported types: 1, 2)", ErrCorruptedBlock, blockType)
	}
}

// decodeV6Block parses the flat (i32 bin1, i32 bin2, f32 count)
// records of version 6 files.
func decodeV6Block(bb *binaryBuffer, nRecords int) ([]pixel.ThinPixel[float32], error) {
	out := make([]pixel.ThinPixel[float32], 0, nRecords)
	for i := 0; i < nRecords; i++ {
		bin1, err := bb.int32()
		if err != nil {
			return nil, err
		}
		bin2, err := bb.int32()
		if err != nil {
			return nil, err
		}
		count, err := bb.float32()
		if err != nil {
			return nil, err
		}
		out = append(out, pixel.ThinPixel[float32]{Bin1ID: uint64(bin1), Bin2ID: uint64(bin2), Count: count})
	}
	return out, nil
}

// decodeType1Block parses the row-sparse encoding: rows keyed by bin2
// delta, columns by bin1 delta.
func decodeType1Block(bb *binaryBuffer, nRecords int, bin1Offset, bin2Offset int32, shortBin1, shortBin2, shortCounts bool) ([]pixel.ThinPixel[float32], error) {
	readBin := func(short bool) (int32, error) {
		if short {
			v, err := bb.int16()
			return int32(v), err
		}
		return bb.int32()
	}
	readCount := func() (float32, error) {
		if shortCounts {
			v, err := bb.int16()
			return float32(v), err
		}
		return bb.float32()
	}

	out := make([]pixel.ThinPixel[float32], 0, nRecords)
	nRows, err := readBin(shortBin2)
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < nRows; i++ {
		rowDelta, err := readBin(shortBin2)
		if err != nil {
			return nil, err
		}
		bin2 := bin2Offset + rowDelta
		nCols, err := readBin(shortBin1)
		if err != nil {
			return nil, err
		}
		for j := int32(0); j < nCols; j++ {
			colDelta, err := readBin(shortBin1)
			if err != nil {
				return nil, err
			}
			bin1 := bin1Offset + colDelta
			count, err := readCount()
			if err != nil {
				return nil, err
			}
			out = append(out, pixel.ThinPixel[float32]{Bin1ID: uint64(bin1), Bin2ID: uint64(bin2), Count: count})
		}
	}
	if len(out) != nRecords {
		return nil, fmt.Errorf("%w: expected %d records, decoded %d", ErrCorruptedBlock, nRecords, len(out))
	}
	return out, nil
}

// decodeType2Block parses the dense-with-sentinel encoding: counts
// laid out row-major in a w-wide grid, absent cells marked by
// math.MinInt16 (short counts) or NaN (float counts).
func decodeType2Block(bb *binaryBuffer, bin1Offset, bin2Offset int32, shortCounts bool) ([]pixel.ThinPixel[float32], error) {
	nPts, err := bb.int32()
	if err != nil {
		return nil, err
	}
	w16, err := bb.int16()
	if err != nil {
		return nil, err
	}
	w := int32(w16)
	if w <= 0 {
		return nil, fmt.Errorf("%w: type 2 block with width %d", ErrCorruptedBlock, w)
	}

	out := make([]pixel.ThinPixel[float32], 0, nPts)
	for i := int32(0); i < nPts; i++ {
		var count float32
		if shortCounts {
			v, err := bb.int16()
			if err != nil {
				return nil, err
			}
			if v == math.MinInt16 {
				continue
			}
			count = float32(v)
		} else {
			v, err := bb.float32()
			if err != nil {
				return nil, err
			}
			if math.IsNaN(float64(v)) {
				continue
			}
			count = v
		}
		row := i / w
		col := i - row*w
		out = append(out, pixel.ThinPixel[float32]{
			Bin1ID: uint64(bin1Offset + col),
			Bin2ID: uint64(bin2Offset + row),
			Count:  count,
		})
	}
	return out, nil
}
