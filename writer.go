package hic

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/klauspost/compress/zlib"

	"github.com/genomekit/hic/genome"
	"github.com/genomekit/hic/pixel"
)

// writerVersion is the only version the writer emits.
const writerVersion = 9

// writerBlockBinCount is the tile side length used for written block
// grids, capped to the chromosome size for small matrices.
const writerBlockBinCount = 1024

// Writer produces a version 9 block-compressed file holding observed,
// unnormalized counts at a single BP resolution. It is single-producer:
// feed pixels (in any order, bin1 <= bin2), then Close.
//
// Pixels are grouped per chromosome pair in memory and written out on
// Close, followed by the master index.
type Writer struct {
	ws       io.WriteSeeker
	ref      *genome.Reference
	bins     *genome.BinTable
	genomeID string

	// pairs[key] maps block id to its pixels, relative-bin addressed.
	pairs  map[pairKey]map[uint64][]pixel.ThinPixel[float32]
	sums   map[pairKey]float64
	zw     *zlib.Writer
	closed bool
}

type pairKey struct {
	chrom1ID, chrom2ID uint32
}

// NewWriter starts a file on ws. genomeID may be empty.
func NewWriter(ws io.WriteSeeker, ref *genome.Reference, resolution uint32, genomeID string) (*Writer, error) {
	bins, err := genome.NewBinTable(ref, resolution)
	if err != nil {
		return nil, err
	}
	if genomeID == "" {
		genomeID = "unknown"
	}
	zw, err := zlib.NewWriterLevel(nil, zlib.BestSpeed)
	if err != nil {
		return nil, err
	}
	return &Writer{
		ws:       ws,
		ref:      ref,
		bins:     bins,
		genomeID: genomeID,
		pairs:    make(map[pairKey]map[uint64][]pixel.ThinPixel[float32]),
		sums:     make(map[pairKey]float64),
		zw:       zw,
	}, nil
}

// Add appends one pixel with global bin ids.
func (w *Writer) Add(p pixel.ThinPixel[float32]) error {
	if w.closed {
		return fmt.Errorf("hic: Add after Close")
	}
	if p.Bin1ID > p.Bin2ID {
		return fmt.Errorf("%w: pixel (%d, %d) is below the diagonal", ErrInvalidQuery, p.Bin1ID, p.Bin2ID)
	}
	b1, err := w.bins.At(p.Bin1ID)
	if err != nil {
		return err
	}
	b2, err := w.bins.At(p.Bin2ID)
	if err != nil {
		return err
	}

	key := pairKey{b1.Chrom.ID, b2.Chrom.ID}
	geom := w.gridFor(b1.Chrom, b2.Chrom)
	id := blockID(writerVersion, key.chrom1ID == key.chrom2ID, geom.blockBinCount, geom.blockColumnCount, b1.RelID, b2.RelID)

	blocks, ok := w.pairs[key]
	if !ok {
		blocks = make(map[uint64][]pixel.ThinPixel[float32])
		w.pairs[key] = blocks
	}
	blocks[id] = append(blocks[id], pixel.ThinPixel[float32]{Bin1ID: b1.RelID, Bin2ID: b2.RelID, Count: p.Count})
	w.sums[key] += float64(p.Count)
	return nil
}

// AddPixels drains an iterator into the writer.
func (w *Writer) AddPixels(it pixel.Iter[float32]) error {
	for it.Next() {
		if err := w.Add(it.Pixel()); err != nil {
			return err
		}
	}
	return it.Err()
}

type gridGeom struct {
	blockBinCount    uint64
	blockColumnCount uint64
}

func (w *Writer) gridFor(chrom1, chrom2 genome.Chromosome) gridGeom {
	n := w.bins.ChromBins(chrom1)
	if n2 := w.bins.ChromBins(chrom2); n2 > n {
		n = n2
	}
	side := uint64(writerBlockBinCount)
	if n < side {
		side = n
	}
	if side == 0 {
		side = 1
	}
	return gridGeom{blockBinCount: side, blockColumnCount: n/side + 1}
}

// Close writes the body and master index and backpatches the header.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writeHeader(); err != nil {
		return err
	}

	keys := make([]pairKey, 0, len(w.pairs))
	for key := range w.pairs {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].chrom1ID != keys[j].chrom1ID {
			return keys[i].chrom1ID < keys[j].chrom1ID
		}
		return keys[i].chrom2ID < keys[j].chrom2ID
	})

	type masterEntry struct {
		key    pairKey
		offset int64
		size   int32
	}
	entries := make([]masterEntry, 0, len(keys))
	for _, key := range keys {
		offset, size, err := w.writeMatrix(key)
		if err != nil {
			return err
		}
		entries = append(entries, masterEntry{key, offset, size})
	}

	masterOffset, err := w.tell()
	if err != nil {
		return err
	}

	// nBytes is read but unused; nEntries drives the scan.
	if err := w.writeInt64(0); err != nil {
		return err
	}
	if err := w.writeInt32(int32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := w.writeCString(fmt.Sprintf("%d_%d", e.key.chrom1ID, e.key.chrom2ID)); err != nil {
			return err
		}
		if err := w.writeInt64(e.offset); err != nil {
			return err
		}
		if err := w.writeInt32(e.size); err != nil {
			return err
		}
	}

	// Empty expected-value sections (unnormalized, normalized) and an
	// empty normalization vector index.
	for i := 0; i < 3; i++ {
		if err := w.writeInt32(0); err != nil {
			return err
		}
	}

	// Backpatch the master index offset (right after "HIC\0" + i32
	// version).
	if _, err := w.ws.Seek(int64(len(Magic))+4, io.SeekStart); err != nil {
		return err
	}
	return w.writeInt64(masterOffset)
}

func (w *Writer) writeHeader() error {
	if _, err := w.ws.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := w.ws.Write(Magic[:]); err != nil {
		return err
	}
	if err := w.writeInt32(writerVersion); err != nil {
		return err
	}
	if err := w.writeInt64(-1); err != nil { // master index offset, backpatched
		return err
	}
	if err := w.writeCString(w.genomeID); err != nil {
		return err
	}
	if err := w.writeInt64(-1); err != nil { // nviPosition
		return err
	}
	if err := w.writeInt64(-1); err != nil { // nviLength
		return err
	}
	if err := w.writeInt32(0); err != nil { // attributes
		return err
	}

	chroms := w.ref.Chromosomes()
	if err := w.writeInt32(int32(len(chroms))); err != nil {
		return err
	}
	for _, c := range chroms {
		if err := w.writeCString(c.Name); err != nil {
			return err
		}
		if err := w.writeInt64(int64(c.Length)); err != nil {
			return err
		}
	}

	if err := w.writeInt32(1); err != nil { // resolutions
		return err
	}
	if err := w.writeInt32(int32(w.bins.Resolution())); err != nil {
		return err
	}
	return w.writeInt32(0) // fragment resolutions
}

// writeMatrix writes the blocks of one pair followed by its matrix
// record and returns the record's offset and size.
func (w *Writer) writeMatrix(key pairKey) (int64, int32, error) {
	chrom1, err := w.ref.At(key.chrom1ID)
	if err != nil {
		return 0, 0, err
	}
	chrom2, err := w.ref.At(key.chrom2ID)
	if err != nil {
		return 0, 0, err
	}
	geom := w.gridFor(chrom1, chrom2)
	blocks := w.pairs[key]

	ids := make([]uint64, 0, len(blocks))
	for id := range blocks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	type blockEntry struct {
		id     uint64
		offset int64
		size   int32
	}
	written := make([]blockEntry, 0, len(ids))
	for _, id := range ids {
		offset, err := w.tell()
		if err != nil {
			return 0, 0, err
		}
		n, err := w.writeBlock(blocks[id])
		if err != nil {
			return 0, 0, err
		}
		written = append(written, blockEntry{id, offset, int32(n)})
	}

	recordOffset, err := w.tell()
	if err != nil {
		return 0, 0, err
	}
	if err := w.writeInt32(int32(key.chrom1ID)); err != nil {
		return 0, 0, err
	}
	if err := w.writeInt32(int32(key.chrom2ID)); err != nil {
		return 0, 0, err
	}
	if err := w.writeInt32(1); err != nil { // nResolutions
		return 0, 0, err
	}
	if err := w.writeCString(UnitBP.String()); err != nil {
		return 0, 0, err
	}
	if err := w.writeInt32(0); err != nil { // oldIndex
		return 0, 0, err
	}
	if err := w.writeFloat32(float32(w.sums[key])); err != nil {
		return 0, 0, err
	}
	for i := 0; i < 3; i++ { // occupiedCellCount, percent5, percent95
		if err := w.writeFloat32(0); err != nil {
			return 0, 0, err
		}
	}
	if err := w.writeInt32(int32(w.bins.Resolution())); err != nil {
		return 0, 0, err
	}
	if err := w.writeInt32(int32(geom.blockBinCount)); err != nil {
		return 0, 0, err
	}
	if err := w.writeInt32(int32(geom.blockColumnCount)); err != nil {
		return 0, 0, err
	}
	if err := w.writeInt32(int32(len(written))); err != nil {
		return 0, 0, err
	}
	for _, b := range written {
		if err := w.writeInt32(int32(b.id)); err != nil {
			return 0, 0, err
		}
		if err := w.writeInt64(b.offset); err != nil {
			return 0, 0, err
		}
		if err := w.writeInt32(b.size); err != nil {
			return 0, 0, err
		}
	}

	end, err := w.tell()
	if err != nil {
		return 0, 0, err
	}
	return recordOffset, int32(end - recordOffset), nil
}

// writeBlock encodes one block as type 1 (row-sparse, rows keyed by
// bin2) with 32-bit bins and float counts, zlib-compressed.
func (w *Writer) writeBlock(pixels []pixel.ThinPixel[float32]) (int, error) {
	sort.Slice(pixels, func(i, j int) bool {
		if pixels[i].Bin2ID != pixels[j].Bin2ID {
			return pixels[i].Bin2ID < pixels[j].Bin2ID
		}
		return pixels[i].Bin1ID < pixels[j].Bin1ID
	})

	var body []byte
	put32 := func(v int32) {
		body = binary.LittleEndian.AppendUint32(body, uint32(v))
	}
	put8 := func(v byte) { body = append(body, v) }

	put32(int32(len(pixels)))
	put32(0) // bin1 offset
	put32(0) // bin2 offset
	put8(1)  // float counts
	put8(1)  // 32-bit bin1 deltas
	put8(1)  // 32-bit bin2 deltas
	put8(1)  // block type

	// Count rows.
	nRows := int32(0)
	for i, p := range pixels {
		if i == 0 || p.Bin2ID != pixels[i-1].Bin2ID {
			nRows++
		}
	}
	put32(nRows)
	for i := 0; i < len(pixels); {
		j := i
		for j < len(pixels) && pixels[j].Bin2ID == pixels[i].Bin2ID {
			j++
		}
		put32(int32(pixels[i].Bin2ID))
		put32(int32(j - i))
		for ; i < j; i++ {
			put32(int32(pixels[i].Bin1ID))
			body = binary.LittleEndian.AppendUint32(body, math.Float32bits(pixels[i].Count))
		}
	}

	cw := &countingWriter{w: w.ws}
	w.zw.Reset(cw)
	if _, err := w.zw.Write(body); err != nil {
		return 0, err
	}
	if err := w.zw.Flush(); err != nil {
		return 0, err
	}
	if err := w.zw.Close(); err != nil {
		return 0, err
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += n
	return n, err
}

func (w *Writer) tell() (int64, error) {
	return w.ws.Seek(0, io.SeekCurrent)
}

func (w *Writer) writeInt32(v int32) error {
	return binary.Write(w.ws, binary.LittleEndian, v)
}

func (w *Writer) writeInt64(v int64) error {
	return binary.Write(w.ws, binary.LittleEndian, v)
}

func (w *Writer) writeFloat32(v float32) error {
	return binary.Write(w.ws, binary.LittleEndian, v)
}

func (w *Writer) writeCString(s string) error {
	if _, err := io.WriteString(w.ws, s); err != nil {
		return err
	}
	_, err := w.ws.Write([]byte{0})
	return err
}
