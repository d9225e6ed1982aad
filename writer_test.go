package hic

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/genomekit/hic/genome"
	"github.com/genomekit/hic/pixel"
)

// Merging a file with a copy of itself must double every count and
// leave the pixel set unchanged.
func TestMergeRoundTrip(t *testing.T) {
	t.Parallel()
	path, want := writeTestHic(t)

	f1, err := Open(path, testResolution)
	if err != nil {
		t.Fatal(err)
	}
	defer f1.Close()
	f2, err := Open(path, testResolution)
	if err != nil {
		t.Fatal(err)
	}
	defer f2.Close()

	out := filepath.Join(t.TempDir(), "merged.hic")
	if err := MergeToFile(out, []*File{f1, f2}); err != nil {
		t.Fatal(err)
	}

	merged, err := Open(out, testResolution)
	if err != nil {
		t.Fatal(err)
	}
	defer merged.Close()

	sel, err := merged.Fetch(NormNone)
	if err != nil {
		t.Fatal(err)
	}
	got, err := pixel.ReadAll[float32](sel.Pixels(true))
	if err != nil {
		t.Fatal(err)
	}

	doubled := make([]pixel.ThinPixel[float32], len(want))
	for i, p := range want {
		doubled[i] = pixel.ThinPixel[float32]{Bin1ID: p.Bin1ID, Bin2ID: p.Bin2ID, Count: 2 * p.Count}
	}
	if diff := cmp.Diff(doubled, got); diff != "" {
		t.Errorf("merged pixels (-want +got):\n%s", diff)
	}
}

func TestMergeValidatesInputs(t *testing.T) {
	t.Parallel()
	path, _ := writeTestHic(t)
	f, err := Open(path, testResolution)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := MergeToFile(filepath.Join(t.TempDir(), "out.hic"), []*File{f}); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("merge of 1 file: err = %v, want ErrInvalidQuery", err)
	}
}

func TestWriterRejectsLowerTriangle(t *testing.T) {
	t.Parallel()
	ref := testReference(t)
	w, err := NewWriter(&discardSeeker{}, ref, testResolution, "")
	if err != nil {
		t.Fatal(err)
	}
	err = w.Add(pixel.ThinPixel[float32]{Bin1ID: 5, Bin2ID: 2, Count: 1})
	if !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("Add below diagonal: err = %v, want ErrInvalidQuery", err)
	}
}

type discardSeeker struct{ off int64 }

func (d *discardSeeker) Write(p []byte) (int, error) {
	d.off += int64(len(p))
	return len(p), nil
}

func (d *discardSeeker) Seek(off int64, whence int) (int64, error) {
	d.off = off
	return d.off, nil
}

func appendI32(buf []byte, vs ...int32) []byte {
	for _, v := range vs {
		buf = append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	return buf
}

func TestDecodeV6Block(t *testing.T) {
	t.Parallel()
	var body []byte
	body = appendI32(body, 2)
	body = appendI32(body, 3, 7)
	body = appendI32(body, int32(math.Float32bits(1.5)))
	body = appendI32(body, 4, 4)
	body = appendI32(body, int32(math.Float32bits(2)))

	got, err := decodeBlock(body, 6)
	if err != nil {
		t.Fatal(err)
	}
	want := []pixel.ThinPixel[float32]{
		{Bin1ID: 3, Bin2ID: 7, Count: 1.5},
		{Bin1ID: 4, Bin2ID: 4, Count: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("v6 block (-want +got):\n%s", diff)
	}
}

func TestDecodeType2Block(t *testing.T) {
	t.Parallel()
	// Header: nRecords, bin offsets, flag bytes (short counts,
	// 32-bit bins), type 2; body: 4 points in a 2-wide grid with one
	// sentinel.
	var body []byte
	body = appendI32(body, 3)      // nRecords
	body = appendI32(body, 10, 20) // bin1/bin2 offsets
	body = append(body, 0)         // short counts
	body = append(body, 1, 1)      // 32-bit bins (unused by type 2)
	body = append(body, 2)         // block type
	body = appendI32(body, 4)      // nPts
	body = append(body, 2, 0)      // w = 2
	for _, v := range []int16{5, math.MinInt16, 6, 7} {
		body = append(body, byte(v), byte(uint16(v)>>8))
	}

	got, err := decodeBlock(body, 9)
	if err != nil {
		t.Fatal(err)
	}
	want := []pixel.ThinPixel[float32]{
		{Bin1ID: 10, Bin2ID: 20, Count: 5},
		{Bin1ID: 10, Bin2ID: 21, Count: 6},
		{Bin1ID: 11, Bin2ID: 21, Count: 7},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("type 2 block (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsUnknownBlockType(t *testing.T) {
	t.Parallel()
	var body []byte
	body = appendI32(body, 1)
	body = appendI32(body, 0, 0)
	body = append(body, 1, 1, 1)
	body = append(body, 9) // bogus block type

	if _, err := decodeBlock(body, 9); !errors.Is(err, ErrCorruptedBlock) {
		t.Errorf("unknown block type: err = %v, want ErrCorruptedBlock", err)
	}
}

func TestDecodeTruncatedBlock(t *testing.T) {
	t.Parallel()
	var body []byte
	body = appendI32(body, 100) // claims 100 records, then ends
	if _, err := decodeBlock(body, 6); !errors.Is(err, ErrCorruptedBlock) {
		t.Errorf("truncated block: err = %v, want ErrCorruptedBlock", err)
	}
}

func TestCorruptedBlockAbortsQueryOnly(t *testing.T) {
	t.Parallel()
	path, _ := writeTestHic(t)
	f, err := Open(path, testResolution)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	chromA, _ := f.Chromosomes().ByName("chrA")
	sel, err := f.FetchChromPair(chromA, 0, chromA.Length, chromA, 0, chromA.Length, NormNone)
	if err != nil {
		t.Fatal(err)
	}

	// Corrupt the block in memory through the descriptor, then check
	// that the iterator fails without poisoning the file.
	desc := sel.reader.index.sorted[0]
	broken := *sel
	brokenIdx := *sel.reader.index
	brokenIdx.byID = map[uint64]BlockDescriptor{
		desc.ID: {ID: desc.ID, FileOffset: desc.FileOffset + 7, CompressedSize: desc.CompressedSize},
	}
	brokenIdx.sorted = []BlockDescriptor{brokenIdx.byID[desc.ID]}
	broken.reader = &blockReader{r: sel.reader.r, index: &brokenIdx, bins: sel.reader.bins, cache: sel.reader.cache}
	broken.footer = &Footer{
		Chrom1: sel.footer.Chrom1, Chrom2: sel.footer.Chrom2,
		Type: sel.footer.Type, Normalization: sel.footer.Normalization,
		Unit: sel.footer.Unit, Resolution: sel.footer.Resolution,
		index: &brokenIdx,
	}

	it := broken.Pixels(true)
	for it.Next() {
	}
	if err := it.Err(); !errors.Is(err, ErrCorruptedBlock) {
		t.Errorf("iterator over corrupted block: err = %v, want ErrCorruptedBlock", err)
	}

	// The file remains usable for unrelated queries.
	f.ClearCache()
	good, err := pixel.ReadAll[float32](sel.Pixels(true))
	if err != nil {
		t.Fatalf("query after corrupted-block failure: %v", err)
	}
	if len(good) == 0 {
		t.Error("query after corrupted-block failure returned no pixels")
	}
}

func TestWriterBlockGrid(t *testing.T) {
	t.Parallel()
	// A chromosome wider than one tile exercises the multi-block
	// path: 3000 bins at the writer's 1024-bin tile side.
	ref, err := genome.NewReference([]string{"chrBig"}, []uint32{3_000_000})
	if err != nil {
		t.Fatal(err)
	}
	bins, err := genome.NewBinTable(ref, 1000)
	if err != nil {
		t.Fatal(err)
	}

	var pixels []pixel.ThinPixel[float32]
	for i := uint64(0); i < bins.Len(); i += 97 {
		for j := i; j < bins.Len(); j += 531 {
			pixels = append(pixels, pixel.ThinPixel[float32]{Bin1ID: i, Bin2ID: j, Count: float32(1 + i%3)})
		}
	}
	sort.Slice(pixels, func(a, b int) bool { return pixels[a].Less(pixels[b]) })

	path := filepath.Join(t.TempDir(), "big.hic")
	func() {
		out, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		defer out.Close()
		w, err := NewWriter(out, ref, 1000, "")
		if err != nil {
			t.Fatal(err)
		}
		if err := w.AddPixels(pixel.NewSliceIter(pixels)); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
	}()

	f, err := Open(path, 1000)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	chrom, _ := f.Chromosomes().ByName("chrBig")
	sel, err := f.FetchChromPair(chrom, 0, chrom.Length, chrom, 0, chrom.Length, NormNone)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(sel.reader.index.sorted); got < 2 {
		t.Fatalf("big matrix stored in %d block(s), expected several", got)
	}

	got, err := pixel.ReadAll[float32](sel.Pixels(true))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(pixels, got); diff != "" {
		t.Errorf("multi-block pixels (-want +got):\n%s", diff)
	}

	// A narrow sub-query against the diagonal grid.
	sub, err := f.FetchChromPair(chrom, 1_500_000, 1_600_000, chrom, 1_500_000, 2_900_000, NormNone)
	if err != nil {
		t.Fatal(err)
	}
	subGot, err := pixel.ReadAll[float32](sub.Pixels(true))
	if err != nil {
		t.Fatal(err)
	}
	var subWant []pixel.ThinPixel[float32]
	for _, p := range pixels {
		if p.Bin1ID >= 1500 && p.Bin1ID <= 1599 && p.Bin2ID >= 1500 && p.Bin2ID <= 2899 {
			subWant = append(subWant, p)
		}
	}
	if diff := cmp.Diff(subWant, subGot); diff != "" {
		t.Errorf("sub-query pixels (-want +got):\n%s", diff)
	}
}
