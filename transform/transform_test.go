package transform

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/genomekit/hic/genome"
	"github.com/genomekit/hic/pixel"
)

func thin(bin1, bin2 uint64, count float64) pixel.ThinPixel[float64] {
	return pixel.ThinPixel[float64]{Bin1ID: bin1, Bin2ID: bin2, Count: count}
}

func sortedPixels(pixels []pixel.ThinPixel[float64]) []pixel.ThinPixel[float64] {
	out := append([]pixel.ThinPixel[float64](nil), pixels...)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func TestMergerSumsCollisions(t *testing.T) {
	t.Parallel()
	a := []pixel.ThinPixel[float64]{thin(0, 0, 1), thin(0, 2, 2), thin(3, 3, 4)}
	b := []pixel.ThinPixel[float64]{thin(0, 0, 5), thin(1, 1, 1), thin(3, 3, 1)}
	c := []pixel.ThinPixel[float64]{thin(0, 2, 1)}

	m, err := NewMerger[float64](
		pixel.NewSliceIter(a), pixel.NewSliceIter(b), pixel.NewSliceIter(c),
	)
	if err != nil {
		t.Fatal(err)
	}
	got, err := pixel.ReadAll[float64](m)
	if err != nil {
		t.Fatal(err)
	}

	want := []pixel.ThinPixel[float64]{
		thin(0, 0, 6), thin(0, 2, 3), thin(1, 1, 1), thin(3, 3, 5),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merged pixels (-want +got):\n%s", diff)
	}
}

// The multiset the merger produces must equal the coordinate-wise sum
// aggregation of its inputs, and its output must be sorted.
func TestMergerAggregationProperty(t *testing.T) {
	t.Parallel()
	inputs := [][]pixel.ThinPixel[float64]{
		{thin(0, 1, 1), thin(0, 5, 2), thin(2, 2, 3), thin(9, 9, 1)},
		{thin(0, 1, 10), thin(1, 1, 1), thin(2, 2, 1), thin(2, 4, 7)},
		{},
		{thin(9, 9, 1)},
	}

	agg := map[[2]uint64]float64{}
	var sources []pixel.Iter[float64]
	for _, in := range inputs {
		for _, p := range in {
			agg[[2]uint64{p.Bin1ID, p.Bin2ID}] += p.Count
		}
		sources = append(sources, pixel.NewSliceIter(in))
	}

	m, err := NewMerger(sources...)
	if err != nil {
		t.Fatal(err)
	}
	got, err := pixel.ReadAll[float64](m)
	if err != nil {
		t.Fatal(err)
	}

	var want []pixel.ThinPixel[float64]
	for k, v := range agg {
		want = append(want, thin(k[0], k[1], v))
	}
	want = sortedPixels(want)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merged pixels (-want +got):\n%s", diff)
	}
}

func TestMergerNoSources(t *testing.T) {
	t.Parallel()
	m, err := NewMerger[float64]()
	if err != nil {
		t.Fatal(err)
	}
	if m.Next() {
		t.Error("Next() = true on empty merger")
	}
}

func testBins(t *testing.T, resolution uint32) *genome.BinTable {
	t.Helper()
	ref, err := genome.NewReference([]string{"chrA", "chrB"}, []uint32{1000, 600})
	if err != nil {
		t.Fatal(err)
	}
	bt, err := genome.NewBinTable(ref, resolution)
	if err != nil {
		t.Fatal(err)
	}
	return bt
}

// Coarsening by k twice must equal coarsening by k*k once.
func TestCoarsenCompose(t *testing.T) {
	t.Parallel()
	bins := testBins(t, 10) // chrA: 100 bins, chrB: 60 bins
	pixels := []pixel.ThinPixel[float64]{
		thin(0, 0, 1), thin(0, 3, 2), thin(1, 2, 3), thin(5, 99, 4),
		thin(99, 105, 5), thin(100, 103, 6), thin(110, 159, 7),
	}

	c1, err := NewCoarsener[float64](pixel.NewSliceIter(pixels), bins, 2)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := NewCoarsener[float64](c1, c1.Bins(), 2)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := pixel.ReadAll[float64](c2)
	if err != nil {
		t.Fatal(err)
	}

	c4, err := NewCoarsener[float64](pixel.NewSliceIter(pixels), bins, 4)
	if err != nil {
		t.Fatal(err)
	}
	once, err := pixel.ReadAll[float64](c4)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("coarsen(2) twice != coarsen(4) (-once +twice):\n%s", diff)
	}

	// Counts must be preserved.
	var total, coarseTotal float64
	for _, p := range pixels {
		total += p.Count
	}
	for _, p := range once {
		coarseTotal += p.Count
	}
	if total != coarseTotal {
		t.Errorf("coarsened total = %v, want %v", coarseTotal, total)
	}
}

func TestCoarsenRespectsChromBoundaries(t *testing.T) {
	t.Parallel()
	bins := testBins(t, 10) // chrB starts at bin 100
	pixels := []pixel.ThinPixel[float64]{
		thin(99, 100, 1), // chrA last bin x chrB first bin
	}
	c, err := NewCoarsener[float64](pixel.NewSliceIter(pixels), bins, 3)
	if err != nil {
		t.Fatal(err)
	}
	got, err := pixel.ReadAll[float64](c)
	if err != nil {
		t.Fatal(err)
	}
	// Coarse chrA has ceil(100/3) = 34 bins; bin 99 -> 33, chrB bin 0
	// stays the first chrB coarse bin (34).
	want := []pixel.ThinPixel[float64]{thin(33, 34, 1)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("coarsened pixels (-want +got):\n%s", diff)
	}
}

func TestDiagonalBand(t *testing.T) {
	t.Parallel()
	pixels := []pixel.ThinPixel[float64]{
		thin(0, 0, 1), thin(0, 1, 2), thin(0, 9, 3), thin(4, 5, 4), thin(4, 20, 5),
	}

	got, err := pixel.ReadAll[float64](NewDiagonalBand[float64](pixel.NewSliceIter(pixels), 2))
	if err != nil {
		t.Fatal(err)
	}
	want := []pixel.ThinPixel[float64]{thin(0, 0, 1), thin(0, 1, 2), thin(4, 5, 4)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("band pixels (-want +got):\n%s", diff)
	}

	// Width 0 yields an empty stream.
	it := NewDiagonalBand[float64](pixel.NewSliceIter(pixels), 0)
	if it.Next() {
		t.Error("band of width 0: Next() = true")
	}

	// A huge width passes everything through.
	all, err := pixel.ReadAll[float64](NewDiagonalBand[float64](pixel.NewSliceIter(pixels), 1<<40))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(pixels, all); diff != "" {
		t.Errorf("huge band (-want +got):\n%s", diff)
	}
}

func TestJoiner(t *testing.T) {
	t.Parallel()
	bins := testBins(t, 10)
	j := NewJoiner[float64](pixel.NewSliceIter([]pixel.ThinPixel[float64]{thin(1, 100, 7)}), bins)
	got, err := j.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("joined %d pixels, want 1", len(got))
	}
	p := got[0]
	if p.Bin1.Chrom.Name != "chrA" || p.Bin1.Start != 10 || p.Bin1.End != 20 {
		t.Errorf("bin1 = %s:%d-%d, want chrA:10-20", p.Bin1.Chrom.Name, p.Bin1.Start, p.Bin1.End)
	}
	if p.Bin2.Chrom.Name != "chrB" || p.Bin2.Start != 0 || p.Bin2.End != 10 {
		t.Errorf("bin2 = %s:%d-%d, want chrB:0-10", p.Bin2.Chrom.Name, p.Bin2.Start, p.Bin2.End)
	}
}

func TestToDenseMirror(t *testing.T) {
	t.Parallel()
	pixels := []pixel.ThinPixel[float64]{
		thin(0, 0, 1), thin(0, 2, 2), thin(1, 2, 3),
	}
	rect := Rect{NumRows: 3, NumCols: 3, SymmetricUpper: true}

	m, err := ToDense[float64](pixel.NewSliceIter(pixels), rect, Full)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if m.At(i, j) != m.At(j, i) {
				t.Errorf("matrix not symmetric at (%d, %d): %v vs %v", i, j, m.At(i, j), m.At(j, i))
			}
		}
	}
	if got := m.At(2, 0); got != 2 {
		t.Errorf("mirrored element (2,0) = %v, want 2", got)
	}

	// Upper and external mirroring must match span=full.
	upper, err := ToDense[float64](pixel.NewSliceIter(pixels), rect, UpperTriangle)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := upper.At(i, j)
			if want == 0 {
				want = upper.At(j, i)
			}
			if got := m.At(i, j); got != want {
				t.Errorf("full(%d,%d) = %v, mirrored upper = %v", i, j, got, want)
			}
		}
	}
}

// to-dense(to-sparse(x)) must equal to-dense(x).
func TestSparseDenseRoundTrip(t *testing.T) {
	t.Parallel()
	pixels := []pixel.ThinPixel[float64]{
		thin(0, 1, 1), thin(1, 3, 2), thin(2, 2, 3), thin(3, 3, 4),
	}
	rect := Rect{NumRows: 4, NumCols: 4, SymmetricUpper: true}

	for _, span := range []QuerySpan{UpperTriangle, LowerTriangle, Full} {
		dense, err := ToDense[float64](pixel.NewSliceIter(pixels), rect, span)
		if err != nil {
			t.Fatal(err)
		}
		sparse, err := ToSparse[float64](pixel.NewSliceIter(pixels), rect, span)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < rect.NumRows; i++ {
			for j := 0; j < rect.NumCols; j++ {
				if got, want := sparse.At(i, j), dense.At(i, j); got != want {
					t.Errorf("span %v: sparse(%d,%d) = %v, dense = %v", span, i, j, got, want)
				}
			}
		}
	}
}

// BG2 with span=full must carry the same rows as COO with span=full.
func TestFramesAgree(t *testing.T) {
	t.Parallel()
	bins := testBins(t, 10)
	pixels := []pixel.ThinPixel[float64]{
		thin(0, 1, 1), thin(1, 3, 2), thin(2, 2, 3),
	}

	coo, err := ToCOO[float64](pixel.NewSliceIter(pixels), true, Full)
	if err != nil {
		t.Fatal(err)
	}
	bg2, err := ToBG2[float64](pixel.NewSliceIter(pixels), bins, true, Full, true)
	if err != nil {
		t.Fatal(err)
	}

	if coo.Len() != bg2.Len() {
		t.Fatalf("COO has %d rows, BG2 has %d", coo.Len(), bg2.Len())
	}
	for i := 0; i < coo.Len(); i++ {
		if coo.Bin1IDs[i] != bg2.Bin1IDs[i] || coo.Bin2IDs[i] != bg2.Bin2IDs[i] || coo.Counts[i] != bg2.Counts[i] {
			t.Errorf("row %d: COO (%d, %d, %v) != BG2 (%d, %d, %v)", i,
				coo.Bin1IDs[i], coo.Bin2IDs[i], coo.Counts[i],
				bg2.Bin1IDs[i], bg2.Bin2IDs[i], bg2.Counts[i])
		}
		b1, err := bins.At(bg2.Bin1IDs[i])
		if err != nil {
			t.Fatal(err)
		}
		if bg2.Chrom1[i] != b1.Chrom.Name || bg2.Start1[i] != b1.Start {
			t.Errorf("row %d: BG2 coordinates %s:%d do not match bin %d", i, bg2.Chrom1[i], bg2.Start1[i], bg2.Bin1IDs[i])
		}
	}

	// Full span output is sorted by (bin1_id, bin2_id).
	for i := 1; i < coo.Len(); i++ {
		if coo.Bin1IDs[i] < coo.Bin1IDs[i-1] ||
			(coo.Bin1IDs[i] == coo.Bin1IDs[i-1] && coo.Bin2IDs[i] < coo.Bin2IDs[i-1]) {
			t.Errorf("COO rows %d and %d out of order", i-1, i)
		}
	}
}

func TestStats(t *testing.T) {
	t.Parallel()
	pixels := []pixel.ThinPixel[float64]{thin(0, 0, 1), thin(0, 1, 5), thin(1, 1, 3)}

	if got, err := Sum[float64](pixel.NewSliceIter(pixels)); err != nil || got != 9 {
		t.Errorf("Sum = %v, %v; want 9", got, err)
	}
	if got, err := Max[float64](pixel.NewSliceIter(pixels)); err != nil || got != 5 {
		t.Errorf("Max = %v, %v; want 5", got, err)
	}
	if got, err := Nnz[float64](pixel.NewSliceIter(pixels)); err != nil || got != 3 {
		t.Errorf("Nnz = %v, %v; want 3", got, err)
	}
	if got, err := Avg[float64](pixel.NewSliceIter(pixels)); err != nil || got != 3 {
		t.Errorf("Avg = %v, %v; want 3", got, err)
	}
}
