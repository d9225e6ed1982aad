package hic

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/genomekit/hic/genome"
	"github.com/genomekit/hic/pixel"
	"github.com/genomekit/hic/transform"
)

// synthSelector builds a selector over a synthetic footer without any
// backing file, enough to exercise the count transform.
func synthSelector(t *testing.T, footer *Footer, intra bool) *PixelSelector {
	t.Helper()
	ref := testReference(t)
	bins, err := genome.NewBinTable(ref, testResolution)
	if err != nil {
		t.Fatal(err)
	}
	chromA, _ := ref.ByName("chrA")
	chromB, _ := ref.ByName("chrB")

	chrom2 := chromB
	if intra {
		chrom2 = chromA
	}
	footer.Chrom1 = chromA
	footer.Chrom2 = chrom2
	if footer.index == nil {
		footer.index = &blockIndex{chrom1: chromA, chrom2: chrom2, sumCount: 0}
	}

	binA0, _ := bins.AtPos(chromA, 0)
	binA9, _ := bins.AtPos(chromA, 9999)
	bin20, _ := bins.AtPos(chrom2, 0)
	bin29, _ := bins.AtPos(chrom2, 9999)

	return &PixelSelector{
		reader: &blockReader{index: footer.index, bins: bins},
		footer: footer,
		coord1: PixelCoordinates{Bin1: binA0, Bin2: binA9},
		coord2: PixelCoordinates{Bin1: bin20, Bin2: bin29},
	}
}

func TestTransformPixelDivisiveWeights(t *testing.T) {
	t.Parallel()
	w1 := &Weights{Kind: Divisive, Values: []float64{2, 4, math.NaN()}}
	w2 := &Weights{Kind: Divisive, Values: []float64{8, 1, 1}}
	sel := synthSelector(t, &Footer{
		Type:          Observed,
		Normalization: NormVC,
		weights1:      w1,
		weights2:      w2,
	}, true)

	got := sel.transformPixel(pixel.ThinPixel[float32]{Bin1ID: 0, Bin2ID: 0, Count: 32})
	if got.Count != 2 { // 32 / (2 * 8)
		t.Errorf("normalized count = %v, want 2", got.Count)
	}

	// A NaN weight masks the pixel to NaN.
	got = sel.transformPixel(pixel.ThinPixel[float32]{Bin1ID: 2, Bin2ID: 1, Count: 10})
	if !math.IsNaN(float64(got.Count)) {
		t.Errorf("count with NaN weight = %v, want NaN", got.Count)
	}
}

func TestTransformPixelExpectedIntra(t *testing.T) {
	t.Parallel()
	sel := synthSelector(t, &Footer{
		Type:          Expected,
		Normalization: NormNone,
		expected:      []float64{100, 50, 25},
	}, true)

	// expected replaces the count by the distance-indexed value.
	got := sel.transformPixel(pixel.ThinPixel[float32]{Bin1ID: 3, Bin2ID: 4, Count: 999})
	if got.Count != 50 {
		t.Errorf("expected count at distance 1 = %v, want 50", got.Count)
	}

	// Distances past the vector clamp to the last bucket.
	got = sel.transformPixel(pixel.ThinPixel[float32]{Bin1ID: 0, Bin2ID: 9, Count: 999})
	if got.Count != 25 {
		t.Errorf("expected count at clamped distance = %v, want 25", got.Count)
	}
}

func TestTransformPixelOEIntra(t *testing.T) {
	t.Parallel()
	sel := synthSelector(t, &Footer{
		Type:          OE,
		Normalization: NormNone,
		expected:      []float64{4, 2},
	}, true)

	got := sel.transformPixel(pixel.ThinPixel[float32]{Bin1ID: 5, Bin2ID: 5, Count: 10})
	if got.Count != 2.5 { // 10 / 4
		t.Errorf("oe count on diagonal = %v, want 2.5", got.Count)
	}
}

// On inter-chromosomal queries the expected count collapses to the
// matrix mean: oe equals observed / mean.
func TestTransformPixelOEInter(t *testing.T) {
	t.Parallel()
	footer := &Footer{Type: OE, Normalization: NormNone}
	sel := synthSelector(t, footer, false)

	bins := sel.reader.bins
	n1 := bins.ChromBins(footer.Chrom1)
	n2 := bins.ChromBins(footer.Chrom2)
	footer.index.sumCount = float64(n1 * n2 * 4) // mean of 4

	got := sel.transformPixel(pixel.ThinPixel[float32]{Bin1ID: 0, Bin2ID: 0, Count: 10})
	if got.Count != 2.5 { // 10 / 4
		t.Errorf("inter oe count = %v, want 2.5", got.Count)
	}
}

func TestWeightsApply(t *testing.T) {
	t.Parallel()
	div := &Weights{Kind: Divisive}
	if got := div.Apply(100, 2, 5); got != 10 {
		t.Errorf("divisive Apply = %v, want 10", got)
	}
	mul := &Weights{Kind: Multiplicative}
	if got := mul.Apply(100, 2, 5); got != 1000 {
		t.Errorf("multiplicative Apply = %v, want 1000", got)
	}
}

func TestSelectorBand(t *testing.T) {
	t.Parallel()
	f, all := openTestFile(t)
	chromA, _ := f.Chromosomes().ByName("chrA")
	offA := f.Bins().ChromOffset(chromA)
	limit := offA + f.Bins().ChromBins(chromA)

	sel, err := f.FetchChromPair(chromA, 0, chromA.Length, chromA, 0, chromA.Length, NormNone)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := interface{}(sel.Pixels(true)).(pixel.RowJumper); !ok {
		t.Fatal("sorted selector iterator does not implement RowJumper")
	}

	const width = 20
	band := transform.NewDiagonalBand(sel.Pixels(true), width)
	got, err := pixel.ReadAll[float32](band)
	if err != nil {
		t.Fatal(err)
	}

	var want []pixel.ThinPixel[float32]
	for _, p := range all {
		if p.Bin1ID < limit && p.Bin2ID < limit && p.Bin2ID-p.Bin1ID < width {
			want = append(want, p)
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("band pixels (-want +got):\n%s", diff)
	}
}
