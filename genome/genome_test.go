package genome

import (
	"testing"
)

func testReference(t *testing.T) *Reference {
	t.Helper()
	ref, err := NewReference(
		[]string{"chr2L", "chr2R", "chr3L"},
		[]uint32{23513712, 25286936, 28110227},
	)
	if err != nil {
		t.Fatal(err)
	}
	return ref
}

func TestReferenceLookup(t *testing.T) {
	t.Parallel()
	ref := testReference(t)

	for i, c := range ref.Chromosomes() {
		if got, want := c.ID, uint32(i); got != want {
			t.Errorf("chromosome %q: id = %d, want %d", c.Name, got, want)
		}
		byName, ok := ref.ByName(c.Name)
		if !ok {
			t.Fatalf("ByName(%q) not found", c.Name)
		}
		if byName.ID != c.ID {
			t.Errorf("ByName(%q).ID = %d, want %d", c.Name, byName.ID, c.ID)
		}
	}

	if _, ok := ref.ByName("chrX"); ok {
		t.Error("ByName(chrX) unexpectedly found")
	}
	if got, want := ref.Longest().Name, "chr3L"; got != want {
		t.Errorf("Longest() = %q, want %q", got, want)
	}
}

func TestReferenceValidation(t *testing.T) {
	t.Parallel()
	if _, err := NewReference(nil, nil); err == nil {
		t.Error("empty reference: got nil error")
	}
	if _, err := NewReference([]string{"chr1", "chr1"}, []uint32{10, 20}); err == nil {
		t.Error("duplicate name: got nil error")
	}
	if _, err := NewReference([]string{"chr1"}, []uint32{0}); err == nil {
		t.Error("zero-length chromosome: got nil error")
	}
}

func TestBinTableRoundTrip(t *testing.T) {
	t.Parallel()
	ref := testReference(t)
	bt, err := NewBinTable(ref, 2500000)
	if err != nil {
		t.Fatal(err)
	}

	for id := uint64(0); id < bt.Len(); id++ {
		bin, err := bt.At(id)
		if err != nil {
			t.Fatal(err)
		}
		back, err := bt.AtPos(bin.Chrom, bin.Start)
		if err != nil {
			t.Fatal(err)
		}
		if back.ID != id {
			t.Fatalf("AtPos(At(%d)) = %d", id, back.ID)
		}
	}
}

func TestBinTableLastBinShorter(t *testing.T) {
	t.Parallel()
	ref := testReference(t)
	bt, err := NewBinTable(ref, 2500000)
	if err != nil {
		t.Fatal(err)
	}

	chrom, _ := ref.ByName("chr2L")
	last, err := bt.AtPos(chrom, chrom.Length-1)
	if err != nil {
		t.Fatal(err)
	}
	if last.End != chrom.Length {
		t.Errorf("last bin end = %d, want %d", last.End, chrom.Length)
	}
	if width := last.End - last.Start; width >= 2500000 {
		t.Errorf("last bin width = %d, expected a short bin", width)
	}

	// Every non-last bin has full width.
	for rel := uint64(0); rel < bt.ChromBins(chrom)-1; rel++ {
		bin, err := bt.At(bt.ChromOffset(chrom) + rel)
		if err != nil {
			t.Fatal(err)
		}
		if got := bin.End - bin.Start; got != 2500000 {
			t.Fatalf("bin %d width = %d, want 2500000", rel, got)
		}
	}
}

func TestParseUCSC(t *testing.T) {
	t.Parallel()
	ref := testReference(t)

	for _, tt := range []struct {
		query      string
		chrom      string
		start, end uint32
	}{
		{"chr2L", "chr2L", 0, 23513712},
		{"chr2L:1-100", "chr2L", 0, 100},
		{"chr2L:1,000-2,000", "chr2L", 999, 2000},
		{"chr3L:10000000-28110227", "chr3L", 9999999, 28110227},
	} {
		gi, err := ParseUCSC(ref, tt.query)
		if err != nil {
			t.Fatalf("ParseUCSC(%q): %v", tt.query, err)
		}
		if gi.Chrom.Name != tt.chrom || gi.Start != tt.start || gi.End != tt.end {
			t.Errorf("ParseUCSC(%q) = %s:%d-%d, want %s:%d-%d",
				tt.query, gi.Chrom.Name, gi.Start, gi.End, tt.chrom, tt.start, tt.end)
		}
	}

	for _, query := range []string{
		"",
		"chrX",
		"chr2L:",
		"chr2L:100-50",
		"chr2L:1-99999999999",
		"chr2L:abc-def",
	} {
		if _, err := ParseUCSC(ref, query); err == nil {
			t.Errorf("ParseUCSC(%q): got nil error", query)
		}
	}
}

func TestParseBED(t *testing.T) {
	t.Parallel()
	ref := testReference(t)

	gi, err := ParseBED(ref, "chr2R\t100\t2000")
	if err != nil {
		t.Fatal(err)
	}
	if gi.Chrom.Name != "chr2R" || gi.Start != 100 || gi.End != 2000 {
		t.Errorf("ParseBED = %s:%d-%d, want chr2R:100-2000", gi.Chrom.Name, gi.Start, gi.End)
	}

	for _, query := range []string{
		"",
		"chr2R 100 2000", // spaces, not tabs
		"chr2R\t100",
		"chr2R\t2000\t100",
		"chrNope\t1\t2",
	} {
		if _, err := ParseBED(ref, query); err == nil {
			t.Errorf("ParseBED(%q): got nil error", query)
		}
	}
}
