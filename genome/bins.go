package genome

import (
	"fmt"
)

// Bin is one half-open genomic interval [Start, End) of the bin table.
// ID is the global dense index, RelID the index within the chromosome.
type Bin struct {
	Chrom Chromosome
	Start uint32
	End   uint32
	ID    uint64
	RelID uint64
}

// BinTable maps global bin ids to genomic intervals and back for a
// fixed bin width. Bins are ordered by (chrom id, start); the last bin
// of each chromosome may be shorter than the resolution.
type BinTable struct {
	ref        *Reference
	resolution uint32
	// prefix[i] is the id of the first bin of chromosome i;
	// prefix[len] is the total bin count.
	prefix []uint64
}

// NewBinTable tiles every chromosome of ref with bins of the given
// width.
func NewBinTable(ref *Reference, resolution uint32) (*BinTable, error) {
	if resolution == 0 {
		return nil, fmt.Errorf("genome: bin table resolution must be > 0")
	}
	bt := &BinTable{
		ref:        ref,
		resolution: resolution,
		prefix:     make([]uint64, ref.Len()+1),
	}
	for i, c := range ref.Chromosomes() {
		nbins := uint64((c.Length + resolution - 1) / resolution)
		bt.prefix[i+1] = bt.prefix[i] + nbins
	}
	return bt, nil
}

// Resolution returns the bin width in base pairs.
func (bt *BinTable) Resolution() uint32 { return bt.resolution }

// Chromosomes returns the underlying reference.
func (bt *BinTable) Chromosomes() *Reference { return bt.ref }

// Len returns the total number of bins.
func (bt *BinTable) Len() uint64 { return bt.prefix[len(bt.prefix)-1] }

// ChromBins returns the number of bins tiling the given chromosome.
func (bt *BinTable) ChromBins(chrom Chromosome) uint64 {
	return bt.prefix[chrom.ID+1] - bt.prefix[chrom.ID]
}

// ChromOffset returns the global id of the first bin of chrom.
func (bt *BinTable) ChromOffset(chrom Chromosome) uint64 {
	return bt.prefix[chrom.ID]
}

// At expands a global bin id.
func (bt *BinTable) At(id uint64) (Bin, error) {
	if id >= bt.Len() {
		return Bin{}, fmt.Errorf("genome: bin id %d out of range (table has %d bins)", id, bt.Len())
	}
	// Binary search over the prefix sums.
	lo, hi := 0, len(bt.prefix)-1
	for lo+1 < hi {
		mid := (lo + hi) / 2
		if bt.prefix[mid] <= id {
			lo = mid
		} else {
			hi = mid
		}
	}
	chrom := bt.ref.chroms[lo]
	rel := id - bt.prefix[lo]
	start := uint32(rel) * bt.resolution
	end := start + bt.resolution
	if end > chrom.Length {
		end = chrom.Length
	}
	return Bin{Chrom: chrom, Start: start, End: end, ID: id, RelID: rel}, nil
}

// AtPos returns the bin containing (chrom, pos).
func (bt *BinTable) AtPos(chrom Chromosome, pos uint32) (Bin, error) {
	if pos >= chrom.Length {
		return Bin{}, fmt.Errorf("genome: position %d past the end of %s (%d bp)", pos, chrom.Name, chrom.Length)
	}
	rel := uint64(pos / bt.resolution)
	return bt.At(bt.prefix[chrom.ID] + rel)
}

// Equal reports whether two tables have the same reference and width.
func (bt *BinTable) Equal(other *BinTable) bool {
	return bt.resolution == other.resolution && bt.ref.Equal(other.ref)
}
