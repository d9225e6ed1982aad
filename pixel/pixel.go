// Package pixel defines the value types flowing through every contact
// matrix stream: bare (bin1, bin2, count) triples and their
// coordinate-expanded form.
package pixel

import (
	"math"

	"golang.org/x/exp/constraints"

	"github.com/genomekit/hic/genome"
)

// Count is the set of numeric types a pixel stream can carry. On disk
// counts are float32; conversion to any other Count type happens at a
// single point (see Cast).
type Count interface {
	constraints.Integer | constraints.Float
}

// ThinPixel is the canonical in-stream representation: global bin ids
// plus a count.
type ThinPixel[N Count] struct {
	Bin1ID uint64
	Bin2ID uint64
	Count  N
}

// Less orders pixels lexicographically by (bin1, bin2, count).
func (p ThinPixel[N]) Less(other ThinPixel[N]) bool {
	if p.Bin1ID != other.Bin1ID {
		return p.Bin1ID < other.Bin1ID
	}
	if p.Bin2ID != other.Bin2ID {
		return p.Bin2ID < other.Bin2ID
	}
	return p.Count < other.Count
}

// Pixel carries full genomic coordinates on both sides.
type Pixel[N Count] struct {
	Bin1  genome.Bin
	Bin2  genome.Bin
	Count N
}

func (p Pixel[N]) Less(other Pixel[N]) bool {
	if p.Bin1.ID != other.Bin1.ID {
		return p.Bin1.ID < other.Bin1.ID
	}
	if p.Bin2.ID != other.Bin2.ID {
		return p.Bin2.ID < other.Bin2.ID
	}
	return p.Count < other.Count
}

// Thin drops the coordinates.
func (p Pixel[N]) Thin() ThinPixel[N] {
	return ThinPixel[N]{Bin1ID: p.Bin1.ID, Bin2ID: p.Bin2.ID, Count: p.Count}
}

// ConvertCount converts a float32 count to N, rounding to nearest for
// integer N. This is the only place the stream's numeric type changes.
func ConvertCount[N Count](count float32) N {
	var n N
	switch any(n).(type) {
	case float32, float64:
		return N(count)
	default:
		return N(math.Round(float64(count)))
	}
}

// SizeofThinPixel is the in-memory footprint used for byte-budgeted
// caches: two bin ids plus a float32 count.
const SizeofThinPixel = 8 + 8 + 4
