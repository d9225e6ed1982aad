package hic

import (
	"fmt"
	"log"
	"math"
)

// Debug, when non-nil, receives trace-verbosity diagnostics (oddities
// in otherwise readable files, cache sizing decisions).
var Debug *log.Logger

func debugf(format string, args ...interface{}) {
	if Debug != nil {
		Debug.Printf(format, args...)
	}
}

// MatrixType selects the count transform applied to raw pixels.
type MatrixType int

const (
	Observed MatrixType = iota
	Expected
	OE
)

func (mt MatrixType) String() string {
	switch mt {
	case Observed:
		return "observed"
	case Expected:
		return "expected"
	case OE:
		return "oe"
	}
	return fmt.Sprintf("MatrixType(%d)", int(mt))
}

// ParseMatrixType parses the on-disk/CLI spelling of a matrix type.
func ParseMatrixType(s string) (MatrixType, error) {
	switch s {
	case "observed":
		return Observed, nil
	case "expected":
		return Expected, nil
	case "oe":
		return OE, nil
	}
	return 0, fmt.Errorf("%w: unknown matrix type %q", ErrInvalidFormat, s)
}

// MatrixUnit is the unit bins are expressed in.
type MatrixUnit int

const (
	// UnitBP measures bins in base pairs.
	UnitBP MatrixUnit = iota
	// UnitFrag measures bins in restriction fragments.
	UnitFrag
)

func (u MatrixUnit) String() string {
	switch u {
	case UnitBP:
		return "BP"
	case UnitFrag:
		return "FRAG"
	}
	return fmt.Sprintf("MatrixUnit(%d)", int(u))
}

// ParseMatrixUnit parses the on-disk spelling of a unit.
func ParseMatrixUnit(s string) (MatrixUnit, error) {
	switch s {
	case "BP":
		return UnitBP, nil
	case "FRAG":
		return UnitFrag, nil
	}
	return 0, fmt.Errorf("%w: unknown matrix unit %q", ErrInvalidFormat, s)
}

// Normalization names a matrix balancing method whose precomputed
// weight vectors are stored in the file.
type Normalization string

// NormNone disables normalization.
const NormNone Normalization = "NONE"

// Common methods found in block-compressed files. Any other name is
// passed through verbatim.
const (
	NormVC     Normalization = "VC"
	NormVCSqrt Normalization = "VC_SQRT"
	NormKR     Normalization = "KR"
	NormSCALE  Normalization = "SCALE"
	NormICE    Normalization = "ICE"
)

func (n Normalization) IsNone() bool { return n == NormNone || n == "" }

func (n Normalization) String() string {
	if n == "" {
		return string(NormNone)
	}
	return string(n)
}

// WeightsKind describes how a weight vector combines with a raw count.
type WeightsKind int

const (
	// Divisive weights divide the raw count (w1[bin1] * w2[bin2]).
	Divisive WeightsKind = iota
	// Multiplicative weights multiply it.
	Multiplicative
)

// Weights is one chromosome's normalization vector, indexed by the
// bin's id relative to the chromosome. Missing entries are NaN.
type Weights struct {
	Kind   WeightsKind
	Values []float64
}

// Empty reports whether the vector has not been populated.
func (w *Weights) Empty() bool { return w == nil || len(w.Values) == 0 }

// At returns the weight for a relative bin id, or NaN when the vector
// is absent or too short.
func (w *Weights) At(relBinID uint64) float64 {
	if w.Empty() || relBinID >= uint64(len(w.Values)) {
		return math.NaN()
	}
	return w.Values[relBinID]
}

// Apply combines a raw count with a pair of weights.
func (w *Weights) Apply(count float64, w1, w2 float64) float64 {
	if w.Kind == Multiplicative {
		return count * w1 * w2
	}
	return count / (w1 * w2)
}

type weightKey struct {
	chromID uint32
	norm    Normalization
}

// weightCache lazily shares per-chromosome weight vectors between
// footers. Entries are created empty and populated by the footer
// decoder on first use.
type weightCache struct {
	weights map[weightKey]*Weights
}

func newWeightCache() *weightCache {
	return &weightCache{weights: make(map[weightKey]*Weights)}
}

func (wc *weightCache) getOrInit(chromID uint32, norm Normalization) *Weights {
	key := weightKey{chromID, norm}
	if w, ok := wc.weights[key]; ok {
		return w
	}
	w := &Weights{Kind: Divisive}
	wc.weights[key] = w
	return w
}

func (wc *weightCache) clear() {
	wc.weights = make(map[weightKey]*Weights)
}
