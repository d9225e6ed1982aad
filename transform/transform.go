// Package transform composes pixel streams into merged, coarsened,
// band-limited, coordinate-joined, or matrix/table outputs. Every
// transformer is lazy and forward-only; none buffers more than a small
// working set unless documented otherwise.
package transform

// QuerySpan selects which half of a symmetric matrix an output
// materializes.
type QuerySpan int

const (
	// UpperTriangle emits pixels as stored (bin1 <= bin2).
	UpperTriangle QuerySpan = iota
	// LowerTriangle transposes every pixel of a symmetric-upper source.
	LowerTriangle
	// Full emits each off-diagonal pixel and its mirror when the
	// source is symmetric-upper, and passes through otherwise.
	Full
)

func (s QuerySpan) String() string {
	switch s {
	case UpperTriangle:
		return "upper"
	case LowerTriangle:
		return "lower"
	case Full:
		return "full"
	}
	return "unknown"
}
