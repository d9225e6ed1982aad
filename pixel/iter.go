package pixel

// Iter is the shared pull-based pixel stream contract: nothing is
// fetched or decoded until Next is called. After Next returns false,
// Err distinguishes exhaustion from a streaming failure; a failed
// iterator stays exhausted.
type Iter[N Count] interface {
	// Next advances to the next pixel, reporting whether one is
	// available.
	Next() bool
	// Pixel returns the current pixel. Valid only after a true Next.
	Pixel() ThinPixel[N]
	// Err returns the first error encountered, if any.
	Err() error
}

// RowJumper is implemented by iterators that can cheaply skip the rest
// of the current bin1 row. The diagonal band transformer uses it to
// drop whole row suffixes.
type RowJumper interface {
	JumpToNextRow()
}

// castIter converts a float32 stream to another numeric type.
type castIter[N Count] struct {
	src Iter[float32]
}

// Cast re-types a float32 pixel stream, rounding to nearest for
// integer N.
func Cast[N Count](src Iter[float32]) Iter[N] {
	return &castIter[N]{src: src}
}

func (c *castIter[N]) Next() bool { return c.src.Next() }

func (c *castIter[N]) Pixel() ThinPixel[N] {
	p := c.src.Pixel()
	return ThinPixel[N]{Bin1ID: p.Bin1ID, Bin2ID: p.Bin2ID, Count: ConvertCount[N](p.Count)}
}

func (c *castIter[N]) Err() error { return c.src.Err() }

// SliceIter iterates over an in-memory pixel slice. Mostly useful in
// tests and as a building block for buffered transformers.
type SliceIter[N Count] struct {
	pixels []ThinPixel[N]
	i      int
}

func NewSliceIter[N Count](pixels []ThinPixel[N]) *SliceIter[N] {
	return &SliceIter[N]{pixels: pixels}
}

func (s *SliceIter[N]) Next() bool {
	if s.i >= len(s.pixels) {
		return false
	}
	s.i++
	return true
}

func (s *SliceIter[N]) Pixel() ThinPixel[N] { return s.pixels[s.i-1] }

func (s *SliceIter[N]) Err() error { return nil }

// ReadAll drains an iterator into a slice.
func ReadAll[N Count](it Iter[N]) ([]ThinPixel[N], error) {
	var out []ThinPixel[N]
	for it.Next() {
		out = append(out, it.Pixel())
	}
	return out, it.Err()
}
