package transform

import (
	"sort"

	"github.com/genomekit/hic/genome"
	"github.com/genomekit/hic/pixel"
)

// Coarsener aggregates a sorted pixel stream over bin table B into a
// stream over B/k: both bin ids are divided by k within their
// chromosome and counts of colliding pixels sum. It maintains one row
// buffer, bounded by the number of distinct coarse columns touched in
// the current coarse row.
type Coarsener[N pixel.Count] struct {
	src    pixel.Iter[N]
	fine   *genome.BinTable
	coarse *genome.BinTable
	factor uint64

	row     uint64 // current coarse bin1
	rowOpen bool
	buf     map[uint64]N // coarse bin2 -> summed count
	flushed []pixel.ThinPixel[N]
	i       int

	pending  pixel.ThinPixel[N]
	hasPend  bool
	srcDone  bool
	err      error
	current  pixel.ThinPixel[N]
}

// NewCoarsener coarsens src by an integer factor > 0. The returned
// stream is over NewBinTable(ref, resolution*factor).
func NewCoarsener[N pixel.Count](src pixel.Iter[N], fine *genome.BinTable, factor uint64) (*Coarsener[N], error) {
	coarse, err := genome.NewBinTable(fine.Chromosomes(), fine.Resolution()*uint32(factor))
	if err != nil {
		return nil, err
	}
	return &Coarsener[N]{
		src:    src,
		fine:   fine,
		coarse: coarse,
		factor: factor,
		buf:    make(map[uint64]N),
	}, nil
}

// Bins returns the coarsened bin table the output ids refer to.
func (c *Coarsener[N]) Bins() *genome.BinTable { return c.coarse }

// coarseID maps a fine global bin id into the coarse table,
// chromosome by chromosome so the division never crosses a boundary.
func (c *Coarsener[N]) coarseID(id uint64) (uint64, error) {
	bin, err := c.fine.At(id)
	if err != nil {
		return 0, err
	}
	return c.coarse.ChromOffset(bin.Chrom) + bin.RelID/c.factor, nil
}

func (c *Coarsener[N]) flushRow() {
	c.flushed = c.flushed[:0]
	c.i = 0
	for bin2, count := range c.buf {
		c.flushed = append(c.flushed, pixel.ThinPixel[N]{Bin1ID: c.row, Bin2ID: bin2, Count: count})
		delete(c.buf, bin2)
	}
	sort.Slice(c.flushed, func(a, b int) bool { return c.flushed[a].Bin2ID < c.flushed[b].Bin2ID })
}

func (c *Coarsener[N]) Next() bool {
	for {
		if c.i < len(c.flushed) {
			c.current = c.flushed[c.i]
			c.i++
			return true
		}
		if c.err != nil {
			return false
		}
		if c.srcDone && !c.rowOpen {
			return false
		}
		c.fillRow()
	}
}

// fillRow consumes source pixels until the coarse row advances (or the
// source ends), then flushes the buffered row.
func (c *Coarsener[N]) fillRow() {
	for {
		if !c.hasPend {
			if !c.src.Next() {
				if err := c.src.Err(); err != nil {
					c.err = err
					return
				}
				c.srcDone = true
				if c.rowOpen {
					c.rowOpen = false
					c.flushRow()
				}
				return
			}
			c.pending = c.src.Pixel()
			c.hasPend = true
		}

		b1, err := c.coarseID(c.pending.Bin1ID)
		if err != nil {
			c.err = err
			return
		}
		b2, err := c.coarseID(c.pending.Bin2ID)
		if err != nil {
			c.err = err
			return
		}

		if !c.rowOpen {
			c.row = b1
			c.rowOpen = true
		}
		if b1 != c.row {
			// The output row advanced: emit the buffer before
			// consuming this pixel.
			c.rowOpen = false
			c.flushRow()
			c.rowOpen = true
			c.row = b1
			if len(c.flushed) > 0 {
				return
			}
			continue
		}

		c.buf[b2] += c.pending.Count
		c.hasPend = false
	}
}

func (c *Coarsener[N]) Pixel() pixel.ThinPixel[N] { return c.current }

func (c *Coarsener[N]) Err() error { return c.err }
