package hic

import (
	"container/heap"

	"github.com/genomekit/hic/genome"
	"github.com/genomekit/hic/pixel"
)

// GenomeWideSelector is a composite over every chromosome pair
// (c1, c2) with c1 <= c2, excluding the whole-genome
// pseudo-chromosome. Its sorted iterator interleaves the per-pair
// streams with a min-heap keyed on the head pixel of each stream.
type GenomeWideSelector struct {
	selectors []*PixelSelector // ordered by (chrom1 id, chrom2 id)
	bins      *genome.BinTable
}

// Bins returns the bin table shared by all sub-selectors.
func (s *GenomeWideSelector) Bins() *genome.BinTable { return s.bins }

// Size returns the whole-genome pixel count.
func (s *GenomeWideSelector) Size(upperTriangle bool) uint64 {
	n := s.bins.Len()
	if upperTriangle {
		return n * (n + 1) / 2
	}
	return n * n
}

// Empty reports whether every sub-selector is empty.
func (s *GenomeWideSelector) Empty() bool {
	for _, sel := range s.selectors {
		if !sel.Empty() {
			return false
		}
	}
	return true
}

// Pixels returns a forward iterator over the whole genome.
func (s *GenomeWideSelector) Pixels(sorted bool) pixel.Iter[float32] {
	return newGenomeWideIterator(s, sorted)
}

// ReadAll drains a sorted genome-wide iterator into
// coordinate-expanded pixels.
func (s *GenomeWideSelector) ReadAll() ([]pixel.Pixel[float32], error) {
	it := s.Pixels(true)
	var out []pixel.Pixel[float32]
	for it.Next() {
		p := it.Pixel()
		b1, err := s.bins.At(p.Bin1ID)
		if err != nil {
			return nil, err
		}
		b2, err := s.bins.At(p.Bin2ID)
		if err != nil {
			return nil, err
		}
		out = append(out, pixel.Pixel[float32]{Bin1: b1, Bin2: b2, Count: p.Count})
	}
	return out, it.Err()
}

// iterHeap orders live sub-iterators by their head pixel.
type iterHeap []pixel.Iter[float32]

func (h iterHeap) Len() int { return len(h) }
func (h iterHeap) Less(i, j int) bool {
	a, b := h[i].Pixel(), h[j].Pixel()
	if a.Bin1ID != b.Bin1ID {
		return a.Bin1ID < b.Bin1ID
	}
	return a.Bin2ID < b.Bin2ID
}
func (h iterHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *iterHeap) Push(x interface{}) { *h = append(*h, x.(pixel.Iter[float32])) }
func (h *iterHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

type genomeWideIterator struct {
	sel    *GenomeWideSelector
	sorted bool

	// remaining selectors not yet opened, grouped by chrom1
	pending []*PixelSelector
	heap    iterHeap

	current pixel.ThinPixel[float32]
	err     error
	done    bool
}

func newGenomeWideIterator(sel *GenomeWideSelector, sorted bool) *genomeWideIterator {
	it := &genomeWideIterator{sel: sel, sorted: sorted, pending: sel.selectors}
	if len(it.pending) == 0 {
		it.done = true
	}
	return it
}

// openNextChromBatch starts the iterators of every selector sharing
// the next chrom1. Opening per chrom1 (rather than all pairs at once)
// bounds the number of chunks held live.
func (it *genomeWideIterator) openNextChromBatch() {
	for len(it.heap) == 0 && len(it.pending) > 0 {
		chrom1 := it.pending[0].Chrom1().ID
		for len(it.pending) > 0 && it.pending[0].Chrom1().ID == chrom1 {
			sub := it.pending[0].Pixels(it.sorted)
			it.pending = it.pending[1:]
			if sub.Next() {
				it.heap = append(it.heap, sub)
			} else if err := sub.Err(); err != nil {
				it.err = err
				it.done = true
				return
			}
		}
		heap.Init(&it.heap)
	}
	if len(it.heap) == 0 {
		it.done = true
	}
}

func (it *genomeWideIterator) Next() bool {
	if it.done {
		return false
	}
	if len(it.heap) == 0 {
		it.openNextChromBatch()
		if it.done {
			return false
		}
	}

	sub := it.heap[0]
	it.current = sub.Pixel()
	if sub.Next() {
		heap.Fix(&it.heap, 0)
	} else {
		if err := sub.Err(); err != nil {
			it.err = err
			it.done = true
			return false
		}
		heap.Pop(&it.heap)
	}
	return true
}

func (it *genomeWideIterator) Pixel() pixel.ThinPixel[float32] { return it.current }

func (it *genomeWideIterator) Err() error { return it.err }
