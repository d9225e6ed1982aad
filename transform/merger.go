package transform

import (
	"container/heap"

	"github.com/genomekit/hic/pixel"
)

// Merger is a k-way additive merge of sorted pixel streams: the output
// is a single sorted stream where pixels with equal coordinates sum.
// This is the write-path workhorse behind file merging and
// format-to-format conversion.
type Merger[N pixel.Count] struct {
	heap mergeHeap[N]

	current pixel.ThinPixel[N]
	err     error
	done    bool
}

type mergeNode[N pixel.Count] struct {
	pixel pixel.ThinPixel[N]
	src   int
}

type mergeHeap[N pixel.Count] struct {
	nodes   []mergeNode[N]
	sources []pixel.Iter[N]
}

func (h mergeHeap[N]) Len() int { return len(h.nodes) }
func (h mergeHeap[N]) Less(i, j int) bool {
	a, b := h.nodes[i].pixel, h.nodes[j].pixel
	if a.Bin1ID != b.Bin1ID {
		return a.Bin1ID < b.Bin1ID
	}
	return a.Bin2ID < b.Bin2ID
}
func (h mergeHeap[N]) Swap(i, j int) { h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i] }
func (h *mergeHeap[N]) Push(x interface{}) {
	h.nodes = append(h.nodes, x.(mergeNode[N]))
}
func (h *mergeHeap[N]) Pop() interface{} {
	old := h.nodes
	n := len(old)
	x := old[n-1]
	h.nodes = old[:n-1]
	return x
}

// NewMerger builds a merger over sorted sources. Exhausted sources are
// never re-inserted; empty ones are not inserted at all.
func NewMerger[N pixel.Count](sources ...pixel.Iter[N]) (*Merger[N], error) {
	m := &Merger[N]{}
	m.heap.sources = sources
	for i, src := range sources {
		if src.Next() {
			m.heap.nodes = append(m.heap.nodes, mergeNode[N]{pixel: src.Pixel(), src: i})
		} else if err := src.Err(); err != nil {
			return nil, err
		}
	}
	heap.Init(&m.heap)
	return m, nil
}

// replaceTop swaps the head of the heap for the next pixel of the same
// source.
func (m *Merger[N]) replaceTop() bool {
	i := m.heap.nodes[0].src
	src := m.heap.sources[i]
	if src.Next() {
		m.heap.nodes[0] = mergeNode[N]{pixel: src.Pixel(), src: i}
		heap.Fix(&m.heap, 0)
		return true
	}
	if err := src.Err(); err != nil {
		m.err = err
		m.done = true
		return false
	}
	heap.Pop(&m.heap)
	return true
}

func (m *Merger[N]) Next() bool {
	if m.done || m.heap.Len() == 0 {
		m.done = true
		return false
	}

	current := m.heap.nodes[0]
	if !m.replaceTop() {
		return false
	}
	for m.heap.Len() > 0 {
		top := m.heap.nodes[0]
		if top.pixel.Bin1ID != current.pixel.Bin1ID || top.pixel.Bin2ID != current.pixel.Bin2ID {
			break
		}
		current.pixel.Count += top.pixel.Count
		if !m.replaceTop() {
			return false
		}
	}

	m.current = current.pixel
	return true
}

func (m *Merger[N]) Pixel() pixel.ThinPixel[N] { return m.current }

func (m *Merger[N]) Err() error { return m.err }
