package transform

import (
	"github.com/genomekit/hic/pixel"
)

// Sum drains the stream and returns the total count.
func Sum[N pixel.Count](it pixel.Iter[N]) (N, error) {
	var total N
	for it.Next() {
		total += it.Pixel().Count
	}
	return total, it.Err()
}

// Max drains the stream and returns the largest count (zero for an
// empty stream).
func Max[N pixel.Count](it pixel.Iter[N]) (N, error) {
	var max N
	for it.Next() {
		if c := it.Pixel().Count; c > max {
			max = c
		}
	}
	return max, it.Err()
}

// Nnz drains the stream and returns the number of pixels.
func Nnz[N pixel.Count](it pixel.Iter[N]) (int, error) {
	n := 0
	for it.Next() {
		n++
	}
	return n, it.Err()
}

// Avg drains the stream and returns the mean count (zero for an empty
// stream).
func Avg[N pixel.Count](it pixel.Iter[N]) (float64, error) {
	var sum float64
	n := 0
	for it.Next() {
		sum += float64(it.Pixel().Count)
		n++
	}
	if err := it.Err(); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}
