// Package hic provides uniform random-access read (and single-producer
// write) over binary Hi-C contact matrix files. Files are opened at one
// resolution; queries return lazy pixel streams that fetch and
// decompress interaction blocks on demand through a byte-budgeted
// cache.
package hic

import (
	"bytes"
	"fmt"
	"math"

	"github.com/genomekit/hic/genome"
	"github.com/genomekit/hic/internal/binio"
	"github.com/genomekit/hic/internal/cache"
)

// hdf5Magic marks files of the grouped (hierarchical container)
// format, which is read by a separate backend.
var hdf5Magic = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// QuerySyntax selects how string ranges passed to Fetch2 are parsed.
type QuerySyntax int

const (
	// UCSC queries are 1-based "chr:start-end" strings.
	UCSC QuerySyntax = iota
	// BED queries are 0-based tab-separated records.
	BED
)

// FileOptions tunes how a file is opened.
type FileOptions struct {
	// MatrixType selects observed, expected, or oe counts
	// (default observed).
	MatrixType MatrixType
	// Unit selects BP or FRAG bins (default BP).
	Unit MatrixUnit
	// CacheBytes is the pixel cache budget. Zero selects an estimate
	// optimized for random cis access.
	CacheBytes uint64
}

// File is an open block-compressed contact matrix file bound to one
// resolution. A File and the selectors and iterators derived from it
// must be used by one goroutine at a time; open one File per goroutine
// for concurrent access.
type File struct {
	reader     *fileReader
	bins       *genome.BinTable
	matrixType MatrixType
	unit       MatrixUnit

	blockCache  *cache.BlockCache
	weightCache *weightCache
	footers     map[footerKey]*Footer
}

type footerKey struct {
	chrom1ID, chrom2ID uint32
	matrixType         MatrixType
	norm               Normalization
	unit               MatrixUnit
	resolution         uint32
}

// Open opens a local path or http(s) URL at the given resolution with
// default options.
func Open(pathOrURL string, resolution uint32) (*File, error) {
	return OpenWith(pathOrURL, resolution, FileOptions{})
}

// OpenWith opens a file with explicit options. The format is detected
// by magic bytes: block-compressed files are handled here; grouped
// (hierarchical container) files require the collaborating backend and
// are rejected with a distinct error.
func OpenWith(pathOrURL string, resolution uint32, opts FileOptions) (*File, error) {
	if err := sniffFormat(pathOrURL); err != nil {
		return nil, err
	}

	r, err := newFileReader(pathOrURL)
	if err != nil {
		return nil, err
	}
	if !r.header.HasResolution(resolution) {
		r.close()
		return nil, fmt.Errorf("%w: file %s does not have interactions for resolution %d",
			ErrInvalidQuery, pathOrURL, resolution)
	}
	bins, err := genome.NewBinTable(r.header.Chromosomes, resolution)
	if err != nil {
		r.close()
		return nil, err
	}

	f := &File{
		reader:      r,
		bins:        bins,
		matrixType:  opts.MatrixType,
		unit:        opts.Unit,
		blockCache:  cache.NewBlockCache(opts.CacheBytes),
		weightCache: newWeightCache(),
		footers:     make(map[footerKey]*Footer),
	}
	if opts.CacheBytes == 0 {
		if err := f.OptimizeCacheForRandomAccess(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func sniffFormat(pathOrURL string) error {
	fs, err := binio.Open(pathOrURL)
	if err != nil {
		return err
	}
	defer fs.Close()

	magic := make([]byte, 8)
	if fs.Size() < int64(len(magic)) {
		return fmt.Errorf("%w: %s is too short to be a contact matrix file", ErrInvalidFormat, pathOrURL)
	}
	if err := fs.Read(magic); err != nil {
		return err
	}
	switch {
	case bytes.Equal(magic[:4], Magic[:]):
		return nil
	case bytes.Equal(magic, hdf5Magic):
		return fmt.Errorf("%w: %s is a grouped-format (hierarchical container) file; this backend reads block-compressed files only",
			ErrInvalidFormat, pathOrURL)
	default:
		return fmt.Errorf("%w: %s does not look like a contact matrix file", ErrInvalidFormat, pathOrURL)
	}
}

// Close releases the byte stream. Selectors and iterators derived from
// the file must not be used afterwards.
func (f *File) Close() error { return f.reader.close() }

// Path returns the path or URL the file was opened with.
func (f *File) Path() string { return f.reader.path() }

// Version returns the on-disk format version (6-9).
func (f *File) Version() int32 { return f.reader.version() }

// Assembly returns the genome identifier recorded in the header.
func (f *File) Assembly() string { return f.reader.header.GenomeID }

// Attributes returns the header's attribute dictionary.
func (f *File) Attributes() map[string]string { return f.reader.header.Attributes }

// Chromosomes returns the reference stored in the file.
func (f *File) Chromosomes() *genome.Reference { return f.reader.header.Chromosomes }

// Bins returns the bin table at the opened resolution.
func (f *File) Bins() *genome.BinTable { return f.bins }

// Resolution returns the opened bin width.
func (f *File) Resolution() uint32 { return f.bins.Resolution() }

// Resolutions lists every BP resolution stored in the file.
func (f *File) Resolutions() []uint32 { return f.reader.header.Resolutions }

// AvailableNormalizations lists the methods with weight vectors at the
// opened unit and resolution.
func (f *File) AvailableNormalizations() ([]Normalization, error) {
	return f.reader.listAvailableNormalizations(f.unit, f.Resolution())
}

// getFooter parses (or returns the cached) footer for one pair.
func (f *File) getFooter(chrom1, chrom2 genome.Chromosome, norm Normalization) (*Footer, error) {
	key := footerKey{chrom1.ID, chrom2.ID, f.matrixType, norm, f.unit, f.Resolution()}
	if footer, ok := f.footers[key]; ok {
		return footer, nil
	}
	w1 := f.weightCache.getOrInit(chrom1.ID, norm)
	w2 := f.weightCache.getOrInit(chrom2.ID, norm)
	footer, err := f.reader.readFooter(chrom1, chrom2, f.matrixType, norm, f.unit, f.Resolution(), w1, w2)
	if err != nil {
		return nil, err
	}
	f.footers[key] = footer
	return footer, nil
}

// Fetch returns a selector over the whole genome. Chromosome pairs
// whose weight vectors are absent are dropped, provided at least one
// pair is retainable.
func (f *File) Fetch(norm Normalization) (*GenomeWideSelector, error) {
	chroms := f.Chromosomes().Chromosomes()
	sel := &GenomeWideSelector{bins: f.bins}
	var lastMissing *NormalizationNotFoundError
	attempted := 0
	for i := range chroms {
		if chroms[i].IsAll() {
			continue
		}
		for j := i; j < len(chroms); j++ {
			if chroms[j].IsAll() {
				continue
			}
			attempted++
			sub, err := f.FetchChromPair(chroms[i], 0, chroms[i].Length, chroms[j], 0, chroms[j].Length, norm)
			if err != nil {
				if nf, ok := err.(*NormalizationNotFoundError); ok {
					lastMissing = nf
					continue
				}
				return nil, err
			}
			if !sub.Empty() {
				sel.selectors = append(sel.selectors, sub)
			}
		}
	}
	if len(sel.selectors) == 0 && attempted > 0 && lastMissing != nil {
		return nil, lastMissing
	}
	return sel, nil
}

// FetchRange returns a selector for a single string range (the square
// region range x range).
func (f *File) FetchRange(query string, norm Normalization, syntax QuerySyntax) (*PixelSelector, error) {
	gi, err := f.parseRange(query, syntax)
	if err != nil {
		return nil, err
	}
	return f.FetchChromPair(gi.Chrom, gi.Start, gi.End, gi.Chrom, gi.Start, gi.End, norm)
}

// Fetch2 returns a selector for a pair of string ranges.
func (f *File) Fetch2(query1, query2 string, norm Normalization, syntax QuerySyntax) (*PixelSelector, error) {
	gi1, err := f.parseRange(query1, syntax)
	if err != nil {
		return nil, err
	}
	gi2, err := f.parseRange(query2, syntax)
	if err != nil {
		return nil, err
	}
	return f.FetchChromPair(gi1.Chrom, gi1.Start, gi1.End, gi2.Chrom, gi2.Start, gi2.End, norm)
}

func (f *File) parseRange(query string, syntax QuerySyntax) (genome.Interval, error) {
	var gi genome.Interval
	var err error
	if syntax == BED {
		gi, err = genome.ParseBED(f.Chromosomes(), query)
	} else {
		gi, err = genome.ParseUCSC(f.Chromosomes(), query)
	}
	if err != nil {
		return genome.Interval{}, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return gi, nil
}

// FetchChrom returns a selector for (chrom, start, end) squared.
func (f *File) FetchChrom(chromName string, start, end uint32, norm Normalization) (*PixelSelector, error) {
	chrom, ok := f.Chromosomes().ByName(chromName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown chromosome %q", ErrInvalidQuery, chromName)
	}
	return f.FetchChromPair(chrom, start, end, chrom, start, end, norm)
}

// FetchChromPair returns a selector for the rectangle
// (chrom1, start1, end1) x (chrom2, start2, end2). end == 0 selects
// the whole chromosome.
func (f *File) FetchChromPair(chrom1 genome.Chromosome, start1, end1 uint32, chrom2 genome.Chromosome, start2, end2 uint32, norm Normalization) (*PixelSelector, error) {
	if end1 == 0 {
		end1 = chrom1.Length
	}
	if end2 == 0 {
		end2 = chrom2.Length
	}
	for _, q := range []struct {
		chrom      genome.Chromosome
		start, end uint32
	}{{chrom1, start1, end1}, {chrom2, start2, end2}} {
		if q.start >= q.end {
			return nil, fmt.Errorf("%w: %s: start (%d) must be less than end (%d)", ErrInvalidQuery, q.chrom.Name, q.start, q.end)
		}
		if q.end > q.chrom.Length {
			return nil, fmt.Errorf("%w: %s: end (%d) past the end of the chromosome (%d bp)", ErrInvalidQuery, q.chrom.Name, q.end, q.chrom.Length)
		}
	}
	if chrom1.ID > chrom2.ID {
		return nil, fmt.Errorf("%w: %s:%s queries the lower triangle of the matrix", ErrInvalidQuery, chrom1.Name, chrom2.Name)
	}

	footer, err := f.getFooter(chrom1, chrom2, norm)
	if err != nil {
		return nil, err
	}

	b11, err := f.bins.AtPos(chrom1, start1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	b12, err := f.bins.AtPos(chrom1, end1-1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	b21, err := f.bins.AtPos(chrom2, start2)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	b22, err := f.bins.AtPos(chrom2, end2-1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}

	return newPixelSelector(f.reader, footer, f.blockCache, f.bins,
		PixelCoordinates{Bin1: b11, Bin2: b12},
		PixelCoordinates{Bin1: b21, Bin2: b22})
}

// FetchBinRange returns a selector for the square region
// [firstBin, lastBin) x [firstBin, lastBin) of global bin ids.
func (f *File) FetchBinRange(firstBin, lastBin uint64, norm Normalization) (*PixelSelector, error) {
	return f.FetchBins(firstBin, lastBin, firstBin, lastBin, norm)
}

// FetchBins returns a selector for the rectangle
// [firstBin1, lastBin1) x [firstBin2, lastBin2) of global bin ids.
func (f *File) FetchBins(firstBin1, lastBin1, firstBin2, lastBin2 uint64, norm Normalization) (*PixelSelector, error) {
	if firstBin1 >= lastBin1 || firstBin2 >= lastBin2 {
		return nil, fmt.Errorf("%w: empty bin range", ErrInvalidQuery)
	}
	b11, err := f.bins.At(firstBin1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	b12, err := f.bins.At(lastBin1 - 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	b21, err := f.bins.At(firstBin2)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	b22, err := f.bins.At(lastBin2 - 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if b11.Chrom.ID != b12.Chrom.ID || b21.Chrom.ID != b22.Chrom.ID {
		return nil, fmt.Errorf("%w: bin range spans multiple chromosomes", ErrInvalidQuery)
	}
	return f.FetchChromPair(b11.Chrom, b11.Start, b12.End, b21.Chrom, b21.Start, b22.End, norm)
}

// Normalization assembles the weight vector of one chromosome,
// NaN-filled when the file has no vector for it.
func (f *File) Normalization(norm Normalization, chrom genome.Chromosome) (*Weights, error) {
	expected := f.bins.ChromBins(chrom)
	w := &Weights{Kind: Divisive, Values: make([]float64, expected)}
	for i := range w.Values {
		w.Values[i] = math.NaN()
	}
	if norm.IsNone() {
		for i := range w.Values {
			w.Values[i] = 1
		}
		return w, nil
	}

	sel, err := f.FetchChromPair(chrom, 0, chrom.Length, chrom, 0, chrom.Length, norm)
	if err != nil {
		if _, ok := err.(*NormalizationNotFoundError); ok {
			return w, nil
		}
		return nil, err
	}
	if !sel.Weights1().Empty() {
		copy(w.Values, sel.Weights1().Values)
	}
	return w, nil
}

// NormalizationGenomeWide concatenates the per-chromosome weight
// vectors over the whole bin table.
func (f *File) NormalizationGenomeWide(norm Normalization) (*Weights, error) {
	w := &Weights{Kind: Divisive, Values: make([]float64, 0, f.bins.Len())}
	for _, chrom := range f.Chromosomes().Chromosomes() {
		if chrom.IsAll() {
			continue
		}
		cw, err := f.Normalization(norm, chrom)
		if err != nil {
			return nil, err
		}
		w.Values = append(w.Values, cw.Values...)
	}
	return w, nil
}

// CacheHitRate, CacheCapacityBytes, ResetCacheStats, ClearCache, and
// SetCacheCapacity expose the pixel cache for tuning.
func (f *File) CacheHitRate() float64      { return f.blockCache.HitRate() }
func (f *File) CacheCapacityBytes() uint64 { return f.blockCache.CapacityBytes() }
func (f *File) ResetCacheStats()           { f.blockCache.ResetStats() }
func (f *File) ClearCache()                { f.blockCache.Clear() }

func (f *File) SetCacheCapacity(capacityBytes uint64, shrink bool) {
	f.blockCache.SetCapacity(capacityBytes, shrink)
}

const minCacheBytes = 10_000_000

// OptimizeCacheForRandomAccess sizes the cache for random cis queries.
func (f *File) OptimizeCacheForRandomAccess() error {
	size, err := f.estimateCacheSizeCis()
	if err != nil {
		return err
	}
	if size < minCacheBytes {
		size = minCacheBytes
	}
	debugf("hic: %s: sizing pixel cache to %d bytes (random access)", f.Path(), size)
	f.blockCache.SetCapacity(size, false)
	return nil
}

// OptimizeCacheForIteration sizes the cache for whole-genome sweeps
// (cis plus trans).
func (f *File) OptimizeCacheForIteration() error {
	size, err := f.estimateCacheSizeCis()
	if err != nil {
		return err
	}
	trans, err := f.estimateCacheSizeTrans()
	if err != nil {
		return err
	}
	size += trans
	if size < minCacheBytes {
		size = minCacheBytes
	}
	debugf("hic: %s: sizing pixel cache to %d bytes (iteration)", f.Path(), size)
	f.blockCache.SetCapacity(size, false)
	return nil
}

func (f *File) estimateCacheSizeCis() (uint64, error) {
	if f.Version() < 9 {
		// Block-overlap detection is cheaper before the diagonal grid;
		// the flat floor is enough.
		return 0, nil
	}
	chrom := f.Chromosomes().Longest()
	if chrom.Length == 0 {
		return 0, nil
	}
	sel, err := f.FetchChromPair(chrom, 0, chrom.Length, chrom, 0, chrom.Length, NormNone)
	if err != nil {
		return 0, err
	}
	return sel.EstimateOptimalCacheSize(500)
}

func (f *File) estimateCacheSizeTrans() (uint64, error) {
	if f.Version() < 9 {
		return 0, nil
	}
	chrom1 := f.Chromosomes().Longest()
	var chrom2 genome.Chromosome
	found := false
	for _, c := range f.Chromosomes().Chromosomes() {
		if !c.IsAll() && c.ID != chrom1.ID {
			chrom2 = c
			found = true
			break
		}
	}
	if !found {
		return 0, nil
	}
	if chrom1.ID > chrom2.ID {
		chrom1, chrom2 = chrom2, chrom1
	}
	sel, err := f.FetchChromPair(chrom1, 0, chrom1.Length, chrom2, 0, chrom2.Length, NormNone)
	if err != nil {
		return 0, err
	}
	size, err := sel.EstimateOptimalCacheSize(500)
	if err != nil {
		return 0, err
	}
	numTransBins := f.bins.Len() - f.bins.ChromBins(chrom1)
	numChrom2Bins := f.bins.ChromBins(chrom2)
	if numChrom2Bins == 0 {
		return 0, nil
	}
	return (size + numChrom2Bins - 1) / numChrom2Bins * numTransBins, nil
}

// ListResolutions reads only the header of a file and returns its
// resolution list.
func ListResolutions(pathOrURL string) ([]uint32, error) {
	r, err := newFileReader(pathOrURL)
	if err != nil {
		return nil, err
	}
	defer r.close()
	return r.header.Resolutions, nil
}
