package hic

import (
	"fmt"
	"sort"

	"github.com/genomekit/hic/genome"
	"github.com/genomekit/hic/internal/binio"
)

// Footer binds one queryable (chrom pair, matrix type, normalization,
// unit, resolution) combination to its block index, expected-value
// vector, and weight vectors. A Footer with FileOffset == -1 denotes a
// legal, empty matrix.
type Footer struct {
	Chrom1        genome.Chromosome
	Chrom2        genome.Chromosome
	Type          MatrixType
	Normalization Normalization
	Unit          MatrixUnit
	Resolution    uint32
	FileOffset    int64

	index *blockIndex
	// expected[d] is the expected count at bin distance d (intra
	// matrices in expected/oe mode only).
	expected []float64
	weights1 *Weights
	weights2 *Weights
}

func (f *Footer) empty() bool { return f.FileOffset == -1 || f.index.empty() }

// fileReader owns the byte stream and decodes headers, footers,
// indexes, and weight vectors.
type fileReader struct {
	fs     *binio.Stream
	header *Header
}

func newFileReader(pathOrURL string) (*fileReader, error) {
	fs, err := binio.Open(pathOrURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", pathOrURL, err)
	}
	h, err := readHeader(fs)
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("%s: %w", pathOrURL, err)
	}
	return &fileReader{fs: fs, header: h}, nil
}

func (r *fileReader) version() int32 { return r.header.Version }

func (r *fileReader) path() string { return r.fs.URL() }

func (r *fileReader) close() error { return r.fs.Close() }

// readNValues reads a record count, whose width depends on the file
// version.
func (r *fileReader) readNValues() (int64, error) {
	if r.version() > 8 {
		return r.fs.Int64()
	}
	n, err := r.fs.Int32()
	return int64(n), err
}

// readFloat reads an expected value or normalization factor: float32
// for v9+, float64 before.
func (r *fileReader) readFloat() (float64, error) {
	if r.version() > 8 {
		v, err := r.fs.Float32()
		return float64(v), err
	}
	return r.fs.Float64()
}

func (r *fileReader) floatSize() int64 {
	if r.version() > 8 {
		return 4
	}
	return 8
}

// readFooterOffset scans the master index for the "c1_c2" key,
// returning -1 when the pair has no interactions.
func (r *fileReader) readFooterOffset(chrom1ID, chrom2ID uint32) (int64, error) {
	if err := r.fs.Seek(r.header.MasterIndexOffset); err != nil {
		return 0, err
	}
	if _, err := r.readNValues(); err != nil { // nBytes
		return 0, err
	}
	nEntries, err := r.fs.Int32()
	if err != nil {
		return 0, err
	}

	key := fmt.Sprintf("%d_%d", chrom1ID, chrom2ID)
	pos := int64(-1)
	for i := int32(0); i < nEntries; i++ {
		foundKey, err := r.fs.CString()
		if err != nil {
			return 0, fmt.Errorf("reading master index entry %d: %w", i, err)
		}
		fpos, err := r.fs.Int64()
		if err != nil {
			return 0, err
		}
		if _, err := r.fs.Int32(); err != nil { // sizeInBytes
			return 0, err
		}
		if foundKey == key {
			pos = fpos
		}
	}
	return pos, nil
}

// readIndex decodes the block index for the wanted (unit, resolution)
// out of a per-pair matrix record, skipping the others by seek.
func (r *fileReader) readIndex(fileOffset int64, chrom1, chrom2 genome.Chromosome, wantedUnit MatrixUnit, wantedResolution uint32) (*blockIndex, error) {
	if err := r.fs.Seek(fileOffset); err != nil {
		return nil, err
	}
	if _, err := r.fs.Int32(); err != nil { // chrom1 id
		return nil, err
	}
	if _, err := r.fs.Int32(); err != nil { // chrom2 id
		return nil, err
	}
	nResolutions, err := r.fs.Int32()
	if err != nil {
		return nil, err
	}

	for i := int32(0); i < nResolutions; i++ {
		unitStr, err := r.fs.CString()
		if err != nil {
			return nil, err
		}
		foundUnit, err := ParseMatrixUnit(unitStr)
		if err != nil {
			return nil, err
		}
		if _, err := r.fs.Int32(); err != nil { // oldIndex
			return nil, err
		}
		sumCount, err := r.fs.Float32()
		if err != nil {
			return nil, err
		}
		// occupiedCellCount, percent5, percent95
		if err := r.fs.Skip(3 * 4); err != nil {
			return nil, err
		}
		foundResolution, err := r.fs.Int32()
		if err != nil {
			return nil, err
		}
		blockBinCount, err := r.fs.Int32()
		if err != nil {
			return nil, err
		}
		blockColumnCount, err := r.fs.Int32()
		if err != nil {
			return nil, err
		}
		nBlocks, err := r.fs.Int32()
		if err != nil {
			return nil, err
		}

		if foundUnit != wantedUnit || uint32(foundResolution) != wantedResolution {
			// block id (i32), file offset (i64), compressed size (i32)
			if err := r.fs.Skip(int64(nBlocks) * (4 + 8 + 4)); err != nil {
				return nil, err
			}
			continue
		}

		idx := &blockIndex{
			chrom1:           chrom1,
			chrom2:           chrom2,
			unit:             wantedUnit,
			resolution:       wantedResolution,
			version:          r.version(),
			blockBinCount:    uint64(blockBinCount),
			blockColumnCount: uint64(blockColumnCount),
			sumCount:         float64(sumCount),
			byID:             make(map[uint64]BlockDescriptor, nBlocks),
		}
		for j := int32(0); j < nBlocks; j++ {
			id, err := r.fs.Int32()
			if err != nil {
				return nil, err
			}
			offset, err := r.fs.Int64()
			if err != nil {
				return nil, err
			}
			size, err := r.fs.Int32()
			if err != nil {
				return nil, err
			}
			if offset+int64(size) > r.fs.Size() {
				return nil, fmt.Errorf("%w: block %d of %s:%s points past the end of the file (offset %d, size %d)",
					ErrInvalidFormat, id, chrom1.Name, chrom2.Name, offset, size)
			}
			if size > 0 {
				desc := BlockDescriptor{ID: uint64(id), FileOffset: offset, CompressedSize: uint32(size)}
				idx.byID[desc.ID] = desc
				idx.sorted = append(idx.sorted, desc)
			}
		}
		sort.Slice(idx.sorted, func(a, b int) bool { return idx.sorted[a].ID < idx.sorted[b].ID })
		return idx, nil
	}

	return nil, fmt.Errorf("%w: unable to find block map for %s:%s with unit %s and resolution %d",
		ErrInvalidFormat, chrom1.Name, chrom2.Name, wantedUnit, wantedResolution)
}

// readExpectedValues scans one expected-value section (unnormalized
// when withNorm is false), returning the vector matching (norm, unit,
// resolution) divided by chrom1's normalization factor, or nil.
func (r *fileReader) readExpectedValues(chrom1ID uint32, wantedNorm Normalization, wantedUnit MatrixUnit, wantedResolution uint32, withNorm bool) ([]float64, error) {
	if r.fs.Pos() == r.fs.Size() {
		return nil, nil
	}
	nSections, err := r.fs.Int32()
	if err != nil {
		return nil, err
	}

	var result []float64
	for i := int32(0); i < nSections; i++ {
		foundNorm := NormNone
		if withNorm {
			s, err := r.fs.CString()
			if err != nil {
				return nil, err
			}
			foundNorm = Normalization(s)
		}
		unitStr, err := r.fs.CString()
		if err != nil {
			return nil, err
		}
		foundUnit, err := ParseMatrixUnit(unitStr)
		if err != nil {
			return nil, err
		}
		foundResolution, err := r.fs.Int32()
		if err != nil {
			return nil, err
		}
		nValues, err := r.readNValues()
		if err != nil {
			return nil, err
		}

		store := result == nil && foundNorm == wantedNorm &&
			foundUnit == wantedUnit && uint32(foundResolution) == wantedResolution
		if store {
			result = make([]float64, nValues)
			for j := range result {
				if result[j], err = r.readFloat(); err != nil {
					return nil, err
				}
			}
			factors, err := r.readNormalizationFactors(chrom1ID)
			if err != nil {
				return nil, err
			}
			for _, factor := range factors {
				for j := range result {
					result[j] /= factor
				}
			}
		} else {
			if err := r.fs.Skip(nValues * r.floatSize()); err != nil {
				return nil, err
			}
			if _, err := r.readNormalizationFactors(chrom1ID); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

// readNormalizationFactors returns the per-chromosome factors matching
// wantedChrom.
func (r *fileReader) readNormalizationFactors(wantedChrom uint32) ([]float64, error) {
	nFactors, err := r.fs.Int32()
	if err != nil {
		return nil, err
	}
	var factors []float64
	for i := int32(0); i < nFactors; i++ {
		foundChrom, err := r.fs.Int32()
		if err != nil {
			return nil, err
		}
		v, err := r.readFloat()
		if err != nil {
			return nil, err
		}
		if uint32(foundChrom) == wantedChrom {
			factors = append(factors, v)
		}
	}
	return factors, nil
}

// readNormVectorIndex scans the normalization vector index at the
// current position, filling w1 and w2 (when still empty) with the
// vectors matching the wanted method, unit, and resolution.
func (r *fileReader) readNormVectorIndex(chrom1, chrom2 genome.Chromosome, wantedNorm Normalization, wantedUnit MatrixUnit, wantedResolution uint32, w1, w2 *Weights) error {
	if r.fs.Pos() == r.fs.Size() {
		return nil
	}
	nEntries, err := r.fs.Int32()
	if err != nil {
		return err
	}
	for i := int32(0); i < nEntries; i++ {
		s, err := r.fs.CString()
		if err != nil {
			return err
		}
		foundNorm := Normalization(s)
		foundChrom, err := r.fs.Int32()
		if err != nil {
			return err
		}
		unitStr, err := r.fs.CString()
		if err != nil {
			return err
		}
		foundUnit, err := ParseMatrixUnit(unitStr)
		if err != nil {
			return err
		}
		foundResolution, err := r.fs.Int32()
		if err != nil {
			return err
		}
		filePosition, err := r.fs.Int64()
		if err != nil {
			return err
		}
		if r.version() > 8 {
			_, err = r.fs.Int64() // sizeInBytes
		} else {
			_, err = r.fs.Int32()
		}
		if err != nil {
			return err
		}

		match := foundNorm == wantedNorm && foundUnit == wantedUnit && uint32(foundResolution) == wantedResolution
		if !match {
			continue
		}

		for _, target := range []struct {
			chrom genome.Chromosome
			w     *Weights
		}{{chrom1, w1}, {chrom2, w2}} {
			if uint32(foundChrom) != target.chrom.ID || !target.w.Empty() {
				continue
			}
			nBins := uint64((target.chrom.Length + wantedResolution - 1) / wantedResolution)
			pos := r.fs.Pos()
			values, err := r.readNormalizationVector(filePosition, nBins)
			if err != nil {
				return err
			}
			if err := r.fs.Seek(pos); err != nil {
				return err
			}
			target.w.Kind = Divisive
			target.w.Values = values
		}
	}
	return nil
}

// readNormalizationVector reads a weight vector, truncating the
// trailing zeros some files carry past the expected length.
func (r *fileReader) readNormalizationVector(fileOffset int64, numValuesExpected uint64) ([]float64, error) {
	if err := r.fs.Seek(fileOffset); err != nil {
		return nil, err
	}
	numValues, err := r.readNValues()
	if err != nil {
		return nil, err
	}
	if uint64(numValues) < numValuesExpected {
		return nil, fmt.Errorf("%w: normalization vector at %d is corrupted: expected %d values, found %d",
			ErrInvalidFormat, fileOffset, numValuesExpected, numValues)
	}
	if uint64(numValues) > numValuesExpected {
		debugf("hic: %s: normalization vector at %d has %d trailing values; truncating to %d",
			r.path(), fileOffset, uint64(numValues)-numValuesExpected, numValuesExpected)
	}
	values := make([]float64, numValuesExpected)
	for i := range values {
		if values[i], err = r.readFloat(); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// readFooter assembles the footer for one chromosome pair. w1 and w2
// come from the file-level weight cache and may already be populated.
func (r *fileReader) readFooter(chrom1, chrom2 genome.Chromosome, matrixType MatrixType, norm Normalization, unit MatrixUnit, resolution uint32, w1, w2 *Weights) (*Footer, error) {
	footer := &Footer{
		Chrom1:        chrom1,
		Chrom2:        chrom2,
		Type:          matrixType,
		Normalization: norm,
		Unit:          unit,
		Resolution:    resolution,
		weights1:      w1,
		weights2:      w2,
	}

	var err error
	if footer.FileOffset, err = r.readFooterOffset(chrom1.ID, chrom2.ID); err != nil {
		return nil, fmt.Errorf("%s: reading master index: %w", r.path(), err)
	}
	if footer.FileOffset == -1 {
		// No interactions for this pair: a legal, empty matrix.
		return footer, nil
	}

	afterMasterIndex := r.fs.Pos()
	if footer.index, err = r.readIndex(footer.FileOffset, chrom1, chrom2, unit, resolution); err != nil {
		return nil, fmt.Errorf("%s: %w", r.path(), err)
	}
	if err := r.fs.Seek(afterMasterIndex); err != nil {
		return nil, err
	}

	intra := chrom1.ID == chrom2.ID
	wantsExpected := matrixType == Expected || matrixType == OE
	if (matrixType == Observed && norm.IsNone()) || (wantsExpected && norm.IsNone() && !intra) {
		// Neither expected vectors nor weight vectors are needed.
		return footer, nil
	}

	expected, err := r.readExpectedValues(chrom1.ID, NormNone, unit, resolution, false)
	if err != nil {
		return nil, fmt.Errorf("%s: reading expected values: %w", r.path(), err)
	}
	if intra && wantsExpected && norm.IsNone() {
		if expected == nil {
			return nil, fmt.Errorf("%w: unable to find expected values for %s:%s at %d (%s)",
				ErrInvalidFormat, chrom1.Name, chrom2.Name, resolution, unit)
		}
		footer.expected = expected
		return footer, nil
	}

	expected, err = r.readExpectedValues(chrom1.ID, norm, unit, resolution, true)
	if err != nil {
		return nil, fmt.Errorf("%s: reading normalized expected values: %w", r.path(), err)
	}
	if intra && wantsExpected {
		footer.expected = expected
	}

	if err := r.readNormVectorIndex(chrom1, chrom2, norm, unit, resolution, w1, w2); err != nil {
		return nil, fmt.Errorf("%s: reading normalization vectors: %w", r.path(), err)
	}

	if w1.Empty() || w2.Empty() {
		missing1, missing2 := chrom1, chrom2
		if !w1.Empty() {
			missing1 = chrom2
		} else if !w2.Empty() {
			missing2 = chrom1
		}
		return nil, &NormalizationNotFoundError{
			Method: norm, Chrom1: missing1.Name, Chrom2: missing2.Name,
			Resolution: resolution, Unit: unit,
		}
	}
	if intra && wantsExpected && footer.expected == nil {
		// The normalized expected section may legally be absent; with
		// both weight vectors present this is still unreadable for
		// expected/oe queries.
		return nil, fmt.Errorf("%w: unable to find normalized expected values for %s at %d (%s)",
			ErrInvalidFormat, chrom1.Name, resolution, unit)
	}

	return footer, nil
}

// listAvailableNormalizations scans the normalized expected-value
// section of the first non-empty pair for method names stored at the
// given unit and resolution.
func (r *fileReader) listAvailableNormalizations(unit MatrixUnit, resolution uint32) ([]Normalization, error) {
	chroms := r.header.Chromosomes.Chromosomes()
	var offset int64 = -1
	var chromID uint32
	for _, c := range chroms {
		if c.IsAll() {
			continue
		}
		var err error
		if offset, err = r.readFooterOffset(c.ID, c.ID); err != nil {
			return nil, err
		}
		if offset != -1 {
			chromID = c.ID
			break
		}
	}
	if offset == -1 {
		return nil, nil
	}

	// Skip over the unnormalized section, then collect method names.
	if _, err := r.readExpectedValues(chromID, NormNone, unit, resolution, false); err != nil {
		return nil, err
	}
	if r.fs.Pos() == r.fs.Size() {
		return nil, nil
	}
	nSections, err := r.fs.Int32()
	if err != nil {
		return nil, err
	}
	seen := make(map[Normalization]bool)
	for i := int32(0); i < nSections; i++ {
		s, err := r.fs.CString()
		if err != nil {
			return nil, err
		}
		seen[Normalization(s)] = true
		if _, err := r.fs.CString(); err != nil { // unit
			return nil, err
		}
		if _, err := r.fs.Int32(); err != nil { // resolution
			return nil, err
		}
		nValues, err := r.readNValues()
		if err != nil {
			return nil, err
		}
		if err := r.fs.Skip(nValues * r.floatSize()); err != nil {
			return nil, err
		}
		if _, err := r.readNormalizationFactors(chromID); err != nil {
			return nil, err
		}
	}

	methods := make([]Normalization, 0, len(seen))
	for m := range seen {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })
	return methods, nil
}
