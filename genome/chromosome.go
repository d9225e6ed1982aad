// Package genome holds the immutable reference tables shared by every
// contact matrix reader: chromosomes, bin tables, and genomic interval
// parsing.
package genome

import (
	"fmt"
	"math"
	"strings"
)

// NullChromID marks "no chromosome".
const NullChromID = math.MaxUint32

// Chromosome is one sequence of the reference assembly. ID is a dense
// index into the owning Reference.
type Chromosome struct {
	ID     uint32
	Name   string
	Length uint32
}

// IsAll reports whether this is the whole-genome pseudo-chromosome.
func (c Chromosome) IsAll() bool {
	return strings.EqualFold(c.Name, "all")
}

// Reference is an ordered, immutable set of chromosomes with
// ID == position and unique names.
type Reference struct {
	chroms []Chromosome
	byName map[string]uint32
}

// NewReference builds a Reference from names and matching lengths.
// Chromosome ids are assigned by position.
func NewReference(names []string, lengths []uint32) (*Reference, error) {
	if len(names) != len(lengths) {
		return nil, fmt.Errorf("genome: %d names but %d lengths", len(names), len(lengths))
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("genome: reference without chromosomes")
	}
	r := &Reference{
		chroms: make([]Chromosome, len(names)),
		byName: make(map[string]uint32, len(names)),
	}
	for i, name := range names {
		if lengths[i] == 0 {
			return nil, fmt.Errorf("genome: chromosome %q has length 0", name)
		}
		if _, ok := r.byName[name]; ok {
			return nil, fmt.Errorf("genome: duplicate chromosome %q", name)
		}
		r.chroms[i] = Chromosome{ID: uint32(i), Name: name, Length: lengths[i]}
		r.byName[name] = uint32(i)
	}
	return r, nil
}

// Len returns the number of chromosomes.
func (r *Reference) Len() int { return len(r.chroms) }

// At returns the chromosome with the given id.
func (r *Reference) At(id uint32) (Chromosome, error) {
	if int(id) >= len(r.chroms) {
		return Chromosome{}, fmt.Errorf("genome: chromosome id %d out of range (have %d)", id, len(r.chroms))
	}
	return r.chroms[id], nil
}

// ByName looks a chromosome up by name.
func (r *Reference) ByName(name string) (Chromosome, bool) {
	id, ok := r.byName[name]
	if !ok {
		return Chromosome{}, false
	}
	return r.chroms[id], true
}

// Chromosomes returns the chromosomes in id order. The returned slice
// must not be modified.
func (r *Reference) Chromosomes() []Chromosome { return r.chroms }

// Longest returns the chromosome with the greatest length, ignoring the
// whole-genome pseudo-chromosome.
func (r *Reference) Longest() Chromosome {
	var best Chromosome
	for _, c := range r.chroms {
		if c.IsAll() {
			continue
		}
		if c.Length > best.Length {
			best = c
		}
	}
	return best
}

// LongestName returns the chromosome with the longest name, ignoring
// the whole-genome pseudo-chromosome.
func (r *Reference) LongestName() Chromosome {
	var best Chromosome
	for _, c := range r.chroms {
		if c.IsAll() {
			continue
		}
		if len(c.Name) > len(best.Name) {
			best = c
		}
	}
	return best
}

// Equal reports whether two references describe the same assembly.
func (r *Reference) Equal(other *Reference) bool {
	if r.Len() != other.Len() {
		return false
	}
	for i := range r.chroms {
		if r.chroms[i] != other.chroms[i] {
			return false
		}
	}
	return true
}
