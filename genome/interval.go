package genome

import (
	"fmt"
	"strconv"
	"strings"
)

// Interval is a half-open genomic range [Start, End) on one chromosome.
type Interval struct {
	Chrom Chromosome
	Start uint32
	End   uint32
}

func (gi Interval) String() string {
	return fmt.Sprintf("%s:%d-%d", gi.Chrom.Name, gi.Start, gi.End)
}

// ParseUCSC parses "chr", "chr:pos" or "chr:start-end" queries.
// Positions may contain thousands separators ("chr2L:1,000-2,000").
// A bare chromosome name denotes the whole chromosome.
func ParseUCSC(ref *Reference, query string) (Interval, error) {
	if query == "" {
		return Interval{}, fmt.Errorf("genome: query is empty")
	}
	if chrom, ok := ref.ByName(query); ok {
		return Interval{Chrom: chrom, Start: 0, End: chrom.Length}, nil
	}

	colon := strings.LastIndexByte(query, ':')
	if colon < 0 {
		return Interval{}, fmt.Errorf("genome: unknown chromosome %q", query)
	}
	chrom, ok := ref.ByName(query[:colon])
	if !ok {
		return Interval{}, fmt.Errorf("genome: unknown chromosome %q in query %q", query[:colon], query)
	}

	coords := strings.ReplaceAll(query[colon+1:], ",", "")
	dash := strings.LastIndexByte(coords, '-')
	if dash < 0 {
		// "chr:pos" selects the single position.
		pos, err := parsePos(coords)
		if err != nil {
			return Interval{}, fmt.Errorf("genome: query %q is malformed: %v", query, err)
		}
		if pos == 0 {
			return Interval{}, fmt.Errorf("genome: query %q: UCSC positions are 1-based", query)
		}
		return checkInterval(chrom, pos-1, pos)
	}

	start, err := parsePos(coords[:dash])
	if err != nil {
		return Interval{}, fmt.Errorf("genome: query %q is malformed: %v", query, err)
	}
	end, err := parsePos(coords[dash+1:])
	if err != nil {
		return Interval{}, fmt.Errorf("genome: query %q is malformed: %v", query, err)
	}
	if start == 0 {
		return Interval{}, fmt.Errorf("genome: query %q: UCSC positions are 1-based", query)
	}
	return checkInterval(chrom, start-1, end)
}

// ParseBED parses a 0-based, tab-separated "chrom\tstart\tend" record.
func ParseBED(ref *Reference, query string) (Interval, error) {
	if query == "" {
		return Interval{}, fmt.Errorf("genome: query is empty")
	}
	fields := strings.Split(query, "\t")
	if len(fields) < 3 {
		return Interval{}, fmt.Errorf("genome: BED query %q has %d fields, want 3", query, len(fields))
	}
	chrom, ok := ref.ByName(fields[0])
	if !ok {
		return Interval{}, fmt.Errorf("genome: unknown chromosome %q in query %q", fields[0], query)
	}
	start, err := parsePos(fields[1])
	if err != nil {
		return Interval{}, fmt.Errorf("genome: BED query %q: %v", query, err)
	}
	end, err := parsePos(fields[2])
	if err != nil {
		return Interval{}, fmt.Errorf("genome: BED query %q: %v", query, err)
	}
	return checkInterval(chrom, start, end)
}

func parsePos(s string) (uint32, error) {
	if s == "" {
		return 0, fmt.Errorf("missing position")
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid position %q", s)
	}
	return uint32(n), nil
}

func checkInterval(chrom Chromosome, start, end uint32) (Interval, error) {
	if start >= end {
		return Interval{}, fmt.Errorf("genome: %s: start (%d) must be less than end (%d)", chrom.Name, start, end)
	}
	if end > chrom.Length {
		return Interval{}, fmt.Errorf("genome: %s: end (%d) past the end of the chromosome (%d bp)", chrom.Name, end, chrom.Length)
	}
	return Interval{Chrom: chrom, Start: start, End: end}, nil
}
