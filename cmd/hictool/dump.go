package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/mattn/go-isatty"
	"golang.org/x/xerrors"

	"github.com/genomekit/hic"
	"github.com/genomekit/hic/pixel"
	"github.com/genomekit/hic/transform"
)

const dumpHelp = `hictool dump [-flags] <file.hic>

Print interactions as tab-separated text (BG2: chrom1 start1 end1
chrom2 start2 end2 count), whole genome by default.

Examples:
  % hictool dump -resolution 100000 4DNFIZ1ZVXC8.hic
  % hictool dump -resolution 10000 -range chr2L:10,000,000-20,000,000 4DNFIZ1ZVXC8.hic
  % hictool dump -resolution 10000 -range chr2L -range2 chr3L -o out.tsv.gz 4DNFIZ1ZVXC8.hic
`

func dump(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("dump", flag.ExitOnError)
	var (
		resolution = fset.Uint("resolution", 0, "resolution to read (required)")
		rang       = fset.String("range", "", "UCSC range to dump (default: whole genome)")
		rang2      = fset.String("range2", "", "second UCSC range (defaults to -range)")
		bed        = fset.Bool("bed", false, "parse ranges as 0-based tab-separated BED instead of UCSC")
		norm       = fset.String("norm", "NONE", "normalization method (NONE, VC, VC_SQRT, KR, SCALE, ...)")
		matrix     = fset.String("matrix-type", "observed", "matrix type: observed, expected, or oe")
		joined     = fset.Bool("join", true, "print genomic coordinates (BG2); disable for raw bin ids (COO)")
		output     = fset.String("o", "", "write to this path instead of stdout (.gz output is compressed)")
	)
	fset.Usage = usage(fset, dumpHelp)
	fset.Parse(args)
	if fset.NArg() != 1 {
		return xerrors.Errorf("syntax: dump <file.hic>")
	}
	if *resolution == 0 {
		return xerrors.Errorf("-resolution is required")
	}

	matrixType, err := hic.ParseMatrixType(*matrix)
	if err != nil {
		return err
	}
	f, err := hic.OpenWith(fset.Arg(0), uint32(*resolution), hic.FileOptions{MatrixType: matrixType})
	if err != nil {
		return err
	}
	defer f.Close()

	out, closeOut, err := openOutput(*output)
	if err != nil {
		return err
	}
	defer closeOut()

	progress := *output != "" && isatty.IsTerminal(os.Stderr.Fd())

	syntax := hic.UCSC
	if *bed {
		syntax = hic.BED
	}

	var it pixel.Iter[float32]
	switch {
	case *rang == "":
		sel, err := f.Fetch(hic.Normalization(*norm))
		if err != nil {
			return err
		}
		if err := f.OptimizeCacheForIteration(); err != nil {
			return err
		}
		it = sel.Pixels(true)
	case *rang2 == "" || *rang2 == *rang:
		sel, err := f.FetchRange(*rang, hic.Normalization(*norm), syntax)
		if err != nil {
			return err
		}
		it = sel.Pixels(true)
	default:
		sel, err := f.Fetch2(*rang, *rang2, hic.Normalization(*norm), syntax)
		if err != nil {
			return err
		}
		it = sel.Pixels(true)
	}

	n := 0
	if *joined {
		j := transform.NewJoiner(it, f.Bins())
		for j.Next() {
			p := j.Pixel()
			fmt.Fprintf(out, "%s\t%d\t%d\t%s\t%d\t%d\t%g\n",
				p.Bin1.Chrom.Name, p.Bin1.Start, p.Bin1.End,
				p.Bin2.Chrom.Name, p.Bin2.Start, p.Bin2.End, p.Count)
			n++
			if progress && n%1_000_000 == 0 {
				log.Printf("dumped %d pixels", n)
			}
		}
		if err := j.Err(); err != nil {
			return err
		}
	} else {
		for it.Next() {
			p := it.Pixel()
			fmt.Fprintf(out, "%d\t%d\t%g\n", p.Bin1ID, p.Bin2ID, p.Count)
			n++
			if progress && n%1_000_000 == 0 {
				log.Printf("dumped %d pixels", n)
			}
		}
		if err := it.Err(); err != nil {
			return err
		}
	}
	return nil
}

// openOutput returns a buffered writer for path (stdout when empty),
// gzip-compressing when the path ends in .gz.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		w := bufio.NewWriter(os.Stdout)
		return w, w.Flush, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	if strings.HasSuffix(path, ".gz") {
		zw := pgzip.NewWriter(f)
		return zw, func() error {
			if err := zw.Close(); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		}, nil
	}
	bw := bufio.NewWriter(f)
	return bw, func() error {
		if err := bw.Flush(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}, nil
}
