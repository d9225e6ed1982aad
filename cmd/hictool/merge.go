package main

import (
	"context"
	"flag"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/genomekit/hic"
)

const mergeHelp = `hictool merge [-flags] <in1.hic> <in2.hic> [in3.hic ...]

Merge two or more files at one resolution into a new file, summing
counts at matching coordinates. All inputs must share a reference
genome. The output is written atomically.

Example:
  % hictool merge -resolution 100000 -o merged.hic rep1.hic rep2.hic
`

func merge(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("merge", flag.ExitOnError)
	var (
		resolution = fset.Uint("resolution", 0, "resolution to merge at (required)")
		output     = fset.String("o", "", "output path (required)")
	)
	fset.Usage = usage(fset, mergeHelp)
	fset.Parse(args)
	if fset.NArg() < 2 {
		return xerrors.Errorf("syntax: merge <in1.hic> <in2.hic> [...]")
	}
	if *resolution == 0 {
		return xerrors.Errorf("-resolution is required")
	}
	if *output == "" {
		return xerrors.Errorf("-o is required")
	}

	// Opening parses headers (and, remotely, issues range requests);
	// do the inputs in parallel.
	var (
		eg    errgroup.Group
		mu    sync.Mutex
		files = make([]*hic.File, fset.NArg())
	)
	for i, path := range fset.Args() {
		i, path := i, path // copy
		eg.Go(func() error {
			f, err := hic.Open(path, uint32(*resolution))
			if err != nil {
				return err
			}
			mu.Lock()
			files[i] = f
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		for _, f := range files {
			if f != nil {
				f.Close()
			}
		}
		return err
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	log.Printf("merging %d files at resolution %d into %s", len(files), *resolution, *output)
	return hic.MergeToFile(*output, files)
}
