package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"golang.org/x/xerrors"

	"github.com/genomekit/hic"
)

const infoHelp = `hictool info [-flags] <file.hic>

Print header metadata: assembly, chromosomes, resolutions, attributes.

Example:
  % hictool info 4DNFIZ1ZVXC8.hic
`

func enableDebug() {
	hic.Debug = log.New(os.Stderr, "debug: ", log.LstdFlags)
}

func info(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("info", flag.ExitOnError)
	var (
		norms = fset.Bool("norms", false, "also list available normalization methods (requires a resolution)")
		res   = fset.Uint("resolution", 0, "resolution to probe for normalization methods (default: largest)")
	)
	fset.Usage = usage(fset, infoHelp)
	fset.Parse(args)
	if fset.NArg() != 1 {
		return xerrors.Errorf("syntax: info <file.hic>")
	}
	path := fset.Arg(0)

	resolutions, err := hic.ListResolutions(path)
	if err != nil {
		return err
	}
	sorted := append([]uint32(nil), resolutions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	resolution := uint32(*res)
	if resolution == 0 {
		resolution = sorted[len(sorted)-1]
	}
	f, err := hic.Open(path, resolution)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Printf("path:       %s\n", f.Path())
	fmt.Printf("format:     hic v%d\n", f.Version())
	fmt.Printf("assembly:   %s\n", f.Assembly())
	fmt.Printf("resolutions:")
	for _, r := range sorted {
		fmt.Printf(" %d", r)
	}
	fmt.Println()
	fmt.Printf("chromosomes (%d):\n", f.Chromosomes().Len())
	for _, c := range f.Chromosomes().Chromosomes() {
		fmt.Printf("\t%s\t%d\n", c.Name, c.Length)
	}
	if len(f.Attributes()) > 0 {
		keys := make([]string, 0, len(f.Attributes()))
		for k := range f.Attributes() {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("attributes:")
		for _, k := range keys {
			fmt.Printf("\t%s: %s\n", k, f.Attributes()[k])
		}
	}
	if *norms {
		methods, err := f.AvailableNormalizations()
		if err != nil {
			return err
		}
		fmt.Printf("normalizations at %d:", resolution)
		for _, m := range methods {
			fmt.Printf(" %s", m)
		}
		fmt.Println()
	}
	return nil
}
