// hictool inspects, dumps, and merges block-compressed Hi-C contact
// matrix files.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/xerrors"
)

const globalHelp = `syntax: hictool <command> [options]

To get help on any command, use hictool <command> -help.

Available commands:
	info	print header metadata (assembly, chromosomes, resolutions)
	dump	print interactions as text
	merge	merge files at one resolution into a new file
`

var debug = flag.Bool("debug", false, "enable debug mode: trace-verbosity diagnostics on stderr")

func usage(fset *flag.FlagSet, help string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "%s", help)
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fset.PrintDefaults()
	}
}

func funcmain() error {
	flag.Usage = usage(flag.CommandLine, globalHelp)
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	if *debug {
		enableDebug()
	}

	ctx := context.Background()
	verb, args := flag.Arg(0), flag.Args()[1:]
	switch verb {
	case "info":
		return info(ctx, args)
	case "dump":
		return dump(ctx, args)
	case "merge":
		return merge(ctx, args)
	case "help":
		flag.Usage()
		return nil
	}
	return xerrors.Errorf("unknown command %q", verb)
}

func main() {
	if err := funcmain(); err != nil {
		log.Fatal(err)
	}
}
