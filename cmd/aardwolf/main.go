// Command aardwolf runs the analysis-and-instrumentation pipeline over
// one or more Python source files, producing a .aard static file and a
// run manifest per input. Executing the instrumented tree is left to a
// host evaluator prepared with the runtime symbols.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/viant/aardwolf/pipeline"
)

func main() {
	outdir := flag.String("out", "", "output directory for static artifacts (default: alongside each source)")
	manifest := flag.Bool("manifest", true, "write a YAML run manifest next to each static file")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: aardwolf [-out dir] file.py...")
		os.Exit(2)
	}

	ctx := context.Background()
	processor := pipeline.New()

	exitCode := 0
	for _, path := range flag.Args() {
		result, err := processor.ProcessFile(ctx, path, *outdir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "aardwolf: %s: %v\n", path, err)
			exitCode = 1
			continue
		}
		if *manifest {
			dir := *outdir
			if dir == "" {
				dir = filepath.Dir(path)
			}
			if _, err := processor.WriteManifest(ctx, result.Manifest, dir); err != nil {
				fmt.Fprintf(os.Stderr, "aardwolf: %s: %v\n", path, err)
				exitCode = 1
				continue
			}
		}
		fmt.Printf("%s: file id %d, %d statements, static file %s\n",
			path, result.Manifest.FileID, len(result.Analysis.Statements), result.Manifest.StaticFile)
	}
	os.Exit(exitCode)
}
