// Command veedcore-transfer exports and imports portable case documents.
//
// Usage:
//
//	veedcore-transfer export [-case <id>] [-out <file>]
//	veedcore-transfer import -in <file>
//
// Storage and blob backends are selected via the VEEDCORE_STORAGE_* and
// VEEDCORE_BLOB_* environment variables documented in internal/core and
// internal/blob.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"veedcore/internal/blob"
	"veedcore/internal/core"
)

var exitFunc = os.Exit

func main() {
	if len(os.Args) < 2 {
		usage()
		exitFunc(2)
		return
	}

	ctx := context.Background()
	switch os.Args[1] {
	case "export":
		exitFunc(runExport(ctx, os.Args[2:]))
	case "import":
		exitFunc(runImport(ctx, os.Args[2:]))
	default:
		usage()
		exitFunc(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: veedcore-transfer export [-case <id>] [-out <file>] | import -in <file>")
}

func openService(ctx context.Context) (*core.Service, error) {
	store, err := core.OpenPersistentStore(core.NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	blobs, err := blob.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return core.NewService(store, core.WithBlobStore(blobs)), nil
}

func runExport(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	caseID := fs.String("case", "", "export a single case by id (default: all cases)")
	out := fs.String("out", "", "output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	svc, err := openService(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create output: %v\n", err)
			return 1
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	if *caseID != "" {
		err = svc.WriteExportCase(ctx, *caseID, w)
	} else {
		err = svc.WriteExportAll(ctx, w)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "export: %v\n", err)
		return 1
	}
	return 0
}

func runImport(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	in := fs.String("in", "", "input file (required)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *in == "" {
		fmt.Fprintln(os.Stderr, "import: -in required")
		return 2
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		return 1
	}

	svc, err := openService(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	summary, err := svc.ImportDocument(ctx, data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "import: %v\n", err)
		return 1
	}
	fmt.Printf("imported: %d created, %d merged, %d blobs written, %d blobs skipped\n",
		summary.CasesCreated, summary.CasesMerged, summary.BlobsWritten, summary.BlobsSkipped)
	return 0
}
