// Command validate checks that a SQLite store agrees with the raw BEA
// artifacts it was built from. With -bundle it also verifies an exported bundle.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -raw-dir data/raw \
//	  -db data/rpp.db \
//	  -bundle data/seed
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
)

func main() {
	rawDir := flag.String("raw-dir", "data/raw", "directory containing msa_rpp.json and state_rpp.json")
	dbPath := flag.String("db", "data/rpp.db", "path to the built SQLite store")
	bundleDir := flag.String("bundle", "", "optional exported bundle directory to verify")
	flag.Parse()

	if *rawDir == "" || *dbPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(context.Background(), os.Stdout, *rawDir, *dbPath, *bundleDir); code != 0 {
		os.Exit(code)
	}
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func run(ctx context.Context, out io.Writer, rawDir, dbPath, bundleDir string) int {
	fmt.Fprintln(out, "=== RPP Build Integrity Validation ===")
	fmt.Fprintln(out)

	src, err := loadSources(ctx, rawDir, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	defer src.db.Close()

	phases := []*phase{
		validateArtifacts(src),
		validateStore(ctx, src),
		validateCrossSource(src),
	}
	if bundleDir != "" {
		phases = append(phases, validateBundle(bundleDir, src))
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Rows: %d msas, %d msa_history, %d states, %d state_history\n",
		src.counts["msas"], src.counts["msa_history"], src.counts["states"], src.counts["state_history"])

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}
