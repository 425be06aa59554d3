// Command archive-check validates a local staging directory against the
// archive product catalog before upload: every file must follow the
// product/site/table.csv layout, name a table its product release ships,
// and decode as a CSV table with at least one row.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"carboncore/internal/archive"
)

var exitFunc = os.Exit

// main runs the command-line interface using the program arguments and exits
// the process with the status code returned by cli.
func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("archive-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var dir string
	fs.StringVar(&dir, "dir", "archivedata", "staging directory to validate")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	checked, err := run(dir)
	if err != nil {
		if _, writeErr := fmt.Fprintf(stderr, "Archive staging check failed: %v\n", err); writeErr != nil {
			return 1
		}
		return 1
	}
	if _, writeErr := fmt.Fprintf(stdout, "Archive staging check passed (%d tables).\n", checked); writeErr != nil {
		return 1
	}
	return 0
}

// validatePath rejects empty and path-traversing directory references. This
// mitigates G304 concerns around variable-based file inclusion.
func validatePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("empty path")
	}
	clean := filepath.Clean(p)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("path traversal not allowed: %s", p)
	}
	return clean, nil
}

// run walks the staging directory and validates every entry, returning the
// number of tables checked. The first offending entry aborts the walk.
func run(dir string) (int, error) {
	safeDir, err := validatePath(dir)
	if err != nil {
		return 0, err
	}
	checked := 0
	walkErr := filepath.Walk(safeDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(safeDir, path)
		if relErr != nil {
			return relErr
		}
		if err := checkEntry(path, filepath.ToSlash(rel)); err != nil {
			return err
		}
		checked++
		return nil
	})
	if walkErr != nil {
		return 0, walkErr
	}
	if checked == 0 {
		return 0, errors.New("staging directory holds no tables")
	}
	return checked, nil
}

// checkEntry validates one staged file against the product catalog and
// decodes it to prove the CSV is well formed.
func checkEntry(path, key string) error {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[1] == "" || !strings.HasSuffix(parts[2], ".csv") {
		return fmt.Errorf("%s: want product/site/table.csv", key)
	}
	product := archive.Product(parts[0])
	known := product.Tables()
	if known == nil {
		return fmt.Errorf("%s: unknown product %q", key, parts[0])
	}
	name := strings.TrimSuffix(parts[2], ".csv")
	if !tableKnown(known, name) {
		return fmt.Errorf("%s: product %s ships no table %q", key, parts[0], name)
	}

	file, err := os.Open(path) // #nosec G304: path comes from the validated walk
	if err != nil {
		return err
	}
	tab, decodeErr := archive.DecodeTable(name, file)
	if closeErr := file.Close(); closeErr != nil && decodeErr == nil {
		decodeErr = closeErr
	}
	if decodeErr != nil {
		return fmt.Errorf("%s: %w", key, decodeErr)
	}
	if tab.Len() == 0 {
		return fmt.Errorf("%s: table has no rows", key)
	}
	return nil
}

func tableKnown(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
