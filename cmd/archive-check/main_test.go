package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeStagingDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return dir
}

func TestRunSuccess(t *testing.T) {
	dir := writeStagingDir(t, map[string]string{
		"DP1.10098.001/OSBS/vst_perplotperyear.csv": "plotID,plotType,totalSampledAreaTrees\nOSBS_001,tower,400\n",
		"DP1.00096.001/OSBS/mgp_perbulksample.csv":  "horizonID,bulkDensSampleType\nH1,Regular\n",
	})
	checked, err := run(dir)
	if err != nil {
		t.Fatalf("run() returned error: %v", err)
	}
	if checked != 2 {
		t.Fatalf("expected 2 tables checked, got %d", checked)
	}
}

func TestRunUnknownProduct(t *testing.T) {
	dir := writeStagingDir(t, map[string]string{
		"DP9.99999.001/OSBS/vst_perplotperyear.csv": "plotID\nOSBS_001\n",
	})
	if _, err := run(dir); err == nil || !strings.Contains(err.Error(), "unknown product") {
		t.Fatalf("expected unknown product error, got %v", err)
	}
}

func TestRunUnknownTable(t *testing.T) {
	dir := writeStagingDir(t, map[string]string{
		"DP1.10098.001/OSBS/nope.csv": "plotID\nOSBS_001\n",
	})
	if _, err := run(dir); err == nil || !strings.Contains(err.Error(), `ships no table "nope"`) {
		t.Fatalf("expected unknown table error, got %v", err)
	}
}

func TestRunBadLayout(t *testing.T) {
	dir := writeStagingDir(t, map[string]string{
		"loose.csv": "a\n1\n",
	})
	if _, err := run(dir); err == nil || !strings.Contains(err.Error(), "want product/site/table.csv") {
		t.Fatalf("expected layout error, got %v", err)
	}
}

func TestRunEmptyTable(t *testing.T) {
	dir := writeStagingDir(t, map[string]string{
		"DP1.10098.001/OSBS/vst_perplotperyear.csv": "plotID,plotType,totalSampledAreaTrees\n",
	})
	if _, err := run(dir); err == nil || !strings.Contains(err.Error(), "no rows") {
		t.Fatalf("expected empty table error, got %v", err)
	}
}

func TestRunMalformedCSV(t *testing.T) {
	dir := writeStagingDir(t, map[string]string{
		"DP1.10098.001/OSBS/vst_perplotperyear.csv": "plotID,plotType\nOSBS_001,tower,400\n",
	})
	if _, err := run(dir); err == nil || !strings.Contains(err.Error(), "vst_perplotperyear.csv") {
		t.Fatalf("expected decode error naming the entry, got %v", err)
	}
}

func TestRunEmptyDirectory(t *testing.T) {
	if _, err := run(t.TempDir()); err == nil || !strings.Contains(err.Error(), "holds no tables") {
		t.Fatalf("expected empty staging error, got %v", err)
	}
}

func TestValidatePath(t *testing.T) {
	if _, err := validatePath(""); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := validatePath("../escape"); err == nil {
		t.Fatal("expected error for traversal")
	}
	if clean, err := validatePath("staging//tables"); err != nil || clean != filepath.Clean("staging/tables") {
		t.Fatalf("expected cleaned path, got %q err %v", clean, err)
	}
}

func TestCLI(t *testing.T) {
	dir := writeStagingDir(t, map[string]string{
		"DP1.10098.001/OSBS/vst_perplotperyear.csv": "plotID,plotType,totalSampledAreaTrees\nOSBS_001,tower,400\n",
	})
	var out, errBuf bytes.Buffer
	if code := cli([]string{"-dir", dir}, &out, &errBuf); code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr=%s)", code, errBuf.String())
	}
	if !strings.Contains(out.String(), "Archive staging check passed (1 tables)") {
		t.Fatalf("expected success message, got %q", out.String())
	}

	if code := cli([]string{"-dir", filepath.Join(dir, "missing")}, &out, &errBuf); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(errBuf.String(), "Archive staging check failed") {
		t.Fatalf("expected failure message, got %q", errBuf.String())
	}

	if code := cli([]string{"--invalid-flag"}, &out, &errBuf); code != 2 {
		t.Fatalf("expected exit code 2 for flag error, got %d", code)
	}
}

func TestMainFunction(t *testing.T) {
	dir := writeStagingDir(t, map[string]string{
		"DP1.10098.001/OSBS/vst_perplotperyear.csv": "plotID,plotType,totalSampledAreaTrees\nOSBS_001,tower,400\n",
	})
	origExit := exitFunc
	defer func() { exitFunc = origExit }()
	exitCode := -1
	exitFunc = func(code int) { exitCode = code }
	origArgs := os.Args
	defer func() { os.Args = origArgs }()
	os.Args = []string{"archive-check", "-dir", dir}
	main()
	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", exitCode)
	}
}
