package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBackendImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"github.com/aws/aws-sdk-go-v2/service/s3", true},
		{"github.com/aws/aws-sdk-go-v2", true},
		{"github.com/jackc/pgx/v5/stdlib", true},
		{"modernc.org/sqlite", true},
		{"github.com/prometheus/client_golang/prometheus", false},
		{"database/sql", false},
		{"", false},
	}
	for _, c := range cases {
		if got := BackendImportForbidden(c.in); got != c.want {
			t.Fatalf("BackendImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestInternalImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"carboncore/internal/carbon", true},
		{"example.com/some/internal/deep/path", true},
		{"example.com/mod/pkg/x", false},
		{"internal", false},
		{"example.com/internal", false},
		{"notinternal", false},
		{"", false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.in); got != c.want {
			t.Fatalf("InternalImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

// TestAssertNoDirectImports exercises the success path by creating a tiny temp package with safe imports.
func TestAssertNoDirectImports(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}")
	if err := os.WriteFile(filepath.Join(dir, "x.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	AssertNoDirectImports(t, dir, func(string) bool { return false }, "none")
}

// TestAssertNoDirectImportsIgnoresTestFiles verifies that _test.go files and
// subdirectories are outside the scan.
func TestAssertNoDirectImportsIgnoresTestFiles(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}")
	if err := os.WriteFile(filepath.Join(dir, "main.go"), src, 0o600); err != nil {
		t.Fatalf("write main: %v", err)
	}
	testSrc := []byte("package tmp\nimport \"some/forbidden/pkg\"\nvar _ = 1")
	if err := os.WriteFile(filepath.Join(dir, "main_test.go"), testSrc, 0o600); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "sub.go"), testSrc, 0o600); err != nil {
		t.Fatalf("write sub file: %v", err)
	}
	AssertNoDirectImports(t, dir, func(ip string) bool {
		return ip == "some/forbidden/pkg"
	}, "test files and subdirectories are out of scope")
}

// TestAssertNoTransitiveDependency runs against the current package with a predicate that always returns false to exercise the path.
func TestAssertNoTransitiveDependency(t *testing.T) {
	AssertNoTransitiveDependency(t, ".", func(string) bool { return false }, "none")
}

func TestFailIfViolations(t *testing.T) {
	rec := &recordingLogger{}
	failIfTransitiveViolations(rec, "reason", []string{"bad/path"})
	if !rec.failed {
		t.Fatal("expected transitive violation to fail")
	}
	rec = &recordingLogger{}
	failIfDirectViolations(rec, "reason", nil)
	if rec.failed {
		t.Fatal("expected no failure for empty violations")
	}
}

type recordingLogger struct{ failed bool }

func (r *recordingLogger) Fatalf(string, ...any) { r.failed = true }
