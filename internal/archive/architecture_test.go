package archive

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestOnlyArchivePackageImportsAWS ensures that only the archive package
// wraps the S3 SDK. Other packages must depend on the archive.Store and
// archive.Source interfaces instead of importing the SDK directly.
func TestOnlyArchivePackageImportsAWS(t *testing.T) {
	const (
		sdkPrefix     = "github.com/aws/aws-sdk-go-v2"
		allowedPrefix = "carboncore/internal/archive"
	)

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "carboncore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		if strings.HasPrefix(pkg.PkgPath, allowedPrefix) {
			continue
		}
		for importPath := range pkg.Imports {
			if importPath == sdkPrefix || strings.HasPrefix(importPath, sdkPrefix+"/") {
				seen[pkg.PkgPath+": "+importPath] = struct{}{}
			}
		}
	}

	if len(seen) > 0 {
		violations := make([]string, 0, len(seen))
		for v := range seen {
			violations = append(violations, v)
		}
		sort.Strings(violations)
		for _, v := range violations {
			t.Errorf("forbidden import of the S3 SDK: %s", v)
		}
		t.Fatalf("found %d forbidden SDK imports", len(violations))
	}
}
