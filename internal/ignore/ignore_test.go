package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
)

func TestDefaultsExcludeVendorDirectories(t *testing.T) {
	rules, err := Load(t.TempDir(), nil, hclog.NewNullLogger())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	for _, path := range []string{
		"vendor/lib/lib.go",
		"node_modules/left-pad/index.js",
		"app/__pycache__/mod.pyc",
		"assets/app.min.js",
	} {
		if !rules.Match(path) {
			t.Fatalf("expected %q to be ignored by defaults", path)
		}
	}

	if rules.Match("internal/app/main.go") {
		t.Fatalf("regular source path must not be ignored")
	}
}

func TestRepoIgnoreFileReplacesDefaults(t *testing.T) {
	root := t.TempDir()
	content := "# local rules\n*.generated.go\n"
	if err := os.WriteFile(filepath.Join(root, RepoIgnoreFile), []byte(content), 0644); err != nil {
		t.Fatalf("write ignore file: %v", err)
	}

	rules, err := Load(root, nil, hclog.NewNullLogger())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !rules.Match("pkg/api.generated.go") {
		t.Fatalf("pattern from repo ignore file not applied")
	}
	if rules.Match("vendor/lib/lib.go") {
		t.Fatalf("defaults must be replaced by the repo ignore file")
	}
}

func TestExtraPatternsAppended(t *testing.T) {
	rules, err := Load(t.TempDir(), []string{"docs/"}, hclog.NewNullLogger())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !rules.Match("docs/readme.md") {
		t.Fatalf("extra pattern not applied")
	}
	if !rules.Match("vendor/lib/lib.go") {
		t.Fatalf("defaults must survive extra patterns")
	}
}

func TestPatternsSkipsCommentsAndBlanks(t *testing.T) {
	rules := New([]string{"", "# comment", "dist/", "  "})
	patterns := rules.Patterns()
	if len(patterns) != 1 || patterns[0] != "dist/" {
		t.Fatalf("unexpected patterns: %v", patterns)
	}
}
