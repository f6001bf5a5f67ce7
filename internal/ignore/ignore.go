// Package ignore assembles the path exclusion rules applied to both scan
// snapshots. Precedence, lowest to highest: built-in defaults, a repository
// local ignore file (which replaces the defaults), extra patterns supplied by
// configuration.
package ignore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	gitignore "github.com/sabhiram/go-gitignore"
)

// RepoIgnoreFile is the repository-local ignore file name.
const RepoIgnoreFile = ".scanioignore"

// defaultPatterns cover common vendor, test and dependency directories.
var defaultPatterns = []string{
	".git/",
	"vendor/",
	"node_modules/",
	"bower_components/",
	"dist/",
	"build/",
	".venv/",
	"venv/",
	"env/",
	"__pycache__/",
	"*.min.js",
	"test/",
	"tests/",
	"testdata/",
	"*_test.go",
}

// Rules is an immutable ignore-rule set shared by both snapshot accessors,
// so filtering is guaranteed to be symmetric.
type Rules struct {
	patterns []string
	matcher  *gitignore.GitIgnore
}

// Load builds the rule set for a repository root. When a .scanioignore file
// exists it replaces the built-in defaults; extra patterns are always
// appended on top.
func Load(root string, extra []string, logger hclog.Logger) (*Rules, error) {
	patterns := defaultPatterns

	path := filepath.Join(root, RepoIgnoreFile)
	if data, err := os.ReadFile(path); err == nil {
		logger.Info("using path ignore rules from repository ignore file", "path", RepoIgnoreFile)
		patterns = splitLines(string(data))
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read ignore file %q: %w", path, err)
	} else {
		logger.Info("using default path ignore rules of common test and dependency directories")
	}

	if len(extra) > 0 {
		logger.Info("adding configured path ignore rules", "count", len(extra))
		patterns = append(patterns, extra...)
	}

	return New(patterns), nil
}

// New builds a rule set from explicit gitignore-style patterns.
func New(patterns []string) *Rules {
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		cleaned = append(cleaned, p)
	}
	return &Rules{
		patterns: cleaned,
		matcher:  gitignore.CompileIgnoreLines(cleaned...),
	}
}

// Match reports whether the slash-separated path relative to the scan root is
// excluded.
func (r *Rules) Match(rel string) bool {
	return r.matcher.MatchesPath(rel)
}

// Patterns returns the effective patterns, for passing to the analysis
// engine's own exclude mechanism.
func (r *Rules) Patterns() []string {
	out := make([]string, len(r.patterns))
	copy(out, r.patterns)
	return out
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		out = append(out, strings.TrimRight(line, "\r"))
	}
	return out
}
