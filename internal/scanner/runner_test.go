package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/scanio-agent/internal/ci"
	"github.com/scan-io-git/scanio-agent/internal/webapp"
	"github.com/scan-io-git/scanio-agent/pkg/shared/config"
)

func TestIsLockfile(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"yarn.lock", true},
		{"frontend/Yarn.lock", true},
		{"Pipfile.lock", true},
		{"services/api/package-lock.json", true},
		{"go.sum", false},
		{"package.json", false},
	}
	for _, tc := range cases {
		if got := isLockfile(tc.path); got != tc.want {
			t.Fatalf("isLockfile(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestReadLockfiles(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "web"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "web", "yarn.lock"), []byte("lock body"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := New(&config.Config{}, hclog.NewNullLogger(), root, "")
	got := map[string]string{}
	r.readLockfiles([]string{"web/yarn.lock", "web/app.js", "missing/pipfile.lock"}, got)

	if len(got) != 1 || got["web/yarn.lock"] != "lock body" {
		t.Fatalf("unexpected lockfiles: %v", got)
	}
}

func TestCompareLockfilesDisabledClient(t *testing.T) {
	r := New(&config.Config{}, hclog.NewNullLogger(), t.TempDir(), "")
	client := webapp.New(&config.Config{}, hclog.NewNullLogger())

	out := r.compareLockfiles(client, ci.Meta{}, nil, map[string]string{"yarn.lock": "x"})
	if out != "" {
		t.Fatalf("disabled client must yield no comment, got %q", out)
	}
}
