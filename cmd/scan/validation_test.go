package scan

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateScanArgsRejectsPositional(t *testing.T) {
	if err := validateScanArgs(&RunOptionsScan{}, []string{"extra"}); err == nil {
		t.Fatalf("expected error for positional arguments")
	}
}

func TestValidateScanArgsMissingPath(t *testing.T) {
	opts := &RunOptionsScan{Path: filepath.Join(t.TempDir(), "missing")}
	if err := validateScanArgs(opts, nil); err == nil {
		t.Fatalf("expected error for missing path")
	}
}

func TestValidateScanArgsFilePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := validateScanArgs(&RunOptionsScan{Path: path}, nil); err == nil {
		t.Fatalf("expected error for non-directory path")
	}
}

func TestValidateScanArgsOK(t *testing.T) {
	if err := validateScanArgs(&RunOptionsScan{Path: t.TempDir()}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := validateScanArgs(&RunOptionsScan{}, nil); err != nil {
		t.Fatalf("empty path must default later, got %v", err)
	}
}
