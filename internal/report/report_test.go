package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/scanio-agent/internal/findings"
)

func sampleFinding(t *testing.T) findings.Finding {
	t.Helper()
	raw := findings.RawResult{
		CheckID: "go.lang.security.audit.dangerous-exec",
		Path:    "internal/run.go",
		Start:   findings.RawPosition{Line: 14, Col: 2},
		End:     findings.RawPosition{Line: 14, Col: 38},
		Extra: findings.RawExtra{
			Lines:    "cmd := exec.Command(userInput)",
			Message:  "user input reaches exec",
			Severity: "ERROR",
		},
	}
	when := time.Date(2025, 9, 15, 8, 0, 0, 0, time.UTC)
	_, f, err := findings.NormalizeResult(raw, &when)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return f
}

func TestRecordFields(t *testing.T) {
	f := sampleFinding(t)
	r := NewRecord(f)

	if r.CheckID != f.RuleID || r.Path != f.Path || r.Line != 14 {
		t.Fatalf("unexpected record: %+v", r)
	}
	if r.SyntacticID != f.SyntacticIDString() {
		t.Fatalf("syntactic id mismatch")
	}
	if r.CommitDate != "2025-09-15T08:00:00Z" {
		t.Fatalf("commit date = %q", r.CommitDate)
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"check_id"`, `"syntactic_context"`, `"syntactic_id"`, `"commit_date"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("serialized record missing %s: %s", key, data)
		}
	}
	if strings.Contains(string(data), `"metadata"`) {
		t.Fatalf("empty metadata must be omitted: %s", data)
	}
}

func TestMarkdownSummary(t *testing.T) {
	f := sampleFinding(t)
	body := MarkdownSummary([]findings.Finding{f}, "### Dependency changes\nnothing of note")

	if !strings.Contains(body, "1 new issue(s), 1 blocking") {
		t.Fatalf("missing blocking header: %s", body)
	}
	if !strings.Contains(body, "`internal/run.go:14`") {
		t.Fatalf("missing finding line: %s", body)
	}
	if !strings.Contains(body, "### Dependency changes") {
		t.Fatalf("extra section dropped: %s", body)
	}
}

func TestMarkdownSummaryEmpty(t *testing.T) {
	body := MarkdownSummary(nil, "")
	if !strings.Contains(body, "no new issues") {
		t.Fatalf("unexpected empty summary: %s", body)
	}
}

func TestWriteGitHubEnvBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "github_env")
	if err := writeGitHubEnvFile(hclog.NewNullLogger(), path, "line one\nline two\n"); err != nil {
		t.Fatalf("write env: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read env: %v", err)
	}
	want := "SCANIO_COMMENT<<EOF\nline one\nline two\nEOF\n"
	if string(data) != want {
		t.Fatalf("env block = %q, want %q", data, want)
	}
}

func TestWriteGitHubEnvNoopWithoutFile(t *testing.T) {
	if err := writeGitHubEnvFile(hclog.NewNullLogger(), "", "comment"); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestWriteSARIF(t *testing.T) {
	f := sampleFinding(t)
	path := filepath.Join(t.TempDir(), "report.sarif")
	if err := WriteSARIF(path, []findings.Finding{f}); err != nil {
		t.Fatalf("write sarif: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sarif: %v", err)
	}
	var doc struct {
		Version string `json:"version"`
		Runs    []struct {
			Tool struct {
				Driver struct {
					Name string `json:"name"`
				} `json:"driver"`
			} `json:"tool"`
			Results []struct {
				RuleID string `json:"ruleId"`
				Level  string `json:"level"`
			} `json:"results"`
		} `json:"runs"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal sarif: %v", err)
	}
	if len(doc.Runs) != 1 || doc.Runs[0].Tool.Driver.Name != "scanio-agent" {
		t.Fatalf("unexpected sarif driver: %s", data)
	}
	if len(doc.Runs[0].Results) != 1 || doc.Runs[0].Results[0].Level != "error" {
		t.Fatalf("unexpected sarif results: %s", data)
	}
}

func TestBlockingCount(t *testing.T) {
	blocking := sampleFinding(t)
	nonBlocking := blocking
	nonBlocking.Metadata = map[string]interface{}{
		findings.ActionsMetadataKey: []interface{}{"monitor"},
	}
	if got := BlockingCount([]findings.Finding{blocking, nonBlocking}); got != 1 {
		t.Fatalf("blocking count = %d, want 1", got)
	}
}
