// Package report renders the outcome of a comparison run: JSON records for
// artifacts and the web service, a SARIF report for code-scanning uploads and
// a markdown summary for change-request comments.
package report

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/scan-io-git/scanio-agent/internal/findings"
)

// EnvCommentVariable is the variable name the env-file block assigns, picked
// up by a later workflow step that posts the comment.
const EnvCommentVariable = "SCANIO_COMMENT"

// Record is the serialized form of one finding.
type Record struct {
	CheckID          string                 `json:"check_id"`
	Path             string                 `json:"path"`
	Line             int                    `json:"line"`
	Column           int                    `json:"column"`
	EndLine          int                    `json:"end_line,omitempty"`
	EndColumn        int                    `json:"end_column,omitempty"`
	Message          string                 `json:"message"`
	Severity         int                    `json:"severity"`
	Index            int                    `json:"index"`
	SyntacticContext string                 `json:"syntactic_context"`
	SyntacticID      string                 `json:"syntactic_id"`
	CommitDate       string                 `json:"commit_date,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// NewRecord converts a finding into its serialized form.
func NewRecord(f findings.Finding) Record {
	r := Record{
		CheckID:          f.RuleID,
		Path:             f.Path,
		Line:             f.Line,
		Column:           f.Column,
		EndLine:          f.EndLine,
		EndColumn:        f.EndColumn,
		Message:          f.Message,
		Severity:         f.Severity,
		Index:            f.Index,
		SyntacticContext: f.SyntacticContext,
		SyntacticID:      f.SyntacticIDString(),
		Metadata:         f.Metadata,
	}
	if f.CommitDate != nil {
		r.CommitDate = f.CommitDate.Format(time.RFC3339)
	}
	return r
}

// Records converts a slice of findings, preserving order.
func Records(list []findings.Finding) []Record {
	out := make([]Record, 0, len(list))
	for _, f := range list {
		out = append(out, NewRecord(f))
	}
	return out
}

// BlockingCount returns how many of the findings should block CI.
func BlockingCount(list []findings.Finding) int {
	n := 0
	for _, f := range list {
		if f.Blocking() {
			n++
		}
	}
	return n
}

// MarkdownSummary renders the change-request comment body. The extra section
// carries collaborator-produced markdown (lockfile comparisons) and may be
// empty.
func MarkdownSummary(list []findings.Finding, extra string) string {
	var b strings.Builder

	blocking := BlockingCount(list)
	switch {
	case len(list) == 0:
		b.WriteString("## Scanio found no new issues\n")
	case blocking > 0:
		fmt.Fprintf(&b, "## Scanio found %d new issue(s), %d blocking\n\n", len(list), blocking)
	default:
		fmt.Fprintf(&b, "## Scanio found %d new issue(s)\n\n", len(list))
	}

	for _, f := range list {
		marker := ""
		if f.Blocking() {
			marker = " :no_entry:"
		}
		fmt.Fprintf(&b, "- `%s:%d` **%s**%s\n", f.Path, f.Line, f.RuleID, marker)
		if f.Message != "" {
			fmt.Fprintf(&b, "  %s\n", f.Message)
		}
	}

	if extra != "" {
		b.WriteString("\n")
		b.WriteString(extra)
		if !strings.HasSuffix(extra, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// WriteGitHubEnv appends the comment to the workflow environment file as a
// multiline block, per actions/toolkit file commands. A run outside GitHub
// Actions has no GITHUB_ENV and the call is a no-op.
func WriteGitHubEnv(logger hclog.Logger, comment string) error {
	return writeGitHubEnvFile(logger, os.Getenv("GITHUB_ENV"), comment)
}

func writeGitHubEnvFile(logger hclog.Logger, path, comment string) error {
	if path == "" || comment == "" {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open workflow env file %q: %w", path, err)
	}
	defer f.Close()

	block := fmt.Sprintf("%s<<EOF\n%s\nEOF\n", EnvCommentVariable, strings.TrimRight(comment, "\n"))
	if _, err := f.WriteString(block); err != nil {
		return fmt.Errorf("failed to write workflow env file %q: %w", path, err)
	}
	logger.Debug("comment exported to workflow env file", "path", path)
	return nil
}

// WriteSARIF writes the new findings as a single-run SARIF 2.1.0 report.
func WriteSARIF(path string, list []findings.Finding) error {
	rep, err := sarif.New(sarif.Version210)
	if err != nil {
		return fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI("scanio-agent", "https://github.com/scan-io-git/scanio-agent")
	seen := make(map[string]bool)
	for _, f := range list {
		level := toSarifLevel(f.Severity)
		if !seen[f.RuleID] {
			run.AddRule(f.RuleID).
				WithDescription(f.Message).
				WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: level})
			seen[f.RuleID] = true
		}

		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(f.Path)).
				WithRegion(sarif.NewRegion().
					WithStartLine(f.Line).
					WithStartColumn(f.Column).
					WithEndLine(f.EndLine).
					WithEndColumn(f.EndColumn)),
		)
		result := sarif.NewRuleResult(f.RuleID).
			WithMessage(sarif.NewTextMessage(f.Message)).
			WithLevel(level).
			WithLocations([]*sarif.Location{location})
		run.AddResult(result)
	}
	rep.AddRun(run)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to write SARIF report %q: %w", path, err)
	}
	defer func() { _ = out.Close() }()
	return rep.PrettyWrite(out)
}

func toSarifLevel(severity int) string {
	switch severity {
	case findings.SeverityError:
		return "error"
	case findings.SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}
