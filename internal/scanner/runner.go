// Package scanner sequences one comparison run end to end: CI discovery, head
// reconciliation, the two snapshot scans, the diff and the fan-out of results.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/scanio-agent/internal/annotate"
	"github.com/scan-io-git/scanio-agent/internal/ci"
	"github.com/scan-io-git/scanio-agent/internal/engine"
	"github.com/scan-io-git/scanio-agent/internal/findings"
	"github.com/scan-io-git/scanio-agent/internal/gitstate"
	"github.com/scan-io-git/scanio-agent/internal/ignore"
	"github.com/scan-io-git/scanio-agent/internal/report"
	"github.com/scan-io-git/scanio-agent/internal/targets"
	"github.com/scan-io-git/scanio-agent/internal/webapp"
	"github.com/scan-io-git/scanio-agent/pkg/shared/artifacts"
	"github.com/scan-io-git/scanio-agent/pkg/shared/config"
)

// Runner drives one comparison run.
type Runner struct {
	cfg         *config.Config
	logger      hclog.Logger
	root        string
	baselineRef string // overrides CI-detected baseline when set
}

// Summary is the outcome handed back to the command layer.
type Summary struct {
	RunID        string
	New          []findings.Finding
	Records      []report.Record
	Blocking     int
	ArtifactPath string
	Comment      string
}

// New creates a Runner rooted at the repository checkout. baselineRef, when
// non-empty, takes precedence over the ref discovered from CI metadata.
func New(cfg *config.Config, logger hclog.Logger, root, baselineRef string) *Runner {
	return &Runner{cfg: cfg, logger: logger, root: root, baselineRef: baselineRef}
}

// Run executes the comparison. Everything up to and including the diff is
// fatal on error; result fan-out (artifact, upload, annotation) is
// best-effort and only logged.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()
	r.logger.Info("starting comparison run", "run_id", runID)

	meta := ci.DetectMeta(r.logger)

	baselineRef := r.baselineRef
	if baselineRef == "" {
		baselineRef = meta.BaselineRef
	}

	rules, err := ignore.Load(r.root, r.cfg.Ignore.Patterns, r.logger)
	if err != nil {
		return nil, err
	}
	inv := engine.New(r.cfg, r.logger)

	sets := findings.NewSets()
	currentLockfiles := map[string]string{}
	baselineLockfiles := map[string]string{}

	err = gitstate.Reconcile(r.root, baselineRef, meta.HeadRef, r.logger, func(baselineHash string) error {
		commitDate := gitstate.HeadCommitDate(r.root)
		mgr := targets.NewManager(r.root, baselineHash, rules, r.logger)

		if err := mgr.CurrentFiles(func(paths []string) error {
			if err := r.scanInto(ctx, inv, paths, rules.Patterns(), commitDate, sets.AddCurrent); err != nil {
				return err
			}
			r.readLockfiles(paths, currentLockfiles)
			return nil
		}); err != nil {
			return fmt.Errorf("current snapshot scan failed: %w", err)
		}

		return mgr.BaselineFiles(func(paths []string) error {
			if err := r.scanInto(ctx, inv, paths, rules.Patterns(), commitDate, sets.AddBaseline); err != nil {
				return fmt.Errorf("baseline snapshot scan failed: %w", err)
			}
			r.readLockfiles(paths, baselineLockfiles)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	newFindings := sets.New()
	summary := &Summary{
		RunID:    runID,
		New:      newFindings,
		Records:  report.Records(newFindings),
		Blocking: report.BlockingCount(newFindings),
	}
	r.logger.Info("comparison finished", "new", len(newFindings), "blocking", summary.Blocking)

	r.fanOut(ctx, meta, summary, baselineLockfiles, currentLockfiles)
	return summary, nil
}

// scanInto runs the engine over one snapshot and folds the normalized
// findings into the given accumulator.
func (r *Runner) scanInto(ctx context.Context, inv *engine.Invoker, paths, excludes []string, commitDate *time.Time, add func(findings.FindingKey, findings.Finding)) error {
	results, err := inv.Scan(ctx, r.root, paths, excludes)
	if err != nil {
		return err
	}
	for _, raw := range results {
		key, f, err := findings.NormalizeResult(raw, commitDate)
		if err != nil {
			return err
		}
		add(key, f)
	}
	return nil
}

// readLockfiles collects the text of known dependency manifests present in a
// snapshot. Read failures are logged and the file skipped; lockfile analysis
// is a side lookup.
func (r *Runner) readLockfiles(paths []string, into map[string]string) {
	for _, rel := range paths {
		if !isLockfile(rel) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(rel)))
		if err != nil {
			r.logger.Warn("unable to read lockfile", "path", rel, "error", err)
			continue
		}
		into[rel] = string(data)
	}
}

func isLockfile(rel string) bool {
	base := strings.ToLower(filepath.Base(rel))
	for _, name := range webapp.LockfileNames {
		if base == name {
			return true
		}
	}
	return false
}

// fanOut delivers the results: artifact on disk, SARIF, S3, web service,
// change-request comment. All failures here log and continue; the scan
// verdict is already final.
func (r *Runner) fanOut(ctx context.Context, meta ci.Meta, summary *Summary, baselineLockfiles, currentLockfiles map[string]string) {
	client := webapp.New(r.cfg, r.logger)

	artifactPath, err := artifacts.SaveArtifactJSON(r.cfg, r.logger, "scan", "semgrep", summary.Records)
	if err != nil {
		r.logger.Error("failed to save result artifact", "error", err)
	} else {
		summary.ArtifactPath = artifactPath

		sarifPath := strings.TrimSuffix(artifactPath, ".json") + ".sarif"
		if err := report.WriteSARIF(sarifPath, summary.New); err != nil {
			r.logger.Error("failed to write SARIF report", "error", err)
		}
		if err := artifacts.UploadToS3(r.cfg, r.logger, artifactPath); err != nil {
			r.logger.Error("failed to upload artifact", "error", err)
		}
	}

	if client.Enabled() {
		if err := client.UploadResults(meta, summary.RunID, summary.Records); err != nil {
			r.logger.Error("failed to upload results to web service", "error", err)
		}
	}

	summary.Comment = report.MarkdownSummary(summary.New, r.compareLockfiles(client, meta, baselineLockfiles, currentLockfiles))
	if err := report.WriteGitHubEnv(r.logger, summary.Comment); err != nil {
		r.logger.Error("failed to export comment to workflow env", "error", err)
	}
	if err := annotate.PostComment(ctx, r.logger, meta, summary.Comment); err != nil {
		r.logger.Error("failed to annotate change request", "error", err)
	}
}

// compareLockfiles asks the web service about every manifest present in the
// current snapshot, passing the baseline revision when the file existed
// before. Returns the concatenated markdown sections.
func (r *Runner) compareLockfiles(client *webapp.Client, meta ci.Meta, old, current map[string]string) string {
	if !client.Enabled() || len(current) == 0 {
		return ""
	}

	paths := make([]string, 0, len(current))
	for path := range current {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, path := range paths {
		var oldText *string
		if text, ok := old[path]; ok {
			oldText = &text
		}
		comment, err := client.CompareLockfiles(path, oldText, current[path], meta)
		if err != nil {
			r.logger.Warn("lockfile comparison skipped", "path", path, "error", err)
			continue
		}
		if comment != "" {
			b.WriteString(comment)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
