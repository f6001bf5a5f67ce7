// Package engine invokes the external static-analysis binary and decodes its
// raw match records. The engine is a black box: rules and language support
// live entirely on its side.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/scanio-agent/internal/findings"
	"github.com/scan-io-git/scanio-agent/pkg/shared/config"
)

const (
	defaultBinary  = "semgrep"
	defaultConfig  = "auto"
	defaultTimeout = 30 * time.Minute
)

// Invoker runs the analysis engine against explicit target lists.
type Invoker struct {
	binary  string
	config  string
	timeout time.Duration
	logger  hclog.Logger
}

// New creates an Invoker from the application configuration.
func New(cfg *config.Config, logger hclog.Logger) *Invoker {
	return &Invoker{
		binary:  config.SetThen(cfg.Engine.Binary, defaultBinary),
		config:  config.SetThen(cfg.Engine.Config, defaultConfig),
		timeout: config.SetThen(cfg.Engine.Timeout, defaultTimeout),
		logger:  logger,
	}
}

// output is the engine's JSON report shape.
type output struct {
	Results []findings.RawResult `json:"results"`
	Errors  []engineError        `json:"errors"`
}

type engineError struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

// Scan runs the engine in root against the given relative paths, passing the
// exclude patterns through to the engine so its own filtering matches the
// snapshot filtering. An empty target list short-circuits to no results.
//
// Exit codes 1 (findings reported) and 2 (partial errors, results still
// emitted) are not failures; any other non-zero exit is a collaborator error
// surfaced with stderr attached.
func (inv *Invoker) Scan(ctx context.Context, root string, paths, excludes []string) ([]findings.RawResult, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	args := []string{"--json", "--quiet", "--config", inv.config}
	for _, pattern := range excludes {
		args = append(args, "--exclude", pattern)
	}
	args = append(args, paths...)

	cmd := exec.CommandContext(ctx, inv.binary, args...)
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	inv.logger.Debug("invoking analysis engine", "binary", inv.binary, "targets", len(paths))
	start := time.Now()
	err := cmd.Run()
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok || (exitErr.ExitCode() != 1 && exitErr.ExitCode() != 2) {
			return nil, fmt.Errorf("engine %q failed: %w (stderr: %s)", inv.binary, err, stderr.String())
		}
	}
	inv.logger.Debug("engine run finished", "elapsed", time.Since(start).String())

	results, err := DecodeResults(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	return results, nil
}

// DecodeResults parses the engine's JSON report into raw match records.
func DecodeResults(data []byte) ([]findings.RawResult, error) {
	var out output
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode engine output: %w", err)
	}
	return out.Results, nil
}
