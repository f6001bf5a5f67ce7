// Package webapp talks to the optional scanio web service: result uploads
// and lockfile comparison. Every call here is a side lookup; callers treat
// failures as skip-and-continue.
package webapp

import (
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/scanio-agent/internal/ci"
	"github.com/scan-io-git/scanio-agent/internal/report"
	"github.com/scan-io-git/scanio-agent/pkg/shared/config"
	"github.com/scan-io-git/scanio-agent/pkg/shared/httpclient"
)

// LockfileNames are the dependency manifests the comparison service
// understands, matched case-insensitively against snapshot file names.
var LockfileNames = []string{"pipfile.lock", "yarn.lock", "package-lock.json"}

// Client is a thin wrapper over the web service API.
type Client struct {
	httpc  *resty.Client
	logger hclog.Logger
}

// New builds a client from the application configuration. A configuration
// without a webapp url yields a disabled client.
func New(cfg *config.Config, logger hclog.Logger) *Client {
	httpc := httpclient.InitializeRestyClient(logger, cfg)
	httpc.SetBaseURL(cfg.Webapp.URL)
	if cfg.Webapp.Token != "" {
		httpc.SetHeader("Authorization", fmt.Sprintf("Token %s", cfg.Webapp.Token))
	}
	return &Client{httpc: httpc, logger: logger}
}

// Enabled reports whether a web service endpoint is configured.
func (c *Client) Enabled() bool {
	return c.httpc.BaseURL != ""
}

type uploadRequest struct {
	RunID       string          `json:"run_id,omitempty"`
	Repository  string          `json:"repository"`
	CommitHash  string          `json:"commit_hash"`
	PullRequest string          `json:"pull_request,omitempty"`
	Findings    []report.Record `json:"findings"`
}

// UploadResults posts the new-finding records for one run.
func (c *Client) UploadResults(meta ci.Meta, runID string, records []report.Record) error {
	if !c.Enabled() {
		return nil
	}

	body := uploadRequest{
		RunID:       runID,
		Repository:  meta.RepositoryURL,
		CommitHash:  meta.CommitHash,
		PullRequest: meta.PullRequestID,
		Findings:    records,
	}
	resp, err := c.httpc.R().
		SetBody(body).
		Post("/api/v1/results")
	if err != nil {
		return fmt.Errorf("failed to upload results: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return fmt.Errorf("%d on uploading results", resp.StatusCode())
	}
	c.logger.Info("results uploaded", "count", len(records))
	return nil
}

type compareRequest struct {
	Old     *string `json:"old"`
	New     string  `json:"new"`
	OldPath string  `json:"old_path"`
	NewPath string  `json:"new_path"`
	ForRepo string  `json:"for_repo,omitempty"`
	ForPR   string  `json:"for_pr,omitempty"`
}

type compareResponse struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

// CompareLockfiles posts the two revisions of one lockfile and returns the
// service-rendered markdown comment. An introduced lockfile has no old text;
// pass oldText as nil. Any failure returns an empty comment and the error,
// which callers log and ignore.
func (c *Client) CompareLockfiles(path string, oldText *string, newText string, meta ci.Meta) (string, error) {
	if !c.Enabled() {
		return "", nil
	}

	var res compareResponse
	resp, err := c.httpc.R().
		SetBody(compareRequest{
			Old:     oldText,
			New:     newText,
			OldPath: path,
			NewPath: path,
			ForRepo: meta.RepositoryFullName,
			ForPR:   meta.PullRequestID,
		}).
		SetResult(&res).
		Post("/api/v1/lockfiles/compare")
	if err != nil {
		return "", fmt.Errorf("failed to compare lockfile %q: %w", path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%d on comparing lockfile %q", resp.StatusCode(), path)
	}
	if res.Status != "ok" {
		return "", fmt.Errorf("service failed to analyze %q", path)
	}
	return res.Comment, nil
}
