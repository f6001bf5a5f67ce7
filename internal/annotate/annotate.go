// Package annotate posts the run summary back to the change request that
// triggered the scan. Annotation is best-effort; callers log failures and
// keep going.
package annotate

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/go-github/v47/github"
	"github.com/hashicorp/go-hclog"
	"github.com/xanzy/go-gitlab"
	"golang.org/x/oauth2"

	"github.com/scan-io-git/scanio-agent/internal/ci"
)

// PostComment publishes the markdown body as a comment on the pull or merge
// request described by meta. Runs without a change request, or on an
// unsupported provider, are silently skipped.
func PostComment(ctx context.Context, logger hclog.Logger, meta ci.Meta, body string) error {
	if meta.PullRequestID == "" || body == "" {
		return nil
	}

	switch meta.Kind {
	case ci.CIGitHub:
		return postGitHubComment(ctx, logger, meta, body)
	case ci.CIGitLab:
		return postGitLabComment(logger, meta, body)
	default:
		logger.Debug("annotation not supported for provider", "provider", meta.Kind.String())
		return nil
	}
}

func postGitHubComment(ctx context.Context, logger hclog.Logger, meta ci.Meta, body string) error {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		logger.Warn("GITHUB_TOKEN not set, skipping annotation")
		return nil
	}

	owner, repo, err := splitFullName(meta.RepositoryFullName)
	if err != nil {
		return err
	}
	number, err := strconv.Atoi(meta.PullRequestID)
	if err != nil {
		return fmt.Errorf("invalid pull request id %q: %w", meta.PullRequestID, err)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	if meta.ServerURL != "" && !strings.HasPrefix(meta.ServerURL, "https://github.com") {
		apiURL := strings.TrimRight(meta.ServerURL, "/") + "/api/v3/"
		client, err = github.NewEnterpriseClient(apiURL, apiURL, oauth2.NewClient(ctx, ts))
		if err != nil {
			return fmt.Errorf("failed to create github client for %q: %w", meta.ServerURL, err)
		}
	}

	_, _, err = client.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{Body: github.String(body)})
	if err != nil {
		return fmt.Errorf("failed to comment on pull request %s#%d: %w", meta.RepositoryFullName, number, err)
	}
	logger.Info("comment posted", "repository", meta.RepositoryFullName, "pr", number)
	return nil
}

func postGitLabComment(logger hclog.Logger, meta ci.Meta, body string) error {
	token := os.Getenv("GITLAB_TOKEN")
	if token == "" {
		logger.Warn("GITLAB_TOKEN not set, skipping annotation")
		return nil
	}

	iid, err := strconv.Atoi(meta.PullRequestID)
	if err != nil {
		return fmt.Errorf("invalid merge request iid %q: %w", meta.PullRequestID, err)
	}

	baseURL := strings.TrimRight(meta.ServerURL, "/") + "/api/v4"
	client, err := gitlab.NewClient(token, gitlab.WithBaseURL(baseURL))
	if err != nil {
		return fmt.Errorf("failed to create gitlab client: %w", err)
	}

	_, _, err = client.Notes.CreateMergeRequestNote(meta.RepositoryFullName, iid, &gitlab.CreateMergeRequestNoteOptions{
		Body: gitlab.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to comment on merge request %s!%d: %w", meta.RepositoryFullName, iid, err)
	}
	logger.Info("comment posted", "repository", meta.RepositoryFullName, "mr", iid)
	return nil
}

func splitFullName(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository name %q", fullName)
	}
	return parts[0], parts[1], nil
}
