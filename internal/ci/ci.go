// Package ci provides helpers for discovering CI metadata.
package ci

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gitsight/go-vcsurl"
	"github.com/hashicorp/go-hclog"
)

// CIKind represents the type of CI.
type CIKind int

const (
	// CIUnknown indicates the CI provider could not be identified.
	CIUnknown CIKind = iota
	// CIGitHub identifies GitHub CI environments.
	CIGitHub
	// CIGitLab identifies GitLab CI environments.
	CIGitLab
	// CIBitbucket identifies Bitbucket CI environments.
	CIBitbucket
)

// LookupFunc fetches environment variables and defaults to os.Getenv.
type LookupFunc func(string) string

// Meta captures canonical CI metadata for one agent run.
type Meta struct {
	Kind               CIKind // Kind identifies the CI provider.
	CI                 bool   // CI reports whether the execution runs inside a CI environment.
	EventName          string // EventName is the trigger (push, pull_request, merge_request_event, ...).
	CommitHash         string // CommitHash is the tip commit that triggered the job.
	ServerURL          string // ServerURL is the scheme and host of the VCS server.
	RepositoryFullName string // RepositoryFullName is the namespace-qualified repository name.
	RepositoryURL      string // RepositoryURL is the normalized HTTPS URL of the repository.
	PullRequestID      string // PullRequestID is the PR/MR number when the trigger is a change request.
	BaselineRef        string // BaselineRef is the ref the change should be compared against.
	HeadRef            string // HeadRef is the true change head when the provider checked out a synthetic ref.
}

// String returns the human-readable string representation of a CIKind.
func (c CIKind) String() string {
	switch c {
	case CIGitHub:
		return "github"
	case CIGitLab:
		return "gitlab"
	case CIBitbucket:
		return "bitbucket"
	default:
		return "unknown"
	}
}

// DetectCIKind attempts to infer the CI provider from well-known environment variables.
func DetectCIKind() CIKind {
	return detectCIKindWithLookup(os.Getenv)
}

func detectCIKindWithLookup(lookup LookupFunc) CIKind {
	if lookup == nil {
		lookup = os.Getenv
	}

	if lookup("GITHUB_REPOSITORY") != "" || lookup("GITHUB_SHA") != "" {
		return CIGitHub
	}
	if strings.EqualFold(lookup("GITLAB_CI"), "true") || lookup("CI_PROJECT_PATH") != "" {
		return CIGitLab
	}
	if lookup("BITBUCKET_WORKSPACE") != "" || lookup("BITBUCKET_REPO_SLUG") != "" {
		return CIBitbucket
	}

	return CIUnknown
}

// DetectMeta resolves CI metadata from the process environment. Outside any
// recognized CI the result is zero except CI=false, and the agent falls back
// to local-run behavior.
func DetectMeta(log hclog.Logger) Meta {
	return detectMetaWithLookup(log, os.Getenv, os.ReadFile)
}

func detectMetaWithLookup(log hclog.Logger, lookup LookupFunc, readFile func(string) ([]byte, error)) Meta {
	if lookup == nil {
		lookup = os.Getenv
	}

	var meta Meta
	switch detectCIKindWithLookup(lookup) {
	case CIGitHub:
		meta = extractGitHubMeta(log, lookup, readFile)
	case CIGitLab:
		meta = extractGitLabMeta(lookup)
	case CIBitbucket:
		meta = extractBitbucketMeta(lookup)
	default:
		return Meta{}
	}

	meta.RepositoryURL = normalizeRepositoryURL(meta.ServerURL, meta.RepositoryFullName)
	if log != nil {
		log.Info("detected CI environment",
			"provider", meta.Kind.String(), "event", meta.EventName,
			"repository", meta.RepositoryFullName, "pr", meta.PullRequestID)
	}
	return meta
}

// githubEvent is the subset of the workflow event payload the agent reads.
type githubEvent struct {
	PullRequest struct {
		Number int `json:"number"`
		Head   struct {
			SHA string `json:"sha"`
		} `json:"head"`
	} `json:"pull_request"`
}

// extractGitHubMeta builds the Meta from GitHub-specific variables.
// See https://docs.github.com/en/actions/reference/workflows-and-actions/variables.
func extractGitHubMeta(log hclog.Logger, lookup LookupFunc, readFile func(string) ([]byte, error)) Meta {
	ci, _ := strconv.ParseBool(lookup("CI"))

	meta := Meta{
		Kind:               CIGitHub,
		CI:                 ci,
		EventName:          lookup("GITHUB_EVENT_NAME"),
		CommitHash:         lookup("GITHUB_SHA"),
		ServerURL:          lookup("GITHUB_SERVER_URL"),
		RepositoryFullName: lookup("GITHUB_REPOSITORY"),
	}

	if meta.EventName != "pull_request" && meta.EventName != "pull_request_target" {
		return meta
	}
	meta.BaselineRef = lookup("GITHUB_BASE_REF")

	// Actions checks out a synthetic merge commit for PR events; the true
	// change head lives in the event payload.
	eventPath := lookup("GITHUB_EVENT_PATH")
	if eventPath == "" || readFile == nil {
		return meta
	}
	data, err := readFile(eventPath)
	if err != nil {
		if log != nil {
			log.Warn("unable to read workflow event payload", "path", eventPath, "error", err)
		}
		return meta
	}
	var event githubEvent
	if err := json.Unmarshal(data, &event); err != nil {
		if log != nil {
			log.Warn("unable to parse workflow event payload", "path", eventPath, "error", err)
		}
		return meta
	}
	meta.HeadRef = event.PullRequest.Head.SHA
	if event.PullRequest.Number > 0 {
		meta.PullRequestID = strconv.Itoa(event.PullRequest.Number)
	}
	return meta
}

// extractGitLabMeta builds the Meta from GitLab-specific variables.
// See https://docs.gitlab.com/ci/variables/predefined_variables/.
func extractGitLabMeta(lookup LookupFunc) Meta {
	ci, _ := strconv.ParseBool(lookup("CI"))

	meta := Meta{
		Kind:               CIGitLab,
		CI:                 ci,
		EventName:          lookup("CI_PIPELINE_SOURCE"),
		CommitHash:         lookup("CI_COMMIT_SHA"),
		ServerURL:          lookup("CI_SERVER_URL"),
		RepositoryFullName: lookup("CI_PROJECT_PATH"),
		PullRequestID:      lookup("CI_MERGE_REQUEST_IID"),
	}
	if target := lookup("CI_MERGE_REQUEST_TARGET_BRANCH_NAME"); target != "" {
		// Runners fetch without local branches; the remote-tracking ref is
		// the resolvable name.
		meta.BaselineRef = "refs/remotes/origin/" + target
	}
	return meta
}

// extractBitbucketMeta builds the Meta from Bitbucket-specific variables.
// See https://support.atlassian.com/bitbucket-cloud/docs/variables-and-secrets/.
func extractBitbucketMeta(lookup LookupFunc) Meta {
	ci, _ := strconv.ParseBool(lookup("CI"))

	meta := Meta{
		Kind:               CIBitbucket,
		CI:                 ci,
		CommitHash:         lookup("BITBUCKET_COMMIT"),
		RepositoryFullName: lookup("BITBUCKET_REPO_FULL_NAME"),
		PullRequestID:      lookup("BITBUCKET_PR_ID"),
	}
	if meta.PullRequestID != "" {
		meta.EventName = "pull_request"
	} else {
		meta.EventName = "push"
	}
	if origin := lookup("BITBUCKET_GIT_HTTP_ORIGIN"); origin != "" {
		meta.ServerURL = origin
	}
	if target := lookup("BITBUCKET_PR_DESTINATION_BRANCH"); target != "" {
		meta.BaselineRef = "refs/remotes/origin/" + target
	}
	return meta
}

// normalizeRepositoryURL renders the canonical HTTPS URL for the repository,
// used when reporting results upstream.
func normalizeRepositoryURL(serverURL, fullName string) string {
	if serverURL == "" || fullName == "" {
		return ""
	}
	raw := fmt.Sprintf("%s/%s", strings.TrimRight(serverURL, "/"), fullName)
	info, err := vcsurl.Parse(raw)
	if err != nil {
		return raw
	}
	if remote, err := info.Remote(vcsurl.HTTPS); err == nil && remote != "" {
		return remote
	}
	return raw
}
