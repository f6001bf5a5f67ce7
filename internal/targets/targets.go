// Package targets exposes the on-disk file lists for the two temporal states
// of a repository being compared: the working tree as checked out, and the
// baseline commit. The baseline view is materialized in place and the working
// tree is restored on every exit path.
package targets

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/scanio-agent/internal/ignore"
)

// ErrWorktreeRestore marks a failure to put the working tree back after a
// baseline snapshot. A left-over modified tree corrupts every later step, so
// this error is never swallowed.
var ErrWorktreeRestore = errors.New("failed to restore working tree after baseline snapshot")

// Manager produces ignore-filtered target lists for the current and baseline
// repository states. The two accessors share one rule set, so filtering is
// identical for both snapshots.
//
// The working tree is process-wide shared state: the accessors must not be
// nested or run concurrently. The orchestrator sequences them strictly.
type Manager struct {
	Root           string
	BaselineCommit string

	rules  *ignore.Rules
	logger hclog.Logger
}

// NewManager creates a target manager rooted at the repository checkout.
// BaselineCommit is a resolved commit hash, or empty when there is no
// baseline to compare against.
func NewManager(root, baselineCommit string, rules *ignore.Rules, logger hclog.Logger) *Manager {
	return &Manager{
		Root:           root,
		BaselineCommit: baselineCommit,
		rules:          rules,
		logger:         logger,
	}
}

// CurrentFiles lists the working tree as it stands, filtered through the
// ignore rules, and passes the list to fn. The callback scope mirrors
// BaselineFiles so callers treat both snapshots uniformly.
func (m *Manager) CurrentFiles(fn func(paths []string) error) error {
	paths, err := m.listFiles()
	if err != nil {
		return fmt.Errorf("failed to list current files: %w", err)
	}
	m.logger.Debug("current snapshot listed", "files", len(paths))
	return fn(paths)
}

// BaselineFiles materializes the baseline commit's tree in the working
// directory, lists it through the same ignore rules, and hands the list to
// fn. The pre-call checkout position is restored on every exit path; a
// restore failure is escalated as ErrWorktreeRestore even when the body
// already failed.
//
// With no baseline commit, or no repository at the root, fn receives an empty
// list and the tree is left untouched.
func (m *Manager) BaselineFiles(fn func(paths []string) error) (err error) {
	if m.BaselineCommit == "" {
		return fn(nil)
	}

	repo, openErr := git.PlainOpen(m.Root)
	if openErr != nil {
		if errors.Is(openErr, git.ErrRepositoryNotExists) {
			m.logger.Debug("no repository at root; baseline snapshot is empty", "root", m.Root)
			return fn(nil)
		}
		return fmt.Errorf("failed to open repository at %q: %w", m.Root, openErr)
	}

	hash := plumbing.NewHash(m.BaselineCommit)
	if _, cErr := repo.CommitObject(hash); cErr != nil {
		return fmt.Errorf("baseline commit %q is unreachable: %w", m.BaselineCommit, cErr)
	}

	head, hErr := repo.Head()
	if hErr != nil {
		return fmt.Errorf("failed to read HEAD before baseline checkout: %w", hErr)
	}
	restoreBranch := ""
	restoreHash := head.Hash()
	if head.Name().IsBranch() {
		restoreBranch = head.Name().Short()
	}

	worktree, wErr := repo.Worktree()
	if wErr != nil {
		return fmt.Errorf("failed to open worktree: %w", wErr)
	}

	m.logger.Debug("materializing baseline tree", "commit", m.BaselineCommit)
	if coErr := worktree.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); coErr != nil {
		return fmt.Errorf("failed to check out baseline commit %q: %w", m.BaselineCommit, coErr)
	}

	defer func() {
		opts := &git.CheckoutOptions{Force: true}
		if restoreBranch != "" {
			opts.Branch = plumbing.NewBranchReferenceName(restoreBranch)
		} else {
			opts.Hash = restoreHash
		}
		if rErr := worktree.Checkout(opts); rErr != nil {
			rErr = fmt.Errorf("%w: %v", ErrWorktreeRestore, rErr)
			if err != nil {
				err = fmt.Errorf("%w (after: %v)", rErr, err)
			} else {
				err = rErr
			}
			return
		}
		m.logger.Debug("working tree restored", "branch", restoreBranch, "hash", restoreHash.String())
	}()

	paths, listErr := m.listFiles()
	if listErr != nil {
		return fmt.Errorf("failed to list baseline files: %w", listErr)
	}
	m.logger.Debug("baseline snapshot listed", "files", len(paths))
	return fn(paths)
}

// listFiles walks the tree under Root and returns the sorted, slash-separated
// relative paths that survive the ignore filter.
func (m *Manager) listFiles() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(m.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rErr := filepath.Rel(m.Root, path)
		if rErr != nil {
			return rErr
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if d.Name() == git.GitDirName || m.rules.Match(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !m.rules.Match(rel) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
