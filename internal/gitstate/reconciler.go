// Package gitstate corrects for CI providers that check out a synthetic
// merge ref instead of the true change head, so baseline/current scans run
// against the right commits.
package gitstate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/hashicorp/go-hclog"
)

// ErrHeadRestore marks a failure to return to the original checkout position
// after a reconcile scope. Symmetric with the baseline snapshot guarantee:
// it is never swallowed.
var ErrHeadRestore = errors.New("failed to restore original head revision")

// rangeLogLimit caps the commit-range log emitted for operator visibility.
const rangeLogLimit = 20

// Reconcile resolves the requested baseline ref to an immutable commit hash,
// moves HEAD to the requested head ref when the CI checkout diverged from it,
// and runs fn with the resolved baseline hash. The original checkout position
// is restored on exit, success or error.
//
// Without a repository at root this is a passthrough: fn receives the
// baseline ref unchanged and no checkout happens, so non-git environments
// degrade gracefully.
func Reconcile(root, baselineRef, headRef string, logger hclog.Logger, fn func(baselineHash string) error) (err error) {
	repo, openErr := git.PlainOpen(root)
	if openErr != nil {
		logger.Debug("no git repository; skipping head reconciliation", "root", root, "error", openErr)
		return fn(baselineRef)
	}

	// Resolve the baseline before any checkout changes what HEAD means.
	baselineHash := ""
	if baselineRef != "" {
		hash, rErr := repo.ResolveRevision(plumbing.Revision(baselineRef))
		if rErr != nil {
			return fmt.Errorf("failed to resolve baseline ref %q: %w", baselineRef, rErr)
		}
		baselineHash = hash.String()
	}

	restoreBranch := ""
	restoreHash := plumbing.ZeroHash
	moved := false

	if headRef != "" {
		headHash, rErr := repo.ResolveRevision(plumbing.Revision(headRef))
		if rErr != nil {
			return fmt.Errorf("failed to resolve head ref %q: %w", headRef, rErr)
		}

		head, hErr := repo.Head()
		if hErr != nil {
			return fmt.Errorf("failed to read HEAD: %w", hErr)
		}

		if head.Hash() != *headHash {
			if head.Name().IsBranch() {
				restoreBranch = head.Name().Short()
			} else {
				restoreHash = head.Hash()
			}

			worktree, wErr := repo.Worktree()
			if wErr != nil {
				return fmt.Errorf("failed to open worktree: %w", wErr)
			}
			logger.Info("not on head ref; checking it out", "head", headRef)
			if coErr := worktree.Checkout(&git.CheckoutOptions{Hash: *headHash}); coErr != nil {
				return fmt.Errorf("failed to check out head ref %q: %w", headRef, coErr)
			}
			moved = true
		}
	}

	defer func() {
		if !moved {
			return
		}
		worktree, wErr := repo.Worktree()
		var rErr error
		if wErr != nil {
			rErr = wErr
		} else {
			opts := &git.CheckoutOptions{}
			if restoreBranch != "" {
				opts.Branch = plumbing.NewBranchReferenceName(restoreBranch)
			} else {
				opts.Hash = restoreHash
			}
			rErr = worktree.Checkout(opts)
		}
		if rErr != nil {
			rErr = fmt.Errorf("%w: %v", ErrHeadRestore, rErr)
			if err != nil {
				err = fmt.Errorf("%w (after: %v)", rErr, err)
			} else {
				err = rErr
			}
			return
		}
		logger.Info("returned to original head revision", "branch", restoreBranch, "hash", restoreHash.String())
	}()

	if baselineHash != "" {
		logCommitRange(repo, baselineHash, logger)
	}

	return fn(baselineHash)
}

// logCommitRange logs the baseline..HEAD range being scanned. Diagnostic
// only; failures here never affect behavior.
func logCommitRange(repo *git.Repository, baselineHash string, logger hclog.Logger) {
	head, err := repo.Head()
	if err != nil {
		return
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return
	}
	defer iter.Close()

	logger.Info("scanning only the following commits", "range", fmt.Sprintf("%s..%s", shortHash(baselineHash), shortHash(head.Hash().String())))
	count := 0
	for {
		commit, err := iter.Next()
		if err != nil || commit.Hash.String() == baselineHash {
			return
		}
		subject := strings.SplitN(strings.TrimSpace(commit.Message), "\n", 2)[0]
		logger.Info(fmt.Sprintf("| %s %s", shortHash(commit.Hash.String()), subject))
		count++
		if count >= rangeLogLimit {
			logger.Info("| ...")
			return
		}
	}
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

// HeadCommitDate returns the committer timestamp of the current HEAD commit,
// or nil when there is no repository or no commits yet.
func HeadCommitDate(root string) *time.Time {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil
	}
	head, err := repo.Head()
	if err != nil {
		return nil
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil
	}
	when := commit.Committer.When
	return &when
}
