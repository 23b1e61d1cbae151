package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/compozy/autorelease/internal/service"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

const remoteName = "origin"

// gitRepository implements GitRepository with go-git, delegating rebase and merge to the git CLI.
type gitRepository struct {
	repo   *git.Repository
	token  string
	runner service.CommandRunner
}

// NewGitRepository opens the repository containing dir.
func NewGitRepository(dir, token string, runner service.CommandRunner) (GitRepository, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}
	return &gitRepository{repo: repo, token: token, runner: runner}, nil
}

// WorktreeRoot returns the top-level directory of the working copy containing dir.
func WorktreeRoot(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("failed to open git repository: %w", err)
	}
	w, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}
	return filepath.Clean(w.Filesystem.Root()), nil
}

// getAuth returns token authentication for https remotes.
func (r *gitRepository) getAuth() transport.AuthMethod {
	if r.token == "" {
		return nil
	}
	// Use x-access-token as username for GitHub token authentication
	return &http.BasicAuth{
		Username: "x-access-token",
		Password: r.token,
	}
}

// CurrentBranch returns the name of the checked out branch.
func (r *gitRepository) CurrentBranch(_ context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is detached at %s", head.Hash().String()[:7])
	}
	return head.Name().Short(), nil
}

// IsClean reports whether the working tree has no staged, unstaged or untracked changes.
func (r *gitRepository) IsClean(_ context.Context) (bool, error) {
	w, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}
	status, err := w.Status()
	if err != nil {
		return false, fmt.Errorf("failed to get status: %w", err)
	}
	return status.IsClean(), nil
}

// RemoteURL returns the first URL of the origin remote.
func (r *gitRepository) RemoteURL(_ context.Context) (string, error) {
	remote, err := r.repo.Remote(remoteName)
	if err != nil {
		return "", fmt.Errorf("failed to get remote: %w", err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote %s has no url", remoteName)
	}
	return urls[0], nil
}

// Fetch updates every remote-tracking branch of origin.
func (r *gitRepository) Fetch(ctx context.Context) error {
	err := r.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []config.RefSpec{config.RefSpec("+refs/heads/*:refs/remotes/origin/*")},
		Auth:       r.getAuth(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to fetch from %s: %w", remoteName, err)
	}
	return nil
}

// FetchTags fetches all tags from origin.
func (r *gitRepository) FetchTags(ctx context.Context) error {
	err := r.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []config.RefSpec{config.RefSpec("+refs/tags/*:refs/tags/*")},
		Tags:       git.AllTags,
		Auth:       r.getAuth(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to fetch tags from remote: %w", err)
	}
	return nil
}

// Pull fast-forwards the checked out branch from origin.
func (r *gitRepository) Pull(ctx context.Context, branch string) error {
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	err = w.PullContext(ctx, &git.PullOptions{
		RemoteName:    remoteName,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Auth:          r.getAuth(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to pull %s: %w", branch, err)
	}
	return nil
}

func branchRefSpec(branch string, force bool) config.RefSpec {
	spec := fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch)
	if force {
		spec = "+" + spec
	}
	return config.RefSpec(spec)
}

// PushBranch pushes a branch to origin.
func (r *gitRepository) PushBranch(ctx context.Context, branch string) error {
	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []config.RefSpec{branchRefSpec(branch, false)},
		Auth:       r.getAuth(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push %s: %w", branch, err)
	}
	return nil
}

// PushBranchWithLease force-pushes a branch, rejecting the push if the remote tip moved
// since the last fetch.
func (r *gitRepository) PushBranchWithLease(ctx context.Context, branch string) error {
	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []config.RefSpec{branchRefSpec(branch, true)},
		Auth:       r.getAuth(),
		ForceWithLease: &git.ForceWithLease{
			RefName: plumbing.NewBranchReferenceName(branch),
		},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to force push %s with lease: %w", branch, err)
	}
	return nil
}

// CheckoutBranch switches to branch, creating it from origin when it only exists remotely.
func (r *gitRepository) CheckoutBranch(_ context.Context, branch string) error {
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	ref := plumbing.NewBranchReferenceName(branch)
	if _, err := r.repo.Reference(ref, false); err == nil {
		if err := w.Checkout(&git.CheckoutOptions{Branch: ref}); err != nil {
			return fmt.Errorf("failed to checkout %s: %w", branch, err)
		}
		return nil
	}
	remoteRef, err := r.repo.Reference(plumbing.NewRemoteReferenceName(remoteName, branch), true)
	if err != nil {
		return fmt.Errorf("branch %s not found locally or on %s: %w", branch, remoteName, err)
	}
	if err := w.Checkout(&git.CheckoutOptions{Branch: ref, Hash: remoteRef.Hash(), Create: true}); err != nil {
		return fmt.Errorf("failed to checkout %s from %s: %w", branch, remoteName, err)
	}
	return nil
}

// Rebase rebases the checked out branch onto the given ref.
func (r *gitRepository) Rebase(ctx context.Context, onto string) error {
	if _, err := r.runner.Run(ctx, "git", "rebase", onto); err != nil {
		return fmt.Errorf("failed to rebase onto %s: %w", onto, err)
	}
	return nil
}

// Merge merges ref into the checked out branch.
func (r *gitRepository) Merge(ctx context.Context, ref string) error {
	if _, err := r.runner.Run(ctx, "git", "merge", "--no-edit", ref); err != nil {
		return fmt.Errorf("failed to merge %s: %w", ref, err)
	}
	return nil
}

// AbortRebase abandons an in-progress rebase.
func (r *gitRepository) AbortRebase(ctx context.Context) error {
	if _, err := r.runner.Run(ctx, "git", "rebase", "--abort"); err != nil {
		return fmt.Errorf("failed to abort rebase: %w", err)
	}
	return nil
}

// AbortMerge abandons an in-progress merge.
func (r *gitRepository) AbortMerge(ctx context.Context) error {
	if _, err := r.runner.Run(ctx, "git", "merge", "--abort"); err != nil {
		return fmt.Errorf("failed to abort merge: %w", err)
	}
	return nil
}

// TagExists checks if a tag exists.
func (r *gitRepository) TagExists(_ context.Context, tag string) (bool, error) {
	_, err := r.repo.Tag(tag)
	if errors.Is(err, git.ErrTagNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check tag %s: %w", tag, err)
	}
	return true, nil
}
