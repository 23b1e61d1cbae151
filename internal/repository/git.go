package repository

import "context"

// GitRepository defines the version-control operations the release workflow issues.
type GitRepository interface {
	CurrentBranch(ctx context.Context) (string, error)
	IsClean(ctx context.Context) (bool, error)
	RemoteURL(ctx context.Context) (string, error)
	// Remote synchronisation
	Fetch(ctx context.Context) error
	FetchTags(ctx context.Context) error
	Pull(ctx context.Context, branch string) error
	PushBranch(ctx context.Context, branch string) error
	PushBranchWithLease(ctx context.Context, branch string) error
	// Branch operations
	CheckoutBranch(ctx context.Context, branch string) error
	Rebase(ctx context.Context, onto string) error
	Merge(ctx context.Context, ref string) error
	AbortRebase(ctx context.Context) error
	AbortMerge(ctx context.Context) error
	// Tag operations
	TagExists(ctx context.Context, tag string) (bool, error)
}
