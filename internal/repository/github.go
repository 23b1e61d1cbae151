package repository

import (
	"context"
	"errors"

	"github.com/compozy/autorelease/internal/domain"
)

// ErrPRExists is returned when the hosting service refuses to open a duplicate pull request.
var ErrPRExists = errors.New("pull request already exists")

// ReleaseParams identifies a hosted release.
type ReleaseParams struct {
	Tag    string
	Title  string
	Target string
}

// HostingRepository defines the code-hosting operations the release workflow issues.
type HostingRepository interface {
	CheckAuth(ctx context.Context) error
	// Pull requests
	ListPullRequests(ctx context.Context, head, base string) ([]domain.PullRequest, error)
	// CreatePullRequest returns the raw reference reported by the service; callers extract the number.
	CreatePullRequest(ctx context.Context, pr domain.NewPullRequest) (string, error)
	GetPullRequest(ctx context.Context, number int) (*domain.PullRequest, error)
	MergePullRequest(ctx context.Context, number int) error
	// Checks
	ListChecks(ctx context.Context, number int) ([]domain.CheckResult, error)
	ListCommitStatuses(ctx context.Context, number int) ([]domain.CheckResult, error)
	// Releases
	CreateReleaseFromFile(ctx context.Context, params ReleaseParams, notesFile string) error
	CreateRelease(ctx context.Context, params ReleaseParams, notes string) error
}
