package orchestrator

import (
	"context"
	"time"

	"github.com/compozy/autorelease/internal/domain"
	"github.com/compozy/autorelease/internal/repository"
	"github.com/stretchr/testify/mock"
)

type mockGitRepository struct{ mock.Mock }

func (m *mockGitRepository) CurrentBranch(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
func (m *mockGitRepository) IsClean(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}
func (m *mockGitRepository) RemoteURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
func (m *mockGitRepository) Fetch(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
func (m *mockGitRepository) FetchTags(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
func (m *mockGitRepository) Pull(ctx context.Context, branch string) error {
	return m.Called(ctx, branch).Error(0)
}
func (m *mockGitRepository) PushBranch(ctx context.Context, branch string) error {
	return m.Called(ctx, branch).Error(0)
}
func (m *mockGitRepository) PushBranchWithLease(ctx context.Context, branch string) error {
	return m.Called(ctx, branch).Error(0)
}
func (m *mockGitRepository) CheckoutBranch(ctx context.Context, branch string) error {
	return m.Called(ctx, branch).Error(0)
}
func (m *mockGitRepository) Rebase(ctx context.Context, onto string) error {
	return m.Called(ctx, onto).Error(0)
}
func (m *mockGitRepository) Merge(ctx context.Context, ref string) error {
	return m.Called(ctx, ref).Error(0)
}
func (m *mockGitRepository) AbortRebase(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
func (m *mockGitRepository) AbortMerge(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
func (m *mockGitRepository) TagExists(ctx context.Context, tag string) (bool, error) {
	args := m.Called(ctx, tag)
	return args.Bool(0), args.Error(1)
}

type mockHostingRepository struct{ mock.Mock }

func (m *mockHostingRepository) CheckAuth(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
func (m *mockHostingRepository) ListPullRequests(ctx context.Context, head, base string) ([]domain.PullRequest, error) {
	args := m.Called(ctx, head, base)
	prs, _ := args.Get(0).([]domain.PullRequest)
	return prs, args.Error(1)
}
func (m *mockHostingRepository) CreatePullRequest(ctx context.Context, pr domain.NewPullRequest) (string, error) {
	args := m.Called(ctx, pr)
	return args.String(0), args.Error(1)
}
func (m *mockHostingRepository) GetPullRequest(ctx context.Context, number int) (*domain.PullRequest, error) {
	args := m.Called(ctx, number)
	pr, _ := args.Get(0).(*domain.PullRequest)
	return pr, args.Error(1)
}
func (m *mockHostingRepository) MergePullRequest(ctx context.Context, number int) error {
	return m.Called(ctx, number).Error(0)
}
func (m *mockHostingRepository) ListChecks(ctx context.Context, number int) ([]domain.CheckResult, error) {
	args := m.Called(ctx, number)
	checks, _ := args.Get(0).([]domain.CheckResult)
	return checks, args.Error(1)
}
func (m *mockHostingRepository) ListCommitStatuses(ctx context.Context, number int) ([]domain.CheckResult, error) {
	args := m.Called(ctx, number)
	checks, _ := args.Get(0).([]domain.CheckResult)
	return checks, args.Error(1)
}
func (m *mockHostingRepository) CreateReleaseFromFile(
	ctx context.Context,
	params repository.ReleaseParams,
	notesFile string,
) error {
	return m.Called(ctx, params, notesFile).Error(0)
}
func (m *mockHostingRepository) CreateRelease(ctx context.Context, params repository.ReleaseParams, notes string) error {
	return m.Called(ctx, params, notes).Error(0)
}

type mockVersionSource struct{ mock.Mock }

func (m *mockVersionSource) CurrentVersion(ctx context.Context) (*domain.Version, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).(*domain.Version)
	return v, args.Error(1)
}

// fakeClock advances instantly on Sleep.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}
