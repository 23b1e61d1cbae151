package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/compozy/autorelease/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStatusOrchestrator_GetStatus(t *testing.T) {
	ctx := context.Background()
	version, err := domain.NewVersion("1.2.0")
	require.NoError(t, err)

	t.Run("Should report the pull request and aggregated checks", func(t *testing.T) {
		git := new(mockGitRepository)
		hosting := new(mockHostingRepository)
		versions := new(mockVersionSource)
		git.On("CurrentBranch", ctx).Return("feature/x", nil)
		git.On("IsClean", ctx).Return(true, nil)
		git.On("TagExists", ctx, "v1.2.0").Return(false, nil)
		versions.On("CurrentVersion", ctx).Return(version, nil)
		hosting.On("ListPullRequests", ctx, "feature/x", "main").Return([]domain.PullRequest{
			{Number: 50, URL: "https://github.com/compozy/app/pull/50"},
			{Number: 42, URL: testPRURL},
		}, nil)
		hosting.On("GetPullRequest", ctx, 42).Return(openPR(domain.MergeableMergeable), nil)
		hosting.On("ListChecks", ctx, 42).Return(nil, errors.New("HTTP 502"))
		hosting.On("ListCommitStatuses", ctx, 42).Return([]domain.CheckResult{
			{Name: "ci", Bucket: domain.BucketPending},
		}, nil)

		report, err := NewStatusOrchestrator(git, hosting, versions, "main").GetStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, "v1.2.0", report.Tag)
		assert.False(t, report.Dirty)
		require.NotNil(t, report.PullRequest)
		assert.Equal(t, 42, report.PullRequest.Number)
		assert.Equal(t, domain.MergeableMergeable, report.PullRequest.Mergeable)
		assert.Equal(t, domain.BucketPending, report.CheckState)
		assert.Empty(t, report.Warnings)
		assert.True(t, report.ReadyToRelease())
	})

	t.Run("Should warn instead of failing when lookups fail", func(t *testing.T) {
		git := new(mockGitRepository)
		hosting := new(mockHostingRepository)
		versions := new(mockVersionSource)
		git.On("CurrentBranch", ctx).Return("feature/x", nil)
		git.On("IsClean", ctx).Return(false, nil)
		versions.On("CurrentVersion", ctx).Return(nil, errors.New("manifest missing"))
		hosting.On("ListPullRequests", ctx, "feature/x", "main").Return(nil, errors.New("unauthorized"))

		report, err := NewStatusOrchestrator(git, hosting, versions, "main").GetStatus(ctx)
		require.NoError(t, err)
		assert.True(t, report.Dirty)
		assert.Len(t, report.Warnings, 2)
		assert.False(t, report.ReadyToRelease())
	})

	t.Run("Should skip the hosting lookup on the base branch", func(t *testing.T) {
		git := new(mockGitRepository)
		hosting := new(mockHostingRepository)
		versions := new(mockVersionSource)
		git.On("CurrentBranch", ctx).Return("main", nil)
		git.On("IsClean", ctx).Return(true, nil)
		git.On("TagExists", ctx, "v1.2.0").Return(true, nil)
		versions.On("CurrentVersion", ctx).Return(version, nil)

		report, err := NewStatusOrchestrator(git, hosting, versions, "main").GetStatus(ctx)
		require.NoError(t, err)
		assert.True(t, report.TagExists)
		assert.Contains(t, report.Warnings, "current branch is the base branch")
		hosting.AssertNotCalled(t, "ListPullRequests", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Should fail when the branch cannot be read", func(t *testing.T) {
		git := new(mockGitRepository)
		git.On("CurrentBranch", ctx).Return("", errors.New("not a repository"))
		_, err := NewStatusOrchestrator(git, new(mockHostingRepository), new(mockVersionSource), "main").GetStatus(ctx)
		assert.Error(t, err)
	})
}
