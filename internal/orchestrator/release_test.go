package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/compozy/autorelease/internal/domain"
	"github.com/compozy/autorelease/internal/repository"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testPRURL     = "https://github.com/compozy/app/pull/42"
	testChangelog = "# Changelog\n\n## [Unreleased]\n- A\n- B\n## [1.2.0]\n- C\n\n## [1.1.0]\n- Old\n"
)

var releaseParams = repository.ReleaseParams{Tag: "v1.2.0", Title: "Release v1.2.0", Target: "main"}

type releaseFixture struct {
	git      *mockGitRepository
	hosting  *mockHostingRepository
	versions *mockVersionSource
	fs       afero.Fs
	clock    *fakeClock
	out      *bytes.Buffer
	cfg      Config
}

func newReleaseFixture(t *testing.T) *releaseFixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "CHANGELOG.md", []byte(testChangelog), 0o644))
	return &releaseFixture{
		git:      new(mockGitRepository),
		hosting:  new(mockHostingRepository),
		versions: new(mockVersionSource),
		fs:       fs,
		clock:    newFakeClock(),
		out:      new(bytes.Buffer),
		cfg: Config{
			BaseBranch:     "main",
			ChangelogPath:  "CHANGELOG.md",
			ScratchDir:     t.TempDir(),
			PollInterval:   30 * time.Second,
			MaxWait:        2 * time.Minute,
			SettleDelay:    5 * time.Second,
			SettleAttempts: 3,
			RetryCount:     1,
			RetryDelay:     time.Millisecond,
			LockTimeout:    10 * time.Millisecond,
		},
	}
}

func (f *releaseFixture) orchestrator() *ReleaseOrchestrator {
	return NewReleaseOrchestrator(f.git, f.hosting, f.versions, f.fs, f.cfg,
		WithClock(f.clock), WithOutput(f.out))
}

func (f *releaseFixture) expectPrerequisites(t *testing.T, branch string) {
	t.Helper()
	version, err := domain.NewVersion("1.2.0")
	require.NoError(t, err)
	f.git.On("CurrentBranch", mock.Anything).Return(branch, nil)
	f.git.On("IsClean", mock.Anything).Return(true, nil)
	f.versions.On("CurrentVersion", mock.Anything).Return(version, nil)
	f.hosting.On("CheckAuth", mock.Anything).Return(nil)
}

func (f *releaseFixture) expectPushAndCreate() {
	f.git.On("PushBranch", mock.Anything, "feature/x").Return(nil)
	f.hosting.On("ListPullRequests", mock.Anything, "feature/x", "main").Return([]domain.PullRequest{}, nil)
	f.hosting.On("CreatePullRequest", mock.Anything, mock.MatchedBy(func(pr domain.NewPullRequest) bool {
		return pr.Head == "feature/x" && pr.Base == "main" && pr.Title == "Release v1.2.0: feature/x"
	})).Return(testPRURL+"\n", nil)
}

func (f *releaseFixture) expectPublish() {
	f.git.On("CheckoutBranch", mock.Anything, "main").Return(nil)
	f.git.On("Pull", mock.Anything, "main").Return(nil)
	f.git.On("FetchTags", mock.Anything).Return(nil)
	f.git.On("TagExists", mock.Anything, "v1.2.0").Return(false, nil)
	f.hosting.On("CreateReleaseFromFile", mock.Anything, releaseParams, mock.Anything).Return(nil)
}

func openPR(mergeable domain.Mergeable) *domain.PullRequest {
	return &domain.PullRequest{Number: 42, URL: testPRURL, State: domain.PRStateOpen, Mergeable: mergeable}
}

func passingChecks() []domain.CheckResult {
	return []domain.CheckResult{{Name: "test", Bucket: domain.BucketPass}, {Name: "lint", Bucket: domain.BucketSkipping}}
}

func requireWorkflowError(t *testing.T, err error, outcome domain.WorkflowOutcome, stage domain.Stage) *domain.WorkflowError {
	t.Helper()
	require.Error(t, err)
	var wfErr *domain.WorkflowError
	require.ErrorAs(t, err, &wfErr)
	assert.Equal(t, outcome, wfErr.Outcome)
	assert.Equal(t, stage, wfErr.Stage)
	assert.NotEmpty(t, wfErr.Hint)
	return wfErr
}

func TestReleaseOrchestrator_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("Should release a feature branch end to end", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectPrerequisites(t, "feature/x")
		f.expectPushAndCreate()
		f.hosting.On("GetPullRequest", mock.Anything, 42).Return(openPR(domain.MergeableMergeable), nil)
		f.hosting.On("ListChecks", mock.Anything, 42).Return(passingChecks(), nil)
		f.hosting.On("MergePullRequest", mock.Anything, 42).Return(nil)
		f.expectPublish()

		summary, err := f.orchestrator().Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, domain.ExitCodeFor(err))
		assert.Equal(t, "v1.2.0", summary.Tag)
		assert.Equal(t, 42, summary.PullRequest.Number)
		assert.Equal(t, domain.PRStateMerged, summary.PullRequest.State)
		assert.NotEmpty(t, summary.RunID)
		assert.Contains(t, f.out.String(), "✅ Release v1.2.0 completed")
		f.hosting.AssertNumberOfCalls(t, "CreatePullRequest", 1)
		f.git.AssertExpectations(t)
		f.hosting.AssertExpectations(t)
		_, statErr := os.Stat(filepath.Join(f.cfg.ScratchDir, repository.LockFileName))
		require.NoError(t, statErr)
		lock := repository.NewRunLock(f.cfg.ScratchDir)
		require.NoError(t, lock.Acquire(ctx, 0))
		require.NoError(t, lock.Release())
	})

	t.Run("Should refuse to run from the base branch without side effects", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.git.On("CurrentBranch", mock.Anything).Return("main", nil)

		_, err := f.orchestrator().Execute(ctx)
		wfErr := requireWorkflowError(t, err, domain.OutcomePrerequisiteFailed, domain.StagePrereqCheck)
		assert.Equal(t, 6, domain.ExitCodeFor(err))
		assert.Empty(t, wfErr.PRURL)
		f.git.AssertNotCalled(t, "PushBranch", mock.Anything, mock.Anything)
		f.hosting.AssertNotCalled(t, "CreatePullRequest", mock.Anything, mock.Anything)
	})

	t.Run("Should report failed checks with the pull request link", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectPrerequisites(t, "feature/x")
		f.expectPushAndCreate()
		f.hosting.On("GetPullRequest", mock.Anything, 42).Return(openPR(domain.MergeableMergeable), nil)
		f.hosting.On("ListChecks", mock.Anything, 42).Return([]domain.CheckResult{
			{Name: "test", Bucket: domain.BucketFail},
		}, nil)

		_, err := f.orchestrator().Execute(ctx)
		wfErr := requireWorkflowError(t, err, domain.OutcomeChecksFailed, domain.StageAwaitChecks)
		assert.Equal(t, 2, domain.ExitCodeFor(err))
		assert.Equal(t, testPRURL, wfErr.PRURL)
		assert.ErrorIs(t, err, domain.ErrChecksFailed)
		f.hosting.AssertNotCalled(t, "MergePullRequest", mock.Anything, mock.Anything)
	})

	t.Run("Should time out while checks stay pending", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectPrerequisites(t, "feature/x")
		f.expectPushAndCreate()
		f.hosting.On("GetPullRequest", mock.Anything, 42).Return(openPR(domain.MergeableMergeable), nil)
		f.hosting.On("ListChecks", mock.Anything, 42).Return([]domain.CheckResult{
			{Name: "test", Bucket: domain.BucketPending},
		}, nil)

		_, err := f.orchestrator().Execute(ctx)
		requireWorkflowError(t, err, domain.OutcomeTimeout, domain.StageAwaitChecks)
		assert.Equal(t, 3, domain.ExitCodeFor(err))
		assert.LessOrEqual(t, f.clock.now.Sub(newFakeClock().now), f.cfg.MaxWait+f.cfg.PollInterval)
	})

	t.Run("Should report a cancelled run while checks are pending", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectPrerequisites(t, "feature/x")
		f.expectPushAndCreate()
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		f.hosting.On("GetPullRequest", mock.Anything, 42).Return(openPR(domain.MergeableMergeable), nil)
		f.hosting.On("ListChecks", mock.Anything, 42).Return([]domain.CheckResult{
			{Name: "test", Bucket: domain.BucketPending},
		}, nil).Run(func(mock.Arguments) { cancel() })
		f.cfg.CIOutput = true

		_, err := f.orchestrator().Execute(runCtx)
		wfErr := requireWorkflowError(t, err, domain.OutcomeCancelled, domain.StageAwaitChecks)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, domain.ExitCodeCancelled, domain.ExitCodeFor(err))
		assert.Equal(t, testPRURL, wfErr.PRURL)
		assert.NotContains(t, wfErr.Diagnostic(), "()")
		assert.Contains(t, f.out.String(), "outcome=cancelled")
		f.hosting.AssertNotCalled(t, "MergePullRequest", mock.Anything, mock.Anything)
	})

	t.Run("Should resolve conflicts then merge after the settle re-poll", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectPrerequisites(t, "feature/x")
		f.expectPushAndCreate()
		f.hosting.On("GetPullRequest", mock.Anything, 42).Return(openPR(domain.MergeableConflicting), nil).Once()
		f.hosting.On("GetPullRequest", mock.Anything, 42).Return(openPR(domain.MergeableMergeable), nil)
		f.hosting.On("ListChecks", mock.Anything, 42).Return(passingChecks(), nil)
		f.git.On("Fetch", mock.Anything).Return(nil)
		f.git.On("Rebase", mock.Anything, "origin/main").Return(nil)
		f.git.On("PushBranchWithLease", mock.Anything, "feature/x").Return(nil)
		f.hosting.On("MergePullRequest", mock.Anything, 42).Return(nil)
		f.expectPublish()

		_, err := f.orchestrator().Execute(ctx)
		require.NoError(t, err)
		assert.Contains(t, f.clock.sleeps, f.cfg.SettleDelay)
		f.hosting.AssertCalled(t, "MergePullRequest", mock.Anything, 42)
	})

	t.Run("Should fail when conflicts cannot be resolved", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectPrerequisites(t, "feature/x")
		f.expectPushAndCreate()
		f.hosting.On("GetPullRequest", mock.Anything, 42).Return(openPR(domain.MergeableConflicting), nil)
		f.hosting.On("ListChecks", mock.Anything, 42).Return(passingChecks(), nil)
		f.git.On("Fetch", mock.Anything).Return(nil)
		f.git.On("Rebase", mock.Anything, "origin/main").Return(errors.New("conflict"))
		f.git.On("AbortRebase", mock.Anything).Return(nil)
		f.git.On("Merge", mock.Anything, "origin/main").Return(errors.New("conflict"))
		f.git.On("AbortMerge", mock.Anything).Return(nil)

		_, err := f.orchestrator().Execute(ctx)
		wfErr := requireWorkflowError(t, err, domain.OutcomeConflictUnresolved, domain.StageResolveConflict)
		assert.Equal(t, 4, domain.ExitCodeFor(err))
		assert.Equal(t, testPRURL, wfErr.PRURL)
		f.hosting.AssertNotCalled(t, "MergePullRequest", mock.Anything, mock.Anything)
	})

	t.Run("Should skip merging a pull request that is already merged", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectPrerequisites(t, "feature/x")
		f.expectPushAndCreate()
		f.hosting.On("GetPullRequest", mock.Anything, 42).
			Return(&domain.PullRequest{Number: 42, URL: testPRURL, State: domain.PRStateMerged}, nil)
		f.expectPublish()

		summary, err := f.orchestrator().Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.VerdictMerged, summary.Verdict)
		f.hosting.AssertNotCalled(t, "MergePullRequest", mock.Anything, mock.Anything)
		f.hosting.AssertNotCalled(t, "ListChecks", mock.Anything, mock.Anything)
	})

	t.Run("Should fail the merge stage when the pull request stays open", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectPrerequisites(t, "feature/x")
		f.expectPushAndCreate()
		f.hosting.On("GetPullRequest", mock.Anything, 42).Return(openPR(domain.MergeableMergeable), nil)
		f.hosting.On("ListChecks", mock.Anything, 42).Return(passingChecks(), nil)
		f.hosting.On("MergePullRequest", mock.Anything, 42).Return(errors.New("required review missing"))

		_, err := f.orchestrator().Execute(ctx)
		requireWorkflowError(t, err, domain.OutcomeMergeFailed, domain.StageMerge)
		assert.Equal(t, 5, domain.ExitCodeFor(err))
		f.hosting.AssertNotCalled(t, "CreateReleaseFromFile", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Should treat a failed merge call as success when the pull request merged", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectPrerequisites(t, "feature/x")
		f.expectPushAndCreate()
		f.hosting.On("GetPullRequest", mock.Anything, 42).Return(openPR(domain.MergeableMergeable), nil).Once()
		f.hosting.On("GetPullRequest", mock.Anything, 42).
			Return(&domain.PullRequest{Number: 42, URL: testPRURL, State: domain.PRStateMerged}, nil)
		f.hosting.On("ListChecks", mock.Anything, 42).Return(passingChecks(), nil)
		f.hosting.On("MergePullRequest", mock.Anything, 42).Return(errors.New("Base branch was modified"))
		f.expectPublish()

		_, err := f.orchestrator().Execute(ctx)
		require.NoError(t, err)
	})

	t.Run("Should fail with a push outcome after retries", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectPrerequisites(t, "feature/x")
		f.git.On("PushBranch", mock.Anything, "feature/x").Return(errors.New("connection reset"))

		_, err := f.orchestrator().Execute(ctx)
		requireWorkflowError(t, err, domain.OutcomePushFailed, domain.StagePush)
		assert.Equal(t, 8, domain.ExitCodeFor(err))
		f.git.AssertNumberOfCalls(t, "PushBranch", 2)
	})

	t.Run("Should fail pull request resolution when nothing can be found or created", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectPrerequisites(t, "feature/x")
		f.git.On("PushBranch", mock.Anything, "feature/x").Return(nil)
		f.hosting.On("ListPullRequests", mock.Anything, "feature/x", "main").Return(nil, errors.New("HTTP 502"))
		f.hosting.On("CreatePullRequest", mock.Anything, mock.Anything).Return("", errors.New("HTTP 502"))

		_, err := f.orchestrator().Execute(ctx)
		requireWorkflowError(t, err, domain.OutcomePRResolutionFailed, domain.StageResolvePR)
		assert.Equal(t, 7, domain.ExitCodeFor(err))
	})

	t.Run("Should report release failures after a confirmed merge", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.expectPrerequisites(t, "feature/x")
		f.expectPushAndCreate()
		f.hosting.On("GetPullRequest", mock.Anything, 42).Return(openPR(domain.MergeableMergeable), nil)
		f.hosting.On("ListChecks", mock.Anything, 42).Return(passingChecks(), nil)
		f.hosting.On("MergePullRequest", mock.Anything, 42).Return(nil)
		f.git.On("CheckoutBranch", mock.Anything, "main").Return(nil)
		f.git.On("Pull", mock.Anything, "main").Return(nil)
		f.git.On("FetchTags", mock.Anything).Return(nil)
		f.git.On("TagExists", mock.Anything, "v1.2.0").Return(false, nil)
		f.hosting.On("CreateReleaseFromFile", mock.Anything, releaseParams, mock.Anything).Return(errors.New("HTTP 500"))
		f.hosting.On("CreateRelease", mock.Anything, releaseParams, mock.Anything).Return(errors.New("HTTP 500"))

		_, err := f.orchestrator().Execute(ctx)
		wfErr := requireWorkflowError(t, err, domain.OutcomeReleaseFailed, domain.StageRelease)
		assert.Equal(t, 9, domain.ExitCodeFor(err))
		assert.Equal(t, testPRURL, wfErr.PRURL)
		assert.Contains(t, wfErr.Diagnostic(), testPRURL)
	})

	t.Run("Should refuse to start while another run holds the lock", func(t *testing.T) {
		f := newReleaseFixture(t)
		held := repository.NewRunLock(f.cfg.ScratchDir)
		require.NoError(t, held.Acquire(ctx, 0))
		defer func() { _ = held.Release() }()

		_, err := f.orchestrator().Execute(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, repository.ErrRunInProgress)
		assert.Equal(t, 6, domain.ExitCodeFor(err))
		f.git.AssertNotCalled(t, "CurrentBranch", mock.Anything)
	})

	t.Run("Should print key value lines in CI mode", func(t *testing.T) {
		f := newReleaseFixture(t)
		f.cfg.CIOutput = true
		f.expectPrerequisites(t, "feature/x")
		f.expectPushAndCreate()
		f.hosting.On("GetPullRequest", mock.Anything, 42).Return(openPR(domain.MergeableMergeable), nil)
		f.hosting.On("ListChecks", mock.Anything, 42).Return(passingChecks(), nil)
		f.hosting.On("MergePullRequest", mock.Anything, 42).Return(nil)
		f.expectPublish()

		_, err := f.orchestrator().Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, "version=v1.2.0\npr_number=42\ntag=v1.2.0\n", f.out.String())
	})
}
