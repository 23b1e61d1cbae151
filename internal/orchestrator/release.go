package orchestrator

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/compozy/autorelease/internal/domain"
	"github.com/compozy/autorelease/internal/repository"
	"github.com/compozy/autorelease/internal/usecase"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Remediation hints shown with a failed run.
var stageHints = map[domain.WorkflowOutcome]string{
	domain.OutcomePrerequisiteFailed: "commit or stash local changes, switch to a feature branch and check hosting authentication",
	domain.OutcomePushFailed:         "check network access and push permissions for the branch, then rerun",
	domain.OutcomePRResolutionFailed: "open the pull request manually and rerun; the existing pull request will be reused",
	domain.OutcomeChecksFailed:       "fix the failing checks, push the fix and rerun",
	domain.OutcomeTimeout:            "checks are still running; rerun later or raise the max wait",
	domain.OutcomeConflictUnresolved: "rebase the branch onto the base branch manually, resolve conflicts and rerun",
	domain.OutcomeMergeFailed:        "inspect the pull request for branch protection or review requirements, merge manually and rerun",
	domain.OutcomeReleaseFailed:      "the pull request is merged; rerun to publish the release, it skips merged steps",
	domain.OutcomeCancelled:          "the run was interrupted; rerun to resume from the existing pull request",
	domain.OutcomeUnexpected:         "rerun with --debug to see the failing call",
}

// Config carries the timing and location settings of a release run.
type Config struct {
	BaseBranch     string
	ChangelogPath  string
	ScratchDir     string
	PollInterval   time.Duration
	MaxWait        time.Duration
	SettleDelay    time.Duration
	SettleAttempts int
	RetryCount     uint64
	RetryDelay     time.Duration
	LockTimeout    time.Duration
	CIOutput       bool
}

// Summary describes a completed run.
type Summary struct {
	RunID       string
	Version     string
	Tag         string
	PullRequest *domain.PullRequest
	Verdict     domain.ChecksVerdict
	Skipped     bool
}

// ReleaseOrchestrator drives a feature branch through pull request, checks, merge and release.
type ReleaseOrchestrator struct {
	gitRepo     repository.GitRepository
	hostingRepo repository.HostingRepository
	versions    repository.VersionSource
	fsRepo      afero.Fs
	clock       usecase.Clock
	out         io.Writer
	log         *zap.Logger
	cfg         Config
}

// Option customises a ReleaseOrchestrator.
type Option func(*ReleaseOrchestrator)

// WithClock replaces the wall clock used for polling and settle delays.
func WithClock(clock usecase.Clock) Option {
	return func(o *ReleaseOrchestrator) { o.clock = clock }
}

// WithOutput sets the writer progress lines are printed to.
func WithOutput(w io.Writer) Option {
	return func(o *ReleaseOrchestrator) { o.out = w }
}

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *ReleaseOrchestrator) { o.log = log }
}

// NewReleaseOrchestrator creates a new release orchestrator.
func NewReleaseOrchestrator(
	gitRepo repository.GitRepository,
	hostingRepo repository.HostingRepository,
	versions repository.VersionSource,
	fsRepo afero.Fs,
	cfg Config,
	opts ...Option,
) *ReleaseOrchestrator {
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	o := &ReleaseOrchestrator{
		gitRepo:     gitRepo,
		hostingRepo: hostingRepo,
		versions:    versions,
		fsRepo:      fsRepo,
		clock:       usecase.NewRealClock(),
		out:         io.Discard,
		log:         zap.NewNop(),
		cfg:         cfg,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run is the mutable state of a single execution.
type run struct {
	id      string
	stage   domain.Stage
	release *domain.Release
	pr      *domain.PullRequest
	verdict domain.ChecksVerdict
}

// Execute runs the release workflow. Failures are returned as *domain.WorkflowError.
func (o *ReleaseOrchestrator) Execute(ctx context.Context) (*Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.MaxWait+WorkflowOverheadTimeout)
	defer cancel()
	r := &run{id: uuid.NewString(), stage: domain.StageInit}
	log := o.log.With(zap.String("run_id", r.id))
	lock := repository.NewRunLock(o.cfg.ScratchDir)
	if err := lock.Acquire(ctx, o.cfg.LockTimeout); err != nil {
		return nil, o.fail(r, fmt.Errorf("%w: %w", domain.ErrPrerequisite, err))
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn("failed to release run lock", zap.Error(err))
		}
	}()
	steps := []struct {
		stage domain.Stage
		fn    func(context.Context, *run, *zap.Logger) error
	}{
		{domain.StagePrereqCheck, o.checkPrerequisites},
		{domain.StagePush, o.pushBranch},
		{domain.StageResolvePR, o.resolvePullRequest},
		{domain.StageAwaitChecks, o.awaitChecks},
		{domain.StageResolveConflict, o.resolveConflicts},
		{domain.StageMerge, o.mergePullRequest},
		{domain.StageRelease, o.publishRelease},
	}
	summary := &Summary{RunID: r.id}
	for _, step := range steps {
		r.stage = step.stage
		log.Debug("entering stage", zap.String("stage", string(step.stage)))
		if err := step.fn(ctx, r, log); err != nil {
			return nil, o.fail(r, err)
		}
	}
	r.stage = domain.StageDone
	summary.Version = r.release.Version.String()
	summary.Tag = r.release.TagName()
	summary.PullRequest = r.pr
	summary.Verdict = r.verdict
	o.printStatus(fmt.Sprintf("✅ Release %s completed", summary.Tag))
	return summary, nil
}

func (o *ReleaseOrchestrator) fail(r *run, err error) error {
	wfErr := domain.NewWorkflowError(r.stage, err)
	if hint, ok := stageHints[wfErr.Outcome]; ok {
		wfErr.WithHint(hint)
	}
	if r.pr != nil && r.pr.URL != "" {
		wfErr.WithPR(r.pr.URL)
	}
	o.printCIOutput("outcome=%s\n", wfErr.Outcome)
	return wfErr
}

func (o *ReleaseOrchestrator) checkPrerequisites(ctx context.Context, r *run, _ *zap.Logger) error {
	o.printStatus("🔍 Checking prerequisites")
	uc := &usecase.CheckPrerequisitesUseCase{
		Git:        o.gitRepo,
		Hosting:    o.hostingRepo,
		Versions:   o.versions,
		BaseBranch: o.cfg.BaseBranch,
	}
	release, err := uc.Execute(ctx)
	if err != nil {
		return err
	}
	notes, err := o.notesUseCase().Execute(ctx, release.Version)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPrerequisite, err)
	}
	release.Notes = notes
	r.release = release
	o.printCIOutput("version=%s\n", release.Version)
	o.printStatus(fmt.Sprintf("📦 Releasing %s from %s into %s", release.Version, release.BranchName, release.BaseBranch))
	return nil
}

func (o *ReleaseOrchestrator) pushBranch(ctx context.Context, r *run, _ *zap.Logger) error {
	o.printStatus(fmt.Sprintf("⬆️ Pushing %s", r.release.BranchName))
	err := usecase.WithRetry(ctx, o.cfg.RetryCount, o.cfg.RetryDelay, func(ctx context.Context) error {
		return o.gitRepo.PushBranch(ctx, r.release.BranchName)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrPush, r.release.BranchName, err)
	}
	return nil
}

func (o *ReleaseOrchestrator) resolvePullRequest(ctx context.Context, r *run, log *zap.Logger) error {
	uc := &usecase.ResolvePullRequestUseCase{
		Hosting: o.hostingRepo,
		Body:    &usecase.PreparePRBodyUseCase{},
		Log:     log,
	}
	pr, err := uc.Execute(ctx, r.release)
	if err != nil {
		return err
	}
	r.pr = pr
	o.printCIOutput("pr_number=%d\n", pr.Number)
	o.printStatus(fmt.Sprintf("🔗 Pull request #%d %s", pr.Number, pr.URL))
	return nil
}

func (o *ReleaseOrchestrator) awaitChecks(ctx context.Context, r *run, log *zap.Logger) error {
	o.printStatus(fmt.Sprintf("⏳ Waiting for checks on #%d (up to %s)", r.pr.Number, o.cfg.MaxWait))
	uc := &usecase.AwaitChecksUseCase{
		Hosting: o.hostingRepo,
		Clock:   o.clock,
		Log:     log,
		Progress: func(p usecase.CheckProgress) {
			o.printStatus(fmt.Sprintf("   checks %s after %s (%d reported)", p.State, p.Elapsed, len(p.Checks)))
		},
	}
	verdict, pr, err := uc.Execute(ctx, r.pr.Number, o.cfg.MaxWait, o.cfg.PollInterval)
	if err != nil {
		return fmt.Errorf("failed to await checks: %w", err)
	}
	r.verdict = verdict
	if pr != nil {
		r.pr = mergePRView(r.pr, pr)
	}
	switch verdict {
	case domain.VerdictPassed, domain.VerdictMerged:
		o.printStatus(fmt.Sprintf("✅ Checks %s", verdict))
		return nil
	case domain.VerdictTimedOut:
		return fmt.Errorf("%w: PR #%d after %s", domain.ErrChecksTimeout, r.pr.Number, o.cfg.MaxWait)
	case domain.VerdictClosed:
		return fmt.Errorf("%w: PR #%d was closed without merging", domain.ErrChecksFailed, r.pr.Number)
	default:
		return fmt.Errorf("%w: PR #%d", domain.ErrChecksFailed, r.pr.Number)
	}
}

func (o *ReleaseOrchestrator) resolveConflicts(ctx context.Context, r *run, log *zap.Logger) error {
	if r.pr.IsMerged() || !r.pr.HasConflicts() {
		return nil
	}
	o.printStatus(fmt.Sprintf("🔧 Resolving conflicts between %s and %s", r.release.BranchName, r.release.BaseBranch))
	uc := &usecase.ResolveConflictsUseCase{Git: o.gitRepo, Log: log}
	if err := uc.Execute(ctx, r.release.BranchName, r.release.BaseBranch); err != nil {
		return err
	}
	settle := &usecase.AwaitMergeableUseCase{Hosting: o.hostingRepo, Clock: o.clock, Log: log}
	pr, err := settle.Execute(ctx, r.pr.Number, o.cfg.SettleDelay, o.cfg.SettleAttempts)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConflictUnresolved, err)
	}
	r.pr = mergePRView(r.pr, pr)
	if !r.pr.IsMerged() && r.pr.HasConflicts() {
		return fmt.Errorf("%w: PR #%d still reports conflicts", domain.ErrConflictUnresolved, r.pr.Number)
	}
	return nil
}

func (o *ReleaseOrchestrator) mergePullRequest(ctx context.Context, r *run, log *zap.Logger) error {
	if r.pr.IsMerged() {
		o.printStatus(fmt.Sprintf("ℹ️ PR #%d is already merged", r.pr.Number))
		return nil
	}
	o.printStatus(fmt.Sprintf("🔀 Squash-merging PR #%d", r.pr.Number))
	uc := &usecase.MergePullRequestUseCase{
		Hosting:     o.hostingRepo,
		Clock:       o.clock,
		SettleDelay: o.cfg.SettleDelay,
		Log:         log,
	}
	if err := uc.Execute(ctx, r.pr.Number); err != nil {
		return err
	}
	r.pr.State = domain.PRStateMerged
	return nil
}

func (o *ReleaseOrchestrator) publishRelease(ctx context.Context, r *run, log *zap.Logger) error {
	o.printStatus(fmt.Sprintf("🚀 Publishing release %s", r.release.TagName()))
	uc := &usecase.PublishReleaseUseCase{
		Git:        o.gitRepo,
		Hosting:    o.hostingRepo,
		FS:         o.fsRepo,
		Notes:      o.notesUseCase(),
		ScratchDir: o.cfg.ScratchDir,
		RunID:      r.id,
		RetryCount: o.cfg.RetryCount,
		RetryDelay: o.cfg.RetryDelay,
		Log:        log,
	}
	result, err := uc.Execute(ctx, r.release)
	if err != nil {
		return err
	}
	if result.Skipped {
		o.printStatus(fmt.Sprintf("ℹ️ Tag %s already exists, skipping release", result.Tag))
	}
	o.printCIOutput("tag=%s\n", result.Tag)
	return nil
}

func (o *ReleaseOrchestrator) notesUseCase() *usecase.ExtractReleaseNotesUseCase {
	return &usecase.ExtractReleaseNotesUseCase{FS: o.fsRepo, ChangelogPath: o.cfg.ChangelogPath}
}

// mergePRView keeps the identifying fields of a resolved pull request when a later read omits them.
func mergePRView(known, fresh *domain.PullRequest) *domain.PullRequest {
	updated := *fresh
	if updated.Number == 0 {
		updated.Number = known.Number
	}
	if updated.URL == "" {
		updated.URL = known.URL
	}
	if updated.Title == "" {
		updated.Title = known.Title
	}
	return &updated
}

// printCIOutput prints key=value lines in CI mode
func (o *ReleaseOrchestrator) printCIOutput(format string, args ...any) {
	if o.cfg.CIOutput {
		fmt.Fprintf(o.out, format, args...)
	}
}

// printStatus prints status messages when not in CI mode
func (o *ReleaseOrchestrator) printStatus(message string) {
	if !o.cfg.CIOutput {
		fmt.Fprintln(o.out, message)
	}
}
