package orchestrator

import (
	"context"
	"fmt"

	"github.com/compozy/autorelease/internal/domain"
	"github.com/compozy/autorelease/internal/repository"
)

// StatusOrchestrator reports where the current branch stands without changing anything.
type StatusOrchestrator struct {
	gitRepo     repository.GitRepository
	hostingRepo repository.HostingRepository
	versions    repository.VersionSource
	baseBranch  string
}

// NewStatusOrchestrator creates a new status orchestrator.
func NewStatusOrchestrator(
	gitRepo repository.GitRepository,
	hostingRepo repository.HostingRepository,
	versions repository.VersionSource,
	baseBranch string,
) *StatusOrchestrator {
	return &StatusOrchestrator{
		gitRepo:     gitRepo,
		hostingRepo: hostingRepo,
		versions:    versions,
		baseBranch:  baseBranch,
	}
}

// GetStatus collects the release status. Only a failure to read the current branch is fatal;
// every other lookup degrades into a warning on the report.
func (o *StatusOrchestrator) GetStatus(ctx context.Context) (*domain.StatusReport, error) {
	branch, err := o.gitRepo.CurrentBranch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current branch: %w", err)
	}
	report := &domain.StatusReport{Branch: branch, BaseBranch: o.baseBranch}
	clean, err := o.gitRepo.IsClean(ctx)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("working tree status unavailable: %v", err))
	}
	report.Dirty = err == nil && !clean
	if version, err := o.versions.CurrentVersion(ctx); err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("version unavailable: %v", err))
	} else {
		report.Version = version.String()
		report.Tag = version.Tag()
		exists, err := o.gitRepo.TagExists(ctx, report.Tag)
		if err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("tag lookup failed: %v", err))
		}
		report.TagExists = exists
	}
	if branch == o.baseBranch {
		report.Warnings = append(report.Warnings, "current branch is the base branch")
		return report, nil
	}
	o.collectPullRequest(ctx, report)
	return report, nil
}

func (o *StatusOrchestrator) collectPullRequest(ctx context.Context, report *domain.StatusReport) {
	prs, err := o.hostingRepo.ListPullRequests(ctx, report.Branch, report.BaseBranch)
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("pull request lookup failed: %v", err))
		return
	}
	if len(prs) == 0 {
		return
	}
	lowest := prs[0]
	for _, pr := range prs[1:] {
		if pr.Number < lowest.Number {
			lowest = pr
		}
	}
	report.PullRequest = &lowest
	if detail, err := o.hostingRepo.GetPullRequest(ctx, lowest.Number); err == nil {
		report.PullRequest = mergePRView(&lowest, detail)
	} else {
		report.Warnings = append(report.Warnings, fmt.Sprintf("pull request detail unavailable: %v", err))
	}
	checks, err := o.hostingRepo.ListChecks(ctx, lowest.Number)
	if err != nil {
		checks, err = o.hostingRepo.ListCommitStatuses(ctx, lowest.Number)
	}
	if err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("checks unavailable: %v", err))
		return
	}
	report.Checks = checks
	if len(checks) > 0 {
		report.CheckState = domain.AggregateChecks(checks)
	}
}
