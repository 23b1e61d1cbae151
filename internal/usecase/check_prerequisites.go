package usecase

import (
	"context"
	"fmt"

	"github.com/compozy/autorelease/internal/domain"
	"github.com/compozy/autorelease/internal/repository"
)

// CheckPrerequisitesUseCase verifies the run can start without side effects and returns
// the release it is about to promote.
type CheckPrerequisitesUseCase struct {
	Git        repository.GitRepository
	Hosting    repository.HostingRepository
	Versions   repository.VersionSource
	BaseBranch string
}

// Execute reads the version and branch once and validates the working copy.
func (uc *CheckPrerequisitesUseCase) Execute(ctx context.Context) (*domain.Release, error) {
	branch, err := uc.Git.CurrentBranch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPrerequisite, err)
	}
	if branch == uc.BaseBranch {
		return nil, fmt.Errorf("%w: current branch is the base branch %q, switch to a feature branch",
			domain.ErrPrerequisite, uc.BaseBranch)
	}
	if err := domain.ValidateBranchName(branch); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPrerequisite, err)
	}
	clean, err := uc.Git.IsClean(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPrerequisite, err)
	}
	if !clean {
		return nil, fmt.Errorf("%w: working tree has uncommitted changes", domain.ErrPrerequisite)
	}
	version, err := uc.Versions.CurrentVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPrerequisite, err)
	}
	if err := uc.Hosting.CheckAuth(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPrerequisite, err)
	}
	return &domain.Release{
		Version:    version,
		BranchName: branch,
		BaseBranch: uc.BaseBranch,
	}, nil
}
