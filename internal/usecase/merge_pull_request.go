package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/compozy/autorelease/internal/domain"
	"github.com/compozy/autorelease/internal/repository"
	"go.uber.org/zap"
)

// MergePullRequestUseCase squash-merges a pull request. A reported failure is double-checked
// against the pull request state because the merge may have been applied asynchronously.
type MergePullRequestUseCase struct {
	Hosting     repository.HostingRepository
	Clock       Clock
	SettleDelay time.Duration
	Log         *zap.Logger
}

// Execute merges the pull request and deletes its branch.
func (uc *MergePullRequestUseCase) Execute(ctx context.Context, number int) error {
	mergeErr := uc.Hosting.MergePullRequest(ctx, number)
	if mergeErr == nil {
		return nil
	}
	log := loggerOrNop(uc.Log)
	log.Debug("merge reported failure, verifying pull request state", zap.Int("number", number), zap.Error(mergeErr))
	if uc.SettleDelay > 0 {
		clock := uc.Clock
		if clock == nil {
			clock = NewRealClock()
		}
		if err := clock.Sleep(ctx, uc.SettleDelay); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrMerge, err)
		}
	}
	pr, err := uc.Hosting.GetPullRequest(ctx, number)
	if err != nil {
		return fmt.Errorf("%w: %w (state check failed: %v)", domain.ErrMerge, mergeErr, err)
	}
	if pr.IsMerged() {
		log.Warn("merge command failed but the pull request is merged", zap.Int("number", number), zap.Error(mergeErr))
		return nil
	}
	return fmt.Errorf("%w: PR #%d is %s: %w", domain.ErrMerge, number, pr.State, mergeErr)
}
