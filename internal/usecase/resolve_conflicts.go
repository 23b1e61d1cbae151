package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/compozy/autorelease/internal/domain"
	"github.com/compozy/autorelease/internal/repository"
	"go.uber.org/zap"
)

// ResolveConflictsUseCase makes a conflicting branch mergeable by rebasing onto the base,
// falling back to merging the base in. It is a single pass and never retries.
type ResolveConflictsUseCase struct {
	Git repository.GitRepository
	Log *zap.Logger
}

// Execute updates branch against origin/base and force-pushes it with a lease.
func (uc *ResolveConflictsUseCase) Execute(ctx context.Context, branch, base string) error {
	log := loggerOrNop(uc.Log)
	if err := uc.Git.Fetch(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConflictUnresolved, err)
	}
	upstream := "origin/" + base
	rebaseErr := uc.Git.Rebase(ctx, upstream)
	if rebaseErr != nil {
		log.Debug("rebase failed, falling back to merge", zap.String("onto", upstream), zap.Error(rebaseErr))
		if err := uc.Git.AbortRebase(ctx); err != nil {
			log.Warn("failed to abort rebase", zap.Error(err))
		}
		if mergeErr := uc.Git.Merge(ctx, upstream); mergeErr != nil {
			if err := uc.Git.AbortMerge(ctx); err != nil {
				log.Warn("failed to abort merge", zap.Error(err))
			}
			return fmt.Errorf("%w: rebase onto %s failed (%v) and merge failed: %w",
				domain.ErrConflictUnresolved, upstream, rebaseErr, mergeErr)
		}
	}
	if err := uc.Git.PushBranchWithLease(ctx, branch); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConflictUnresolved, err)
	}
	return nil
}

// AwaitMergeableUseCase re-reads a pull request after a mutating action until the hosting
// service has recomputed its mergeability.
type AwaitMergeableUseCase struct {
	Hosting repository.HostingRepository
	Clock   Clock
	Log     *zap.Logger
}

// Execute waits settleDelay before each of up to attempts reads and stops at the first
// read whose mergeable state is known. The last successful read is returned.
func (uc *AwaitMergeableUseCase) Execute(
	ctx context.Context,
	number int,
	settleDelay time.Duration,
	attempts int,
) (*domain.PullRequest, error) {
	clock := uc.Clock
	if clock == nil {
		clock = NewRealClock()
	}
	var (
		last    *domain.PullRequest
		lastErr error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := clock.Sleep(ctx, settleDelay); err != nil {
			return last, err
		}
		pr, err := uc.Hosting.GetPullRequest(ctx, number)
		if err != nil {
			lastErr = err
			loggerOrNop(uc.Log).Debug("mergeable re-poll failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		last = pr
		if pr.Mergeable != domain.MergeableUnknown || pr.IsMerged() {
			return pr, nil
		}
	}
	if last == nil {
		return nil, fmt.Errorf("failed to read PR #%d after settle delay: %w", number, lastErr)
	}
	return last, nil
}
