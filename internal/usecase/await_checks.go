package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/compozy/autorelease/internal/domain"
	"github.com/compozy/autorelease/internal/repository"
	"go.uber.org/zap"
)

// CheckProgress is reported after every non-terminal poll cycle.
type CheckProgress struct {
	Cycle       int
	Elapsed     time.Duration
	PullRequest *domain.PullRequest
	State       domain.CheckBucket
	Checks      []domain.CheckResult
}

// AwaitChecksUseCase polls a pull request until its checks reach a verdict or the wait budget is spent.
type AwaitChecksUseCase struct {
	Hosting  repository.HostingRepository
	Clock    Clock
	Log      *zap.Logger
	Progress func(CheckProgress)
}

// cycleResult is the outcome of one poll cycle; verdict is empty while polling should continue.
type cycleResult struct {
	verdict domain.ChecksVerdict
	pr      *domain.PullRequest
	state   domain.CheckBucket
	checks  []domain.CheckResult
}

// Execute polls every pollInterval. It returns VerdictTimedOut once maxWait has elapsed
// without a terminal outcome; only context cancellation produces an error.
func (uc *AwaitChecksUseCase) Execute(
	ctx context.Context,
	number int,
	maxWait, pollInterval time.Duration,
) (domain.ChecksVerdict, *domain.PullRequest, error) {
	clock := uc.Clock
	if clock == nil {
		clock = NewRealClock()
	}
	start := clock.Now()
	var lastPR *domain.PullRequest
	for cycle := 1; ; cycle++ {
		res, err := uc.poll(ctx, number)
		if err != nil {
			return "", lastPR, err
		}
		if res.pr != nil {
			lastPR = res.pr
		}
		if res.verdict != "" {
			return res.verdict, lastPR, nil
		}
		elapsed := clock.Now().Sub(start)
		if uc.Progress != nil {
			uc.Progress(CheckProgress{
				Cycle:       cycle,
				Elapsed:     elapsed,
				PullRequest: lastPR,
				State:       res.state,
				Checks:      res.checks,
			})
		}
		if elapsed >= maxWait {
			return domain.VerdictTimedOut, lastPR, nil
		}
		if err := clock.Sleep(ctx, pollInterval); err != nil {
			return "", lastPR, fmt.Errorf("waiting for checks on PR #%d: %w", number, err)
		}
	}
}

func (uc *AwaitChecksUseCase) poll(ctx context.Context, number int) (cycleResult, error) {
	log := loggerOrNop(uc.Log)
	prRes := uc.fetchPullRequest(ctx, number)
	if prRes.Kind == domain.ResultFatal {
		return cycleResult{}, prRes.Err
	}
	pr := prRes.Value
	if prRes.Ok() {
		switch {
		case pr.IsMerged():
			return cycleResult{verdict: domain.VerdictMerged, pr: pr}, nil
		case pr.IsClosed():
			return cycleResult{verdict: domain.VerdictClosed, pr: pr}, nil
		}
	} else {
		log.Debug("pull request fetch failed, retrying next cycle", zap.Int("number", number), zap.Error(prRes.Err))
	}
	checksRes := uc.fetchChecks(ctx, number)
	if checksRes.Kind == domain.ResultFatal {
		return cycleResult{}, checksRes.Err
	}
	if !checksRes.Ok() {
		log.Debug("checks unavailable, falling back to mergeable status", zap.Error(checksRes.Err))
		if prRes.Ok() {
			switch pr.Mergeable {
			case domain.MergeableMergeable:
				return cycleResult{verdict: domain.VerdictPassed, pr: pr}, nil
			case domain.MergeableConflicting:
				return cycleResult{verdict: domain.VerdictFailed, pr: pr}, nil
			}
		}
		return cycleResult{pr: pr, state: domain.BucketPending}, nil
	}
	checks := checksRes.Value
	if len(checks) == 0 {
		if prRes.Ok() && pr.Mergeable == domain.MergeableMergeable {
			return cycleResult{verdict: domain.VerdictPassed, pr: pr, checks: checks}, nil
		}
		return cycleResult{pr: pr, state: domain.BucketPending, checks: checks}, nil
	}
	state := domain.AggregateChecks(checks)
	switch state {
	case domain.BucketFail:
		return cycleResult{verdict: domain.VerdictFailed, pr: pr, state: state, checks: checks}, nil
	case domain.BucketPass:
		return cycleResult{verdict: domain.VerdictPassed, pr: pr, state: state, checks: checks}, nil
	default:
		return cycleResult{pr: pr, state: state, checks: checks}, nil
	}
}

func (uc *AwaitChecksUseCase) fetchPullRequest(ctx context.Context, number int) domain.Result[*domain.PullRequest] {
	pr, err := uc.Hosting.GetPullRequest(ctx, number)
	if err != nil {
		return classify[*domain.PullRequest](ctx, err)
	}
	return domain.Success(pr)
}

// fetchChecks reads the primary check API, then the alternate commit-status API.
func (uc *AwaitChecksUseCase) fetchChecks(ctx context.Context, number int) domain.Result[[]domain.CheckResult] {
	checks, err := uc.Hosting.ListChecks(ctx, number)
	if err == nil {
		return domain.Success(checks)
	}
	if ctx.Err() != nil {
		return domain.Fatal[[]domain.CheckResult](ctx.Err())
	}
	loggerOrNop(uc.Log).Debug("check runs unavailable, trying commit statuses", zap.Error(err))
	checks, altErr := uc.Hosting.ListCommitStatuses(ctx, number)
	if altErr != nil {
		return classify[[]domain.CheckResult](ctx, fmt.Errorf("checks: %w; commit statuses: %w", err, altErr))
	}
	return domain.Success(checks)
}

// classify turns a fetch error into a recoverable result unless the run was cancelled.
func classify[T any](ctx context.Context, err error) domain.Result[T] {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.Fatal[T](ctxErr)
	}
	return domain.Recoverable[T](err)
}
