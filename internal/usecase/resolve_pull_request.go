package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/compozy/autorelease/internal/domain"
	"github.com/compozy/autorelease/internal/repository"
	"go.uber.org/zap"
)

// ResolvePullRequestUseCase finds the open pull request for a branch or opens one.
type ResolvePullRequestUseCase struct {
	Hosting repository.HostingRepository
	Body    *PreparePRBodyUseCase
	Parsers []PRNumberParser
	Log     *zap.Logger
}

// Execute returns the authoritative pull request for (release.BranchName, release.BaseBranch).
// Repeated calls return the same pull request without creating another one.
func (uc *ResolvePullRequestUseCase) Execute(ctx context.Context, release *domain.Release) (*domain.PullRequest, error) {
	log := loggerOrNop(uc.Log)
	head, base := release.BranchName, release.BaseBranch
	existing, listErr := uc.findExisting(ctx, head, base)
	if existing != nil {
		log.Debug("reusing existing pull request", zap.Int("number", existing.Number))
		return existing, nil
	}
	if listErr != nil {
		log.Warn("failed to list pull requests, trying to create one", zap.Error(listErr))
	}
	body, err := uc.body(ctx, release)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPRResolution, err)
	}
	ref, createErr := uc.Hosting.CreatePullRequest(ctx, domain.NewPullRequest{
		Title: fmt.Sprintf("%s: %s", release.Title(), head),
		Body:  body,
		Head:  head,
		Base:  base,
	})
	if createErr == nil {
		parsers := uc.Parsers
		if parsers == nil {
			parsers = DefaultPRNumberParsers
		}
		if number, ok := ExtractPRNumber(ref, parsers); ok {
			return &domain.PullRequest{Number: number, URL: referenceURL(ref), State: domain.PRStateOpen}, nil
		}
		log.Warn("could not extract pull request number from create response", zap.String("response", ref))
	} else {
		log.Warn("failed to create pull request, checking whether one exists", zap.Error(createErr))
	}
	// The create call may have partially succeeded or raced with another actor
	existing, listErr = uc.findExisting(ctx, head, base)
	if existing != nil {
		return existing, nil
	}
	return nil, fmt.Errorf("%w: no pull request for %s -> %s: %w",
		domain.ErrPRResolution, head, base, errors.Join(createErr, listErr))
}

func (uc *ResolvePullRequestUseCase) findExisting(ctx context.Context, head, base string) (*domain.PullRequest, error) {
	prs, err := uc.Hosting.ListPullRequests(ctx, head, base)
	if err != nil {
		return nil, err
	}
	if len(prs) == 0 {
		return nil, nil
	}
	sort.Slice(prs, func(i, j int) bool { return prs[i].Number < prs[j].Number })
	pr := prs[0]
	return &pr, nil
}

func (uc *ResolvePullRequestUseCase) body(ctx context.Context, release *domain.Release) (string, error) {
	builder := uc.Body
	if builder == nil {
		builder = &PreparePRBodyUseCase{}
	}
	return builder.Execute(ctx, release)
}

func referenceURL(ref string) string {
	for _, field := range strings.Fields(ref) {
		if strings.HasPrefix(field, "https://") || strings.HasPrefix(field, "http://") {
			return strings.Trim(field, `"',`)
		}
	}
	return ""
}

func loggerOrNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
