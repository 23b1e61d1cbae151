package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/compozy/autorelease/internal/config"
	"github.com/compozy/autorelease/internal/domain"
	"github.com/compozy/autorelease/internal/logger"
	"github.com/google/go-github/v74/github"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// githubRepository implements HostingRepository on the GitHub REST API.
type githubRepository struct {
	client *github.Client
	owner  string
	repo   string
	fs     afero.Fs
	log    *zap.Logger
}

// NewGithubRepository creates a new HostingRepository backed by the REST API.
func NewGithubRepository(token, owner, repo string, fs afero.Fs, log *zap.Logger) (HostingRepository, error) {
	// Validate token format using the consolidated validator from config package
	if err := config.ValidateGitHubToken(token); err != nil {
		return nil, fmt.Errorf("invalid GitHub token: %w", err)
	}
	// Validate owner and repo names using the consolidated validator
	if err := config.ValidateGitHubOwnerRepo(owner, repo); err != nil {
		return nil, fmt.Errorf("invalid repository configuration: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	// Route the OAuth2 client through the tracing transport so every API call is logged
	base := &http.Client{Transport: logger.NewTracingTransport(nil, log)}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: strings.TrimSpace(token)},
	)
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	return newGithubRepositoryWithClient(client, owner, repo, fs, log), nil
}

func newGithubRepositoryWithClient(
	client *github.Client,
	owner, repo string,
	fs afero.Fs,
	log *zap.Logger,
) *githubRepository {
	return &githubRepository{client: client, owner: owner, repo: repo, fs: fs, log: log}
}

// CheckAuth verifies the token by fetching the authenticated user.
func (r *githubRepository) CheckAuth(ctx context.Context) error {
	user, _, err := r.client.Users.Get(ctx, "")
	if err != nil {
		return fmt.Errorf("github authentication failed: %w", err)
	}
	r.log.Debug("authenticated against GitHub", zap.String("login", user.GetLogin()))
	return nil
}

// ListPullRequests returns the open pull requests from head into base.
func (r *githubRepository) ListPullRequests(ctx context.Context, head, base string) ([]domain.PullRequest, error) {
	opts := &github.PullRequestListOptions{
		Head:        fmt.Sprintf("%s:%s", r.owner, head),
		Base:        base,
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var result []domain.PullRequest
	for {
		prs, resp, err := r.client.PullRequests.List(ctx, r.owner, r.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list pull requests: %w", err)
		}
		for _, pr := range prs {
			result = append(result, *toDomainPullRequest(pr))
		}
		if resp == nil || resp.NextPage == 0 {
			return result, nil
		}
		opts.Page = resp.NextPage
	}
}

// CreatePullRequest opens a pull request and returns its html url.
func (r *githubRepository) CreatePullRequest(ctx context.Context, newPR domain.NewPullRequest) (string, error) {
	pr, resp, err := r.client.PullRequests.Create(ctx, r.owner, r.repo, &github.NewPullRequest{
		Title: github.Ptr(newPR.Title),
		Body:  github.Ptr(newPR.Body),
		Head:  github.Ptr(newPR.Head),
		Base:  github.Ptr(newPR.Base),
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity &&
			strings.Contains(err.Error(), "A pull request already exists") {
			return "", fmt.Errorf("%w: %s -> %s", ErrPRExists, newPR.Head, newPR.Base)
		}
		return "", fmt.Errorf("failed to create pull request: %w", err)
	}
	if url := pr.GetHTMLURL(); url != "" {
		return url, nil
	}
	return fmt.Sprintf("#%d", pr.GetNumber()), nil
}

// GetPullRequest fetches state and mergeability of a pull request.
func (r *githubRepository) GetPullRequest(ctx context.Context, number int) (*domain.PullRequest, error) {
	pr, _, err := r.client.PullRequests.Get(ctx, r.owner, r.repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get PR #%d: %w", number, err)
	}
	return toDomainPullRequest(pr), nil
}

func toDomainPullRequest(pr *github.PullRequest) *domain.PullRequest {
	return &domain.PullRequest{
		Number:           pr.GetNumber(),
		Title:            pr.GetTitle(),
		URL:              pr.GetHTMLURL(),
		State:            domain.NormalizePRState(pr.GetState(), pr.GetMerged() || pr.MergedAt != nil),
		Mergeable:        domain.MergeableFromFlag(pr.Mergeable),
		MergeStateStatus: strings.ToUpper(pr.GetMergeableState()),
	}
}

// MergePullRequest squash-merges a pull request and deletes its head branch.
func (r *githubRepository) MergePullRequest(ctx context.Context, number int) error {
	pr, _, err := r.client.PullRequests.Get(ctx, r.owner, r.repo, number)
	if err != nil {
		return fmt.Errorf("failed to get PR #%d: %w", number, err)
	}
	result, _, err := r.client.PullRequests.Merge(ctx, r.owner, r.repo, number, "", &github.PullRequestOptions{
		MergeMethod: "squash",
	})
	if err != nil {
		return fmt.Errorf("failed to merge PR #%d: %w", number, err)
	}
	if !result.GetMerged() {
		return fmt.Errorf("PR #%d merge was not successful: %s", number, result.GetMessage())
	}
	// Forks own their branches
	if pr.GetHead().GetRepo().GetFullName() != r.owner+"/"+r.repo {
		return nil
	}
	branch := pr.GetHead().GetRef()
	if _, err := r.client.Git.DeleteRef(ctx, r.owner, r.repo, "heads/"+branch); err != nil {
		r.log.Warn("merged but failed to delete head branch", zap.String("branch", branch), zap.Error(err))
	}
	return nil
}

func (r *githubRepository) headSHA(ctx context.Context, number int) (string, error) {
	pr, _, err := r.client.PullRequests.Get(ctx, r.owner, r.repo, number)
	if err != nil {
		return "", fmt.Errorf("failed to get PR #%d: %w", number, err)
	}
	sha := pr.GetHead().GetSHA()
	if sha == "" {
		return "", fmt.Errorf("PR #%d has no head commit", number)
	}
	return sha, nil
}

// ListChecks returns the check runs and commit statuses reported for the
// pull request head. A failure of one view is tolerated when the other
// answers.
func (r *githubRepository) ListChecks(ctx context.Context, number int) ([]domain.CheckResult, error) {
	sha, err := r.headSHA(ctx, number)
	if err != nil {
		return nil, err
	}
	runs, runsErr := r.checkRuns(ctx, sha)
	statuses, statusErr := r.commitStatuses(ctx, sha)
	switch {
	case runsErr != nil && statusErr != nil:
		return nil, errors.Join(runsErr, statusErr)
	case runsErr != nil:
		r.log.Warn("check runs unavailable, using commit statuses only", zap.Error(runsErr))
	case statusErr != nil:
		r.log.Warn("commit statuses unavailable, using check runs only", zap.Error(statusErr))
	}
	return append(runs, statuses...), nil
}

// ListCommitStatuses returns the legacy commit statuses for the pull request head.
func (r *githubRepository) ListCommitStatuses(ctx context.Context, number int) ([]domain.CheckResult, error) {
	sha, err := r.headSHA(ctx, number)
	if err != nil {
		return nil, err
	}
	return r.commitStatuses(ctx, sha)
}

func (r *githubRepository) checkRuns(ctx context.Context, sha string) ([]domain.CheckResult, error) {
	opts := &github.ListCheckRunsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	var checks []domain.CheckResult
	for {
		runs, resp, err := r.client.Checks.ListCheckRunsForRef(ctx, r.owner, r.repo, sha, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list check runs for %s: %w", sha, err)
		}
		for _, run := range runs.CheckRuns {
			checks = append(checks, domain.CheckResult{
				Name:   run.GetName(),
				Bucket: domain.BucketFromCheckRun(run.GetStatus(), run.GetConclusion()),
			})
		}
		if resp == nil || resp.NextPage == 0 {
			return checks, nil
		}
		opts.Page = resp.NextPage
	}
}

func (r *githubRepository) commitStatuses(ctx context.Context, sha string) ([]domain.CheckResult, error) {
	opts := &github.ListOptions{PerPage: 100}
	var checks []domain.CheckResult
	for {
		combined, resp, err := r.client.Repositories.GetCombinedStatus(ctx, r.owner, r.repo, sha, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to get combined status for %s: %w", sha, err)
		}
		for _, status := range combined.Statuses {
			checks = append(checks, domain.CheckResult{
				Name:   status.GetContext(),
				Bucket: domain.BucketFromCommitState(status.GetState()),
			})
		}
		if resp == nil || resp.NextPage == 0 {
			return checks, nil
		}
		opts.Page = resp.NextPage
	}
}

// CreateReleaseFromFile publishes a release whose body is read from notesFile.
func (r *githubRepository) CreateReleaseFromFile(ctx context.Context, params ReleaseParams, notesFile string) error {
	notes, err := afero.ReadFile(r.fs, notesFile)
	if err != nil {
		return fmt.Errorf("failed to read release notes %s: %w", notesFile, err)
	}
	return r.CreateRelease(ctx, params, string(notes))
}

// CreateRelease publishes a release with inline notes.
func (r *githubRepository) CreateRelease(ctx context.Context, params ReleaseParams, notes string) error {
	release := &github.RepositoryRelease{
		TagName: github.Ptr(params.Tag),
		Name:    github.Ptr(params.Title),
		Body:    github.Ptr(notes),
	}
	if params.Target != "" {
		release.TargetCommitish = github.Ptr(params.Target)
	}
	_, _, err := r.client.Repositories.CreateRelease(ctx, r.owner, r.repo, release)
	if err != nil {
		return fmt.Errorf("failed to create release %s: %w", params.Tag, err)
	}
	return nil
}
