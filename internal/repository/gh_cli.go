package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/compozy/autorelease/internal/domain"
	"github.com/compozy/autorelease/internal/service"
)

// ghCLIRepository implements HostingRepository by invoking the gh CLI.
type ghCLIRepository struct {
	runner service.CommandRunner
	slug   string
}

// NewGhCLIRepository creates a HostingRepository that shells out to gh. An empty slug lets gh
// infer the repository from the working copy.
func NewGhCLIRepository(runner service.CommandRunner, slug string) HostingRepository {
	return &ghCLIRepository{runner: runner, slug: slug}
}

func (r *ghCLIRepository) gh(ctx context.Context, args ...string) (string, error) {
	if r.slug != "" {
		args = append(args, "--repo", r.slug)
	}
	return r.runner.Run(ctx, "gh", args...)
}

// CheckAuth verifies gh is installed and logged in.
func (r *ghCLIRepository) CheckAuth(ctx context.Context) error {
	if _, err := r.runner.Run(ctx, "gh", "auth", "status"); err != nil {
		return fmt.Errorf("gh is not authenticated: %w", err)
	}
	return nil
}

type ghPullRequest struct {
	Number           int    `json:"number"`
	Title            string `json:"title"`
	URL              string `json:"url"`
	State            string `json:"state"`
	Mergeable        string `json:"mergeable"`
	MergeStateStatus string `json:"mergeStateStatus"`
	HeadRefOid       string `json:"headRefOid"`
}

func (p ghPullRequest) toDomain() *domain.PullRequest {
	return &domain.PullRequest{
		Number:           p.Number,
		Title:            p.Title,
		URL:              p.URL,
		State:            domain.NormalizePRState(p.State, false),
		Mergeable:        domain.NormalizeMergeable(p.Mergeable),
		MergeStateStatus: strings.ToUpper(p.MergeStateStatus),
	}
}

// ListPullRequests returns the open pull requests from head into base.
func (r *ghCLIRepository) ListPullRequests(ctx context.Context, head, base string) ([]domain.PullRequest, error) {
	out, err := r.gh(ctx, "pr", "list",
		"--head", head, "--base", base, "--state", "open",
		"--json", "number,title,url,state")
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests: %w", err)
	}
	var prs []ghPullRequest
	if err := decodeJSON(out, &prs); err != nil {
		return nil, fmt.Errorf("failed to parse pull request list: %w", err)
	}
	result := make([]domain.PullRequest, 0, len(prs))
	for _, pr := range prs {
		result = append(result, *pr.toDomain())
	}
	return result, nil
}

// CreatePullRequest opens a pull request; gh prints its url on success.
func (r *ghCLIRepository) CreatePullRequest(ctx context.Context, pr domain.NewPullRequest) (string, error) {
	args := []string{"pr", "create",
		"--title", pr.Title, "--body-file", "-",
		"--head", pr.Head, "--base", pr.Base}
	if r.slug != "" {
		args = append(args, "--repo", r.slug)
	}
	out, err := r.runner.RunWithInput(ctx, pr.Body, "gh", args...)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return out, fmt.Errorf("%w: %s -> %s", ErrPRExists, pr.Head, pr.Base)
		}
		return out, fmt.Errorf("failed to create pull request: %w", err)
	}
	return out, nil
}

func (r *ghCLIRepository) view(ctx context.Context, number int, fields string) (*ghPullRequest, error) {
	out, err := r.gh(ctx, "pr", "view", strconv.Itoa(number), "--json", fields)
	if err != nil {
		return nil, fmt.Errorf("failed to view PR #%d: %w", number, err)
	}
	var pr ghPullRequest
	if err := decodeJSON(out, &pr); err != nil {
		return nil, fmt.Errorf("failed to parse PR #%d: %w", number, err)
	}
	return &pr, nil
}

// GetPullRequest fetches state and mergeability of a pull request.
func (r *ghCLIRepository) GetPullRequest(ctx context.Context, number int) (*domain.PullRequest, error) {
	pr, err := r.view(ctx, number, "number,title,url,state,mergeable,mergeStateStatus")
	if err != nil {
		return nil, err
	}
	return pr.toDomain(), nil
}

// MergePullRequest squash-merges a pull request and deletes its head branch.
func (r *ghCLIRepository) MergePullRequest(ctx context.Context, number int) error {
	if _, err := r.gh(ctx, "pr", "merge", strconv.Itoa(number), "--squash", "--delete-branch"); err != nil {
		return fmt.Errorf("failed to merge PR #%d: %w", number, err)
	}
	return nil
}

type ghCheck struct {
	Name   string `json:"name"`
	Bucket string `json:"bucket"`
}

// ListChecks returns the checks of a pull request. gh exits non-zero while checks are
// pending or failing, so stdout is decoded whenever it holds a JSON payload.
func (r *ghCLIRepository) ListChecks(ctx context.Context, number int) ([]domain.CheckResult, error) {
	out, err := r.gh(ctx, "pr", "checks", strconv.Itoa(number), "--json", "name,bucket")
	if err != nil && !strings.HasPrefix(out, "[") {
		var cmdErr *service.CommandError
		if errors.As(err, &cmdErr) && strings.Contains(cmdErr.Stderr, "no checks reported") {
			return []domain.CheckResult{}, nil
		}
		return nil, fmt.Errorf("failed to list checks for PR #%d: %w", number, err)
	}
	var raw []ghCheck
	if err := decodeJSON(out, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse checks for PR #%d: %w", number, err)
	}
	checks := make([]domain.CheckResult, 0, len(raw))
	for _, c := range raw {
		checks = append(checks, domain.CheckResult{Name: c.Name, Bucket: domain.NormalizeBucket(c.Bucket)})
	}
	return checks, nil
}

type ghCombinedStatus struct {
	Statuses []struct {
		Context string `json:"context"`
		State   string `json:"state"`
	} `json:"statuses"`
}

// ListCommitStatuses reads the combined commit status of the pull request head via gh api.
func (r *ghCLIRepository) ListCommitStatuses(ctx context.Context, number int) ([]domain.CheckResult, error) {
	pr, err := r.view(ctx, number, "headRefOid")
	if err != nil {
		return nil, err
	}
	if pr.HeadRefOid == "" {
		return nil, fmt.Errorf("PR #%d has no head commit", number)
	}
	repoPath := "{owner}/{repo}"
	if r.slug != "" {
		repoPath = r.slug
	}
	out, err := r.runner.Run(ctx, "gh", "api", fmt.Sprintf("repos/%s/commits/%s/status", repoPath, pr.HeadRefOid))
	if err != nil {
		return nil, fmt.Errorf("failed to get combined status for %s: %w", pr.HeadRefOid, err)
	}
	var combined ghCombinedStatus
	if err := decodeJSON(out, &combined); err != nil {
		return nil, fmt.Errorf("failed to parse combined status: %w", err)
	}
	checks := make([]domain.CheckResult, 0, len(combined.Statuses))
	for _, s := range combined.Statuses {
		checks = append(checks, domain.CheckResult{Name: s.Context, Bucket: domain.BucketFromCommitState(s.State)})
	}
	return checks, nil
}

func releaseArgs(params ReleaseParams) []string {
	args := []string{"release", "create", params.Tag, "--title", params.Title}
	if params.Target != "" {
		args = append(args, "--target", params.Target)
	}
	return args
}

// CreateReleaseFromFile publishes a release whose body is read by gh from notesFile.
func (r *ghCLIRepository) CreateReleaseFromFile(ctx context.Context, params ReleaseParams, notesFile string) error {
	args := append(releaseArgs(params), "--notes-file", notesFile)
	if _, err := r.gh(ctx, args...); err != nil {
		return fmt.Errorf("failed to create release %s: %w", params.Tag, err)
	}
	return nil
}

// CreateRelease publishes a release with inline notes.
func (r *ghCLIRepository) CreateRelease(ctx context.Context, params ReleaseParams, notes string) error {
	args := append(releaseArgs(params), "--notes", notes)
	if _, err := r.gh(ctx, args...); err != nil {
		return fmt.Errorf("failed to create release %s: %w", params.Tag, err)
	}
	return nil
}

func decodeJSON(out string, v any) error {
	out = strings.TrimSpace(out)
	if out == "" {
		return errors.New("empty response")
	}
	return json.Unmarshal([]byte(out), v)
}
