package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Workflow error taxonomy. Every terminal failure wraps exactly one of these.
var (
	ErrPrerequisite       = errors.New("prerequisite check failed")
	ErrPRResolution       = errors.New("pull request resolution failed")
	ErrChecksFailed       = errors.New("checks failed")
	ErrChecksTimeout      = errors.New("timed out waiting for checks")
	ErrConflictUnresolved = errors.New("merge conflicts could not be resolved")
	ErrMerge              = errors.New("merge failed")
	ErrPush               = errors.New("push failed")
	ErrReleasePublish     = errors.New("release publish failed")
)

var sentinelOutcomes = []struct {
	err     error
	outcome WorkflowOutcome
}{
	{ErrPrerequisite, OutcomePrerequisiteFailed},
	{ErrPRResolution, OutcomePRResolutionFailed},
	{ErrChecksFailed, OutcomeChecksFailed},
	{ErrChecksTimeout, OutcomeTimeout},
	{ErrConflictUnresolved, OutcomeConflictUnresolved},
	{ErrMerge, OutcomeMergeFailed},
	{ErrPush, OutcomePushFailed},
	{ErrReleasePublish, OutcomeReleaseFailed},
}

// WorkflowError is the terminal failure of a release run.
type WorkflowError struct {
	Outcome WorkflowOutcome
	Stage   Stage
	PRURL   string
	Hint    string
	Err     error
}

// NewWorkflowError builds a WorkflowError whose outcome is derived from the wrapped sentinel.
func NewWorkflowError(stage Stage, err error) *WorkflowError {
	return &WorkflowError{
		Outcome: OutcomeFor(err),
		Stage:   stage,
		Err:     err,
	}
}

// WithPR attaches the PR URL for manual follow-up.
func (e *WorkflowError) WithPR(url string) *WorkflowError {
	e.PRURL = url
	return e
}

// WithHint attaches a remediation hint.
func (e *WorkflowError) WithHint(hint string) *WorkflowError {
	e.Hint = hint
	return e
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for this failure.
func (e *WorkflowError) ExitCode() int {
	return e.Outcome.ExitCode()
}

// Diagnostic renders the multi-line message shown to the operator.
func (e *WorkflowError) Diagnostic() string {
	var b strings.Builder
	outcome := e.Outcome
	if outcome == "" {
		outcome = OutcomeUnexpected
	}
	fmt.Fprintf(&b, "❌ Release failed at stage %q (%s): %v", e.Stage, outcome, e.Err)
	if e.Hint != "" {
		fmt.Fprintf(&b, "\n   hint: %s", e.Hint)
	}
	if e.PRURL != "" {
		fmt.Fprintf(&b, "\n   pull request: %s", e.PRURL)
	}
	return b.String()
}

// OutcomeFor maps an error to its workflow outcome. Sentinels win over
// context errors; anything else is OutcomeUnexpected.
func OutcomeFor(err error) WorkflowOutcome {
	for _, s := range sentinelOutcomes {
		if errors.Is(err, s.err) {
			return s.outcome
		}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	}
	return OutcomeUnexpected
}

// ExitCodeFor returns the exit code for any error returned by the workflow.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr.ExitCode()
	}
	return OutcomeFor(err).ExitCode()
}
