package domain

// WorkflowOutcome is the terminal state of a release run.
type WorkflowOutcome string

const (
	OutcomeReleased           WorkflowOutcome = "released"
	OutcomeChecksFailed       WorkflowOutcome = "checks_failed"
	OutcomeTimeout            WorkflowOutcome = "timeout"
	OutcomeConflictUnresolved WorkflowOutcome = "conflict_unresolved"
	OutcomeMergeFailed        WorkflowOutcome = "merge_failed"
	OutcomePrerequisiteFailed WorkflowOutcome = "prerequisite_failed"
	OutcomePRResolutionFailed WorkflowOutcome = "pr_resolution_failed"
	OutcomePushFailed         WorkflowOutcome = "push_failed"
	OutcomeReleaseFailed      WorkflowOutcome = "release_failed"
	OutcomeCancelled          WorkflowOutcome = "cancelled"
	OutcomeUnexpected         WorkflowOutcome = "unexpected"
)

// ExitCodeUnexpected is used for failures that do not map to a workflow outcome.
const ExitCodeUnexpected = 1

// ExitCodeCancelled follows the shell convention for an interrupted process.
const ExitCodeCancelled = 130

var outcomeExitCodes = map[WorkflowOutcome]int{
	OutcomeReleased:           0,
	OutcomeChecksFailed:       2,
	OutcomeTimeout:            3,
	OutcomeConflictUnresolved: 4,
	OutcomeMergeFailed:        5,
	OutcomePrerequisiteFailed: 6,
	OutcomePRResolutionFailed: 7,
	OutcomePushFailed:         8,
	OutcomeReleaseFailed:      9,
	OutcomeCancelled:          ExitCodeCancelled,
	OutcomeUnexpected:         ExitCodeUnexpected,
}

// ExitCode returns the process exit code for the outcome.
func (o WorkflowOutcome) ExitCode() int {
	if code, ok := outcomeExitCodes[o]; ok {
		return code
	}
	return ExitCodeUnexpected
}

// Stage names a state of the release state machine.
type Stage string

const (
	StageInit            Stage = "init"
	StagePrereqCheck     Stage = "prerequisite-check"
	StagePush            Stage = "push"
	StageResolvePR       Stage = "resolve-pr"
	StageAwaitChecks     Stage = "await-checks"
	StageResolveConflict Stage = "resolve-conflict"
	StageMerge           Stage = "merge"
	StageRelease         Stage = "release"
	StageDone            Stage = "done"
)

// ChecksVerdict is the terminal result of waiting for CI.
type ChecksVerdict string

const (
	VerdictPassed   ChecksVerdict = "passed"
	VerdictMerged   ChecksVerdict = "merged"
	VerdictFailed   ChecksVerdict = "failed"
	VerdictClosed   ChecksVerdict = "closed"
	VerdictTimedOut ChecksVerdict = "timed_out"
)

// Succeeded reports whether the workflow may continue towards merging.
func (v ChecksVerdict) Succeeded() bool {
	return v == VerdictPassed || v == VerdictMerged
}
