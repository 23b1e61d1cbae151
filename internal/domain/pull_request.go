package domain

import "strings"

// PRState is the lifecycle state reported by the hosting service.
type PRState string

const (
	PRStateOpen   PRState = "OPEN"
	PRStateMerged PRState = "MERGED"
	PRStateClosed PRState = "CLOSED"
)

// Mergeable is the hosting service's conflict assessment for a pull request.
type Mergeable string

const (
	MergeableMergeable   Mergeable = "MERGEABLE"
	MergeableConflicting Mergeable = "CONFLICTING"
	MergeableUnknown     Mergeable = "UNKNOWN"
)

// MergeStateDirty is the merge state reported when the head cannot be merged cleanly.
const MergeStateDirty = "DIRTY"

// PullRequest is the authoritative PR for a (branch, base) pair.
type PullRequest struct {
	Number           int       `json:"number" yaml:"number"`
	Title            string    `json:"title" yaml:"title"`
	URL              string    `json:"url" yaml:"url"`
	State            PRState   `json:"state" yaml:"state"`
	Mergeable        Mergeable `json:"mergeable" yaml:"mergeable"`
	MergeStateStatus string    `json:"merge_state_status" yaml:"merge_state_status"`
}

// NewPullRequest describes a PR that should be opened.
type NewPullRequest struct {
	Title string
	Body  string
	Head  string
	Base  string
}

// IsMerged reports whether the PR has been merged.
func (pr *PullRequest) IsMerged() bool {
	return pr.State == PRStateMerged
}

// IsClosed reports whether the PR was closed without merging.
func (pr *PullRequest) IsClosed() bool {
	return pr.State == PRStateClosed
}

// HasConflicts reports whether the PR needs conflict resolution before it can merge.
func (pr *PullRequest) HasConflicts() bool {
	return pr.Mergeable == MergeableConflicting || strings.EqualFold(pr.MergeStateStatus, MergeStateDirty)
}

// NormalizePRState maps the various spellings used by the API and the CLI onto PRState.
func NormalizePRState(state string, merged bool) PRState {
	if merged {
		return PRStateMerged
	}
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "MERGED":
		return PRStateMerged
	case "CLOSED":
		return PRStateClosed
	default:
		return PRStateOpen
	}
}

// NormalizeMergeable maps a textual mergeable value onto Mergeable.
func NormalizeMergeable(value string) Mergeable {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "MERGEABLE":
		return MergeableMergeable
	case "CONFLICTING":
		return MergeableConflicting
	default:
		return MergeableUnknown
	}
}

// MergeableFromFlag maps the REST API's tri-state mergeable flag onto Mergeable.
func MergeableFromFlag(flag *bool) Mergeable {
	if flag == nil {
		return MergeableUnknown
	}
	if *flag {
		return MergeableMergeable
	}
	return MergeableConflicting
}
