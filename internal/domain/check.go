package domain

import "strings"

// CheckBucket is the coarse classification of a CI check outcome.
type CheckBucket string

const (
	BucketPending  CheckBucket = "pending"
	BucketPass     CheckBucket = "pass"
	BucketFail     CheckBucket = "fail"
	BucketCancel   CheckBucket = "cancel"
	BucketSkipping CheckBucket = "skipping"
)

// CheckResult is a single named check and its bucket.
type CheckResult struct {
	Name   string      `json:"name" yaml:"name"`
	Bucket CheckBucket `json:"bucket" yaml:"bucket"`
}

// AggregateChecks reduces a check set to a single bucket:
// fail if any check failed or was cancelled, otherwise pending if any check is pending, otherwise pass.
func AggregateChecks(checks []CheckResult) CheckBucket {
	pending := false
	for _, c := range checks {
		switch c.Bucket {
		case BucketFail, BucketCancel:
			return BucketFail
		case BucketPending:
			pending = true
		}
	}
	if pending {
		return BucketPending
	}
	return BucketPass
}

// NormalizeBucket maps a bucket string reported by the CLI onto CheckBucket.
// Unknown values are treated as pending so they never pass a release silently.
func NormalizeBucket(bucket string) CheckBucket {
	switch strings.ToLower(strings.TrimSpace(bucket)) {
	case "pass":
		return BucketPass
	case "fail":
		return BucketFail
	case "cancel":
		return BucketCancel
	case "skipping":
		return BucketSkipping
	default:
		return BucketPending
	}
}

// BucketFromCheckRun classifies a check run by its status and conclusion.
func BucketFromCheckRun(status, conclusion string) CheckBucket {
	if !strings.EqualFold(status, "completed") {
		return BucketPending
	}
	switch strings.ToLower(conclusion) {
	case "success":
		return BucketPass
	case "cancelled":
		return BucketCancel
	case "skipped", "neutral":
		return BucketSkipping
	case "stale", "":
		return BucketPending
	default:
		// failure, timed_out, action_required, startup_failure
		return BucketFail
	}
}

// BucketFromCommitState classifies a legacy commit status state.
func BucketFromCommitState(state string) CheckBucket {
	switch strings.ToLower(state) {
	case "success":
		return BucketPass
	case "failure", "error":
		return BucketFail
	default:
		return BucketPending
	}
}
