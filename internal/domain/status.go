package domain

// StatusReport is the payload returned to UI collaborators asking for the current release status.
type StatusReport struct {
	Branch      string        `json:"branch" yaml:"branch"`
	BaseBranch  string        `json:"base_branch" yaml:"base_branch"`
	Version     string        `json:"version" yaml:"version"`
	Tag         string        `json:"tag" yaml:"tag"`
	TagExists   bool          `json:"tag_exists" yaml:"tag_exists"`
	Dirty       bool          `json:"dirty" yaml:"dirty"`
	PullRequest *PullRequest  `json:"pull_request,omitempty" yaml:"pull_request,omitempty"`
	Checks      []CheckResult `json:"checks,omitempty" yaml:"checks,omitempty"`
	CheckState  CheckBucket   `json:"check_state,omitempty" yaml:"check_state,omitempty"`
	Warnings    []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// ReadyToRelease reports whether the workflow could start from this state.
func (s *StatusReport) ReadyToRelease() bool {
	return !s.Dirty && s.Branch != "" && s.Branch != s.BaseBranch && s.Version != ""
}
