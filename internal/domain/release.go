package domain

// Release holds all metadata related to a release.
type Release struct {
	Version    *Version
	Notes      string
	BranchName string
	BaseBranch string
}

// TagName returns the git tag of the release.
func (r *Release) TagName() string {
	return r.Version.Tag()
}

// Title returns the hosted release title.
func (r *Release) Title() string {
	return r.Version.ReleaseTitle()
}
