package domain

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version wraps semver.Version for additional methods.
type Version struct {
	*semver.Version
}

// NewVersion creates a new Version from a string.
func NewVersion(s string) (*Version, error) {
	v, err := semver.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return &Version{v}, nil
}

// Compare compares two versions.
func (v *Version) Compare(other *Version) int {
	return v.Version.Compare(other.Version)
}

// String returns the version string with v prefix.
func (v *Version) String() string {
	return "v" + v.Version.String()
}

// Plain returns the version without the v prefix, as written in manifests and changelog headings.
func (v *Version) Plain() string {
	return v.Version.String()
}

// Tag returns the git tag that names this release.
func (v *Version) Tag() string {
	return v.String()
}

// ReleaseTitle returns the title used for the hosted release.
func (v *Version) ReleaseTitle() string {
	return "Release " + v.String()
}
