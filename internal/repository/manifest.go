package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/compozy/autorelease/internal/domain"
	"github.com/spf13/afero"
)

// VersionSource returns the version the current branch releases.
type VersionSource interface {
	CurrentVersion(ctx context.Context) (*domain.Version, error)
}

// manifestVersionSource reads the version from a JSON manifest or a plain VERSION file.
type manifestVersionSource struct {
	fs   afero.Fs
	path string
}

// NewManifestVersionSource creates a VersionSource for the manifest at path.
func NewManifestVersionSource(fs afero.Fs, path string) VersionSource {
	return &manifestVersionSource{fs: fs, path: path}
}

// CurrentVersion reads and validates the manifest version.
func (s *manifestVersionSource) CurrentVersion(_ context.Context) (*domain.Version, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", s.path, err)
	}
	raw := strings.TrimSpace(string(data))
	if strings.EqualFold(filepath.Ext(s.path), ".json") {
		var manifest struct {
			Version string `json:"version"`
		}
		if err := json.Unmarshal(data, &manifest); err != nil {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", s.path, err)
		}
		raw = manifest.Version
	}
	if raw == "" {
		return nil, fmt.Errorf("manifest %s does not declare a version", s.path)
	}
	version, err := domain.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q in %s: %w", raw, s.path, err)
	}
	return version, nil
}
