package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/compozy/autorelease/internal/domain"
	"github.com/spf13/afero"
)

// ExtractReleaseNotesUseCase derives release notes from the changelog section of a version.
type ExtractReleaseNotesUseCase struct {
	FS            afero.Fs
	ChangelogPath string
}

// Execute returns the notes for version, or the default "Release v<version>" when the
// changelog is missing or has no matching section.
func (uc *ExtractReleaseNotesUseCase) Execute(_ context.Context, version *domain.Version) (string, error) {
	fallback := version.ReleaseTitle()
	if uc.ChangelogPath == "" {
		return fallback, nil
	}
	data, err := afero.ReadFile(uc.FS, uc.ChangelogPath)
	if errors.Is(err, os.ErrNotExist) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read changelog %s: %w", uc.ChangelogPath, err)
	}
	if notes, ok := ExtractChangelogSection(string(data), version); ok {
		return notes, nil
	}
	return fallback, nil
}

// ExtractChangelogSection collects the lines under a "## " heading naming the version or
// Unreleased, up to the next "## [" heading that does not name the version.
func ExtractChangelogSection(changelog string, version *domain.Version) (string, bool) {
	var (
		lines     []string
		capturing bool
	)
	changelog = strings.ReplaceAll(changelog, "\r\n", "\n")
	for _, line := range strings.Split(changelog, "\n") {
		if strings.HasPrefix(line, "## ") {
			if headingNamesVersion(line, version) {
				capturing = true
				continue
			}
			if capturing && strings.HasPrefix(line, "## [") {
				break
			}
		}
		if capturing {
			lines = append(lines, line)
		}
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}

func headingNamesVersion(heading string, version *domain.Version) bool {
	lower := strings.ToLower(heading)
	return strings.Contains(heading, "["+version.Plain()+"]") ||
		strings.Contains(heading, "["+version.String()+"]") ||
		strings.Contains(lower, "[unreleased]")
}

// EscapeInlineNotes prepares notes for an inline argument: newlines are normalised and
// control characters other than newline and tab are dropped.
func EscapeInlineNotes(notes string) string {
	notes = strings.ReplaceAll(notes, "\r\n", "\n")
	notes = strings.ReplaceAll(notes, "\r", "\n")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, notes)
}
