package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/compozy/autorelease/internal/domain"
	"github.com/compozy/autorelease/internal/repository"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	// notesFilePermissions keeps the transient notes file private to the user
	notesFilePermissions = 0o600
	// scratchDirPermissions defines the permissions for the scratch directory
	scratchDirPermissions = 0o700
)

// PublishResult reports what PublishReleaseUseCase did.
type PublishResult struct {
	Tag     string
	Skipped bool
	Inline  bool
}

// PublishReleaseUseCase cuts the hosted release from the merged base branch.
type PublishReleaseUseCase struct {
	Git        repository.GitRepository
	Hosting    repository.HostingRepository
	FS         afero.Fs
	Notes      *ExtractReleaseNotesUseCase
	ScratchDir string
	RunID      string
	RetryCount uint64
	RetryDelay time.Duration
	Log        *zap.Logger
}

// Execute publishes the release unless its tag already exists.
func (uc *PublishReleaseUseCase) Execute(ctx context.Context, release *domain.Release) (*PublishResult, error) {
	log := loggerOrNop(uc.Log)
	tag := release.TagName()
	result := &PublishResult{Tag: tag}
	if err := uc.syncBase(ctx, release.BaseBranch); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrReleasePublish, err)
	}
	exists, err := uc.Git.TagExists(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrReleasePublish, err)
	}
	if exists {
		result.Skipped = true
		return result, nil
	}
	// The changelog is re-read from the merged base branch
	var notes string
	if uc.Notes != nil {
		notes, err = uc.Notes.Execute(ctx, release.Version)
		if err != nil {
			log.Warn("failed to read changelog, using prepared notes", zap.Error(err))
		}
	}
	if notes == "" {
		notes = release.Notes
	}
	if notes == "" {
		notes = release.Title()
	}
	params := repository.ReleaseParams{Tag: tag, Title: release.Title(), Target: release.BaseBranch}
	notesFile, writeErr := uc.writeNotesFile(notes)
	if writeErr == nil {
		defer uc.removeNotesFile(notesFile)
		fileErr := uc.Hosting.CreateReleaseFromFile(ctx, params, notesFile)
		if fileErr == nil {
			return result, nil
		}
		writeErr = fileErr
		log.Warn("publishing from notes file failed, retrying inline", zap.Error(fileErr))
	} else {
		log.Warn("failed to write notes file, publishing inline", zap.Error(writeErr))
	}
	if err := uc.Hosting.CreateRelease(ctx, params, EscapeInlineNotes(notes)); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrReleasePublish, tag, errors.Join(writeErr, err))
	}
	result.Inline = true
	return result, nil
}

// syncBase checks out and fast-forwards the base branch and refreshes tags.
func (uc *PublishReleaseUseCase) syncBase(ctx context.Context, base string) error {
	if err := uc.Git.CheckoutBranch(ctx, base); err != nil {
		return err
	}
	if err := WithRetry(ctx, uc.RetryCount, uc.RetryDelay, func(ctx context.Context) error {
		return uc.Git.Pull(ctx, base)
	}); err != nil {
		return err
	}
	return uc.Git.FetchTags(ctx)
}

func (uc *PublishReleaseUseCase) notesFilePath() string {
	name := "release-notes.md"
	if uc.RunID != "" {
		name = fmt.Sprintf("release-notes-%s.md", uc.RunID)
	}
	return filepath.Join(uc.ScratchDir, name)
}

func (uc *PublishReleaseUseCase) writeNotesFile(notes string) (string, error) {
	if err := uc.FS.MkdirAll(uc.ScratchDir, scratchDirPermissions); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	path := uc.notesFilePath()
	if err := afero.WriteFile(uc.FS, path, []byte(notes), notesFilePermissions); err != nil {
		return "", fmt.Errorf("failed to write notes file: %w", err)
	}
	return path, nil
}

func (uc *PublishReleaseUseCase) removeNotesFile(path string) {
	if err := uc.FS.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		loggerOrNop(uc.Log).Warn("failed to remove notes file", zap.String("path", path), zap.Error(err))
	}
}
