package repository

import "github.com/spf13/afero"

// FileSystemRepository defines the interface for filesystem operations.
type FileSystemRepository interface {
	afero.Fs
}

// NewOsFileSystem returns the process filesystem. Release notes written through it must be
// readable by external tools such as gh, so production never uses a memory-backed fs.
func NewOsFileSystem() FileSystemRepository {
	return afero.NewOsFs()
}
