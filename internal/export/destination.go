package export

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/temirov/projmapper/internal/utils"
)

// Subdirectories of the output directory, one per artifact kind.
const (
	MapDirectoryName         = "_projectTREE_maps"
	DumpDirectoryName        = "_projectDUMP_contents"
	BackupDirectoryName      = "_projectBACKUP_zips"
	SystemAuditDirectoryName = "_systemENV_audits"
	EnvAuditDirectoryName    = "_condaENV_audits"

	MapFileName         = "project_tree.txt"
	MapJSONFileName     = "project_tree.json"
	DumpFileName        = "project_file_dump.txt"
	BackupFileSuffix    = "_backup.tar.gz"
	SystemAuditFileName = "system_audit.txt"
	EnvAuditFileName    = "conda_audit.txt"

	outputDirectoryPermissions = 0o755
	outputFilePermissions      = 0o644
)

// Destination is where one artifact is written. Explicit destinations were chosen
// by the caller and are truncated when they exist; default destinations carry a
// timestamp and are never overwritten.
type Destination struct {
	Path     string
	Explicit bool
}

// ExplicitDestination returns a caller-chosen destination.
func ExplicitDestination(path string) Destination {
	return Destination{Path: path, Explicit: true}
}

// DefaultDestination builds a timestamped destination under outputDirectory/kindDirectory.
func DefaultDestination(outputDirectory string, kindDirectory string, fileName string, now time.Time) Destination {
	return Destination{
		Path: filepath.Join(outputDirectory, kindDirectory, utils.TimestampedFileName(fileName, now)),
	}
}

// Create opens the destination for writing, creating parent directories.
// Failures are returned as *WriteError.
func (destination Destination) Create() (*os.File, error) {
	if mkdirError := os.MkdirAll(filepath.Dir(destination.Path), outputDirectoryPermissions); mkdirError != nil {
		return nil, &WriteError{Path: destination.Path, Err: mkdirError}
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !destination.Explicit {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	// #nosec G304
	fileHandle, openError := os.OpenFile(destination.Path, flags, outputFilePermissions)
	if openError != nil {
		return nil, &WriteError{Path: destination.Path, Err: openError}
	}
	return fileHandle, nil
}

// Write creates the destination and streams content into it through render.
// A destination left half-written by a failed render is removed.
func (destination Destination) Write(render func(file *os.File) error) error {
	fileHandle, createError := destination.Create()
	if createError != nil {
		return createError
	}
	renderError := render(fileHandle)
	closeError := fileHandle.Close()
	if renderError == nil && closeError != nil {
		renderError = &WriteError{Path: destination.Path, Err: closeError}
	}
	if renderError != nil {
		_ = os.Remove(destination.Path)
		var writeError *WriteError
		var archiveError *ArchiveError
		if errors.As(renderError, &writeError) || errors.As(renderError, &archiveError) {
			return renderError
		}
		return &WriteError{Path: destination.Path, Err: renderError}
	}
	return nil
}
