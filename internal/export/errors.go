// Package export renders the current selection of a project tree into artifacts:
// a text map, a source dump, and a compressed archive.
package export

import (
	"errors"
	"fmt"
)

// ErrEmptySelection reports an export request with no included files.
var ErrEmptySelection = errors.New("no files are included in the selection")

// WriteError reports an output destination that could not be created or written.
type WriteError struct {
	Path string
	Err  error
}

// Error implements error.
func (writeError *WriteError) Error() string {
	return fmt.Sprintf("cannot write %s: %v", writeError.Path, writeError.Err)
}

// Unwrap exposes the underlying cause.
func (writeError *WriteError) Unwrap() error {
	return writeError.Err
}

// ArchiveError reports an archive that could not be built from the selection.
type ArchiveError struct {
	Reason string
	Err    error
}

// Error implements error.
func (archiveError *ArchiveError) Error() string {
	if archiveError.Err == nil {
		return "archive: " + archiveError.Reason
	}
	return fmt.Sprintf("archive: %s: %v", archiveError.Reason, archiveError.Err)
}

// Unwrap exposes the underlying cause.
func (archiveError *ArchiveError) Unwrap() error {
	return archiveError.Err
}
