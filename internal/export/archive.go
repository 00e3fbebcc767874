package export

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/temirov/projmapper/internal/tree"
)

const (
	archiveReasonEmpty  = "nothing to archive"
	archiveReasonNone   = "no included file could be read"
	archiveReasonHeader = "writing header for %s"
	archiveReasonCopy   = "writing content of %s"
	archiveReasonClose  = "finalizing archive"

	archiveDirectoryMode = 0o755
	logArchiveSkipped    = "file skipped from archive"
)

// ArchiveResult summarizes a built archive.
type ArchiveResult struct {
	Path    string
	Files   int
	Skipped []string
	Bytes   int64
}

// BuildArchive writes every included file of scanned into a gzip-compressed tar at
// destination, stored under its slash-separated path relative to the root together
// with entries for its parent directories. An empty selection fails with an
// *ArchiveError wrapping ErrEmptySelection before anything is created. Files that
// cannot be opened are skipped with a warning; when none can be read the archive
// is removed and the same error is returned.
func BuildArchive(destination Destination, scanned *tree.Tree, logger *zap.Logger) (ArchiveResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	includedPaths := scanned.CollectIncludedPaths()
	result := ArchiveResult{Path: destination.Path}
	if len(includedPaths) == 0 {
		return result, &ArchiveError{Reason: archiveReasonEmpty, Err: ErrEmptySelection}
	}

	writeError := destination.Write(func(fileHandle *os.File) error {
		return writeArchive(fileHandle, scanned, includedPaths, &result, logger)
	})
	return result, writeError
}

func writeArchive(writer io.Writer, scanned *tree.Tree, includedPaths []string, result *ArchiveResult, logger *zap.Logger) error {
	gzipWriter := gzip.NewWriter(writer)
	tarWriter := tar.NewWriter(gzipWriter)
	writtenDirectories := make(map[string]struct{})

	for _, absolutePath := range includedPaths {
		relativePath := scanned.RelativeFromAbsolute(absolutePath)
		written, entryError := writeArchiveEntry(tarWriter, absolutePath, relativePath, writtenDirectories)
		if entryError != nil {
			if _, isArchiveError := entryError.(*ArchiveError); isArchiveError {
				return entryError
			}
			logger.Warn(logArchiveSkipped, zap.String(logFieldPath, relativePath), zap.Error(entryError))
			result.Skipped = append(result.Skipped, relativePath)
			continue
		}
		result.Files++
		result.Bytes += written
	}

	if closeError := tarWriter.Close(); closeError != nil {
		return &ArchiveError{Reason: archiveReasonClose, Err: closeError}
	}
	if closeError := gzipWriter.Close(); closeError != nil {
		return &ArchiveError{Reason: archiveReasonClose, Err: closeError}
	}
	if result.Files == 0 {
		return &ArchiveError{Reason: archiveReasonNone, Err: ErrEmptySelection}
	}
	return nil
}

// writeArchiveEntry returns a plain error when the source cannot be opened, which
// skips the file, and an *ArchiveError when the archive itself cannot be written.
func writeArchiveEntry(tarWriter *tar.Writer, absolutePath string, relativePath string, writtenDirectories map[string]struct{}) (int64, error) {
	// #nosec G304
	fileHandle, openError := os.Open(absolutePath)
	if openError != nil {
		return 0, openError
	}
	defer fileHandle.Close()
	info, statError := fileHandle.Stat()
	if statError != nil {
		return 0, statError
	}

	for _, directory := range parentDirectories(relativePath) {
		if _, seen := writtenDirectories[directory]; seen {
			continue
		}
		directoryHeader := &tar.Header{
			Typeflag: tar.TypeDir,
			Name:     directory + "/",
			Mode:     archiveDirectoryMode,
			ModTime:  info.ModTime(),
		}
		if headerError := tarWriter.WriteHeader(directoryHeader); headerError != nil {
			return 0, &ArchiveError{Reason: fmt.Sprintf(archiveReasonHeader, directory), Err: headerError}
		}
		writtenDirectories[directory] = struct{}{}
	}

	fileHeader, headerBuildError := tar.FileInfoHeader(info, "")
	if headerBuildError != nil {
		return 0, headerBuildError
	}
	fileHeader.Name = relativePath
	if headerError := tarWriter.WriteHeader(fileHeader); headerError != nil {
		return 0, &ArchiveError{Reason: fmt.Sprintf(archiveReasonHeader, relativePath), Err: headerError}
	}
	written, copyError := io.CopyN(tarWriter, fileHandle, info.Size())
	if copyError != nil {
		return written, &ArchiveError{Reason: fmt.Sprintf(archiveReasonCopy, relativePath), Err: copyError}
	}
	return written, nil
}

// parentDirectories lists the ancestors of a slash path from the outermost down.
func parentDirectories(relativePath string) []string {
	directory := path.Dir(relativePath)
	if directory == "." {
		return nil
	}
	segments := strings.Split(directory, "/")
	parents := make([]string, 0, len(segments))
	for index := range segments {
		parents = append(parents, strings.Join(segments[:index+1], "/"))
	}
	return parents
}
