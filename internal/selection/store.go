package selection

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const (
	applicationDirectoryName = "projmapper"
	selectionsDirectoryName  = "selections"
	recordFileExtension      = ".json"
	temporaryFilePattern     = ".selection-*.tmp"
	projectHashLength        = 12
	recordFilePermissions    = 0o600
	storeDirectoryPerms      = 0o755

	errorResolveConfigDirFormat = "resolve user configuration directory: %w"
	errorCreateStoreDirFormat   = "create selection directory %s: %w"
	errorEncodeRecordFormat     = "encode selection for %s: %w"
	errorCreateTempFormat       = "create temporary selection file in %s: %w"
	errorWriteTempFormat        = "write temporary selection file %s: %w"
	errorCloseTempFormat        = "close temporary selection file %s: %w"
	errorReplaceRecordFormat    = "replace selection file %s: %w"
	errorInvalidRecordFormat    = "invalid selection for %s: %w"
)

var unsafeFileNameCharacters = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Store reads and writes selection records, one file per project key.
type Store struct {
	directory string
	logger    *zap.Logger
}

// NewStore returns a store rooted at directory. An empty directory selects DefaultDirectory.
func NewStore(directory string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(directory) == "" {
		defaultDirectory, err := DefaultDirectory()
		if err != nil {
			return nil, err
		}
		directory = defaultDirectory
	}
	return &Store{directory: directory, logger: logger}, nil
}

// DefaultDirectory returns the per-user location holding selection records.
func DefaultDirectory() (string, error) {
	configurationDirectory, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf(errorResolveConfigDirFormat, err)
	}
	return filepath.Join(configurationDirectory, applicationDirectoryName, selectionsDirectoryName), nil
}

// Directory returns the directory holding the records.
func (store *Store) Directory() string {
	return store.directory
}

// PathFor returns the record file used for projectKey.
// The name combines a readable project name with a hash of the full key.
func (store *Store) PathFor(projectKey string) string {
	digest := sha256.Sum256([]byte(projectKey))
	readableName := unsafeFileNameCharacters.ReplaceAllString(filepath.Base(projectKey), "_")
	if readableName == "" || readableName == "." || readableName == "_" {
		readableName = "project"
	}
	fileName := readableName + "-" + hex.EncodeToString(digest[:])[:projectHashLength] + recordFileExtension
	return filepath.Join(store.directory, fileName)
}

// Load returns the record saved for projectKey. A missing, unreadable, or corrupt
// record yields an empty record; absence is never an error.
func (store *Store) Load(projectKey string) Record {
	recordPath := store.PathFor(projectKey)
	// #nosec G304
	data, readError := os.ReadFile(recordPath)
	if readError != nil {
		if !os.IsNotExist(readError) {
			store.logger.Warn("selection unreadable, using defaults", zap.String("path", recordPath), zap.Error(readError))
		} else {
			store.logger.Debug("no saved selection", zap.String("project", projectKey))
		}
		return NewRecord(projectKey)
	}

	record := NewRecord(projectKey)
	if decodeError := json.Unmarshal(data, &record); decodeError != nil {
		store.logger.Warn("selection corrupt, using defaults", zap.String("path", recordPath), zap.Error(decodeError))
		return NewRecord(projectKey)
	}
	if record.ExcludedPaths == nil {
		record.ExcludedPaths = NewSet()
	}
	if record.ExcludedPatterns == nil {
		record.ExcludedPatterns = NewSet()
	}
	if record.Project != projectKey {
		store.logger.Warn("selection belongs to another project, using defaults",
			zap.String("path", recordPath), zap.String("recorded", record.Project), zap.String("requested", projectKey))
		return NewRecord(projectKey)
	}
	if validationError := record.Validate(); validationError != nil {
		store.logger.Warn("selection invalid, using defaults", zap.String("path", recordPath), zap.Error(validationError))
		return NewRecord(projectKey)
	}
	return record
}

// Save validates record and atomically replaces the stored record for projectKey.
// The record is written to a temporary file in the same directory and renamed over
// the previous one, so an interrupted save leaves the last good record in place.
func (store *Store) Save(projectKey string, record Record) error {
	record.Project = projectKey
	if validationError := record.Validate(); validationError != nil {
		return fmt.Errorf(errorInvalidRecordFormat, projectKey, validationError)
	}
	data, encodeError := json.MarshalIndent(record, "", "  ")
	if encodeError != nil {
		return fmt.Errorf(errorEncodeRecordFormat, projectKey, encodeError)
	}
	data = append(data, '\n')

	if mkdirError := os.MkdirAll(store.directory, storeDirectoryPerms); mkdirError != nil {
		return fmt.Errorf(errorCreateStoreDirFormat, store.directory, mkdirError)
	}
	recordPath := store.PathFor(projectKey)

	temporaryFile, createError := os.CreateTemp(store.directory, temporaryFilePattern)
	if createError != nil {
		return fmt.Errorf(errorCreateTempFormat, store.directory, createError)
	}
	temporaryPath := temporaryFile.Name()

	if _, writeError := temporaryFile.Write(data); writeError != nil {
		temporaryFile.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf(errorWriteTempFormat, temporaryPath, writeError)
	}
	if syncError := temporaryFile.Sync(); syncError != nil {
		temporaryFile.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf(errorWriteTempFormat, temporaryPath, syncError)
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf(errorCloseTempFormat, temporaryPath, closeError)
	}
	if chmodError := os.Chmod(temporaryPath, recordFilePermissions); chmodError != nil {
		store.logger.Debug("chmod selection file", zap.String("path", temporaryPath), zap.Error(chmodError))
	}
	if renameError := os.Rename(temporaryPath, recordPath); renameError != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf(errorReplaceRecordFormat, recordPath, renameError)
	}

	store.logger.Debug("selection saved", zap.String("path", recordPath))
	return nil
}
