// Package config loads application configuration and project ignore files.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/projmapper/internal/utils"
)

// gitDirectoryPattern matches the Git directory but not files named ".git".
const gitDirectoryPattern = utils.GitDirectoryName + "/"

// LoadIgnoreFilePatterns reads name patterns from an ignore file, one per line.
// Blank lines and lines starting with "#" are skipped. A missing file yields no patterns.
//
// #nosec G304
func LoadIgnoreFilePatterns(ignoreFilePath string) ([]string, error) {
	fileHandle, openFileError := os.Open(ignoreFilePath)
	if openFileError != nil {
		if os.IsNotExist(openFileError) {
			return nil, nil
		}
		return nil, openFileError
	}
	defer fileHandle.Close()

	var ignorePatterns []string
	scanner := bufio.NewScanner(fileHandle)
	for scanner.Scan() {
		trimmedLine := strings.TrimSpace(scanner.Text())
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, "#") {
			continue
		}
		ignorePatterns = append(ignorePatterns, trimmedLine)
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, scanError
	}
	return ignorePatterns, nil
}

// LoadCombinedIgnorePatterns merges the configured exclusion patterns with the
// project's ignore file. The Git directory stays excluded unless includeGit is true.
func LoadCombinedIgnorePatterns(projectRoot string, exclusionPatterns []string, useIgnoreFile bool, includeGit bool) ([]string, error) {
	combinedPatterns := append([]string{}, exclusionPatterns...)

	if useIgnoreFile {
		ignoreFilePath := filepath.Join(projectRoot, utils.IgnoreFileName)
		ignoreFilePatterns, loadError := LoadIgnoreFilePatterns(ignoreFilePath)
		if loadError != nil {
			return nil, fmt.Errorf("loading %s from %s: %w", utils.IgnoreFileName, projectRoot, loadError)
		}
		combinedPatterns = append(combinedPatterns, ignoreFilePatterns...)
	}

	if includeGit {
		filtered := combinedPatterns[:0]
		for _, pattern := range combinedPatterns {
			trimmedPattern := strings.TrimSpace(pattern)
			if trimmedPattern == utils.GitDirectoryName || trimmedPattern == gitDirectoryPattern {
				continue
			}
			filtered = append(filtered, pattern)
		}
		combinedPatterns = filtered
	} else {
		combinedPatterns = append(combinedPatterns, gitDirectoryPattern)
	}

	return utils.DeduplicatePatterns(combinedPatterns), nil
}
