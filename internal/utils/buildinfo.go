package utils

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"
)

const (
	unknownVersion        = "unknown"
	develVersion          = "(devel)"
	gitDescribeTimeout    = 2 * time.Second
	gitExecutableName     = "git"
	gitDirectoryNotFound  = ".git directory not found in or above %s"
	absolutePathFailedFmt = "failed to get absolute path for %s: %w"
)

// Version is injected at build time with -ldflags "-X github.com/temirov/projmapper/internal/utils.Version=v1.2.3".
var Version = ""

// GetApplicationVersion determines the application version.
// It prefers the linker-injected Version, then Go build info, then git describe in the working tree.
func GetApplicationVersion() string {
	if strings.TrimSpace(Version) != "" {
		return strings.TrimSpace(Version)
	}
	buildInfo, buildInfoAvailable := debug.ReadBuildInfo()
	if buildInfoAvailable && buildInfo.Main.Version != "" && buildInfo.Main.Version != develVersion {
		return buildInfo.Main.Version
	}

	repositoryDirectory, findError := findGitDirectory(".")
	if findError != nil {
		return unknownVersion
	}
	for _, describeArguments := range [][]string{
		{"describe", "--tags", "--exact-match"},
		{"describe", "--tags", "--long", "--dirty"},
	} {
		if described := runGitDescribe(repositoryDirectory, describeArguments); described != "" {
			return described
		}
	}
	return unknownVersion
}

func runGitDescribe(directory string, arguments []string) string {
	describeContext, cancel := context.WithTimeout(context.Background(), gitDescribeTimeout)
	defer cancel()
	// #nosec G204
	command := exec.CommandContext(describeContext, gitExecutableName, arguments...)
	command.Dir = directory
	output, commandError := command.Output()
	if commandError != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}

// findGitDirectory searches upward from startDirectory for a directory containing .git.
func findGitDirectory(startDirectory string) (string, error) {
	absoluteStartDirectory, errorAbsolute := filepath.Abs(startDirectory)
	if errorAbsolute != nil {
		return "", fmt.Errorf(absolutePathFailedFmt, startDirectory, errorAbsolute)
	}

	currentDirectory := absoluteStartDirectory
	for {
		fileInformation, errorStat := os.Stat(filepath.Join(currentDirectory, GitDirectoryName))
		if errorStat == nil && fileInformation.IsDir() {
			return currentDirectory, nil
		}
		parentDirectory := filepath.Dir(currentDirectory)
		if parentDirectory == currentDirectory {
			break
		}
		currentDirectory = parentDirectory
	}
	return "", fmt.Errorf(gitDirectoryNotFound, absoluteStartDirectory)
}
