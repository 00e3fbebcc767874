package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	baseEnvironmentName   = "base"
	activeSuffix          = " (active)"
	activePrefixVariable  = "CONDA_PREFIX"
	rootPrefixVariable    = "CONDA_ROOT_PREFIX"
	environmentReportName = "Conda Environment Audit"

	keyEnvironment = "Environment"
	keyConda       = "Conda"
	activeLabel    = "active"

	sectionCondaInfo         = "Conda Info"
	sectionCondaEnvironments = "Conda Environments"
	sectionActivePackages    = "Active Env Packages"
	sectionPackagesFormat    = "Packages in '%s'"

	errorParseEnvironments = "parse conda environment list: %w"
)

// Environment is one conda environment.
type Environment struct {
	Name   string
	Path   string
	Active bool
}

// DisplayName returns the name with an "(active)" marker when the environment is active.
func (environment Environment) DisplayName() string {
	if environment.Active {
		return environment.Name + activeSuffix
	}
	return environment.Name
}

type condaEnvironmentList struct {
	Environments []string `json:"envs"`
	LegacyList   []string `json:"environments"`
	CondaPrefix  string   `json:"conda_prefix"`
	RootPrefix   string   `json:"root_prefix"`
}

// ListEnvironments returns the conda environments known to the host. The root
// prefix is named "base", others take their directory name. The active base comes
// first, then base, then another active environment, then the rest by name.
func (auditor *Auditor) ListEnvironments(ctx context.Context) ([]Environment, error) {
	output, runError := auditor.runner.Run(ctx, auditor.condaExecutable, "env", "list", "--json")
	if runError != nil {
		return nil, runError
	}
	var listing condaEnvironmentList
	if decodeError := json.Unmarshal([]byte(output), &listing); decodeError != nil {
		return nil, fmt.Errorf(errorParseEnvironments, decodeError)
	}

	environmentPaths := listing.Environments
	if len(environmentPaths) == 0 {
		environmentPaths = listing.LegacyList
	}
	rootPrefix := firstNonEmpty(listing.CondaPrefix, listing.RootPrefix, auditor.lookupEnv(rootPrefixVariable))
	activePrefix := strings.TrimSpace(auditor.lookupEnv(activePrefixVariable))

	var environments []Environment
	seenPaths := make(map[string]struct{})
	seenNames := make(map[string]struct{})
	appendEnvironment := func(environmentPath string) {
		if environmentPath == "" {
			return
		}
		if _, seen := seenPaths[environmentPath]; seen {
			return
		}
		name := filepath.Base(environmentPath)
		if rootPrefix != "" && samePath(environmentPath, rootPrefix) {
			name = baseEnvironmentName
		}
		if _, seen := seenNames[name]; seen {
			return
		}
		seenPaths[environmentPath] = struct{}{}
		seenNames[name] = struct{}{}
		environments = append(environments, Environment{
			Name:   name,
			Path:   environmentPath,
			Active: activePrefix != "" && samePath(environmentPath, activePrefix),
		})
	}
	for _, environmentPath := range environmentPaths {
		appendEnvironment(environmentPath)
	}
	if _, hasBase := seenNames[baseEnvironmentName]; !hasBase {
		appendEnvironment(rootPrefix)
	}

	SortEnvironments(environments)
	return environments, nil
}

// SortEnvironments orders environments: active base, base, other active, then by name.
func SortEnvironments(environments []Environment) {
	rank := func(environment Environment) int {
		switch {
		case environment.Name == baseEnvironmentName && environment.Active:
			return 0
		case environment.Name == baseEnvironmentName:
			return 1
		case environment.Active:
			return 2
		default:
			return 3
		}
	}
	sort.SliceStable(environments, func(left, right int) bool {
		leftRank, rightRank := rank(environments[left]), rank(environments[right])
		if leftRank != rightRank {
			return leftRank < rightRank
		}
		return environments[left].Name < environments[right].Name
	})
}

// AuditEnvironment reports conda information and the packages of the named
// environment; an empty name audits the active environment. Command failures
// become placeholder sections.
func (auditor *Auditor) AuditEnvironment(ctx context.Context, name string) Report {
	environmentName := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(name), activeSuffix))

	packagesTitle := sectionActivePackages
	packagesArguments := []string{"list"}
	environmentLabel := activeLabel
	if environmentName != "" {
		packagesTitle = fmt.Sprintf(sectionPackagesFormat, environmentName)
		packagesArguments = []string{"list", "-n", environmentName}
		environmentLabel = environmentName
	}

	commands := []struct {
		title     string
		arguments []string
	}{
		{title: sectionCondaInfo, arguments: []string{"info"}},
		{title: sectionCondaEnvironments, arguments: []string{"env", "list"}},
		{title: packagesTitle, arguments: packagesArguments},
	}
	sections := make([]Section, len(commands))

	probes, probeContext := errgroup.WithContext(ctx)
	for index, command := range commands {
		probes.Go(func() error {
			section := Section{Title: command.title}
			output, runError := auditor.runner.Run(probeContext, auditor.condaExecutable, command.arguments...)
			if runError != nil {
				section.Body = auditor.placeholder(command.title, runError)
			} else {
				section.Body = output
			}
			sections[index] = section
			return probeContext.Err()
		})
	}
	auditor.waitForProbes(probes)

	return Report{
		Title:     environmentReportName,
		Generated: auditor.now(),
		Lines: []Line{
			{Key: keyEnvironment, Value: environmentLabel},
			{Key: keyConda, Value: auditor.condaExecutable},
		},
		Sections: sections,
	}
}

func samePath(left string, right string) bool {
	return filepath.Clean(left) == filepath.Clean(right)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
