package audit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

const (
	goModFileName   = "go.mod"
	keyModule       = "module"
	keyGoDirective  = "go"
	indirectComment = " // indirect"
)

var errNoProjectRoot = errors.New("no project root")

func (auditor *Auditor) goModules() Section {
	section := Section{Title: sectionGoModules}
	lines, readError := ReadGoModule(auditor.projectRoot)
	if readError != nil {
		section.Body = auditor.placeholder(sectionGoModules, readError)
		return section
	}
	section.Lines = lines
	return section
}

// ReadGoModule lists the module path, Go version and requirements declared by
// the go.mod file in projectRoot.
func ReadGoModule(projectRoot string) ([]Line, error) {
	if projectRoot == "" {
		return nil, errNoProjectRoot
	}
	goModPath := filepath.Join(projectRoot, goModFileName)
	// #nosec G304
	content, readError := os.ReadFile(goModPath)
	if readError != nil {
		return nil, readError
	}
	parsed, parseError := modfile.ParseLax(goModPath, content, nil)
	if parseError != nil {
		return nil, fmt.Errorf("parse %s: %w", goModPath, parseError)
	}

	var lines []Line
	if parsed.Module != nil {
		lines = append(lines, Line{Key: keyModule, Value: parsed.Module.Mod.Path})
	}
	if parsed.Go != nil {
		lines = append(lines, Line{Key: keyGoDirective, Value: parsed.Go.Version})
	}
	for _, requirement := range parsed.Require {
		version := requirement.Mod.Version
		if requirement.Indirect {
			version += indirectComment
		}
		lines = append(lines, Line{Key: requirement.Mod.Path, Value: version})
	}
	return lines, nil
}
