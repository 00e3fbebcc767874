package audit

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	systemReportTitle = "System Audit"

	keyPlatform = "Platform"
	keyHostname = "Hostname"
	keyCPUs     = "CPUs"
	keyGo       = "Go Runtime"
	keyPython   = "Python Version"

	sectionPythonPackages = "pip freeze"
	sectionGoModules      = "Go Modules"

	pipFreezeSeparator = "=="
)

var errEmptyOutput = errors.New("command produced no output")

type platformInfo struct {
	System  string
	Release string
	Machine string
}

func (info platformInfo) String() string {
	description := strings.TrimSpace(info.System + " " + info.Release)
	if info.Machine == "" {
		return description
	}
	return description + " (" + info.Machine + ")"
}

// AuditSystem reports host details, the Python interpreter with its installed
// packages, and the Go module requirements of the project. Probes run
// concurrently; each failure becomes a placeholder value.
func (auditor *Auditor) AuditSystem(ctx context.Context) Report {
	var (
		platformValue  string
		hostnameValue  string
		pythonValue    string
		packageSection Section
		moduleSection  Section
	)

	probes, probeContext := errgroup.WithContext(ctx)
	probes.Go(func() error {
		info, platformError := readPlatform()
		platformValue = info.String()
		if platformError != nil {
			platformValue = auditor.placeholder(keyPlatform, platformError)
		}
		return nil
	})
	probes.Go(func() error {
		hostname, hostnameError := os.Hostname()
		hostnameValue = hostname
		if hostnameError != nil {
			hostnameValue = auditor.placeholder(keyHostname, hostnameError)
		}
		return nil
	})
	probes.Go(func() error {
		pythonValue = auditor.pythonVersion(probeContext)
		return probeContext.Err()
	})
	probes.Go(func() error {
		packageSection = auditor.pythonPackages(probeContext)
		return probeContext.Err()
	})
	probes.Go(func() error {
		moduleSection = auditor.goModules()
		return nil
	})
	auditor.waitForProbes(probes)

	return Report{
		Title:     systemReportTitle,
		Generated: auditor.now(),
		Lines: []Line{
			{Key: keyPlatform, Value: platformValue},
			{Key: keyHostname, Value: hostnameValue},
			{Key: keyCPUs, Value: strconv.Itoa(runtime.NumCPU())},
			{Key: keyGo, Value: runtime.Version()},
			{Key: keyPython, Value: pythonValue},
		},
		Sections: []Section{packageSection, moduleSection},
	}
}

func (auditor *Auditor) pythonVersion(ctx context.Context) string {
	output, runError := auditor.runner.Run(ctx, auditor.pythonExecutable, "--version")
	if runError != nil {
		return auditor.placeholder(keyPython, runError)
	}
	version := firstLine(strings.TrimSpace(output))
	if version == "" {
		return auditor.placeholder(keyPython, errEmptyOutput)
	}
	return version
}

func (auditor *Auditor) pythonPackages(ctx context.Context) Section {
	section := Section{Title: sectionPythonPackages}
	output, runError := auditor.runner.Run(ctx, auditor.pythonExecutable, "-m", "pip", "freeze")
	if runError != nil {
		section.Body = auditor.placeholder(sectionPythonPackages, runError)
		return section
	}
	section.Lines = ParsePipFreeze(output)
	return section
}

// ParsePipFreeze turns `pip freeze` output into name/version lines. Requirements
// that are not pinned with "==" (editable installs, direct URLs) keep the whole
// line as the key.
func ParsePipFreeze(output string) []Line {
	var lines []Line
	for _, rawLine := range strings.Split(output, "\n") {
		requirement := strings.TrimSpace(rawLine)
		if requirement == "" || strings.HasPrefix(requirement, "#") {
			continue
		}
		name, version, pinned := strings.Cut(requirement, pipFreezeSeparator)
		if !pinned {
			lines = append(lines, Line{Key: requirement})
			continue
		}
		lines = append(lines, Line{Key: strings.TrimSpace(name), Value: strings.TrimSpace(version)})
	}
	return lines
}
