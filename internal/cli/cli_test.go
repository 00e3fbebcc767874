package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/temirov/projmapper/internal/export"
	"github.com/temirov/projmapper/internal/utils"
)

var commandTime = time.Date(2024, time.May, 4, 10, 11, 12, 0, time.Local)

type recordingCopier struct {
	copied []string
}

func (copier *recordingCopier) Copy(text string) error {
	copier.copied = append(copier.copied, text)
	return nil
}

type scriptedRunner struct {
	outputs map[string]string
}

func (runner scriptedRunner) Run(_ context.Context, name string, arguments ...string) (string, error) {
	output, known := runner.outputs[strings.Join(append([]string{name}, arguments...), " ")]
	if !known {
		return "", errors.New("not installed")
	}
	return output, nil
}

type commandHarness struct {
	root       string
	configPath string
	copier     *recordingCopier
	runner     scriptedRunner
}

func newCommandHarness(t *testing.T, files map[string]string) *commandHarness {
	t.Helper()
	homeDirectory := t.TempDir()
	t.Setenv("HOME", homeDirectory)
	t.Setenv("USERPROFILE", homeDirectory)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(homeDirectory, ".config"))
	t.Setenv("CONDA_EXE", "")
	t.Setenv("CONDA_PREFIX", "")

	root := filepath.Join(t.TempDir(), "project")
	for relativePath, content := range files {
		fullPath := filepath.Join(root, filepath.FromSlash(relativePath))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir root: %v", err)
	}

	configDirectory := t.TempDir()
	configPath := filepath.Join(configDirectory, "projmapper.yaml")
	configContent := "selection:\n  directory: " + filepath.ToSlash(filepath.Join(configDirectory, "selections")) + "\n"
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &commandHarness{
		root:       root,
		configPath: configPath,
		copier:     &recordingCopier{},
		runner: scriptedRunner{outputs: map[string]string{
			"python3 --version":     "Python 3.12.1\n",
			"python3 -m pip freeze": "requests==2.31.0\n",
			"conda env list --json": `{"envs": ["/opt/conda", "/opt/conda/envs/ml"], "root_prefix": "/opt/conda"}`,
		}},
	}
}

// extendConfiguration appends YAML sections to the harness configuration file.
func (harness *commandHarness) extendConfiguration(t *testing.T, content string) {
	t.Helper()
	configFile, err := os.OpenFile(harness.configPath, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatalf("open config: %v", err)
	}
	defer configFile.Close()
	if _, err := configFile.WriteString(content); err != nil {
		t.Fatalf("append config: %v", err)
	}
}

func (harness *commandHarness) run(t *testing.T, arguments ...string) (string, error) {
	t.Helper()
	var output bytes.Buffer
	rootCommand := NewRootCommand(Dependencies{
		Stdout: &output,
		Stderr: io.Discard,
		Copier: harness.copier,
		Runner: harness.runner,
		Now:    func() time.Time { return commandTime },
	})
	fullArguments := append(append([]string{}, arguments...), "--root", harness.root, "--config", harness.configPath)
	rootCommand.SetArgs(attachSwitchFlagValues(rootCommand, fullArguments))
	executeError := rootCommand.Execute()
	return output.String(), executeError
}

func (harness *commandHarness) mustRun(t *testing.T, arguments ...string) string {
	t.Helper()
	output, err := harness.run(t, arguments...)
	if err != nil {
		t.Fatalf("%v failed: %v", arguments, err)
	}
	return output
}

func TestMapCommandPrintsSelection(t *testing.T) {
	harness := newCommandHarness(t, map[string]string{
		"a.txt":                "hi",
		"src/main.go":          "package main\n",
		"node_modules/x/y.js":  "dep",
		"src/__pycache__/c.py": "cache",
	})
	output := harness.mustRun(t, "map", "--stdout")
	for _, expected := range []string{"[X] project/ (Project Root)", "src/", "main.go", "a.txt"} {
		if !strings.Contains(output, expected) {
			t.Fatalf("expected %q in map:\n%s", expected, output)
		}
	}
	for _, unexpected := range []string{"── node_modules", "── __pycache__"} {
		if strings.Contains(output, unexpected) {
			t.Fatalf("default exclusion %q rendered:\n%s", unexpected, output)
		}
	}
	output = harness.mustRun(t, "dump", "--stdout")
	if strings.Contains(output, "node_modules") || strings.Contains(output, "__pycache__") {
		t.Fatalf("default exclusion dumped:\n%s", output)
	}
}

func TestExportsSkipArtifactsInCustomOutputDirectory(t *testing.T) {
	harness := newCommandHarness(t, map[string]string{"a.txt": "a"})
	exportDirectory := filepath.Join(harness.root, "exports")
	harness.mustRun(t, "map", "--output-dir", exportDirectory)
	harness.mustRun(t, "backup", "--output-dir", exportDirectory)

	output := harness.mustRun(t, "dump", "--stdout", "--output-dir", exportDirectory)
	if !strings.Contains(output, "FILE: a.txt") || strings.Contains(output, "FILE: exports/") {
		t.Fatalf("earlier artifacts leaked into the dump:\n%s", output)
	}
	archivePath := filepath.Join(t.TempDir(), "again.tar.gz")
	output = harness.mustRun(t, "backup", "--output", archivePath, "--output-dir", exportDirectory)
	if !strings.Contains(output, "1 files archived") {
		t.Fatalf("earlier artifacts leaked into the backup: %q", output)
	}
}

func TestExportsSkipArtifactsWhenExcludePatternsReplaced(t *testing.T) {
	harness := newCommandHarness(t, map[string]string{"a.txt": "a", "notes.tmp": "scratch"})
	harness.extendConfiguration(t, "project:\n  exclude:\n    - \"*.tmp\"\n")
	harness.mustRun(t, "map")

	output := harness.mustRun(t, "dump", "--stdout")
	if strings.Contains(output, "FILE: notes.tmp") {
		t.Fatalf("configured pattern not applied:\n%s", output)
	}
	if !strings.Contains(output, "FILE: a.txt") || strings.Contains(output, "FILE: "+utils.OutputDirectoryName+"/") {
		t.Fatalf("earlier map leaked into the dump:\n%s", output)
	}
}

func TestMapCommandWritesTimestampedFile(t *testing.T) {
	harness := newCommandHarness(t, map[string]string{"a.txt": "hi"})
	output := harness.mustRun(t, "m")
	expectedPath := filepath.Join(harness.root, utils.OutputDirectoryName, export.MapDirectoryName,
		utils.TimestampedFileName(export.MapFileName, commandTime))
	if !strings.Contains(output, expectedPath) {
		t.Fatalf("expected %s in output %q", expectedPath, output)
	}
	content, err := os.ReadFile(expectedPath)
	if err != nil {
		t.Fatalf("read map: %v", err)
	}
	if !strings.Contains(string(content), "a.txt") {
		t.Fatalf("unexpected map content:\n%s", content)
	}
}

func TestDumpCommandCopiesToClipboard(t *testing.T) {
	harness := newCommandHarness(t, map[string]string{"a.txt": "hi", "img.png": "png"})
	outputPath := filepath.Join(t.TempDir(), "dump.txt")
	harness.mustRun(t, "dump", "--copy", "--output", outputPath)

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}
	if !strings.Contains(string(content), "FILE: a.txt") || !strings.Contains(string(content), "[binary, skipped]") {
		t.Fatalf("unexpected dump:\n%s", content)
	}
	if len(harness.copier.copied) != 1 || harness.copier.copied[0] != string(content) {
		t.Fatalf("clipboard should receive the dump text, got %d copies", len(harness.copier.copied))
	}
}

func TestSelectCommandsPersistAcrossInvocations(t *testing.T) {
	harness := newCommandHarness(t, map[string]string{
		"keep.txt":     "keep",
		"docs/a.md":    "a",
		"docs/b.md":    "b",
		"docs/old.txt": "old",
	})
	harness.mustRun(t, "select", "exclude", "docs")
	output := harness.mustRun(t, "dump", "--stdout")
	if strings.Contains(output, "docs/") {
		t.Fatalf("excluded directory dumped:\n%s", output)
	}

	harness.mustRun(t, "select", "include", "docs/a.md")
	output = harness.mustRun(t, "select", "show")
	if !strings.Contains(output, "[/] docs/") || !strings.Contains(output, "── a.md") || strings.Contains(output, "── b.md") {
		t.Fatalf("expected partially included docs:\n%s", output)
	}

	harness.mustRun(t, "select", "reset")
	output = harness.mustRun(t, "dump", "--stdout")
	if !strings.Contains(output, "FILE: docs/b.md") {
		t.Fatalf("reset should include everything:\n%s", output)
	}
}

func TestSelectExcludeRejectsRootAndUnknownPaths(t *testing.T) {
	harness := newCommandHarness(t, map[string]string{"a.txt": "a"})
	if _, err := harness.run(t, "select", "exclude", "."); err == nil {
		t.Fatalf("excluding the root must fail")
	}
	if _, err := harness.run(t, "select", "exclude", "missing.txt"); err == nil {
		t.Fatalf("excluding an unknown path must fail")
	}
}

func TestExcludePatternCommands(t *testing.T) {
	harness := newCommandHarness(t, map[string]string{"app.go": "a", "debug.log": "l"})
	output := harness.mustRun(t, "exclude", "add", "*.log")
	if !strings.Contains(output, "added *.log") {
		t.Fatalf("unexpected add output %q", output)
	}
	output = harness.mustRun(t, "map", "--stdout")
	if strings.Contains(output, "debug.log") {
		t.Fatalf("pattern not applied:\n%s", output)
	}
	output = harness.mustRun(t, "exclude", "list")
	if !strings.Contains(output, "saved\t*.log") || !strings.Contains(output, "config\tnode_modules") {
		t.Fatalf("unexpected pattern list:\n%s", output)
	}
	if _, err := harness.run(t, "exclude", "add", "[bad"); err == nil {
		t.Fatalf("malformed pattern must be rejected")
	}
	output = harness.mustRun(t, "exclude", "remove", "*.log")
	if !strings.Contains(output, "removed *.log") {
		t.Fatalf("unexpected remove output %q", output)
	}
}

func TestBackupCommand(t *testing.T) {
	harness := newCommandHarness(t, map[string]string{"a.txt": "a", "src/b.go": "b"})
	archivePath := filepath.Join(t.TempDir(), "backup.tar.gz")
	output := harness.mustRun(t, "backup", "--output", archivePath)
	if !strings.Contains(output, "2 files archived") {
		t.Fatalf("unexpected backup output %q", output)
	}
	if info, err := os.Stat(archivePath); err != nil || info.Size() == 0 {
		t.Fatalf("archive missing: %v", err)
	}

	harness.mustRun(t, "select", "exclude", "a.txt", "src")
	_, err := harness.run(t, "backup", "--output", filepath.Join(t.TempDir(), "empty.tar.gz"))
	if !errors.Is(err, export.ErrEmptySelection) {
		t.Fatalf("expected empty selection error, got %v", err)
	}
}

func TestAuditCommands(t *testing.T) {
	harness := newCommandHarness(t, map[string]string{"a.txt": "a"})
	output := harness.mustRun(t, "audit", "system", "--stdout")
	for _, expected := range []string{"System Audit - ", "Python Version: Python 3.12.1", "requests: 2.31.0", "--- Go Modules ---"} {
		if !strings.Contains(output, expected) {
			t.Fatalf("expected %q in audit:\n%s", expected, output)
		}
	}
	output = harness.mustRun(t, "audit", "envs")
	if !strings.HasPrefix(output, "base\t/opt/conda\n") || !strings.Contains(output, "ml\t/opt/conda/envs/ml") {
		t.Fatalf("unexpected environment list:\n%s", output)
	}
	output = harness.mustRun(t, "audit", "env", "ml")
	expectedPath := filepath.Join(harness.root, utils.OutputDirectoryName, export.EnvAuditDirectoryName,
		utils.TimestampedFileName(export.EnvAuditFileName, commandTime))
	if !strings.Contains(output, expectedPath) {
		t.Fatalf("expected report path %s in %q", expectedPath, output)
	}
}

func TestInitCommandWritesLocalConfiguration(t *testing.T) {
	harness := newCommandHarness(t, nil)
	workingDirectory := t.TempDir()
	t.Chdir(workingDirectory)
	output := harness.mustRun(t, "init")
	expectedPath := filepath.Join(workingDirectory, utils.ConfigFileName)
	if !strings.Contains(output, expectedPath) {
		t.Fatalf("unexpected init output %q", output)
	}
	if _, err := harness.run(t, "init"); err == nil {
		t.Fatalf("second init without --force must fail")
	}
	harness.mustRun(t, "init", "--force")
}

func TestVersionFlag(t *testing.T) {
	harness := newCommandHarness(t, nil)
	output := harness.mustRun(t, "--version")
	if !strings.HasPrefix(output, "projmapper version: ") {
		t.Fatalf("unexpected version output %q", output)
	}
}
