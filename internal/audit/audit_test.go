package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeResponse struct {
	output string
	err    error
}

type fakeRunner struct {
	mutex     sync.Mutex
	responses map[string]fakeResponse
	calls     []string
}

func (runner *fakeRunner) Run(_ context.Context, name string, arguments ...string) (string, error) {
	commandLine := strings.Join(append([]string{name}, arguments...), " ")
	runner.mutex.Lock()
	runner.calls = append(runner.calls, commandLine)
	runner.mutex.Unlock()
	response, known := runner.responses[commandLine]
	if !known {
		return "", &CommandError{Name: name, Arguments: arguments, Err: errors.New("executable file not found")}
	}
	return response.output, response.err
}

var auditTime = time.Date(2024, time.June, 1, 8, 0, 0, 0, time.Local)

func newTestAuditor(runner CommandRunner, projectRoot string, environment map[string]string) *Auditor {
	return NewAuditor(Options{
		Runner:           runner,
		PythonExecutable: "python3",
		CondaExecutable:  "conda",
		ProjectRoot:      projectRoot,
		Now:              func() time.Time { return auditTime },
		LookupEnv:        func(key string) string { return environment[key] },
	})
}

func findLine(lines []Line, key string) (Line, bool) {
	for _, line := range lines {
		if line.Key == key {
			return line, true
		}
	}
	return Line{}, false
}

func TestAuditSystemCollectsProbes(t *testing.T) {
	projectRoot := t.TempDir()
	goMod := "module example.com/demo\n\ngo 1.22\n\nrequire (\n\tgithub.com/spf13/cobra v1.8.0\n\tgolang.org/x/text v0.14.0 // indirect\n)\n"
	if err := os.WriteFile(filepath.Join(projectRoot, "go.mod"), []byte(goMod), 0o644); err != nil {
		t.Fatalf("write go.mod: %v", err)
	}
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"python3 --version":     {output: "Python 3.11.4\n"},
		"python3 -m pip freeze": {output: "requests==2.31.0\n-e git+https://example.com/repo#egg=local\nurllib3==2.0.4\n"},
	}}

	report := newTestAuditor(runner, projectRoot, nil).AuditSystem(context.Background())

	if report.Title != systemReportTitle || !report.Generated.Equal(auditTime) {
		t.Fatalf("unexpected report heading %q %v", report.Title, report.Generated)
	}
	expectedKeys := []string{keyPlatform, keyHostname, keyCPUs, keyGo, keyPython}
	var actualKeys []string
	for _, line := range report.Lines {
		actualKeys = append(actualKeys, line.Key)
	}
	if !reflect.DeepEqual(actualKeys, expectedKeys) {
		t.Fatalf("expected keys %v, got %v", expectedKeys, actualKeys)
	}
	if pythonLine, _ := findLine(report.Lines, keyPython); pythonLine.Value != "Python 3.11.4" {
		t.Fatalf("unexpected python version %q", pythonLine.Value)
	}
	if len(report.Sections) != 2 {
		t.Fatalf("expected two sections, got %d", len(report.Sections))
	}
	packages := report.Sections[0].Lines
	if len(packages) != 3 || packages[0] != (Line{Key: "requests", Value: "2.31.0"}) || packages[1].Value != "" {
		t.Fatalf("unexpected packages %+v", packages)
	}
	modules := report.Sections[1].Lines
	expectedModules := []Line{
		{Key: "module", Value: "example.com/demo"},
		{Key: "go", Value: "1.22"},
		{Key: "github.com/spf13/cobra", Value: "v1.8.0"},
		{Key: "golang.org/x/text", Value: "v0.14.0 // indirect"},
	}
	if !reflect.DeepEqual(modules, expectedModules) {
		t.Fatalf("unexpected modules %+v", modules)
	}
}

func TestAuditSystemUsesPlaceholders(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{}}
	report := newTestAuditor(runner, t.TempDir(), nil).AuditSystem(context.Background())

	pythonLine, found := findLine(report.Lines, keyPython)
	if !found || !strings.HasPrefix(pythonLine.Value, "unavailable (") {
		t.Fatalf("expected python placeholder, got %+v", pythonLine)
	}
	for _, section := range report.Sections {
		if !strings.HasPrefix(section.Body, "unavailable (") {
			t.Fatalf("expected placeholder body in section %q, got %q", section.Title, section.Body)
		}
	}
	rendered := report.String()
	if !strings.Contains(rendered, "System Audit - ") || !strings.Contains(rendered, "--- pip freeze ---") {
		t.Fatalf("unexpected rendering:\n%s", rendered)
	}
}

func TestParsePipFreeze(t *testing.T) {
	testCases := []struct {
		name     string
		output   string
		expected []Line
	}{
		{name: "empty", output: "", expected: nil},
		{name: "pinned", output: "a==1\nb == 2\n", expected: []Line{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}},
		{name: "direct_reference", output: "pkg @ file:///tmp/pkg\n", expected: []Line{{Key: "pkg @ file:///tmp/pkg"}}},
		{name: "comments_and_blanks", output: "# note\n\nc==3\n", expected: []Line{{Key: "c", Value: "3"}}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if actual := ParsePipFreeze(testCase.output); !reflect.DeepEqual(actual, testCase.expected) {
				t.Fatalf("expected %+v, got %+v", testCase.expected, actual)
			}
		})
	}
}

func TestReadGoModuleMissing(t *testing.T) {
	if _, err := ReadGoModule(t.TempDir()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if _, err := ReadGoModule(""); err == nil {
		t.Fatalf("expected error without project root")
	}
}

func TestListEnvironmentsOrdering(t *testing.T) {
	listing := `{"envs": ["/opt/conda", "/opt/conda/envs/zeta", "/opt/conda/envs/alpha", "/opt/conda/envs/work", "/opt/conda/envs/alpha"]}`
	testCases := []struct {
		name          string
		activePrefix  string
		expectedNames []string
	}{
		{name: "no_active", activePrefix: "", expectedNames: []string{"base", "alpha", "work", "zeta"}},
		{name: "active_other", activePrefix: "/opt/conda/envs/work", expectedNames: []string{"base", "work (active)", "alpha", "zeta"}},
		{name: "active_base", activePrefix: "/opt/conda", expectedNames: []string{"base (active)", "alpha", "work", "zeta"}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			runner := &fakeRunner{responses: map[string]fakeResponse{"conda env list --json": {output: listing}}}
			environment := map[string]string{
				"CONDA_PREFIX":      testCase.activePrefix,
				"CONDA_ROOT_PREFIX": "/opt/conda",
			}
			environments, err := newTestAuditor(runner, "", environment).ListEnvironments(context.Background())
			if err != nil {
				t.Fatalf("ListEnvironments: %v", err)
			}
			var names []string
			for _, entry := range environments {
				names = append(names, entry.DisplayName())
			}
			if !reflect.DeepEqual(names, testCase.expectedNames) {
				t.Fatalf("expected %v, got %v", testCase.expectedNames, names)
			}
		})
	}
}

func TestListEnvironmentsAddsMissingBase(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"conda env list --json": {output: `{"envs": ["/home/u/envs/ml"], "root_prefix": "/home/u/miniconda"}`},
	}}
	environments, err := newTestAuditor(runner, "", nil).ListEnvironments(context.Background())
	if err != nil {
		t.Fatalf("ListEnvironments: %v", err)
	}
	if len(environments) != 2 || environments[0].Name != "base" || environments[0].Path != "/home/u/miniconda" {
		t.Fatalf("unexpected environments %+v", environments)
	}
}

func TestListEnvironmentsFailures(t *testing.T) {
	missing := &fakeRunner{responses: map[string]fakeResponse{}}
	if _, err := newTestAuditor(missing, "", nil).ListEnvironments(context.Background()); err == nil {
		t.Fatalf("expected error when conda is missing")
	}
	garbled := &fakeRunner{responses: map[string]fakeResponse{"conda env list --json": {output: "not json"}}}
	if _, err := newTestAuditor(garbled, "", nil).ListEnvironments(context.Background()); err == nil {
		t.Fatalf("expected error for malformed listing")
	}
}

func TestAuditEnvironment(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"conda info":       {output: "active environment : ml\n"},
		"conda env list":   {output: "base  /opt/conda\nml    /opt/conda/envs/ml\n"},
		"conda list -n ml": {output: "numpy 1.26.0\n"},
	}}
	report := newTestAuditor(runner, "", nil).AuditEnvironment(context.Background(), "ml (active)")

	expectedTitles := []string{sectionCondaInfo, sectionCondaEnvironments, "Packages in 'ml'"}
	for index, section := range report.Sections {
		if section.Title != expectedTitles[index] {
			t.Fatalf("section %d: expected %q, got %q", index, expectedTitles[index], section.Title)
		}
	}
	if !strings.Contains(report.Sections[2].Body, "numpy") {
		t.Fatalf("expected package listing, got %q", report.Sections[2].Body)
	}
	if environmentLine, _ := findLine(report.Lines, keyEnvironment); environmentLine.Value != "ml" {
		t.Fatalf("unexpected environment line %+v", environmentLine)
	}
}

func TestAuditEnvironmentPlaceholders(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"conda info": {err: errors.New("exit status 1")},
	}}
	report := newTestAuditor(runner, "", nil).AuditEnvironment(context.Background(), "")
	if report.Sections[2].Title != sectionActivePackages {
		t.Fatalf("expected active packages section, got %q", report.Sections[2].Title)
	}
	for _, section := range report.Sections {
		if !strings.HasPrefix(section.Body, "unavailable (") {
			t.Fatalf("expected placeholder for %q, got %q", section.Title, section.Body)
		}
	}
}

// contextRunner fails every command with the error of the context it receives.
type contextRunner struct {
	mutex    sync.Mutex
	contexts []context.Context
}

func (runner *contextRunner) Run(ctx context.Context, _ string, _ ...string) (string, error) {
	runner.mutex.Lock()
	runner.contexts = append(runner.contexts, ctx)
	runner.mutex.Unlock()
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return "ok", nil
}

func TestAuditCancellationReachesCommands(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &contextRunner{}
	auditor := newTestAuditor(runner, t.TempDir(), nil)
	environmentReport := auditor.AuditEnvironment(ctx, "ml")
	for _, section := range environmentReport.Sections {
		if section.Body != "unavailable (context canceled)" {
			t.Fatalf("expected cancelled placeholder for %q, got %q", section.Title, section.Body)
		}
	}
	systemReport := auditor.AuditSystem(ctx)
	if pythonLine, _ := findLine(systemReport.Lines, keyPython); pythonLine.Value != "unavailable (context canceled)" {
		t.Fatalf("unexpected python line %+v", pythonLine)
	}
	if len(runner.contexts) != 5 {
		t.Fatalf("expected five commands, got %d", len(runner.contexts))
	}
	for _, received := range runner.contexts {
		if received == ctx || received.Err() == nil {
			t.Fatalf("commands should receive the cancelled probe context")
		}
	}
}

func TestExecRunnerReportsFailures(t *testing.T) {
	runner := NewExecRunner(time.Second)
	_, err := runner.Run(context.Background(), filepath.Join(t.TempDir(), "missing-binary"))
	var commandError *CommandError
	if !errors.As(err, &commandError) {
		t.Fatalf("expected CommandError, got %v", err)
	}
}
