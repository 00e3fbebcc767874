package audit

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPythonExecutable = "python3"
	defaultCondaExecutable  = "conda"
	condaExecutableVariable = "CONDA_EXE"

	logFieldProbe      = "probe"
	logProbeFailure    = "audit probe failed"
	logAuditIncomplete = "audit interrupted"
)

// Options configures an Auditor. Zero values select host defaults.
type Options struct {
	Runner           CommandRunner
	PythonExecutable string
	CondaExecutable  string
	ProjectRoot      string
	Now              func() time.Time
	LookupEnv        func(key string) string
	Logger           *zap.Logger
}

// Auditor gathers system and conda environment reports.
type Auditor struct {
	runner           CommandRunner
	pythonExecutable string
	condaExecutable  string
	projectRoot      string
	now              func() time.Time
	lookupEnv        func(key string) string
	logger           *zap.Logger
}

// NewAuditor creates an Auditor from options.
func NewAuditor(options Options) *Auditor {
	auditor := &Auditor{
		runner:           options.Runner,
		pythonExecutable: strings.TrimSpace(options.PythonExecutable),
		condaExecutable:  strings.TrimSpace(options.CondaExecutable),
		projectRoot:      options.ProjectRoot,
		now:              options.Now,
		lookupEnv:        options.LookupEnv,
		logger:           options.Logger,
	}
	if auditor.runner == nil {
		auditor.runner = NewExecRunner(DefaultCommandTimeout)
	}
	if auditor.now == nil {
		auditor.now = time.Now
	}
	if auditor.lookupEnv == nil {
		auditor.lookupEnv = os.Getenv
	}
	if auditor.logger == nil {
		auditor.logger = zap.NewNop()
	}
	if auditor.pythonExecutable == "" {
		auditor.pythonExecutable = defaultPythonExecutable
	}
	if auditor.condaExecutable == "" {
		auditor.condaExecutable = auditor.detectConda()
	}
	return auditor
}

// CondaExecutable returns the conda command the auditor invokes.
func (auditor *Auditor) CondaExecutable() string {
	return auditor.condaExecutable
}

func (auditor *Auditor) detectConda() string {
	if fromEnvironment := strings.TrimSpace(auditor.lookupEnv(condaExecutableVariable)); fromEnvironment != "" {
		if info, statError := os.Stat(fromEnvironment); statError == nil && !info.IsDir() {
			return fromEnvironment
		}
	}
	return defaultCondaExecutable
}

func (auditor *Auditor) placeholder(probe string, cause error) string {
	auditor.logger.Warn(logProbeFailure, zap.String(logFieldProbe, probe), zap.Error(cause))
	return Placeholder(cause)
}

// waitForProbes waits for every probe. Probe failures are already placeholders,
// so only a cancelled context surfaces here; it stops the remaining commands and
// is logged while the partial report is still returned.
func (auditor *Auditor) waitForProbes(probes *errgroup.Group) {
	if waitError := probes.Wait(); waitError != nil {
		auditor.logger.Warn(logAuditIncomplete, zap.Error(waitError))
	}
}
