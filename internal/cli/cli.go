// Package cli provides the projmapper command line interface.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/projmapper/internal/audit"
	"github.com/temirov/projmapper/internal/clipboard"
	"github.com/temirov/projmapper/internal/config"
	"github.com/temirov/projmapper/internal/selection"
	"github.com/temirov/projmapper/internal/session"
	"github.com/temirov/projmapper/internal/utils"
)

const (
	rootUse              = "projmapper"
	rootShortDescription = "map, dump, back up and audit a project directory"
	rootLongDescription  = `projmapper scans a project directory and keeps a persistent selection of
the files that matter. It renders the selection as a tree map, concatenates the
selected sources into one text dump, archives them into a tar.gz backup, and
audits the host Python and conda environments.
Artifacts are written under <root>/_logs unless --output-dir or --output is given.`
	versionTemplate = "projmapper version: {{.Version}}\n"

	rootFlagName             = "root"
	configFlagName           = "config"
	outputDirectoryFlagName  = "output-dir"
	rootFlagDescription      = "project root (defaults to the configured root or the working directory)"
	configFlagDescription    = "configuration file (defaults to .projmapper.yaml in the working directory)"
	outputDirFlagDescription = "directory receiving generated artifacts (defaults to <root>/_logs)"

	outputFlagName        = "output"
	outputFlagDescription = "write the artifact to this path instead of a timestamped file"
	stdoutFlagName        = "stdout"
	stdoutFlagDescription = "print the artifact instead of writing a file"
	copyFlagName          = "copy"
	copyFlagDescription   = "also copy the rendered text to the clipboard"

	skipConfigurationAnnotation = "projmapper/skip-configuration"

	workingDirectoryErrorFormat = "unable to determine working directory: %w"
	resolvePathErrorFormat      = "resolve %s: %w"
	savedArtifactFormat         = "%s written to %s\n"
	logFieldPath                = "path"
	logArtifactWritten          = "artifact written"
	logClipboardFailed          = "clipboard copy failed"
	logSelectionSaveFailed      = "selection could not be saved"
)

// Dependencies are the collaborators of the command tree. Zero values select the
// host implementations.
type Dependencies struct {
	Logger *zap.Logger
	Stdout io.Writer
	Stderr io.Writer
	Copier clipboard.Copier
	Runner audit.CommandRunner
	Now    func() time.Time
}

// application is the state shared by every command of one invocation.
type application struct {
	dependencies     Dependencies
	configuration    config.ApplicationConfiguration
	workingDirectory string
	rootFlag         string
	configFlag       string
	outputDirFlag    string
}

// Execute runs the projmapper application with the host defaults.
func Execute(logger *zap.Logger) error {
	rootCommand := NewRootCommand(Dependencies{Logger: logger})
	rootCommand.SetArgs(attachSwitchFlagValues(rootCommand, os.Args[1:]))
	return rootCommand.Execute()
}

// NewRootCommand builds the command tree.
func NewRootCommand(dependencies Dependencies) *cobra.Command {
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.Stdout == nil {
		dependencies.Stdout = os.Stdout
	}
	if dependencies.Stderr == nil {
		dependencies.Stderr = os.Stderr
	}
	if dependencies.Copier == nil {
		dependencies.Copier = clipboard.NewService()
	}
	if dependencies.Now == nil {
		dependencies.Now = time.Now
	}
	app := &application{dependencies: dependencies}

	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		Version:       utils.GetApplicationVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return app.prepare(command)
		},
	}
	rootCommand.SetOut(dependencies.Stdout)
	rootCommand.SetErr(dependencies.Stderr)
	rootCommand.SetVersionTemplate(versionTemplate)
	rootCommand.PersistentFlags().StringVar(&app.rootFlag, rootFlagName, "", rootFlagDescription)
	rootCommand.PersistentFlags().StringVar(&app.configFlag, configFlagName, "", configFlagDescription)
	rootCommand.PersistentFlags().StringVar(&app.outputDirFlag, outputDirectoryFlagName, "", outputDirFlagDescription)
	rootCommand.AddCommand(
		app.createMapCommand(),
		app.createDumpCommand(),
		app.createBackupCommand(),
		app.createAuditCommand(),
		app.createSelectCommand(),
		app.createExcludeCommand(),
		app.createInitCommand(),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

func (app *application) prepare(command *cobra.Command) error {
	workingDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		return fmt.Errorf(workingDirectoryErrorFormat, workingDirectoryError)
	}
	app.workingDirectory = workingDirectory
	if _, skip := command.Annotations[skipConfigurationAnnotation]; skip {
		return nil
	}
	configuration, loadError := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: workingDirectory,
		ExplicitFilePath: app.configFlag,
	})
	if loadError != nil {
		return loadError
	}
	app.configuration = configuration
	return nil
}

func (app *application) logger() *zap.Logger {
	return app.dependencies.Logger
}

// projectRoot resolves --root, then the configured root, then the working directory.
func (app *application) projectRoot() (string, error) {
	root := strings.TrimSpace(app.rootFlag)
	if root == "" {
		root = strings.TrimSpace(app.configuration.Project.Root)
	}
	if root == "" {
		root = app.workingDirectory
	}
	absoluteRoot, absoluteError := filepath.Abs(expandHome(root))
	if absoluteError != nil {
		return "", fmt.Errorf(resolvePathErrorFormat, root, absoluteError)
	}
	return absoluteRoot, nil
}

// outputDirectory resolves --output-dir against the working directory, a
// configured directory against the project root, and falls back to <root>/_logs.
func (app *application) outputDirectory(projectRoot string) string {
	if flagValue := strings.TrimSpace(app.outputDirFlag); flagValue != "" {
		return absoluteFrom(app.workingDirectory, expandHome(flagValue))
	}
	if configured := strings.TrimSpace(app.configuration.Project.OutputDirectory); configured != "" {
		return absoluteFrom(projectRoot, expandHome(configured))
	}
	return filepath.Join(projectRoot, utils.OutputDirectoryName)
}

func (app *application) openSession() (*session.Session, error) {
	projectRoot, rootError := app.projectRoot()
	if rootError != nil {
		return nil, rootError
	}
	store, storeError := selection.NewStore(expandHome(app.configuration.Selection.Directory), app.logger())
	if storeError != nil {
		return nil, storeError
	}
	patterns, patternsError := config.LoadCombinedIgnorePatterns(
		projectRoot,
		app.configuration.ExcludePatterns(),
		config.BoolValue(app.configuration.Project.UseIgnoreFile, true),
		config.BoolValue(app.configuration.Project.IncludeGit, false),
	)
	if patternsError != nil {
		return nil, patternsError
	}
	return session.Open(projectRoot, store, patterns, app.logger(), app.artifactDirectories(projectRoot)...)
}

// artifactDirectories returns the output directory when it lies inside the
// project root, so earlier artifacts never reach later exports.
func (app *application) artifactDirectories(projectRoot string) []string {
	outputDirectory := app.outputDirectory(projectRoot)
	relativePath, relativeError := filepath.Rel(projectRoot, outputDirectory)
	if relativeError != nil || relativePath == "." || relativePath == ".." || strings.HasPrefix(relativePath, ".."+string(filepath.Separator)) {
		return nil
	}
	return []string{outputDirectory}
}

// saveSession persists the selection after an export; a failure is logged, not returned.
func (app *application) saveSession(current *session.Session) {
	if saveError := current.Save(); saveError != nil {
		app.logger().Warn(logSelectionSaveFailed, zap.Error(saveError))
	}
}

func (app *application) copyToClipboard(text string) {
	if copyError := app.dependencies.Copier.Copy(text); copyError != nil {
		app.logger().Warn(logClipboardFailed, zap.Error(copyError))
	}
}

func (app *application) reportArtifact(command *cobra.Command, label string, path string) {
	fmt.Fprintf(command.OutOrStdout(), savedArtifactFormat, label, path)
	app.logger().Debug(logArtifactWritten, zap.String(logFieldPath, path))
}

func absoluteFrom(base string, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDirectory, homeError := os.UserHomeDir()
	if homeError != nil {
		return path
	}
	return filepath.Join(homeDirectory, strings.TrimPrefix(path, "~"))
}
