package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/projmapper/internal/config"
	"github.com/temirov/projmapper/internal/export"
	"github.com/temirov/projmapper/internal/session"
	"github.com/temirov/projmapper/internal/tokenizer"
	"github.com/temirov/projmapper/internal/types"
)

const (
	mapUse              = "map"
	mapAlias            = "m"
	mapShortDescription = "write the project tree map (" + mapAlias + ")"
	mapLongDescription  = `Render the selected part of the project tree. Included directories are marked
[X], partially included ones [/]; excluded entries are omitted.
Use --format json for a machine-readable map.`
	mapUsageExample = `  # Write a timestamped map under <root>/_logs/_projectTREE_maps
  projmapper map

  # Print a JSON map and copy it to the clipboard
  projmapper map --format json --stdout --copy`

	dumpUse              = "dump"
	dumpAlias            = "d"
	dumpShortDescription = "concatenate selected source files (" + dumpAlias + ")"
	dumpLongDescription  = `Write every included file into one text dump, each preceded by a header
naming its path. Binary, unreadable and oversized files are replaced by a
bracketed placeholder. Use --tokens to annotate token counts.`
	dumpUsageExample = `  # Dump the selection with token counts
  projmapper dump --tokens

  # Dump a different project to an explicit file
  projmapper dump --root ../service --output service.txt`

	backupUse              = "backup"
	backupAlias            = "b"
	backupShortDescription = "archive selected files into a tar.gz (" + backupAlias + ")"
	backupLongDescription  = `Archive every included file under its path relative to the project root.
An empty selection is an error and produces no archive.`

	formatFlagName            = "format"
	formatFlagDescription     = "map format: raw or json"
	markBinaryFlagName        = "mark-binary"
	markBinaryFlagDescription = "annotate binary files in the map"
	tokensFlagName            = "tokens"
	tokensFlagDescription     = "include token counts (tiktoken may download encodings on first use)"
	modelFlagName             = "model"
	modelFlagDescription      = "tokenizer model used for token counts"
	maxFileSizeFlagName       = "max-file-size"
	maxFileSizeDescription    = "largest file size in bytes dumped verbatim"

	invalidFormatMessage = "invalid format value '%s'"
	mapLabel             = "Map"
	dumpLabel            = "Dump"
	backupLabel          = "Backup"
	dumpSummaryFormat    = "%d files: %d text, %d binary, %d unreadable, %d oversized\n"
	backupSummaryFormat  = "%d files archived, %d skipped\n"
)

type artifactOptions struct {
	outputPath string
	toStdout   bool
	copy       bool
}

func (app *application) addArtifactFlags(command *cobra.Command, options *artifactOptions, withClipboard bool) {
	command.Flags().StringVarP(&options.outputPath, outputFlagName, "o", "", outputFlagDescription)
	if withClipboard {
		registerSwitchFlag(command.Flags(), &options.toStdout, stdoutFlagName, false, stdoutFlagDescription)
		registerSwitchFlag(command.Flags(), &options.copy, copyFlagName, false, copyFlagDescription)
	}
}

// destination picks the explicit --output path or a timestamped default.
func (app *application) destination(options artifactOptions, projectRoot string, kindDirectory string, fileName string) export.Destination {
	if strings.TrimSpace(options.outputPath) != "" {
		return export.ExplicitDestination(absoluteFrom(app.workingDirectory, expandHome(options.outputPath)))
	}
	return export.DefaultDestination(app.outputDirectory(projectRoot), kindDirectory, fileName, app.dependencies.Now())
}

// emit renders an artifact to stdout or its destination, teeing into the
// clipboard when requested.
func (app *application) emit(command *cobra.Command, options artifactOptions, destination export.Destination, label string, render func(io.Writer) error) error {
	var clipboardBuffer bytes.Buffer
	tee := func(writer io.Writer) io.Writer {
		if options.copy {
			return io.MultiWriter(writer, &clipboardBuffer)
		}
		return writer
	}

	if options.toStdout {
		if renderError := render(tee(command.OutOrStdout())); renderError != nil {
			return renderError
		}
	} else {
		if writeError := destination.Write(func(fileHandle *os.File) error {
			return render(tee(fileHandle))
		}); writeError != nil {
			return writeError
		}
		app.reportArtifact(command, label, destination.Path)
	}
	if options.copy {
		app.copyToClipboard(clipboardBuffer.String())
	}
	return nil
}

func (app *application) createMapCommand() *cobra.Command {
	var options artifactOptions
	var format string
	var markBinary bool

	mapCommand := &cobra.Command{
		Use:     mapUse,
		Aliases: []string{mapAlias},
		Short:   mapShortDescription,
		Long:    mapLongDescription,
		Example: mapUsageExample,
		Args:    cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			if !command.Flags().Changed(formatFlagName) && app.configuration.Map.Format != "" {
				format = app.configuration.Map.Format
			}
			format = strings.ToLower(strings.TrimSpace(format))
			if format != types.FormatRaw && format != types.FormatJSON {
				return fmt.Errorf(invalidFormatMessage, format)
			}
			if !switchFlagChanged(command, markBinaryFlagName) {
				markBinary = config.BoolValue(app.configuration.Map.MarkBinary, markBinary)
			}
			if !switchFlagChanged(command, copyFlagName) {
				options.copy = config.BoolValue(app.configuration.Map.Clipboard, options.copy)
			}

			current, openError := app.openSession()
			if openError != nil {
				return openError
			}
			defer app.saveSession(current)

			fileName := export.MapFileName
			if format == types.FormatJSON {
				fileName = export.MapJSONFileName
			}
			mapOptions := export.MapOptions{
				Format:        format,
				ExcludedPaths: current.ExcludedPaths(),
				MarkBinary:    markBinary,
				Now:           app.dependencies.Now,
			}
			return app.emit(command, options, app.destination(options, current.Root, export.MapDirectoryName, fileName), mapLabel,
				func(writer io.Writer) error {
					return export.WriteMap(writer, current.Tree, mapOptions)
				})
		},
	}
	mapCommand.Flags().StringVar(&format, formatFlagName, types.FormatRaw, formatFlagDescription)
	registerSwitchFlag(mapCommand.Flags(), &markBinary, markBinaryFlagName, true, markBinaryFlagDescription)
	app.addArtifactFlags(mapCommand, &options, true)
	return mapCommand
}

func (app *application) createDumpCommand() *cobra.Command {
	var options artifactOptions
	var tokensEnabled bool
	var model string
	var maxFileSize int64

	dumpCommand := &cobra.Command{
		Use:     dumpUse,
		Aliases: []string{dumpAlias},
		Short:   dumpShortDescription,
		Long:    dumpLongDescription,
		Example: dumpUsageExample,
		Args:    cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			if !switchFlagChanged(command, tokensFlagName) {
				tokensEnabled = config.BoolValue(app.configuration.Dump.Tokens.Enabled, false)
			}
			if !command.Flags().Changed(modelFlagName) {
				model = app.configuration.TokenModel()
			}
			if !command.Flags().Changed(maxFileSizeFlagName) {
				maxFileSize = app.configuration.MaxFileSize()
			}
			if !switchFlagChanged(command, copyFlagName) {
				options.copy = config.BoolValue(app.configuration.Dump.Clipboard, options.copy)
			}

			var counter tokenizer.Counter
			if tokensEnabled {
				createdCounter, _, counterError := tokenizer.NewCounter(model)
				if counterError != nil {
					return counterError
				}
				counter = createdCounter
			}

			current, openError := app.openSession()
			if openError != nil {
				return openError
			}
			defer app.saveSession(current)

			dumpOptions := export.DumpOptions{
				MaxFileSize:  maxFileSize,
				TokenCounter: counter,
				Now:          app.dependencies.Now,
				Logger:       app.logger(),
			}
			var result export.DumpResult
			emitError := app.emit(command, options, app.destination(options, current.Root, export.DumpDirectoryName, export.DumpFileName), dumpLabel,
				func(writer io.Writer) error {
					rendered, dumpError := export.WriteDump(writer, current.Tree, dumpOptions)
					result = rendered
					return dumpError
				})
			if emitError != nil {
				return emitError
			}
			if !options.toStdout {
				fmt.Fprintf(command.OutOrStdout(), dumpSummaryFormat, result.Files, result.Text, result.Binary, result.Unreadable, result.Oversized)
			}
			return nil
		},
	}
	registerSwitchFlag(dumpCommand.Flags(), &tokensEnabled, tokensFlagName, false, tokensFlagDescription)
	dumpCommand.Flags().StringVar(&model, modelFlagName, tokenizer.DefaultModel, modelFlagDescription)
	dumpCommand.Flags().Int64Var(&maxFileSize, maxFileSizeFlagName, export.DefaultMaxFileSize, maxFileSizeDescription)
	app.addArtifactFlags(dumpCommand, &options, true)
	return dumpCommand
}

func (app *application) createBackupCommand() *cobra.Command {
	var options artifactOptions

	backupCommand := &cobra.Command{
		Use:     backupUse,
		Aliases: []string{backupAlias},
		Short:   backupShortDescription,
		Long:    backupLongDescription,
		Args:    cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			current, openError := app.openSession()
			if openError != nil {
				return openError
			}
			defer app.saveSession(current)

			destination := app.destination(options, current.Root, export.BackupDirectoryName, backupFileName(current))
			result, archiveError := export.BuildArchive(destination, current.Tree, app.logger())
			if archiveError != nil {
				return archiveError
			}
			app.reportArtifact(command, backupLabel, destination.Path)
			fmt.Fprintf(command.OutOrStdout(), backupSummaryFormat, result.Files, len(result.Skipped))
			return nil
		},
	}
	app.addArtifactFlags(backupCommand, &options, false)
	return backupCommand
}

func backupFileName(current *session.Session) string {
	return filepath.Base(current.Root) + export.BackupFileSuffix
}
