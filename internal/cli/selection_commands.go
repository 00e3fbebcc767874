package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/projmapper/internal/export"
	"github.com/temirov/projmapper/internal/selection"
	"github.com/temirov/projmapper/internal/session"
	"github.com/temirov/projmapper/internal/types"
)

const (
	selectUse              = "select"
	selectShortDescription = "show or change which files are included"
	selectLongDescription  = `Inspect and edit the persisted selection. Paths are relative to the project
root. Excluding a directory excludes everything below it; including it again
restores what was selected before.`
	selectShowUse     = "show"
	selectShowShort   = "print the current selection as a map"
	selectIncludeUse  = "include <path>..."
	selectIncludeDesc = "include paths"
	selectExcludeUse  = "exclude <path>..."
	selectExcludeDesc = "exclude paths"
	selectResetUse    = "reset"
	selectResetDesc   = "clear every saved exclusion and pattern"

	excludeUse              = "exclude"
	excludeShortDescription = "manage saved exclusion patterns"
	excludeLongDescription  = `Patterns are shell globs matched case-insensitively against entry names.
A trailing "/" restricts a pattern to directories. Matching entries are left out
of the tree entirely.`
	excludeListUse    = "list"
	excludeListDesc   = "list configured and saved patterns"
	excludeAddUse     = "add <pattern>..."
	excludeAddDesc    = "save exclusion patterns"
	excludeRemoveUse  = "remove <pattern>..."
	excludeRemoveDesc = "drop saved exclusion patterns"

	toggledFormat        = "%s %s\n"
	includedVerb         = "included"
	excludedVerb         = "excluded"
	resetMessage         = "selection reset"
	stalePathsFormat     = "not present: %s\n"
	patternChangedFormat = "%s %s\n"
	addedVerb            = "added"
	removedVerb          = "removed"
	unchangedMessage     = "no change"
	configuredPrefix     = "config"
	savedPrefix          = "saved"
	patternListFormat    = "%s\t%s\n"
	malformedPattern     = "malformed pattern %q"
)

func (app *application) createSelectCommand() *cobra.Command {
	selectCommand := &cobra.Command{
		Use:   selectUse,
		Short: selectShortDescription,
		Long:  selectLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}
	selectCommand.AddCommand(
		&cobra.Command{
			Use:   selectShowUse,
			Short: selectShowShort,
			Args:  cobra.NoArgs,
			RunE: func(command *cobra.Command, arguments []string) error {
				current, openError := app.openSession()
				if openError != nil {
					return openError
				}
				if mapError := export.WriteMap(command.OutOrStdout(), current.Tree, export.MapOptions{
					Format:        types.FormatRaw,
					ExcludedPaths: current.ExcludedPaths(),
					Now:           app.dependencies.Now,
				}); mapError != nil {
					return mapError
				}
				if stale := current.StalePaths(); len(stale) > 0 {
					fmt.Fprintf(command.OutOrStdout(), stalePathsFormat, strings.Join(stale, ", "))
				}
				return nil
			},
		},
		app.createToggleCommand(selectIncludeUse, selectIncludeDesc, true),
		app.createToggleCommand(selectExcludeUse, selectExcludeDesc, false),
		&cobra.Command{
			Use:   selectResetUse,
			Short: selectResetDesc,
			Args:  cobra.NoArgs,
			RunE: func(command *cobra.Command, arguments []string) error {
				current, openError := app.openSession()
				if openError != nil {
					return openError
				}
				if resetError := current.Reset(); resetError != nil {
					return resetError
				}
				if saveError := current.Save(); saveError != nil {
					return saveError
				}
				fmt.Fprintln(command.OutOrStdout(), resetMessage)
				return nil
			},
		},
	)
	return selectCommand
}

func (app *application) createToggleCommand(use string, short string, included bool) *cobra.Command {
	verb := excludedVerb
	if included {
		verb = includedVerb
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			current, openError := app.openSession()
			if openError != nil {
				return openError
			}
			for _, argument := range arguments {
				relativePath := app.relativeToRoot(current, argument)
				if toggleError := current.Toggle(relativePath, included); toggleError != nil {
					return toggleError
				}
				fmt.Fprintf(command.OutOrStdout(), toggledFormat, verb, relativePath)
			}
			return current.Save()
		},
	}
}

// relativeToRoot accepts root-relative paths as well as absolute ones under the root.
func (app *application) relativeToRoot(current *session.Session, argument string) string {
	if filepath.IsAbs(argument) {
		return current.Tree.RelativeFromAbsolute(argument)
	}
	return filepath.ToSlash(argument)
}

func (app *application) createExcludeCommand() *cobra.Command {
	excludeCommand := &cobra.Command{
		Use:   excludeUse,
		Short: excludeShortDescription,
		Long:  excludeLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}
	excludeCommand.AddCommand(
		&cobra.Command{
			Use:   excludeListUse,
			Short: excludeListDesc,
			Args:  cobra.NoArgs,
			RunE: func(command *cobra.Command, arguments []string) error {
				current, openError := app.openSession()
				if openError != nil {
					return openError
				}
				saved := current.Record.Patterns()
				savedSet := make(map[string]struct{}, len(saved))
				for _, pattern := range saved {
					savedSet[pattern] = struct{}{}
				}
				for _, pattern := range current.Patterns() {
					source := configuredPrefix
					if _, isSaved := savedSet[pattern]; isSaved {
						source = savedPrefix
					}
					fmt.Fprintf(command.OutOrStdout(), patternListFormat, source, pattern)
				}
				return nil
			},
		},
		app.createPatternCommand(excludeAddUse, excludeAddDesc, addedVerb, true, (*session.Session).AddPatterns),
		app.createPatternCommand(excludeRemoveUse, excludeRemoveDesc, removedVerb, false, (*session.Session).RemovePatterns),
	)
	return excludeCommand
}

func (app *application) createPatternCommand(use string, short string, verb string, validate bool, change func(*session.Session, ...string) ([]string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			if validate {
				for _, pattern := range arguments {
					if !selection.ValidPattern(pattern) {
						return fmt.Errorf(malformedPattern, pattern)
					}
				}
			}
			current, openError := app.openSession()
			if openError != nil {
				return openError
			}
			changed, changeError := change(current, arguments...)
			if changeError != nil {
				return changeError
			}
			if len(changed) == 0 {
				fmt.Fprintln(command.OutOrStdout(), unchangedMessage)
				return nil
			}
			if saveError := current.Save(); saveError != nil {
				return saveError
			}
			for _, pattern := range changed {
				fmt.Fprintf(command.OutOrStdout(), patternChangedFormat, verb, pattern)
			}
			return nil
		},
	}
}
