package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/projmapper/internal/config"
)

const (
	initUse                = "init"
	initShortDescription   = "write a default configuration file"
	initLongDescription    = "Write the default configuration to .projmapper.yaml in the working directory, or to ~/.projmapper/config.yaml with --global."
	globalFlagName         = "global"
	globalFlagDescription  = "write the global configuration instead of the local one"
	forceFlagName          = "force"
	forceFlagDescription   = "overwrite an existing configuration file"
	configurationCreatedAt = "Configuration written to %s\n"
)

func (app *application) createInitCommand() *cobra.Command {
	var global bool
	var force bool
	initCommand := &cobra.Command{
		Use:         initUse,
		Short:       initShortDescription,
		Long:        initLongDescription,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigurationAnnotation: "true"},
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			path, initError := config.InitializeConfiguration(config.InitOptions{
				Target:           target,
				Force:            force,
				WorkingDirectory: app.workingDirectory,
			})
			if initError != nil {
				return initError
			}
			fmt.Fprintf(command.OutOrStdout(), configurationCreatedAt, path)
			return nil
		},
	}
	registerSwitchFlag(initCommand.Flags(), &global, globalFlagName, false, globalFlagDescription)
	registerSwitchFlag(initCommand.Flags(), &force, forceFlagName, false, forceFlagDescription)
	return initCommand
}
