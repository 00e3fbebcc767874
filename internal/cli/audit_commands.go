package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/temirov/projmapper/internal/audit"
	"github.com/temirov/projmapper/internal/export"
)

const (
	auditUse              = "audit"
	auditShortDescription = "audit the host environment"
	auditLongDescription  = `Report host details and Python or conda environments. Probes that fail are
reported as "unavailable" instead of failing the audit.`

	auditSystemUse              = "system"
	auditSystemShortDescription = "report OS, Python packages and Go modules"
	auditEnvsUse                = "envs"
	auditEnvsShortDescription   = "list conda environments"
	auditEnvUse                 = "env [name]"
	auditEnvShortDescription    = "report conda info and the packages of an environment (default: active)"

	systemAuditLabel      = "System audit"
	environmentAuditLabel = "Conda audit"
	environmentLineFormat = "%s\t%s\n"
)

func (app *application) newAuditor(projectRoot string) *audit.Auditor {
	runner := app.dependencies.Runner
	if runner == nil {
		runner = audit.NewExecRunner(app.configuration.AuditTimeout())
	}
	return audit.NewAuditor(audit.Options{
		Runner:           runner,
		PythonExecutable: app.configuration.PythonExecutable(),
		CondaExecutable:  app.configuration.Audit.Conda,
		ProjectRoot:      projectRoot,
		Now:              app.dependencies.Now,
		Logger:           app.logger(),
	})
}

func (app *application) createAuditCommand() *cobra.Command {
	auditCommand := &cobra.Command{
		Use:   auditUse,
		Short: auditShortDescription,
		Long:  auditLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}
	auditCommand.AddCommand(
		app.createAuditSystemCommand(),
		app.createAuditEnvironmentsCommand(),
		app.createAuditEnvironmentCommand(),
	)
	return auditCommand
}

func (app *application) createAuditSystemCommand() *cobra.Command {
	var options artifactOptions
	command := &cobra.Command{
		Use:   auditSystemUse,
		Short: auditSystemShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			projectRoot, rootError := app.projectRoot()
			if rootError != nil {
				return rootError
			}
			report := app.newAuditor(projectRoot).AuditSystem(command.Context())
			destination := app.destination(options, projectRoot, export.SystemAuditDirectoryName, export.SystemAuditFileName)
			return app.emit(command, options, destination, systemAuditLabel, report.Render)
		},
	}
	app.addArtifactFlags(command, &options, true)
	return command
}

func (app *application) createAuditEnvironmentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   auditEnvsUse,
		Short: auditEnvsShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			projectRoot, rootError := app.projectRoot()
			if rootError != nil {
				return rootError
			}
			environments, listError := app.newAuditor(projectRoot).ListEnvironments(command.Context())
			if listError != nil {
				return listError
			}
			return writeEnvironments(command.OutOrStdout(), environments)
		},
	}
}

func writeEnvironments(writer io.Writer, environments []audit.Environment) error {
	for _, environment := range environments {
		if _, writeError := fmt.Fprintf(writer, environmentLineFormat, environment.DisplayName(), environment.Path); writeError != nil {
			return writeError
		}
	}
	return nil
}

func (app *application) createAuditEnvironmentCommand() *cobra.Command {
	var options artifactOptions
	command := &cobra.Command{
		Use:   auditEnvUse,
		Short: auditEnvShortDescription,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			projectRoot, rootError := app.projectRoot()
			if rootError != nil {
				return rootError
			}
			environmentName := ""
			if len(arguments) == 1 {
				environmentName = arguments[0]
			}
			report := app.newAuditor(projectRoot).AuditEnvironment(command.Context(), environmentName)
			destination := app.destination(options, projectRoot, export.EnvAuditDirectoryName, export.EnvAuditFileName)
			return app.emit(command, options, destination, environmentAuditLabel, report.Render)
		},
	}
	app.addArtifactFlags(command, &options, true)
	return command
}
