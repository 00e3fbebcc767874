package utils

const (
	// GlobalConfigDirectoryName is the directory under the user's home holding global configuration.
	GlobalConfigDirectoryName = ".projmapper"
	// GlobalConfigFileName is the configuration file name inside GlobalConfigDirectoryName.
	GlobalConfigFileName = "config.yaml"
	// ConfigFileName is the local configuration file looked up in the working directory.
	ConfigFileName = ".projmapper.yaml"
	// GitDirectoryName is the name of the Git repository directory.
	GitDirectoryName = ".git"
	// OutputDirectoryName is the directory inside a project that receives generated artifacts.
	OutputDirectoryName = "_logs"
)

// Log message formats shared by the CLI entry point.
const (
	LoggerInitializationFailedMessageFormat = "failed to initialize logger: %w"
	ApplicationExecutionFailedMessage       = "application execution failed"
)

// IgnoreFileName lists additional exclusion patterns inside a project root.
const IgnoreFileName = ".projmapperignore"
