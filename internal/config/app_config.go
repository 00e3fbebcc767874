package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	"github.com/temirov/projmapper/internal/selection"
	"github.com/temirov/projmapper/internal/types"
	"github.com/temirov/projmapper/internal/utils"
)

const (
	// DefaultMaxFileSize caps the size of a dumped file.
	DefaultMaxFileSize int64 = 1 << 20
	// DefaultTokenModel selects the tokenizer encoding for token counts.
	DefaultTokenModel = "gpt-4o"
	// DefaultAuditTimeout bounds each host command run by an audit.
	DefaultAuditTimeout = 30 * time.Second
	// DefaultPythonExecutable is the interpreter probed by the system audit.
	DefaultPythonExecutable = "python3"
)

// DefaultExcludePatterns are the names omitted from every scan unless configured otherwise.
var DefaultExcludePatterns = []string{
	"node_modules",
	utils.GitDirectoryName + "/",
	"__pycache__",
	".venv",
	".mypy_cache",
	utils.OutputDirectoryName,
	"package-lock.json",
	"yarn.lock",
	".DS_Store",
	"Thumbs.db",
	"*.pyc",
	"*.pyo",
	"*.swp",
	"*.swo",
}

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds the merged configuration of all commands.
type ApplicationConfiguration struct {
	Project   ProjectConfiguration   `mapstructure:"project"`
	Map       MapConfiguration       `mapstructure:"map"`
	Dump      DumpConfiguration      `mapstructure:"dump"`
	Audit     AuditConfiguration     `mapstructure:"audit"`
	Selection SelectionConfiguration `mapstructure:"selection"`
}

// ProjectConfiguration locates the project and its scan rules.
type ProjectConfiguration struct {
	Root            string   `mapstructure:"root"`
	OutputDirectory string   `mapstructure:"output_directory"`
	Exclude         []string `mapstructure:"exclude"`
	UseIgnoreFile   *bool    `mapstructure:"use_ignore"`
	IncludeGit      *bool    `mapstructure:"include_git"`
}

// MapConfiguration defines defaults for the map command.
type MapConfiguration struct {
	Format     string `mapstructure:"format"`
	MarkBinary *bool  `mapstructure:"mark_binary"`
	Clipboard  *bool  `mapstructure:"clipboard"`
}

// DumpConfiguration defines defaults for the dump command.
type DumpConfiguration struct {
	MaxFileSize *int64             `mapstructure:"max_file_size"`
	Tokens      TokenConfiguration `mapstructure:"tokens"`
	Clipboard   *bool              `mapstructure:"clipboard"`
}

// TokenConfiguration controls token counting defaults.
type TokenConfiguration struct {
	Enabled *bool  `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
}

// AuditConfiguration names the host tools probed by audits.
type AuditConfiguration struct {
	Python  string        `mapstructure:"python"`
	Conda   string        `mapstructure:"conda"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SelectionConfiguration locates persisted selection records.
type SelectionConfiguration struct {
	Directory string `mapstructure:"directory"`
}

// LoadApplicationConfiguration loads configuration from the global file and then
// the local or explicit file, each overriding what came before.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.GlobalConfigFileName)
		globalConfig, loadErr := loadConfigurationFromPath(globalPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if options.ExplicitFilePath != "" {
		if _, statErr := os.Stat(localPath); statErr != nil {
			return ApplicationConfiguration{}, fmt.Errorf("configuration file %s: %w", localPath, statErr)
		}
	}
	localConfig, loadErr := loadConfigurationFromPath(localPath)
	if loadErr != nil {
		return ApplicationConfiguration{}, loadErr
	}
	merged = merged.Merge(localConfig)

	if merged.Project.Exclude != nil {
		merged.Project.Exclude = utils.DeduplicatePatterns(merged.Project.Exclude)
	}
	if validationErr := merged.Validate(); validationErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("invalid configuration: %w", validationErr)
	}
	return merged, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) string {
	if explicitPath == "" {
		return filepath.Join(workingDirectory, utils.ConfigFileName)
	}
	if filepath.IsAbs(explicitPath) {
		return explicitPath
	}
	return filepath.Join(workingDirectory, explicitPath)
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	reader.SetConfigType("yaml")
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return config, nil
}

// Validate reports malformed values.
func (config ApplicationConfiguration) Validate() error {
	return validation.ValidateStruct(&config,
		validation.Field(&config.Project),
		validation.Field(&config.Map),
		validation.Field(&config.Dump),
		validation.Field(&config.Audit),
	)
}

// Validate reports malformed exclusion patterns.
func (config ProjectConfiguration) Validate() error {
	return validation.ValidateStruct(&config,
		validation.Field(&config.Exclude, validation.Each(validation.By(validPattern))),
	)
}

// Validate reports an unsupported map format.
func (config MapConfiguration) Validate() error {
	return validation.ValidateStruct(&config,
		validation.Field(&config.Format, validation.In(types.FormatRaw, types.FormatJSON)),
	)
}

// Validate reports a negative size cap.
func (config DumpConfiguration) Validate() error {
	return validation.ValidateStruct(&config,
		validation.Field(&config.MaxFileSize, validation.Min(int64(0))),
	)
}

// Validate reports a negative timeout.
func (config AuditConfiguration) Validate() error {
	return validation.ValidateStruct(&config,
		validation.Field(&config.Timeout, validation.Min(time.Duration(0))),
	)
}

func validPattern(value interface{}) error {
	pattern, _ := value.(string)
	if !selection.ValidPattern(pattern) {
		return fmt.Errorf("malformed pattern %q", pattern)
	}
	return nil
}

// ExcludePatterns returns the configured patterns, or the defaults when none are set.
func (config ApplicationConfiguration) ExcludePatterns() []string {
	if config.Project.Exclude == nil {
		return append([]string{}, DefaultExcludePatterns...)
	}
	return append([]string{}, config.Project.Exclude...)
}

// MaxFileSize returns the dump size cap.
func (config ApplicationConfiguration) MaxFileSize() int64 {
	if config.Dump.MaxFileSize == nil || *config.Dump.MaxFileSize == 0 {
		return DefaultMaxFileSize
	}
	return *config.Dump.MaxFileSize
}

// TokenModel returns the tokenizer model.
func (config ApplicationConfiguration) TokenModel() string {
	if config.Dump.Tokens.Model == "" {
		return DefaultTokenModel
	}
	return config.Dump.Tokens.Model
}

// AuditTimeout returns the per-command audit timeout.
func (config ApplicationConfiguration) AuditTimeout() time.Duration {
	if config.Audit.Timeout <= 0 {
		return DefaultAuditTimeout
	}
	return config.Audit.Timeout
}

// PythonExecutable returns the interpreter probed by the system audit.
func (config ApplicationConfiguration) PythonExecutable() string {
	if config.Audit.Python == "" {
		return DefaultPythonExecutable
	}
	return config.Audit.Python
}

// BoolValue dereferences value, returning fallback when it is unset.
func BoolValue(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

// Merge overlays override onto the receiver returning the combined configuration.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	result.Project = result.Project.merge(override.Project)
	result.Map = result.Map.merge(override.Map)
	result.Dump = result.Dump.merge(override.Dump)
	result.Audit = result.Audit.merge(override.Audit)
	if override.Selection.Directory != "" {
		result.Selection.Directory = override.Selection.Directory
	}
	return result
}

func (config ProjectConfiguration) merge(override ProjectConfiguration) ProjectConfiguration {
	result := config
	if override.Root != "" {
		result.Root = override.Root
	}
	if override.OutputDirectory != "" {
		result.OutputDirectory = override.OutputDirectory
	}
	if override.Exclude != nil {
		result.Exclude = append([]string{}, utils.DeduplicatePatterns(override.Exclude)...)
	}
	if override.UseIgnoreFile != nil {
		result.UseIgnoreFile = cloneBool(override.UseIgnoreFile)
	}
	if override.IncludeGit != nil {
		result.IncludeGit = cloneBool(override.IncludeGit)
	}
	return result
}

func (config MapConfiguration) merge(override MapConfiguration) MapConfiguration {
	result := config
	if override.Format != "" {
		result.Format = override.Format
	}
	if override.MarkBinary != nil {
		result.MarkBinary = cloneBool(override.MarkBinary)
	}
	if override.Clipboard != nil {
		result.Clipboard = cloneBool(override.Clipboard)
	}
	return result
}

func (config DumpConfiguration) merge(override DumpConfiguration) DumpConfiguration {
	result := config
	if override.MaxFileSize != nil {
		value := *override.MaxFileSize
		result.MaxFileSize = &value
	}
	result.Tokens = result.Tokens.merge(override.Tokens)
	if override.Clipboard != nil {
		result.Clipboard = cloneBool(override.Clipboard)
	}
	return result
}

func (config TokenConfiguration) merge(override TokenConfiguration) TokenConfiguration {
	result := config
	if override.Enabled != nil {
		result.Enabled = cloneBool(override.Enabled)
	}
	if override.Model != "" {
		result.Model = override.Model
	}
	return result
}

func (config AuditConfiguration) merge(override AuditConfiguration) AuditConfiguration {
	result := config
	if override.Python != "" {
		result.Python = override.Python
	}
	if override.Conda != "" {
		result.Conda = override.Conda
	}
	if override.Timeout != 0 {
		result.Timeout = override.Timeout
	}
	return result
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
