package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/dotkeep/dotkeep/internal/bundle"
	"github.com/dotkeep/dotkeep/internal/deviceconfig"
	"github.com/dotkeep/dotkeep/internal/execshell"
	"github.com/dotkeep/dotkeep/internal/installer"
	"github.com/dotkeep/dotkeep/internal/reconcile"
	"github.com/dotkeep/dotkeep/internal/ui"
	"github.com/dotkeep/dotkeep/internal/utils"
	pathutils "github.com/dotkeep/dotkeep/internal/utils/path"
	"github.com/dotkeep/dotkeep/internal/workingcopy"
)

const (
	applicationNameConstant             = "dotkeep"
	applicationShortDescriptionConstant = "Track dotfiles and packages in a version-controlled repository"
	applicationLongDescriptionConstant  = "dotkeep keeps a device's configuration files and package list synchronized with a git remote, exporting tracked bundles and rebuilding the bundle list from the repository."

	configFileFlagNameConstant  = "config"
	configFileFlagUsageConstant = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant    = "log-level"
	logLevelFlagUsageConstant   = "Override the configured log level."
	logFormatFlagNameConstant   = "log-format"
	logFormatFlagUsageConstant  = "Override the configured log format (structured or console)."

	commonConfigurationKeyConstant   = "common"
	commonLogLevelConfigKeyConstant  = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant = commonConfigurationKeyConstant + ".log_format"
	syncConfigurationKeyConstant     = "sync"
	syncSettingsPathConfigKey        = syncConfigurationKeyConstant + ".settings_path"
	syncAURHelperConfigKeyConstant   = syncConfigurationKeyConstant + ".aur_helper"

	environmentPrefixConstant              = "DOTKEEP"
	configurationNameConstant              = "config"
	configurationTypeConstant              = "yaml"
	defaultConfigurationSearchPathConstant = "."
	defaultAURHelperConstant               = "paru"

	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	loggerNotInitializedMessageConstant     = "logger not initialized"
	homeDirectoryErrorTemplateConstant      = "unable to resolve home directory: %w"
	rootCommandInfoMessageConstant          = "dotkeep CLI executed"
	logFieldCommandNameConstant             = "command_name"
	logFieldArgumentCountConstant           = "argument_count"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Sync   ApplicationSyncConfiguration   `mapstructure:"sync"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ApplicationSyncConfiguration stores synchronization settings for the dotkeep commands.
type ApplicationSyncConfiguration struct {
	SettingsPath string `mapstructure:"settings_path"`
	AURHelper    string `mapstructure:"aur_helper"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         *utils.LoggerFactory
	homeExpander          *pathutils.HomeExpander
	logger                *zap.Logger
	configuration         ApplicationConfiguration
	configurationMetadata utils.LoadedConfiguration
	configurationFilePath string
	logLevelFlagValue     string
	logFormatFlagValue    string
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant},
	)
	embeddedConfiguration, embeddedConfigurationType := EmbeddedDefaultConfiguration()
	configurationLoader.SetEmbeddedConfiguration(embeddedConfiguration, embeddedConfigurationType)

	application := &Application{
		configurationLoader: configurationLoader,
		loggerFactory:       utils.NewLoggerFactory(),
		homeExpander:        pathutils.NewHomeExpander(),
		logger:              zap.NewNop(),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)

	reconcileBuilder := reconcile.CommandBuilder{
		LoggerProvider:  application.loggerInstance,
		ServiceProvider: application.buildReconcileService,
		SettingsAccess:  application,
	}
	if exportCommand, exportBuildError := reconcileBuilder.BuildExportCommand(); exportBuildError == nil {
		cobraCommand.AddCommand(exportCommand)
	}
	if refreshCommand, refreshBuildError := reconcileBuilder.BuildRefreshCommand(); refreshBuildError == nil {
		cobraCommand.AddCommand(refreshCommand)
	}
	if listCommand, listBuildError := reconcileBuilder.BuildListCommand(); listBuildError == nil {
		cobraCommand.AddCommand(listCommand)
	}

	installerBuilder := installer.CommandBuilder{
		LoggerProvider:     application.loggerInstance,
		InstallerProvider:  application.buildPackageInstaller,
		BundleListProvider: application.currentBundleList,
	}
	if installCommand, installBuildError := installerBuilder.Build(); installBuildError == nil {
		cobraCommand.AddCommand(installCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

// Load reads the device settings document from the configured location.
func (application *Application) Load() (deviceconfig.Settings, error) {
	settingsPath, settingsPathError := application.settingsPath()
	if settingsPathError != nil {
		return deviceconfig.Settings{}, settingsPathError
	}
	return deviceconfig.Load(settingsPath)
}

// Save writes the device settings document to the configured location.
func (application *Application) Save(settings deviceconfig.Settings) error {
	settingsPath, settingsPathError := application.settingsPath()
	if settingsPathError != nil {
		return settingsPathError
	}
	return deviceconfig.Save(settingsPath, settings)
}

// HomeDirectory resolves the current user's home directory.
func (application *Application) HomeDirectory() (string, error) {
	homeDirectory, homeError := os.UserHomeDir()
	if homeError != nil {
		return "", fmt.Errorf(homeDirectoryErrorTemplateConstant, homeError)
	}
	return homeDirectory, nil
}

func (application *Application) settingsPath() (string, error) {
	configuredPath := strings.TrimSpace(application.configuration.Sync.SettingsPath)
	if len(configuredPath) > 0 {
		return application.homeExpander.Expand(configuredPath), nil
	}
	homeDirectory, homeError := application.HomeDirectory()
	if homeError != nil {
		return "", homeError
	}
	return deviceconfig.DefaultSettingsPath(homeDirectory), nil
}

func (application *Application) loggerInstance() *zap.Logger {
	return application.logger
}

func (application *Application) buildShellExecutor(logger *zap.Logger) (*execshell.ShellExecutor, error) {
	shellExecutor, executorError := execshell.NewShellExecutor(logger, execshell.NewOSCommandRunner())
	if executorError != nil {
		return nil, executorError
	}
	if application.humanReadableLoggingEnabled() {
		shellExecutor.SetCommandEventObserver(ui.NewConsoleCommandEventLogger(logger))
	}
	return shellExecutor, nil
}

func (application *Application) buildReconcileService(logger *zap.Logger, homeDirectory string) (*reconcile.Service, error) {
	shellExecutor, executorError := application.buildShellExecutor(logger)
	if executorError != nil {
		return nil, executorError
	}

	manager, managerError := workingcopy.NewManager(workingcopy.Dependencies{
		GitExecutor:         shellExecutor,
		Logger:              logger,
		CredentialStorePath: workingcopy.DefaultCredentialStorePath(homeDirectory),
	})
	if managerError != nil {
		return nil, managerError
	}

	return reconcile.NewService(reconcile.Dependencies{
		WorkingCopyManager: manager,
		Exporter:           reconcile.NewExporter(logger),
		Scanner:            reconcile.NewScanner(homeDirectory, logger),
		Logger:             logger,
	})
}

func (application *Application) buildPackageInstaller(logger *zap.Logger) (installer.PackageInstaller, error) {
	shellExecutor, executorError := application.buildShellExecutor(logger)
	if executorError != nil {
		return nil, executorError
	}

	aurHelperName := strings.TrimSpace(application.configuration.Sync.AURHelper)
	if len(aurHelperName) == 0 {
		aurHelperName = defaultAURHelperConstant
	}

	return installer.NewPacmanInstaller(installer.Dependencies{
		Executor:      shellExecutor,
		Logger:        logger,
		AURHelperName: aurHelperName,
	})
}

func (application *Application) currentBundleList() ([]bundle.Bundle, error) {
	settings, settingsError := application.Load()
	if settingsError != nil {
		return nil, settingsError
	}
	return settings.Bundles, nil
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
		syncSettingsPathConfigKey:        "",
		syncAURHelperConfigKeyConstant:   defaultAURHelperConstant,
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}
	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	createdLogger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = createdLogger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	return nil
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Common.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Debug(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)

	return command.Help()
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}

	syncError := application.logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}
	if rootCommand := command.Root(); rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}
		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
