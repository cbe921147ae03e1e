package reconcile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dotkeep/dotkeep/internal/deviceconfig"
	"github.com/dotkeep/dotkeep/internal/workingcopy"
)

const (
	exportCommandUseConstant              = "export"
	exportCommandShortDescriptionConstant = "Export tracked bundles to the repository and push"
	exportCommandLongDescriptionConstant  = "export copies every tracked bundle's files and descriptor into the working copy, commits, and pushes."
	refreshCommandUseConstant             = "refresh"
	refreshCommandShortDescription        = "Replace the local bundle list with the repository contents"
	refreshCommandLongDescription         = "refresh clones or opens the repository, scans it for bundles, and replaces the device's bundle list."
	listCommandUseConstant                = "bundles"
	listCommandShortDescriptionConstant   = "List tracked bundles"
	listCommandLongDescriptionConstant    = "bundles prints the name, source, and mapping count of every tracked bundle."

	messageFlagNameConstant        = "message"
	messageFlagDescriptionConstant = "Commit message for the export push"
	defaultCommitMessageConstant   = "dotkeep sync"
	noPersistFlagNameConstant      = "no-persist"
	noPersistFlagDescription       = "Do not store credentials after a successful credentialed push"

	unexpectedArgumentsMessageConstant    = "command does not accept positional arguments"
	loggerProviderMissingMessageConstant  = "logger provider not configured"
	serviceProviderMissingMessageConstant = "service provider not configured"
	settingsAccessMissingMessageConstant  = "settings access not configured"
	remoteNotConfiguredUserMessage        = "no remote repository configured, set remoteUrl in the settings file"

	usernamePromptConstant = "Username: "
	tokenPromptConstant    = "Token: "

	exportSummaryTemplateConstant    = "Exported %d file(s) across %d bundle(s).\n"
	persistWarningTemplateConstant   = "Push succeeded but storing credentials failed: %v\n"
	refreshSummaryTemplateConstant   = "Tracking %d bundle(s) from the repository.\n"
	bundleListLineTemplateConstant   = "%s\t%s\t%d file(s)\n"
	bundleListEmptyMessageConstant   = "No bundles tracked. Run refresh to import them from the repository."
	logFieldPersistWarningConstant   = "persistence_warning"
	credentialPersistWarnLogConstant = "push succeeded but credential persistence failed"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ServiceProvider builds the reconciliation service for a command run.
type ServiceProvider func(logger *zap.Logger, homeDirectory string) (*Service, error)

// SettingsAccess abstracts loading and saving the device settings document.
type SettingsAccess interface {
	Load() (deviceconfig.Settings, error)
	Save(settings deviceconfig.Settings) error
	HomeDirectory() (string, error)
}

// CommandBuilder assembles the export, refresh, and bundles commands.
type CommandBuilder struct {
	LoggerProvider  LoggerProvider
	ServiceProvider ServiceProvider
	SettingsAccess  SettingsAccess
}

// BuildExportCommand constructs the export command.
func (builder *CommandBuilder) BuildExportCommand() (*cobra.Command, error) {
	if validationError := builder.validate(); validationError != nil {
		return nil, validationError
	}

	exportCommand := &cobra.Command{
		Use:   exportCommandUseConstant,
		Short: exportCommandShortDescriptionConstant,
		Long:  exportCommandLongDescriptionConstant,
		RunE:  builder.runExport,
	}
	exportCommand.Flags().String(messageFlagNameConstant, defaultCommitMessageConstant, messageFlagDescriptionConstant)
	exportCommand.Flags().Bool(noPersistFlagNameConstant, false, noPersistFlagDescription)
	return exportCommand, nil
}

// BuildRefreshCommand constructs the refresh command.
func (builder *CommandBuilder) BuildRefreshCommand() (*cobra.Command, error) {
	if validationError := builder.validate(); validationError != nil {
		return nil, validationError
	}

	return &cobra.Command{
		Use:   refreshCommandUseConstant,
		Short: refreshCommandShortDescription,
		Long:  refreshCommandLongDescription,
		RunE:  builder.runRefresh,
	}, nil
}

// BuildListCommand constructs the bundles listing command.
func (builder *CommandBuilder) BuildListCommand() (*cobra.Command, error) {
	if validationError := builder.validate(); validationError != nil {
		return nil, validationError
	}

	return &cobra.Command{
		Use:   listCommandUseConstant,
		Short: listCommandShortDescriptionConstant,
		Long:  listCommandLongDescriptionConstant,
		RunE:  builder.runList,
	}, nil
}

func (builder *CommandBuilder) validate() error {
	if builder.LoggerProvider == nil {
		return errors.New(loggerProviderMissingMessageConstant)
	}
	if builder.ServiceProvider == nil {
		return errors.New(serviceProviderMissingMessageConstant)
	}
	if builder.SettingsAccess == nil {
		return errors.New(settingsAccessMissingMessageConstant)
	}
	return nil
}

func (builder *CommandBuilder) runExport(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New(unexpectedArgumentsMessageConstant)
	}

	commitMessage, messageFlagError := command.Flags().GetString(messageFlagNameConstant)
	if messageFlagError != nil {
		return messageFlagError
	}
	skipPersist, persistFlagError := command.Flags().GetBool(noPersistFlagNameConstant)
	if persistFlagError != nil {
		return persistFlagError
	}

	logger := builder.LoggerProvider()
	settings, homeDirectory, contextError := builder.loadSettingsContext()
	if contextError != nil {
		return contextError
	}
	if len(strings.TrimSpace(settings.RemoteURL)) == 0 {
		return errors.New(remoteNotConfiguredUserMessage)
	}

	service, serviceError := builder.ServiceProvider(logger, homeDirectory)
	if serviceError != nil {
		return serviceError
	}

	credentialProvider := interactiveCredentialProvider(command.InOrStdin(), command.OutOrStdout())
	summary, exportError := service.ExportAllAndPush(
		command.Context(),
		settings.RemoteURL,
		settings.WorkingCopyRoot(homeDirectory),
		settings.Bundles,
		commitMessage,
		credentialProvider,
		!skipPersist,
	)
	if exportError != nil {
		return exportError
	}

	fmt.Fprintf(command.OutOrStdout(), exportSummaryTemplateConstant, summary.FilesExported, summary.MetadataExported)
	if summary.PersistenceWarning != nil {
		logger.Warn(credentialPersistWarnLogConstant, zap.String(logFieldPersistWarningConstant, summary.PersistenceWarning.Error()))
		fmt.Fprintf(command.OutOrStdout(), persistWarningTemplateConstant, summary.PersistenceWarning)
	}
	return nil
}

func (builder *CommandBuilder) runRefresh(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New(unexpectedArgumentsMessageConstant)
	}

	logger := builder.LoggerProvider()
	settings, homeDirectory, contextError := builder.loadSettingsContext()
	if contextError != nil {
		return contextError
	}

	service, serviceError := builder.ServiceProvider(logger, homeDirectory)
	if serviceError != nil {
		return serviceError
	}

	discoveredBundles, refreshError := service.RefreshBundlesFromRepo(
		command.Context(),
		settings.RemoteURL,
		settings.WorkingCopyRoot(homeDirectory),
	)
	if refreshError != nil {
		return refreshError
	}

	settings.Bundles = discoveredBundles
	if saveError := builder.SettingsAccess.Save(settings); saveError != nil {
		return saveError
	}

	fmt.Fprintf(command.OutOrStdout(), refreshSummaryTemplateConstant, len(discoveredBundles))
	return nil
}

func (builder *CommandBuilder) runList(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New(unexpectedArgumentsMessageConstant)
	}

	settings, settingsError := builder.SettingsAccess.Load()
	if settingsError != nil {
		return settingsError
	}

	if len(settings.Bundles) == 0 {
		fmt.Fprintln(command.OutOrStdout(), bundleListEmptyMessageConstant)
		return nil
	}
	for _, trackedBundle := range settings.Bundles {
		fmt.Fprintf(command.OutOrStdout(), bundleListLineTemplateConstant, trackedBundle.Name, trackedBundle.Source, len(trackedBundle.ConfigFiles))
	}
	return nil
}

func (builder *CommandBuilder) loadSettingsContext() (deviceconfig.Settings, string, error) {
	settings, settingsError := builder.SettingsAccess.Load()
	if settingsError != nil {
		return deviceconfig.Settings{}, "", settingsError
	}
	homeDirectory, homeError := builder.SettingsAccess.HomeDirectory()
	if homeError != nil {
		return deviceconfig.Settings{}, "", homeError
	}
	return settings, homeDirectory, nil
}

func interactiveCredentialProvider(input io.Reader, output io.Writer) workingcopy.CredentialProvider {
	return func() (workingcopy.Credentials, bool) {
		lineReader := bufio.NewReader(input)

		fmt.Fprint(output, usernamePromptConstant)
		usernameLine, usernameError := lineReader.ReadString('\n')
		if usernameError != nil && len(usernameLine) == 0 {
			return workingcopy.Credentials{}, false
		}

		fmt.Fprint(output, tokenPromptConstant)
		tokenLine, tokenError := lineReader.ReadString('\n')
		if tokenError != nil && len(tokenLine) == 0 {
			return workingcopy.Credentials{}, false
		}

		return workingcopy.Credentials{
			Username: strings.TrimSpace(usernameLine),
			Token:    strings.TrimSpace(tokenLine),
		}, true
	}
}
