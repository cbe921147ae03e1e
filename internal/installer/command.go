package installer

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dotkeep/dotkeep/internal/bundle"
)

const (
	installCommandUseConstant              = "install <bundle>"
	installCommandShortDescriptionConstant = "Install a tracked bundle's package"
	installCommandLongDescriptionConstant  = "install resolves a tracked bundle by name and installs its package through pacman or the AUR helper, selected by the bundle's source tag."

	installArgumentCountConstant = 1

	loggerProviderMissingMessageConstant    = "logger provider not configured"
	installerProviderMissingMessageConstant = "installer provider not configured"
	bundleListProviderMissingMessage        = "bundle list provider not configured"
	bundleNotTrackedTemplateConstant        = "bundle %q is not tracked on this device"
	packageInstalledTemplateConstant        = "Installed %s (%s).\n"
	packageAlreadyInstalledTemplate         = "%s is already installed.\n"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// InstallerProvider builds the package installer for a command run.
type InstallerProvider func(logger *zap.Logger) (PackageInstaller, error)

// BundleListProvider returns the device's current bundle list.
type BundleListProvider func() ([]bundle.Bundle, error)

// CommandBuilder assembles the install command.
type CommandBuilder struct {
	LoggerProvider     LoggerProvider
	InstallerProvider  InstallerProvider
	BundleListProvider BundleListProvider
}

// Build constructs the install command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	if builder.LoggerProvider == nil {
		return nil, errors.New(loggerProviderMissingMessageConstant)
	}
	if builder.InstallerProvider == nil {
		return nil, errors.New(installerProviderMissingMessageConstant)
	}
	if builder.BundleListProvider == nil {
		return nil, errors.New(bundleListProviderMissingMessage)
	}

	return &cobra.Command{
		Use:   installCommandUseConstant,
		Short: installCommandShortDescriptionConstant,
		Long:  installCommandLongDescriptionConstant,
		Args:  cobra.ExactArgs(installArgumentCountConstant),
		RunE:  builder.runInstall,
	}, nil
}

func (builder *CommandBuilder) runInstall(command *cobra.Command, arguments []string) error {
	requestedBundleName := arguments[0]

	trackedBundles, bundleListError := builder.BundleListProvider()
	if bundleListError != nil {
		return bundleListError
	}

	var matchedBundle *bundle.Bundle
	for bundleIndex := range trackedBundles {
		if trackedBundles[bundleIndex].Name == requestedBundleName {
			matchedBundle = &trackedBundles[bundleIndex]
			break
		}
	}
	if matchedBundle == nil {
		return fmt.Errorf(bundleNotTrackedTemplateConstant, requestedBundleName)
	}

	logger := builder.LoggerProvider()
	packageInstaller, installerError := builder.InstallerProvider(logger)
	if installerError != nil {
		return installerError
	}

	alreadyInstalled, queryError := packageInstaller.IsInstalled(command.Context(), matchedBundle.Name)
	if queryError != nil {
		return queryError
	}
	if alreadyInstalled {
		fmt.Fprintf(command.OutOrStdout(), packageAlreadyInstalledTemplate, matchedBundle.Name)
		return nil
	}

	if installError := packageInstaller.Install(command.Context(), matchedBundle.Name, matchedBundle.Source); installError != nil {
		return installError
	}

	fmt.Fprintf(command.OutOrStdout(), packageInstalledTemplateConstant, matchedBundle.Name, matchedBundle.Source)
	return nil
}
