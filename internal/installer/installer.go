package installer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dotkeep/dotkeep/internal/bundle"
	"github.com/dotkeep/dotkeep/internal/execshell"
)

const (
	pacmanSyncFlagConstant      = "-S"
	pacmanRemoveFlagConstant    = "-Rns"
	pacmanQueryFlagConstant     = "-Qi"
	pacmanSearchFlagConstant    = "-Ss"
	pacmanNoConfirmFlagConstant = "--noconfirm"

	defaultAURHelperNameConstant = "paru"

	packageExecutorMissingMessageConstant = "package command executor not configured"
	packageNameMissingMessageConstant     = "package name is empty"
	installFailedTemplateConstant         = "failed to install package %q"
	removeFailedTemplateConstant          = "failed to remove package %q"
	searchFailedTemplateConstant          = "failed to search for package %q"
	packageErrorCauseSuffixConstant       = ": %w"

	logFieldPackageNameConstant  = "package_name"
	logFieldSourceTagConstant    = "source_tag"
	installingPackageLogConstant = "installing package"
)

// ErrPackageExecutorNotConfigured indicates the installer was constructed without a command executor.
var ErrPackageExecutorNotConfigured = errors.New(packageExecutorMissingMessageConstant)

// ErrPackageNameMissing indicates an operation was invoked with an empty package name.
var ErrPackageNameMissing = errors.New(packageNameMissingMessageConstant)

// PackageInstaller abstracts package-manager operations so callers never
// depend on the concrete backend.
type PackageInstaller interface {
	Install(executionContext context.Context, packageName string, sourceTag string) error
	Remove(executionContext context.Context, packageName string) error
	IsInstalled(executionContext context.Context, packageName string) (bool, error)
	Search(executionContext context.Context, searchTerm string) (string, error)
}

// PackageCommandExecutor exposes the subset of shell execution used by the
// pacman-backed installer.
type PackageCommandExecutor interface {
	ExecutePacman(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteTool(executionContext context.Context, toolName execshell.CommandName, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Dependencies enumerates the collaborators required by the pacman installer.
type Dependencies struct {
	Executor      PackageCommandExecutor
	Logger        *zap.Logger
	AURHelperName string
}

// PacmanInstaller installs official-repository packages through pacman and
// AUR packages through a configurable helper.
type PacmanInstaller struct {
	executor      PackageCommandExecutor
	logger        *zap.Logger
	aurHelperName execshell.CommandName
}

// NewPacmanInstaller constructs a PacmanInstaller after validating its dependencies.
func NewPacmanInstaller(dependencies Dependencies) (*PacmanInstaller, error) {
	if dependencies.Executor == nil {
		return nil, ErrPackageExecutorNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	aurHelperName := strings.TrimSpace(dependencies.AURHelperName)
	if len(aurHelperName) == 0 {
		aurHelperName = defaultAURHelperNameConstant
	}
	return &PacmanInstaller{
		executor:      dependencies.Executor,
		logger:        logger,
		aurHelperName: execshell.CommandName(aurHelperName),
	}, nil
}

// Install installs the named package, routing AUR-tagged packages through the
// configured helper and everything else through pacman.
func (installer *PacmanInstaller) Install(executionContext context.Context, packageName string, sourceTag string) error {
	if len(strings.TrimSpace(packageName)) == 0 {
		return ErrPackageNameMissing
	}

	installer.logger.Info(
		installingPackageLogConstant,
		zap.String(logFieldPackageNameConstant, packageName),
		zap.String(logFieldSourceTagConstant, sourceTag),
	)

	installDetails := execshell.CommandDetails{
		Arguments: []string{pacmanSyncFlagConstant, pacmanNoConfirmFlagConstant, packageName},
	}

	var installError error
	if strings.EqualFold(strings.TrimSpace(sourceTag), bundle.AURSourceTag) {
		_, installError = installer.executor.ExecuteTool(executionContext, installer.aurHelperName, installDetails)
	} else {
		_, installError = installer.executor.ExecutePacman(executionContext, installDetails)
	}
	if installError != nil {
		return wrapPackageError(installFailedTemplateConstant, packageName, installError)
	}
	return nil
}

// Remove uninstalls the named package and its unneeded dependencies.
func (installer *PacmanInstaller) Remove(executionContext context.Context, packageName string) error {
	if len(strings.TrimSpace(packageName)) == 0 {
		return ErrPackageNameMissing
	}

	_, removeError := installer.executor.ExecutePacman(executionContext, execshell.CommandDetails{
		Arguments: []string{pacmanRemoveFlagConstant, pacmanNoConfirmFlagConstant, packageName},
	})
	if removeError != nil {
		return wrapPackageError(removeFailedTemplateConstant, packageName, removeError)
	}
	return nil
}

// IsInstalled reports whether the named package is present in the local
// package database. A nonzero pacman exit means "not installed", not an error.
func (installer *PacmanInstaller) IsInstalled(executionContext context.Context, packageName string) (bool, error) {
	if len(strings.TrimSpace(packageName)) == 0 {
		return false, ErrPackageNameMissing
	}

	_, queryError := installer.executor.ExecutePacman(executionContext, execshell.CommandDetails{
		Arguments: []string{pacmanQueryFlagConstant, packageName},
	})
	if queryError != nil {
		var commandFailure execshell.CommandFailedError
		if errors.As(queryError, &commandFailure) {
			return false, nil
		}
		return false, queryError
	}
	return true, nil
}

// Search runs a repository search and returns the raw pacman output.
func (installer *PacmanInstaller) Search(executionContext context.Context, searchTerm string) (string, error) {
	if len(strings.TrimSpace(searchTerm)) == 0 {
		return "", ErrPackageNameMissing
	}

	searchResult, searchError := installer.executor.ExecutePacman(executionContext, execshell.CommandDetails{
		Arguments: []string{pacmanSearchFlagConstant, searchTerm},
	})
	if searchError != nil {
		return "", wrapPackageError(searchFailedTemplateConstant, searchTerm, searchError)
	}
	return searchResult.StandardOutput, nil
}

func wrapPackageError(messageTemplate string, subject string, cause error) error {
	return fmt.Errorf(messageTemplate+packageErrorCauseSuffixConstant, subject, cause)
}
