package reconcile

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/dotkeep/dotkeep/internal/bundle"
	"github.com/dotkeep/dotkeep/internal/workingcopy"
)

const (
	workingCopyManagerMissingMessageConstant = "working-copy manager not configured"
	remoteRequiredMessageConstant            = "no remote repository configured"

	logFieldFilesExportedConstant     = "files_exported"
	logFieldBundlesExportedConstant   = "bundles_exported"
	logFieldBundlesDiscoveredConstant = "bundles_discovered"
	exportCompletedLogMessageConstant = "exported bundles and pushed working copy"
	scanCompletedLogMessageConstant   = "refreshed bundle list from repository"
)

// ErrWorkingCopyManagerNotConfigured indicates the service was constructed without a manager.
var ErrWorkingCopyManagerNotConfigured = errors.New(workingCopyManagerMissingMessageConstant)

// ExportSummary reports what an export run accomplished. PersistenceWarning
// carries the credential-store warning from a push that succeeded on the
// credentialed retry but could not persist the credentials.
type ExportSummary struct {
	FilesExported      int
	MetadataExported   int
	PersistenceWarning *workingcopy.SyncError
}

// Dependencies enumerates the collaborators required by the Service.
type Dependencies struct {
	WorkingCopyManager *workingcopy.Manager
	Exporter           *Exporter
	Scanner            *Scanner
	Logger             *zap.Logger
}

// Service composes the working-copy manager, exporter, and scanner into the
// export and refresh flows.
type Service struct {
	manager  *workingcopy.Manager
	exporter *Exporter
	scanner  *Scanner
	logger   *zap.Logger
}

// NewService constructs a Service after validating its dependencies. A nil
// exporter or scanner falls back to defaults built on the service logger.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.WorkingCopyManager == nil {
		return nil, ErrWorkingCopyManagerNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	exporter := dependencies.Exporter
	if exporter == nil {
		exporter = NewExporter(logger)
	}
	scanner := dependencies.Scanner
	if scanner == nil {
		scanner = NewScanner("", logger)
	}
	return &Service{
		manager:  dependencies.WorkingCopyManager,
		exporter: exporter,
		scanner:  scanner,
		logger:   logger,
	}, nil
}

// ExportAllAndPush opens the working copy, exports every bundle's files and
// metadata, then commits and pushes with the at-most-one credential retry.
// Any export failure aborts the whole run before the commit step; files
// already copied remain on disk but are never committed. The repository
// handle is released on every path.
func (service *Service) ExportAllAndPush(
	executionContext context.Context,
	remoteURL string,
	workingCopyRoot string,
	bundles []bundle.Bundle,
	commitMessage string,
	credentialProvider workingcopy.CredentialProvider,
	persistOnSuccess bool,
) (ExportSummary, error) {
	var summary ExportSummary

	operationError := service.manager.WithRepository(executionContext, remoteURL, workingCopyRoot, func(handle *workingcopy.RepositoryHandle) error {
		for _, trackedBundle := range bundles {
			exportedDestinations, exportError := service.exporter.ExportBundle(trackedBundle, handle.LocalRoot())
			if exportError != nil {
				return exportError
			}
			summary.FilesExported += len(exportedDestinations)

			if _, metadataError := service.exporter.ExportMetadata(trackedBundle, handle.LocalRoot()); metadataError != nil {
				return metadataError
			}
			summary.MetadataExported++
		}

		pushOutcome, pushError := service.manager.PushWithCommitAndRetry(executionContext, handle, commitMessage, credentialProvider, persistOnSuccess)
		if pushError != nil {
			return pushError
		}
		summary.PersistenceWarning = pushOutcome.PersistenceWarning
		return nil
	})
	if operationError != nil {
		return ExportSummary{}, operationError
	}

	service.logger.Info(
		exportCompletedLogMessageConstant,
		zap.Int(logFieldFilesExportedConstant, summary.FilesExported),
		zap.Int(logFieldBundlesExportedConstant, summary.MetadataExported),
	)
	return summary, nil
}

// RefreshBundlesFromRepo opens or clones the configured repository, scans it,
// and returns the discovered bundle list as a wholesale replacement for the
// device's current list. The repository handle is released on success and
// failure paths alike.
func (service *Service) RefreshBundlesFromRepo(executionContext context.Context, remoteURL string, workingCopyRoot string) ([]bundle.Bundle, error) {
	if len(strings.TrimSpace(remoteURL)) == 0 {
		return nil, workingcopy.NewSyncError(workingcopy.SyncErrorRepoNotConfigured, remoteRequiredMessageConstant, nil)
	}

	var discoveredBundles []bundle.Bundle
	operationError := service.manager.WithRepository(executionContext, remoteURL, workingCopyRoot, func(handle *workingcopy.RepositoryHandle) error {
		scannedBundles, scanError := service.scanner.ScanForBundles(handle.LocalRoot())
		if scanError != nil {
			return scanError
		}
		discoveredBundles = scannedBundles
		return nil
	})
	if operationError != nil {
		return nil, operationError
	}

	service.logger.Info(scanCompletedLogMessageConstant, zap.Int(logFieldBundlesDiscoveredConstant, len(discoveredBundles)))
	return discoveredBundles, nil
}
