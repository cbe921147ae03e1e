package reconcile

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dotkeep/dotkeep/internal/bundle"
	"github.com/dotkeep/dotkeep/internal/workingcopy"
)

const (
	exportDirectoryPermissionsConstant = 0o755
	exportFilePermissionsConstant      = 0o644

	sourceInspectionFailedMessageConstant  = "failed to inspect mapping source"
	destinationCreateFailedMessageConstant = "failed to create destination directory"
	fileCopyFailedMessageConstant          = "failed to copy mapping source into working copy"
	descriptorWriteFailedMessageConstant   = "failed to write bundle descriptor"
	descriptorEncodeFailedMessageConstant  = "failed to encode bundle descriptor"

	logFieldBundleNameConstant      = "bundle_name"
	logFieldSourcePathConstant      = "source_path"
	logFieldDestinationPathConstant = "destination_path"
	missingSourceSkippedLogConstant = "mapping source missing on this device, skipping"
)

// Exporter copies bundle files and descriptors into the working copy.
type Exporter struct {
	logger *zap.Logger
}

// NewExporter constructs an Exporter. A nil logger falls back to a no-op logger.
func NewExporter(logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{logger: logger}
}

// ExportBundle copies every mapping whose source exists on this device into
// the working copy, creating parent directories and overwriting existing
// content. Mappings whose source is absent are skipped, not errors. The
// returned list of destination paths is the unit of truth for what was copied.
func (exporter *Exporter) ExportBundle(trackedBundle bundle.Bundle, workingCopyRoot string) ([]string, error) {
	exportedDestinations := make([]string, 0, len(trackedBundle.ConfigFiles))

	for _, mapping := range trackedBundle.ConfigFiles {
		sourceInfo, statError := os.Stat(mapping.SourcePath)
		if statError != nil {
			if os.IsNotExist(statError) {
				exporter.logger.Debug(
					missingSourceSkippedLogConstant,
					zap.String(logFieldBundleNameConstant, trackedBundle.Name),
					zap.String(logFieldSourcePathConstant, mapping.SourcePath),
					zap.String(logFieldDestinationPathConstant, mapping.DestinationPath),
				)
				continue
			}
			return exportedDestinations, workingcopy.NewSyncError(workingcopy.SyncErrorIoFailed, sourceInspectionFailedMessageConstant, statError)
		}
		if sourceInfo.IsDir() {
			continue
		}

		destinationPath := filepath.Join(workingCopyRoot, filepath.FromSlash(mapping.DestinationPath))
		if mkdirError := os.MkdirAll(filepath.Dir(destinationPath), exportDirectoryPermissionsConstant); mkdirError != nil {
			return exportedDestinations, workingcopy.NewSyncError(workingcopy.SyncErrorIoFailed, destinationCreateFailedMessageConstant, mkdirError)
		}
		if copyError := copyFileContents(mapping.SourcePath, destinationPath); copyError != nil {
			return exportedDestinations, workingcopy.NewSyncError(workingcopy.SyncErrorIoFailed, fileCopyFailedMessageConstant, copyError)
		}

		exportedDestinations = append(exportedDestinations, mapping.DestinationPath)
	}

	return exportedDestinations, nil
}

// ExportMetadata writes the bundle's full descriptor, mappings with absent
// sources included, and returns the descriptor path. It does not depend on
// ExportBundle having run.
func (exporter *Exporter) ExportMetadata(trackedBundle bundle.Bundle, workingCopyRoot string) (string, error) {
	encodedDescriptor, encodeError := bundle.EncodeDescriptor(trackedBundle)
	if encodeError != nil {
		return "", workingcopy.NewSyncError(workingcopy.SyncErrorIoFailed, descriptorEncodeFailedMessageConstant, encodeError)
	}

	descriptorPath := bundle.DescriptorPath(workingCopyRoot, trackedBundle)
	if mkdirError := os.MkdirAll(filepath.Dir(descriptorPath), exportDirectoryPermissionsConstant); mkdirError != nil {
		return "", workingcopy.NewSyncError(workingcopy.SyncErrorIoFailed, descriptorWriteFailedMessageConstant, mkdirError)
	}
	if writeError := os.WriteFile(descriptorPath, encodedDescriptor, exportFilePermissionsConstant); writeError != nil {
		return "", workingcopy.NewSyncError(workingcopy.SyncErrorIoFailed, descriptorWriteFailedMessageConstant, writeError)
	}

	return descriptorPath, nil
}

func copyFileContents(sourcePath string, destinationPath string) error {
	sourceFile, openError := os.Open(sourcePath)
	if openError != nil {
		return openError
	}
	defer func() { _ = sourceFile.Close() }()

	destinationFile, createError := os.OpenFile(destinationPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, exportFilePermissionsConstant)
	if createError != nil {
		return createError
	}

	_, copyError := io.Copy(destinationFile, sourceFile)
	closeError := destinationFile.Close()
	if copyError != nil {
		return copyError
	}
	return closeError
}
