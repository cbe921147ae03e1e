package reconcile

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dotkeep/dotkeep/internal/bundle"
	"github.com/dotkeep/dotkeep/internal/workingcopy"
)

const (
	hiddenEntryPrefixConstant       = "."
	hostConfigDirectoryNameConstant = ".config"
	repositoryPathSeparatorConstant = "/"

	workingCopyListFailedMessageConstant = "failed to list working copy root"
	directoryWalkFailedMessageConstant   = "failed to walk package directory"

	logFieldPackageDirectoryConstant    = "package_directory"
	logFieldInferredMappingsConstant    = "inferred_mappings"
	logFieldDescriptorPathConstant      = "descriptor_path"
	corruptDescriptorSkippedLogConstant = "skipping directory with unreadable descriptor"
	inferredBundleHeuristicWarnConstant = "no descriptor found, inferred bundle sources from the host config directory convention"
)

// Scanner reconstructs the set of bundles present in a working copy.
type Scanner struct {
	homeDirectory string
	logger        *zap.Logger
}

// NewScanner constructs a Scanner that resolves inferred mapping sources
// under the given host home directory.
func NewScanner(homeDirectory string, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{homeDirectory: homeDirectory, logger: logger}
}

// ScanForBundles walks the working copy's top-level directories and rebuilds
// the bundle list. A directory with a descriptor is decoded through the codec;
// a corrupt descriptor skips that directory only. A directory without a
// descriptor is inferred from its files, each mapped from
// <home>/.config/<dir>/<rel> to <dir>/<rel>, and only synthesized when at
// least one file was found. The scan never mutates the working copy.
func (scanner *Scanner) ScanForBundles(workingCopyRoot string) ([]bundle.Bundle, error) {
	rootEntries, readError := os.ReadDir(workingCopyRoot)
	if readError != nil {
		return nil, workingcopy.NewSyncError(workingcopy.SyncErrorIoFailed, workingCopyListFailedMessageConstant, readError)
	}

	discoveredBundles := make([]bundle.Bundle, 0, len(rootEntries))
	for _, rootEntry := range rootEntries {
		if !rootEntry.IsDir() || isHiddenName(rootEntry.Name()) {
			continue
		}

		packageDirectory := rootEntry.Name()
		descriptorPath := filepath.Join(workingCopyRoot, packageDirectory, bundle.DescriptorFileName)

		descriptorContent, descriptorReadError := os.ReadFile(descriptorPath)
		if descriptorReadError == nil {
			decodedBundle, decodeError := bundle.DecodeDescriptor(descriptorContent)
			if decodeError != nil {
				scanner.logger.Warn(
					corruptDescriptorSkippedLogConstant,
					zap.String(logFieldPackageDirectoryConstant, packageDirectory),
					zap.String(logFieldDescriptorPathConstant, descriptorPath),
					zap.Error(decodeError),
				)
				continue
			}
			discoveredBundles = append(discoveredBundles, decodedBundle)
			continue
		}
		if !os.IsNotExist(descriptorReadError) {
			scanner.logger.Warn(
				corruptDescriptorSkippedLogConstant,
				zap.String(logFieldPackageDirectoryConstant, packageDirectory),
				zap.String(logFieldDescriptorPathConstant, descriptorPath),
				zap.Error(descriptorReadError),
			)
			continue
		}

		inferredBundle, inferenceError := scanner.inferBundleFromDirectory(workingCopyRoot, packageDirectory)
		if inferenceError != nil {
			return nil, inferenceError
		}
		if len(inferredBundle.ConfigFiles) == 0 {
			continue
		}

		scanner.logger.Warn(
			inferredBundleHeuristicWarnConstant,
			zap.String(logFieldPackageDirectoryConstant, packageDirectory),
			zap.Int(logFieldInferredMappingsConstant, len(inferredBundle.ConfigFiles)),
		)
		discoveredBundles = append(discoveredBundles, inferredBundle)
	}

	return discoveredBundles, nil
}

func (scanner *Scanner) inferBundleFromDirectory(workingCopyRoot string, packageDirectory string) (bundle.Bundle, error) {
	packageRoot := filepath.Join(workingCopyRoot, packageDirectory)
	inferredBundle := bundle.Bundle{Name: packageDirectory, Source: bundle.OfficialSourceTag}

	walkError := filepath.WalkDir(packageRoot, func(currentPath string, entry fs.DirEntry, entryError error) error {
		if entryError != nil {
			return entryError
		}
		if entry.IsDir() {
			if currentPath != packageRoot && isHiddenName(entry.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		relativePath, relativeError := filepath.Rel(packageRoot, currentPath)
		if relativeError != nil {
			return relativeError
		}
		repositoryRelativePath := filepath.ToSlash(relativePath)

		inferredBundle.ConfigFiles = append(inferredBundle.ConfigFiles, bundle.ConfigFileMapping{
			SourcePath:      filepath.Join(scanner.homeDirectory, hostConfigDirectoryNameConstant, packageDirectory, filepath.FromSlash(repositoryRelativePath)),
			DestinationPath: packageDirectory + repositoryPathSeparatorConstant + repositoryRelativePath,
		})
		return nil
	})
	if walkError != nil {
		return bundle.Bundle{}, workingcopy.NewSyncError(workingcopy.SyncErrorIoFailed, directoryWalkFailedMessageConstant, walkError)
	}

	return inferredBundle, nil
}

func isHiddenName(entryName string) bool {
	return strings.HasPrefix(entryName, hiddenEntryPrefixConstant)
}
