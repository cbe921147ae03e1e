package reconcile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dotkeep/dotkeep/internal/bundle"
	"github.com/dotkeep/dotkeep/internal/reconcile"
)

const (
	i3DescriptorContentConstant = "name: i3\nsource: official\nconfigFiles:\n  - destinationPath: i3/config\n"
)

func TestScanForBundlesInfersBundleFromDirectoryShape(testInstance *testing.T) {
	hostHome := testInstance.TempDir()
	workingCopyRoot := testInstance.TempDir()
	writeHostFile(testInstance, filepath.Join(workingCopyRoot, "vim", ".vimrc"), vimrcFileContentConstant)

	scanner := reconcile.NewScanner(hostHome, zap.NewNop())
	discoveredBundles, scanError := scanner.ScanForBundles(workingCopyRoot)
	require.NoError(testInstance, scanError)
	require.Len(testInstance, discoveredBundles, 1)

	inferredBundle := discoveredBundles[0]
	require.Equal(testInstance, "vim", inferredBundle.Name)
	require.Equal(testInstance, bundle.OfficialSourceTag, inferredBundle.Source)
	require.Len(testInstance, inferredBundle.ConfigFiles, 1)
	require.Equal(testInstance, "vim/.vimrc", inferredBundle.ConfigFiles[0].DestinationPath)
	require.Equal(testInstance, filepath.Join(hostHome, ".config", "vim", ".vimrc"), inferredBundle.ConfigFiles[0].SourcePath)
}

func TestScanForBundlesPrefersDescriptorOverDirectoryContents(testInstance *testing.T) {
	workingCopyRoot := testInstance.TempDir()
	writeHostFile(testInstance, filepath.Join(workingCopyRoot, "i3", bundle.DescriptorFileName), i3DescriptorContentConstant)
	writeHostFile(testInstance, filepath.Join(workingCopyRoot, "i3", "other.txt"), "stray file not in the descriptor")

	scanner := reconcile.NewScanner(testInstance.TempDir(), zap.NewNop())
	discoveredBundles, scanError := scanner.ScanForBundles(workingCopyRoot)
	require.NoError(testInstance, scanError)
	require.Len(testInstance, discoveredBundles, 1)

	descriptorBundle := discoveredBundles[0]
	require.Equal(testInstance, "i3", descriptorBundle.Name)
	require.Len(testInstance, descriptorBundle.ConfigFiles, 1)
	require.Equal(testInstance, "i3/config", descriptorBundle.ConfigFiles[0].DestinationPath)
}

func TestScanForBundlesSkipsCorruptDescriptorsOnly(testInstance *testing.T) {
	workingCopyRoot := testInstance.TempDir()
	writeHostFile(testInstance, filepath.Join(workingCopyRoot, "broken", bundle.DescriptorFileName), "name: [unterminated")
	writeHostFile(testInstance, filepath.Join(workingCopyRoot, "i3", bundle.DescriptorFileName), i3DescriptorContentConstant)

	scanner := reconcile.NewScanner(testInstance.TempDir(), zap.NewNop())
	discoveredBundles, scanError := scanner.ScanForBundles(workingCopyRoot)
	require.NoError(testInstance, scanError)
	require.Len(testInstance, discoveredBundles, 1)
	require.Equal(testInstance, "i3", discoveredBundles[0].Name)
}

func TestScanForBundlesIgnoresHiddenAndEmptyDirectories(testInstance *testing.T) {
	workingCopyRoot := testInstance.TempDir()
	writeHostFile(testInstance, filepath.Join(workingCopyRoot, ".git", "HEAD"), "ref: refs/heads/main\n")
	require.NoError(testInstance, os.MkdirAll(filepath.Join(workingCopyRoot, "empty"), 0o755))
	writeHostFile(testInstance, filepath.Join(workingCopyRoot, "README.md"), "top-level file, not a bundle")

	scanner := reconcile.NewScanner(testInstance.TempDir(), zap.NewNop())
	discoveredBundles, scanError := scanner.ScanForBundles(workingCopyRoot)
	require.NoError(testInstance, scanError)
	require.Empty(testInstance, discoveredBundles)
}

func TestExportedBundleRoundTripsThroughScan(testInstance *testing.T) {
	hostHome := testInstance.TempDir()
	workingCopyRoot := testInstance.TempDir()
	vimrcSourcePath := filepath.Join(hostHome, ".vimrc")
	writeHostFile(testInstance, vimrcSourcePath, vimrcFileContentConstant)

	originalBundle := bundle.Bundle{
		Name:        vimBundleNameConstant,
		Source:      bundle.AURSourceTag,
		Description: "editor configuration",
		ConfigFiles: []bundle.ConfigFileMapping{{SourcePath: vimrcSourcePath, DestinationPath: "vim/.vimrc"}},
	}

	exporter := reconcile.NewExporter(zap.NewNop())
	_, exportError := exporter.ExportBundle(originalBundle, workingCopyRoot)
	require.NoError(testInstance, exportError)
	_, metadataError := exporter.ExportMetadata(originalBundle, workingCopyRoot)
	require.NoError(testInstance, metadataError)

	scanner := reconcile.NewScanner(hostHome, zap.NewNop())
	discoveredBundles, scanError := scanner.ScanForBundles(workingCopyRoot)
	require.NoError(testInstance, scanError)
	require.Len(testInstance, discoveredBundles, 1)

	roundTrippedBundle := discoveredBundles[0]
	require.Equal(testInstance, originalBundle.Name, roundTrippedBundle.Name)
	require.Equal(testInstance, originalBundle.Source, roundTrippedBundle.Source)
	require.Equal(testInstance, originalBundle.Description, roundTrippedBundle.Description)
}
