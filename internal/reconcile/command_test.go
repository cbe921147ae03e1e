package reconcile_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dotkeep/dotkeep/internal/bundle"
	"github.com/dotkeep/dotkeep/internal/deviceconfig"
	"github.com/dotkeep/dotkeep/internal/reconcile"
)

type memorySettingsAccess struct {
	settings      deviceconfig.Settings
	savedSettings *deviceconfig.Settings
	homeDirectory string
}

func (access *memorySettingsAccess) Load() (deviceconfig.Settings, error) {
	return access.settings, nil
}

func (access *memorySettingsAccess) Save(settings deviceconfig.Settings) error {
	access.savedSettings = &settings
	return nil
}

func (access *memorySettingsAccess) HomeDirectory() (string, error) {
	return access.homeDirectory, nil
}

func newCommandFixture(testInstance *testing.T, executor *recordingGitExecutor, settingsAccess *memorySettingsAccess) *reconcile.CommandBuilder {
	testInstance.Helper()
	return &reconcile.CommandBuilder{
		LoggerProvider: func() *zap.Logger { return zap.NewNop() },
		ServiceProvider: func(logger *zap.Logger, homeDirectory string) (*reconcile.Service, error) {
			return newServiceFixture(testInstance, executor, homeDirectory), nil
		},
		SettingsAccess: settingsAccess,
	}
}

func executeCommand(testInstance *testing.T, command *cobra.Command, arguments ...string) (string, error) {
	testInstance.Helper()
	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetErr(outputBuffer)
	command.SetArgs(append([]string{}, arguments...))
	executionError := command.Execute()
	return outputBuffer.String(), executionError
}

func TestCommandBuildersValidateDependencies(testInstance *testing.T) {
	incompleteBuilder := &reconcile.CommandBuilder{}
	_, exportBuildError := incompleteBuilder.BuildExportCommand()
	require.Error(testInstance, exportBuildError)
	_, refreshBuildError := incompleteBuilder.BuildRefreshCommand()
	require.Error(testInstance, refreshBuildError)
	_, listBuildError := incompleteBuilder.BuildListCommand()
	require.Error(testInstance, listBuildError)
}

func TestExportCommandRequiresConfiguredRemote(testInstance *testing.T) {
	settingsAccess := &memorySettingsAccess{homeDirectory: testInstance.TempDir()}
	builder := newCommandFixture(testInstance, &recordingGitExecutor{}, settingsAccess)

	exportCommand, buildError := builder.BuildExportCommand()
	require.NoError(testInstance, buildError)

	_, executionError := executeCommand(testInstance, exportCommand)
	require.Error(testInstance, executionError)
}

func TestExportCommandReportsSummary(testInstance *testing.T) {
	hostHome := testInstance.TempDir()
	workingCopyRoot := newOpenableWorkingCopy(testInstance)
	vimrcSourcePath := filepath.Join(hostHome, ".vimrc")
	writeHostFile(testInstance, vimrcSourcePath, vimrcFileContentConstant)

	settingsAccess := &memorySettingsAccess{
		homeDirectory: hostHome,
		settings: deviceconfig.Settings{
			RemoteURL:      serviceRemoteURLConstant,
			RepositoryPath: workingCopyRoot,
			Bundles: []bundle.Bundle{
				{
					Name:        vimBundleNameConstant,
					Source:      bundle.OfficialSourceTag,
					ConfigFiles: []bundle.ConfigFileMapping{{SourcePath: vimrcSourcePath, DestinationPath: "vim/.vimrc"}},
				},
			},
		},
	}
	builder := newCommandFixture(testInstance, &recordingGitExecutor{}, settingsAccess)

	exportCommand, buildError := builder.BuildExportCommand()
	require.NoError(testInstance, buildError)

	commandOutput, executionError := executeCommand(testInstance, exportCommand)
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, commandOutput, "Exported 1 file(s) across 1 bundle(s).")
}

func TestRefreshCommandReplacesAndSavesBundleList(testInstance *testing.T) {
	hostHome := testInstance.TempDir()
	workingCopyRoot := newOpenableWorkingCopy(testInstance)
	writeHostFile(testInstance, filepath.Join(workingCopyRoot, "i3", bundle.DescriptorFileName), i3DescriptorContentConstant)

	settingsAccess := &memorySettingsAccess{
		homeDirectory: hostHome,
		settings: deviceconfig.Settings{
			RemoteURL:      serviceRemoteURLConstant,
			RepositoryPath: workingCopyRoot,
			Bundles:        []bundle.Bundle{{Name: "stale", Source: bundle.OfficialSourceTag}},
		},
	}
	builder := newCommandFixture(testInstance, &recordingGitExecutor{}, settingsAccess)

	refreshCommand, buildError := builder.BuildRefreshCommand()
	require.NoError(testInstance, buildError)

	commandOutput, executionError := executeCommand(testInstance, refreshCommand)
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, commandOutput, "Tracking 1 bundle(s)")

	require.NotNil(testInstance, settingsAccess.savedSettings)
	require.Len(testInstance, settingsAccess.savedSettings.Bundles, 1)
	require.Equal(testInstance, "i3", settingsAccess.savedSettings.Bundles[0].Name)
}

func TestListCommandPrintsTrackedBundles(testInstance *testing.T) {
	settingsAccess := &memorySettingsAccess{
		homeDirectory: testInstance.TempDir(),
		settings: deviceconfig.Settings{
			Bundles: []bundle.Bundle{
				{Name: vimBundleNameConstant, Source: bundle.OfficialSourceTag, ConfigFiles: []bundle.ConfigFileMapping{{DestinationPath: "vim/.vimrc"}}},
				{Name: "paru", Source: bundle.AURSourceTag},
			},
		},
	}
	builder := newCommandFixture(testInstance, &recordingGitExecutor{}, settingsAccess)

	listCommand, buildError := builder.BuildListCommand()
	require.NoError(testInstance, buildError)

	commandOutput, executionError := executeCommand(testInstance, listCommand)
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, commandOutput, "vim\tofficial\t1 file(s)")
	require.Contains(testInstance, commandOutput, "paru\taur\t0 file(s)")
}

func TestListCommandExplainsEmptyBundleList(testInstance *testing.T) {
	settingsAccess := &memorySettingsAccess{homeDirectory: testInstance.TempDir()}
	builder := newCommandFixture(testInstance, &recordingGitExecutor{}, settingsAccess)

	listCommand, buildError := builder.BuildListCommand()
	require.NoError(testInstance, buildError)

	commandOutput, executionError := executeCommand(testInstance, listCommand)
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, commandOutput, "No bundles tracked")
}
