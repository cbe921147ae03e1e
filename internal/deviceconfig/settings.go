package deviceconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dotkeep/dotkeep/internal/bundle"
)

const (
	settingsDirectoryNameConstant  = "dotkeep"
	settingsFileNameConstant       = "settings.yaml"
	configDirectoryNameConstant    = ".config"
	repositoryDirectoryConstant    = ".dotkeep"
	repositoryWorkingCopyConstant  = "repository"
	settingsDirectoryPermsConstant = 0o755
	settingsFilePermsConstant      = 0o644

	settingsPathMissingMessageConstant  = "settings path is empty"
	settingsEncodeErrorTemplateConstant = "failed to encode device settings: %w"
	settingsDecodeErrorTemplateConstant = "failed to decode device settings: %w"
	settingsReadErrorTemplateConstant   = "failed to read device settings: %w"
	settingsWriteErrorTemplateConstant  = "failed to write device settings: %w"
	settingsMkdirErrorTemplateConstant  = "failed to create settings directory: %w"
)

// ErrSettingsPathMissing indicates a load or save was attempted without a settings path.
var ErrSettingsPathMissing = errors.New(settingsPathMissingMessageConstant)

// Settings is the device-local configuration document tying the remote
// repository to the bundles tracked on this host.
type Settings struct {
	RemoteURL      string          `yaml:"remoteUrl"`
	RepositoryPath string          `yaml:"repositoryPath,omitempty"`
	Bundles        []bundle.Bundle `yaml:"bundles"`
}

// DefaultSettingsPath resolves the conventional settings document location.
func DefaultSettingsPath(homeDirectory string) string {
	return filepath.Join(homeDirectory, configDirectoryNameConstant, settingsDirectoryNameConstant, settingsFileNameConstant)
}

// DefaultRepositoryPath resolves the conventional working-copy root.
func DefaultRepositoryPath(homeDirectory string) string {
	return filepath.Join(homeDirectory, repositoryDirectoryConstant, repositoryWorkingCopyConstant)
}

// WorkingCopyRoot returns the configured repository path or the conventional
// default under the supplied home directory.
func (settings Settings) WorkingCopyRoot(homeDirectory string) string {
	if len(strings.TrimSpace(settings.RepositoryPath)) > 0 {
		return settings.RepositoryPath
	}
	return DefaultRepositoryPath(homeDirectory)
}

// Load reads the settings document at settingsPath. A missing file yields an
// empty Settings value so first runs work without prior setup.
func Load(settingsPath string) (Settings, error) {
	if len(strings.TrimSpace(settingsPath)) == 0 {
		return Settings{}, ErrSettingsPathMissing
	}

	settingsContent, readError := os.ReadFile(settingsPath)
	if readError != nil {
		if os.IsNotExist(readError) {
			return Settings{}, nil
		}
		return Settings{}, fmt.Errorf(settingsReadErrorTemplateConstant, readError)
	}

	var loadedSettings Settings
	if decodeError := yaml.Unmarshal(settingsContent, &loadedSettings); decodeError != nil {
		return Settings{}, fmt.Errorf(settingsDecodeErrorTemplateConstant, decodeError)
	}
	return loadedSettings, nil
}

// Save writes the settings document to settingsPath, creating parent
// directories as needed.
func Save(settingsPath string, settings Settings) error {
	if len(strings.TrimSpace(settingsPath)) == 0 {
		return ErrSettingsPathMissing
	}

	encodedSettings, encodeError := yaml.Marshal(settings)
	if encodeError != nil {
		return fmt.Errorf(settingsEncodeErrorTemplateConstant, encodeError)
	}

	if mkdirError := os.MkdirAll(filepath.Dir(settingsPath), settingsDirectoryPermsConstant); mkdirError != nil {
		return fmt.Errorf(settingsMkdirErrorTemplateConstant, mkdirError)
	}

	if writeError := os.WriteFile(settingsPath, encodedSettings, settingsFilePermsConstant); writeError != nil {
		return fmt.Errorf(settingsWriteErrorTemplateConstant, writeError)
	}
	return nil
}
