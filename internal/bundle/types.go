package bundle

import (
	"path"
	"strings"
)

const (
	// DescriptorFileName is the descriptor document stored inside each package directory.
	DescriptorFileName = "package.yaml"
	// OfficialSourceTag marks bundles whose package installs from the official repositories.
	OfficialSourceTag = "official"
	// AURSourceTag marks bundles whose package installs through an AUR helper.
	AURSourceTag = "aur"

	repositoryPathSeparatorConstant = "/"
)

// ConfigFileMapping pairs an absolute host source path with a repository-relative destination path.
type ConfigFileMapping struct {
	SourcePath      string `yaml:"sourcePath"`
	DestinationPath string `yaml:"destinationPath"`
	Description     string `yaml:"description,omitempty"`
}

// Bundle is the unit of trackable configuration synchronized with the repository.
type Bundle struct {
	Name        string              `yaml:"name"`
	Source      string              `yaml:"source"`
	Description string              `yaml:"description,omitempty"`
	ConfigFiles []ConfigFileMapping `yaml:"configFiles"`
}

// PackageDirectory derives the repository directory holding the bundle's files and descriptor.
// It is the top-level segment of the first mapping's destination path, or the bundle name when
// no mappings exist.
func (trackedBundle Bundle) PackageDirectory() string {
	for _, mapping := range trackedBundle.ConfigFiles {
		normalizedDestination := strings.Trim(path.Clean(strings.TrimSpace(mapping.DestinationPath)), repositoryPathSeparatorConstant)
		if len(normalizedDestination) == 0 || normalizedDestination == "." {
			continue
		}
		segments := strings.SplitN(normalizedDestination, repositoryPathSeparatorConstant, 2)
		return segments[0]
	}
	return trackedBundle.Name
}

// Upsert replaces the bundle with a matching name in place or appends when no match exists.
func Upsert(bundles []Bundle, candidate Bundle) []Bundle {
	for bundleIndex, existingBundle := range bundles {
		if existingBundle.Name == candidate.Name {
			bundles[bundleIndex] = candidate
			return bundles
		}
	}
	return append(bundles, candidate)
}
