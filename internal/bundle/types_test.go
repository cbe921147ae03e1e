package bundle_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotkeep/dotkeep/internal/bundle"
)

const (
	testFirstMappingCaseNameConstant    = "first_mapping_top_segment"
	testNestedMappingCaseNameConstant   = "nested_destination"
	testNoMappingsCaseNameConstant      = "no_mappings_uses_name"
	testEmptyDestinationCaseNameConstant = "empty_destination_skipped"
	testBundleNameConstant              = "i3"
)

func TestBundlePackageDirectory(testInstance *testing.T) {
	testCases := []struct {
		name              string
		trackedBundle     bundle.Bundle
		expectedDirectory string
	}{
		{
			name: testFirstMappingCaseNameConstant,
			trackedBundle: bundle.Bundle{
				Name: testBundleNameConstant,
				ConfigFiles: []bundle.ConfigFileMapping{
					{SourcePath: "/home/user/.config/i3/config", DestinationPath: "i3/config"},
				},
			},
			expectedDirectory: "i3",
		},
		{
			name: testNestedMappingCaseNameConstant,
			trackedBundle: bundle.Bundle{
				Name: "neovim",
				ConfigFiles: []bundle.ConfigFileMapping{
					{SourcePath: "/home/user/.config/nvim/lua/init.lua", DestinationPath: "nvim/lua/init.lua"},
				},
			},
			expectedDirectory: "nvim",
		},
		{
			name:              testNoMappingsCaseNameConstant,
			trackedBundle:     bundle.Bundle{Name: "htop"},
			expectedDirectory: "htop",
		},
		{
			name: testEmptyDestinationCaseNameConstant,
			trackedBundle: bundle.Bundle{
				Name: "zsh",
				ConfigFiles: []bundle.ConfigFileMapping{
					{SourcePath: "/home/user/.zshrc", DestinationPath: ""},
					{SourcePath: "/home/user/.zshenv", DestinationPath: "zsh/.zshenv"},
				},
			},
			expectedDirectory: "zsh",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expectedDirectory, testCase.trackedBundle.PackageDirectory())
		})
	}
}

func TestUpsertReplacesMatchingNameInPlace(testInstance *testing.T) {
	originalBundles := []bundle.Bundle{
		{Name: "vim", Source: bundle.OfficialSourceTag},
		{Name: "i3", Source: bundle.OfficialSourceTag, Description: "window manager"},
	}

	replacement := bundle.Bundle{Name: "i3", Source: bundle.AURSourceTag, Description: "updated"}
	updatedBundles := bundle.Upsert(originalBundles, replacement)

	require.Len(testInstance, updatedBundles, 2)
	require.Equal(testInstance, replacement, updatedBundles[1])
	require.Equal(testInstance, "vim", updatedBundles[0].Name)
}

func TestUpsertAppendsUnknownName(testInstance *testing.T) {
	originalBundles := []bundle.Bundle{{Name: "vim"}}
	updatedBundles := bundle.Upsert(originalBundles, bundle.Bundle{Name: "tmux"})

	require.Len(testInstance, updatedBundles, 2)
	require.Equal(testInstance, "tmux", updatedBundles[1].Name)
}
