package bundle_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotkeep/dotkeep/internal/bundle"
)

const (
	testWorkingCopyRootConstant       = "/home/user/.dotkeep/repository"
	testDescriptorDocumentConstant    = "name: i3\nsource: official\nconfigFiles:\n  - destinationPath: i3/config\n"
	testCorruptDescriptorConstant     = "name: [unterminated"
	testNamelessDescriptorConstant    = "source: official\nconfigFiles: []\n"
	testSourcelessDescriptorConstant  = "name: vim\nconfigFiles: []\n"
)

func TestDescriptorPathUsesPackageDirectory(testInstance *testing.T) {
	trackedBundle := bundle.Bundle{
		Name: "i3",
		ConfigFiles: []bundle.ConfigFileMapping{
			{DestinationPath: "i3/config"},
		},
	}

	expectedPath := filepath.Join(testWorkingCopyRootConstant, "i3", bundle.DescriptorFileName)
	require.Equal(testInstance, expectedPath, bundle.DescriptorPath(testWorkingCopyRootConstant, trackedBundle))
}

func TestDescriptorPathFallsBackToBundleName(testInstance *testing.T) {
	trackedBundle := bundle.Bundle{Name: "htop"}

	expectedPath := filepath.Join(testWorkingCopyRootConstant, "htop", bundle.DescriptorFileName)
	require.Equal(testInstance, expectedPath, bundle.DescriptorPath(testWorkingCopyRootConstant, trackedBundle))
}

func TestDescriptorRoundTripPreservesBundle(testInstance *testing.T) {
	originalBundle := bundle.Bundle{
		Name:        "neovim",
		Source:      bundle.AURSourceTag,
		Description: "editor configuration",
		ConfigFiles: []bundle.ConfigFileMapping{
			{SourcePath: "/home/user/.config/nvim/init.lua", DestinationPath: "nvim/init.lua", Description: "entry point"},
			{SourcePath: "/home/user/.config/nvim/lua/keymaps.lua", DestinationPath: "nvim/lua/keymaps.lua"},
		},
	}

	encodedDescriptor, encodeError := bundle.EncodeDescriptor(originalBundle)
	require.NoError(testInstance, encodeError)

	decodedBundle, decodeError := bundle.DecodeDescriptor(encodedDescriptor)
	require.NoError(testInstance, decodeError)
	require.Equal(testInstance, originalBundle, decodedBundle)
}

func TestDecodeDescriptorDocument(testInstance *testing.T) {
	decodedBundle, decodeError := bundle.DecodeDescriptor([]byte(testDescriptorDocumentConstant))
	require.NoError(testInstance, decodeError)
	require.Equal(testInstance, "i3", decodedBundle.Name)
	require.Equal(testInstance, bundle.OfficialSourceTag, decodedBundle.Source)
	require.Len(testInstance, decodedBundle.ConfigFiles, 1)
	require.Equal(testInstance, "i3/config", decodedBundle.ConfigFiles[0].DestinationPath)
}

func TestDecodeDescriptorRejectsCorruptDocument(testInstance *testing.T) {
	_, decodeError := bundle.DecodeDescriptor([]byte(testCorruptDescriptorConstant))
	require.Error(testInstance, decodeError)
}

func TestDecodeDescriptorRejectsMissingName(testInstance *testing.T) {
	_, decodeError := bundle.DecodeDescriptor([]byte(testNamelessDescriptorConstant))
	require.ErrorIs(testInstance, decodeError, bundle.ErrDescriptorNameMissing)
}

func TestDecodeDescriptorDefaultsSourceTag(testInstance *testing.T) {
	decodedBundle, decodeError := bundle.DecodeDescriptor([]byte(testSourcelessDescriptorConstant))
	require.NoError(testInstance, decodeError)
	require.Equal(testInstance, bundle.OfficialSourceTag, decodedBundle.Source)
}
