package bundle

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	descriptorEncodeErrorTemplateConstant = "failed to encode bundle descriptor: %w"
	descriptorDecodeErrorTemplateConstant = "failed to decode bundle descriptor: %w"
	descriptorNameMissingMessageConstant  = "bundle descriptor is missing a name"
)

// ErrDescriptorNameMissing indicates a decoded descriptor did not declare a bundle name.
var ErrDescriptorNameMissing = errors.New(descriptorNameMissingMessageConstant)

// DescriptorPath computes the descriptor location for a bundle inside the working copy.
func DescriptorPath(workingCopyRoot string, trackedBundle Bundle) string {
	return filepath.Join(workingCopyRoot, trackedBundle.PackageDirectory(), DescriptorFileName)
}

// EncodeDescriptor serializes a bundle into its on-disk YAML descriptor form.
func EncodeDescriptor(trackedBundle Bundle) ([]byte, error) {
	encodedDescriptor, encodeError := yaml.Marshal(trackedBundle)
	if encodeError != nil {
		return nil, fmt.Errorf(descriptorEncodeErrorTemplateConstant, encodeError)
	}
	return encodedDescriptor, nil
}

// DecodeDescriptor reconstructs a bundle from its on-disk YAML descriptor form.
// Bundles without an explicit source tag default to the official repositories.
func DecodeDescriptor(descriptorContent []byte) (Bundle, error) {
	var decodedBundle Bundle
	if decodeError := yaml.Unmarshal(descriptorContent, &decodedBundle); decodeError != nil {
		return Bundle{}, fmt.Errorf(descriptorDecodeErrorTemplateConstant, decodeError)
	}

	if len(strings.TrimSpace(decodedBundle.Name)) == 0 {
		return Bundle{}, ErrDescriptorNameMissing
	}
	if len(strings.TrimSpace(decodedBundle.Source)) == 0 {
		decodedBundle.Source = OfficialSourceTag
	}

	return decodedBundle, nil
}
