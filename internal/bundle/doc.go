// Package bundle defines the unit of trackable configuration: a named group
// of config-file mappings plus metadata about an associated package, and the
// YAML descriptor codec that serializes a bundle into the repository.
package bundle
