// Package deviceconfig loads and saves the device-local settings document
// binding the remote repository URL to the bundles tracked on this host.
package deviceconfig
