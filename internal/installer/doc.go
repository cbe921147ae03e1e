// Package installer installs, removes, and queries OS packages associated
// with tracked bundles, driving pacman and an optional AUR helper.
package installer
