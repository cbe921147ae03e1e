// Package pathutils provides helpers for resolving user-relative filesystem paths.
package pathutils
