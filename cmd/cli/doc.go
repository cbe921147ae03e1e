// Package cli assembles the dotkeep command-line application: the cobra
// command hierarchy, configuration loading, and structured logging.
package cli
