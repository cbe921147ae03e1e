// Package execshell provides structured helpers for invoking external tools.
//
// It wraps os/exec with logging via ShellExecutor, exposes OSCommandRunner
// for default process execution, and defines the abstractions dotkeep uses to
// run git and package-manager binaries in a testable manner.
package execshell
