package execshell

import "context"

// CommandName identifies an external executable invoked by the application.
type CommandName string

// Supported external executables.
const (
	// CommandGit names the git executable used for working-copy operations.
	CommandGit CommandName = "git"
	// CommandPacman names the official repository package manager.
	CommandPacman CommandName = "pacman"
)

// CommandDetails describes the invocation parameters for a shell command.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
}

// ShellCommand couples an executable name with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable outcome of a completed command.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner abstracts process execution for testability.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}
