package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	defaultWorkingDirectoryLabelConstant    = "current directory"
)

const (
	gitCloneSubcommandNameConstant  = "clone"
	gitPullSubcommandNameConstant   = "pull"
	gitAddSubcommandNameConstant    = "add"
	gitCommitSubcommandNameConstant = "commit"
	gitPushSubcommandNameConstant   = "push"
	gitConfigSubcommandNameConstant = "config"
	gitRemoteSubcommandNameConstant = "remote"
	gitMessageFlagConstant          = "-m"
)

const (
	gitCloneStartTemplateConstant             = "Cloning %s into %s"
	gitCloneSuccessTemplateConstant           = "Cloned %s into %s"
	gitCloneFailureTemplateConstant           = "Failed to clone %s into %s (exit code %d%s)"
	gitCloneExecutionFailureTemplateConstant  = "Unable to clone %s into %s: %s"
	gitPullStartTemplateConstant              = "Pulling latest changes in %s"
	gitPullSuccessTemplateConstant            = "Pulled latest changes in %s"
	gitPullFailureTemplateConstant            = "Failed to pull latest changes in %s (exit code %d%s)"
	gitPullExecutionFailureTemplateConstant   = "Unable to pull latest changes in %s: %s"
	gitAddStartTemplateConstant               = "Staging changes in %s"
	gitAddSuccessTemplateConstant             = "Staged changes in %s"
	gitAddFailureTemplateConstant             = "Failed to stage changes in %s (exit code %d%s)"
	gitAddExecutionFailureTemplateConstant    = "Unable to stage changes in %s: %s"
	gitCommitStartTemplateConstant            = "Creating commit in %s with message %q"
	gitCommitSuccessTemplateConstant          = "Created commit in %s with message %q"
	gitCommitFailureTemplateConstant          = "Failed to create commit in %s with message %q (exit code %d%s)"
	gitCommitExecutionFailureTemplateConstant = "Unable to create commit in %s with message %q: %s"
	gitPushStartTemplateConstant              = "Pushing changes from %s"
	gitPushSuccessTemplateConstant            = "Pushed changes from %s"
	gitPushFailureTemplateConstant            = "Failed to push changes from %s (exit code %d%s)"
	gitPushExecutionFailureTemplateConstant   = "Unable to push changes from %s: %s"
	gitConfigStartTemplateConstant            = "Updating git configuration %s"
	gitConfigSuccessTemplateConstant          = "Updated git configuration %s"
	gitConfigFailureTemplateConstant          = "Failed to update git configuration %s (exit code %d%s)"
	gitConfigExecutionFailureTemplateConstant = "Unable to update git configuration %s: %s"
	gitRemoteStartTemplateConstant            = "Reading remote configuration in %s"
	gitRemoteSuccessTemplateConstant          = "Read remote configuration in %s"
	gitRemoteFailureTemplateConstant          = "Failed to read remote configuration in %s (exit code %d%s)"
	gitRemoteExecutionFailureTemplateConstant = "Unable to read remote configuration in %s: %s"
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if command.Name == CommandGit {
		return formatter.describeGitMessage(command, result, failure, stage)
	}
	return formatter.buildGenericMessage(command, result, failure, stage)
}

func (formatter CommandMessageFormatter) describeGitMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if len(command.Details.Arguments) == 0 {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	workingDirectory := formatter.describeWorkingDirectory(command)
	subcommand := strings.TrimSpace(command.Details.Arguments[0])

	switch subcommand {
	case gitCloneSubcommandNameConstant:
		remote, destination := formatter.extractCloneSourceAndDestination(command.Details.Arguments)
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitCloneStartTemplateConstant, remote, destination)
		case messageStageSuccess:
			return fmt.Sprintf(gitCloneSuccessTemplateConstant, remote, destination)
		case messageStageFailure:
			return fmt.Sprintf(gitCloneFailureTemplateConstant, remote, destination, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		default:
			return fmt.Sprintf(gitCloneExecutionFailureTemplateConstant, remote, destination, formatter.describeFailure(failure))
		}
	case gitPullSubcommandNameConstant:
		return formatter.formatSingleSubjectMessage(stage, workingDirectory, result, failure,
			gitPullStartTemplateConstant, gitPullSuccessTemplateConstant, gitPullFailureTemplateConstant, gitPullExecutionFailureTemplateConstant)
	case gitAddSubcommandNameConstant:
		return formatter.formatSingleSubjectMessage(stage, workingDirectory, result, failure,
			gitAddStartTemplateConstant, gitAddSuccessTemplateConstant, gitAddFailureTemplateConstant, gitAddExecutionFailureTemplateConstant)
	case gitCommitSubcommandNameConstant:
		commitMessage := formatter.extractCommitMessage(command.Details.Arguments)
		switch stage {
		case messageStageStart:
			return fmt.Sprintf(gitCommitStartTemplateConstant, workingDirectory, commitMessage)
		case messageStageSuccess:
			return fmt.Sprintf(gitCommitSuccessTemplateConstant, workingDirectory, commitMessage)
		case messageStageFailure:
			return fmt.Sprintf(gitCommitFailureTemplateConstant, workingDirectory, commitMessage, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
		default:
			return fmt.Sprintf(gitCommitExecutionFailureTemplateConstant, workingDirectory, commitMessage, formatter.describeFailure(failure))
		}
	case gitPushSubcommandNameConstant:
		return formatter.formatSingleSubjectMessage(stage, workingDirectory, result, failure,
			gitPushStartTemplateConstant, gitPushSuccessTemplateConstant, gitPushFailureTemplateConstant, gitPushExecutionFailureTemplateConstant)
	case gitConfigSubcommandNameConstant:
		configurationKey := formatter.extractFirstNonFlagArgument(command.Details.Arguments[1:])
		return formatter.formatSingleSubjectMessage(stage, configurationKey, result, failure,
			gitConfigStartTemplateConstant, gitConfigSuccessTemplateConstant, gitConfigFailureTemplateConstant, gitConfigExecutionFailureTemplateConstant)
	case gitRemoteSubcommandNameConstant:
		return formatter.formatSingleSubjectMessage(stage, workingDirectory, result, failure,
			gitRemoteStartTemplateConstant, gitRemoteSuccessTemplateConstant, gitRemoteFailureTemplateConstant, gitRemoteExecutionFailureTemplateConstant)
	default:
		return formatter.buildGenericMessage(command, result, failure, stage)
	}
}

func (formatter CommandMessageFormatter) formatSingleSubjectMessage(stage messageStage, subject string, result ExecutionResult, failure error, startTemplate string, successTemplate string, failureTemplate string, executionFailureTemplate string) string {
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(startTemplate, subject)
	case messageStageSuccess:
		return fmt.Sprintf(successTemplate, subject)
	case messageStageFailure:
		return fmt.Sprintf(failureTemplate, subject, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(executionFailureTemplate, subject, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	default:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandParts := []string{string(command.Name)}
	if len(command.Details.Arguments) > 0 {
		commandParts = append(commandParts, strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant))
	}
	commandLabel := strings.Join(commandParts, commandArgumentsJoinSeparatorConstant)
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, formatter.formatWorkingDirectorySuffix(command))
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) extractCloneSourceAndDestination(arguments []string) (string, string) {
	positionalArguments := []string{}
	for _, argument := range arguments[1:] {
		if strings.HasPrefix(argument, "-") {
			continue
		}
		positionalArguments = append(positionalArguments, argument)
	}
	remote := defaultWorkingDirectoryLabelConstant
	destination := defaultWorkingDirectoryLabelConstant
	if len(positionalArguments) > 0 {
		remote = positionalArguments[0]
	}
	if len(positionalArguments) > 1 {
		destination = positionalArguments[1]
	}
	return remote, destination
}

func (formatter CommandMessageFormatter) extractCommitMessage(arguments []string) string {
	for argumentIndex, argument := range arguments {
		if argument == gitMessageFlagConstant && argumentIndex+1 < len(arguments) {
			return arguments[argumentIndex+1]
		}
	}
	return emptyStringConstant
}

func (formatter CommandMessageFormatter) extractFirstNonFlagArgument(arguments []string) string {
	for _, argument := range arguments {
		if strings.HasPrefix(argument, "-") {
			continue
		}
		return argument
	}
	return emptyStringConstant
}
