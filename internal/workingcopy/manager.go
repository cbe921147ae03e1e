package workingcopy

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dotkeep/dotkeep/internal/execshell"
)

const (
	gitMetadataDirectoryNameConstant            = ".git"
	gitCloneSubcommandConstant                  = "clone"
	gitPullSubcommandConstant                   = "pull"
	gitAddSubcommandConstant                    = "add"
	gitAddAllFlagConstant                       = "--all"
	gitCommitSubcommandConstant                 = "commit"
	gitMessageFlagConstant                      = "-m"
	gitPushSubcommandConstant                   = "push"
	gitHeadReferenceConstant                    = "HEAD"
	gitRemoteSubcommandConstant                 = "remote"
	gitRemoteGetURLSubcommandConstant           = "get-url"
	gitOriginRemoteNameConstant                 = "origin"
	gitTerminalPromptEnvironmentNameConstant    = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptEnvironmentDisableConstant = "0"

	httpsURLSchemeConstant = "https"
	httpURLSchemeConstant  = "http"

	workingCopyDirectoryPermissionsConstant = 0o755

	gitExecutorMissingMessageConstant        = "git executor not configured"
	remoteNotConfiguredMessageConstant       = "no remote repository configured"
	handleAlreadyOpenMessageConstant         = "working copy is already open"
	handleReleasedMessageConstant            = "repository handle has been released"
	createLocalRootFailedMessageConstant     = "failed to create working copy directory"
	cloneFailedMessageConstant               = "failed to clone remote repository"
	pullFailedMessageConstant                = "failed to pull from remote repository"
	stageFailedMessageConstant               = "failed to stage working copy changes"
	commitFailedMessageConstant              = "failed to commit working copy changes"
	pushFailedMessageConstant                = "failed to push to remote repository"
	credentialedPushFailedMessageConstant    = "failed to push with supplied credentials"
	emptyCredentialsMessageConstant          = "empty credentials"
	httpsRemoteRequiredMessageConstant       = "credential authentication requires an https remote"
	remoteURLResolutionFailedMessageConstant = "failed to resolve remote url"

	nothingToCommitOutputFragmentConstant = "nothing to commit"
	nothingAddedOutputFragmentConstant    = "nothing added to commit"
	cleanWorktreeOutputFragmentConstant   = "working tree clean"

	logFieldWorkingCopyRootConstant          = "working_copy_root"
	logFieldRemoteURLConstant                = "remote_url"
	logFieldCommitMessageConstant            = "commit_message"
	clonedRepositoryLogMessageConstant       = "cloned remote repository"
	emptyCommitTreatedAsSuccessLogConstant   = "no staged changes, treating commit as a no-op success"
	credentialRetryStartedLogMessageConstant = "ambient push failed, attempting credential retry"
)

// ErrGitExecutorNotConfigured indicates the manager was constructed without a git executor.
var ErrGitExecutorNotConfigured = errors.New(gitExecutorMissingMessageConstant)

// GitExecutor exposes the subset of shell execution used by the working-copy manager.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Credentials is a username/token pair supplied for a single push attempt.
type Credentials struct {
	Username string
	Token    string
}

// CredentialProvider supplies credentials for the single push retry. It may
// block on interactive input; returning false means no credentials are available.
type CredentialProvider func() (Credentials, bool)

// PushOutcome reports the result of a successful push sequence. PersistenceWarning
// is populated when the push went through but persisting credentials failed,
// a state callers must distinguish from an outright push failure.
type PushOutcome struct {
	PersistenceWarning *SyncError
}

// Dependencies enumerates the collaborators required by the Manager.
type Dependencies struct {
	GitExecutor         GitExecutor
	Logger              *zap.Logger
	CredentialStorePath string
}

// Manager coordinates all operations against the on-disk working copy.
type Manager struct {
	executor            GitExecutor
	logger              *zap.Logger
	credentialStorePath string
	openRootsGuard      sync.Mutex
	openRoots           map[string]struct{}
}

// NewManager constructs a Manager after validating its dependencies.
func NewManager(dependencies Dependencies) (*Manager, error) {
	if dependencies.GitExecutor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		executor:            dependencies.GitExecutor,
		logger:              logger,
		credentialStorePath: dependencies.CredentialStorePath,
		openRoots:           map[string]struct{}{},
	}, nil
}

// DefaultCredentialStorePath resolves the conventional git credential store location.
func DefaultCredentialStorePath(homeDirectory string) string {
	return filepath.Join(homeDirectory, ".git-credentials")
}

// OpenOrClone opens an existing working copy at localRoot or clones remoteURL into it.
// A root with existing version-control metadata is opened without re-validating the
// configured remote. An empty remote URL without existing metadata fails with
// SyncErrorRepoNotConfigured.
func (manager *Manager) OpenOrClone(executionContext context.Context, remoteURL string, localRoot string) (*RepositoryHandle, error) {
	if acquisitionError := manager.acquireRoot(localRoot); acquisitionError != nil {
		return nil, acquisitionError
	}

	handle := &RepositoryHandle{
		localRoot:   localRoot,
		remoteURL:   strings.TrimSpace(remoteURL),
		releaseFunc: func() { manager.releaseRoot(localRoot) },
	}

	metadataPath := filepath.Join(localRoot, gitMetadataDirectoryNameConstant)
	if _, statError := os.Stat(metadataPath); statError == nil {
		return handle, nil
	}

	if len(handle.remoteURL) == 0 {
		handle.Release()
		return nil, NewSyncError(SyncErrorRepoNotConfigured, remoteNotConfiguredMessageConstant, nil)
	}

	if mkdirError := os.MkdirAll(filepath.Dir(localRoot), workingCopyDirectoryPermissionsConstant); mkdirError != nil {
		handle.Release()
		return nil, NewSyncError(SyncErrorIoFailed, createLocalRootFailedMessageConstant, mkdirError)
	}

	_, cloneError := manager.executeGit(executionContext, execshell.CommandDetails{
		Arguments: []string{gitCloneSubcommandConstant, handle.remoteURL, localRoot},
	})
	if cloneError != nil {
		handle.Release()
		return nil, NewSyncError(SyncErrorOpenOrCloneFailed, cloneFailedMessageConstant, cloneError)
	}

	manager.logger.Info(
		clonedRepositoryLogMessageConstant,
		zap.String(logFieldRemoteURLConstant, handle.remoteURL),
		zap.String(logFieldWorkingCopyRootConstant, localRoot),
	)

	return handle, nil
}

// WithRepository opens the working copy, invokes the operation, and releases the
// handle on every exit path.
func (manager *Manager) WithRepository(executionContext context.Context, remoteURL string, localRoot string, operation func(handle *RepositoryHandle) error) error {
	handle, openError := manager.OpenOrClone(executionContext, remoteURL, localRoot)
	if openError != nil {
		return openError
	}
	defer handle.Release()
	return operation(handle)
}

// Pull fetches and merges from the remote's configured branch. Failures are
// reported as SyncErrorPullFailed and never retried.
func (manager *Manager) Pull(executionContext context.Context, handle *RepositoryHandle) error {
	if handleError := manager.requireOpenHandle(handle, SyncErrorPullFailed); handleError != nil {
		return handleError
	}

	_, pullError := manager.executeGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitPullSubcommandConstant},
		WorkingDirectory: handle.localRoot,
	})
	if pullError != nil {
		return NewSyncError(SyncErrorPullFailed, pullFailedMessageConstant, pullError)
	}
	return nil
}

// Commit stages all working-copy changes, deletions included, and creates a commit.
// A commit attempt against an unchanged tree is treated as a no-op success so the
// surrounding push sequence decides the outcome.
func (manager *Manager) Commit(executionContext context.Context, handle *RepositoryHandle, message string) error {
	if handleError := manager.requireOpenHandle(handle, SyncErrorCommitFailed); handleError != nil {
		return handleError
	}

	_, stageError := manager.executeGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitAddSubcommandConstant, gitAddAllFlagConstant},
		WorkingDirectory: handle.localRoot,
	})
	if stageError != nil {
		return NewSyncError(SyncErrorCommitFailed, stageFailedMessageConstant, stageError)
	}

	commitResult, commitError := manager.executeGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitCommitSubcommandConstant, gitMessageFlagConstant, message},
		WorkingDirectory: handle.localRoot,
	})
	if commitError != nil {
		if isEmptyCommitResult(commitResult) {
			manager.logger.Debug(
				emptyCommitTreatedAsSuccessLogConstant,
				zap.String(logFieldWorkingCopyRootConstant, handle.localRoot),
				zap.String(logFieldCommitMessageConstant, message),
			)
			return nil
		}
		return NewSyncError(SyncErrorCommitFailed, commitFailedMessageConstant, commitError)
	}
	return nil
}

// Push attempts to push the current branch to its remote. When credentials are
// provided the push targets the https remote URL with the username/token embedded
// for this single attempt; otherwise ambient authentication applies.
func (manager *Manager) Push(executionContext context.Context, handle *RepositoryHandle, credentials *Credentials) error {
	if handleError := manager.requireOpenHandle(handle, SyncErrorPushFailed); handleError != nil {
		return handleError
	}

	pushArguments := []string{gitPushSubcommandConstant}
	if credentials != nil {
		remoteURL, remoteURLError := manager.resolveRemoteURL(executionContext, handle)
		if remoteURLError != nil {
			return remoteURLError
		}
		credentialedURL, embedError := embedCredentialsInRemoteURL(remoteURL, *credentials)
		if embedError != nil {
			return NewSyncError(SyncErrorPushFailed, embedError.Error(), nil)
		}
		pushArguments = append(pushArguments, credentialedURL, gitHeadReferenceConstant)
	}

	_, pushError := manager.executeGit(executionContext, execshell.CommandDetails{
		Arguments:        pushArguments,
		WorkingDirectory: handle.localRoot,
	})
	if pushError != nil {
		failureMessage := pushFailedMessageConstant
		if credentials != nil {
			failureMessage = credentialedPushFailedMessageConstant
		}
		return NewSyncError(SyncErrorPushFailed, failureMessage, pushError)
	}
	return nil
}

// PushWithCommitAndRetry commits and pushes with at most one credential retry:
// commit, ambient push, then a single credentialed push when a provider is
// available, optionally persisting the credentials after the retry succeeds.
// A persistence failure after a successful push surfaces as a warning on the
// outcome, never as a push failure.
func (manager *Manager) PushWithCommitAndRetry(executionContext context.Context, handle *RepositoryHandle, message string, credentialProvider CredentialProvider, persistOnSuccess bool) (PushOutcome, error) {
	if commitError := manager.Commit(executionContext, handle, message); commitError != nil {
		return PushOutcome{}, commitError
	}

	ambientPushError := manager.Push(executionContext, handle, nil)
	if ambientPushError == nil {
		return PushOutcome{}, nil
	}

	if credentialProvider == nil {
		return PushOutcome{}, ambientPushError
	}

	manager.logger.Info(credentialRetryStartedLogMessageConstant, zap.String(logFieldWorkingCopyRootConstant, handle.localRoot))

	suppliedCredentials, credentialsAvailable := credentialProvider()
	if !credentialsAvailable {
		return PushOutcome{}, ambientPushError
	}

	if len(strings.TrimSpace(suppliedCredentials.Username)) == 0 || len(strings.TrimSpace(suppliedCredentials.Token)) == 0 {
		return PushOutcome{}, NewSyncError(SyncErrorPushFailed, emptyCredentialsMessageConstant, nil)
	}

	if credentialedPushError := manager.Push(executionContext, handle, &suppliedCredentials); credentialedPushError != nil {
		return PushOutcome{}, credentialedPushError
	}

	if !persistOnSuccess {
		return PushOutcome{}, nil
	}

	if persistError := manager.SaveCredentials(executionContext, handle, suppliedCredentials); persistError != nil {
		var persistSyncError *SyncError
		if !errors.As(persistError, &persistSyncError) {
			persistSyncError = NewSyncError(SyncErrorCredentialPersistFailed, persistError.Error(), persistError)
		}
		return PushOutcome{PersistenceWarning: persistSyncError}, nil
	}

	return PushOutcome{}, nil
}

func (manager *Manager) resolveRemoteURL(executionContext context.Context, handle *RepositoryHandle) (string, error) {
	if len(handle.remoteURL) > 0 {
		return handle.remoteURL, nil
	}

	lookupResult, lookupError := manager.executeGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRemoteSubcommandConstant, gitRemoteGetURLSubcommandConstant, gitOriginRemoteNameConstant},
		WorkingDirectory: handle.localRoot,
	})
	if lookupError != nil {
		return "", NewSyncError(SyncErrorPushFailed, remoteURLResolutionFailedMessageConstant, lookupError)
	}
	return strings.TrimSpace(lookupResult.StandardOutput), nil
}

func (manager *Manager) acquireRoot(localRoot string) error {
	manager.openRootsGuard.Lock()
	defer manager.openRootsGuard.Unlock()
	if _, alreadyOpen := manager.openRoots[localRoot]; alreadyOpen {
		return NewSyncError(SyncErrorOpenOrCloneFailed, handleAlreadyOpenMessageConstant, nil)
	}
	manager.openRoots[localRoot] = struct{}{}
	return nil
}

func (manager *Manager) releaseRoot(localRoot string) {
	manager.openRootsGuard.Lock()
	defer manager.openRootsGuard.Unlock()
	delete(manager.openRoots, localRoot)
}

func (manager *Manager) requireOpenHandle(handle *RepositoryHandle, failureKind SyncErrorKind) error {
	if handle == nil || !handle.IsOpen() {
		return NewSyncError(failureKind, handleReleasedMessageConstant, nil)
	}
	return nil
}

func (manager *Manager) executeGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	if details.EnvironmentVariables == nil {
		details.EnvironmentVariables = map[string]string{}
	}
	details.EnvironmentVariables[gitTerminalPromptEnvironmentNameConstant] = gitTerminalPromptEnvironmentDisableConstant
	return manager.executor.ExecuteGit(executionContext, details)
}

func isEmptyCommitResult(result execshell.ExecutionResult) bool {
	combinedOutput := strings.ToLower(result.StandardOutput + result.StandardError)
	return strings.Contains(combinedOutput, nothingToCommitOutputFragmentConstant) ||
		strings.Contains(combinedOutput, nothingAddedOutputFragmentConstant) ||
		strings.Contains(combinedOutput, cleanWorktreeOutputFragmentConstant)
}

func embedCredentialsInRemoteURL(remoteURL string, credentials Credentials) (string, error) {
	parsedURL, parseError := url.Parse(remoteURL)
	if parseError != nil {
		return "", parseError
	}
	if parsedURL.Scheme != httpsURLSchemeConstant && parsedURL.Scheme != httpURLSchemeConstant {
		return "", errors.New(httpsRemoteRequiredMessageConstant)
	}
	parsedURL.User = url.UserPassword(credentials.Username, credentials.Token)
	return parsedURL.String(), nil
}
