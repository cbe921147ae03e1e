package workingcopy

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dotkeep/dotkeep/internal/execshell"
)

const (
	gitConfigSubcommandConstant           = "config"
	gitConfigGlobalFlagConstant           = "--global"
	gitCredentialHelperKeyConstant        = "credential.helper"
	gitCredentialHelperStoreValueConstant = "store"

	credentialStoreFilePermissionsConstant      = 0o600
	credentialStoreDirectoryPermissionsConstant = 0o700
	credentialStoreEntrySuffixConstant          = "\n"

	credentialStorePathMissingMessageConstant   = "credential store path not configured"
	credentialStoreEntryFailedMessageConstant   = "failed to derive credential store entry"
	credentialStoreAppendFailedMessageConstant  = "failed to append credentials to store"
	credentialHelperEnableFailedMessageConstant = "failed to enable the stored credential helper"

	logFieldCredentialHostConstant         = "credential_host"
	credentialsPersistedLogMessageConstant = "persisted credentials to store"
)

// SaveCredentials appends an entry binding the remote host to the given
// credentials in the credential store file, then configures git to consult the
// store automatically. Either step failing yields SyncErrorCredentialPersistFailed.
func (manager *Manager) SaveCredentials(executionContext context.Context, handle *RepositoryHandle, credentials Credentials) error {
	if len(strings.TrimSpace(manager.credentialStorePath)) == 0 {
		return NewSyncError(SyncErrorCredentialPersistFailed, credentialStorePathMissingMessageConstant, nil)
	}

	remoteURL, remoteURLError := manager.resolveRemoteURL(executionContext, handle)
	if remoteURLError != nil {
		return NewSyncError(SyncErrorCredentialPersistFailed, remoteURLResolutionFailedMessageConstant, remoteURLError)
	}

	storeEntry, entryError := credentialStoreEntry(remoteURL, credentials)
	if entryError != nil {
		return NewSyncError(SyncErrorCredentialPersistFailed, credentialStoreEntryFailedMessageConstant, entryError)
	}

	if appendError := appendCredentialStoreLine(manager.credentialStorePath, storeEntry); appendError != nil {
		return NewSyncError(SyncErrorCredentialPersistFailed, credentialStoreAppendFailedMessageConstant, appendError)
	}

	_, helperError := manager.executeGit(executionContext, execshell.CommandDetails{
		Arguments: []string{gitConfigSubcommandConstant, gitConfigGlobalFlagConstant, gitCredentialHelperKeyConstant, gitCredentialHelperStoreValueConstant},
	})
	if helperError != nil {
		return NewSyncError(SyncErrorCredentialPersistFailed, credentialHelperEnableFailedMessageConstant, helperError)
	}

	manager.logger.Info(credentialsPersistedLogMessageConstant, zap.String(logFieldCredentialHostConstant, hostOf(remoteURL)))
	return nil
}

func credentialStoreEntry(remoteURL string, credentials Credentials) (string, error) {
	parsedURL, parseError := url.Parse(remoteURL)
	if parseError != nil {
		return "", parseError
	}
	if parsedURL.Scheme != httpsURLSchemeConstant && parsedURL.Scheme != httpURLSchemeConstant {
		return "", errors.New(httpsRemoteRequiredMessageConstant)
	}
	entryURL := url.URL{
		Scheme: parsedURL.Scheme,
		User:   url.UserPassword(credentials.Username, credentials.Token),
		Host:   parsedURL.Host,
	}
	return entryURL.String(), nil
}

func appendCredentialStoreLine(storePath string, storeEntry string) error {
	if mkdirError := os.MkdirAll(filepath.Dir(storePath), credentialStoreDirectoryPermissionsConstant); mkdirError != nil {
		return mkdirError
	}

	storeFile, openError := os.OpenFile(storePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, credentialStoreFilePermissionsConstant)
	if openError != nil {
		return openError
	}

	_, writeError := storeFile.WriteString(storeEntry + credentialStoreEntrySuffixConstant)
	closeError := storeFile.Close()
	if writeError != nil {
		return writeError
	}
	return closeError
}

func hostOf(remoteURL string) string {
	parsedURL, parseError := url.Parse(remoteURL)
	if parseError != nil {
		return remoteURL
	}
	return parsedURL.Host
}
