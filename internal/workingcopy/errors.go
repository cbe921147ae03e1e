package workingcopy

import (
	"errors"
	"fmt"
)

const (
	syncErrorWithCauseTemplateConstant    = "%s: %s"
	syncErrorWithoutCauseTemplateConstant = "%s"
)

// SyncErrorKind enumerates the closed set of synchronization failure kinds.
type SyncErrorKind string

// Synchronization failure kinds callers branch on.
const (
	SyncErrorRepoNotConfigured       SyncErrorKind = "repo_not_configured"
	SyncErrorOpenOrCloneFailed       SyncErrorKind = "open_or_clone_failed"
	SyncErrorPullFailed              SyncErrorKind = "pull_failed"
	SyncErrorCommitFailed            SyncErrorKind = "commit_failed"
	SyncErrorPushFailed              SyncErrorKind = "push_failed"
	SyncErrorCredentialPersistFailed SyncErrorKind = "credential_persist_failed"
	SyncErrorIoFailed                SyncErrorKind = "io_failed"
)

// SyncError is the tagged failure type crossing the synchronization boundary.
// Callers inspect Kind rather than the message text.
type SyncError struct {
	Kind    SyncErrorKind
	Message string
	Cause   error
}

// Error renders the human-readable failure description.
func (syncError *SyncError) Error() string {
	if syncError.Cause != nil {
		return fmt.Sprintf(syncErrorWithCauseTemplateConstant, syncError.Message, syncError.Cause)
	}
	return fmt.Sprintf(syncErrorWithoutCauseTemplateConstant, syncError.Message)
}

// Unwrap exposes the underlying cause for errors.Is and errors.As inspection.
func (syncError *SyncError) Unwrap() error {
	return syncError.Cause
}

// NewSyncError constructs a SyncError with the provided kind, message, and optional cause.
func NewSyncError(kind SyncErrorKind, message string, cause error) *SyncError {
	return &SyncError{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the SyncErrorKind from an error chain when one is present.
func KindOf(candidateError error) (SyncErrorKind, bool) {
	var syncError *SyncError
	if errors.As(candidateError, &syncError) {
		return syncError.Kind, true
	}
	return "", false
}
