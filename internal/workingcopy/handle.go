package workingcopy

import "sync"

// RepositoryHandle represents an open, usable local working copy bound to one remote URL.
// A handle must be released on every exit path; Release is idempotent.
type RepositoryHandle struct {
	localRoot   string
	remoteURL   string
	releaseOnce sync.Once
	releaseFunc func()
	released    bool
}

// LocalRoot returns the filesystem root of the working copy.
func (handle *RepositoryHandle) LocalRoot() string {
	return handle.localRoot
}

// RemoteURL returns the remote URL the handle was opened against.
// It is empty when an existing working copy was opened without a configured remote.
func (handle *RepositoryHandle) RemoteURL() string {
	return handle.remoteURL
}

// IsOpen reports whether the handle has not yet been released.
func (handle *RepositoryHandle) IsOpen() bool {
	return handle != nil && !handle.released
}

// Release closes the handle and frees the working-copy root for subsequent opens.
func (handle *RepositoryHandle) Release() {
	if handle == nil {
		return
	}
	handle.releaseOnce.Do(func() {
		handle.released = true
		if handle.releaseFunc != nil {
			handle.releaseFunc()
		}
	})
}
