// Package workingcopy owns the single on-disk clone of the tracked remote
// repository. It exposes open-or-clone, pull, commit, push, and the
// push-with-credential-retry protocol, reporting failures as a closed set of
// SyncError kinds, and appends pushed credentials to the git credential store.
package workingcopy
