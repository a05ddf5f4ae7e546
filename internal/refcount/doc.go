// Package refcount persists the set of processes that depend on a shared
// backend resource.
//
// The store is a plain text file holding one positive PID per line.
// Every read prunes PIDs that are no longer alive, so dependents that
// crashed without deregistering are forgotten on the next access. An
// empty set is never written: the file is removed instead.
//
// Read-modify-write sequences (Add, Remove, Update) are serialized across
// processes with an advisory flock on a hidden sidecar file next to the
// state file. Plain Read and Write take no lock.
package refcount
