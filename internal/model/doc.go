// Package model defines the domain types and value objects for the
// tinyorch CLI.
//
// This package contains pure data structures with no external dependencies.
// The Docker-host types (BackendKind, MachineState, Env, Sizing) describe
// what the provisioner produces; the only persisted state is the plain-text
// dependent list owned by the refcount package.
//
// The package also defines exit codes (ExitCode), a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling,
// and the sentinel errors that classify hard provisioning failures.
package model
