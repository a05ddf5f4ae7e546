// Package main is the entry point for the tinyorch CLI.
//
// This binary provides the helpers shell-driven jobs use: a Docker
// host backed by podman, resumable stages, parallel fan-out,
// notifications and keep-awake. It delegates all functionality to the
// internal/cli package, which defines the cobra commands.
//
// Build-time variables (version, commit, date) are injected via ldflags.
// During development they default to "dev", "none" and "unknown".
package main

import (
	"github.com/tinyorch/tinyorch/internal/cli"
)

// version, commit, and date are set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.2.0 -X main.commit=$(git rev-parse --short HEAD)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
