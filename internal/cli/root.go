// Package cli implements the cobra-based CLI commands for tinyorch.
//
// Each subcommand (ensure-docker-host, watch, status, notify, run,
// run-parallel, keep-awake, prompt-enter, burn-iso) is defined in its own
// file within this package. This file defines the root command that
// serves as the parent for all subcommands and handles global flags.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tinyorch/tinyorch/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	// It also switches diagnostics on stderr to the slog JSON handler.
	jsonOutput bool

	// verbose lowers the log level to DEBUG.
	verbose bool

	// quiet raises the log level to WARN.
	quiet bool

	// cfgFile is an explicit config file. Empty means the first of
	// <home>/config.{yaml,yml,json,jsonc} that exists.
	cfgFile string
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
//
// The root command itself does not perform any action. It only provides
// help text and global flags; the work is done by the subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tinyorch",
		Short: "Small orchestration helpers for shell-driven jobs",
		Long: `tinyorch provides the helpers long-running shell jobs need: a
Docker-compatible socket backed by podman that is torn down when the job
exits, resumable stages with retries, parallel fan-out, notifications,
and keep-awake.

A job typically starts with:

  eval "$(tinyorch ensure-docker-host $$)"`,

		// SilenceUsage prevents cobra from printing usage on every error.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: <home>/config.yaml)")

	rootCmd.AddCommand(NewEnsureDockerHostCommand())
	rootCmd.AddCommand(NewWatchCommand())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewNotifyCommand())
	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewRunParallelCommand())
	rootCmd.AddCommand(NewWaitForCommand())
	rootCmd.AddCommand(NewKeepAwakeCommand())
	rootCmd.AddCommand(NewPromptEnterCommand())
	rootCmd.AddCommand(NewBurnISOCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// SIGINT and SIGTERM cancel the command context. CLIError values carry
// their own exit code; any other error is classified by its sentinel.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	os.Exit(int(reportError(os.Stderr, err)))
}

// reportError prints err and returns the exit code for it.
func reportError(w io.Writer, err error) model.ExitCode {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		printError(w, cliErr.Message, cliErr.Err)
		return cliErr.Code
	}
	printError(w, err.Error(), nil)
	return model.ExitCodeFor(err)
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(w io.Writer, message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// Errors go to stderr even in JSON mode: stdout is reserved for
		// command output that callers may eval.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}
	if underlying != nil {
		fmt.Fprintf(w, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(w, "Error: %s\n", message)
	}
}

// wrapError turns a domain error into a CLIError whose exit code follows
// the sentinel it wraps.
func wrapError(message string, err error) error {
	if err == nil {
		return nil
	}
	return model.WrapCLIError(model.ExitCodeFor(err), message, err)
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
