// Package podman wraps the podman command-line tool for the Docker-host
// subsystem.
//
// This package shells out to `podman` rather than talking to the podman
// REST API because the machine lifecycle (init, start, stop, ssh) is only
// exposed through the CLI. Query commands use Go-template --format
// strings and their text output is parsed here; a query that exits
// non-zero is treated as "value unknown", never as a fatal error.
package podman
