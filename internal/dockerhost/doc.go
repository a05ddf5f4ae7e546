// Package dockerhost provides a Docker-compatible API socket backed by
// podman to a dependent process, and tears it down once that process
// (and, for the shared VM, every other dependent) has exited.
//
// Two backends exist:
//
//   - VM (macOS): one shared `podman machine`. Dependents are recorded in
//     a reference-count file; the machine is pruned and stopped when the
//     last one exits.
//   - Service (Linux): one `podman system service` per dependent, bound to
//     a socket named after the dependent's PID.
//
// Provisioning runs synchronously in the caller. Teardown happens in a
// detached watcher process (the hidden `tinyorch watch` command) that
// polls the dependent's liveness.
package dockerhost
