// Package docker provides Docker Engine API wrappers for the tinyorch CLI.
//
// This package handles:
//   - Docker client initialization against an explicit host (typically
//     the DOCKER_HOST returned by provisioning) or an auto-detected
//     socket, including the rootless podman socket
//   - Connectivity verification (Ping) of a freshly provisioned socket
//   - Running short-lived, labelled containers to completion, used to
//     deliver notifications through the apprise image
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled so it works against
// podman's Docker-compatible API as well as a real Docker daemon.
package docker
