// Package metrics counts provisioning, teardown and stage outcomes with
// Prometheus collectors.
//
// tinyorch is a short-lived CLI, so nothing is scraped directly. When a
// textfile directory is configured, each command writes its registry to
// "<dir>/tinyorch_<command>.prom" for the node_exporter textfile
// collector to pick up.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Teardown outcome label values.
const (
	// TeardownDeregistered means the parent was removed but other
	// dependents keep the backend alive.
	TeardownDeregistered = "deregistered"

	// TeardownStopped means the backend itself was stopped.
	TeardownStopped = "stopped"
)

// Recorder holds the tinyorch collectors on a private registry.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	provisions    *prometheus.CounterVec
	teardowns     *prometheus.CounterVec
	stageAttempts *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		provisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tinyorch",
			Name:      "provisions_total",
			Help:      "Docker host provisioning calls by backend and result.",
		}, []string{"backend", "result"}),
		teardowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tinyorch",
			Name:      "teardowns_total",
			Help:      "Watcher teardowns by backend and outcome.",
		}, []string{"backend", "outcome"}),
		stageAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tinyorch",
			Name:      "stage_attempts_total",
			Help:      "Stage command attempts by stage and result.",
		}, []string{"stage", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tinyorch",
			Name:      "notifications_total",
			Help:      "Notification deliveries by result.",
		}, []string{"result"}),
	}
	r.registry.MustRegister(r.provisions, r.teardowns, r.stageAttempts, r.notifications)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// Provision counts one provisioning call.
func (r *Recorder) Provision(backend string, err error) {
	if r == nil {
		return
	}
	r.provisions.WithLabelValues(backend, result(err)).Inc()
}

// Teardown counts one watcher teardown.
func (r *Recorder) Teardown(backend, outcome string) {
	if r == nil {
		return
	}
	r.teardowns.WithLabelValues(backend, outcome).Inc()
}

// StageAttempt counts one attempt of a stage command.
func (r *Recorder) StageAttempt(stage string, err error) {
	if r == nil {
		return
	}
	r.stageAttempts.WithLabelValues(stage, result(err)).Inc()
}

// Notification counts one notification delivery.
func (r *Recorder) Notification(err error) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(result(err)).Inc()
}

// WriteTextfile writes the registry to "<dir>/tinyorch_<command>.prom".
// An empty dir disables the export.
func (r *Recorder) WriteTextfile(dir, command string) error {
	if r == nil || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create metrics dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, "tinyorch_"+command+".prom")
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
