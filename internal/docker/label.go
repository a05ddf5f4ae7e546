package docker

import (
	"strconv"
	"time"
)

// Label keys applied to every container tinyorch creates. They make
// leftover containers attributable with
// `docker ps -a --filter label=tinyorch.managed-by=tinyorch`.
const (
	// LabelPrefix is the common prefix for all tinyorch labels.
	LabelPrefix = "tinyorch."

	// LabelManagedBy identifies containers created by tinyorch.
	// Key: "tinyorch.managed-by", Value: always ManagedByValue.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelPurpose says why the container exists (e.g. "notify").
	LabelPurpose = LabelPrefix + "purpose"

	// LabelParentPID stores the PID of the tinyorch process that
	// created the container.
	LabelParentPID = LabelPrefix + "parent-pid"

	// LabelCreatedAt stores the RFC3339 creation timestamp.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
const ManagedByValue = "tinyorch"

// BuildLabels returns the label set for a container created for purpose,
// merged with extra. Keys in extra cannot override the tinyorch keys.
func BuildLabels(purpose string, extra map[string]string) map[string]string {
	labels := make(map[string]string, len(extra)+4)
	for k, v := range extra {
		labels[k] = v
	}
	labels[LabelManagedBy] = ManagedByValue
	labels[LabelPurpose] = purpose
	labels[LabelParentPID] = strconv.Itoa(osGetpid())
	labels[LabelCreatedAt] = timeNow().UTC().Format(time.RFC3339)
	return labels
}
