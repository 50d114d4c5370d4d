package notify

import "time"

// Kind classifies a version transition by the shape of the signal delta
type Kind string

const (
	// KindCreated means new value rows appeared
	KindCreated Kind = "created"
	// KindUpdated means the head row moved without the row count changing
	KindUpdated Kind = "updated"
	// KindDeleted means value rows disappeared
	KindDeleted Kind = "deleted"
	// KindUnknown means the signal moved in a way the delta cannot explain,
	// e.g. after a vacuum or a restore
	KindUnknown Kind = "unknown"
)

// ChangeEvent describes one observed version transition in a project.
// Seq is unique and increasing for the lifetime of the process; it is
// not persisted and restarts from zero.
type ChangeEvent struct {
	Seq        uint64    `json:"seq"`
	OccurredAt time.Time `json:"occurred_at"`
	Kind       Kind      `json:"kind"`
	Scope      string    `json:"scope"`
	Parameters []string  `json:"parameters,omitempty"`
}
