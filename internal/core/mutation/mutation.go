// Package mutation defines the pending write intents queued while offline.
package mutation

import (
	"github.com/colonyops/porter/internal/core/task"
)

// Action identifies the kind of remote write a mutation represents.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Mutation is a single queued write intent.
//
// Sequence is assigned at enqueue time and strictly increases; replay order
// is ascending Sequence and nothing may reorder entries. Payload carries the
// full optimistic document for creates and updates (last-write-wins makes
// the whole document the patch) and is nil for deletes.
type Mutation struct {
	Sequence int64      `json:"sequence"`
	Action   Action     `json:"action"`
	TargetID string     `json:"target_id"`
	Payload  *task.Task `json:"payload,omitempty"`
}
