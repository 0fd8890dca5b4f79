// Package remote defines the contract for the authoritative task store.
//
// The remote store is a black-box document store keyed by task id. Its push
// subscription delivers the entire current result set for an owner on every
// change, not a diff; consumers replace their cached snapshot wholesale.
package remote

import (
	"context"
	"errors"

	"github.com/colonyops/porter/internal/core/task"
)

var (
	// ErrNotFound is returned when the target document does not exist.
	ErrNotFound = errors.New("remote: document not found")
	// ErrUnavailable is returned when the store cannot be reached or the
	// write timed out. The caller may retry later without data loss.
	ErrUnavailable = errors.New("remote: store unavailable")
	// ErrRejected is returned when the store refused the write, for example
	// a permission failure. Retrying without change will not succeed.
	ErrRejected = errors.New("remote: write rejected")
)

// Source is the capability object for the authoritative store.
//
// Insert and Patch are keyed by the client-generated task id, which makes a
// retried create idempotent. Patch creates the document when absent so a
// queued update survives a prior partial create failure. Delete of an
// absent document is a no-op, not an error.
type Source interface {
	// List returns all tasks for the owner, ordered by created_at descending.
	List(ctx context.Context, ownerID string) ([]task.Task, error)

	// Insert stores a new document keyed by t.ID, overwriting any existing
	// document with the same id.
	Insert(ctx context.Context, t task.Task) error

	// Patch applies the full document to the existing entry, creating it
	// when absent.
	Patch(ctx context.Context, id string, t task.Task) error

	// Delete removes the document. Absent documents are treated as success.
	Delete(ctx context.Context, id string) error

	// Subscribe streams the entire ordered result set for the owner on
	// every change. The first delivery is the current set. The channel is
	// closed when ctx is cancelled.
	Subscribe(ctx context.Context, ownerID string) (<-chan []task.Task, error)
}
