package porter

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/colonyops/porter/internal/core/kv"
	"github.com/colonyops/porter/internal/core/logging"
	"github.com/colonyops/porter/internal/core/mutation"
)

const (
	syncNamespace = "sync"
	pendingSlot   = "pending"
)

// Queue is the ordered, append-only log of not-yet-applied write intents.
//
// The repository appends from one side and the reconciler pops from the
// other; the mutex only guards against those two. Every Enqueue and Remove
// is flushed to the local store before returning, so a crash mid-sequence
// loses at most the in-flight operation, never the log itself.
type Queue struct {
	mu      sync.Mutex
	store   *kv.TypedKV[[]mutation.Mutation]
	entries []mutation.Mutation
	nextSeq int64
	log     zerolog.Logger
}

// NewQueue creates a queue persisted in the sync:pending slot of the store.
// Call Load before use to restore state from a previous run.
func NewQueue(store kv.KV, log zerolog.Logger) *Queue {
	return &Queue{
		store:   kv.Scoped[[]mutation.Mutation](store, syncNamespace),
		nextSeq: 1,
		log:     logging.Component(log, "queue"),
	}
}

// Load restores the pending log from the local store. A missing slot means
// an empty queue. The sequence counter resumes past the highest entry.
func (q *Queue) Load(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.store.Get(ctx, pendingSlot)
	if err != nil {
		ok, hasErr := q.store.Has(ctx, pendingSlot)
		if hasErr == nil && !ok {
			q.entries = nil
			return nil
		}
		return fmt.Errorf("load pending mutations: %w", err)
	}

	q.entries = entries
	q.nextSeq = 1
	for _, m := range entries {
		if m.Sequence >= q.nextSeq {
			q.nextSeq = m.Sequence + 1
		}
	}

	return nil
}

// Enqueue assigns the next sequence number and appends the mutation,
// persisting the log before returning. A failed persist is retried once;
// if it still fails the entry stays in memory and the error is returned,
// leaving the caller's optimistic update applied.
func (q *Queue) Enqueue(ctx context.Context, m mutation.Mutation) (mutation.Mutation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	m.Sequence = q.nextSeq
	q.nextSeq++
	q.entries = append(q.entries, m)

	if err := q.persistLocked(ctx); err != nil {
		q.log.Warn().Err(err).Int64("sequence", m.Sequence).Msg("persist failed, retrying")
		if err := q.persistLocked(ctx); err != nil {
			return m, fmt.Errorf("persist pending mutation %d: %w", m.Sequence, err)
		}
	}

	return m, nil
}

// Oldest returns the lowest-sequence entry without removing it.
func (q *Queue) Oldest() (mutation.Mutation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return mutation.Mutation{}, false
	}
	return q.entries[0], true
}

// All returns a copy of the pending entries in ascending sequence order.
func (q *Queue) All() []mutation.Mutation {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]mutation.Mutation, len(q.entries))
	copy(out, q.entries)
	return out
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Remove deletes the entry with the given sequence and persists the removal
// before returning. Only the reconciler calls this, after the remote write
// is confirmed.
func (q *Queue) Remove(ctx context.Context, sequence int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := -1
	for i, m := range q.entries {
		if m.Sequence == sequence {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	q.entries = append(q.entries[:idx], q.entries[idx+1:]...)

	if err := q.persistLocked(ctx); err != nil {
		return fmt.Errorf("persist mutation removal %d: %w", sequence, err)
	}

	return nil
}

func (q *Queue) persistLocked(ctx context.Context) error {
	return q.store.Set(ctx, pendingSlot, q.entries)
}
