package porter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/porter/internal/core/logging"
	"github.com/colonyops/porter/internal/core/mutation"
	"github.com/colonyops/porter/internal/core/netmon"
	"github.com/colonyops/porter/internal/remote"
)

const defaultWriteTimeout = 15 * time.Second

// State is the reconciler's position in its drain cycle.
type State string

const (
	// StateIdle means no pass is running and nothing is awaiting retry.
	StateIdle State = "idle"
	// StateDraining means a replay pass is in progress.
	StateDraining State = "draining"
	// StateRetryPending means the last pass stopped on a failure and the
	// remaining entries wait for the next trigger.
	StateRetryPending State = "retry-pending"
)

// Reconciler drains the mutation queue against the remote source.
//
// Replay is strictly FIFO: task edits are causally dependent, so an update
// must not land before the create it follows, and a delete after an update
// must win. A failure stops the pass in place; nothing is skipped or
// reordered, and the next trigger resumes from the failed entry.
type Reconciler struct {
	queue        *Queue
	source       remote.Source
	writeTimeout time.Duration
	log          zerolog.Logger

	mu      sync.Mutex
	state   State
	rerun   bool
	drained func() // invoked after a pass fully empties the queue
}

// NewReconciler creates a reconciler. A non-positive writeTimeout falls
// back to the default per-write budget.
func NewReconciler(queue *Queue, source remote.Source, writeTimeout time.Duration, log zerolog.Logger) *Reconciler {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Reconciler{
		queue:        queue,
		source:       source,
		writeTimeout: writeTimeout,
		state:        StateIdle,
		log:          logging.Component(log, "reconciler"),
	}
}

// OnDrained registers a callback invoked after a pass leaves the queue
// empty. The repository uses it to hand cache ownership back to the push
// subscription.
func (r *Reconciler) OnDrained(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drained = fn
}

// State returns the current drain-cycle state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Run executes one reconciliation pass. Only one pass runs at a time: a
// call arriving mid-pass is coalesced into a rerun after the current pass
// finishes and returns immediately.
func (r *Reconciler) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateDraining {
		r.rerun = true
		r.mu.Unlock()
		return nil
	}
	r.state = StateDraining
	r.rerun = false
	r.mu.Unlock()

	for {
		err := r.drain(ctx)

		r.mu.Lock()
		if err != nil {
			r.state = StateRetryPending
			r.rerun = false
			r.mu.Unlock()
			r.log.Warn().Err(err).Int("remaining", r.queue.Len()).Msg("reconciliation stopped, will retry")
			return err
		}
		if r.rerun {
			r.rerun = false
			r.mu.Unlock()
			continue
		}
		r.state = StateIdle
		notify := r.drained
		r.mu.Unlock()

		if notify != nil {
			notify()
		}
		return nil
	}
}

// Watch triggers a pass on every online transition until ctx is cancelled.
func (r *Reconciler) Watch(ctx context.Context, events <-chan netmon.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !ev.Online {
				continue
			}
			if r.queue.Len() == 0 {
				continue
			}
			if err := r.Run(ctx); err != nil {
				// Background failure: logged by Run, queue retained.
				continue
			}
		}
	}
}

// drain replays queued mutations oldest-first until the queue is empty or
// an entry fails.
func (r *Reconciler) drain(ctx context.Context) error {
	for {
		m, ok := r.queue.Oldest()
		if !ok {
			return nil
		}

		if err := r.apply(ctx, m); err != nil {
			return fmt.Errorf("apply mutation %d (%s %s): %w", m.Sequence, m.Action, m.TargetID, err)
		}

		if err := r.queue.Remove(ctx, m.Sequence); err != nil {
			return fmt.Errorf("confirm mutation %d: %w", m.Sequence, err)
		}

		r.log.Debug().
			Int64("sequence", m.Sequence).
			Str("action", string(m.Action)).
			Str("task_id", m.TargetID).
			Msg("mutation applied")
	}
}

// apply translates one mutation into a remote write under the per-write
// time budget. Timing out is treated identically to a network failure.
func (r *Reconciler) apply(ctx context.Context, m mutation.Mutation) error {
	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	switch m.Action {
	case mutation.ActionCreate:
		// Keyed by the client-generated id, so a replayed create after a
		// lost ack overwrites instead of duplicating.
		return r.source.Insert(ctx, *m.Payload)

	case mutation.ActionUpdate:
		err := r.source.Patch(ctx, m.TargetID, *m.Payload)
		if errors.Is(err, remote.ErrNotFound) {
			// Target gone, e.g. deleted from another device. Last write
			// wins: drop the edit.
			r.log.Warn().Str("task_id", m.TargetID).Msg("update target missing, dropping edit")
			return nil
		}
		return err

	case mutation.ActionDelete:
		err := r.source.Delete(ctx, m.TargetID)
		if errors.Is(err, remote.ErrNotFound) {
			return nil
		}
		return err

	default:
		return fmt.Errorf("unknown mutation action %q", m.Action)
	}
}
