package porter

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/colonyops/porter/internal/core/kv"
	"github.com/colonyops/porter/internal/core/logging"
	"github.com/colonyops/porter/internal/core/mutation"
	"github.com/colonyops/porter/internal/core/netmon"
	"github.com/colonyops/porter/internal/core/task"
	"github.com/colonyops/porter/internal/remote"
)

const (
	tasksNamespace = "tasks"
	snapshotSlot   = "latest"

	watchBufferSize = 16

	// resubscribeDelay bounds how long Run waits before retrying a failed
	// subscription when no connectivity transition arrives to wake it.
	resubscribeDelay = 3 * time.Second
)

// Connectivity is the reachability capability the repository consumes.
type Connectivity interface {
	Online() bool
	Watch(ctx context.Context) (<-chan netmon.Event, error)
	Refresh(ctx context.Context)
}

// Repository is the task facade consumed by the UI layer.
//
// Writes route by connectivity state: online they go straight to the remote
// source and the acknowledged document is applied to the cache so the very
// next List reflects it; offline they apply optimistically to the cached
// snapshot and append a pending mutation, returning without touching the
// network. The cached snapshot and the mutation queue are owned exclusively
// by the repository/reconciler pair.
type Repository struct {
	source  remote.Source
	queue   *Queue
	rec     *Reconciler
	net     Connectivity
	snap    *kv.TypedKV[[]task.Task]
	ownerID string
	log     zerolog.Logger

	now   func() time.Time
	newID func() string

	mu       sync.Mutex
	tasks    []task.Task
	watchers []chan []task.Task
	closed   bool
}

// NewRepository creates a repository over explicit dependencies. Call Load
// to restore the cached snapshot before serving reads.
func NewRepository(source remote.Source, queue *Queue, rec *Reconciler, net Connectivity, store kv.KV, ownerID string, log zerolog.Logger) *Repository {
	r := &Repository{
		source:  source,
		queue:   queue,
		rec:     rec,
		net:     net,
		snap:    kv.Scoped[[]task.Task](store, tasksNamespace),
		ownerID: ownerID,
		log:     logging.Component(log, "repository"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	rec.OnDrained(func() { r.log.Debug().Msg("queue drained, push subscription owns the cache") })
	return r
}

// Load restores the cached task snapshot from the local store. A missing
// slot means an empty cache.
func (r *Repository) Load(ctx context.Context) error {
	tasks, err := r.snap.Get(ctx, snapshotSlot)
	if err != nil {
		ok, hasErr := r.snap.Has(ctx, snapshotSlot)
		if hasErr == nil && !ok {
			return nil
		}
		return fmt.Errorf("load task snapshot: %w", err)
	}

	r.mu.Lock()
	r.tasks = tasks
	r.mu.Unlock()
	return nil
}

// List returns the current best-known tasks, newest first. Online with an
// empty queue it re-reads the remote result set; otherwise it serves the
// cached snapshot, which already reflects every local write.
func (r *Repository) List(ctx context.Context) ([]task.Task, error) {
	if r.net.Online() && r.queue.Len() == 0 && r.rec.State() != StateDraining {
		tasks, err := r.source.List(ctx, r.ownerID)
		if err != nil {
			r.log.Warn().Err(err).Msg("remote list failed, serving cached snapshot")
		} else {
			r.replaceCache(ctx, tasks)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.tasks), nil
}

// Get returns a single task from the current snapshot.
func (r *Repository) Get(ctx context.Context, id string) (task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return task.Task{}, task.ErrNotFound
}

// Watch returns a live snapshot stream. The current snapshot is delivered
// first, then every change from either source of truth. The subscription
// is released when ctx is cancelled.
func (r *Repository) Watch(ctx context.Context) (<-chan []task.Task, error) {
	ch := make(chan []task.Task, watchBufferSize)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		close(ch)
		return ch, nil
	}
	ch <- slices.Clone(r.tasks)
	r.watchers = append(r.watchers, ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.unsubscribe(ch)
	}()

	return ch, nil
}

// Create validates and stores a new task. The id is always generated on
// the client so creation is idempotent under retry.
func (r *Repository) Create(ctx context.Context, t task.Task) (task.Task, error) {
	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}

	now := r.now()
	t.ID = r.newID()
	t.OwnerID = r.ownerID
	t.CreatedAt = now
	t.UpdatedAt = now

	ctx = logging.WithTaskID(ctx, t.ID)

	if r.net.Online() {
		if err := r.source.Insert(ctx, t); err != nil {
			return task.Task{}, fmt.Errorf("create task: %w", err)
		}
		r.upsertCache(ctx, t)
		return t, nil
	}

	r.upsertCache(ctx, t)
	if _, err := r.enqueue(ctx, mutation.ActionCreate, t.ID, &t); err != nil {
		return t, err
	}

	r.log.Debug().Ctx(ctx).Msg("task created offline")
	return t, nil
}

// Update applies a partial update to an existing task.
func (r *Repository) Update(ctx context.Context, id string, patch task.Patch) (task.Task, error) {
	if err := patch.Validate(); err != nil {
		return task.Task{}, err
	}

	t, err := r.Get(ctx, id)
	if err != nil {
		return task.Task{}, err
	}

	patch.Apply(&t, r.now())
	ctx = logging.WithTaskID(ctx, id)

	if r.net.Online() {
		if err := r.source.Patch(ctx, id, t); err != nil {
			return task.Task{}, fmt.Errorf("update task: %w", err)
		}
		r.upsertCache(ctx, t)
		return t, nil
	}

	r.upsertCache(ctx, t)
	if _, err := r.enqueue(ctx, mutation.ActionUpdate, id, &t); err != nil {
		return t, err
	}

	r.log.Debug().Ctx(ctx).Msg("task updated offline")
	return t, nil
}

// Delete removes a task.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}

	ctx = logging.WithTaskID(ctx, id)

	if r.net.Online() {
		if err := r.source.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		r.removeFromCache(ctx, id)
		return nil
	}

	r.removeFromCache(ctx, id)
	if _, err := r.enqueue(ctx, mutation.ActionDelete, id, nil); err != nil {
		return err
	}

	r.log.Debug().Ctx(ctx).Msg("task deleted offline")
	return nil
}

// Run pumps the remote push subscription into the cache until ctx is
// cancelled. Deliveries are ignored while queued mutations are pending so
// a stale push cannot clobber an optimistic offline edit mid-reconciliation.
//
// A failed or dropped subscription does not end the loop: Run waits for a
// connectivity transition (or the retry delay) and resubscribes, so watch
// mode started offline comes alive when the network does.
func (r *Repository) Run(ctx context.Context) error {
	events, err := r.net.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch connectivity: %w", err)
	}

	for {
		sub, err := r.source.Subscribe(ctx, r.ownerID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Warn().Err(err).Msg("remote subscription unavailable, waiting to retry")
			if err := r.awaitRetry(ctx, events); err != nil {
				return err
			}
			continue
		}

		if err := r.pump(ctx, sub); err != nil {
			return err
		}
		// Subscription channel closed without cancellation; resubscribe.
	}
}

func (r *Repository) pump(ctx context.Context, sub <-chan []task.Task) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snapshot, ok := <-sub:
			if !ok {
				return nil
			}
			r.ApplyRemoteSnapshot(ctx, snapshot)
		}
	}
}

// awaitRetry blocks until connectivity comes online or the retry delay
// elapses, whichever is first.
func (r *Repository) awaitRetry(ctx context.Context, events <-chan netmon.Event) error {
	timer := time.NewTimer(resubscribeDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case ev, ok := <-events:
			if !ok {
				// Monitor closed; fall back to the timer.
				events = nil
				continue
			}
			if ev.Online {
				return nil
			}
		}
	}
}

// ApplyRemoteSnapshot replaces the cache wholesale with a push delivery,
// unless the mutation queue is the current source of truth.
func (r *Repository) ApplyRemoteSnapshot(ctx context.Context, tasks []task.Task) {
	if r.queue.Len() > 0 || r.rec.State() == StateDraining {
		r.log.Debug().Int("pending", r.queue.Len()).Msg("dropping push delivery, queue owns the cache")
		return
	}
	r.replaceCache(ctx, tasks)
}

// Close releases all watcher channels. No snapshot is delivered after it
// returns.
func (r *Repository) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for _, ch := range r.watchers {
		close(ch)
	}
	r.watchers = nil
}

func (r *Repository) unsubscribe(ch chan []task.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		// Close already released every watcher channel, including ch.
		return
	}
	for i, w := range r.watchers {
		if w == ch {
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (r *Repository) enqueue(ctx context.Context, action mutation.Action, targetID string, payload *task.Task) (mutation.Mutation, error) {
	m, err := r.queue.Enqueue(ctx, mutation.Mutation{
		Action:   action,
		TargetID: targetID,
		Payload:  payload,
	})
	if err != nil {
		// The optimistic update stays applied; only the durable log entry
		// is at risk. Queue already retried the persist once.
		r.log.Error().Err(err).Str("action", string(action)).Msg("enqueue persist failed")
		return m, fmt.Errorf("queue offline write: %w", err)
	}
	return m, nil
}

func (r *Repository) upsertCache(ctx context.Context, t task.Task) {
	r.mutateCache(ctx, func(tasks []task.Task) []task.Task {
		for i := range tasks {
			if tasks[i].ID == t.ID {
				tasks[i] = t
				return tasks
			}
		}
		return append(tasks, t)
	})
}

func (r *Repository) removeFromCache(ctx context.Context, id string) {
	r.mutateCache(ctx, func(tasks []task.Task) []task.Task {
		return slices.DeleteFunc(tasks, func(t task.Task) bool { return t.ID == id })
	})
}

func (r *Repository) replaceCache(ctx context.Context, tasks []task.Task) {
	r.mutateCache(ctx, func([]task.Task) []task.Task {
		return slices.Clone(tasks)
	})
}

// mutateCache applies fn to the cached snapshot, persists the result, and
// notifies watchers. The persist happens under the lock so concurrent
// mutations cannot land on disk out of order. A persist failure is logged
// but does not block the user action; the in-memory state diverges from
// disk until the next write.
func (r *Repository) mutateCache(ctx context.Context, fn func([]task.Task) []task.Task) {
	r.mu.Lock()
	r.tasks = fn(r.tasks)
	task.SortByCreatedAt(r.tasks)
	snapshot := slices.Clone(r.tasks)
	watchers := slices.Clone(r.watchers)

	if err := r.snap.Set(ctx, snapshotSlot, snapshot); err != nil {
		r.log.Warn().Err(err).Msg("persist task snapshot failed")
	}
	r.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- snapshot:
		default:
			// Watcher is slow, drop this snapshot; the next one supersedes it.
		}
	}
}
