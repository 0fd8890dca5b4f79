// Package remotetest provides an in-memory Source for tests.
// It records the order of applied operations and supports failure injection.
package remotetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/colonyops/porter/internal/core/task"
	"github.com/colonyops/porter/internal/remote"
)

// Op is a single recorded remote operation. Failure injection also sees
// subscription attempts as Kind "subscribe"; those are never recorded.
type Op struct {
	Kind string // "insert", "patch", "delete", "subscribe"
	ID   string
}

// Fake is an in-memory implementation of remote.Source.
type Fake struct {
	mu    sync.Mutex
	docs  map[string]task.Task
	ops   []Op
	subs  []chan []task.Task
	errFn func(op Op) error
}

var _ remote.Source = (*Fake)(nil)

// New creates an empty fake store.
func New() *Fake {
	return &Fake{docs: make(map[string]task.Task)}
}

// Seed loads tasks into the store without recording operations.
func (f *Fake) Seed(tasks ...task.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tasks {
		f.docs[t.ID] = t
	}
}

// FailWith injects an error returned for every operation fn matches.
// Passing nil clears the injection.
func (f *Fake) FailWith(fn func(op Op) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errFn = fn
}

// Ops returns the recorded operations in application order.
func (f *Fake) Ops() []Op {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Op, len(f.ops))
	copy(out, f.ops)
	return out
}

// Tasks returns the current documents, ordered by created_at descending.
func (f *Fake) Tasks() []task.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Has reports whether a document exists.
func (f *Fake) Has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.docs[id]
	return ok
}

// List implements remote.Source.
func (f *Fake) List(ctx context.Context, ownerID string) ([]task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []task.Task
	for _, t := range f.docs {
		if ownerID == "" || t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	task.SortByCreatedAt(out)
	return out, nil
}

// Insert implements remote.Source. Inserting an existing id overwrites it,
// matching the idempotent keyed-insert contract.
func (f *Fake) Insert(ctx context.Context, t task.Task) error {
	return f.apply(Op{Kind: "insert", ID: t.ID}, func() error {
		f.docs[t.ID] = t
		return nil
	})
}

// Patch implements remote.Source, creating the document when absent.
func (f *Fake) Patch(ctx context.Context, id string, t task.Task) error {
	return f.apply(Op{Kind: "patch", ID: id}, func() error {
		f.docs[id] = t
		return nil
	})
}

// Delete implements remote.Source. Absent documents are success.
func (f *Fake) Delete(ctx context.Context, id string) error {
	return f.apply(Op{Kind: "delete", ID: id}, func() error {
		delete(f.docs, id)
		return nil
	})
}

// Subscribe implements remote.Source. Deliveries are pushed synchronously
// from Push and from every successful write.
func (f *Fake) Subscribe(ctx context.Context, ownerID string) (<-chan []task.Task, error) {
	f.mu.Lock()
	if f.errFn != nil {
		if err := f.errFn(Op{Kind: "subscribe"}); err != nil {
			f.mu.Unlock()
			return nil, fmt.Errorf("subscribe: %w", err)
		}
	}
	ch := make(chan []task.Task, 16)
	ch <- f.snapshotLocked()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, sub := range f.subs {
			if sub == ch {
				f.subs = append(f.subs[:i], f.subs[i+1:]...)
				close(ch)
				break
			}
		}
	}()

	return ch, nil
}

// Push delivers the current result set to all subscribers.
func (f *Fake) Push() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushLocked()
}

func (f *Fake) apply(op Op, fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.errFn != nil {
		if err := f.errFn(op); err != nil {
			return fmt.Errorf("%s %s: %w", op.Kind, op.ID, err)
		}
	}

	if err := fn(); err != nil {
		return err
	}

	f.ops = append(f.ops, op)
	f.pushLocked()
	return nil
}

func (f *Fake) pushLocked() {
	snapshot := f.snapshotLocked()
	for _, ch := range f.subs {
		select {
		case ch <- snapshot:
		default:
			// Subscriber is slow, drop rather than block.
		}
	}
}

func (f *Fake) snapshotLocked() []task.Task {
	out := make([]task.Task, 0, len(f.docs))
	for _, t := range f.docs {
		out = append(out, t)
	}
	task.SortByCreatedAt(out)
	return out
}
