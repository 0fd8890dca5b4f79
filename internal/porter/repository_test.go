package porter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/porter/internal/core/mutation"
	"github.com/colonyops/porter/internal/core/netmon"
	"github.com/colonyops/porter/internal/core/task"
	"github.com/colonyops/porter/internal/remote"
	"github.com/colonyops/porter/internal/remote/remotetest"
)

// fakeNet is a Connectivity stub tests flip by hand.
type fakeNet struct {
	mu     sync.Mutex
	online bool
	subs   []chan netmon.Event
}

var _ Connectivity = (*fakeNet)(nil)

func (n *fakeNet) Online() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

func (n *fakeNet) Watch(ctx context.Context) (<-chan netmon.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := make(chan netmon.Event, 16)
	n.subs = append(n.subs, ch)
	return ch, nil
}

func (n *fakeNet) Refresh(ctx context.Context) {}

func (n *fakeNet) setOnline(online bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.online = online
	for _, ch := range n.subs {
		ch <- netmon.Event{Online: online, At: time.Now()}
	}
}

type repoFixture struct {
	repo   *Repository
	queue  *Queue
	rec    *Reconciler
	source *remotetest.Fake
	net    *fakeNet
}

// newRepoFixture wires a full repository stack over a real SQLite store in
// dir. The clock and id generator are deterministic so listing order and
// queue contents are stable.
func newRepoFixture(t *testing.T, dir string, online bool) *repoFixture {
	t.Helper()
	ctx := context.Background()

	store := newTestStoreAt(t, dir)
	queue := NewQueue(store, zerolog.Nop())
	require.NoError(t, queue.Load(ctx))

	source := remotetest.New()
	rec := NewReconciler(queue, source, time.Second, zerolog.Nop())
	net := &fakeNet{online: online}

	repo := NewRepository(source, queue, rec, net, store, "owner-1", zerolog.Nop())

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	repo.now = func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Second)
	}
	var ids atomic.Int64
	repo.newID = func() string {
		return fmt.Sprintf("id-%d", ids.Add(1))
	}

	require.NoError(t, repo.Load(ctx))
	t.Cleanup(repo.Close)

	return &repoFixture{repo: repo, queue: queue, rec: rec, source: source, net: net}
}

func TestRepository_CreateOnline(t *testing.T) {
	ctx := context.Background()
	f := newRepoFixture(t, t.TempDir(), true)

	created, err := f.repo.Create(ctx, task.Task{Title: "buy milk"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", created.ID)
	assert.Equal(t, "owner-1", created.OwnerID)
	assert.Equal(t, task.CategoryGeneral, created.Category)

	// The acknowledged write is visible to the very next read.
	tasks, err := f.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "buy milk", tasks[0].Title)

	assert.True(t, f.source.Has("id-1"))
	assert.Equal(t, 0, f.queue.Len())
}

func TestRepository_CreateOffline(t *testing.T) {
	ctx := context.Background()
	f := newRepoFixture(t, t.TempDir(), false)

	created, err := f.repo.Create(ctx, task.Task{Title: "buy milk"})
	require.NoError(t, err)

	// Optimistic read, no network touched.
	tasks, err := f.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, created.ID, tasks[0].ID)
	assert.Empty(t, f.source.Ops())

	pending := f.queue.All()
	require.Len(t, pending, 1)
	assert.Equal(t, mutation.ActionCreate, pending[0].Action)
	assert.Equal(t, created.ID, pending[0].TargetID)
	require.NotNil(t, pending[0].Payload)
	assert.Equal(t, "buy milk", pending[0].Payload.Title)
}

func TestRepository_CreateRejectsEmptyTitle(t *testing.T) {
	f := newRepoFixture(t, t.TempDir(), true)

	_, err := f.repo.Create(context.Background(), task.Task{Title: "   "})
	assert.ErrorIs(t, err, task.ErrEmptyTitle)
	assert.Empty(t, f.source.Ops())
}

func TestRepository_UpdateOffline(t *testing.T) {
	ctx := context.Background()
	f := newRepoFixture(t, t.TempDir(), false)

	created, err := f.repo.Create(ctx, task.Task{Title: "draft"})
	require.NoError(t, err)

	done := true
	updated, err := f.repo.Update(ctx, created.ID, task.Patch{Done: &done})
	require.NoError(t, err)
	assert.True(t, updated.Done)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	got, err := f.repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.Done)

	pending := f.queue.All()
	require.Len(t, pending, 2)
	assert.Equal(t, mutation.ActionCreate, pending[0].Action)
	assert.Equal(t, mutation.ActionUpdate, pending[1].Action)
}

func TestRepository_DeleteOffline(t *testing.T) {
	ctx := context.Background()
	f := newRepoFixture(t, t.TempDir(), false)

	created, err := f.repo.Create(ctx, task.Task{Title: "doomed"})
	require.NoError(t, err)

	require.NoError(t, f.repo.Delete(ctx, created.ID))

	_, err = f.repo.Get(ctx, created.ID)
	assert.ErrorIs(t, err, task.ErrNotFound)

	pending := f.queue.All()
	require.Len(t, pending, 2)
	assert.Equal(t, mutation.ActionDelete, pending[1].Action)
	assert.Nil(t, pending[1].Payload)
}

func TestRepository_UpdateMissingTask(t *testing.T) {
	f := newRepoFixture(t, t.TempDir(), true)

	title := "new title"
	_, err := f.repo.Update(context.Background(), "no-such-id", task.Patch{Title: &title})
	assert.ErrorIs(t, err, task.ErrNotFound)
}

func TestRepository_ListOnlineRefreshesFromRemote(t *testing.T) {
	ctx := context.Background()
	f := newRepoFixture(t, t.TempDir(), true)

	f.source.Seed(testTask("remote-1", "from another device", time.Now()))

	tasks, err := f.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "remote-1", tasks[0].ID)
}

func TestRepository_ListOfflineServesCache(t *testing.T) {
	ctx := context.Background()
	f := newRepoFixture(t, t.TempDir(), false)

	_, err := f.repo.Create(ctx, task.Task{Title: "cached"})
	require.NoError(t, err)

	// Remote content is invisible while offline.
	f.source.Seed(testTask("remote-1", "unseen", time.Now()))

	tasks, err := f.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "cached", tasks[0].Title)
}

func TestRepository_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	f := newRepoFixture(t, dir, false)
	created, err := f.repo.Create(ctx, task.Task{Title: "persisted"})
	require.NoError(t, err)
	f.repo.Close()

	// A fresh stack over the same data directory restores both the cached
	// snapshot and the pending log.
	reborn := newRepoFixture(t, dir, false)

	got, err := reborn.repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Title)

	pending := reborn.queue.All()
	require.Len(t, pending, 1)
	assert.Equal(t, mutation.ActionCreate, pending[0].Action)
	assert.Equal(t, created.ID, pending[0].TargetID)
}

func TestRepository_PushDeliveryGatedByQueue(t *testing.T) {
	ctx := context.Background()
	f := newRepoFixture(t, t.TempDir(), false)

	created, err := f.repo.Create(ctx, task.Task{Title: "local edit"})
	require.NoError(t, err)

	// A stale push must not clobber the optimistic state while the queue
	// holds unsynced writes.
	f.repo.ApplyRemoteSnapshot(ctx, []task.Task{})

	got, err := f.repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "local edit", got.Title)
}

func TestRepository_PushDeliveryAppliedWhenQueueEmpty(t *testing.T) {
	ctx := context.Background()
	f := newRepoFixture(t, t.TempDir(), true)

	f.repo.ApplyRemoteSnapshot(ctx, []task.Task{
		testTask("remote-1", "pushed", time.Now()),
	})

	got, err := f.repo.Get(ctx, "remote-1")
	require.NoError(t, err)
	assert.Equal(t, "pushed", got.Title)
}

func TestRepository_WatchDeliversSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newRepoFixture(t, t.TempDir(), false)

	ch, err := f.repo.Watch(ctx)
	require.NoError(t, err)

	// Initial snapshot first.
	initial := <-ch
	assert.Empty(t, initial)

	created, err := f.repo.Create(ctx, task.Task{Title: "observed"})
	require.NoError(t, err)

	next := <-ch
	require.Len(t, next, 1)
	assert.Equal(t, created.ID, next[0].ID)
}

func TestRepository_OfflineThenDrain(t *testing.T) {
	ctx := context.Background()
	f := newRepoFixture(t, t.TempDir(), false)

	created, err := f.repo.Create(ctx, task.Task{Title: "written offline"})
	require.NoError(t, err)

	done := true
	_, err = f.repo.Update(ctx, created.ID, task.Patch{Done: &done})
	require.NoError(t, err)

	f.net.setOnline(true)
	require.NoError(t, f.rec.Run(ctx))

	assert.Equal(t, 0, f.queue.Len())
	require.True(t, f.source.Has(created.ID))

	docs := f.source.Tasks()
	require.Len(t, docs, 1)
	assert.True(t, docs[0].Done)
	assert.Equal(t, []remotetest.Op{
		{Kind: "insert", ID: created.ID},
		{Kind: "patch", ID: created.ID},
	}, f.source.Ops())
}

func TestRepository_RunRetriesSubscriptionWhenOffline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newRepoFixture(t, t.TempDir(), false)

	f.source.FailWith(func(op remotetest.Op) error {
		if op.Kind == "subscribe" {
			return remote.ErrUnavailable
		}
		return nil
	})
	f.source.Seed(testTask("remote-1", "appears after reconnect", time.Now()))

	done := make(chan error, 1)
	go func() { done <- f.repo.Run(ctx) }()

	// An unreachable remote must not end the loop.
	select {
	case err := <-done:
		t.Fatalf("Run returned while offline: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	f.source.FailWith(nil)
	f.net.setOnline(true)

	require.Eventually(t, func() bool {
		_, err := f.repo.Get(ctx, "remote-1")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond, "resubscribed delivery never reached the cache")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestRepository_ConcurrentWritesPersistFinalSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newRepoFixture(t, t.TempDir(), false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := f.repo.Create(ctx, task.Task{Title: fmt.Sprintf("task %d", n)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	tasks, err := f.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 8)

	// The persisted snapshot must match the final in-memory state, not an
	// interleaving that lost the last write.
	persisted, err := f.repo.snap.Get(ctx, snapshotSlot)
	require.NoError(t, err)
	assert.Equal(t, tasks, persisted)
}

func TestRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newRepoFixture(t, t.TempDir(), false)

	first, err := f.repo.Create(ctx, task.Task{Title: "older"})
	require.NoError(t, err)
	second, err := f.repo.Create(ctx, task.Task{Title: "newer"})
	require.NoError(t, err)

	tasks, err := f.repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, second.ID, tasks[0].ID)
	assert.Equal(t, first.ID, tasks[1].ID)
}
