package porter

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/porter/internal/core/kv"
	"github.com/colonyops/porter/internal/core/mutation"
	"github.com/colonyops/porter/internal/core/task"
	"github.com/colonyops/porter/internal/data/db"
	"github.com/colonyops/porter/internal/data/stores"
)

func newTestStore(t *testing.T) kv.KV {
	t.Helper()
	return newTestStoreAt(t, t.TempDir())
}

// newTestStoreAt opens a store over a fixed directory so restart scenarios
// can reopen the same database.
func newTestStoreAt(t *testing.T, dir string) kv.KV {
	t.Helper()
	database, err := db.Open(dir, db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return stores.NewKVStore(database)
}

func testTask(id, title string, createdAt time.Time) task.Task {
	return task.Task{
		ID:        id,
		Title:     title,
		Category:  task.CategoryGeneral,
		OwnerID:   "owner-1",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestQueue_EnqueueAssignsAscendingSequences(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(newTestStore(t), zerolog.Nop())
	require.NoError(t, q.Load(ctx))

	first, err := q.Enqueue(ctx, mutation.Mutation{Action: mutation.ActionCreate, TargetID: "a"})
	require.NoError(t, err)
	second, err := q.Enqueue(ctx, mutation.Mutation{Action: mutation.ActionUpdate, TargetID: "b"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Sequence)
	assert.Equal(t, int64(2), second.Sequence)
	assert.Equal(t, 2, q.Len())

	all := q.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].TargetID)
	assert.Equal(t, "b", all[1].TargetID)
}

func TestQueue_LoadEmptyStore(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(newTestStore(t), zerolog.Nop())

	require.NoError(t, q.Load(ctx))
	assert.Equal(t, 0, q.Len())

	_, ok := q.Oldest()
	assert.False(t, ok)
}

func TestQueue_PersistsAcrossReload(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	q := NewQueue(store, zerolog.Nop())
	require.NoError(t, q.Load(ctx))

	doc := testTask("task-1", "buy milk", time.Now())
	_, err := q.Enqueue(ctx, mutation.Mutation{Action: mutation.ActionCreate, TargetID: doc.ID, Payload: &doc})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, mutation.Mutation{Action: mutation.ActionDelete, TargetID: "task-2"})
	require.NoError(t, err)

	// A fresh queue over the same store sees the log and resumes sequencing.
	reloaded := NewQueue(store, zerolog.Nop())
	require.NoError(t, reloaded.Load(ctx))

	require.Equal(t, 2, reloaded.Len())
	all := reloaded.All()
	assert.Equal(t, int64(1), all[0].Sequence)
	assert.Equal(t, mutation.ActionCreate, all[0].Action)
	require.NotNil(t, all[0].Payload)
	assert.Equal(t, "buy milk", all[0].Payload.Title)
	assert.Nil(t, all[1].Payload)

	next, err := reloaded.Enqueue(ctx, mutation.Mutation{Action: mutation.ActionUpdate, TargetID: "task-3"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), next.Sequence)
}

func TestQueue_RemovePersists(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	q := NewQueue(store, zerolog.Nop())
	require.NoError(t, q.Load(ctx))

	_, err := q.Enqueue(ctx, mutation.Mutation{Action: mutation.ActionCreate, TargetID: "a"})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, mutation.Mutation{Action: mutation.ActionUpdate, TargetID: "b"})
	require.NoError(t, err)

	require.NoError(t, q.Remove(ctx, 1))

	oldest, ok := q.Oldest()
	require.True(t, ok)
	assert.Equal(t, "b", oldest.TargetID)

	reloaded := NewQueue(store, zerolog.Nop())
	require.NoError(t, reloaded.Load(ctx))
	require.Equal(t, 1, reloaded.Len())
	assert.Equal(t, "b", reloaded.All()[0].TargetID)
}

func TestQueue_RemoveUnknownSequenceIsNoop(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(newTestStore(t), zerolog.Nop())
	require.NoError(t, q.Load(ctx))

	_, err := q.Enqueue(ctx, mutation.Mutation{Action: mutation.ActionCreate, TargetID: "a"})
	require.NoError(t, err)

	require.NoError(t, q.Remove(ctx, 99))
	assert.Equal(t, 1, q.Len())
}
