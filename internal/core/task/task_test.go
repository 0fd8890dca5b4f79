package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		wantErr error
	}{
		{"valid", Task{Title: "buy milk", Category: CategoryShopping}, nil},
		{"empty title", Task{Title: ""}, ErrEmptyTitle},
		{"whitespace title", Task{Title: "   "}, ErrEmptyTitle},
		{"unknown category", Task{Title: "x", Category: "chores"}, ErrInvalidCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidate_DefaultsCategory(t *testing.T) {
	tk := Task{Title: "no category"}
	require.NoError(t, tk.Validate())
	assert.Equal(t, CategoryGeneral, tk.Category)
}

func TestPatch_Apply(t *testing.T) {
	created := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	now := time.Date(2026, 1, 11, 9, 0, 0, 0, time.UTC)

	tk := Task{
		ID:        "t1",
		Title:     "original",
		Category:  CategoryGeneral,
		CreatedAt: created,
		UpdatedAt: created,
	}

	title := "  renamed  "
	done := true
	cat := CategoryWork
	Patch{Title: &title, Done: &done, Category: &cat}.Apply(&tk, now)

	assert.Equal(t, "renamed", tk.Title)
	assert.True(t, tk.Done)
	assert.Equal(t, CategoryWork, tk.Category)
	assert.Equal(t, now, tk.UpdatedAt)
	assert.Equal(t, created, tk.CreatedAt, "CreatedAt never changes")
}

func TestPatch_Validate(t *testing.T) {
	empty := " "
	assert.ErrorIs(t, Patch{Title: &empty}.Validate(), ErrEmptyTitle)

	bad := Category("nope")
	assert.ErrorIs(t, Patch{Category: &bad}.Validate(), ErrInvalidCategory)

	assert.NoError(t, Patch{}.Validate())
}

func TestSortByCreatedAt(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tasks := []Task{
		{ID: "old", CreatedAt: base},
		{ID: "new", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "mid", CreatedAt: base.Add(time.Hour)},
	}

	SortByCreatedAt(tasks)

	var ids []string
	for _, tk := range tasks {
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, []string{"new", "mid", "old"}, ids)
}

func TestDueTodayAndOverdue(t *testing.T) {
	now := time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

	today := time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)

	assert.True(t, Task{DueDate: &today}.DueToday(now))
	assert.False(t, Task{DueDate: &yesterday}.DueToday(now))
	assert.False(t, Task{}.DueToday(now))

	assert.True(t, Task{DueDate: &yesterday}.Overdue(now))
	assert.False(t, Task{DueDate: &yesterday, Done: true}.Overdue(now))
	assert.False(t, Task{}.Overdue(now))
}
