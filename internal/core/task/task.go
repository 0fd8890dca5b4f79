// Package task defines the task domain model shared by the repository,
// the sync engine, and the remote source.
package task

import (
	"errors"
	"slices"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a task does not exist.
	ErrNotFound = errors.New("task not found")
	// ErrEmptyTitle is returned when a task title is empty or whitespace.
	ErrEmptyTitle = errors.New("task title must not be empty")
	// ErrInvalidCategory is returned when a category is not one of the known set.
	ErrInvalidCategory = errors.New("unknown task category")
)

// Category classifies a task into one of a fixed set of buckets.
type Category string

const (
	CategoryGeneral   Category = "general"
	CategoryWork      Category = "work"
	CategoryPersonal  Category = "personal"
	CategoryShopping  Category = "shopping"
	CategoryHealth    Category = "health"
	CategoryEducation Category = "education"
)

// Categories lists all valid categories in display order.
func Categories() []Category {
	return []Category{
		CategoryGeneral,
		CategoryWork,
		CategoryPersonal,
		CategoryShopping,
		CategoryHealth,
		CategoryEducation,
	}
}

// Valid reports whether the category is one of the known set.
func (c Category) Valid() bool {
	return slices.Contains(Categories(), c)
}

// Task represents a single user task.
//
// IDs are generated on the client at creation time, never by the remote
// store, so a retried create is keyed identically to the original.
type Task struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Category  Category   `json:"category"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	DueTime   string     `json:"due_time,omitempty"`
	Done      bool       `json:"done"`
	OwnerID   string     `json:"owner_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Validate checks the task fields that gate both the online and offline
// write paths. Defaults the category to general when unset.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if t.Category == "" {
		t.Category = CategoryGeneral
	}
	if !t.Category.Valid() {
		return ErrInvalidCategory
	}
	return nil
}

// DueToday reports whether the task's due date falls on the same calendar
// day as now.
func (t Task) DueToday(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	y1, m1, d1 := t.DueDate.Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Overdue reports whether the task is past due and not completed.
func (t Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && !t.Done
}

// Patch is a partial update to a task. Nil fields are left untouched.
type Patch struct {
	Title    *string    `json:"title,omitempty"`
	Category *Category  `json:"category,omitempty"`
	DueDate  *time.Time `json:"due_date,omitempty"`
	DueTime  *string    `json:"due_time,omitempty"`
	Done     *bool      `json:"done,omitempty"`
}

// Validate checks the fields the patch would change.
func (p Patch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ErrEmptyTitle
	}
	if p.Category != nil && !p.Category.Valid() {
		return ErrInvalidCategory
	}
	return nil
}

// Apply writes the patch onto the task and refreshes UpdatedAt.
func (p Patch) Apply(t *Task, now time.Time) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.DueDate != nil {
		t.DueDate = p.DueDate
	}
	if p.DueTime != nil {
		t.DueTime = *p.DueTime
	}
	if p.Done != nil {
		t.Done = *p.Done
	}
	t.UpdatedAt = now
}

// SortByCreatedAt orders tasks newest first, the listing order used
// everywhere: the cached snapshot, the remote query, and the repository.
func SortByCreatedAt(tasks []Task) {
	slices.SortStableFunc(tasks, func(a, b Task) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
