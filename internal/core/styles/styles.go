// Package styles provides shared lipgloss styles for CLI output.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/colonyops/porter/internal/core/task"
)

var (
	// Header styles section titles in list output.
	Header = lipgloss.NewStyle().Bold(true)

	// Muted styles secondary detail like ids and timestamps.
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))

	// Done styles completed task titles.
	Done = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("243"))

	// Success styles confirmations and the online indicator.
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	// Warning styles the offline indicator and queued-write notices.
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	// Error styles failures.
	Error = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	// Overdue tags tasks past their due date.
	Overdue = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// categoryColors maps each task category to a tag color.
var categoryColors = map[task.Category]lipgloss.Color{
	task.CategoryGeneral:   lipgloss.Color("245"),
	task.CategoryWork:      lipgloss.Color("33"),
	task.CategoryPersonal:  lipgloss.Color("42"),
	task.CategoryShopping:  lipgloss.Color("214"),
	task.CategoryHealth:    lipgloss.Color("196"),
	task.CategoryEducation: lipgloss.Color("45"),
}

// CategoryTag renders a colored tag for the category.
func CategoryTag(c task.Category) string {
	color, ok := categoryColors[c]
	if !ok {
		color = categoryColors[task.CategoryGeneral]
	}
	return lipgloss.NewStyle().Foreground(color).Render(string(c))
}
