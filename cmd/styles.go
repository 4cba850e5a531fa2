package cmd

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginTop(1).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)
)

var titleCaser = cases.Title(language.English)

// statusStyle colours a status value by outcome
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "shortlisted", "hired", "booked", "completed":
		return successStyle
	case "rejected", "failed", "canceled":
		return errorStyle
	default:
		return valueStyle
	}
}

// statusLabel renders snake_case statuses as "In Progress"
func statusLabel(status string) string {
	return statusStyle(status).Render(titleCaser.String(strings.ReplaceAll(status, "_", " ")))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return mutedStyle.Render("-")
	}
	return t.Format("Jan 2, 2006 15:04")
}
