// Package format holds the lipgloss styles shared by the CLI's static
// (non-interactive) text output.
package format

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// HeaderStyle is for section headers.
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")) // Bright white

	// LabelStyle is for key-value labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")). // Bright blue
			Bold(true)

	// ValueStyle is for key-value values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")) // Bright white

	// DimStyle is for secondary information (hashes, sizes, dates).
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")). // Gray
			Faint(true)

	// WarnStyle is for non-fatal warnings printed to stdout.
	WarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3")) // Yellow

	// ErrStyle is for fatal errors printed to stderr.
	ErrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")) // Red
)
