// Package style holds the lipgloss styles used by the CLI output.
// Styling is disabled automatically when stdout is not a terminal.
package style

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

var (
	// ErrorStyle renders fatal command errors
	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	// WarningStyle renders conflicts and destructive-action notices
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	// SuccessStyle renders completed operations
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	// PathStyle renders file paths
	PathStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	// MutedStyle renders secondary detail
	MutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// IsTerminal reports whether stdout supports styled output.
func IsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Render applies a style only when stdout is a terminal that supports
// color.
func Render(s lipgloss.Style, text string) string {
	if !IsTerminal() || termenv.EnvColorProfile() == termenv.Ascii {
		return text
	}
	return s.Render(text)
}
