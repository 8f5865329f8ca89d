// Package cli renders predictions, examples and history for the terminal.
package cli

import (
	"github.com/Veraticus/food-classifier/internal/tui/themes"
	"github.com/charmbracelet/lipgloss"
)

// The one-shot commands share the picker's default palette.
var palette = themes.Default

var (
	warningColor = lipgloss.Color("#FFE66D")
	infoColor    = lipgloss.Color("#95E1D3")

	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(palette.Primary)
	subtleStyle      = lipgloss.NewStyle().Foreground(palette.Muted)
	boldStyle        = lipgloss.NewStyle().Bold(true)
	barStyle         = lipgloss.NewStyle().Foreground(palette.Primary)
	winnerStyle      = lipgloss.NewStyle().Bold(true).Foreground(palette.Success)
	successStyle     = lipgloss.NewStyle().Foreground(palette.Success)
	errorStyle       = lipgloss.NewStyle().Foreground(palette.Error)
	warningStyle     = lipgloss.NewStyle().Foreground(warningColor)
	infoStyle        = lipgloss.NewStyle().Foreground(infoColor)
	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderBottom(true).
				BorderForeground(palette.Border)
	fatalBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(palette.Error).
			Padding(1, 2)
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(palette.Border).
			Padding(1, 2)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	DishIcon    = "🥟"
	ChartIcon   = "📊"
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return successStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return errorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return warningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return infoStyle.Render(InfoIcon + " " + message)
}

// RenderBox renders content under a title in a rounded box.
func RenderBox(title, content string) string {
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), "", content))
}
