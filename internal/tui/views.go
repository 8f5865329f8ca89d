package tui

import (
	"fmt"
	"strings"

	"github.com/Veraticus/food-classifier/internal/common"
	"github.com/Veraticus/food-classifier/internal/model"
	"github.com/Veraticus/food-classifier/internal/tui/themes"
	"github.com/charmbracelet/lipgloss"
)

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{
		m.theme.Title.Render(themes.GetDishIcon("Buuz") + " Mongolian Food Classifier"),
		m.renderExamples(),
	}
	if m.state == StateUpload {
		sections = append(sections, "", m.input.View())
	}
	sections = append(sections, "", m.renderStatus())
	if m.result != nil {
		sections = append(sections, "", m.renderResult(m.result))
	}
	sections = append(sections, "", m.renderHelp())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderExamples() string {
	if len(m.config.Examples) == 0 {
		return m.theme.StatusPending.Render("No example images configured. Press u to upload a file.")
	}

	lines := make([]string, 0, len(m.config.Examples)+1)
	lines = append(lines, m.theme.Subtitle.Render("Examples"))
	for i, name := range m.config.Examples {
		line := fmt.Sprintf("%s %s", themes.GetDishIcon(name), name)
		if i == m.cursor {
			lines = append(lines, m.theme.Selected.Render("> "+line))
		} else {
			lines = append(lines, m.theme.Normal.Render("  "+line))
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderStatus() string {
	switch {
	case m.busy:
		return m.spinner.View() + " " + m.theme.StatusPending.Render("Classifying...")
	case m.lastError != nil:
		return m.theme.StatusError.Render("✗ " + common.UserMessage(m.lastError))
	case m.selected != "":
		return m.theme.StatusInfo.Render("Selected: ") + m.selected
	default:
		return m.theme.StatusPending.Render("Choose an example or upload an image.")
	}
}

func (m Model) renderResult(result *model.PredictionResult) string {
	headline := fmt.Sprintf("%s %s  %s",
		themes.GetDishIcon(result.Label),
		m.theme.StatusSuccess.Render(result.Label),
		m.theme.Subtitle.Render(fmt.Sprintf("%.1f%% confidence", result.Confidence*100)))

	content := []string{
		headline,
		m.theme.Italic.Render(result.Description),
		"",
		m.renderScores(result.Ranked()),
	}
	return m.theme.RoundedBox.Render(lipgloss.JoinVertical(lipgloss.Left, content...))
}

func (m Model) renderScores(ranked model.LabelRankings) string {
	width := 0
	for _, r := range ranked {
		width = max(width, lipgloss.Width(r.Label))
	}

	lines := make([]string, 0, len(ranked))
	for _, r := range ranked {
		label := r.Label + strings.Repeat(" ", width-lipgloss.Width(r.Label))
		lines = append(lines, fmt.Sprintf("%s  %s %.4f", label, m.bar.ViewAs(r.Score), r.Score))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderHelp() string {
	if m.state == StateUpload {
		return m.help.View(uploadKeyMap{m.keymap})
	}
	return m.help.View(m.keymap)
}
