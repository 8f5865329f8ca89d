package cli

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Veraticus/food-classifier/internal/common"
	"github.com/Veraticus/food-classifier/internal/config"
	"github.com/Veraticus/food-classifier/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// BarWidth is the number of cells in a full score bar.
const BarWidth = 24

// RenderBar draws score in [0,1] as a bar of width cells.
func RenderBar(score float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(math.Round(math.Max(0, math.Min(1, score)) * float64(width)))
	return barStyle.Render(strings.Repeat("█", filled)) +
		subtleStyle.Render(strings.Repeat("░", width-filled))
}

// RenderScores lists every label best first with a bar and its probability to
// four decimals. The winning label is highlighted.
func RenderScores(ranked model.LabelRankings) string {
	width := 0
	for _, r := range ranked {
		width = max(width, lipgloss.Width(r.Label))
	}

	lines := make([]string, 0, len(ranked))
	for i, r := range ranked {
		label := r.Label + strings.Repeat(" ", width-lipgloss.Width(r.Label))
		if i == 0 {
			label = winnerStyle.Render(label)
		}
		lines = append(lines, fmt.Sprintf("%s  %s %.4f", label, RenderBar(r.Score, BarWidth), r.Score))
	}
	return strings.Join(lines, "\n")
}

// RenderPrediction renders a prediction result: the winner, its confidence,
// the dish description and the ranked scores.
func RenderPrediction(result *model.PredictionResult) string {
	if result == nil {
		return ""
	}

	headline := fmt.Sprintf("%s %s", winnerStyle.Render(result.Label),
		subtleStyle.Render(fmt.Sprintf("(%.1f%% confidence)", result.Confidence*100)))

	source := string(result.Provenance)
	if result.Source != "" {
		source += ": " + result.Source
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		headline,
		subtleStyle.Render(source),
		"",
		result.Description,
		"",
		RenderScores(result.Ranked()),
	)
	return RenderBox(DishIcon+" Prediction", content)
}

// RenderExamples lists the preset example images.
func RenderExamples(catalog *config.Catalog) string {
	if catalog == nil || len(catalog.Examples) == 0 {
		return FormatInfo("No example images configured.")
	}

	nameWidth := len("Example")
	for _, ex := range catalog.Examples {
		nameWidth = max(nameWidth, lipgloss.Width(ex.Name))
	}

	var b strings.Builder
	b.WriteString(tableHeaderStyle.Render(fmt.Sprintf("%-*s  %s", nameWidth, "Example", "Description")))
	b.WriteString("\n")
	for _, ex := range catalog.Examples {
		fmt.Fprintf(&b, "%-*s  %s\n", nameWidth, ex.Name, catalog.Description(ex.Name))
		fmt.Fprintf(&b, "%-*s  %s\n", nameWidth, "", subtleStyle.Render(ex.URL))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderHistory lists stored predictions, newest first, followed by how often
// each label was predicted.
func RenderHistory(records []model.PredictionRecord, summary map[string]int) string {
	if len(records) == 0 {
		return FormatInfo("No predictions recorded yet.")
	}

	var b strings.Builder
	b.WriteString(tableHeaderStyle.Render(fmt.Sprintf("%-19s  %-8s  %-16s  %-10s  %s",
		"When", "Source", "Label", "Confidence", "Image")))
	b.WriteString("\n")
	for _, r := range records {
		fmt.Fprintf(&b, "%-19s  %-8s  %-16s  %-10s  %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.Provenance,
			r.Label,
			fmt.Sprintf("%.4f", r.Confidence),
			r.Source)
	}

	if len(summary) > 0 {
		labels := make([]string, 0, len(summary))
		for label := range summary {
			labels = append(labels, label)
		}
		sort.Slice(labels, func(i, j int) bool {
			if summary[labels[i]] != summary[labels[j]] {
				return summary[labels[i]] > summary[labels[j]]
			}
			return labels[i] < labels[j]
		})

		b.WriteString("\n")
		b.WriteString(boldStyle.Render(ChartIcon + " Totals"))
		b.WriteString("\n")
		for _, label := range labels {
			fmt.Fprintf(&b, "  %-16s %d\n", label, summary[label])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderError formats err for the terminal.
func RenderError(err error) string {
	return FormatError(common.UserMessage(err))
}

// RenderFatal formats an error that stops the classifier from starting, with
// a hint on how to recover.
func RenderFatal(err error) string {
	hint := "Check the artifact settings and your network, then run `foodclass fetch-model`."
	if errors.Is(err, common.ErrModelLoad) {
		hint = "Delete the cached model file to download it again, or check model.onnxruntime_library."
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		FormatError(common.UserMessage(err)),
		"",
		subtleStyle.Render(hint),
	)
	return fatalBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Cannot start the classifier"), "", content))
}
