package themes

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual style for the TUI.
type Theme struct {
	Selected      lipgloss.Style
	StatusInfo    lipgloss.Style
	StatusError   lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusPending lipgloss.Style
	Title         lipgloss.Style
	Subtitle      lipgloss.Style
	Normal        lipgloss.Style
	Bold          lipgloss.Style
	Italic        lipgloss.Style
	RoundedBox    lipgloss.Style
	Primary       lipgloss.Color
	Secondary     lipgloss.Color
	Muted         lipgloss.Color
	Border        lipgloss.Color
	Error         lipgloss.Color
	Success       lipgloss.Color
}

// Default is the default theme.
var Default = Theme{
	Primary:   lipgloss.Color("#F4A259"),
	Secondary: lipgloss.Color("#BC4B51"),
	Success:   lipgloss.Color("#10b981"),
	Error:     lipgloss.Color("#ef4444"),
	Border:    lipgloss.Color("#404040"),
	Muted:     lipgloss.Color("#737373"),

	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#fafafa")).
		MarginBottom(1),
	Subtitle: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#a3a3a3")),
	Normal: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#fafafa")),
	Bold: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#fafafa")),
	Italic: lipgloss.NewStyle().
		Italic(true).
		Foreground(lipgloss.Color("#d4d4d4")),
	Selected: lipgloss.NewStyle().
		Background(lipgloss.Color("#F4A259")).
		Foreground(lipgloss.Color("#1a1a1a")).
		Bold(true),
	RoundedBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#404040")).
		Padding(0, 1),

	StatusSuccess: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10b981")).
		Bold(true),
	StatusError: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#ef4444")).
		Bold(true),
	StatusInfo: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#3b82f6")).
		Bold(true),
	StatusPending: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#737373")).
		Italic(true),
}

// CatppuccinMocha is the Catppuccin Mocha theme.
var CatppuccinMocha = Theme{
	Primary:   lipgloss.Color("#fab387"),
	Secondary: lipgloss.Color("#f5c2e7"),
	Success:   lipgloss.Color("#a6e3a1"),
	Error:     lipgloss.Color("#f38ba8"),
	Border:    lipgloss.Color("#45475a"),
	Muted:     lipgloss.Color("#6c7086"),

	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#cdd6f4")).
		MarginBottom(1),
	Subtitle: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#a6adc8")),
	Normal: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#cdd6f4")),
	Bold: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#cdd6f4")),
	Italic: lipgloss.NewStyle().
		Italic(true).
		Foreground(lipgloss.Color("#bac2de")),
	Selected: lipgloss.NewStyle().
		Background(lipgloss.Color("#fab387")).
		Foreground(lipgloss.Color("#1e1e2e")).
		Bold(true),
	RoundedBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#45475a")).
		Padding(0, 1),

	StatusSuccess: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#a6e3a1")).
		Bold(true),
	StatusError: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#f38ba8")).
		Bold(true),
	StatusInfo: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#89dceb")).
		Bold(true),
	StatusPending: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6c7086")).
		Italic(true),
}

// GetTheme returns a theme by name.
func GetTheme(name string) Theme {
	switch name {
	case "catppuccin-mocha":
		return CatppuccinMocha
	default:
		return Default
	}
}

// DishIcons maps labels to emoji icons.
var DishIcons = map[string]string{
	"Buuz":          "🥟",
	"Khuushuur":     "🥠",
	"Tsuivan":       "🍜",
	"Olivier Salad": "🥗",
}

// GetDishIcon returns an icon for a label.
func GetDishIcon(label string) string {
	if icon, ok := DishIcons[label]; ok {
		return icon
	}
	return "🍽️"
}
