package tui

import (
	"context"
	"log/slog"

	"github.com/Veraticus/food-classifier/internal/model"
	"github.com/Veraticus/food-classifier/internal/service"
	"github.com/Veraticus/food-classifier/internal/tui/themes"
)

// Selector holds the session's current image. imagesource.Slot implements it.
type Selector interface {
	Reserve() uint64
	SelectReserved(ctx context.Context, ticket uint64, sel model.Selection) (model.ImageInput, uint64, error)
	IsCurrent(gen uint64) bool
	Clear()
}

// Config holds TUI configuration.
type Config struct {
	Theme     themes.Theme
	Selector  Selector
	Predictor service.Predictor
	// History is optional; when set every displayed prediction is saved.
	History  service.PredictionStorage
	Logger   *slog.Logger
	Examples []string
	Width    int
	Height   int
	ShowHelp bool
}

// Option is a functional option for configuring the TUI.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		Theme:  themes.Default,
		Width:  80,
		Height: 24,
	}
}

// WithSelector sets the image slot.
func WithSelector(s Selector) Option {
	return func(c *Config) {
		c.Selector = s
	}
}

// WithPredictor sets the inference service.
func WithPredictor(p service.Predictor) Option {
	return func(c *Config) {
		c.Predictor = p
	}
}

// WithExamples sets the example names offered in the list.
func WithExamples(names []string) Option {
	return func(c *Config) {
		c.Examples = append([]string(nil), names...)
	}
}

// WithHistory records predictions to storage.
func WithHistory(storage service.PredictionStorage) Option {
	return func(c *Config) {
		c.History = storage
	}
}

// WithTheme sets the visual theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithLogger sets the logger used for background failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithFullHelp starts with the full key help expanded.
func WithFullHelp(show bool) Option {
	return func(c *Config) {
		c.ShowHelp = show
	}
}
