package tui

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Veraticus/food-classifier/internal/common"
	"github.com/Veraticus/food-classifier/internal/imagesource"
	"github.com/Veraticus/food-classifier/internal/model"
	"github.com/Veraticus/food-classifier/internal/tui/themes"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// State represents the current state of the TUI.
type State int

const (
	// StateBrowse is the example list.
	StateBrowse State = iota
	// StateUpload shows the upload path input.
	StateUpload
)

// Model holds the picker state.
type Model struct {
	ctx       context.Context
	lastError error
	result    *model.PredictionResult
	logger    *slog.Logger
	theme     themes.Theme
	keymap    KeyMap
	help      help.Model
	spinner   spinner.Model
	bar       progress.Model
	input     textinput.Model
	selected  string
	config    Config
	// ticket is the newest selection reserved from the slot; replies for
	// older tickets are ignored.
	ticket   uint64
	cursor   int
	width    int
	height   int
	state    State
	busy     bool
	quitting bool
}

// NewModel creates a picker model. ctx bounds every background command.
func NewModel(ctx context.Context, opts ...Option) (Model, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Selector == nil {
		return Model{}, errors.New("selector is required")
	}
	if cfg.Predictor == nil {
		return Model{}, errors.New("predictor is required")
	}
	return newModel(ctx, cfg), nil
}

func newModel(ctx context.Context, cfg Config) Model {
	input := textinput.New()
	input.Placeholder = "path/to/dish.jpg"
	input.Prompt = "Image file: "
	input.CharLimit = 4096

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(cfg.Theme.Primary)

	bar := progress.New(progress.WithSolidFill(string(cfg.Theme.Primary)))
	bar.ShowPercentage = false
	bar.Width = 24

	h := help.New()
	h.ShowAll = cfg.ShowHelp

	return Model{
		ctx:     ctx,
		config:  cfg,
		theme:   cfg.Theme,
		keymap:  DefaultKeyMap(),
		help:    h,
		spinner: s,
		bar:     bar,
		input:   input,
		logger:  common.LoggerOrDefault(cfg.Logger),
		width:   cfg.Width,
		height:  cfg.Height,
		state:   StateBrowse,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keymap.ForceQuit) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.state == StateUpload {
			return m.updateUpload(msg)
		}
		return m.updateBrowse(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case selectedMsg:
		return m.handleSelected(msg)

	case predictedMsg:
		return m.handlePredicted(msg)

	case recordedMsg:
		if msg.err != nil {
			m.logger.Warn("failed to record prediction", "error", msg.err)
		}
		return m, nil

	case spinner.TickMsg:
		if m.busy {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if m.state == StateUpload {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	last := len(m.config.Examples) - 1

	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keymap.Down):
		if m.cursor < last {
			m.cursor++
		}

	case key.Matches(msg, m.keymap.Home):
		m.cursor = 0

	case key.Matches(msg, m.keymap.End):
		m.cursor = max(last, 0)

	case key.Matches(msg, m.keymap.Classify):
		if last < 0 {
			return m, nil
		}
		name := m.config.Examples[m.cursor]
		return m.begin(func(ticket uint64) tea.Cmd { return m.selectExample(ticket, name) })

	case key.Matches(msg, m.keymap.Upload):
		m.state = StateUpload
		m.input.SetValue("")
		return m, m.input.Focus()

	case key.Matches(msg, m.keymap.Clear):
		m.config.Selector.Clear()
		m.ticket = 0
		m.busy = false
		m.result = nil
		m.selected = ""
		m.lastError = nil

	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m Model) updateUpload(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Cancel):
		m.state = StateBrowse
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.keymap.Submit):
		path := m.input.Value()
		m.state = StateBrowse
		m.input.Blur()
		if path == "" {
			return m, nil
		}
		return m.begin(func(ticket uint64) tea.Cmd { return m.selectUpload(ticket, path) })
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// begin reserves a slot ticket so the new selection supersedes every one
// still in flight, then starts it.
func (m Model) begin(start func(ticket uint64) tea.Cmd) (tea.Model, tea.Cmd) {
	m.ticket = m.config.Selector.Reserve()
	m.busy = true
	m.lastError = nil
	return m, tea.Batch(start(m.ticket), m.spinner.Tick)
}

func (m Model) handleSelected(msg selectedMsg) (tea.Model, tea.Cmd) {
	if msg.ticket != m.ticket || errors.Is(msg.err, imagesource.ErrSuperseded) {
		return m, nil
	}
	if msg.err != nil {
		// The slot keeps the previous image; so does the display.
		m.busy = false
		m.lastError = msg.err
		return m, nil
	}
	m.selected = msg.input.Name
	return m, m.predict(msg.gen, msg.input)
}

func (m Model) handlePredicted(msg predictedMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.ticket || !m.config.Selector.IsCurrent(msg.gen) {
		return m, nil
	}
	m.busy = false
	if msg.err != nil {
		m.lastError = msg.err
		m.result = nil
		return m, nil
	}
	m.result = msg.result
	return m, m.record(msg.result)
}

// Result returns the prediction on display, if any.
func (m Model) Result() *model.PredictionResult {
	return m.result
}

// Err returns the error on display, if any.
func (m Model) Err() error {
	return m.lastError
}
