package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/food-classifier/internal/common"
	"github.com/Veraticus/food-classifier/internal/config"
	"github.com/Veraticus/food-classifier/internal/model"
	tea "github.com/charmbracelet/bubbletea"
)

const historyTimeout = 5 * time.Second

// selectExample resolves a preset example under ticket.
func (m Model) selectExample(ticket uint64, name string) tea.Cmd {
	ctx, selector := m.ctx, m.config.Selector
	return func() tea.Msg {
		input, gen, err := selector.SelectReserved(ctx, ticket, model.Example{Name: name})
		return selectedMsg{input: input, ticket: ticket, gen: gen, err: err}
	}
}

// selectUpload reads the file at path and resolves it as an upload under ticket.
func (m Model) selectUpload(ticket uint64, path string) tea.Cmd {
	ctx, selector := m.ctx, m.config.Selector
	return func() tea.Msg {
		path = config.ExpandPath(strings.TrimSpace(path))
		data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- user-chosen upload
		if err != nil {
			return selectedMsg{
				ticket: ticket,
				err:    common.NewStageError(common.StageUpload, common.ErrInvalidImage, fmt.Errorf("failed to read %s: %w", path, err)),
			}
		}

		input, gen, err := selector.SelectReserved(ctx, ticket, model.Upload{Name: filepath.Base(path), Data: data})
		return selectedMsg{input: input, ticket: ticket, gen: gen, err: err}
	}
}

// predict classifies input, tagging the result with its slot generation.
func (m Model) predict(gen uint64, input model.ImageInput) tea.Cmd {
	ctx, predictor := m.ctx, m.config.Predictor
	return func() tea.Msg {
		result, err := predictor.Predict(ctx, input)
		return predictedMsg{gen: gen, result: result, err: err}
	}
}

// record saves result to history.
func (m Model) record(result *model.PredictionResult) tea.Cmd {
	history := m.config.History
	if history == nil || result == nil {
		return nil
	}
	parent := m.ctx
	return func() tea.Msg {
		record, err := model.NewPredictionRecord(result)
		if err != nil {
			return recordedMsg{err: err}
		}
		ctx, cancel := context.WithTimeout(parent, historyTimeout)
		defer cancel()
		return recordedMsg{err: history.SavePrediction(ctx, record)}
	}
}
