package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Veraticus/food-classifier/internal/common"
	"github.com/Veraticus/food-classifier/internal/imagesource"
	"github.com/Veraticus/food-classifier/internal/model"
	"github.com/Veraticus/food-classifier/internal/testutil"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dishes = model.Vocabulary{"Buuz", "Khuushuur", "Tsuivan", "Olivier Salad"}

// stubResolver accepts every example except those listed in fail, and every
// upload whose bytes start with "IMG".
type stubResolver struct {
	fail map[string]error
}

func (r stubResolver) Resolve(_ context.Context, sel model.Selection) (model.ImageInput, error) {
	switch s := sel.(type) {
	case model.Example:
		if err := r.fail[s.Name]; err != nil {
			return model.ImageInput{}, err
		}
		return model.ImageInput{Provenance: model.ProvenanceExample, Name: s.Name, Format: "png", Data: []byte("IMG")}, nil
	case model.Upload:
		if !strings.HasPrefix(string(s.Data), "IMG") {
			return model.ImageInput{}, common.NewStageError(common.StageUpload, common.ErrInvalidImage, errors.New("unknown format"))
		}
		return model.ImageInput{Provenance: model.ProvenanceUpload, Name: s.Name, Format: "jpeg", Data: s.Data}, nil
	}
	return model.ImageInput{}, errors.New("unexpected selection")
}

// namePredictor gives 0.7 to the label named like the image, 0.2 to the next
// label and 0.05 to the rest. Unknown names score as Buuz.
type namePredictor struct{}

func (namePredictor) Predict(_ context.Context, input model.ImageInput) (*model.PredictionResult, error) {
	idx := max(dishes.Index(input.Name), 0)
	probs := []float64{0.05, 0.05, 0.05, 0.05}
	probs[idx] = 0.7
	probs[(idx+1)%len(probs)] = 0.2

	scores, err := model.NewScores(dishes, probs)
	if err != nil {
		return nil, err
	}
	label, confidence := scores.ArgMax()
	return &model.PredictionResult{
		Label:       label,
		Confidence:  confidence,
		Scores:      scores,
		Description: "About " + label,
		Provenance:  input.Provenance,
		Source:      input.Name,
	}, nil
}

func newTestModel(t *testing.T, opts ...Option) (Model, *imagesource.Slot) {
	t.Helper()
	return newTestModelWithResolver(t, stubResolver{}, opts...)
}

func newTestModelWithResolver(t *testing.T, resolver stubResolver, opts ...Option) (Model, *imagesource.Slot) {
	t.Helper()
	slot := imagesource.NewSlot(resolver)
	opts = append([]Option{
		WithSelector(slot),
		WithPredictor(namePredictor{}),
		WithExamples(dishes),
	}, opts...)
	m, err := NewModel(context.Background(), opts...)
	require.NoError(t, err)
	return m, slot
}

func press(t *testing.T, m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyCtrlC = tea.KeyMsg{Type: tea.KeyCtrlC}
)

// collect runs cmd and returns the picker's own messages it produces,
// skipping spinner ticks and other timers.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, collect(c)...)
		}
		return out
	case selectedMsg, predictedMsg, recordedMsg, tea.QuitMsg:
		return []tea.Msg{msg}
	default:
		return nil
	}
}

// settle feeds every message cmd produces back into m until nothing is left.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for _, msg := range collect(cmd) {
		next, nextCmd := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
		m = settle(t, m, nextCmd)
	}
	return m
}

func TestNewModelRequiresDependencies(t *testing.T) {
	_, err := NewModel(context.Background(), WithPredictor(namePredictor{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selector")

	_, err = NewModel(context.Background(), WithSelector(imagesource.NewSlot(stubResolver{})))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "predictor")
}

func TestBrowseMovesCursorWithinBounds(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(t, m, keyUp)
	assert.Equal(t, 0, m.cursor)

	m, _ = press(t, m, keyDown)
	m, _ = press(t, m, keyDown)
	assert.Equal(t, 2, m.cursor)

	m, _ = press(t, m, keyRunes("G"))
	assert.Equal(t, 3, m.cursor)
	m, _ = press(t, m, keyDown)
	assert.Equal(t, 3, m.cursor)

	m, _ = press(t, m, keyRunes("g"))
	assert.Equal(t, 0, m.cursor)
}

func TestClassifyExampleShowsPrediction(t *testing.T) {
	m, slot := newTestModel(t)

	m, cmd := press(t, m, keyEnter)
	assert.True(t, m.busy)
	assert.Contains(t, m.View(), "Classifying")

	m = settle(t, m, cmd)
	require.NotNil(t, m.Result())
	assert.False(t, m.busy)
	assert.Equal(t, "Buuz", m.Result().Label)
	assert.InDelta(t, 0.7, m.Result().Confidence, 1e-9)
	assert.Equal(t, "Buuz", m.selected)

	current, _, ok := slot.Current()
	require.True(t, ok)
	assert.Equal(t, "Buuz", current.Name)

	view := m.View()
	assert.Contains(t, view, "70.0% confidence")
	assert.Contains(t, view, "About Buuz")
	assert.Contains(t, view, "0.2000")
}

func TestStaleSelectionIsDiscarded(t *testing.T) {
	m, slot := newTestModel(t)

	// Start Buuz but hold its reply back.
	m, slowCmd := press(t, m, keyEnter)

	m, _ = press(t, m, keyDown)
	m, fastCmd := press(t, m, keyEnter)
	m = settle(t, m, fastCmd)
	require.NotNil(t, m.Result())
	assert.Equal(t, "Khuushuur", m.Result().Label)

	m = settle(t, m, slowCmd)
	assert.Equal(t, "Khuushuur", m.Result().Label)
	assert.Equal(t, "Khuushuur", m.selected)

	current, _, ok := slot.Current()
	require.True(t, ok)
	assert.Equal(t, "Khuushuur", current.Name)
}

func TestStalePredictionIsDiscarded(t *testing.T) {
	m, _ := newTestModel(t)

	m, cmd := press(t, m, keyEnter)
	msgs := collect(cmd)
	require.Len(t, msgs, 1)
	next, predictCmd := m.Update(msgs[0])
	m = next.(Model)
	require.NotNil(t, predictCmd)

	m, _ = press(t, m, keyRunes("G"))
	m, fastCmd := press(t, m, keyEnter)
	m = settle(t, m, fastCmd)
	assert.Equal(t, "Olivier Salad", m.Result().Label)

	// The Buuz prediction arrives after Olivier Salad replaced it.
	m = settle(t, m, predictCmd)
	assert.Equal(t, "Olivier Salad", m.Result().Label)
}

func TestExampleFailureKeepsPreviousSelection(t *testing.T) {
	fetchErr := common.NewStageError(common.StageExample, common.ErrExampleFetch, errors.New("status 404"))
	m, slot := newTestModelWithResolver(t, stubResolver{fail: map[string]error{"Khuushuur": fetchErr}})

	m, cmd := press(t, m, keyEnter)
	m = settle(t, m, cmd)
	require.Equal(t, "Buuz", m.Result().Label)

	m, _ = press(t, m, keyDown)
	m, cmd = press(t, m, keyEnter)
	m = settle(t, m, cmd)

	require.ErrorIs(t, m.Err(), common.ErrExampleFetch)
	assert.False(t, m.busy)
	assert.Equal(t, "Buuz", m.Result().Label)
	assert.Contains(t, m.View(), "could not be fetched")

	current, _, ok := slot.Current()
	require.True(t, ok)
	assert.Equal(t, "Buuz", current.Name)
}

func TestUploadClassifiesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dinner.jpg")
	require.NoError(t, os.WriteFile(path, []byte("IMG dinner"), 0o600))

	m, slot := newTestModel(t)

	m, _ = press(t, m, keyRunes("u"))
	assert.Equal(t, StateUpload, m.state)
	assert.Contains(t, m.View(), "Image file:")

	m, _ = press(t, m, keyRunes(path))
	m, cmd := press(t, m, keyEnter)
	assert.Equal(t, StateBrowse, m.state)
	m = settle(t, m, cmd)

	require.NoError(t, m.Err())
	require.NotNil(t, m.Result())
	assert.Equal(t, model.ProvenanceUpload, m.Result().Provenance)
	assert.Equal(t, "dinner.jpg", m.Result().Source)
	assert.Equal(t, "dinner.jpg", m.selected)

	current, _, ok := slot.Current()
	require.True(t, ok)
	assert.Equal(t, model.ProvenanceUpload, current.Provenance)
}

func TestInvalidUploadKeepsPreviousSelection(t *testing.T) {
	dir := t.TempDir()
	notImage := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notImage, []byte("shopping list"), 0o600))

	tests := []struct {
		name string
		path string
	}{
		{name: "not an image", path: notImage},
		{name: "missing file", path: filepath.Join(dir, "missing.png")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, slot := newTestModel(t)
			m, cmd := press(t, m, keyEnter)
			m = settle(t, m, cmd)
			require.Equal(t, "Buuz", m.Result().Label)

			m, _ = press(t, m, keyRunes("u"))
			m, _ = press(t, m, keyRunes(tt.path))
			m, cmd = press(t, m, keyEnter)
			m = settle(t, m, cmd)

			require.ErrorIs(t, m.Err(), common.ErrInvalidImage)
			assert.Equal(t, "Buuz", m.Result().Label)
			assert.Equal(t, "Buuz", m.selected)

			current, _, ok := slot.Current()
			require.True(t, ok)
			assert.Equal(t, "Buuz", current.Name)
		})
	}
}

func TestUploadCancel(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = press(t, m, keyRunes("u"))
	m, _ = press(t, m, keyRunes("q"))
	assert.False(t, m.quitting, "q is typed into the path input")
	assert.Equal(t, "q", m.input.Value())

	m, cmd := press(t, m, keyEsc)
	assert.Nil(t, cmd)
	assert.Equal(t, StateBrowse, m.state)
	assert.False(t, m.busy)

	m, _ = press(t, m, keyRunes("u"))
	m, cmd = press(t, m, keyEnter)
	assert.Nil(t, cmd, "empty path does nothing")
	assert.Equal(t, StateBrowse, m.state)
}

func TestClearDropsSelectionAndInFlightWork(t *testing.T) {
	m, slot := newTestModel(t)

	m, cmd := press(t, m, keyEnter)
	m = settle(t, m, cmd)
	require.NotNil(t, m.Result())

	m, pending := press(t, m, keyDown)
	require.Nil(t, pending)
	m, pending = press(t, m, keyEnter)

	m, _ = press(t, m, keyRunes("c"))
	assert.Nil(t, m.Result())
	assert.Empty(t, m.selected)
	assert.False(t, m.busy)

	m = settle(t, m, pending)
	assert.Nil(t, m.Result())
	_, _, ok := slot.Current()
	assert.False(t, ok)
	assert.Contains(t, m.View(), "Choose an example")
}

func TestPredictionsAreRecorded(t *testing.T) {
	db := testutil.SetupTestDB(t)
	m, _ := newTestModel(t, WithHistory(db.Storage))

	m, cmd := press(t, m, keyEnter)
	m = settle(t, m, cmd)
	require.NotNil(t, m.Result())

	records, err := db.Storage.ListPredictions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Buuz", records[0].Label)
	assert.Equal(t, model.ProvenanceExample, records[0].Provenance)
}

func TestQuitKeys(t *testing.T) {
	m, _ := newTestModel(t)
	m, cmd := press(t, m, keyRunes("q"))
	assert.True(t, m.quitting)
	assert.Equal(t, []tea.Msg{tea.QuitMsg{}}, collect(cmd))
	assert.Empty(t, m.View())

	m, _ = newTestModel(t)
	m, _ = press(t, m, keyRunes("u"))
	m, cmd = press(t, m, keyCtrlC)
	assert.True(t, m.quitting)
	assert.Equal(t, []tea.Msg{tea.QuitMsg{}}, collect(cmd))
}

func TestViewListsExamplesAndHelp(t *testing.T) {
	m, _ := newTestModel(t, WithSize(100, 30))
	view := m.View()
	for _, name := range dishes {
		assert.Contains(t, view, name)
	}
	assert.Contains(t, view, "upload a file")

	m, _ = press(t, m, keyRunes("?"))
	assert.True(t, m.help.ShowAll)
	assert.Contains(t, m.View(), "first example")

	empty, err := NewModel(context.Background(),
		WithSelector(imagesource.NewSlot(stubResolver{})),
		WithPredictor(namePredictor{}))
	require.NoError(t, err)
	assert.Contains(t, empty.View(), "No example images configured")
	next, cmd := empty.Update(keyEnter)
	assert.Nil(t, cmd)
	assert.Nil(t, next.(Model).Result())
}
