package cli

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/food-classifier/internal/common"
	"github.com/Veraticus/food-classifier/internal/config"
	"github.com/Veraticus/food-classifier/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buuzResult(t *testing.T) *model.PredictionResult {
	t.Helper()
	vocab := model.Vocabulary{"Buuz", "Khuushuur", "Tsuivan", "Olivier Salad"}
	scores, err := model.NewScores(vocab, []float64{0.7, 0.2, 0.05, 0.05})
	require.NoError(t, err)
	return &model.PredictionResult{
		Label:       "Buuz",
		Confidence:  0.7,
		Scores:      scores,
		Description: "A traditional Mongolian steamed dumpling filled with minced meat.",
		Provenance:  model.ProvenanceExample,
		Source:      "Buuz",
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		name   string
		score  float64
		filled int
	}{
		{name: "empty", score: 0, filled: 0},
		{name: "half", score: 0.5, filled: 5},
		{name: "full", score: 1, filled: 10},
		{name: "clamped", score: 1.7, filled: 10},
		{name: "negative", score: -0.2, filled: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := RenderBar(tt.score, 10)
			assert.Equal(t, tt.filled, strings.Count(bar, "█"))
			assert.Equal(t, 10-tt.filled, strings.Count(bar, "░"))
		})
	}

	assert.Empty(t, RenderBar(0.5, 0))
}

func TestRenderScoresRankedWithFourDecimals(t *testing.T) {
	out := RenderScores(buuzResult(t).Ranked())
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 4)

	assert.Contains(t, lines[0], "Buuz")
	assert.Contains(t, lines[0], "0.7000")
	assert.Contains(t, lines[1], "Khuushuur")
	assert.Contains(t, lines[1], "0.2000")
	// Equal scores keep vocabulary order.
	assert.Contains(t, lines[2], "Tsuivan")
	assert.Contains(t, lines[3], "Olivier Salad")
	assert.Contains(t, lines[3], "0.0500")
}

func TestRenderPrediction(t *testing.T) {
	out := RenderPrediction(buuzResult(t))

	assert.Contains(t, out, "Buuz")
	assert.Contains(t, out, "70.0% confidence")
	assert.Contains(t, out, "steamed dumpling")
	assert.Contains(t, out, "example: Buuz")
	assert.Contains(t, out, "0.7000")

	assert.Empty(t, RenderPrediction(nil))
}

func TestRenderExamples(t *testing.T) {
	out := RenderExamples(config.DefaultCatalog())
	for _, name := range []string{"Buuz", "Khuushuur", "Tsuivan", "Olivier Salad"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "raw.githubusercontent.com")

	assert.Contains(t, RenderExamples(&config.Catalog{}), "No example images")
}

func TestRenderHistory(t *testing.T) {
	records := []model.PredictionRecord{
		{
			CreatedAt:  time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC),
			Provenance: model.ProvenanceUpload,
			Source:     "lunch.jpg",
			Label:      "Tsuivan",
			Confidence: 0.8123,
		},
		{
			CreatedAt:  time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
			Provenance: model.ProvenanceExample,
			Source:     "Buuz",
			Label:      "Buuz",
			Confidence: 0.7,
		},
	}

	out := RenderHistory(records, map[string]int{"Buuz": 1, "Tsuivan": 3})
	assert.Contains(t, out, "lunch.jpg")
	assert.Contains(t, out, "0.8123")
	assert.Contains(t, out, "Totals")
	totals := out[strings.Index(out, "Totals"):]
	assert.Less(t, strings.Index(totals, "Tsuivan"), strings.Index(totals, "Buuz"))

	assert.Contains(t, RenderHistory(nil, nil), "No predictions recorded yet")
}

func TestRenderError(t *testing.T) {
	err := common.NewStageError(common.StageUpload, common.ErrInvalidImage, errors.New("unknown format"))
	out := RenderError(err)
	assert.Contains(t, out, "not a valid JPEG or PNG image")
	assert.Contains(t, out, "upload")
}

func TestRenderFatal(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want []string
	}{
		{
			name: "artifact unavailable",
			err:  common.NewStageError(common.StageArtifact, common.ErrArtifactUnavailable, errors.New("fetch id: 404")),
			want: []string{"Cannot start the classifier", "could not be downloaded", "fetch-model"},
		},
		{
			name: "model load",
			err:  common.NewStageError(common.StageModel, common.ErrModelLoad, errors.New("no vocab")),
			want: []string{"Cannot start the classifier", "could not be loaded", "Delete the cached model"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RenderFatal(tt.err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}
