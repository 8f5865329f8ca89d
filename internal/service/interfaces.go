// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"image"
	"io"

	"github.com/Veraticus/food-classifier/internal/model"
)

// ArtifactFetcher retrieves a model artifact blob from a remote source.
type ArtifactFetcher interface {
	// Open starts the download of artifactID. size is -1 when unknown.
	Open(ctx context.Context, artifactID string) (body io.ReadCloser, size int64, err error)
}

// ArtifactEnsurer makes sure an artifact is present locally.
type ArtifactEnsurer interface {
	Ensure(ctx context.Context, artifactID, localPath string) (string, error)
}

// Classifier scores a decoded image against a fixed vocabulary.
type Classifier interface {
	Classify(img image.Image) (model.Scores, error)
	Vocabulary() model.Vocabulary
}

// ImageResolver turns a user selection into an image ready to classify.
type ImageResolver interface {
	Resolve(ctx context.Context, sel model.Selection) (model.ImageInput, error)
}

// Predictor classifies an image input end to end.
type Predictor interface {
	Predict(ctx context.Context, input model.ImageInput) (*model.PredictionResult, error)
}

// DescriptionSource looks up the human-readable description of a label.
type DescriptionSource interface {
	Description(label string) string
}

// PredictionStorage persists prediction history.
type PredictionStorage interface {
	SavePrediction(ctx context.Context, record *model.PredictionRecord) error
	ListPredictions(ctx context.Context, limit int) ([]model.PredictionRecord, error)
	CountPredictions(ctx context.Context) (int, error)
	LabelSummary(ctx context.Context) (map[string]int, error)
	Migrate(ctx context.Context) error
	Close() error
}
