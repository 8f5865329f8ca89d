// Package inference classifies resolved images and assembles prediction results.
package inference

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/Veraticus/food-classifier/internal/classifier"
	"github.com/Veraticus/food-classifier/internal/common"
	"github.com/Veraticus/food-classifier/internal/config"
	"github.com/Veraticus/food-classifier/internal/model"
	"github.com/Veraticus/food-classifier/internal/service"
)

// Service runs predictions against a loaded classifier.
type Service struct {
	classifier   service.Classifier
	descriptions service.DescriptionSource
	logger       *slog.Logger
	placeholder  string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithPlaceholder sets the description used for labels without one.
func WithPlaceholder(text string) Option {
	return func(s *Service) {
		if strings.TrimSpace(text) != "" {
			s.placeholder = text
		}
	}
}

// NewService creates a Service. descriptions may be nil, in which case every
// result carries the placeholder description.
func NewService(c service.Classifier, descriptions service.DescriptionSource, opts ...Option) *Service {
	s := &Service{
		classifier:   c,
		descriptions: descriptions,
		placeholder:  config.DefaultDescriptionPlaceholder,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = common.LoggerOrDefault(s.logger)
	return s
}

// Predict classifies input. The label is the argmax of the scores with ties
// going to the earliest vocabulary label.
func (s *Service) Predict(ctx context.Context, input model.ImageInput) (*model.PredictionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.classifier == nil {
		return nil, common.NewStageError(common.StageModel, common.ErrModelLoad, errors.New("no model loaded"))
	}

	img, format, err := classifier.DecodeImage(input.Data)
	if err != nil {
		return nil, common.NewStageError(common.StageDecode, common.ErrInvalidImage, err)
	}

	scores, err := s.classifier.Classify(img)
	if err != nil {
		return nil, err
	}

	label, confidence := scores.ArgMax()
	result := &model.PredictionResult{
		Label:       label,
		Confidence:  confidence,
		Scores:      scores,
		Description: s.describe(label),
		Provenance:  input.Provenance,
		Source:      input.Name,
	}

	s.logger.Info("prediction complete",
		"label", label,
		"confidence", confidence,
		"provenance", input.Provenance,
		"source", input.Name,
		"format", format)
	return result, nil
}

func (s *Service) describe(label string) string {
	if s.descriptions == nil {
		return s.placeholder
	}
	if d := s.descriptions.Description(label); strings.TrimSpace(d) != "" {
		return d
	}
	return s.placeholder
}
