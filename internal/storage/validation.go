// Package storage provides the data persistence layer for prediction history.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Veraticus/food-classifier/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrNilParameter      = errors.New("parameter cannot be nil")
	ErrInvalidPrediction = errors.New("invalid prediction")
	ErrInvalidLimit      = errors.New("limit must be positive")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validatePrediction validates a prediction record before it is stored.
func validatePrediction(record *model.PredictionRecord) error {
	if record == nil {
		return fmt.Errorf("%w: prediction", ErrNilParameter)
	}
	if strings.TrimSpace(record.Label) == "" {
		return fmt.Errorf("%w: missing label", ErrInvalidPrediction)
	}

	switch record.Provenance {
	case model.ProvenanceUpload, model.ProvenanceExample:
	default:
		return fmt.Errorf("%w: unknown provenance %q", ErrInvalidPrediction, record.Provenance)
	}

	if math.IsNaN(record.Confidence) || record.Confidence < 0 || record.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidPrediction)
	}
	if len(record.Scores) == 0 {
		return fmt.Errorf("%w: missing scores", ErrInvalidPrediction)
	}
	if _, ok := record.Scores[record.Label]; !ok {
		return fmt.Errorf("%w: label %q has no score", ErrInvalidPrediction, record.Label)
	}

	return nil
}
