package model

import (
	"fmt"
	"time"
)

// PredictionResult is the outcome of classifying one image.
type PredictionResult struct {
	Label       string     `json:"label"`
	Description string     `json:"description"`
	Provenance  Provenance `json:"provenance"`
	Source      string     `json:"source,omitempty"`
	Scores      Scores     `json:"scores"`
	Confidence  float64    `json:"confidence"`
}

// Ranked returns every label with its score, best first.
func (p *PredictionResult) Ranked() LabelRankings {
	return p.Scores.Rankings()
}

// PredictionRecord is a persisted prediction.
type PredictionRecord struct {
	CreatedAt   time.Time          `json:"created_at"`
	Scores      map[string]float64 `json:"scores"`
	ID          string             `json:"id"`
	Provenance  Provenance         `json:"provenance"`
	Source      string             `json:"source,omitempty"`
	Label       string             `json:"label"`
	Description string             `json:"description,omitempty"`
	Confidence  float64            `json:"confidence"`
}

// NewPredictionRecord converts a result into its persisted form.
func NewPredictionRecord(p *PredictionResult) (*PredictionRecord, error) {
	if p == nil {
		return nil, fmt.Errorf("prediction is nil")
	}
	if p.Label == "" {
		return nil, fmt.Errorf("prediction has no label")
	}

	return &PredictionRecord{
		Provenance:  p.Provenance,
		Source:      p.Source,
		Label:       p.Label,
		Confidence:  p.Confidence,
		Scores:      p.Scores.Map(),
		Description: p.Description,
	}, nil
}
