package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veraticus/food-classifier/internal/model"
	"github.com/google/uuid"
)

// SavePrediction stores a prediction. ID and CreatedAt are filled in when unset.
func (s *SQLiteStorage) SavePrediction(ctx context.Context, record *model.PredictionRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePrediction(record); err != nil {
		return err
	}

	return s.savePredictionTx(ctx, s.db, record)
}

func (s *SQLiteStorage) savePredictionTx(ctx context.Context, q queryable, record *model.PredictionRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	scoresJSON, err := json.Marshal(record.Scores)
	if err != nil {
		return fmt.Errorf("failed to marshal scores: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO predictions (id, created_at, provenance, source_name, label, confidence, scores_json, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.CreatedAt,
		string(record.Provenance),
		record.Source,
		record.Label,
		record.Confidence,
		string(scoresJSON),
		record.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	return nil
}

// ListPredictions returns the most recent predictions, newest first.
func (s *SQLiteStorage) ListPredictions(ctx context.Context, limit int) ([]model.PredictionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, provenance, source_name, label, confidence, scores_json, description
		FROM predictions
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.PredictionRecord
	for rows.Next() {
		record, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate predictions: %w", err)
	}
	return records, nil
}

func scanPrediction(rows *sql.Rows) (model.PredictionRecord, error) {
	var (
		record      model.PredictionRecord
		provenance  string
		source      sql.NullString
		description sql.NullString
		scoresJSON  string
	)

	if err := rows.Scan(
		&record.ID,
		&record.CreatedAt,
		&provenance,
		&source,
		&record.Label,
		&record.Confidence,
		&scoresJSON,
		&description,
	); err != nil {
		return record, fmt.Errorf("failed to scan prediction: %w", err)
	}

	if err := json.Unmarshal([]byte(scoresJSON), &record.Scores); err != nil {
		return record, fmt.Errorf("failed to unmarshal scores for prediction %s: %w", record.ID, err)
	}
	record.Provenance = model.Provenance(provenance)
	record.Source = source.String
	record.Description = description.String
	return record, nil
}

// CountPredictions returns the number of stored predictions.
func (s *SQLiteStorage) CountPredictions(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return count, nil
}

// LabelSummary returns how many times each label was predicted.
func (s *SQLiteStorage) LabelSummary(ctx context.Context) (map[string]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT label, COUNT(*)
		FROM predictions
		GROUP BY label
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize predictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summary := make(map[string]int)
	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summary[label] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate summary: %w", err)
	}
	return summary, nil
}
