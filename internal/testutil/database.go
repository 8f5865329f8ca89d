// Package testutil provides shared fixtures for tests: databases, images and
// canned network backends.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/food-classifier/internal/model"
	"github.com/Veraticus/food-classifier/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database.
// It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	db.SeedPredictions("Buuz", "Tsuivan")
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// SeedPredictions stores one example prediction per label, oldest first,
// each one minute apart.
func (db *TestDB) SeedPredictions(labels ...string) []*model.PredictionRecord {
	db.t.Helper()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	records := make([]*model.PredictionRecord, 0, len(labels))
	for i, label := range labels {
		record := &model.PredictionRecord{
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
			Provenance:  model.ProvenanceExample,
			Source:      label,
			Label:       label,
			Confidence:  0.9,
			Scores:      map[string]float64{label: 0.9},
			Description: "Seeded " + label,
		}
		if err := db.Storage.SavePrediction(context.Background(), record); err != nil {
			db.t.Fatalf("failed to seed prediction %q: %v", label, err)
		}
		records = append(records, record)
	}
	return records
}
