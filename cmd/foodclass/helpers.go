package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Veraticus/food-classifier/internal/artifact"
	"github.com/Veraticus/food-classifier/internal/config"
	"github.com/Veraticus/food-classifier/internal/imagesource"
	"github.com/Veraticus/food-classifier/internal/inference"
	"github.com/Veraticus/food-classifier/internal/model"
	"github.com/Veraticus/food-classifier/internal/service"
	"github.com/Veraticus/food-classifier/internal/storage"
	"github.com/spf13/viper"
)

const historyTimeout = 5 * time.Second

// app is everything a command needs to classify images.
type app struct {
	runtime   *inference.Runtime
	predictor *inference.Service
	resolver  *imagesource.Resolver
	catalog   *config.Catalog
	history   service.PredictionStorage
}

// newArtifactStore builds a store whose fetcher is only created when a
// download is actually needed.
func newArtifactStore(cfg *config.ArtifactConfig, progress io.Writer) *artifact.Store {
	fetcher := artifact.NewLazyFetcher(func(ctx context.Context) (service.ArtifactFetcher, error) {
		return artifact.NewFetcher(ctx, *cfg)
	})

	opts := []artifact.Option{
		artifact.WithTimeout(cfg.Timeout),
		artifact.WithChecksum(cfg.SHA256),
	}
	if progress != nil {
		opts = append(opts, artifact.WithProgress(progress))
	}
	return artifact.NewStore(fetcher, opts...)
}

// loadExamples loads the example catalog and a resolver for it.
func loadExamples() (*config.Catalog, *imagesource.Resolver, error) {
	examplesCfg, catalog, err := config.LoadExamplesConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load examples config: %w", err)
	}
	resolver := imagesource.NewResolver(catalog,
		imagesource.WithTimeout(examplesCfg.Timeout),
		imagesource.WithMaxBytes(examplesCfg.MaxBytes))
	return catalog, resolver, nil
}

// loadApp ensures the model is cached, loads it and wires the services.
// Download progress is written to progress when it is not nil.
func loadApp(ctx context.Context, progress io.Writer) (*app, error) {
	artifactCfg, err := config.LoadArtifactConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact config: %w", err)
	}

	catalog, resolver, err := loadExamples()
	if err != nil {
		return nil, err
	}

	store := newArtifactStore(artifactCfg, progress)
	rt, err := inference.NewRuntime(ctx, store, inference.ONNXLoader(artifactCfg.LibraryPath, slog.Default()), *artifactCfg, slog.Default())
	if err != nil {
		return nil, err
	}

	history, err := openHistory(ctx)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	return &app{
		runtime:   rt,
		predictor: inference.NewService(rt.Model, catalog, inference.WithPlaceholder(catalog.Placeholder)),
		resolver:  resolver,
		catalog:   catalog,
		history:   history,
	}, nil
}

// Close releases the model and the history database.
func (a *app) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}
	if err := a.runtime.Close(); err != nil {
		slog.Error("Failed to release model", "error", err)
	}
}

// record saves result to history when history is enabled. Failures are logged only.
func (a *app) record(ctx context.Context, result *model.PredictionResult) {
	if a.history == nil {
		return
	}
	record, err := model.NewPredictionRecord(result)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
		defer cancel()
		err = a.history.SavePrediction(ctx, record)
	}
	if err != nil {
		slog.Warn("Failed to record prediction", "error", err)
	}
}

// openHistory opens the history database, or returns nil when history is disabled.
func openHistory(ctx context.Context) (service.PredictionStorage, error) {
	if !viper.GetBool("history.enabled") {
		return nil, nil
	}
	store, err := initStorage(ctx)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/foodclass/foodclass.db"
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}
