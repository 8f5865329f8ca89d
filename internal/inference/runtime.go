package inference

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Veraticus/food-classifier/internal/classifier"
	"github.com/Veraticus/food-classifier/internal/common"
	"github.com/Veraticus/food-classifier/internal/config"
	"github.com/Veraticus/food-classifier/internal/service"
)

// Loader opens a model artifact from a local path.
type Loader func(path string) (*classifier.Model, error)

// ONNXLoader returns a Loader backed by classifier.Load.
func ONNXLoader(libraryPath string, logger *slog.Logger) Loader {
	return func(path string) (*classifier.Model, error) {
		return classifier.Load(path,
			classifier.WithLibraryPath(libraryPath),
			classifier.WithLoadLogger(logger))
	}
}

// Runtime owns the process-wide model. It is created once at startup and
// closed at shutdown.
type Runtime struct {
	Model        *classifier.Model
	ArtifactPath string
}

// NewRuntime ensures the artifact is cached and loads it. Errors are returned
// unchanged and should abort startup.
func NewRuntime(ctx context.Context, ensurer service.ArtifactEnsurer, load Loader, cfg config.ArtifactConfig, logger *slog.Logger) (*Runtime, error) {
	logger = common.LoggerOrDefault(logger)
	if ensurer == nil || load == nil {
		return nil, common.NewStageError(common.StageModel, common.ErrModelLoad, errors.New("runtime is missing its ensurer or loader"))
	}

	start := time.Now()
	path, err := ensurer.Ensure(ctx, cfg.ID, cfg.Path)
	if err != nil {
		return nil, err
	}

	m, err := load(path)
	if err != nil {
		return nil, err
	}

	logger.Info("classifier ready",
		"artifact", path,
		"labels", len(m.Vocabulary()),
		"duration", time.Since(start).Round(time.Millisecond))
	return &Runtime{Model: m, ArtifactPath: path}, nil
}

// Close releases the model.
func (r *Runtime) Close() error {
	if r == nil || r.Model == nil {
		return nil
	}
	return r.Model.Close()
}
