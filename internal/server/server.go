// Package server exposes the classifier over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Veraticus/food-classifier/internal/common"
	"github.com/Veraticus/food-classifier/internal/config"
	"github.com/Veraticus/food-classifier/internal/service"
)

// DefaultMaxUploadBytes bounds multipart uploads.
const DefaultMaxUploadBytes int64 = 10 << 20

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
	historyTimeout    = 5 * time.Second
)

// Server serves predictions over HTTP.
type Server struct {
	predictor      service.Predictor
	resolver       service.ImageResolver
	history        service.PredictionStorage
	catalog        *config.Catalog
	logger         *slog.Logger
	mux            *http.ServeMux
	maxUploadBytes int64
}

// Option configures a Server.
type Option func(*Server)

// WithHistory records every successful prediction.
func WithHistory(storage service.PredictionStorage) Option {
	return func(s *Server) {
		s.history = storage
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaxUploadBytes caps the request body of image uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// New creates a Server and registers its routes.
func New(predictor service.Predictor, resolver service.ImageResolver, catalog *config.Catalog, opts ...Option) (*Server, error) {
	if predictor == nil {
		return nil, fmt.Errorf("%w: predictor", common.ErrMissingConfig)
	}
	if resolver == nil {
		return nil, fmt.Errorf("%w: image resolver", common.ErrMissingConfig)
	}
	if catalog == nil {
		catalog = config.DefaultCatalog()
	}

	s := &Server{
		predictor:      predictor,
		resolver:       resolver,
		catalog:        catalog,
		mux:            http.NewServeMux(),
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = common.LoggerOrDefault(s.logger)

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /examples", s.handleExamples)
	s.mux.HandleFunc("POST /predict/image", s.handlePredictImage)
	s.mux.HandleFunc("POST /predict/example/{name}", s.handlePredictExample)
	return s, nil
}

// Handler returns the root handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return withCORS(s.mux)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
