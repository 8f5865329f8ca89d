// Package artifact provisions the classifier artifact on local disk.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Veraticus/food-classifier/internal/common"
	"github.com/Veraticus/food-classifier/internal/service"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds a single artifact download.
const DefaultTimeout = 120 * time.Second

const cleanupWait = 5 * time.Second

// Store ensures an artifact exists at a local path, downloading it at most
// once. A non-empty regular file at the path is a cache hit.
type Store struct {
	fetcher  service.ArtifactFetcher
	logger   *slog.Logger
	progress io.Writer
	checksum string
	flights  map[string]*flight
	group    singleflight.Group
	fetches  atomic.Int64
	timeout  time.Duration
	mu       sync.Mutex
}

// flight is the context a shared download runs under. It is cancelled once
// every caller waiting on the download has given up.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithProgress renders a download progress bar to w.
func WithProgress(w io.Writer) Option {
	return func(s *Store) {
		s.progress = w
	}
}

// WithTimeout bounds each download.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithChecksum requires downloaded artifacts to match a hex SHA-256 digest.
func WithChecksum(sum string) Option {
	return func(s *Store) {
		s.checksum = strings.ToLower(strings.TrimSpace(sum))
	}
}

// NewStore creates a Store backed by fetcher.
func NewStore(fetcher service.ArtifactFetcher, opts ...Option) *Store {
	s := &Store{
		fetcher: fetcher,
		flights: make(map[string]*flight),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = common.LoggerOrDefault(s.logger)
	return s
}

// Fetches returns how many downloads the store has started.
func (s *Store) Fetches() int64 {
	return s.fetches.Load()
}

// Ensure returns localPath once it holds the artifact, downloading it when absent.
// Concurrent calls for the same path share one download, which keeps running
// while at least one caller still waits for it. Failures are reported as
// common.ErrArtifactUnavailable and never leave a file at localPath.
func (s *Store) Ensure(ctx context.Context, artifactID, localPath string) (string, error) {
	if strings.TrimSpace(localPath) == "" {
		return "", common.NewStageError(common.StageArtifact, common.ErrArtifactUnavailable, errors.New("local path is empty"))
	}
	if strings.TrimSpace(artifactID) == "" {
		return "", common.NewStageError(common.StageArtifact, common.ErrArtifactUnavailable, errors.New("artifact id is empty"))
	}

	if present(localPath) {
		s.logger.Debug("artifact cache hit", "local_path", localPath)
		return localPath, nil
	}

	for {
		f := s.join(ctx, localPath)
		ch := s.group.DoChan(localPath, func() (any, error) {
			if present(localPath) {
				return f, nil
			}
			return f, s.download(f.ctx, artifactID, localPath)
		})

		var (
			ran *flight
			err error
		)
		select {
		case res := <-ch:
			ran, _ = res.Val.(*flight)
			err = res.Err
			s.leave(localPath, f)
		case <-ctx.Done():
			err = ctx.Err()
			if s.leave(localPath, f) {
				// Last one out gives the cancelled download a moment to remove its temp file.
				select {
				case <-ch:
				case <-time.After(cleanupWait):
				}
			}
		}

		if err == nil {
			return localPath, nil
		}
		if ctx.Err() == nil && ran != nil && ran != f && ran.ctx.Err() != nil {
			// The download we joined was abandoned by the callers that started it.
			continue
		}
		return "", common.NewStageError(common.StageArtifact, common.ErrArtifactUnavailable, err)
	}
}

// join registers the caller with the download for key and returns its flight.
// The download context keeps ctx's values but not its cancellation.
func (s *Store) join(ctx context.Context, key string) *flight {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.flights[key]
	if !ok || f.ctx.Err() != nil {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		s.flights[key] = f
	}
	f.waiters++
	return f
}

// leave unregisters a caller and reports whether it was the last one, in
// which case the flight is cancelled.
func (s *Store) leave(key string, f *flight) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return false
	}
	f.cancel()
	if s.flights[key] == f {
		delete(s.flights, key)
	}
	return true
}

func present(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

func (s *Store) download(ctx context.Context, artifactID, localPath string) error {
	if s.fetcher == nil {
		return errors.New("no artifact source configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	s.logger.Info("downloading model artifact", "artifact_id", artifactID, "local_path", localPath)
	start := time.Now()

	s.fetches.Add(1)
	body, size, err := s.fetcher.Open(ctx, artifactID)
	if err != nil {
		return fetchError(ctx, fmt.Errorf("fetch %s: %w", artifactID, err))
	}
	defer body.Close()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(localPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	bar := s.newProgressBar(size)
	n, err := io.Copy(io.MultiWriter(tmp, h, bar), body)
	_ = bar.Finish()
	if err != nil {
		tmp.Close()
		return fetchError(ctx, fmt.Errorf("download %s: %w", artifactID, err))
	}

	if n == 0 {
		tmp.Close()
		return fmt.Errorf("download %s: artifact is empty", artifactID)
	}
	if size > 0 && n != size {
		tmp.Close()
		return fmt.Errorf("download %s: size mismatch: expected %d, got %d", artifactID, size, n)
	}
	if s.checksum != "" {
		sum := hex.EncodeToString(h.Sum(nil))
		if sum != s.checksum {
			tmp.Close()
			return fmt.Errorf("download %s: sha256 mismatch: expected %s, got %s", artifactID, s.checksum, sum)
		}
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), localPath); err != nil {
		return fmt.Errorf("install artifact: %w", err)
	}

	s.logger.Info("model artifact downloaded",
		"artifact_id", artifactID,
		"local_path", localPath,
		"bytes", n,
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// fetchError marks timeouts explicitly so the user sees why the download stopped.
func fetchError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("timed out: %w", err)
	}
	return err
}

func (s *Store) newProgressBar(size int64) *progressbar.ProgressBar {
	w := s.progress
	if w == nil {
		w = io.Discard
	}

	return progressbar.NewOptions64(size,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Downloading model"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}
