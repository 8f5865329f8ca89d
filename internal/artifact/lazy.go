package artifact

import (
	"context"
	"io"
	"sync"

	"github.com/Veraticus/food-classifier/internal/service"
)

// LazyFetcher defers building the real fetcher until the first download, so
// a cached artifact never needs credentials. A failed build is retried on the
// next Open.
type LazyFetcher struct {
	build   func(ctx context.Context) (service.ArtifactFetcher, error)
	fetcher service.ArtifactFetcher
	mu      sync.Mutex
}

// NewLazyFetcher wraps build.
func NewLazyFetcher(build func(ctx context.Context) (service.ArtifactFetcher, error)) *LazyFetcher {
	return &LazyFetcher{build: build}
}

// Open implements service.ArtifactFetcher.
func (l *LazyFetcher) Open(ctx context.Context, artifactID string) (io.ReadCloser, int64, error) {
	l.mu.Lock()
	if l.fetcher == nil {
		f, err := l.build(ctx)
		if err != nil {
			l.mu.Unlock()
			return nil, 0, err
		}
		l.fetcher = f
	}
	f := l.fetcher
	l.mu.Unlock()

	return f.Open(ctx, artifactID)
}
