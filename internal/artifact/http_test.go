package artifact

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/Veraticus/food-classifier/internal/common"
	"github.com/Veraticus/food-classifier/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcherOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models/abc%20def", "/models/abc def":
			_, _ = w.Write([]byte("weights"))
		case "/models/missing":
			http.Error(w, "no such model", http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(srv.URL+"/models/{id}", srv.Client())

	t.Run("success", func(t *testing.T) {
		body, size, err := fetcher.Open(context.Background(), "abc def")
		require.NoError(t, err)
		defer body.Close()

		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, "weights", string(data))
		assert.Equal(t, int64(7), size)
	})

	t.Run("not found includes body", func(t *testing.T) {
		_, _, err := fetcher.Open(context.Background(), "missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
		assert.Contains(t, err.Error(), "no such model")
	})
}

func TestStoreWithHTTPFetcher(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte("onnx"))
	}))
	defer srv.Close()

	store := NewStore(NewHTTPFetcher(srv.URL+"/{id}", srv.Client()))
	path := filepath.Join(t.TempDir(), "model.onnx")

	for i := 0; i < 3; i++ {
		_, err := store.Ensure(context.Background(), "model", path)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, hits)
}

func TestStoreHTTPServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "model.onnx")
	_, err := NewStore(NewHTTPFetcher(srv.URL+"/{id}", srv.Client())).Ensure(context.Background(), "model", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrArtifactUnavailable)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.NoFileExists(t, path)
}

func TestNewFetcher(t *testing.T) {
	t.Run("http", func(t *testing.T) {
		cfg := config.DefaultArtifactConfig()
		cfg.Source = config.SourceHTTP
		cfg.URL = "https://example.com/{id}"

		f, err := NewFetcher(context.Background(), cfg)
		require.NoError(t, err)
		assert.IsType(t, &HTTPFetcher{}, f)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := config.DefaultArtifactConfig()
		cfg.Source = "ftp"

		_, err := NewFetcher(context.Background(), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ftp")
	})

	t.Run("drive without credentials", func(t *testing.T) {
		cfg := config.DefaultArtifactConfig()

		_, err := NewFetcher(context.Background(), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no drive authentication method")
	})

	t.Run("drive with unreadable key", func(t *testing.T) {
		cfg := config.DefaultArtifactConfig()
		cfg.ServiceAccountPath = filepath.Join(t.TempDir(), "missing.json")

		_, err := NewFetcher(context.Background(), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "service account")
	})
}
