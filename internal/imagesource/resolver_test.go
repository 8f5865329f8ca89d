package imagesource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/food-classifier/internal/common"
	"github.com/Veraticus/food-classifier/internal/model"
	"github.com/Veraticus/food-classifier/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type catalog map[string]string

func (c catalog) ExampleURL(name string) (string, bool) {
	u, ok := c[name]
	return u, ok
}

func exampleServer(t *testing.T) (*httptest.Server, catalog) {
	t.Helper()

	pngData := testutil.PNGBytes(t, 16, 16, testutil.Red)
	jpegData := testutil.JPEGBytes(t, 16, 16, testutil.Green)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/buuz.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(pngData)
		case "/tsuivan.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write(jpegData)
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>moved</html>"))
		case "/slow.png":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	return srv, catalog{
		"Buuz":          srv.URL + "/buuz.png",
		"Tsuivan":       srv.URL + "/tsuivan.jpg",
		"Khuushuur":     srv.URL + "/missing.jpg",
		"Olivier Salad": srv.URL + "/page.html",
		"Slow":          srv.URL + "/slow.png",
	}
}

func TestResolveUpload(t *testing.T) {
	r := NewResolver(nil)

	tests := []struct {
		name       string
		data       []byte
		wantFormat string
		wantErr    bool
	}{
		{name: "png", data: testutil.PNGBytes(t, 8, 8, testutil.Red), wantFormat: "png"},
		{name: "jpeg", data: testutil.JPEGBytes(t, 8, 8, testutil.Blue), wantFormat: "jpeg"},
		{name: "text file", data: []byte("hello, I am a text file"), wantErr: true},
		{name: "gif", data: testutil.GIFBytes(t, 8, 8, testutil.Red), wantErr: true},
		{name: "empty", data: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := r.Resolve(context.Background(), model.Upload{Name: "dish." + tt.name, Data: tt.data})
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, common.ErrInvalidImage)
				stage, ok := common.StageOf(err)
				require.True(t, ok)
				assert.Equal(t, common.StageUpload, stage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.ProvenanceUpload, input.Provenance)
			assert.Equal(t, tt.wantFormat, input.Format)
			assert.Equal(t, tt.data, input.Data)
		})
	}
}

func TestResolveUploadTooLarge(t *testing.T) {
	data := testutil.PNGBytes(t, 8, 8, testutil.Red)
	r := NewResolver(nil, WithMaxBytes(int64(len(data)-1)))

	_, err := r.Resolve(context.Background(), &model.Upload{Name: "big.png", Data: data})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidImage)
	assert.Contains(t, err.Error(), "limit")
}

func TestResolveUploadOwnsItsBytes(t *testing.T) {
	data := testutil.PNGBytes(t, 8, 8, testutil.Red)
	want := append([]byte(nil), data...)
	r := NewResolver(nil)

	input, err := r.Resolve(context.Background(), model.Upload{Name: "dish.png", Data: data})
	require.NoError(t, err)

	for i := range data {
		data[i] = 0
	}
	assert.Equal(t, want, input.Data)
}

func TestResolveExample(t *testing.T) {
	srv, examples := exampleServer(t)
	r := NewResolver(examples, WithHTTPClient(srv.Client()))

	input, err := r.Resolve(context.Background(), model.Example{Name: "Buuz"})
	require.NoError(t, err)
	assert.Equal(t, model.ProvenanceExample, input.Provenance)
	assert.Equal(t, "Buuz", input.Name)
	assert.Equal(t, "png", input.Format)
	assert.NotEmpty(t, input.Data)

	input, err = r.Resolve(context.Background(), model.Example{Name: "Tsuivan"})
	require.NoError(t, err)
	assert.Equal(t, "jpeg", input.Format)
}

func TestResolveExampleFailures(t *testing.T) {
	srv, examples := exampleServer(t)
	r := NewResolver(examples,
		WithHTTPClient(srv.Client()),
		WithTimeout(100*time.Millisecond))

	tests := []struct {
		name    string
		example string
		errMsg  string
	}{
		{name: "unknown name", example: "Pizza", errMsg: "unknown example"},
		{name: "not found", example: "Khuushuur", errMsg: "404"},
		{name: "html body", example: "Olivier Salad", errMsg: "not a supported image"},
		{name: "timeout", example: "Slow", errMsg: "timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), model.Example{Name: tt.example})
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrExampleFetch)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.Contains(t, err.Error(), tt.example)

			stage, ok := common.StageOf(err)
			require.True(t, ok)
			assert.Equal(t, common.StageExample, stage)
		})
	}
}

func TestResolveExampleBodyTooLarge(t *testing.T) {
	srv, examples := exampleServer(t)
	r := NewResolver(examples, WithHTTPClient(srv.Client()), WithMaxBytes(10))

	_, err := r.Resolve(context.Background(), model.Example{Name: "Buuz"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExampleFetch)
	assert.True(t, strings.Contains(err.Error(), "exceeds"))
}

func TestResolveNilSelection(t *testing.T) {
	r := NewResolver(nil)

	_, err := r.Resolve(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrInvalidImage)

	var u *model.Upload
	_, err = r.Resolve(context.Background(), u)
	assert.ErrorIs(t, err, common.ErrInvalidImage)
}

func TestResolveExampleRetriesServerErrors(t *testing.T) {
	pngData := testutil.PNGBytes(t, 8, 8, testutil.Blue)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/flaky.png":
			if hits.Add(1) == 1 {
				http.Error(w, "warming up", http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write(pngData)
		default:
			http.Error(w, "down", http.StatusBadGateway)
		}
	}))
	t.Cleanup(srv.Close)

	examples := catalog{"Buuz": srv.URL + "/flaky.png", "Tsuivan": srv.URL + "/down.png"}
	r := NewResolver(examples,
		WithHTTPClient(srv.Client()),
		WithRetry(common.RetryOptions{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}))

	input, err := r.Resolve(context.Background(), model.Example{Name: "Buuz"})
	require.NoError(t, err)
	assert.Equal(t, "png", input.Format)
	assert.Equal(t, int32(2), hits.Load())

	_, err = r.Resolve(context.Background(), model.Example{Name: "Tsuivan"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExampleFetch)
	assert.ErrorIs(t, err, common.ErrMaxRetries)
	assert.Contains(t, err.Error(), "502")
}

func TestResolveExampleDoesNotRetryNotFound(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "not found", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	r := NewResolver(catalog{"Buuz": srv.URL + "/buuz.png"}, WithHTTPClient(srv.Client()))
	_, err := r.Resolve(context.Background(), model.Example{Name: "Buuz"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExampleFetch)
	assert.Equal(t, int32(1), hits.Load())
}
