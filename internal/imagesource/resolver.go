// Package imagesource turns a user's selection into one image ready to classify.
package imagesource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/food-classifier/internal/classifier"
	"github.com/Veraticus/food-classifier/internal/common"
	"github.com/Veraticus/food-classifier/internal/model"
)

// Defaults for example downloads and uploads.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxBytes = 10 << 20
)

// ExampleCatalog maps example names to image URLs.
type ExampleCatalog interface {
	ExampleURL(name string) (string, bool)
}

// Resolver resolves uploads and preset examples.
type Resolver struct {
	examples ExampleCatalog
	client   *http.Client
	logger   *slog.Logger
	retry    common.RetryOptions
	timeout  time.Duration
	maxBytes int64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the client used for example downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		r.client = client
	}
}

// WithTimeout bounds each example download.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxBytes caps the size of uploads and example bodies.
func WithMaxBytes(n int64) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxBytes = n
		}
	}
}

// WithRetry sets the backoff used when an example download fails transiently.
func WithRetry(opts common.RetryOptions) Option {
	return func(r *Resolver) {
		r.retry = opts
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver over the given example catalog.
func NewResolver(examples ExampleCatalog, opts ...Option) *Resolver {
	r := &Resolver{
		examples: examples,
		retry:    common.RetryOptions{MaxAttempts: 3, InitialDelay: 250 * time.Millisecond, MaxDelay: 2 * time.Second},
		timeout:  DefaultTimeout,
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = http.DefaultClient
	}
	r.logger = common.LoggerOrDefault(r.logger)
	return r
}

// Resolve returns the image for sel. Uploads must decode as JPEG or PNG;
// examples are downloaded and checked the same way. Nothing is substituted
// on failure.
func (r *Resolver) Resolve(ctx context.Context, sel model.Selection) (model.ImageInput, error) {
	switch s := sel.(type) {
	case model.Upload:
		return r.resolveUpload(s)
	case *model.Upload:
		if s == nil {
			break
		}
		return r.resolveUpload(*s)
	case model.Example:
		return r.resolveExample(ctx, s)
	case *model.Example:
		if s == nil {
			break
		}
		return r.resolveExample(ctx, *s)
	}
	return model.ImageInput{}, common.NewStageError(common.StageUpload, common.ErrInvalidImage, errors.New("no image selected"))
}

func (r *Resolver) resolveUpload(u model.Upload) (model.ImageInput, error) {
	fail := func(err error) (model.ImageInput, error) {
		return model.ImageInput{}, common.NewStageError(common.StageUpload, common.ErrInvalidImage, err)
	}

	if len(u.Data) == 0 {
		return fail(errors.New("upload is empty"))
	}
	if int64(len(u.Data)) > r.maxBytes {
		return fail(fmt.Errorf("upload is %d bytes, limit is %d", len(u.Data), r.maxBytes))
	}

	_, format, err := classifier.DecodeImage(u.Data)
	if err != nil {
		return fail(err)
	}

	r.logger.Debug("upload accepted", "name", u.Name, "format", format, "bytes", len(u.Data))
	return model.ImageInput{
		Provenance: model.ProvenanceUpload,
		Name:       u.Name,
		Format:     format,
		Data:       bytes.Clone(u.Data),
	}, nil
}

func (r *Resolver) resolveExample(ctx context.Context, e model.Example) (model.ImageInput, error) {
	fail := func(err error) (model.ImageInput, error) {
		return model.ImageInput{}, common.NewStageError(common.StageExample, common.ErrExampleFetch, fmt.Errorf("%s: %w", e.Name, err))
	}

	if r.examples == nil {
		return fail(errors.New("no example catalog configured"))
	}
	url, ok := r.examples.ExampleURL(e.Name)
	if !ok {
		return fail(errors.New("unknown example"))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	var data []byte
	err := common.WithRetry(ctx, func() error {
		var err error
		data, err = r.download(ctx, url)
		return err
	}, r.retry)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out: %w", err)
		}
		return fail(err)
	}

	_, format, err := classifier.DecodeImage(data)
	if err != nil {
		return fail(fmt.Errorf("body is not a supported image: %w", err))
	}

	r.logger.Info("example fetched",
		"name", e.Name,
		"format", format,
		"bytes", len(data),
		"duration", time.Since(start).Round(time.Millisecond))

	return model.ImageInput{
		Provenance: model.ProvenanceExample,
		Name:       e.Name,
		Format:     format,
		Data:       data,
	}, nil
}

// download fetches url. Client errors and oversized bodies are permanent;
// transport errors, 5xx and 429 may be retried.
func (r *Resolver) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, common.Permanent(fmt.Errorf("build request: %w", err))
	}

	resp, err := r.client.Do(req)
	if err != nil {
		err = fmt.Errorf("GET %s: %w", url, err)
		if ctx.Err() != nil {
			return nil, common.Permanent(err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		err := fmt.Errorf("GET %s status: %s: %s", url, resp.Status, strings.TrimSpace(string(errBody)))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, fmt.Errorf("%w: %w", common.ErrRateLimit, err)
		case resp.StatusCode >= 500:
			return nil, err
		default:
			return nil, common.Permanent(err)
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, common.Permanent(fmt.Errorf("body exceeds %d bytes", r.maxBytes))
	}
	return data, nil
}
