package artifact

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Veraticus/food-classifier/internal/config"
	"github.com/Veraticus/food-classifier/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// DriveFetcher downloads artifacts stored as Google Drive files. The artifact
// id is the Drive file id.
type DriveFetcher struct {
	service *drive.Service
}

// NewDriveFetcher creates a Drive client from the credentials in cfg.
func NewDriveFetcher(ctx context.Context, cfg config.ArtifactConfig) (*DriveFetcher, error) {
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, err
	}
	srv, err := createDriveService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &DriveFetcher{service: srv}, nil
}

// NewDriveFetcherWithService wraps an existing Drive service.
func NewDriveFetcherWithService(srv *drive.Service) *DriveFetcher {
	return &DriveFetcher{service: srv}
}

// Open implements service.ArtifactFetcher.
func (f *DriveFetcher) Open(ctx context.Context, artifactID string) (io.ReadCloser, int64, error) {
	resp, err := f.service.Files.Get(artifactID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, 0, fmt.Errorf("drive download %s: %w", artifactID, err)
	}
	return resp.Body, resp.ContentLength, nil
}

// createDriveService creates a read-only Google Drive API service.
func createDriveService(ctx context.Context, cfg config.ArtifactConfig) (*drive.Service, error) {
	var tokenSource oauth2.TokenSource

	if cfg.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(cfg.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, drive.DriveReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{drive.DriveReadonlyScope},
		}

		token := &oauth2.Token{
			RefreshToken: cfg.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = client.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create drive service: %w", err)
	}

	return srv, nil
}

// NewFetcher builds the fetcher selected by cfg.Source.
func NewFetcher(ctx context.Context, cfg config.ArtifactConfig) (service.ArtifactFetcher, error) {
	switch cfg.Source {
	case config.SourceHTTP:
		return NewHTTPFetcher(cfg.URL, nil), nil
	case config.SourceDrive:
		d, err := NewDriveFetcher(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown artifact source %q", cfg.Source)
	}
}
