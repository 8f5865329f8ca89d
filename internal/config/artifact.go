package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Artifact sources.
const (
	SourceDrive = "drive"
	SourceHTTP  = "http"
)

// DefaultArtifactID is the Drive file id of the published classifier.
const DefaultArtifactID = "1AmQcU0FoqwZvgTNHMhHGHI-XwH1u03eN"

// ArtifactConfig describes where the classifier artifact comes from and where it is cached.
type ArtifactConfig struct {
	ID          string
	Source      string
	URL         string
	Path        string
	SHA256      string
	LibraryPath string
	Timeout     time.Duration

	// Drive credentials: either a service account key or an OAuth2 refresh token.
	ServiceAccountPath string
	ClientID           string
	ClientSecret       string
	RefreshToken       string
}

// DefaultArtifactConfig returns an ArtifactConfig with sensible defaults.
func DefaultArtifactConfig() ArtifactConfig {
	return ArtifactConfig{
		ID:      DefaultArtifactID,
		Source:  SourceDrive,
		Path:    ExpandPath("$HOME/.local/share/foodclass/mongolian_food_classifier.onnx"),
		Timeout: 120 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c *ArtifactConfig) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("artifact id must be set")
	}
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("artifact path must be set")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("artifact timeout must be positive")
	}

	if c.SHA256 != "" {
		if _, err := hex.DecodeString(c.SHA256); err != nil || len(c.SHA256) != 64 {
			return fmt.Errorf("artifact sha256 must be 64 hex characters")
		}
	}

	switch c.Source {
	case SourceHTTP:
		if strings.TrimSpace(c.URL) == "" {
			return fmt.Errorf("artifact url must be set for the http source")
		}
	case SourceDrive:
	default:
		return fmt.Errorf("unknown artifact source %q", c.Source)
	}

	return nil
}

// ValidateCredentials checks that exactly one Drive authentication method is
// configured. Credentials are only needed once a download is required, so
// Validate does not check them.
func (c *ArtifactConfig) ValidateCredentials() error {
	if c.Source != SourceDrive {
		return nil
	}

	hasOAuth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	hasServiceAccount := c.ServiceAccountPath != ""

	if !hasOAuth && !hasServiceAccount {
		return fmt.Errorf("no drive authentication method configured")
	}
	if hasOAuth && hasServiceAccount {
		return fmt.Errorf("multiple drive authentication methods configured; use either OAuth2 or service account")
	}
	return nil
}

// ArtifactURL substitutes the escaped artifact id for every {id} in template.
func ArtifactURL(template, artifactID string) string {
	return strings.ReplaceAll(template, "{id}", url.PathEscape(artifactID))
}

// LoadArtifactConfig loads artifact configuration from Viper and environment variables.
// It follows this precedence:
// 1. Viper configuration (from config file or FOODCLASS_ env vars)
// 2. Direct environment variables (GOOGLE_APPLICATION_CREDENTIALS, ONNXRUNTIME_SHARED_LIBRARY_PATH)
// 3. Default values
func LoadArtifactConfig() (*ArtifactConfig, error) {
	config := DefaultArtifactConfig()

	if v := viper.GetString("artifact.id"); v != "" {
		config.ID = v
	}
	if v := viper.GetString("artifact.source"); v != "" {
		config.Source = strings.ToLower(strings.TrimSpace(v))
	}
	if v := viper.GetString("artifact.url"); v != "" {
		config.URL = v
	}
	if v := viper.GetString("artifact.path"); v != "" {
		config.Path = ExpandPath(v)
	}
	if v := viper.GetString("artifact.sha256"); v != "" {
		config.SHA256 = strings.ToLower(strings.TrimSpace(v))
	}
	if v := viper.GetDuration("artifact.timeout"); v > 0 {
		config.Timeout = v
	}
	if v := viper.GetString("artifact.service_account_path"); v != "" {
		config.ServiceAccountPath = ExpandPath(v)
	}
	config.ClientID = viper.GetString("artifact.client_id")
	config.ClientSecret = viper.GetString("artifact.client_secret")
	config.RefreshToken = viper.GetString("artifact.refresh_token")
	if v := viper.GetString("model.onnxruntime_library"); v != "" {
		config.LibraryPath = ExpandPath(v)
	}

	// Override with direct environment variables if not set
	if config.ServiceAccountPath == "" && config.RefreshToken == "" {
		if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" {
			config.ServiceAccountPath = ExpandPath(v)
		}
	}
	if config.LibraryPath == "" {
		config.LibraryPath = os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
