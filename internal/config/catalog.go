package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultDescriptionPlaceholder is shown when a label has no description.
const DefaultDescriptionPlaceholder = "No description available for this dish."

// ExampleImage is one preset image users can classify without uploading.
type ExampleImage struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Catalog is the static example image set plus the per-label descriptions.
type Catalog struct {
	Descriptions map[string]string `yaml:"descriptions"`
	Placeholder  string            `yaml:"placeholder"`
	Examples     []ExampleImage    `yaml:"examples"`
}

// DefaultCatalog returns the built-in examples and descriptions.
func DefaultCatalog() *Catalog {
	const base = "https://raw.githubusercontent.com/Munhboldn/Food-Classifier/main/Example_Images/"
	return &Catalog{
		Examples: []ExampleImage{
			{Name: "Buuz", URL: base + "Buuz.jpg"},
			{Name: "Khuushuur", URL: base + "Khuushuur.jpg"},
			{Name: "Tsuivan", URL: base + "Tsuivan.jpg"},
			{Name: "Olivier Salad", URL: base + "Olivier%20Salad.jpg"},
		},
		Descriptions: map[string]string{
			"Buuz":          "A traditional Mongolian steamed dumpling filled with minced meat.",
			"Khuushuur":     "A Mongolian fried pastry stuffed with meat, crispy outside and juicy inside.",
			"Tsuivan":       "Stir-fried hand-cut noodles with meat and vegetables.",
			"Olivier Salad": "A potato salad with vegetables, eggs and mayonnaise, a Mongolian holiday favourite.",
		},
		Placeholder: DefaultDescriptionPlaceholder,
	}
}

// Validate ensures every example has a unique name and an absolute URL.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Examples))
	for i, ex := range c.Examples {
		if strings.TrimSpace(ex.Name) == "" {
			return fmt.Errorf("example %d has no name", i)
		}
		if seen[ex.Name] {
			return fmt.Errorf("duplicate example %q", ex.Name)
		}
		seen[ex.Name] = true

		if !strings.HasPrefix(ex.URL, "http://") && !strings.HasPrefix(ex.URL, "https://") {
			return fmt.Errorf("example %q url must be http or https", ex.Name)
		}
	}
	return nil
}

// Names returns the example names in display order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Examples))
	for i, ex := range c.Examples {
		names[i] = ex.Name
	}
	return names
}

// ExampleURL returns the URL registered for the named example.
func (c *Catalog) ExampleURL(name string) (string, bool) {
	for _, ex := range c.Examples {
		if ex.Name == name {
			return ex.URL, true
		}
	}
	return "", false
}

// Description returns the description for label, or the placeholder.
func (c *Catalog) Description(label string) string {
	if d, ok := c.Descriptions[label]; ok && d != "" {
		return d
	}
	if c.Placeholder != "" {
		return c.Placeholder
	}
	return DefaultDescriptionPlaceholder
}

// LoadCatalogFile reads a YAML catalog. Sections missing from the file keep
// their built-in values.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var file Catalog
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	catalog := DefaultCatalog()
	if len(file.Examples) > 0 {
		catalog.Examples = file.Examples
	}
	if len(file.Descriptions) > 0 {
		catalog.Descriptions = file.Descriptions
	}
	if file.Placeholder != "" {
		catalog.Placeholder = file.Placeholder
	}

	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return catalog, nil
}

// ExamplesConfig controls how example images are fetched.
type ExamplesConfig struct {
	CatalogPath string
	Timeout     time.Duration
	MaxBytes    int64
}

// DefaultExamplesConfig returns an ExamplesConfig with sensible defaults.
func DefaultExamplesConfig() ExamplesConfig {
	return ExamplesConfig{
		Timeout:  30 * time.Second,
		MaxBytes: 10 << 20,
	}
}

// Validate checks if the configuration is valid.
func (c *ExamplesConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("examples timeout must be positive")
	}
	if c.MaxBytes <= 0 {
		return fmt.Errorf("examples max bytes must be positive")
	}
	return nil
}

// LoadExamplesConfig loads example settings from Viper and returns them with the catalog.
func LoadExamplesConfig() (*ExamplesConfig, *Catalog, error) {
	config := DefaultExamplesConfig()

	if v := viper.GetDuration("examples.timeout"); v > 0 {
		config.Timeout = v
	}
	if v := viper.GetInt64("examples.max_bytes"); v > 0 {
		config.MaxBytes = v
	}
	if v := viper.GetString("examples.catalog"); v != "" {
		config.CatalogPath = ExpandPath(v)
	}

	if err := config.Validate(); err != nil {
		return nil, nil, err
	}

	catalog := DefaultCatalog()
	if config.CatalogPath != "" {
		loaded, err := LoadCatalogFile(config.CatalogPath)
		if err != nil {
			return nil, nil, err
		}
		catalog = loaded
	}

	return &config, catalog, nil
}
