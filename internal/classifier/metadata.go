package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Veraticus/food-classifier/internal/model"
)

// Output kinds declared by the artifact metadata.
const (
	OutputLogits        = "logits"
	OutputProbabilities = "probabilities"
)

// DefaultImageSize is the square input edge used when the artifact does not declare one.
const DefaultImageSize = 224

// ImageNet channel statistics.
var (
	DefaultMean = [3]float32{0.485, 0.456, 0.406}
	DefaultStd  = [3]float32{0.229, 0.224, 0.225}
)

// Metadata keys, shared by the ONNX custom metadata map and the sidecar JSON file.
const (
	keyVocab     = "vocab"
	keyImageSize = "image_size"
	keyMean      = "mean"
	keyStd       = "std"
	keyOutput    = "output"
)

var errNoVocab = errors.New("artifact metadata has no vocab")

// Metadata describes how to feed the network and read its output.
type Metadata struct {
	Output     string
	Vocabulary model.Vocabulary
	Mean       [3]float32
	Std        [3]float32
	ImageSize  int
}

// withDefaults fills unset fields and validates the result.
func (m Metadata) withDefaults() (Metadata, error) {
	if m.ImageSize == 0 {
		m.ImageSize = DefaultImageSize
	}
	if m.Mean == ([3]float32{}) {
		m.Mean = DefaultMean
	}
	if m.Std == ([3]float32{}) {
		m.Std = DefaultStd
	}
	if m.Output == "" {
		m.Output = OutputLogits
	}

	if err := m.Vocabulary.Validate(); err != nil {
		return m, err
	}
	if m.ImageSize < 1 {
		return m, fmt.Errorf("image size must be positive, got %d", m.ImageSize)
	}
	for i, s := range m.Std {
		if s <= 0 {
			return m, fmt.Errorf("std[%d] must be positive, got %v", i, s)
		}
	}
	if m.Output != OutputLogits && m.Output != OutputProbabilities {
		return m, fmt.Errorf("unknown output kind %q", m.Output)
	}
	return m, nil
}

// lookupFunc returns the raw value stored under key.
type lookupFunc func(key string) (string, bool, error)

func parseMetadata(lookup lookupFunc) (Metadata, error) {
	var meta Metadata

	raw, ok, err := lookup(keyVocab)
	if err != nil {
		return meta, err
	}
	if !ok {
		return meta, errNoVocab
	}
	if meta.Vocabulary, err = parseVocab([]byte(raw)); err != nil {
		return meta, fmt.Errorf("parse vocab: %w", err)
	}

	if raw, ok, err = lookup(keyImageSize); err != nil {
		return meta, err
	} else if ok {
		size, convErr := strconv.Atoi(unquote(raw))
		if convErr != nil {
			return meta, fmt.Errorf("invalid image_size %q: %w", raw, convErr)
		}
		meta.ImageSize = size
	}

	for key, dst := range map[string]*[3]float32{keyMean: &meta.Mean, keyStd: &meta.Std} {
		raw, ok, err := lookup(key)
		if err != nil {
			return meta, err
		}
		if !ok {
			continue
		}
		var vals []float32
		if err := json.Unmarshal([]byte(unquote(raw)), &vals); err != nil {
			return meta, fmt.Errorf("invalid %s: %w", key, err)
		}
		if len(vals) != 3 {
			return meta, fmt.Errorf("%s must have 3 values, got %d", key, len(vals))
		}
		copy(dst[:], vals)
	}

	if raw, ok, err = lookup(keyOutput); err != nil {
		return meta, err
	} else if ok {
		meta.Output = strings.ToLower(unquote(raw))
	}

	return meta, nil
}

// parseVocab accepts a JSON array of labels or an index-to-label object.
func parseVocab(data []byte) (model.Vocabulary, error) {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		return arr, nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	out := make(model.Vocabulary, len(m))
	for k, v := range m {
		idx, convErr := strconv.Atoi(k)
		if convErr != nil {
			return nil, fmt.Errorf("invalid label index %q: %w", k, convErr)
		}
		if idx < 0 || idx >= len(m) {
			return nil, fmt.Errorf("label index %d out of range", idx)
		}
		out[idx] = v
	}
	return out, nil
}

// readSidecar loads metadata from the JSON file stored next to the artifact.
func readSidecar(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Metadata{}, fmt.Errorf("parse %s: %w", path, err)
	}

	return parseMetadata(func(key string) (string, bool, error) {
		v, ok := fields[key]
		return string(v), ok, nil
	})
}

// SidecarPath returns where the metadata JSON for an artifact lives.
func SidecarPath(artifactPath string) string {
	return artifactPath + ".json"
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s
}
