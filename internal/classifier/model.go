// Package classifier runs the image classification network.
package classifier

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"math"

	"github.com/Veraticus/food-classifier/internal/common"
	"github.com/Veraticus/food-classifier/internal/model"
	"github.com/nfnt/resize"
)

// ErrBackendClosed is returned when a backend is used after Close.
var ErrBackendClosed = errors.New("classifier backend is closed")

// Backend executes the network on a preprocessed NCHW float32 tensor and
// returns one raw output value per vocabulary label.
type Backend interface {
	Run(input []float32) ([]float32, error)
	Close() error
}

// Model is a loaded classifier. It is immutable after construction and safe
// for concurrent use when its Backend is.
type Model struct {
	backend Backend
	meta    Metadata
}

// New wraps backend with the given metadata.
func New(backend Backend, meta Metadata) (*Model, error) {
	if backend == nil {
		return nil, common.NewStageError(common.StageModel, common.ErrModelLoad, errors.New("backend is nil"))
	}
	meta, err := meta.withDefaults()
	if err != nil {
		return nil, common.NewStageError(common.StageModel, common.ErrModelLoad, err)
	}
	meta.Vocabulary = meta.Vocabulary.Clone()
	return &Model{backend: backend, meta: meta}, nil
}

// Vocabulary returns the model's labels in output order.
func (m *Model) Vocabulary() model.Vocabulary {
	return m.meta.Vocabulary.Clone()
}

// ImageSize returns the square input edge in pixels.
func (m *Model) ImageSize() int {
	return m.meta.ImageSize
}

// Classify scores img against the vocabulary. The returned Scores always
// carry one probability per label and sum to 1.
func (m *Model) Classify(img image.Image) (model.Scores, error) {
	if img == nil || img.Bounds().Empty() {
		return model.Scores{}, common.NewStageError(common.StageClassify, common.ErrInvalidImage, errors.New("image is empty"))
	}

	input := m.preprocess(img)

	raw, err := m.backend.Run(input)
	if err != nil {
		return model.Scores{}, common.NewStageError(common.StageClassify, common.ErrModelLoad, fmt.Errorf("run network: %w", err))
	}
	if len(raw) != len(m.meta.Vocabulary) {
		return model.Scores{}, common.NewStageError(common.StageClassify, common.ErrModelLoad,
			fmt.Errorf("network returned %d outputs for %d labels", len(raw), len(m.meta.Vocabulary)))
	}

	var probs []float64
	if m.meta.Output == OutputProbabilities {
		probs, err = renormalize(raw)
	} else {
		probs, err = softmax(raw)
	}
	if err != nil {
		return model.Scores{}, common.NewStageError(common.StageClassify, common.ErrModelLoad, err)
	}

	scores, err := model.NewScores(m.meta.Vocabulary, probs)
	if err != nil {
		return model.Scores{}, common.NewStageError(common.StageClassify, common.ErrModelLoad, err)
	}
	return scores, nil
}

// Close releases the backend.
func (m *Model) Close() error {
	return m.backend.Close()
}

// preprocess resizes img to the network input and lays it out as 1x3xHxW
// with per-channel normalisation.
func (m *Model) preprocess(img image.Image) []float32 {
	size := m.meta.ImageSize
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)

	bounds := resized.Bounds()
	plane := size * size
	data := make([]float32, 3*plane)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := y*size + x
			data[i] = (float32(r)/65535.0 - m.meta.Mean[0]) / m.meta.Std[0]
			data[plane+i] = (float32(g)/65535.0 - m.meta.Mean[1]) / m.meta.Std[1]
			data[2*plane+i] = (float32(b)/65535.0 - m.meta.Mean[2]) / m.meta.Std[2]
		}
	}
	return data
}

func softmax(logits []float32) ([]float64, error) {
	maxLogit := math.Inf(-1)
	for _, l := range logits {
		v := float64(l)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("network returned non-finite logit %v", l)
		}
		maxLogit = math.Max(maxLogit, v)
	}

	out := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(float64(l) - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out, nil
}

func renormalize(probs []float32) ([]float64, error) {
	out := make([]float64, len(probs))
	var sum float64
	for i, p := range probs {
		v := float64(p)
		if math.IsNaN(v) || v < 0 {
			return nil, fmt.Errorf("network returned invalid probability %v", p)
		}
		out[i] = v
		sum += v
	}
	if sum <= 0 || math.IsInf(sum, 0) {
		return nil, fmt.Errorf("network probabilities sum to %v", sum)
	}
	for i := range out {
		out[i] /= sum
	}
	return out, nil
}

// Supported image formats.
var supportedFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
}

// DecodeImage decodes JPEG or PNG bytes and reports the format name.
func DecodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", errors.New("image data is empty")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("not a supported image: %w", err)
	}
	if !supportedFormats[format] {
		return nil, "", fmt.Errorf("unsupported image format %q (supported: JPEG, PNG)", format)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, "", fmt.Errorf("image has no pixels (%dx%d)", cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", format, err)
	}
	return img, format, nil
}
