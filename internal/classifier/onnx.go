package classifier

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Veraticus/food-classifier/internal/common"
	ort "github.com/yalue/onnxruntime_go"
)

var runtimeMu sync.Mutex

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	logger      *slog.Logger
	libraryPath string
}

// WithLibraryPath points at the onnxruntime shared library.
func WithLibraryPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.libraryPath = path
	}
}

// WithLoadLogger sets the logger used while loading.
func WithLoadLogger(logger *slog.Logger) LoadOption {
	return func(o *loadOptions) {
		o.logger = logger
	}
}

// Load opens the ONNX artifact at path. The vocabulary comes from the model's
// custom metadata, or from the sidecar JSON file when the model carries none.
// Every failure is reported as common.ErrModelLoad.
func Load(path string, opts ...LoadOption) (*Model, error) {
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := common.LoggerOrDefault(o.logger)

	fail := func(err error) (*Model, error) {
		return nil, common.NewStageError(common.StageModel, common.ErrModelLoad, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fail(fmt.Errorf("model file missing at %s: %w", path, err))
	}
	if info.Size() == 0 {
		return fail(fmt.Errorf("model file %s is empty", path))
	}

	if err := initRuntime(o.libraryPath, filepath.Dir(path)); err != nil {
		return fail(err)
	}

	meta, err := readMetadata(path)
	if err != nil {
		return fail(err)
	}
	meta, err = meta.withDefaults()
	if err != nil {
		return fail(err)
	}

	backend, err := newONNXBackend(path, meta)
	if err != nil {
		return fail(err)
	}

	m, err := New(backend, meta)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	logger.Info("model loaded",
		"path", path,
		"labels", len(meta.Vocabulary),
		"image_size", meta.ImageSize,
		"output", meta.Output)
	return m, nil
}

// initRuntime initialises the onnxruntime environment once per process.
func initRuntime(libraryPath, artifactDir string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	libPath := strings.TrimSpace(libraryPath)
	if libPath == "" {
		libPath = resolveSharedLibraryPath(artifactDir)
	}
	if libPath == "" {
		return fmt.Errorf("onnxruntime shared library not found; set model.onnxruntime_library or ONNXRUNTIME_SHARED_LIBRARY_PATH")
	}
	ort.SetSharedLibraryPath(libPath)

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnxruntime: %w", err)
	}
	return nil
}

// resolveSharedLibraryPath locates a platform-specific onnxruntime shared library.
// ONNXRUNTIME_SHARED_LIBRARY_PATH wins; otherwise common names and locations are probed.
func resolveSharedLibraryPath(dir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.so",
		"onnxruntime.so",
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"onnxruntime.dll",
	}
	dirs := []string{
		dir,
		filepath.Join(dir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}

	for _, d := range dirs {
		for _, name := range names {
			candidate := filepath.Join(d, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

// readMetadata prefers the model's embedded metadata and falls back to the sidecar file.
func readMetadata(path string) (Metadata, error) {
	meta, err := readEmbeddedMetadata(path)
	if err == nil {
		return meta, nil
	}
	if !errors.Is(err, errNoVocab) {
		return Metadata{}, fmt.Errorf("read model metadata: %w", err)
	}

	sidecar := SidecarPath(path)
	meta, sideErr := readSidecar(sidecar)
	if sideErr != nil {
		if os.IsNotExist(sideErr) {
			return Metadata{}, fmt.Errorf("model has no embedded vocab and no sidecar at %s", sidecar)
		}
		return Metadata{}, fmt.Errorf("read sidecar metadata: %w", sideErr)
	}
	return meta, nil
}

func readEmbeddedMetadata(path string) (Metadata, error) {
	md, err := ort.GetModelMetadata(path)
	if err != nil {
		return Metadata{}, err
	}
	defer func() {
		_ = md.Destroy()
	}()

	return parseMetadata(md.LookupCustomMetadataMap)
}

// onnxBackend runs an ONNX session. Session access is serialised because the
// bound input and output tensors are shared.
type onnxBackend struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	mu      sync.Mutex
}

func newONNXBackend(path string, meta Metadata) (*onnxBackend, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("inspect model: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("model must have one input and one output, has %d and %d", len(inputs), len(outputs))
	}

	labels := int64(len(meta.Vocabulary))
	if dims := outputs[0].Dimensions; len(dims) > 0 {
		if last := dims[len(dims)-1]; last > 0 && last != labels {
			return nil, fmt.Errorf("model outputs %d classes but vocabulary has %d labels", last, labels)
		}
	}

	size := int64(meta.ImageSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, labels))
	if err != nil {
		_ = input.Destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		path,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &onnxBackend{
		session: session,
		input:   input,
		output:  output,
	}, nil
}

func (b *onnxBackend) Run(input []float32) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil || b.input == nil || b.output == nil {
		return nil, ErrBackendClosed
	}

	dst := b.input.GetData()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("input has %d values, tensor expects %d", len(input), len(dst))
	}
	copy(dst, input)

	if err := b.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	raw := b.output.GetData()
	out := make([]float32, len(raw))
	copy(out, raw)
	return out, nil
}

func (b *onnxBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	if b.session != nil {
		errs = append(errs, b.session.Destroy())
		b.session = nil
	}
	if b.input != nil {
		errs = append(errs, b.input.Destroy())
		b.input = nil
	}
	if b.output != nil {
		errs = append(errs, b.output.Destroy())
		b.output = nil
	}
	return errors.Join(errs...)
}
