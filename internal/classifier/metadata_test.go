package classifier

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/food-classifier/internal/common"
	"github.com/Veraticus/food-classifier/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) lookupFunc {
	return func(key string) (string, bool, error) {
		v, ok := m[key]
		return v, ok, nil
	}
}

func TestParseVocab(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    model.Vocabulary
		wantErr bool
	}{
		{name: "array", input: `["Buuz","Khuushuur"]`, want: model.Vocabulary{"Buuz", "Khuushuur"}},
		{name: "index map", input: `{"1":"Khuushuur","0":"Buuz"}`, want: model.Vocabulary{"Buuz", "Khuushuur"}},
		{name: "bad index", input: `{"zero":"Buuz"}`, wantErr: true},
		{name: "index out of range", input: `{"0":"Buuz","5":"Tsuivan"}`, wantErr: true},
		{name: "not json", input: `Buuz,Khuushuur`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVocab([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMetadata(t *testing.T) {
	meta, err := parseMetadata(mapLookup(map[string]string{
		"vocab":      `["Buuz","Khuushuur","Tsuivan","Olivier Salad"]`,
		"image_size": "192",
		"mean":       "[0.5, 0.5, 0.5]",
		"std":        "[0.25, 0.25, 0.25]",
		"output":     "Probabilities",
	}))
	require.NoError(t, err)

	assert.Equal(t, dishes, meta.Vocabulary)
	assert.Equal(t, 192, meta.ImageSize)
	assert.Equal(t, [3]float32{0.5, 0.5, 0.5}, meta.Mean)
	assert.Equal(t, [3]float32{0.25, 0.25, 0.25}, meta.Std)
	assert.Equal(t, OutputProbabilities, meta.Output)
}

func TestParseMetadataDefaults(t *testing.T) {
	meta, err := parseMetadata(mapLookup(map[string]string{"vocab": `["Buuz"]`}))
	require.NoError(t, err)

	meta, err = meta.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, DefaultImageSize, meta.ImageSize)
	assert.Equal(t, DefaultMean, meta.Mean)
	assert.Equal(t, DefaultStd, meta.Std)
	assert.Equal(t, OutputLogits, meta.Output)
}

func TestParseMetadataErrors(t *testing.T) {
	tests := []struct {
		fields map[string]string
		name   string
	}{
		{name: "missing vocab", fields: map[string]string{"image_size": "224"}},
		{name: "bad image size", fields: map[string]string{"vocab": `["Buuz"]`, "image_size": "big"}},
		{name: "short mean", fields: map[string]string{"vocab": `["Buuz"]`, "mean": "[0.5]"}},
		{name: "bad std", fields: map[string]string{"vocab": `["Buuz"]`, "std": "wide"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseMetadata(mapLookup(tt.fields))
			assert.Error(t, err)
		})
	}

	_, err := parseMetadata(mapLookup(map[string]string{}))
	assert.ErrorIs(t, err, errNoVocab)

	lookupErr := errors.New("metadata unreadable")
	_, err = parseMetadata(func(string) (string, bool, error) { return "", false, lookupErr })
	assert.ErrorIs(t, err, lookupErr)
}

func TestReadSidecar(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "model.onnx")
	sidecar := SidecarPath(artifact)
	assert.Equal(t, artifact+".json", sidecar)

	content := `{
		"vocab": {"0": "Buuz", "1": "Khuushuur", "2": "Tsuivan", "3": "Olivier Salad"},
		"image_size": 160,
		"mean": [0.4, 0.4, 0.4],
		"output": "logits"
	}`
	require.NoError(t, os.WriteFile(sidecar, []byte(content), 0o600))

	meta, err := readSidecar(sidecar)
	require.NoError(t, err)
	assert.Equal(t, dishes, meta.Vocabulary)
	assert.Equal(t, 160, meta.ImageSize)
	assert.Equal(t, [3]float32{0.4, 0.4, 0.4}, meta.Mean)
	assert.Equal(t, OutputLogits, meta.Output)

	_, err = readSidecar(filepath.Join(dir, "missing.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoadRejectsMissingOrEmptyArtifact(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "absent.onnx"))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrModelLoad)

	empty := filepath.Join(dir, "empty.onnx")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = Load(empty)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrModelLoad)
	assert.Contains(t, err.Error(), "empty")
}

func TestResolveSharedLibraryPath(t *testing.T) {
	t.Run("env wins", func(t *testing.T) {
		t.Setenv("ONNXRUNTIME_SHARED_LIBRARY_PATH", "/custom/libonnxruntime.so")
		assert.Equal(t, "/custom/libonnxruntime.so", resolveSharedLibraryPath(t.TempDir()))
	})

	t.Run("probes artifact dir", func(t *testing.T) {
		t.Setenv("ONNXRUNTIME_SHARED_LIBRARY_PATH", "")
		dir := t.TempDir()
		lib := filepath.Join(dir, "lib", "libonnxruntime.so")
		require.NoError(t, os.MkdirAll(filepath.Dir(lib), 0o750))
		require.NoError(t, os.WriteFile(lib, []byte("elf"), 0o600))

		assert.Equal(t, lib, resolveSharedLibraryPath(dir))
	})
}
