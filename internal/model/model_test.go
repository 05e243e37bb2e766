package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImageBufferValidate(t *testing.T) {
	var nilBuf *ImageBuffer
	require.ErrorIs(t, nilBuf.Validate(), ErrInvalidInput)
	require.ErrorIs(t, (&ImageBuffer{Width: 0, Height: 4, Pix: make([]uint8, 12)}).Validate(), ErrInvalidInput)
	require.ErrorIs(t, (&ImageBuffer{Width: 2, Height: 2, Pix: make([]uint8, 11)}).Validate(), ErrInvalidInput)
	require.ErrorIs(t, (&ImageBuffer{Width: 2, Height: 2}).Validate(), ErrInvalidInput)
	require.NoError(t, NewImageBuffer(2, 2).Validate())
}

func TestImageBufferRGB(t *testing.T) {
	b := NewImageBuffer(3, 2)
	b.SetRGB(2, 1, 10, 20, 30)
	r, g, bl := b.RGB(2, 1)
	require.Equal(t, []uint8{10, 20, 30}, []uint8{r, g, bl})
	require.Equal(t, uint8(10), b.Pix[(1*3+2)*3])
}

func TestLabelSetIndex(t *testing.T) {
	require.Equal(t, 0, Labels.Index("Cassava Bacterial Blight"))
	require.Equal(t, 4, Labels.Index("Healthy"))
	require.Equal(t, -1, Labels.Index("Cassava Green Mite"))
}

func TestLoadMetadataDefaults(t *testing.T) {
	m, err := LoadMetadata("")
	require.NoError(t, err)
	require.Equal(t, LayoutNHWC, m.Layout)
	require.Equal(t, []int64{1, InputSize, InputSize, Channels}, m.InputShape)
	require.Equal(t, []int64{1, NumClasses}, m.OutputShape)
	require.Equal(t, "input", m.InputName)
	require.Equal(t, Labels, m.LabelSet())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMetadataNCHW(t *testing.T) {
	path := writeFile(t, "meta.json", `{
		"input_shape": [1, 3, 380, 380],
		"output_shape": [1, 5],
		"classes": ["a", "b", "c", "d", "e"],
		"image_size": 380,
		"layout": "nchw"
	}`)
	m, err := LoadMetadata(path)
	require.NoError(t, err)
	require.Equal(t, LayoutNCHW, m.Layout)
	require.Equal(t, LabelSet{"a", "b", "c", "d", "e"}, m.LabelSet())
}

func TestLoadMetadataRejectsBadShapes(t *testing.T) {
	cases := map[string]string{
		"wrong image size": `{"image_size": 224}`,
		"wrong output":     `{"output_shape": [1, 7]}`,
		"wrong input":      `{"input_shape": [1, 224, 224, 3]}`,
		"layout mismatch":  `{"layout": "nchw", "input_shape": [1, 380, 380, 3]}`,
		"unknown layout":   `{"layout": "chw"}`,
		"too few classes":  `{"classes": ["a", "b"]}`,
		"not json":         `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadMetadata(writeFile(t, "meta.json", body))
			require.ErrorIs(t, err, ErrModelLoad)
		})
	}
}

func TestLoadMetadataMissingFile(t *testing.T) {
	_, err := LoadMetadata(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, ErrModelLoad)
}

func TestNewONNXRunnerMissingModel(t *testing.T) {
	_, err := NewONNXRunner(Options{ModelPath: filepath.Join(t.TempDir(), "missing.onnx")})
	require.ErrorIs(t, err, ErrModelLoad)
}

func TestNewONNXRunnerEmptyModel(t *testing.T) {
	_, err := NewONNXRunner(Options{ModelPath: writeFile(t, "empty.onnx", "")})
	require.ErrorIs(t, err, ErrModelLoad)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, _, err := Open(Options{Backend: "coreml"})
	require.ErrorIs(t, err, ErrModelLoad)
}

func TestToNCHW(t *testing.T) {
	tensor := make(Tensor, TensorLen)
	const plane = InputSize * InputSize
	// pixel 0 and the last pixel carry recognisable values
	tensor[0], tensor[1], tensor[2] = 1, 2, 3
	last := (plane - 1) * Channels
	tensor[last], tensor[last+1], tensor[last+2] = 4, 5, 6

	dst := make([]float32, TensorLen)
	toNCHW(tensor, dst)
	require.Equal(t, float32(1), dst[0])
	require.Equal(t, float32(2), dst[plane])
	require.Equal(t, float32(3), dst[2*plane])
	require.Equal(t, float32(4), dst[plane-1])
	require.Equal(t, float32(5), dst[2*plane-1])
	require.Equal(t, float32(6), dst[3*plane-1])
}

func TestCheckTensor(t *testing.T) {
	require.ErrorIs(t, checkTensor(make(Tensor, 10)), ErrInvalidInput)
	require.NoError(t, checkTensor(make(Tensor, TensorLen)))
}
