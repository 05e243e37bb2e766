package preprocess

import (
	"testing"

	"github.com/Brownie44l1/cassava-api/internal/model"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *model.ImageBuffer {
	img := model.NewImageBuffer(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGB(x, y, uint8(x%256), uint8(y%256), uint8((x+y)%256))
		}
	}
	return img
}

func uniform(w, h int, r, g, b uint8) *model.ImageBuffer {
	img := model.NewImageBuffer(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGB(x, y, r, g, b)
		}
	}
	return img
}

func TestRescaleSize(t *testing.T) {
	cases := []struct {
		w, h, wantW, wantH int
	}{
		{1000, 500, 800, 400},
		{500, 1000, 400, 800},
		{400, 400, 400, 400},
		{3, 7, 400, 933},
		{1, 1, 400, 400},
		{4032, 3024, 533, 400},
		{40, 400, 400, 4000},
	}
	for _, c := range cases {
		w, h, err := RescaleSize(c.w, c.h)
		require.NoError(t, err)
		require.Equal(t, c.wantW, w, "%dx%d", c.w, c.h)
		require.Equal(t, c.wantH, h, "%dx%d", c.w, c.h)
	}
}

func TestRescaleSizeRejectsExtremeShapes(t *testing.T) {
	for _, dims := range [][2]int{{1, 300}, {300, 1}, {40, 401}, {100000, 2}, {0, 10}, {10, -1}} {
		_, _, err := RescaleSize(dims[0], dims[1])
		require.ErrorIs(t, err, model.ErrInvalidInput, "%dx%d", dims[0], dims[1])
	}
}

func TestPrepareRejectsNarrowStrip(t *testing.T) {
	_, err := Prepare(gradient(1, 300))
	require.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = Rescale(gradient(500, 20))
	require.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestRescaleAndCropAreDeterministic(t *testing.T) {
	src := gradient(1000, 500)

	rescaled, err := Rescale(src)
	require.NoError(t, err)
	require.Equal(t, 800, rescaled.Width)
	require.Equal(t, 400, rescaled.Height)

	first, err := CenterCrop(rescaled, model.InputSize)
	require.NoError(t, err)
	require.Equal(t, model.InputSize, first.Width)
	require.Equal(t, model.InputSize, first.Height)

	again, err := Rescale(src)
	require.NoError(t, err)
	second, err := CenterCrop(again, model.InputSize)
	require.NoError(t, err)
	require.Equal(t, first.Pix, second.Pix)
}

func TestCenterCropOffsets(t *testing.T) {
	src := gradient(5, 4)
	out, err := CenterCrop(src, 3)
	require.NoError(t, err)
	// floor((5-3)/2) = 1, floor((4-3)/2) = 0
	r, g, _ := out.RGB(0, 0)
	require.Equal(t, uint8(1), r)
	require.Equal(t, uint8(0), g)
	r, g, _ = out.RGB(2, 2)
	require.Equal(t, uint8(3), r)
	require.Equal(t, uint8(2), g)
}

func TestCenterCropTooSmall(t *testing.T) {
	_, err := CenterCrop(gradient(379, 500), model.InputSize)
	require.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestNormalize(t *testing.T) {
	img := uniform(2, 1, 255, 0, 128)
	tensor := Normalize(img)
	require.Len(t, tensor, 6)

	wantR := (1.0 - 0.485) / 0.229
	wantG := (0.0 - 0.456) / 0.224
	wantB := (128.0/255.0 - 0.406) / 0.225
	for p := 0; p < 2; p++ {
		require.InDelta(t, wantR, tensor[p*3], 1e-5)
		require.InDelta(t, wantG, tensor[p*3+1], 1e-5)
		require.InDelta(t, wantB, tensor[p*3+2], 1e-5)
	}
}

func TestPrepareUniformImage(t *testing.T) {
	tensor, err := Prepare(uniform(640, 480, 90, 160, 40))
	require.NoError(t, err)
	require.Len(t, tensor, model.TensorLen)

	want := [3]float64{
		(90.0/255.0 - 0.485) / 0.229,
		(160.0/255.0 - 0.456) / 0.224,
		(40.0/255.0 - 0.406) / 0.225,
	}
	// one 8-bit step of resampling error at most
	for i := 0; i < len(tensor); i += 997 {
		require.InDelta(t, want[i%3], tensor[i], 0.02)
	}
}

func TestPrepareRejectsInvalidInput(t *testing.T) {
	_, err := Prepare(nil)
	require.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = Prepare(&model.ImageBuffer{Width: 10, Height: 10})
	require.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestPrepareSmallImageIsUpscaled(t *testing.T) {
	tensor, err := Prepare(gradient(32, 24))
	require.NoError(t, err)
	require.Len(t, tensor, model.TensorLen)
}
