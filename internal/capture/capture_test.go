package capture

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/Brownie44l1/cassava-api/internal/model"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// pngHeader returns a PNG that declares w x h pixels but carries no data.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := func(kind string, data []byte) {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(data)))
		buf.Write(n[:])
		body := append([]byte(kind), data...)
		buf.Write(body)
		binary.BigEndian.PutUint32(n[:], crc32.ChecksumIEEE(body))
		buf.Write(n[:])
	}
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolor
	chunk("IHDR", ihdr)
	chunk("IEND", nil)
	return buf.Bytes()
}

func TestDecodeRejectsOversizedImage(t *testing.T) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(pngHeader(50000, 50000)))
	require.NoError(t, err)
	require.Equal(t, 50000, cfg.Width)

	_, _, err = Decode(bytes.NewReader(pngHeader(50000, 50000)))
	require.ErrorIs(t, err, model.ErrInvalidInput)
	require.Contains(t, err.Error(), "exceeds")
}

func TestDecodeReplaysHeader(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 300, 200))
	for i := range src.Pix {
		src.Pix[i] = uint8(i)
	}
	// a reader that hands out one byte at a time
	buf, _, err := Decode(iotest.OneByteReader(bytes.NewReader(pngBytes(t, src))))
	require.NoError(t, err)
	require.Equal(t, 300, buf.Width)
	require.Equal(t, 200, buf.Height)
}

func TestDecodePNG(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	src.Set(1, 2, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	buf, format, err := Decode(bytes.NewReader(pngBytes(t, src)))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, 4, buf.Width)
	require.Equal(t, 3, buf.Height)
	r, g, b := buf.RGB(1, 2)
	require.Equal(t, []uint8{200, 100, 50}, []uint8{r, g, b})
}

func TestDecodeJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := range src.Pix {
		src.Pix[i] = 128
	}
	var data bytes.Buffer
	require.NoError(t, jpeg.Encode(&data, src, &jpeg.Options{Quality: 95}))

	buf, format, err := Decode(&data)
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	r, g, b := buf.RGB(8, 8)
	require.InDelta(t, 128, int(r), 3)
	require.InDelta(t, 128, int(g), 3)
	require.InDelta(t, 128, int(b), 3)
}

func TestDecodeGarbage(t *testing.T) {
	_, _, err := Decode(bytes.NewReader([]byte("not an image")))
	require.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestFromImageHonoursBounds(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	src.Set(5, 6, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	sub := src.SubImage(image.Rect(4, 4, 8, 8))

	buf := FromImage(sub)
	require.Equal(t, 4, buf.Width)
	r, g, b := buf.RGB(1, 2)
	require.Equal(t, []uint8{1, 2, 3}, []uint8{r, g, b})
}

func TestEncodePNGRoundTrip(t *testing.T) {
	buf := model.NewImageBuffer(3, 2)
	buf.SetRGB(2, 1, 9, 8, 7)

	data, err := EncodePNG(buf)
	require.NoError(t, err)

	back, _, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, buf.Pix, back.Pix)

	_, err = EncodePNG(nil)
	require.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leaf.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t, image.NewRGBA(image.Rect(0, 0, 2, 2))), 0o644))

	buf, _, err := DecodeFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, buf.Width)

	_, _, err = DecodeFile(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
}

func TestIsSupported(t *testing.T) {
	require.True(t, IsSupported("a/b/LEAF.JPG"))
	require.True(t, IsSupported("leaf.webp"))
	require.False(t, IsSupported("notes.txt"))
	require.False(t, IsSupported("noext"))
}
