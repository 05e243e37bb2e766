// Package capture converts photos from files, uploads and cameras into the
// packed RGB buffers the classifier reads.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Brownie44l1/cassava-api/internal/model"
)

// MaxPixels caps the declared size of an image before its pixels are decoded.
const MaxPixels = 40_000_000

// ErrCameraUnavailable is returned when no camera backend is compiled in or
// the device cannot be opened.
var ErrCameraUnavailable = errors.New("camera is unavailable")

var supportedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsSupported reports whether path has an extension Decode understands.
func IsSupported(path string) bool {
	return supportedExts[strings.ToLower(filepath.Ext(path))]
}

// Decode reads an encoded image and returns its pixels and format name.
// Undecodable data and images over MaxPixels wrap model.ErrInvalidInput.
func Decode(r io.Reader) (*model.ImageBuffer, string, error) {
	// the header is read twice, once for the size check
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d image exceeds %d pixels", model.ErrInvalidInput, cfg.Width, cfg.Height, MaxPixels)
	}

	img, format, err := image.Decode(io.MultiReader(&head, r))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	return FromImage(img), format, nil
}

// DecodeFile opens and decodes the image at path.
func DecodeFile(path string) (*model.ImageBuffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	return Decode(f)
}

// FromImage copies img into a new buffer, dropping alpha.
func FromImage(img image.Image) *model.ImageBuffer {
	bounds := img.Bounds()
	out := model.NewImageBuffer(bounds.Dx(), bounds.Dy())

	switch src := img.(type) {
	case *image.RGBA:
		for y := 0; y < out.Height; y++ {
			row := src.Pix[(y+bounds.Min.Y-src.Rect.Min.Y)*src.Stride:]
			for x := 0; x < out.Width; x++ {
				q := (x + bounds.Min.X - src.Rect.Min.X) * 4
				out.SetRGB(x, y, row[q], row[q+1], row[q+2])
			}
		}
	case *image.YCbCr:
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				c := src.YCbCrAt(bounds.Min.X+x, bounds.Min.Y+y)
				r, g, b := color.YCbCrToRGB(c.Y, c.Cb, c.Cr)
				out.SetRGB(x, y, r, g, b)
			}
		}
	default:
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
				out.SetRGB(x, y, c.R, c.G, c.B)
			}
		}
	}
	return out
}

// ToImage wraps the buffer's pixels in an opaque *image.RGBA.
func ToImage(buf *model.ImageBuffer) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, buf.Width, buf.Height))
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			r, g, b := buf.RGB(x, y)
			i := img.PixOffset(x, y)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = r, g, b, 0xff
		}
	}
	return img
}

// EncodePNG serializes the buffer as PNG for storage.
func EncodePNG(buf *model.ImageBuffer) ([]byte, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := png.Encode(&out, ToImage(buf)); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return out.Bytes(), nil
}
