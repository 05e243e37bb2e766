// Package preprocess turns a decoded leaf photo into the normalized tensor the
// classifier expects: short side to 400, 380x380 center crop, ImageNet
// mean/std standardization.
package preprocess

import (
	"fmt"
	"image"
	"image/color"

	"github.com/Brownie44l1/cassava-api/internal/model"
	"github.com/nfnt/resize"
)

const (
	// TargetShortSide is the length of the shorter side after rescaling.
	TargetShortSide = 400
	// MaxAspectRatio bounds long/short, which keeps the rescaled long side
	// at most 4000.
	MaxAspectRatio = 10
)

var (
	mean = [model.Channels]float32{0.485, 0.456, 0.406}
	std  = [model.Channels]float32{0.229, 0.224, 0.225}
)

// Prepare runs Rescale, CenterCrop and Normalize in order.
func Prepare(img *model.ImageBuffer) (model.Tensor, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	rescaled, err := Rescale(img)
	if err != nil {
		return nil, err
	}
	cropped, err := CenterCrop(rescaled, model.InputSize)
	if err != nil {
		return nil, err
	}
	return Normalize(cropped), nil
}

// RescaleSize returns the dimensions of a w x h image scaled so its shorter
// side is exactly TargetShortSide. The longer side is truncated. Images
// longer than MaxAspectRatio times their short side are rejected.
func RescaleSize(w, h int) (int, int, error) {
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w: invalid dimensions %dx%d", model.ErrInvalidInput, w, h)
	}
	short, long := w, h
	if h < w {
		short, long = h, w
	}
	if long/short > MaxAspectRatio || (long/short == MaxAspectRatio && long%short != 0) {
		return 0, 0, fmt.Errorf("%w: %dx%d exceeds aspect ratio %d:1", model.ErrInvalidInput, w, h, MaxAspectRatio)
	}
	scale := float64(TargetShortSide) / float64(short)
	scaled := int(float64(long) * scale)
	if scaled < TargetShortSide {
		scaled = TargetShortSide
	}
	if w <= h {
		return TargetShortSide, scaled, nil
	}
	return scaled, TargetShortSide, nil
}

// Rescale resamples img bilinearly to RescaleSize.
func Rescale(img *model.ImageBuffer) (*model.ImageBuffer, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	w, h, err := RescaleSize(img.Width, img.Height)
	if err != nil {
		return nil, err
	}
	resized := resize.Resize(uint(w), uint(h), toRGBA(img), resize.Bilinear)
	return fromImage(resized), nil
}

// CenterCrop extracts a size x size square centered with floor offsets.
func CenterCrop(img *model.ImageBuffer, size int) (*model.ImageBuffer, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if img.Width < size || img.Height < size {
		return nil, fmt.Errorf("%w: %dx%d is smaller than the %dx%d crop", model.ErrInvalidInput, img.Width, img.Height, size, size)
	}
	x0 := (img.Width - size) / 2
	y0 := (img.Height - size) / 2

	out := model.NewImageBuffer(size, size)
	rowBytes := size * model.Channels
	for y := 0; y < size; y++ {
		src := ((y0+y)*img.Width + x0) * model.Channels
		copy(out.Pix[y*rowBytes:(y+1)*rowBytes], img.Pix[src:src+rowBytes])
	}
	return out, nil
}

// Normalize maps every channel to (v/255 - mean) / std, keeping the
// R,G,B-per-pixel layout.
func Normalize(img *model.ImageBuffer) model.Tensor {
	n := img.Width * img.Height * model.Channels
	t := make(model.Tensor, n)
	for i := 0; i < n; i++ {
		c := i % model.Channels
		v := float32(img.Pix[i]) / 255.0
		t[i] = (v - mean[c]) / std[c]
	}
	return t
}

func toRGBA(img *model.ImageBuffer) *image.RGBA {
	rgba := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for p, q := 0, 0; p < img.Width*img.Height*model.Channels; p, q = p+3, q+4 {
		rgba.Pix[q] = img.Pix[p]
		rgba.Pix[q+1] = img.Pix[p+1]
		rgba.Pix[q+2] = img.Pix[p+2]
		rgba.Pix[q+3] = 0xff
	}
	return rgba
}

func fromImage(src image.Image) *model.ImageBuffer {
	bounds := src.Bounds()
	out := model.NewImageBuffer(bounds.Dx(), bounds.Dy())

	if rgba, ok := src.(*image.RGBA); ok {
		for y := 0; y < out.Height; y++ {
			row := rgba.Pix[(y+bounds.Min.Y-rgba.Rect.Min.Y)*rgba.Stride:]
			for x := 0; x < out.Width; x++ {
				q := (x + bounds.Min.X - rgba.Rect.Min.X) * 4
				out.SetRGB(x, y, row[q], row[q+1], row[q+2])
			}
		}
		return out
	}

	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			c := color.RGBAModel.Convert(src.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.RGBA)
			out.SetRGB(x, y, c.R, c.G, c.B)
		}
	}
	return out
}
