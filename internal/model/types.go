package model

import "fmt"

const (
	// InputSize is the side of the square crop fed to the network.
	InputSize = 380
	// Channels is the number of colour channels per pixel (R, G, B).
	Channels = 3
	// NumClasses is the length of every score and probability vector.
	NumClasses = 5
	// TensorLen is the number of float32 values in a Tensor.
	TensorLen = InputSize * InputSize * Channels
)

// LabelSet is the ordered list of class names, index-aligned with model output.
type LabelSet [NumClasses]string

// Labels is the class list the cassava model was trained on.
var Labels = LabelSet{
	"Cassava Bacterial Blight",
	"Cassava Brown Streak Disease",
	"Cassava Green Mottle",
	"Cassava Mosaic Disease",
	"Healthy",
}

// Index returns the position of label in the set, or -1.
func (s LabelSet) Index(label string) int {
	for i, l := range s {
		if l == label {
			return i
		}
	}
	return -1
}

// ImageBuffer is a decoded image with packed 8-bit RGB pixels.
// Row y starts at Pix[3*Width*y].
type ImageBuffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewImageBuffer allocates a black w x h buffer.
func NewImageBuffer(w, h int) *ImageBuffer {
	return &ImageBuffer{Width: w, Height: h, Pix: make([]uint8, w*h*Channels)}
}

// Validate reports ErrInvalidInput for nil buffers, non-positive dimensions
// or a pixel store too short for the declared size.
func (b *ImageBuffer) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: image is nil", ErrInvalidInput)
	}
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidInput, b.Width, b.Height)
	}
	if b.Pix == nil || len(b.Pix) < b.Width*b.Height*Channels {
		return fmt.Errorf("%w: pixel store holds %d bytes, want %d", ErrInvalidInput, len(b.Pix), b.Width*b.Height*Channels)
	}
	return nil
}

// RGB returns the colour of the pixel at (x, y).
func (b *ImageBuffer) RGB(x, y int) (r, g, bl uint8) {
	i := (y*b.Width + x) * Channels
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// SetRGB sets the colour of the pixel at (x, y).
func (b *ImageBuffer) SetRGB(x, y int, r, g, bl uint8) {
	i := (y*b.Width + x) * Channels
	b.Pix[i], b.Pix[i+1], b.Pix[i+2] = r, g, bl
}

// Tensor holds InputSize x InputSize x 3 normalized values, channel-interleaved
// and row-major.
type Tensor []float32

// ScoreVector holds one raw score per class.
type ScoreVector []float32

// ProbabilityVector holds one probability per class.
type ProbabilityVector []float64

// Metadata describes the serialized model shipped next to the graph file.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	Layout      string   `json:"layout"`
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
}

const (
	LayoutNHWC = "nhwc"
	LayoutNCHW = "nchw"
)

// PredictionRequest carries an already preprocessed tensor.
type PredictionRequest struct {
	Image []float32 `json:"image"`
}

// PredictionResponse is the JSON form of a verdict.
type PredictionResponse struct {
	Status      string             `json:"status"`
	Class       string             `json:"class,omitempty"`
	Confidence  float64            `json:"confidence,omitempty"`
	Message     string             `json:"message,omitempty"`
	Remedy      string             `json:"remedy,omitempty"`
	Predictions map[string]float64 `json:"predictions"`
	RecordID    string             `json:"record_id,omitempty"`
}
