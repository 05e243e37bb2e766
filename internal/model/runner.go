package model

import "fmt"

// Runner executes a loaded classification graph. Implementations are not
// reentrant: at most one Run may be in flight on a given Runner.
type Runner interface {
	// Run performs a single forward pass and returns the raw class scores.
	Run(t Tensor) (ScoreVector, error)
	// Close releases native resources. It is idempotent; Run fails with
	// ErrModelClosed afterwards.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendONNX   = "onnx"
	BackendTFLite = "tflite"
)

// Options configures runner construction.
type Options struct {
	Backend        string
	ModelPath      string
	MetadataPath   string
	LibraryPath    string
	IntraOpThreads int
}

// Open constructs the runner for the configured backend.
func Open(opts Options) (Runner, LabelSet, error) {
	switch opts.Backend {
	case "", BackendONNX:
		r, err := NewONNXRunner(opts)
		if err != nil {
			return nil, LabelSet{}, err
		}
		return r, r.Metadata.LabelSet(), nil
	case BackendTFLite:
		r, err := NewTFLiteRunner(opts)
		if err != nil {
			return nil, LabelSet{}, err
		}
		return r, r.Labels(), nil
	default:
		return nil, LabelSet{}, fmt.Errorf("%w: unknown backend %q", ErrModelLoad, opts.Backend)
	}
}

// checkTensor guards the native input copy against short or oversized tensors.
func checkTensor(t Tensor) error {
	if len(t) != TensorLen {
		return fmt.Errorf("%w: tensor has %d values, want %d", ErrInvalidInput, len(t), TensorLen)
	}
	return nil
}

// toNCHW writes the channel-interleaved tensor t into dst as planar channels.
func toNCHW(t Tensor, dst []float32) {
	const plane = InputSize * InputSize
	for p := 0; p < plane; p++ {
		dst[p] = t[p*Channels]
		dst[plane+p] = t[p*Channels+1]
		dst[2*plane+p] = t[p*Channels+2]
	}
}
