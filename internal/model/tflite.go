//go:build tflite
// +build tflite

package model

import (
	"fmt"
	"os"

	"github.com/mattn/go-tflite"
)

// TFLiteRunner runs the classifier through the TensorFlow Lite C API.
type TFLiteRunner struct {
	model   *tflite.Model
	interp  *tflite.Interpreter
	options *tflite.InterpreterOptions
	labels  LabelSet
	layout  string
	closed  bool
}

// NewTFLiteRunner loads the .tflite flatbuffer into memory and allocates the
// interpreter tensors. Any failure wraps ErrModelLoad.
func NewTFLiteRunner(opts Options) (*TFLiteRunner, error) {
	metadata, err := LoadMetadata(opts.MetadataPath)
	if err != nil {
		return nil, err
	}

	modelData, err := os.ReadFile(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read model: %v", ErrModelLoad, err)
	}

	m := tflite.NewModel(modelData)
	if m == nil {
		return nil, fmt.Errorf("%w: %s is not a valid tflite model", ErrModelLoad, opts.ModelPath)
	}

	options := tflite.NewInterpreterOptions()
	if opts.IntraOpThreads > 0 {
		options.SetNumThread(opts.IntraOpThreads)
	}

	interp := tflite.NewInterpreter(m, options)
	if interp == nil {
		options.Delete()
		m.Delete()
		return nil, fmt.Errorf("%w: failed to create interpreter", ErrModelLoad)
	}

	r := &TFLiteRunner{model: m, interp: interp, options: options, labels: metadata.LabelSet()}
	if status := interp.AllocateTensors(); status != tflite.OK {
		r.Close()
		return nil, fmt.Errorf("%w: failed to allocate tensors (status %d)", ErrModelLoad, status)
	}

	layout, err := r.detectLayout()
	if err != nil {
		r.Close()
		return nil, err
	}
	r.layout = layout
	return r, nil
}

func (r *TFLiteRunner) detectLayout() (string, error) {
	in := r.interp.GetInputTensor(0)
	if in == nil || in.Type() != tflite.Float32 {
		return "", fmt.Errorf("%w: input tensor must be float32", ErrModelLoad)
	}
	if n := in.ByteSize() / 4; n != TensorLen {
		return "", fmt.Errorf("%w: input tensor has %d elements, want %d", ErrModelLoad, n, TensorLen)
	}
	out := r.interp.GetOutputTensor(0)
	if out == nil || out.Type() != tflite.Float32 || out.ByteSize()/4 != NumClasses {
		return "", fmt.Errorf("%w: output tensor must hold %d float32 scores", ErrModelLoad, NumClasses)
	}
	if in.NumDims() == 4 && in.Dim(1) == Channels {
		return LayoutNCHW, nil
	}
	return LayoutNHWC, nil
}

// Labels returns the class names this runner reports scores for.
func (r *TFLiteRunner) Labels() LabelSet {
	return r.labels
}

// Run performs a single Invoke.
func (r *TFLiteRunner) Run(t Tensor) (ScoreVector, error) {
	if r.closed {
		return nil, ErrModelClosed
	}
	if err := checkTensor(t); err != nil {
		return nil, err
	}

	input := r.interp.GetInputTensor(0).Float32s()
	if r.layout == LayoutNCHW {
		toNCHW(t, input)
	} else {
		copy(input, t)
	}

	if status := r.interp.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("%w: invoke returned status %d", ErrInferenceFailure, status)
	}

	scores := make(ScoreVector, NumClasses)
	copy(scores, r.interp.GetOutputTensor(0).Float32s())
	return scores, nil
}

// Close deletes the interpreter, its options and the model.
func (r *TFLiteRunner) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.interp != nil {
		r.interp.Delete()
	}
	if r.options != nil {
		r.options.Delete()
	}
	if r.model != nil {
		r.model.Delete()
	}
	return nil
}
