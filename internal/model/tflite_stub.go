//go:build !tflite
// +build !tflite

package model

import "fmt"

// TFLiteRunner is unavailable without the tflite build tag.
type TFLiteRunner struct{}

// NewTFLiteRunner always fails when built without the tflite tag.
func NewTFLiteRunner(Options) (*TFLiteRunner, error) {
	return nil, fmt.Errorf("%w: tflite build tag is not enabled", ErrModelLoad)
}

// Labels returns the default label set.
func (r *TFLiteRunner) Labels() LabelSet {
	return Labels
}

// Run always reports a closed model.
func (r *TFLiteRunner) Run(Tensor) (ScoreVector, error) {
	return nil, ErrModelClosed
}

// Close is a no-op.
func (r *TFLiteRunner) Close() error {
	return nil
}
