package model

import "errors"

// Sentinel errors for the classification pipeline. Every failure that reaches
// a caller wraps exactly one of these.
var (
	ErrInvalidInput     = errors.New("invalid input image")
	ErrModelLoad        = errors.New("failed to load model")
	ErrModelClosed      = errors.New("model is closed")
	ErrInferenceFailure = errors.New("inference failed")
	ErrNotReady         = errors.New("model is not ready")
)
