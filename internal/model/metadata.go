package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadMetadata reads and validates the metadata sidecar. An empty path yields
// the defaults for an NHWC graph named input/output.
func LoadMetadata(path string) (Metadata, error) {
	var metadata Metadata
	if path != "" {
		metaFile, err := os.ReadFile(path)
		if err != nil {
			return Metadata{}, fmt.Errorf("%w: failed to read metadata: %v", ErrModelLoad, err)
		}
		if err := json.Unmarshal(metaFile, &metadata); err != nil {
			return Metadata{}, fmt.Errorf("%w: failed to parse metadata: %v", ErrModelLoad, err)
		}
	}
	metadata.applyDefaults()
	if err := metadata.Validate(); err != nil {
		return Metadata{}, err
	}
	return metadata, nil
}

func (m *Metadata) applyDefaults() {
	if m.Layout == "" {
		m.Layout = LayoutNHWC
	}
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	if m.ImageSize == 0 {
		m.ImageSize = InputSize
	}
	if len(m.InputShape) == 0 {
		if m.Layout == LayoutNCHW {
			m.InputShape = []int64{1, Channels, InputSize, InputSize}
		} else {
			m.InputShape = []int64{1, InputSize, InputSize, Channels}
		}
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = []int64{1, NumClasses}
	}
}

// Validate checks that the declared graph accepts a 380x380x3 float32 input
// and yields NumClasses scores.
func (m Metadata) Validate() error {
	if m.Layout != LayoutNHWC && m.Layout != LayoutNCHW {
		return fmt.Errorf("%w: unknown layout %q", ErrModelLoad, m.Layout)
	}
	if m.ImageSize != InputSize {
		return fmt.Errorf("%w: image size %d, want %d", ErrModelLoad, m.ImageSize, InputSize)
	}
	if n := elements(m.InputShape); n != TensorLen {
		return fmt.Errorf("%w: input shape %v has %d elements, want %d", ErrModelLoad, m.InputShape, n, TensorLen)
	}
	channelAxis := len(m.InputShape) - 1
	if m.Layout == LayoutNCHW {
		channelAxis = len(m.InputShape) - 3
	}
	if channelAxis < 0 || m.InputShape[channelAxis] != Channels {
		return fmt.Errorf("%w: input shape %v does not match layout %s", ErrModelLoad, m.InputShape, m.Layout)
	}
	if n := elements(m.OutputShape); n != NumClasses {
		return fmt.Errorf("%w: output shape %v has %d elements, want %d", ErrModelLoad, m.OutputShape, n, NumClasses)
	}
	if len(m.Classes) != 0 && len(m.Classes) != NumClasses {
		return fmt.Errorf("%w: metadata lists %d classes, want %d", ErrModelLoad, len(m.Classes), NumClasses)
	}
	return nil
}

// LabelSet returns the class names declared by the metadata, falling back to Labels.
func (m Metadata) LabelSet() LabelSet {
	if len(m.Classes) != NumClasses {
		return Labels
	}
	var s LabelSet
	copy(s[:], m.Classes)
	return s
}

func elements(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}
