package model

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/cassava-api/internal/logging"
)

var (
	envMu   sync.Mutex
	envRefs int
)

// acquireEnvironment initializes the process-wide ONNX Runtime environment on
// first use. Every successful call must be paired with releaseEnvironment.
func acquireEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 && !ort.IsInitialized() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()

	envRefs--
	if envRefs == 0 {
		if err := ort.DestroyEnvironment(); err != nil {
			logging.Warnf("Failed to destroy ONNX environment: %v", err)
		}
	}
}

// ONNXRunner runs the classifier through ONNX Runtime with preallocated
// input and output tensors.
type ONNXRunner struct {
	session      *ort.AdvancedSession
	Metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]

	closeOnce sync.Once
	closed    bool
}

// NewONNXRunner reads the metadata and the whole model file into memory and
// builds a session around them. Any failure wraps ErrModelLoad.
func NewONNXRunner(opts Options) (*ONNXRunner, error) {
	metadata, err := LoadMetadata(opts.MetadataPath)
	if err != nil {
		return nil, err
	}

	modelData, err := os.ReadFile(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read model: %v", ErrModelLoad, err)
	}
	if len(modelData) == 0 {
		return nil, fmt.Errorf("%w: model file %s is empty", ErrModelLoad, opts.ModelPath)
	}

	if err := acquireEnvironment(opts.LibraryPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	r, err := newONNXSession(metadata, modelData, opts.IntraOpThreads)
	if err != nil {
		releaseEnvironment()
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	return r, nil
}

func newONNXSession(metadata Metadata, modelData []byte, threads int) (*ONNXRunner, error) {
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	var options *ort.SessionOptions
	if threads > 0 {
		options, err = ort.NewSessionOptions()
		if err != nil {
			inputTensor.Destroy()
			outputTensor.Destroy()
			return nil, fmt.Errorf("failed to create session options: %w", err)
		}
		defer options.Destroy()
		if err := options.SetIntraOpNumThreads(threads); err != nil {
			inputTensor.Destroy()
			outputTensor.Destroy()
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewAdvancedSessionWithONNXData(modelData,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXRunner{
		session:      session,
		Metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Run copies t into the session input, executes the graph once and returns
// a fresh copy of the output scores.
func (r *ONNXRunner) Run(t Tensor) (ScoreVector, error) {
	if r.closed {
		return nil, ErrModelClosed
	}
	if err := checkTensor(t); err != nil {
		return nil, err
	}

	if r.Metadata.Layout == LayoutNCHW {
		toNCHW(t, r.inputTensor.GetData())
	} else {
		copy(r.inputTensor.GetData(), t)
	}

	if err := r.session.Run(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInferenceFailure, err)
	}

	scores := make(ScoreVector, NumClasses)
	copy(scores, r.outputTensor.GetData())
	return scores, nil
}

// Close destroys the session and its tensors.
func (r *ONNXRunner) Close() error {
	r.closeOnce.Do(func() {
		r.closed = true
		if r.inputTensor != nil {
			r.inputTensor.Destroy()
		}
		if r.outputTensor != nil {
			r.outputTensor.Destroy()
		}
		if r.session != nil {
			r.session.Destroy()
		}
		releaseEnvironment()
	})
	return nil
}
