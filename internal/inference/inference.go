// internal/inference/inference.go
package inference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Options configures the ONNX session.
type Options struct {
	// InputName and OutputName are the graph tensor names.
	InputName  string
	OutputName string
	// SharedLibraryPath points at libonnxruntime; empty uses the loader default.
	SharedLibraryPath string
}

// Inference wraps an ONNX runtime session for thread-safe inference.
// It implements the Classifier interface.
type Inference struct {
	mu          sync.Mutex
	session     *ort.DynamicAdvancedSession
	fingerprint string
}

// New creates a new Inference instance by loading the ONNX model from modelPath
func New(modelPath string, opts Options) (*Inference, error) {
	raw, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", modelPath, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("model file %s is empty", modelPath)
	}
	sum := sha256.Sum256(raw)

	if opts.InputName == "" {
		opts.InputName = "input"
	}
	if opts.OutputName == "" {
		opts.OutputName = "output"
	}

	// Initialize the ONNX runtime environment
	if !ort.IsInitialized() {
		if opts.SharedLibraryPath != "" {
			ort.SetSharedLibraryPath(opts.SharedLibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(
		raw,
		[]string{opts.InputName},
		[]string{opts.OutputName},
		nil, // Use default session options
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Inference{
		session:     session,
		fingerprint: hex.EncodeToString(sum[:]),
	}, nil
}

// Classify runs inference on a single batched tensor and returns the first output value.
func (inf *Inference) Classify(ctx context.Context, data []float32, shape []int64) (float32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	inf.mu.Lock()
	defer inf.mu.Unlock()

	if inf.session == nil {
		return 0, fmt.Errorf("inference session is nil")
	}

	expected := int64(1)
	for _, d := range shape {
		expected *= d
	}
	if len(shape) == 0 || int64(len(data)) != expected {
		return 0, fmt.Errorf("input has wrong size: got %d, expected %d for shape %v", len(data), expected, shape)
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return 0, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	// A nil output lets the runtime allocate a tensor of whatever shape the model emits
	outputs := []ort.ArbitraryTensor{nil}
	if err := inf.session.Run([]ort.ArbitraryTensor{inputTensor}, outputs); err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return 0, fmt.Errorf("inference failed: unexpected output type %T", outputs[0])
	}
	out := outputTensor.GetData()
	if len(out) == 0 {
		return 0, fmt.Errorf("inference failed: empty output")
	}

	return out[0], nil
}

// Fingerprint returns the hex SHA-256 of the model file.
func (inf *Inference) Fingerprint() string {
	return inf.fingerprint
}

// Close releases the ONNX session resources
func (inf *Inference) Close() error {
	inf.mu.Lock()
	defer inf.mu.Unlock()

	if inf.session != nil {
		err := inf.session.Destroy()
		inf.session = nil
		if err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
	}

	return ort.DestroyEnvironment()
}

// Ensure Inference implements Classifier at compile time
var _ Classifier = (*Inference)(nil)
