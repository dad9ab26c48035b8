// internal/inference/inference_test.go
package inference

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	ort "github.com/yalue/onnxruntime_go"
)

// Session inputs and outputs are passed as ArbitraryTensor; the float tensor must satisfy it.
var _ ort.ArbitraryTensor = (*ort.Tensor[float32])(nil)

var imageShape = []int64{1, 224, 224, 3}

func imageInput() []float32 {
	return make([]float32, 1*224*224*3)
}

func TestMockClassifier_Classify(t *testing.T) {
	mock := NewMock()

	score, err := mock.Classify(context.Background(), imageInput(), imageShape)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if score != 0.91 {
		t.Errorf("Expected score 0.91, got %f", score)
	}

	if mock.CallCount != 1 {
		t.Errorf("Expected CallCount=1, got %d", mock.CallCount)
	}

	if len(mock.LastShape) != 4 || mock.LastShape[1] != 224 || mock.LastShape[3] != 3 {
		t.Errorf("Unexpected recorded shape: %v", mock.LastShape)
	}
}

func TestMockClassifier_ClassifyError(t *testing.T) {
	mock := NewMock()
	mock.SetError("test error")

	_, err := mock.Classify(context.Background(), imageInput(), imageShape)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	if err.Error() != "test error" {
		t.Errorf("Expected 'test error', got '%s'", err.Error())
	}

	mock.ClearError()
	if _, err := mock.Classify(context.Background(), imageInput(), imageShape); err != nil {
		t.Errorf("Expected no error after ClearError, got %v", err)
	}
}

func TestMockClassifier_WrongInputSize(t *testing.T) {
	mock := NewMock()

	_, err := mock.Classify(context.Background(), []float32{0.1, 0.2}, imageShape)
	if err == nil {
		t.Fatal("Expected error for wrong input size")
	}
}

func TestMockClassifier_CanceledContext(t *testing.T) {
	mock := NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := mock.Classify(ctx, imageInput(), imageShape); err == nil {
		t.Fatal("Expected error for canceled context")
	}
}

func TestMockClassifier_CustomScore(t *testing.T) {
	mock := NewMockWithScore(0.25)

	score, err := mock.Classify(context.Background(), imageInput(), imageShape)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if score != 0.25 {
		t.Errorf("Expected score 0.25, got %f", score)
	}
	if mock.Fingerprint() != "mock" {
		t.Errorf("Expected mock fingerprint, got %s", mock.Fingerprint())
	}
}

func TestNew_MissingModel(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.onnx"), Options{})
	if err == nil {
		t.Fatal("Expected error for missing model file")
	}
}

func TestNew_EmptyModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.onnx")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("failed to write model: %v", err)
	}

	if _, err := New(path, Options{}); err == nil {
		t.Fatal("Expected error for empty model file")
	}
}

func TestRealInference_WithModel(t *testing.T) {
	// Skip if ONNX model or library is not available
	modelPath := "testdata/almond_ripeness_model.onnx"
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		t.Skip("Skipping real inference test: testdata/almond_ripeness_model.onnx not found")
	}

	// Try to create inference - will fail if ONNX library not installed
	infer, err := New(modelPath, Options{SharedLibraryPath: os.Getenv("RIPENESS_ONNX_LIB")})
	if err != nil {
		t.Skipf("Skipping real inference test: %v", err)
	}
	defer infer.Close()

	score, err := infer.Classify(context.Background(), imageInput(), imageShape)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if score < 0 || score > 1 {
		t.Errorf("Expected probability in [0,1], got %f", score)
	}

	if len(infer.Fingerprint()) != 64 {
		t.Errorf("Expected hex sha256 fingerprint, got %q", infer.Fingerprint())
	}
}
