// internal/inference/mock.go
package inference

import (
	"context"
	"fmt"
	"sync"
)

// MockClassifier is a mock implementation of Classifier for testing.
// It returns a deterministic score without requiring the ONNX shared library.
type MockClassifier struct {
	mu sync.Mutex

	// Score is the probability returned for every input
	Score float32
	// ShouldError if true, Classify will return an error
	ShouldError bool
	// ErrorMessage is the error message to return when ShouldError is true
	ErrorMessage string
	// CallCount tracks the number of times Classify was called
	CallCount int
	// LastShape is the shape passed to the most recent Classify call
	LastShape []int64
	// LastInput is the tensor passed to the most recent Classify call
	LastInput []float32
	// Closed reports whether Close was called
	Closed bool
}

// NewMock creates a new MockClassifier with default score 0.91
func NewMock() *MockClassifier {
	return NewMockWithScore(0.91)
}

// NewMockWithScore creates a MockClassifier with a custom score
func NewMockWithScore(score float32) *MockClassifier {
	return &MockClassifier{Score: score}
}

// Classify validates the tensor and returns Score.
func (m *MockClassifier) Classify(ctx context.Context, data []float32, shape []int64) (float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++

	if m.ShouldError {
		if m.ErrorMessage != "" {
			return 0, fmt.Errorf("%s", m.ErrorMessage)
		}
		return 0, fmt.Errorf("mock inference error")
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	expected := int64(1)
	for _, d := range shape {
		expected *= d
	}
	if len(shape) == 0 || int64(len(data)) != expected {
		return 0, fmt.Errorf("input has wrong size: got %d, expected %d for shape %v", len(data), expected, shape)
	}

	m.LastShape = append([]int64(nil), shape...)
	m.LastInput = data

	return m.Score, nil
}

// Calls returns CallCount under the lock.
func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// Fingerprint identifies the mock as a model of its own
func (m *MockClassifier) Fingerprint() string {
	return "mock"
}

// Close marks the mock closed
func (m *MockClassifier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// SetError configures the mock to return an error on the next Classify call
func (m *MockClassifier) SetError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldError = true
	m.ErrorMessage = msg
}

// ClearError clears any configured error
func (m *MockClassifier) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldError = false
	m.ErrorMessage = ""
}

// Ensure MockClassifier implements Classifier at compile time
var _ Classifier = (*MockClassifier)(nil)
