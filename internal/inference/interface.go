// internal/inference/interface.go
package inference

import "context"

// Classifier defines the interface for running single-image binary classification.
// This abstraction allows for easy mocking in tests and swapping implementations.
type Classifier interface {
	// Classify runs one batched image tensor and returns the ripeness probability.
	// data is the flattened tensor, shape its dimensions (batch, height, width, channels).
	Classify(ctx context.Context, data []float32, shape []int64) (float32, error)

	// Fingerprint identifies the loaded model weights.
	Fingerprint() string

	// Close releases any resources held by the classifier.
	Close() error
}
