// Package model holds the load-once handle to the ripeness classifier.
package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/SyedDaiam9101/ripeness-service/internal/inference"
)

// ErrLoad wraps every failure to read or initialize the classifier.
var ErrLoad = errors.New("model load failed")

// Loader opens the classifier stored at path.
type Loader func(ctx context.Context, path string) (inference.Classifier, error)

// Handle owns the classifier for the lifetime of the process. The first call to
// EnsureLoaded loads it; every later call reuses the same classifier. A failed load
// is remembered and never retried.
type Handle struct {
	path   string
	loader Loader

	mu         sync.Mutex
	classifier inference.Classifier
	err        error
	loads      int
}

// New creates an unloaded handle for the model at path.
func New(path string, loader Loader) *Handle {
	return &Handle{path: path, loader: loader}
}

// NewLoaded wraps an already constructed classifier, e.g. a mock.
func NewLoaded(c inference.Classifier) *Handle {
	return &Handle{classifier: c, loads: 1}
}

// EnsureLoaded loads the classifier if it is not held yet.
func (h *Handle) EnsureLoaded(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.classifier != nil {
		return nil
	}
	if h.err != nil {
		return h.err
	}
	if h.loader == nil {
		h.err = fmt.Errorf("%w: no loader configured", ErrLoad)
		return h.err
	}

	h.loads++
	c, err := h.loader(ctx, h.path)
	if err == nil && c == nil {
		err = errors.New("loader returned no classifier")
	}
	if err != nil {
		h.err = fmt.Errorf("%w: %s: %v", ErrLoad, h.path, err)
		return h.err
	}

	h.classifier = c
	return nil
}

// Classifier returns the loaded classifier, loading it first if needed.
func (h *Handle) Classifier(ctx context.Context) (inference.Classifier, error) {
	if err := h.EnsureLoaded(ctx); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.classifier, nil
}

// Loaded reports whether a usable classifier is held.
func (h *Handle) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.classifier != nil
}

// Loads is the number of times the loader ran.
func (h *Handle) Loads() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loads
}

// Path is the on-disk location the classifier is read from.
func (h *Handle) Path() string {
	return h.path
}

// Fingerprint identifies the loaded weights, or "" before loading.
func (h *Handle) Fingerprint() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.classifier == nil {
		return ""
	}
	return h.classifier.Fingerprint()
}

// Close releases the classifier. The handle cannot be reloaded afterwards.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.classifier == nil {
		return nil
	}
	err := h.classifier.Close()
	h.classifier = nil
	h.err = fmt.Errorf("%w: handle closed", ErrLoad)
	return err
}

// ONNXLoader returns a Loader that opens the model with ONNX Runtime.
func ONNXLoader(opts inference.Options) Loader {
	return func(ctx context.Context, path string) (inference.Classifier, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := inference.New(path, opts)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}
