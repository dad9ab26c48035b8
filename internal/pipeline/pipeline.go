// Package pipeline maps one uploaded image to a ripeness label.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/SyedDaiam9101/ripeness-service/internal/metrics"
	"github.com/SyedDaiam9101/ripeness-service/internal/middleware"
	"github.com/SyedDaiam9101/ripeness-service/internal/model"
	"github.com/SyedDaiam9101/ripeness-service/internal/preprocess"
)

const tracerName = "github.com/SyedDaiam9101/ripeness-service/internal/pipeline"

// Label is the binary classification outcome.
type Label string

const (
	Ripe   Label = "Ripe"
	Unripe Label = "Unripe"
)

// DefaultThreshold is the probability a score must exceed to count as Ripe.
const DefaultThreshold float32 = 0.5

// ErrInvalidScore is returned when the classifier output is not a probability.
var ErrInvalidScore = errors.New("classifier returned an invalid score")

// Decide returns Ripe only when p is strictly greater than threshold.
func Decide(p, threshold float32) Label {
	if p > threshold {
		return Ripe
	}
	return Unripe
}

// ScoreCache stores classifier scores by content key.
type ScoreCache interface {
	GetScore(ctx context.Context, key string) (float32, bool, error)
	SetScore(ctx context.Context, key string, score float32) error
}

// Prediction is the outcome of one pipeline run.
type Prediction struct {
	Label       Label   `json:"label"`
	Probability float32 `json:"probability"`
	Cached      bool    `json:"cached"`
}

// Pipeline runs decode → resize → normalize → batch → classify → decide.
type Pipeline struct {
	handle    *model.Handle
	prep      *preprocess.Preprocessor
	threshold float32
	cache     ScoreCache
	log       logrus.FieldLogger
	tracer    trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(t float32) Option {
	return func(p *Pipeline) { p.threshold = t }
}

// WithPreprocessor overrides the default bilinear/BGR preprocessor.
func WithPreprocessor(prep *preprocess.Preprocessor) Option {
	return func(p *Pipeline) { p.prep = prep }
}

// WithCache enables score caching. A nil cache leaves caching off.
func WithCache(c ScoreCache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithLogger sets the logger used for per-prediction logs.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New creates a pipeline bound to handle.
func New(handle *model.Handle, opts ...Option) *Pipeline {
	p := &Pipeline{
		handle:    handle,
		prep:      preprocess.New(),
		threshold: DefaultThreshold,
		log:       logrus.StandardLogger(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Threshold returns the decision threshold in use.
func (p *Pipeline) Threshold() float32 {
	return p.threshold
}

// Predict classifies the image stored at imagePath.
func (p *Pipeline) Predict(ctx context.Context, imagePath string) (*Prediction, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return p.PredictBytes(ctx, data)
}

// PredictBytes classifies an encoded image held in memory.
func (p *Pipeline) PredictBytes(ctx context.Context, data []byte) (*Prediction, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.Predict", trace.WithAttributes(
		attribute.Int("image.bytes", len(data)),
	))
	defer span.End()

	pred, err := p.predict(ctx, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("prediction.label", string(pred.Label)),
		attribute.Float64("prediction.probability", float64(pred.Probability)),
		attribute.Bool("prediction.cached", pred.Cached),
	)

	metrics.RecordPrediction(string(pred.Label))
	p.logger(ctx).WithFields(logrus.Fields{
		"label":       pred.Label,
		"probability": pred.Probability,
		"cached":      pred.Cached,
	}).Info("prediction complete")

	return pred, nil
}

func (p *Pipeline) predict(ctx context.Context, data []byte) (*Prediction, error) {
	// The classifier must be loaded before any inference runs
	classifier, err := p.handle.Classifier(ctx)
	if err != nil {
		return nil, err
	}

	key := ""
	if p.cache != nil {
		key = ScoreKey(classifier.Fingerprint(), data)
		score, ok, err := p.cache.GetScore(ctx, key)
		switch {
		case err != nil:
			p.logger(ctx).WithError(err).Warn("score cache lookup failed")
		case ok && validScore(score):
			metrics.RecordCacheLookup(true)
			return &Prediction{Label: Decide(score, p.threshold), Probability: score, Cached: true}, nil
		case ok:
			// A corrupt entry is recomputed and overwritten below.
			p.logger(ctx).WithField("score", score).Warn("ignoring invalid cached score")
			metrics.RecordCacheLookup(false)
		default:
			metrics.RecordCacheLookup(false)
		}
	}

	_, prepSpan := p.tracer.Start(ctx, "pipeline.Preprocess")
	prepStart := time.Now()
	tensor, err := p.prep.FromBytes(data)
	metrics.RecordPreprocessLatency(time.Since(prepStart).Seconds())
	prepSpan.End()
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	classifyCtx, classifySpan := p.tracer.Start(ctx, "pipeline.Classify")
	inferStart := time.Now()
	score, err := classifier.Classify(classifyCtx, tensor.Data, tensor.Shape)
	metrics.RecordInferenceLatency(time.Since(inferStart).Seconds())
	classifySpan.End()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	if !validScore(score) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScore, score)
	}

	if p.cache != nil {
		if err := p.cache.SetScore(ctx, key, score); err != nil {
			p.logger(ctx).WithError(err).Warn("score cache store failed")
		}
	}

	return &Prediction{Label: Decide(score, p.threshold), Probability: score}, nil
}

// validScore reports whether score is a probability in [0,1].
func validScore(score float32) bool {
	return !math.IsNaN(float64(score)) && score >= 0 && score <= 1
}

func (p *Pipeline) logger(ctx context.Context) logrus.FieldLogger {
	if id := middleware.GetRequestID(ctx); id != "" {
		return p.log.WithField("request_id", id)
	}
	return p.log
}

// ScoreKey identifies data under a given model; equal bytes and model give equal keys.
func ScoreKey(fingerprint string, data []byte) string {
	sum := sha256.Sum256(data)
	if len(fingerprint) > 16 {
		fingerprint = fingerprint[:16]
	}
	return fingerprint + ":" + hex.EncodeToString(sum[:])
}
