// cmd/server/setup.go
package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/SyedDaiam9101/ripeness-service/internal/cache"
	"github.com/SyedDaiam9101/ripeness-service/internal/config"
	"github.com/SyedDaiam9101/ripeness-service/internal/inference"
	"github.com/SyedDaiam9101/ripeness-service/internal/metrics"
	"github.com/SyedDaiam9101/ripeness-service/internal/model"
	"github.com/SyedDaiam9101/ripeness-service/internal/pipeline"
	"github.com/SyedDaiam9101/ripeness-service/internal/preprocess"
)

// bindFlag makes a flag override the viper key only when it was set on the
// command line; defaults still come from config.SetDefaults.
func bindFlag(f *pflag.Flag, key string) {
	if f == nil {
		panic("unknown flag for key " + key)
	}
	if err := v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid log_format %q", cfg.LogFormat)
	}

	return log, nil
}

// app is everything a command needs to classify images.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	handle   *model.Handle
	cache    *cache.Cache
	pipeline *pipeline.Pipeline
}

func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.WithError(err).Warn("failed to close redis client")
		}
	}
	if err := a.handle.Close(); err != nil {
		a.log.WithError(err).Warn("failed to release model")
	}
}

// newHandle builds the model handle; every real load attempt is counted.
func newHandle(cfg *config.Config, log logrus.FieldLogger) *model.Handle {
	if cfg.UseMock {
		log.WithField("score", cfg.MockScore).Info("Using mock inference engine")
		metrics.RecordModelLoad(nil)
		return model.NewLoaded(inference.NewMockWithScore(float32(cfg.MockScore)))
	}

	onnx := model.ONNXLoader(inference.Options{
		InputName:         cfg.ModelInput,
		OutputName:        cfg.ModelOutput,
		SharedLibraryPath: cfg.ONNXLib,
	})
	return model.New(cfg.Model, func(ctx context.Context, path string) (inference.Classifier, error) {
		log.WithField("model", path).Info("Loading ONNX model")
		c, err := onnx(ctx, path)
		metrics.RecordModelLoad(err)
		return c, err
	})
}

// newApp loads the model eagerly so a broken model fails startup instead of the first request.
func newApp(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*app, error) {
	order, err := preprocess.ParseChannelOrder(cfg.ChannelOrder)
	if err != nil {
		return nil, err
	}
	interp, err := preprocess.ParseInterpolation(cfg.Interpolation)
	if err != nil {
		return nil, err
	}

	handle := newHandle(cfg, log)
	if err := handle.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	log.WithField("fingerprint", handle.Fingerprint()).Info("Model loaded successfully")

	a := &app{cfg: cfg, log: log, handle: handle}

	opts := []pipeline.Option{
		pipeline.WithThreshold(float32(cfg.Threshold)),
		pipeline.WithPreprocessor(&preprocess.Preprocessor{Interpolation: interp, Order: order}),
		pipeline.WithLogger(log),
	}

	// Redis is optional; the pipeline runs uncached when it is unreachable.
	if cfg.Redis != "" {
		log.WithField("addr", cfg.Redis).Info("Connecting to Redis")
		c, err := cache.New(ctx, cfg.Redis, cfg.CacheTTL)
		if err != nil {
			log.WithError(err).Warn("Failed to connect to Redis (continuing without cache)")
		} else {
			a.cache = c
			opts = append(opts, pipeline.WithCache(c))
			log.Info("Redis connected successfully")
		}
	}

	a.pipeline = pipeline.New(handle, opts...)
	return a, nil
}
