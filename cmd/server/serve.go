// cmd/server/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/SyedDaiam9101/ripeness-service/internal/config"
	"github.com/SyedDaiam9101/ripeness-service/internal/handler"
	"github.com/SyedDaiam9101/ripeness-service/internal/metrics"
	"github.com/SyedDaiam9101/ripeness-service/internal/middleware"
	"github.com/SyedDaiam9101/ripeness-service/internal/storage"
)

// drainDelay gives load balancers time to see NOT_SERVING before listeners close.
const drainDelay = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long:  "Start the upload form, the JSON prediction API, metrics and the gRPC health service.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.Int("port", 0, "HTTP server port (default: 5000)")
	f.Int("grpc-port", 0, "gRPC health server port, 0 disables it (default: 50051)")
	f.String("redis", "", "Redis address for the score cache (disabled when empty)")
	f.String("uploads-dir", "", "Directory for stored uploads (default: uploads)")
	f.Bool("release", false, "Run gin in release mode")

	bindFlag(f.Lookup("port"), "port")
	bindFlag(f.Lookup("grpc-port"), "grpc_port")
	bindFlag(f.Lookup("redis"), "redis")
	bindFlag(f.Lookup("uploads-dir"), "uploads_dir")
	bindFlag(f.Lookup("release"), "release")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	log.Infof("Starting %s...", serviceName)
	if used := v.ConfigFileUsed(); used != "" {
		log.WithField("file", used).Info("Using config file")
	}
	log.WithFields(logrus.Fields{
		"port":      cfg.Port,
		"grpc_port": cfg.GRPCPort,
		"model":     cfg.Model,
		"redis":     cfg.Redis,
		"threshold": cfg.Threshold,
		"otel":      cfg.OTELEnabled,
	}).Info("Configuration loaded")

	// Initialize OpenTelemetry tracer
	var tracerShutdown func(context.Context) error
	if cfg.OTELEnabled {
		tracerShutdown, err = initTracer(cfg.OTELEndpoint, log)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize tracer")
		} else {
			log.WithField("endpoint", cfg.OTELEndpoint).Info("OpenTelemetry tracing enabled")
		}
	}

	uploads := storage.NewUploads(cfg.UploadsDir)
	if err := uploads.EnsureDir(); err != nil {
		return fmt.Errorf("failed to prepare uploads dir: %w", err)
	}

	healthServer := health.NewServer()
	setServing(healthServer, healthpb.HealthCheckResponse_NOT_SERVING)

	a, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		metrics.SetUnhealthy()
		log.WithError(err).Fatal("Failed to load model")
	}
	defer a.Close()

	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.New(a.pipeline, uploads, healthServer, handler.Options{
		RetainUploads:  cfg.RetainUploads,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         log,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler.NewRouter(h, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var grpcServer *grpc.Server
	if cfg.GRPCPort > 0 {
		grpcServer, err = startGRPCServer(cfg, healthServer, log)
		if err != nil {
			return err
		}
	}

	setServing(healthServer, healthpb.HealthCheckResponse_SERVING)
	metrics.SetHealthy()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer close(done)
		sig := <-sigChan
		log.WithField("signal", sig.String()).Info("Shutting down gracefully...")

		setServing(healthServer, healthpb.HealthCheckResponse_NOT_SERVING)
		metrics.SetUnhealthy()
		time.Sleep(drainDelay)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("HTTP server shutdown")
		}
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		if tracerShutdown != nil {
			if err := tracerShutdown(ctx); err != nil {
				log.WithError(err).Warn("Tracer shutdown")
			}
		}
	}()

	log.WithField("addr", httpServer.Addr).Infof("%s is ready to accept requests", serviceName)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}

	<-done
	log.Info("Server shutdown complete")
	return nil
}

func setServing(hs *health.Server, status healthpb.HealthCheckResponse_ServingStatus) {
	hs.SetServingStatus(serviceName, status)
	hs.SetServingStatus("", status) // Overall health
}

// startGRPCServer serves the standard health service so orchestrators can
// probe the process without HTTP.
func startGRPCServer(cfg *config.Config, hs *health.Server, log logrus.FieldLogger) (*grpc.Server, error) {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			middleware.UnaryRequestIDInterceptor(),
			middleware.UnaryMetricsInterceptor(),
		),
	}
	if cfg.OTELEnabled {
		opts = append(opts, grpc.StatsHandler(otelgrpc.NewServerHandler()))
	}

	grpcServer := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(grpcServer, hs)

	// Enable server reflection for debugging
	reflection.Register(grpcServer)

	addr := fmt.Sprintf(":%d", cfg.GRPCPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	go func() {
		log.WithField("addr", addr).Info("gRPC health server listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.WithError(err).Error("gRPC server error")
		}
	}()

	return grpcServer, nil
}
