// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. RIPENESS_PORT.
const EnvPrefix = "RIPENESS"

// Config holds all configuration for the service
type Config struct {
	// Server configuration
	Port     int  `mapstructure:"port"`
	GRPCPort int  `mapstructure:"grpc_port"`
	Release  bool `mapstructure:"release"`

	// Model configuration
	Model       string `mapstructure:"model"`
	ModelInput  string `mapstructure:"model_input"`
	ModelOutput string `mapstructure:"model_output"`
	ONNXLib     string `mapstructure:"onnx_lib"`

	// Pipeline configuration
	Threshold     float64 `mapstructure:"threshold"`
	ChannelOrder  string  `mapstructure:"channel_order"`
	Interpolation string  `mapstructure:"interpolation"`

	// Uploads
	UploadsDir     string `mapstructure:"uploads_dir"`
	RetainUploads  bool   `mapstructure:"retain_uploads"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`

	// Score cache
	Redis    string        `mapstructure:"redis"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// OpenTelemetry configuration
	OTELEnabled  bool   `mapstructure:"otel_enabled"`
	OTELEndpoint string `mapstructure:"otel_endpoint"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Feature flags
	UseMock   bool    `mapstructure:"use_mock"`
	MockScore float64 `mapstructure:"mock_score"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", 5000)
	v.SetDefault("grpc_port", 50051)
	v.SetDefault("release", false)
	v.SetDefault("model", "almond_ripeness_model.onnx")
	v.SetDefault("model_input", "input")
	v.SetDefault("model_output", "output")
	v.SetDefault("onnx_lib", "")
	v.SetDefault("threshold", 0.5)
	v.SetDefault("channel_order", "bgr")
	v.SetDefault("interpolation", "bilinear")
	v.SetDefault("uploads_dir", "uploads")
	v.SetDefault("retain_uploads", true)
	v.SetDefault("max_upload_bytes", int64(10<<20))
	v.SetDefault("redis", "")
	v.SetDefault("cache_ttl", 24*time.Hour)
	v.SetDefault("otel_enabled", false)
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("use_mock", false)
	v.SetDefault("mock_score", 0.91)
}

// New returns a viper instance with defaults, .env and environment bindings applied.
// Callers may bind flags onto it before calling Load.
func New() *viper.Viper {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)

	// Environment variable configuration
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Also read OTEL standard env vars
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		v.SetDefault("otel_endpoint", endpoint)
		v.SetDefault("otel_enabled", true)
	}

	return v
}

// Load reads the optional config file into v and unmarshals the result.
// Priority (highest to lowest): flags > env vars > config file > defaults.
// An empty configFile searches the default locations and ignores a missing file.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ripeness-service/")
		v.AddConfigPath("$HOME/.ripeness-service")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	// grpc_port 0 disables the gRPC health server
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.GRPCPort)
	}
	if c.Port == c.GRPCPort {
		return fmt.Errorf("port and grpc_port must be different")
	}
	if c.Model == "" && !c.UseMock {
		return fmt.Errorf("model path is required when not using mock inference")
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be within [0, 1], got %v", c.Threshold)
	}
	if c.MockScore < 0 || c.MockScore > 1 {
		return fmt.Errorf("mock_score must be within [0, 1], got %v", c.MockScore)
	}
	switch strings.ToLower(c.ChannelOrder) {
	case "bgr", "rgb":
	default:
		return fmt.Errorf("unknown channel_order %q", c.ChannelOrder)
	}
	switch strings.ToLower(c.Interpolation) {
	case "nearest", "bilinear", "bicubic", "lanczos3":
	default:
		return fmt.Errorf("unknown interpolation %q", c.Interpolation)
	}
	if c.UploadsDir == "" {
		return fmt.Errorf("uploads_dir must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	return nil
}
