// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// chdir keeps config.yaml and .env lookups away from the package directory.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(prev) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 5000 {
		t.Errorf("Expected port 5000, got %d", cfg.Port)
	}
	if cfg.Model != "almond_ripeness_model.onnx" {
		t.Errorf("Expected default model path, got %s", cfg.Model)
	}
	if cfg.Threshold != 0.5 {
		t.Errorf("Expected threshold 0.5, got %v", cfg.Threshold)
	}
	if cfg.UploadsDir != "uploads" {
		t.Errorf("Expected uploads dir 'uploads', got %s", cfg.UploadsDir)
	}
	if cfg.CacheTTL != 24*time.Hour {
		t.Errorf("Expected cache ttl 24h, got %v", cfg.CacheTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got: %v", err)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("RIPENESS_PORT", "8081")
	t.Setenv("RIPENESS_THRESHOLD", "0.7")
	t.Setenv("RIPENESS_CACHE_TTL", "90s")

	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 8081 {
		t.Errorf("Expected port 8081, got %d", cfg.Port)
	}
	if cfg.Threshold != 0.7 {
		t.Errorf("Expected threshold 0.7, got %v", cfg.Threshold)
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("Expected cache ttl 90s, got %v", cfg.CacheTTL)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "ripeness.yaml")
	content := "model: models/almond.onnx\nchannel_order: rgb\nretain_uploads: false\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Model != "models/almond.onnx" {
		t.Errorf("Expected model from file, got %s", cfg.Model)
	}
	if cfg.ChannelOrder != "rgb" {
		t.Errorf("Expected channel order rgb, got %s", cfg.ChannelOrder)
	}
	if cfg.RetainUploads {
		t.Error("Expected retain_uploads=false from file")
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	chdir(t, t.TempDir())

	if _, err := Load(New(), "does-not-exist.yaml"); err == nil {
		t.Fatal("Expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:           5000,
			GRPCPort:       50051,
			Model:          "model.onnx",
			Threshold:      0.5,
			MockScore:      0.91,
			ChannelOrder:   "bgr",
			Interpolation:  "bilinear",
			UploadsDir:     "uploads",
			MaxUploadBytes: 1 << 20,
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Expected valid config, got: %v", err)
	}

	cases := map[string]func(c *Config){
		"bad port":        func(c *Config) { c.Port = 0 },
		"same ports":      func(c *Config) { c.GRPCPort = c.Port },
		"no model":        func(c *Config) { c.Model = "" },
		"threshold":       func(c *Config) { c.Threshold = 1.5 },
		"channel order":   func(c *Config) { c.ChannelOrder = "hsv" },
		"interpolation":   func(c *Config) { c.Interpolation = "cubic-spline" },
		"uploads dir":     func(c *Config) { c.UploadsDir = "" },
		"max upload size": func(c *Config) { c.MaxUploadBytes = 0 },
	}
	for name, mutate := range cases {
		c := valid()
		mutate(c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected validation error, got nil", name)
		}
	}

	c := valid()
	c.Model = ""
	c.UseMock = true
	if err := c.Validate(); err != nil {
		t.Errorf("Expected empty model to be allowed with mock, got: %v", err)
	}

	c = valid()
	c.GRPCPort = 0
	if err := c.Validate(); err != nil {
		t.Errorf("Expected grpc_port 0 to disable gRPC, got: %v", err)
	}
}
