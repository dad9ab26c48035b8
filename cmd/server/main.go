// cmd/server/main.go
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/SyedDaiam9101/ripeness-service/internal/config"
)

const serviceName = "ripeness-service"

var (
	configFile string
	v          = config.New()
)

var rootCmd = &cobra.Command{
	Use:           serviceName,
	Short:         "Almond ripeness classification service",
	Long:          "Classify almond photos as Ripe or Unripe with an ONNX model, over HTTP or from the command line.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Path to config file (optional)")
	pf.String("model", "", "Path to ONNX model file (default: almond_ripeness_model.onnx)")
	pf.String("onnx-lib", "", "Path to the onnxruntime shared library")
	pf.Bool("mock", false, "Use mock inference engine (for testing)")
	pf.Float64("threshold", 0, "Probability a score must exceed to be Ripe (default: 0.5)")
	pf.String("channel-order", "", "Channel order fed to the model: bgr or rgb (default: bgr)")
	pf.String("log-level", "", "Log level: debug, info, warn, error (default: info)")
	pf.String("log-format", "", "Log format: text or json (default: text)")

	bindFlag(pf.Lookup("model"), "model")
	bindFlag(pf.Lookup("onnx-lib"), "onnx_lib")
	bindFlag(pf.Lookup("mock"), "use_mock")
	bindFlag(pf.Lookup("threshold"), "threshold")
	bindFlag(pf.Lookup("channel-order"), "channel_order")
	bindFlag(pf.Lookup("log-level"), "log_level")
	bindFlag(pf.Lookup("log-format"), "log_format")

	rootCmd.AddCommand(serveCmd, predictCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
