// cmd/server/predict.go
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var predictJSON bool

var predictCmd = &cobra.Command{
	Use:   "predict <image>",
	Short: "Classify a single image",
	Long:  "Load the model, classify one image file and print its ripeness label.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPredict,
}

func init() {
	predictCmd.Flags().BoolVar(&predictJSON, "json", false, "Print the prediction as JSON")
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Keep stdout for the result; logs go to stderr.
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	log.SetOutput(cmd.ErrOrStderr())

	a, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	pred, err := a.pipeline.Predict(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("predict %s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	if predictJSON {
		return json.NewEncoder(out).Encode(pred)
	}
	_, err = fmt.Fprintf(out, "%s (p=%.4f)\n", pred.Label, pred.Probability)
	return err
}
