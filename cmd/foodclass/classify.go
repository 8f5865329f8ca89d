package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/food-classifier/internal/cli"
	"github.com/Veraticus/food-classifier/internal/common"
	"github.com/Veraticus/food-classifier/internal/config"
	"github.com/Veraticus/food-classifier/internal/model"
	"github.com/spf13/cobra"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a single image",
		Long: `Classify one image and print the predicted dish with its confidence.

The image is either a local JPEG or PNG file or one of the named example images.`,
		Example: `  foodclass classify --file lunch.jpg
  foodclass classify --example Buuz --json`,
		RunE: runClassify,
	}

	cmd.Flags().StringP("file", "f", "", "JPEG or PNG file to classify")
	cmd.Flags().StringP("example", "e", "", "name of an example image to classify")
	cmd.Flags().Bool("json", false, "print the prediction as JSON")
	cmd.MarkFlagsMutuallyExclusive("file", "example")
	cmd.MarkFlagsOneRequired("file", "example")

	return cmd
}

func runClassify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	file, _ := cmd.Flags().GetString("file")
	example, _ := cmd.Flags().GetString("example")
	asJSON, _ := cmd.Flags().GetBool("json")

	var sel model.Selection
	if file != "" {
		path := config.ExpandPath(file)
		data, err := os.ReadFile(path)
		if err != nil {
			return common.NewStageError(common.StageUpload, common.ErrInvalidImage, fmt.Errorf("failed to read %s: %w", path, err))
		}
		sel = model.Upload{Name: filepath.Base(path), Data: data}
	} else {
		sel = model.Example{Name: example}
	}

	a, err := loadApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	input, err := a.resolver.Resolve(ctx, sel)
	if err != nil {
		return err
	}

	result, err := a.predictor.Predict(ctx, input)
	if err != nil {
		return err
	}
	slog.Debug("Classified image", "source", result.Source, "label", result.Label, "confidence", result.Confidence)
	a.record(ctx, result)

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderPrediction(result))
	return nil
}
