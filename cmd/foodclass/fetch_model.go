package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/food-classifier/internal/cli"
	"github.com/Veraticus/food-classifier/internal/config"
	"github.com/Veraticus/food-classifier/internal/inference"
	"github.com/spf13/cobra"
)

func fetchModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch-model",
		Short: "Download the classifier model if it is not cached",
		Long: `Ensure the classifier model is present in the local cache.

The model is downloaded at most once; later runs find it on disk and return
immediately. Use --verify to also load it and check its label vocabulary.`,
		RunE: runFetchModel,
	}

	cmd.Flags().Bool("verify", false, "load the model after fetching it")
	return cmd
}

func runFetchModel(cmd *cobra.Command, _ []string) error {
	verify, _ := cmd.Flags().GetBool("verify")

	artifactCfg, err := config.LoadArtifactConfig()
	if err != nil {
		return fmt.Errorf("failed to load artifact config: %w", err)
	}

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := handler.HandleInterrupts(cmd.Context(), "Download")

	store := newArtifactStore(artifactCfg, cmd.ErrOrStderr())
	path, err := store.Ensure(ctx, artifactCfg.ID, artifactCfg.Path)
	if err != nil {
		if handler.WasInterrupted() {
			return nil
		}
		return err
	}

	if store.Fetches() == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("Model already cached at %s", path)))
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Model saved to %s", path)))
	}

	if !verify {
		return nil
	}

	m, err := inference.ONNXLoader(artifactCfg.LibraryPath, slog.Default())(path)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Model loads with %d labels", len(m.Vocabulary()))))
	return nil
}
