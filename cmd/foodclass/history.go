package main

import (
	"encoding/json"
	"fmt"

	"github.com/Veraticus/food-classifier/internal/cli"
	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent predictions",
		RunE:  runHistory,
	}

	cmd.Flags().IntP("limit", "n", 20, "number of predictions to show")
	cmd.Flags().Bool("json", false, "print the predictions as JSON")
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.ListPredictions(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list predictions: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	summary, err := store.LabelSummary(ctx)
	if err != nil {
		return fmt.Errorf("failed to summarize predictions: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderHistory(records, summary))
	return nil
}
