package main

import (
	"encoding/json"
	"fmt"

	"github.com/Veraticus/food-classifier/internal/cli"
	"github.com/spf13/cobra"
)

type exampleEntry struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

func examplesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "examples",
		Short: "List the example images",
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			catalog, _, err := loadExamples()
			if err != nil {
				return err
			}

			if !asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderExamples(catalog))
				return nil
			}

			entries := make([]exampleEntry, 0, len(catalog.Examples))
			for _, ex := range catalog.Examples {
				entries = append(entries, exampleEntry{Name: ex.Name, URL: ex.URL, Description: catalog.Description(ex.Name)})
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		},
	}

	cmd.Flags().Bool("json", false, "print the examples as JSON")
	return cmd
}
