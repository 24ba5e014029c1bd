package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"outfitapi/client"
	"outfitapi/models"

	"github.com/spf13/cobra"
)

func newImagesCmd() *cobra.Command {
	var (
		file  string
		name  string
		count int
	)

	cmd := &cobra.Command{
		Use:   "images",
		Short: "Find inspiration images for a generated variation",
		Long: `Reads a generation result (as printed by "outfitctl generate --json") from a file
or stdin and searches images for the chosen variation.`,
		Example: `  outfitctl generate --item "black leather jacket" --json > outfit.json
  outfitctl images --file outfit.json --variation Street --count 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var input io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				input = f
			}

			var result models.GenerationResult
			if err := json.NewDecoder(input).Decode(&result); err != nil {
				return fmt.Errorf("read generation result: %w", err)
			}

			var variation *models.OutfitVariation
			for i := range result.Variations {
				if string(result.Variations[i].Name) == name {
					variation = &result.Variations[i]
					break
				}
			}
			if variation == nil {
				return fmt.Errorf("variation %q not found in input", name)
			}

			controller := client.New(client.Options{BaseURL: apiURL})
			defer controller.Close()

			images, err := controller.SearchImages(cmd.Context(), *variation, count)
			if client.IsSilent(err) {
				return nil
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{"images": images})
		},
	}

	cmd.Flags().StringVar(&file, "file", "-", "Generation result JSON file, - for stdin")
	cmd.Flags().StringVar(&name, "variation", string(models.VariationMinimal), "Variation name: Minimal, Street or Elevated")
	cmd.Flags().IntVar(&count, "count", 3, "Number of images (1-10)")

	return cmd
}
