package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"outfitapi/client"
	"outfitapi/languageutil"
	"outfitapi/models"

	"github.com/spf13/cobra"
)

func newGenerateCmd() *cobra.Command {
	var (
		items       []string
		preferences models.OutfitPreferences
		occasion    string
		fit         string
		weather     string
		budget      string
		imageCount  int
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate outfit variations for a set of wardrobe items",
		Example: `  outfitctl generate --item "black leather jacket" --item "white sneakers|https://example.com/sneakers.jpg"
  outfitctl generate --item "navy chinos" --occasion Work --vibe 20 --fit Slim --images 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			userItems, err := parseItems(items)
			if err != nil {
				return err
			}
			preferences.Occasion = models.Occasion(occasion)
			preferences.Fit = models.Fit(fit)
			preferences.Weather = models.Weather(weather)
			preferences.Budget = models.Budget(budget)

			controller := client.New(client.Options{BaseURL: apiURL})
			defer controller.Close()

			result, err := controller.Generate(cmd.Context(), userItems, preferences)
			if client.IsSilent(err) {
				return nil
			}
			if err != nil {
				return err
			}

			images := map[models.VariationName][]models.OutfitImage{}
			if imageCount > 0 {
				for _, variation := range result.Variations {
					found, err := controller.SearchImages(cmd.Context(), variation, imageCount)
					if client.IsSilent(err) {
						continue
					}
					if err != nil {
						return err
					}
					images[variation.Name] = found
				}
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"variations": result.Variations, "images": images})
			}
			printVariations(cmd.OutOrStdout(), result.Variations, images)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&items, "item", nil, `Wardrobe item as "description" or "description|imageUrl" (repeatable, required)`)
	cmd.Flags().StringVar(&occasion, "occasion", string(models.OccasionStreet), "Occasion: Street, Work, Gym, Date or Travel")
	cmd.Flags().IntVar(&preferences.Vibe, "vibe", 50, "Vibe from 0 (minimal) to 100 (bold)")
	cmd.Flags().StringVar(&fit, "fit", string(models.FitRegular), "Fit: Slim, Regular or Oversized")
	cmd.Flags().StringVar(&weather, "weather", string(models.WeatherWarm), "Weather: Warm, Cold or Rain")
	cmd.Flags().StringVar(&budget, "budget", string(models.BudgetMid), "Budget: $, $$ or $$$")
	cmd.Flags().IntVar(&imageCount, "images", 0, "Fetch this many inspiration images per variation (0 to skip)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON result")
	_ = cmd.MarkFlagRequired("item")

	return cmd
}

func parseItems(raw []string) ([]models.UserItem, error) {
	userItems := make([]models.UserItem, 0, len(raw))
	for i, entry := range raw {
		description, imageURL, _ := strings.Cut(entry, "|")
		description = strings.TrimSpace(description)
		if description == "" {
			return nil, fmt.Errorf("item %d has an empty description", i+1)
		}
		item := models.UserItem{ID: strconv.Itoa(i + 1), Description: description}
		if imageURL = strings.TrimSpace(imageURL); imageURL != "" {
			item.ImageURL = &imageURL
		}
		userItems = append(userItems, item)
	}
	return userItems, nil
}

func printVariations(w io.Writer, variations []models.OutfitVariation, images map[models.VariationName][]models.OutfitImage) {
	for _, variation := range variations {
		fmt.Fprintf(w, "== %s ==\n%s\n", variation.Name, variation.Suggestion)
		for _, item := range variation.Items {
			fmt.Fprintf(w, "  [%s] %s (%s, %s)\n", languageutil.Title(string(item.BodyZone)), item.Description, item.ItemType, item.Color)
			fmt.Fprintf(w, "      %s\n", item.WhyItMatches)
		}
		if len(variation.ColorPalette) > 0 {
			fmt.Fprintf(w, "  palette: %s\n", strings.Join(variation.ColorPalette, ", "))
		}
		for _, tip := range variation.StylingTips {
			fmt.Fprintf(w, "  tip: %s\n", tip)
		}
		for _, image := range images[variation.Name] {
			fmt.Fprintf(w, "  image: %s\n", image.URL)
		}
		fmt.Fprintln(w)
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
