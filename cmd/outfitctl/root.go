package main

import (
	"os"

	"outfitapi/logger"
	"outfitapi/services"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var apiURL string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outfitctl",
		Short: "Command line client for the outfit generation API",
		Long: `outfitctl sends wardrobe items and styling preferences to a running outfit API
and prints the three generated variations (Minimal, Street, Elevated).

It applies the same request guard as the web client: one request at a time and a
short cool-down between attempts.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			log.Logger = logger.New(services.GetEnv("ENV", "local"))
			if apiURL == "" {
				apiURL = services.GetEnv("OUTFIT_API_URL", "http://localhost:8083")
			}
		},
	}
	cmd.SetOut(os.Stdout)

	cmd.PersistentFlags().StringVar(&apiURL, "api", "", "Base URL of the outfit API (default $OUTFIT_API_URL or http://localhost:8083)")

	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newImagesCmd())

	return cmd
}
