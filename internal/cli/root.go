// Package cli implements the advisor terminal client.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vehicle-advisor/internal/app"
	"vehicle-advisor/internal/config"
)

var (
	cfg     *config.Config
	verbose bool
	rootCmd = &cobra.Command{
		Use:   "advisor",
		Short: "Conversational bicycle and motorcycle recommendations",
		Long: `advisor narrows a vehicle catalog by asking one question at a time
until a single recommendation remains.

Start a conversation:
  advisor chat --class bicycle

Inspect the candidate pool:
  advisor catalog --class motorcycle`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(catalogCmd)
}

func initConfig() error {
	if err := godotenv.Load(); err != nil && verbose {
		fmt.Fprintln(os.Stderr, "no .env file found, using environment variables")
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	slog.SetDefault(app.NewLogger(os.Stderr, "text", level))

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return nil
}

func buildApp(ctx context.Context) (*app.App, error) {
	a, err := app.New(ctx, cfg, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("wire services: %w", err)
	}
	return a, nil
}
