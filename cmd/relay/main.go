package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/netocloud/slack-relay/internal/conf"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "relay",
		Short:         "Slack to LLM relay bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file
			if err := godotenv.Load(); err != nil {
				slog.Debug("no .env file found, using environment variables")
			}
		},
	}
	root.AddCommand(newServeCmd(), newCheckWarehouseCmd())
	return root
}

// loadConfig loads and validates configuration and installs the process logger
func loadConfig() (*conf.Config, *slog.Logger, error) {
	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := conf.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings() {
		logger.Warn(w, slog.String("component", "config"))
	}
	return cfg, logger, nil
}
