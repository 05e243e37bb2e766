package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/cassava-api/internal/handlers"
	"github.com/Brownie44l1/cassava-api/internal/logging"
	"github.com/Brownie44l1/cassava-api/internal/pipeline"
	"github.com/Brownie44l1/cassava-api/internal/telegram"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Run: func(cmd *cobra.Command, args []string) {
		runServe(cmd.Context(), servePort)
	},
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	Run: func(cmd *cobra.Command, args []string) {
		runBot(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Port to listen on (default: $PORT or 8080)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(botCmd)
}

func runServe(ctx context.Context, port string) {
	if port == "" {
		port = cfg.Port
	}

	// requests are accepted while the model loads
	loader := pipeline.Load(pipeline.OpenModel(cfg.ModelOptions()), cfg.ConfidenceThreshold)
	defer loader.Close()

	logging.Infof("Server starting on port %s", port)
	if err := handlers.Serve(ctx, ":"+port, handlers.NewHandler(loader, Scans)); err != nil {
		die("Server failed", err)
	}
}

func runBot(ctx context.Context) {
	if cfg.TelegramToken == "" {
		die("Cannot start bot", errors.New("TELEGRAM_TOKEN is not set"))
	}

	loader := pipeline.Load(pipeline.OpenModel(cfg.ModelOptions()), cfg.ConfidenceThreshold)
	defer loader.Close()

	bot, err := telegram.NewBot(cfg.TelegramToken, loader, Scans)
	if err != nil {
		die("Failed to start bot", fmt.Errorf("authorize: %w", err))
	}

	logging.Infof("Bot is running")
	if err := bot.Run(ctx); err != nil {
		die("Bot stopped", err)
	}
}
