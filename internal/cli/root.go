// Package cli implements the leafscan command line tool.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/cassava-api/internal/config"
	"github.com/Brownie44l1/cassava-api/internal/decision"
	"github.com/Brownie44l1/cassava-api/internal/logging"
	"github.com/Brownie44l1/cassava-api/internal/pipeline"
	"github.com/Brownie44l1/cassava-api/internal/store"
)

// Version is the application version.
const Version = "0.1.0"

const loadTimeout = 2 * time.Minute

var (
	// Scans is the history store shared by subcommands
	Scans store.Store
	cfg   *config.Config

	dbURL     string
	threshold float64
)

var rootCmd = &cobra.Command{
	Use:     "leafscan",
	Short:   "Cassava leaf disease classifier",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if threshold > 0 {
			if err := decision.CheckThreshold(threshold); err != nil {
				return fmt.Errorf("--threshold: %w", err)
			}
			cfg.ConfidenceThreshold = threshold
		}
		if err := logging.Setup(cfg.LogFile, cfg.Debug); err != nil {
			return err
		}

		// flag wins over STORE_DSN
		if dbURL == "" {
			dbURL = cfg.StoreDSN
		}
		Scans, err = store.Open(cmd.Context(), dbURL)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if Scans != nil {
			Scans.Close()
		}
		logging.Close()
	},
}

// Execute runs the root command, cancelling on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "Scan history store: memory, sqlite://<path> or postgres://... (default: $STORE_DSN)")
	rootCmd.PersistentFlags().Float64Var(&threshold, "threshold", 0, "Confidence threshold in [0.8, 1] (default: $CONFIDENCE_THRESHOLD or 0.8)")
}

// openQueue loads the model and waits until it is ready.
func openQueue(ctx context.Context) (*pipeline.Loader, *pipeline.Queue) {
	loader := pipeline.Load(pipeline.OpenModel(cfg.ModelOptions()), cfg.ConfidenceThreshold)

	waitCtx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	queue, err := loader.Wait(waitCtx)
	if err != nil {
		loader.Close()
		die("Failed to load model", err)
	}
	return loader, queue
}

// die prints a formatted error box and exits.
func die(context string, err error) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🚨 LEAFSCAN ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DETAILS: %v\n", err)
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
	if Scans != nil {
		Scans.Close()
	}
	os.Exit(1)
}
