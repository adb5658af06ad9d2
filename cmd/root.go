package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/config"
)

var cfg *config.Config

// exitCode carries the run classification out of RunE handlers: 0 success,
// 2 anomaly, 3 fatal.
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "ratefeed",
	Short: "Vietnamese market rate ingestion engine",
	Long:  "Fetches bond, interbank, and bank deposit rates from heterogeneous providers, deduplicates raw observations, and resolves them into canonical per-day values.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}
