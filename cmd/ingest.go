package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
)

var ingestProvider string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run daily ingestion",
	Long:  "Fetches the latest observations from every registered provider, or a single one with --provider. The process exit code reflects the run: 0 success, 2 anomaly, 3 fatal.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var summaries []model.RunSummary
		if ingestProvider != "" {
			sum, err := env.Orchestrator.RunProvider(ctx, ingestProvider)
			if err != nil {
				return eris.Wrap(err, "daily run")
			}
			summaries = []model.RunSummary{sum}
		} else {
			summaries = env.Orchestrator.Daily(ctx)
		}

		for _, sum := range summaries {
			if code := sum.Status.ExitCode(); code > exitCode {
				exitCode = code
			}
			zap.L().Info("run finished",
				zap.String("provider", sum.Provider),
				zap.String("run_id", sum.RunID),
				zap.String("status", string(sum.Status)),
				zap.Int("rows_inserted", sum.RowsInserted),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestProvider, "provider", "", "run a single provider instead of all")
	rootCmd.AddCommand(ingestCmd)
}
