package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/ingest"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/provider"
)

var (
	backfillProvider string
	backfillStart    string
	backfillEnd      string
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Run a historical backfill for one provider",
	Long:  "Fetches a historical date range in per-day chunks. Providers without historical access are rejected before any run is created.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		start, err := model.ParseDay(backfillStart)
		if err != nil {
			return eris.Wrap(err, "parse --start")
		}
		end, err := model.ParseDay(backfillEnd)
		if err != nil {
			return eris.Wrap(err, "parse --end")
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := env.Orchestrator.Backfill(ctx, backfillProvider, start, end)
		if err != nil {
			var notSupported *provider.NotSupportedError
			var contention *ingest.LockContentionError
			switch {
			case errors.As(err, &notSupported), errors.As(err, &contention):
				fmt.Fprintln(os.Stderr, err.Error())
				exitCode = model.ExitFatal
				return nil
			}
			return eris.Wrap(err, "backfill")
		}

		exitCode = sum.Status.ExitCode()
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillProvider, "provider", "", "provider to backfill (required)")
	backfillCmd.Flags().StringVar(&backfillStart, "start", "", "start date, yyyy-mm-dd (required)")
	backfillCmd.Flags().StringVar(&backfillEnd, "end", "", "end date, yyyy-mm-dd (required)")
	_ = backfillCmd.MarkFlagRequired("provider")
	_ = backfillCmd.MarkFlagRequired("start")
	_ = backfillCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(backfillCmd)
}
