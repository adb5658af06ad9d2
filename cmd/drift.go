package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Show drift signals per provider",
	Long:  "Lists response-shape fingerprints, change counts, and parse failure totals. A rising change count means the upstream markup or schema moved and the scraper may be stale.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		signals, err := st.ListDriftSignals(ctx)
		if err != nil {
			return eris.Wrap(err, "list drift signals")
		}

		if len(signals) == 0 {
			fmt.Fprintln(os.Stderr, "No drift signals recorded.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PROVIDER\tDATASET\tCHANGES\tAVG ROWS\tPARSE FAILURES\tLAST FETCH")
		for _, s := range signals {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f\t%d\t%s\n",
				s.Provider, s.Dataset, s.FingerprintChangeCount,
				s.AvgRowCount, s.ParseFailureCount,
				s.LastFetchedAt.Format("2006-01-02 15:04:05"),
			)
		}
		tw.Flush() //nolint:errcheck
		return nil
	},
}

func init() {
	rootCmd.AddCommand(driftCmd)
}
