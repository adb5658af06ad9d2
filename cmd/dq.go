package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
)

var (
	dqDate  string
	dqStart string
	dqEnd   string
)

var dqCmd = &cobra.Command{
	Use:   "dq",
	Short: "Run data quality rules against canonical observations",
	Long:  "Evaluates the rule battery for a single date (--date) or an inclusive range (--start/--end). Every rule result is reported; an ERROR does not stop the remaining rules.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		var start, end string
		switch {
		case dqDate != "":
			start, end = dqDate, dqDate
		case dqStart != "" && dqEnd != "":
			start, end = dqStart, dqEnd
		default:
			return eris.New("either --date or both --start and --end are required")
		}

		startDay, err := model.ParseDay(start)
		if err != nil {
			return eris.Wrap(err, "parse start date")
		}
		endDay, err := model.ParseDay(end)
		if err != nil {
			return eris.Wrap(err, "parse end date")
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		results, err := env.DQ.RunRules(ctx, startDay, endDay)
		if err != nil {
			return eris.Wrap(err, "run dq rules")
		}

		formatDQResults(os.Stdout, results)
		return nil
	},
}

func formatDQResults(w io.Writer, results []model.DQRuleResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tDATE\tSTATUS\tMESSAGE")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			r.RuleID, model.FormatDay(r.TargetDate), r.Status, r.Message,
		)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	dqCmd.Flags().StringVar(&dqDate, "date", "", "single target date, yyyy-mm-dd")
	dqCmd.Flags().StringVar(&dqStart, "start", "", "range start, yyyy-mm-dd")
	dqCmd.Flags().StringVar(&dqEnd, "end", "", "range end, yyyy-mm-dd")
	rootCmd.AddCommand(dqCmd)
}
