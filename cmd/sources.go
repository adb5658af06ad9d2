package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect and edit the source priority registry",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known sources and their priorities",
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

		sources, err := st.ListSources(ctx)
		if err != nil {
			return eris.Wrap(err, "list sources")
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tKIND\tPRIORITY\tURL")
		for _, s := range sources {
			prio := strconv.Itoa(s.Priority)
			if s.Priority == model.PriorityUnset {
				prio = "unset"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Kind, prio, s.URL)
		}
		tw.Flush() //nolint:errcheck
		return nil
	},
}

var sourcesSetPriorityCmd = &cobra.Command{
	Use:   "set-priority <source-id> <priority>",
	Short: "Change a source's canonicalization priority",
	Long:  "Lower priority wins. The change applies to every later canonicalization call; in-flight runs are unaffected.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrap(err, "parse source id")
		}
		priority, err := strconv.Atoi(args[1])
		if err != nil {
			return eris.Wrap(err, "parse priority")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := st.UpdateSourcePriority(ctx, id, priority); err != nil {
			return eris.Wrap(err, "update priority")
		}

		fmt.Printf("source %d priority set to %d\n", id, priority)
		return nil
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesSetPriorityCmd)
	rootCmd.AddCommand(sourcesCmd)
}
