package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report provider capabilities",
	Long:  "Prints each provider's declared capabilities together with the earliest and latest successful run dates from the audit log.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		caps, err := env.Orchestrator.Probe(ctx)
		if err != nil {
			return eris.Wrap(err, "probe")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(caps)
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
