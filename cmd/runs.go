package main

import (
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent generation runs from the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := buildService(cmd.Context(), cfg, true)
		if err != nil {
			return err
		}
		defer cleanup()

		runs, err := svc.Runs(cmdContext(cmd), runsLimit)
		if err != nil {
			return err
		}

		return printJSON(runs)
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}
