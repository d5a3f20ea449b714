package main

import (
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe every configured provider and report overall status",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := buildService(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer cleanup()

		return printJSON(svc.HealthCheck(cmdContext(cmd)))
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
