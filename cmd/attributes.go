package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/regsuite/attrgen/internal/orchestrator"
)

var (
	attrContext           string
	attrReportType        string
	attrRegulation        string
	attrSchedule          string
	attrDiscoveryProvider string
	attrDetailsProvider   string
	attrDeadline          time.Duration
)

var attributesCmd = &cobra.Command{
	Use:   "attributes",
	Short: "Run two-phase attribute generation (discovery then batched details)",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := buildService(cmd.Context(), cfg, true)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := cmdContext(cmd)
		if attrDeadline > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, attrDeadline)
			defer cancel()
		}

		result, err := svc.GenerateAttributesTwoPhase(ctx, orchestrator.TwoPhaseParams{
			RegulatoryContext: attrContext,
			ReportType:        attrReportType,
			Regulation:        attrRegulation,
			Schedule:          attrSchedule,
			DiscoveryProvider: attrDiscoveryProvider,
			DetailsProvider:   attrDetailsProvider,
		})
		if err != nil {
			return err
		}

		zap.L().Info("attribute generation complete",
			zap.String("run_id", result.RunID),
			zap.Int("discovered", result.DiscoveredCount),
			zap.Int("detailed", result.DetailedCount),
			zap.Int("batches", result.BatchesProcessed),
			zap.Float64("cost_usd", result.TotalCostUSD))

		return printJSON(result)
	},
}

func init() {
	attributesCmd.Flags().StringVar(&attrContext, "context", "", "regulatory context description (required)")
	attributesCmd.Flags().StringVar(&attrReportType, "report-type", "", "report type (required)")
	attributesCmd.Flags().StringVar(&attrRegulation, "regulation", "", "regulation, e.g. \"FR Y-14M\"")
	attributesCmd.Flags().StringVar(&attrSchedule, "schedule", "", "schedule, e.g. \"Schedule D.1\"")
	attributesCmd.Flags().StringVar(&attrDiscoveryProvider, "discovery-provider", "", "provider for the discovery call")
	attributesCmd.Flags().StringVar(&attrDetailsProvider, "details-provider", "", "provider for detail batches")
	attributesCmd.Flags().DurationVar(&attrDeadline, "deadline", 0, "overall deadline for the full pipeline (0 = none)")
	_ = attributesCmd.MarkFlagRequired("context")
	_ = attributesCmd.MarkFlagRequired("report-type")
	rootCmd.AddCommand(attributesCmd)
}
