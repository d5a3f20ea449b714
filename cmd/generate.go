package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/regsuite/attrgen/internal/llm"
)

var (
	generatePrompt   string
	generateSystem   string
	generateProvider string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run a single generation request through retry and failover",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cleanup, err := buildService(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := svc.Generate(cmd.Context(), llm.GenerationRequest{
			Prompt:            generatePrompt,
			SystemPrompt:      generateSystem,
			PreferredProvider: generateProvider,
		})
		if err != nil {
			return err
		}

		return printJSON(result)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// cmdContext is a seam for commands that need a cancellable root context.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	generateCmd.Flags().StringVar(&generatePrompt, "prompt", "", "prompt text (required)")
	generateCmd.Flags().StringVar(&generateSystem, "system", "", "system prompt")
	generateCmd.Flags().StringVar(&generateProvider, "provider", "", "preferred provider")
	_ = generateCmd.MarkFlagRequired("prompt")
	rootCmd.AddCommand(generateCmd)
}
