package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Report exams below the population threshold",
	Long: `Run one gap scan and print the exams whose question count is below
the configured threshold, most starved first. Read-only; nothing is
generated or inserted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer store.Close()

		gaps, err := store.GapsBelow(context.Background(), cfg.GapThreshold)
		if err != nil {
			return err
		}

		if len(gaps) == 0 {
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s all exams at or above threshold %d\n", green("✓"), cfg.GapThreshold)
			return nil
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%d exam(s) below threshold %d:\n", len(gaps), cfg.GapThreshold)
		for _, g := range gaps {
			fmt.Printf("  %s %-30s %6d / %d (missing %d)\n",
				yellow("•"), g.ExamSlug, g.Count, cfg.GapThreshold, cfg.GapThreshold-g.Count)
		}
		return nil
	},
}
