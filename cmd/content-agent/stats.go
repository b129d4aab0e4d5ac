package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-exam question counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer store.Close()

		counts, err := store.Counts(context.Background())
		if err != nil {
			return err
		}

		if len(counts) == 0 {
			fmt.Println("no questions stored")
			return nil
		}

		total := 0
		for _, c := range counts {
			fmt.Printf("  %-30s %6d\n", c.ExamSlug, c.Count)
			total += c.Count
		}
		fmt.Printf("  %-30s %6d\n", "TOTAL", total)
		return nil
	},
}
