package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gyapak/content-agent/internal/dedupe"
	"github.com/gyapak/content-agent/internal/engine"
	"github.com/gyapak/content-agent/internal/generator"
	"github.com/gyapak/content-agent/internal/hydrate"
	"github.com/gyapak/content-agent/internal/worker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gap-filling loop",
	Long: `Start the agent's continuous loop:

1. Scan for exams below the population threshold (most starved first)
2. For each, generate candidate questions from a sampled seed
3. Filter exact and fuzzy duplicates within the seed's topic and exam
4. Hydrate survivors and bulk-insert them
5. Sleep according to the round's outcome, then rescan

Runs until interrupted. The first Ctrl+C drains in-flight work gracefully;
a second one aborts immediately.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer store.Close()

		gen, err := generator.NewAnthropic(generator.Config{
			APIKey:            cfg.AnthropicAPIKey,
			Model:             cfg.Model,
			RequestsPerSecond: cfg.ProviderRPS,
		})
		if err != nil {
			return fmt.Errorf("creating generator: %w", err)
		}

		filter, err := dedupe.NewFilter(store, cfg.FuzzyThreshold)
		if err != nil {
			return fmt.Errorf("creating duplicate filter: %w", err)
		}

		hyd := hydrate.New(cfg.DefaultStatus, cfg.DefaultRevision)

		w, err := worker.New(store, gen, filter, hyd, worker.Config{
			BatchSize:      cfg.BatchSize,
			SeedSampleSize: cfg.SeedSampleSize,
			BatchDelay:     cfg.BatchDelay,
		})
		if err != nil {
			return fmt.Errorf("creating worker: %w", err)
		}

		eng, err := engine.New(store, w, engine.Config{
			Threshold:         cfg.GapThreshold,
			MaxParallelGroups: cfg.MaxParallelGroups,
			DrainTimeout:      cfg.DrainTimeout,
			Backoff: engine.BackoffConfig{
				RoundDelay: cfg.RoundDelay,
				IdleDelay:  cfg.IdleDelay,
				RetryDelay: cfg.RetryDelay,
				QuotaMin:   cfg.QuotaBackoffMin,
				QuotaMax:   cfg.QuotaBackoffMax,
			},
		})
		if err != nil {
			return fmt.Errorf("creating engine: %w", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %s\n", green("✓"), cfg)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			fmt.Fprintf(os.Stderr, "\nshutdown requested, draining in-flight work (Ctrl+C again to abort)\n")
			go eng.Stop()
			<-sigCh
			fmt.Fprintf(os.Stderr, "aborting\n")
			cancel()
		}()

		eng.Run(ctx)
		return nil
	},
}
