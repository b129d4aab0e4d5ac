// Command content-agent keeps a corpus of exam questions above a minimum
// population per exam by generating, deduplicating, and inserting new
// questions in a continuous loop.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gyapak/content-agent/internal/config"
	"github.com/gyapak/content-agent/internal/storage/sqlite"
)

var (
	configPath string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "content-agent",
	Short: "Exam question gap-filling agent",
	Long: `content-agent monitors exam question counts and generates new
questions for under-populated exams using an LLM, filtering exact and
fuzzy duplicates before inserting.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; a missing file is not an error.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file (optional)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statsCmd)
}

// openStore opens the configured SQLite store with a pool sized for every
// concurrent worker plus the scheduler's own scan query.
func openStore() (*sqlite.SQLiteStore, error) {
	return sqlite.New(sqlite.Config{
		Path:         cfg.DBPath,
		MaxOpenConns: cfg.MaxParallelGroups + 1,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
