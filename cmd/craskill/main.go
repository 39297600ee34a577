// Package main implements the craskill CLI: a tax-guide-PDF-to-Skill-directory
// pipeline. Entry point and root command registration live here; the
// enhance-worker subcommand (cmd/craskill/worker.go) is the hidden re-exec
// target the Enhancement Engine (internal/enhance) spawns for Stage 4,
// following the teacher's cmd/nerd/main.go rootCmd + zap-init convention.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"craskill/internal/logging"
)

var (
	verbose   bool
	outputDir string
	cacheDir  string
	engine    string
	model     string
	workers   int
	timeout   time.Duration

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "craskill",
	Short: "craskill turns a CRA tax-guide PDF into a reference Skill directory",
	Long: `craskill runs a six-stage content-refinement pipeline over a CRA
tax-guide PDF: extraction, classification, chunking, LLM-based enhancement,
skill assembly, and skill-quality enhancement. The result is a self-contained
Skill directory suitable for retrieval by a downstream assistant.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", ".", "output directory for the Skill directory")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", ".craskill/cache", "content-addressed cache directory")
	rootCmd.PersistentFlags().StringVar(&engine, "engine", "", "provider engine (claude-cli, codex-cli, gemini, anthropic, glm)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "override the provider's default model")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 4, "Stage 4 worker process count (1-8)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "overall run timeout (0 = no cap)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(workerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
