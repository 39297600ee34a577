package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"craskill/internal/config"
	"craskill/internal/pipeline"
)

var (
	maxPages       int
	resume         bool
	retryFailed    bool
	force          bool
	forceExtract   bool
	enhanceSkill   bool
	minOutputChars int
)

var runCmd = &cobra.Command{
	Use:   "run <pdf-path>",
	Short: "Run the full pipeline against a PDF, producing a Skill directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pdfPath := args[0]

		selfExe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve self executable for worker re-exec: %w", err)
		}

		orch, err := pipeline.New(cacheDir)
		if err != nil {
			return fmt.Errorf("initialize cache: %w", err)
		}

		opts := pipeline.Options{
			PDFPath:        pdfPath,
			OutputDir:      outputDir,
			Provider:       config.ProviderConfig{Engine: engine, Model: model},
			Workers:        workers,
			Resume:         resume,
			RetryFailed:    retryFailed,
			Force:          force,
			ForceExtract:   forceExtract,
			MaxPages:       maxPages,
			MinOutputChars: minOutputChars,
			EnhanceSkill:   enhanceSkill,
			SelfExe:        selfExe,
		}

		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		summary, err := orch.Run(ctx, opts)
		if err != nil {
			if summary != nil {
				fmt.Fprintf(os.Stderr, "pipeline failed after stage %q: %v\n", lastStage(summary), err)
			}
			return err
		}

		fmt.Printf("Skill directory written to %s\n", summary.OutputDir)
		return nil
	},
}

func lastStage(s *pipeline.Summary) string {
	if len(s.Stages) == 0 {
		return "(none)"
	}
	return s.Stages[len(s.Stages)-1].Stage
}

func init() {
	runCmd.Flags().IntVar(&maxPages, "max-pages", 0, "cap the number of pages extracted (0 = no cap)")
	runCmd.Flags().BoolVar(&resume, "resume", false, "resume Stage 4 from existing partial progress")
	runCmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "re-dispatch chunks that previously failed")
	runCmd.Flags().BoolVar(&force, "force", false, "bypass every stage's cache")
	runCmd.Flags().BoolVar(&forceExtract, "force-extract", false, "bypass only the Stage 1 cache")
	runCmd.Flags().BoolVar(&enhanceSkill, "enhance-skill", true, "run Stage 6 (skill quality enhancement)")
	runCmd.Flags().IntVar(&minOutputChars, "min-output-chars", 50, "minimum enhanced-chunk length to count as valid")
}
