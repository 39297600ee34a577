package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"craskill/internal/cache"
	"craskill/internal/config"
	"craskill/internal/enhance"
	"craskill/internal/provider"
)

var (
	workerCacheDir      string
	workerFingerprint   string
	workerChunkID       int
	workerOutputDir     string
	workerProviderName  string
	workerModel         string
	workerMinOutputChars int
)

// workerCmd is the hidden enhance-worker subcommand the Enhancement Engine
// (internal/enhance.Engine) re-execs this binary as, once per dispatched
// chunk, per spec.md §4.G's process-level-parallelism requirement. It always
// writes its own artifact (success or failure) before exiting, per §4.G's
// "worker wraps its entry point in a catch-all" rule, so the parent process
// can trust the artifact over the exit code.
var workerCmd = &cobra.Command{
	Use:    enhance.WorkerSubcommand,
	Short:  "internal: enhance a single chunk (invoked by the pipeline, not users)",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cacheMgr, err := cache.New(workerCacheDir)
		if err != nil {
			return fmt.Errorf("worker: open cache: %w", err)
		}

		c, err := enhance.LoadChunk(cacheMgr, workerFingerprint, workerChunkID)
		if err != nil {
			return fmt.Errorf("worker: load chunk %d: %w", workerChunkID, err)
		}

		client, err := provider.New(config.ProviderConfig{Engine: workerProviderName, Model: workerModel})
		if err != nil {
			return fmt.Errorf("worker: resolve provider %q: %w", workerProviderName, err)
		}

		_, err = enhance.RunOne(context.Background(), workerOutputDir, c, client, workerMinOutputChars)
		if err != nil {
			// The artifact is already written by RunOne; exit non-zero so the
			// parent treats this chunk as failed, per spec.md §4.G.
			return fmt.Errorf("worker: chunk %d: %w", workerChunkID, err)
		}
		return nil
	},
}

func init() {
	workerCmd.Flags().StringVar(&workerCacheDir, "cache-dir", "", "cache root directory")
	workerCmd.Flags().StringVar(&workerFingerprint, "fingerprint", "", "Stage-1 fingerprint of the source PDF")
	workerCmd.Flags().IntVar(&workerChunkID, "chunk-id", 0, "chunk id to enhance")
	workerCmd.Flags().StringVar(&workerOutputDir, "output-dir", "", "enhanced_chunks_<fingerprint> directory")
	workerCmd.Flags().StringVar(&workerProviderName, "provider", "", "provider engine name")
	workerCmd.Flags().StringVar(&workerModel, "model", "", "provider model override")
	workerCmd.Flags().IntVar(&workerMinOutputChars, "min-output-chars", 50, "minimum enhanced output length")
	workerCmd.MarkFlagRequired("cache-dir")
	workerCmd.MarkFlagRequired("fingerprint")
	workerCmd.MarkFlagRequired("chunk-id")
	workerCmd.MarkFlagRequired("output-dir")
}
