// Package enhance implements Stage 4, the hardest subsystem: parallel,
// resumable chunk enhancement using process-level parallelism. Workers are
// spawned as separate OS processes (the pipeline binary re-executing itself
// with a hidden `enhance-worker` subcommand), bounded by a weighted
// semaphore in the main process, grounded on the teacher's
// internal/tactile subprocess-spawning discipline composed with the
// semaphore-gated fan-out loop of the retrieved docgest example's
// internal/pipeline/worker.go.
package enhance

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"craskill/internal/chunk"
	"craskill/internal/config"
	"craskill/internal/logging"
)

// WorkerSubcommand is the hidden cmd/craskill subcommand name the engine
// re-execs itself with for each dispatched chunk.
const WorkerSubcommand = "enhance-worker"

// Engine runs Stage 4 against a set of chunks.
type Engine struct {
	SelfExe  string // path to this binary, for re-exec; os.Executable() result
	CacheDir string
}

// Options configures a single Stage 4 run.
type Options struct {
	Fingerprint    string
	Workers        int // clamped to [1, 8] per spec.md §4.G
	Resume         bool
	RetryFailed    bool
	MinOutputChars int
	Provider       config.ProviderConfig
	ProviderName   string
}

// Run dispatches the pending subset of chunks (per the resume/retry-failed
// decision tree) across Options.Workers OS-process workers, updates and
// persists the Enhancement Progress record after each worker returns, and
// returns the final progress. The stage succeeds iff every chunk ends
// Completed; Run returns an error otherwise, listing the failed ids.
func (e *Engine) Run(ctx context.Context, chunks []chunk.Chunk, opts Options) (*Progress, error) {
	log := logging.Get(logging.CategoryEnhance)
	dir := e.enhancedChunksDir(opts.Fingerprint)

	ids := make([]int, len(chunks))
	byID := make(map[int]chunk.Chunk, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		byID[c.ID] = c
	}

	progress, err := RebuildProgress(dir, len(chunks), opts.ProviderName)
	if err != nil {
		return nil, fmt.Errorf("rebuild progress: %w", err)
	}

	if AllDone(progress, ids) {
		log.Info("stage 4: all %d chunks already completed, skipping dispatch", len(ids))
		return progress, nil
	}

	pending, err := Pending(progress, ids, opts.Resume, opts.RetryFailed)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > 8 {
		workers = 8
	}
	sem := semaphore.NewWeighted(int64(workers))

	var mu sync.Mutex
	var wg sync.WaitGroup
	progressPath := filepath.Join(dir, "progress.json")

	for _, id := range pending {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled: let in-flight workers finish, dispatch no more.
			break
		}
		c := byID[id]
		wg.Add(1)
		go func(c chunk.Chunk) {
			defer wg.Done()
			defer sem.Release(1)

			start := time.Now()
			status, workerErr := e.dispatchWorker(ctx, dir, c, opts)
			duration := time.Since(start)

			mu.Lock()
			if workerErr == nil && status == Completed {
				progress.recordCompleted(c.ID, duration)
			} else {
				msg := "worker failed"
				if workerErr != nil {
					msg = workerErr.Error()
				}
				progress.recordFailed(c.ID, msg)
			}
			_ = Save(progressPath, progress)
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	// Resync from disk in case this process crashed mid-run on a prior
	// attempt; artifacts are always the source of truth.
	final, err := RebuildProgress(dir, len(chunks), opts.ProviderName)
	if err != nil {
		return nil, fmt.Errorf("rebuild progress after dispatch: %w", err)
	}
	final.StartTime = progress.StartTime
	final.AvgChunkMillis = progress.AvgChunkMillis
	_ = Save(progressPath, final)

	if len(final.Failed) > 0 {
		failedIDs := make([]int, 0, len(final.FailedIDs))
		for _, f := range final.FailedIDs {
			failedIDs = append(failedIDs, f.ChunkID)
		}
		return final, fmt.Errorf("stage 4: %d of %d chunks failed (ids %v); rerun with --retry-failed", len(final.Failed), len(chunks), failedIDs)
	}
	return final, nil
}

// enhancedChunksDir mirrors cache.Manager.EnhancedChunksDir without an
// import cycle (cache does not depend on enhance).
func (e *Engine) enhancedChunksDir(fingerprint string) string {
	return filepath.Join(e.CacheDir, fmt.Sprintf("enhanced_chunks_%s", fingerprint))
}

// dispatchWorker re-execs the pipeline binary as a worker process for a
// single chunk. The chunk itself is addressed by (cache dir, fingerprint,
// chunk id) rather than serialized onto the command line: the worker
// subprocess re-reads the Stage 3 cache artifact to find it, which keeps
// argv small and lets the worker reuse the same cache package the main
// process uses.
func (e *Engine) dispatchWorker(ctx context.Context, outputDir string, c chunk.Chunk, opts Options) (Status, error) {
	args := []string{
		WorkerSubcommand,
		"--cache-dir", e.CacheDir,
		"--fingerprint", opts.Fingerprint,
		"--chunk-id", strconv.Itoa(c.ID),
		"--output-dir", outputDir,
		"--provider", opts.ProviderName,
		"--min-output-chars", strconv.Itoa(opts.MinOutputChars),
	}
	if opts.Provider.Model != "" {
		args = append(args, "--model", opts.Provider.Model)
	}

	// Not bound to ctx: a cancelled run stops dispatching new chunks, but a
	// worker already started is left to finish its chunk.
	cmd := exec.Command(e.SelfExe, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// The worker writes its own failure artifact before exiting
		// non-zero (spec.md §4.G); re-read it for the authoritative status.
		if art, readErr := readArtifact(ArtifactPath(outputDir, c.ID)); readErr == nil {
			return art.Status, fmt.Errorf("%s", art.Error)
		}
		return Failed, fmt.Errorf("worker process: %w (stderr: %s)", err, stderr.String())
	}

	art, err := readArtifact(ArtifactPath(outputDir, c.ID))
	if err != nil {
		return Failed, fmt.Errorf("worker exited 0 but wrote no artifact: %w", err)
	}
	return art.Status, nil
}
