// Package pipeline composes Stages A-I (internal/extract, internal/classify,
// internal/chunk, internal/enhance, internal/skill) into the end-to-end
// run, consulting the Cache Manager before each stage and writing a
// Summary manifest (run-summary.json) alongside the Skill Directory, grounded on the
// teacher's cmd/nerd orchestration of its own perception/understanding
// pipeline plus its system_results.go status-reporting helpers.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"craskill/internal/cache"
	"craskill/internal/chunk"
	"craskill/internal/classify"
	"craskill/internal/config"
	"craskill/internal/enhance"
	"craskill/internal/extract"
	"craskill/internal/fingerprint"
	"craskill/internal/logging"
	"craskill/internal/provider"
	"craskill/internal/skill"
)

// Options configures a single end-to-end run.
type Options struct {
	PDFPath      string
	OutputDir    string
	Provider     config.ProviderConfig
	Workers      int
	Resume       bool
	RetryFailed  bool
	Force        bool // bypass all stage caches
	ForceExtract bool // bypass only the Stage 1 cache
	MaxPages     int
	MinChunk     int
	PagesPerChunk int
	MinOutputChars int
	EnhanceSkill bool // whether Stage 6 should run at all
	SkillOptions skill.EnhancerOptions
	SelfExe      string // path to this binary, for Stage 4 worker re-exec
}

// Orchestrator runs the full pipeline against a single PDF.
type Orchestrator struct {
	Cache *cache.Manager
}

// New returns an Orchestrator backed by a cache.Manager rooted at cacheDir.
func New(cacheDir string) (*Orchestrator, error) {
	mgr, err := cache.New(cacheDir)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{Cache: mgr}, nil
}

// Run executes Stages 1 through 6 and returns the final Summary. A
// non-nil error means the pipeline failed; the summary is still returned
// (with the failing stage marked) so the caller can report partial status.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Summary, error) {
	log := logging.Get(logging.CategoryPipeline)
	summary := newSummary(opts.PDFPath)

	client, err := provider.New(opts.Provider)
	if err != nil {
		summary.fail("provider", err)
		return summary, fmt.Errorf("resolve provider: %w", err)
	}

	pdfBytes, err := os.ReadFile(opts.PDFPath)
	if err != nil {
		summary.fail("extract", err)
		return summary, fmt.Errorf("read pdf: %w", err)
	}
	fp := fingerprint.Of(pdfBytes)
	summary.Fingerprint = fp

	extRec, err := o.runExtract(summary, opts, fp)
	if err != nil {
		return summary, err
	}

	classRec, err := o.runClassify(ctx, summary, opts, fp, extRec, client)
	if err != nil {
		return summary, err
	}

	chunks, err := o.runChunk(summary, opts, fp, extRec)
	if err != nil {
		return summary, err
	}

	enhanced, err := o.runEnhance(ctx, summary, opts, fp, chunks, client)
	if err != nil {
		return summary, err
	}

	stem := pdfStem(opts.PDFPath)
	dir, err := o.runAssemble(summary, opts, extRec, chunks, enhanced, classRec, stem)
	if err != nil {
		return summary, err
	}
	summary.OutputDir = dir.Root

	if err := o.runSkillEnhance(ctx, summary, opts, dir, stem, client); err != nil {
		return summary, err
	}

	summary.finish()
	log.Info("pipeline completed for %s in %s", opts.PDFPath, summary.Duration)
	if err := summary.writeTo(filepath.Join(dir.Root, "run-summary.json")); err != nil {
		log.Warn("write run summary: %v", err)
	}
	return summary, nil
}

func (o *Orchestrator) runExtract(summary *Summary, opts Options, fp string) (*extract.Record, error) {
	stage := "extract"
	start := time.Now()

	if !opts.Force && !opts.ForceExtract {
		var rec extract.Record
		if ok, err := o.Cache.LookupJSON(cache.StageExtraction, fp, &rec); err == nil && ok {
			summary.cacheHit(stage, time.Since(start))
			return &rec, nil
		}
	}

	rec, err := extract.Extract(opts.PDFPath, opts.MaxPages)
	if err != nil {
		summary.fail(stage, err)
		return nil, fmt.Errorf("stage 1: %w", err)
	}
	if err := o.Cache.StoreJSON(cache.StageExtraction, fp, nil, rec); err != nil {
		summary.fail(stage, err)
		return nil, fmt.Errorf("stage 1: cache store: %w", err)
	}
	summary.ran(stage, time.Since(start))
	return rec, nil
}

func (o *Orchestrator) runClassify(ctx context.Context, summary *Summary, opts Options, fp string, extRec *extract.Record, client provider.Client) (*classify.Record, error) {
	stage := "classify"
	start := time.Now()

	if !opts.Force {
		var rec classify.Record
		if ok, err := o.Cache.LookupJSON(cache.StageClassification, fp, &rec); err == nil && ok {
			summary.cacheHit(stage, time.Since(start))
			return &rec, nil
		}
	}

	rec, err := classify.Classify(ctx, extRec, client)
	if err != nil {
		summary.fail(stage, err)
		return nil, fmt.Errorf("stage 2: %w", err)
	}
	if err := o.Cache.StoreJSON(cache.StageClassification, fp, nil, rec); err != nil {
		summary.fail(stage, err)
		return nil, fmt.Errorf("stage 2: cache store: %w", err)
	}
	summary.ran(stage, time.Since(start))
	return rec, nil
}

func (o *Orchestrator) runChunk(summary *Summary, opts Options, fp string, extRec *extract.Record) ([]chunk.Chunk, error) {
	stageName := "chunk"
	start := time.Now()

	if !opts.Force {
		var chunks []chunk.Chunk
		if ok, err := o.Cache.LookupJSON(cache.StageChunks, fp, &chunks); err == nil && ok {
			summary.cacheHit(stageName, time.Since(start))
			return chunks, nil
		}
	}

	minChunk := opts.MinChunk
	if minChunk <= 0 {
		minChunk = 500
	}
	pagesPerChunk := opts.PagesPerChunk
	if pagesPerChunk <= 0 {
		pagesPerChunk = 5
	}

	chunks := chunk.Chunk(extRec, minChunk, pagesPerChunk)
	if err := o.Cache.StoreJSON(cache.StageChunks, fp, nil, chunks); err != nil {
		summary.fail(stageName, err)
		return nil, fmt.Errorf("stage 3: cache store: %w", err)
	}
	summary.ran(stageName, time.Since(start))
	return chunks, nil
}

func (o *Orchestrator) runEnhance(ctx context.Context, summary *Summary, opts Options, fp string, chunks []chunk.Chunk, client provider.Client) ([]enhance.EnhancedChunk, error) {
	stage := "enhance"
	start := time.Now()

	engine := &enhance.Engine{SelfExe: opts.SelfExe, CacheDir: o.Cache.Dir()}
	minChars := opts.MinOutputChars
	if minChars <= 0 {
		minChars = 50
	}
	_, err := engine.Run(ctx, chunks, enhance.Options{
		Fingerprint:    fp,
		Workers:        opts.Workers,
		Resume:         opts.Resume,
		RetryFailed:    opts.RetryFailed,
		MinOutputChars: minChars,
		Provider:       opts.Provider,
		ProviderName:   client.ID(),
	})
	if err != nil {
		summary.fail(stage, err)
		return nil, fmt.Errorf("stage 4: %w", err)
	}

	enhanced, err := readEnhancedChunks(o.Cache.EnhancedChunksDir(fp), chunks)
	if err != nil {
		summary.fail(stage, err)
		return nil, fmt.Errorf("stage 4: read artifacts: %w", err)
	}
	summary.ran(stage, time.Since(start))
	return enhanced, nil
}

func (o *Orchestrator) runAssemble(summary *Summary, opts Options, extRec *extract.Record, chunks []chunk.Chunk, enhanced []enhance.EnhancedChunk, classRec *classify.Record, stem string) (skill.Directory, error) {
	stageName := "assemble"
	start := time.Now()

	dir, err := skill.Assemble(opts.OutputDir, stem, extRec.FullText, chunks, enhanced, classRec)
	if err != nil {
		summary.fail(stageName, err)
		return dir, fmt.Errorf("stage 5: %w", err)
	}
	summary.ran(stageName, time.Since(start))
	return dir, nil
}

// runSkillEnhance enforces spec.md §4.I's mandatory-ness rule: if a
// provider is configured and Stage 6 fails, the low-quality SKILL.md is
// removed and the pipeline fails overall. Skipping is only permitted when
// the caller explicitly opted out via opts.EnhanceSkill=false.
func (o *Orchestrator) runSkillEnhance(ctx context.Context, summary *Summary, opts Options, dir skill.Directory, stem string, client provider.Client) error {
	stageName := "skill-enhance"
	start := time.Now()

	if !opts.EnhanceSkill {
		summary.skip(stageName)
		return nil
	}

	_, err := skill.Enhance(ctx, dir, stem, client, opts.SkillOptions)
	if err != nil {
		if removeErr := os.Remove(dir.SkillMD); removeErr != nil && !os.IsNotExist(removeErr) {
			logging.Get(logging.CategoryPipeline).Warn("remove low-quality SKILL.md: %v", removeErr)
		}
		summary.fail(stageName, err)
		return fmt.Errorf("stage 6: %w", err)
	}
	summary.ran(stageName, time.Since(start))
	return nil
}

func readEnhancedChunks(dir string, chunks []chunk.Chunk) ([]enhance.EnhancedChunk, error) {
	result := make([]enhance.EnhancedChunk, 0, len(chunks))
	for _, c := range chunks {
		raw, err := os.ReadFile(enhance.ArtifactPath(dir, c.ID))
		if err != nil {
			return nil, fmt.Errorf("read enhanced artifact for chunk %d: %w", c.ID, err)
		}
		var art enhance.EnhancedChunk
		if err := json.Unmarshal(raw, &art); err != nil {
			return nil, fmt.Errorf("cache-mismatch: chunk %d: %w", c.ID, err)
		}
		result = append(result, art)
	}
	return result, nil
}

func pdfStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
