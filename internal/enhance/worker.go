package enhance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"craskill/internal/cache"
	"craskill/internal/chunk"
	"craskill/internal/logging"
	"craskill/internal/provider"
)

// ArtifactPath returns the per-chunk artifact path inside an
// enhanced_chunks_<fingerprint>/ directory, zero-padded to 3 digits per
// spec.md §6's wire format (chunk-NNN.json).
func ArtifactPath(dir string, chunkID int) string {
	return filepath.Join(dir, fmt.Sprintf("chunk-%03d.json", chunkID))
}

// RunOne is the work a single worker performs for one chunk: build the
// prompt, invoke the provider, validate the output, and write the resulting
// artifact atomically. It always writes an artifact — completed on success,
// failed on any error — mirroring spec.md §4.G's "worker wraps its entry
// point in a catch-all that writes a failure artifact before re-raising."
// This function is the body re-exec'd as an OS process by cmd/craskill's
// hidden enhance-worker subcommand; the Engine itself never calls it
// in-process, whatever the worker count. Tests call it directly.
func RunOne(ctx context.Context, outputDir string, c chunk.Chunk, client provider.Client, minOutputChars int) (*EnhancedChunk, error) {
	log := logging.Get(logging.CategoryEnhance)
	result := &EnhancedChunk{
		ChunkID:  c.ID,
		Title:    c.Title,
		Slug:     c.Slug,
		Provider: client.ID(),
	}

	content, err := invoke(ctx, client, c)
	result.Timestamp = time.Now().UTC()
	if err != nil {
		result.Status = Failed
		result.Error = err.Error()
		log.Warn("chunk %d failed: %v", c.ID, err)
	} else if valErr := ValidateOutput(content, minOutputChars); valErr != nil {
		result.Status = Failed
		result.Error = valErr.Error()
		log.Warn("chunk %d invalid output: %v", c.ID, valErr)
	} else {
		result.Status = Completed
		result.EnhancedContent = content
		result.TokenCount = len(content) / 4 // rough estimate, no tokenizer dependency
	}

	raw, marshalErr := json.MarshalIndent(result, "", "  ")
	if marshalErr != nil {
		return result, fmt.Errorf("marshal chunk %d artifact: %w", c.ID, marshalErr)
	}
	if writeErr := cache.WriteAtomic(ArtifactPath(outputDir, c.ID), raw); writeErr != nil {
		return result, fmt.Errorf("write chunk %d artifact: %w", c.ID, writeErr)
	}

	if result.Status == Failed {
		return result, errors.New(result.Error)
	}
	return result, nil
}

// LoadChunk re-reads the Stage 3 cache artifact for fingerprint and returns
// the chunk matching chunkID. Used by the enhance-worker subcommand so a
// freshly re-exec'd process can locate its assigned chunk without it having
// been serialized onto the command line.
func LoadChunk(cacheMgr *cache.Manager, fingerprint string, chunkID int) (chunk.Chunk, error) {
	var chunks []chunk.Chunk
	ok, err := cacheMgr.LookupJSON(cache.StageChunks, fingerprint, &chunks)
	if err != nil {
		return chunk.Chunk{}, fmt.Errorf("cache-mismatch: loading chunks for %s: %w", fingerprint, err)
	}
	if !ok {
		return chunk.Chunk{}, fmt.Errorf("no cached chunks for fingerprint %s", fingerprint)
	}
	for _, c := range chunks {
		if c.ID == chunkID {
			return c, nil
		}
	}
	return chunk.Chunk{}, fmt.Errorf("chunk %d not found in cached chunks for %s", chunkID, fingerprint)
}

// readArtifact loads a previously-written chunk artifact from disk.
func readArtifact(path string) (*EnhancedChunk, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var art EnhancedChunk
	if err := json.Unmarshal(raw, &art); err != nil {
		return nil, fmt.Errorf("cache-mismatch: %w", err)
	}
	return &art, nil
}

func invoke(ctx context.Context, client provider.Client, c chunk.Chunk) (string, error) {
	if !client.Available(ctx) {
		return "", &provider.Error{Kind: provider.Unavailable, Provider: client.ID(), Message: "provider not available"}
	}
	prompt := BuildPrompt(c)
	if len(prompt) > client.MaxChunkSize() {
		return "", &provider.Error{Kind: provider.InvalidResponse, Provider: client.ID(), Message: "chunk exceeds provider max chunk size"}
	}
	return client.Invoke(ctx, prompt)
}
