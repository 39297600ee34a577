package enhance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"craskill/internal/cache"
	"craskill/internal/logging"
)

var chunkArtifactName = regexp.MustCompile(`^chunk-(\d{3,})\.json$`)

// RebuildProgress scans dir (an enhanced_chunks_<fingerprint>/ directory)
// and reconstructs the Completed/Failed sets from the per-chunk artifact
// files on disk. Per spec.md §4.G, the artifact files are the source of
// truth; the progress.json file is a rebuildable cache of them.
func RebuildProgress(dir string, totalChunks int, providerID string) (*Progress, error) {
	p := &Progress{
		TotalChunks: totalChunks,
		Completed:   make(map[int]bool),
		Failed:      make(map[int]string),
		StartTime:   time.Now().UTC(),
		LastUpdate:  time.Now().UTC(),
		Provider:    providerID,
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, fmt.Errorf("rebuild progress: %w", err)
	}

	log := logging.Get(logging.CategoryEnhance)
	for _, e := range entries {
		m := chunkArtifactName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			log.Warn("rebuild progress: reading %s: %v", e.Name(), err)
			continue
		}
		var chunk EnhancedChunk
		if err := json.Unmarshal(raw, &chunk); err != nil {
			log.Warn("rebuild progress: cache-mismatch in %s: %v", e.Name(), err)
			continue
		}
		switch chunk.Status {
		case Completed:
			p.Completed[id] = true
		case Failed:
			p.Failed[id] = chunk.Error
		}
	}
	p.snapshot()
	return p, nil
}

// Pending returns the chunk ids from ids that still need dispatch under the
// resume/retryFailed decision tree in spec.md §4.G:
//   - resume=true: dispatch ids absent from both Completed and Failed.
//   - retryFailed=true: also (re-)dispatch ids present in Failed.
//   - neither: refuse if any partial state exists.
func Pending(p *Progress, ids []int, resume, retryFailed bool) ([]int, error) {
	if !resume && !retryFailed && (len(p.Completed) > 0 || len(p.Failed) > 0) {
		return nil, fmt.Errorf("partial-progress: %d completed, %d failed chunks already exist; rerun with --resume or --retry-failed", len(p.Completed), len(p.Failed))
	}

	var pending []int
	for _, id := range ids {
		if p.Completed[id] {
			continue
		}
		if _, failed := p.Failed[id]; failed {
			if retryFailed {
				pending = append(pending, id)
			}
			continue
		}
		pending = append(pending, id)
	}
	return pending, nil
}

// AllDone reports whether every id in ids is Completed and none are Failed,
// letting the engine auto-skip dispatch entirely per spec.md §4.G.
func AllDone(p *Progress, ids []int) bool {
	if len(p.Failed) > 0 {
		return false
	}
	for _, id := range ids {
		if !p.Completed[id] {
			return false
		}
	}
	return true
}

// Save persists p to progressPath atomically.
func Save(progressPath string, p *Progress) error {
	p.snapshot()
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	return cache.WriteAtomic(progressPath, raw)
}
