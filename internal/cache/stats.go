package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Stats summarizes cache occupancy, broken down per stage, for the
// operator-facing `craskill cache stats` affordance named in SPEC_FULL.md.
type Stats struct {
	PerStage map[string]StageStats
	Total    StageStats
}

// StageStats is the artifact count and byte total for a single stage.
type StageStats struct {
	Artifacts int
	Bytes     int64
}

// Stats walks the cache directory and tallies artifact counts and sizes
// per stage prefix, following the teacher's audit-log rotation bookkeeping
// in internal/logging/audit.go.
func (m *Manager) Stats() (Stats, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}

	out := Stats{PerStage: make(map[string]StageStats)}
	for _, e := range entries {
		stage := stageOf(e.Name())
		if stage == "" {
			continue
		}
		var size int64
		if e.IsDir() {
			size, err = dirSize(filepath.Join(m.dir, e.Name()))
			if err != nil {
				return Stats{}, err
			}
		} else {
			info, err := e.Info()
			if err != nil {
				return Stats{}, err
			}
			size = info.Size()
		}
		s := out.PerStage[stage]
		s.Artifacts++
		s.Bytes += size
		out.PerStage[stage] = s
		out.Total.Artifacts++
		out.Total.Bytes += size
	}
	return out, nil
}

func stageOf(name string) string {
	for _, stage := range []string{StageExtraction, StageClassification, StageChunks, StageEnhancedChunks} {
		if strings.HasPrefix(name, stage+"_") {
			return stage
		}
	}
	return ""
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
