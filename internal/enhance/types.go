package enhance

import (
	"sort"
	"time"
)

// Status is the terminal state of an Enhanced Chunk.
type Status string

const (
	Completed Status = "completed"
	Failed    Status = "failed"
)

// EnhancedChunk is the Stage 4 per-chunk output artifact.
type EnhancedChunk struct {
	ChunkID        int       `json:"chunk_id"`
	Title          string    `json:"title"`
	Slug           string    `json:"slug"`
	EnhancedContent string   `json:"enhanced_content"`
	Timestamp      time.Time `json:"timestamp"`
	Provider       string    `json:"provider"`
	Status         Status    `json:"status"`
	TokenCount     int       `json:"token_count"`
	Error          string    `json:"error,omitempty"`
}

// Progress is the Enhancement Progress record: the mutable, per-PDF record
// the engine (never workers) owns and persists after every worker return.
type Progress struct {
	TotalChunks    int            `json:"total_chunks"`
	Completed      map[int]bool   `json:"-"`
	Failed         map[int]string `json:"-"`
	CompletedIDs   []int          `json:"completed_chunks"`
	FailedIDs      []FailedChunk  `json:"failed_chunks"`
	StartTime      time.Time      `json:"start_time"`
	LastUpdate     time.Time      `json:"last_update"`
	Provider       string         `json:"provider"`
	AvgChunkMillis float64        `json:"avg_chunk_millis"`
}

// FailedChunk records a failed chunk id and its last error.
type FailedChunk struct {
	ChunkID int    `json:"chunk_id"`
	Error   string `json:"error"`
}

// snapshot fills CompletedIDs/FailedIDs from the Completed/Failed maps so
// the record serializes deterministically.
func (p *Progress) snapshot() {
	p.CompletedIDs = p.CompletedIDs[:0]
	for id := range p.Completed {
		p.CompletedIDs = append(p.CompletedIDs, id)
	}
	sort.Ints(p.CompletedIDs)
	p.FailedIDs = p.FailedIDs[:0]
	for id, msg := range p.Failed {
		p.FailedIDs = append(p.FailedIDs, FailedChunk{ChunkID: id, Error: msg})
	}
	sort.Slice(p.FailedIDs, func(i, j int) bool { return p.FailedIDs[i].ChunkID < p.FailedIDs[j].ChunkID })
}

// recordCompleted marks a chunk completed, updating the EMA of per-chunk
// duration with alpha=0.3, seeded by the first completed duration, per
// SPEC_FULL.md's supplemented-features note.
func (p *Progress) recordCompleted(id int, duration time.Duration) {
	delete(p.Failed, id)
	p.Completed[id] = true
	const alpha = 0.3
	ms := float64(duration.Milliseconds())
	if p.AvgChunkMillis == 0 {
		p.AvgChunkMillis = ms
	} else {
		p.AvgChunkMillis = alpha*ms + (1-alpha)*p.AvgChunkMillis
	}
	p.LastUpdate = time.Now().UTC()
}

func (p *Progress) recordFailed(id int, errMsg string) {
	delete(p.Completed, id)
	p.Failed[id] = errMsg
	p.LastUpdate = time.Now().UTC()
}
