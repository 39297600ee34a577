package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"craskill/internal/cache"
)

// StageStatus is one of the four states a stage can end a run in.
type StageStatus string

const (
	StatusCached  StageStatus = "cached"
	StatusRan     StageStatus = "ran"
	StatusFailed  StageStatus = "failed"
	StatusSkipped StageStatus = "skipped"
)

// StageReport records one stage's outcome for the run summary manifest.
type StageReport struct {
	Stage    string        `json:"stage"`
	Status   StageStatus   `json:"status"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Summary is the structured run summary written alongside the Skill
// Directory (per SPEC_FULL.md's "Run summary manifest" supplement), modeled
// on the teacher's per-subsystem status objects in cmd/nerd.
type Summary struct {
	PDFPath     string        `json:"pdf_path"`
	Fingerprint string        `json:"fingerprint"`
	OutputDir   string        `json:"output_dir"`
	Stages      []StageReport `json:"stages"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time,omitempty"`
	Duration    time.Duration `json:"duration_ns,omitempty"`
}

func newSummary(pdfPath string) *Summary {
	return &Summary{PDFPath: pdfPath, StartTime: time.Now().UTC()}
}

func (s *Summary) cacheHit(stage string, d time.Duration) {
	s.Stages = append(s.Stages, StageReport{Stage: stage, Status: StatusCached, Duration: d})
}

func (s *Summary) ran(stage string, d time.Duration) {
	s.Stages = append(s.Stages, StageReport{Stage: stage, Status: StatusRan, Duration: d})
}

func (s *Summary) skip(stage string) {
	s.Stages = append(s.Stages, StageReport{Stage: stage, Status: StatusSkipped})
}

func (s *Summary) fail(stage string, err error) {
	s.Stages = append(s.Stages, StageReport{Stage: stage, Status: StatusFailed, Error: err.Error()})
	s.finish()
}

func (s *Summary) finish() {
	if !s.EndTime.IsZero() {
		return
	}
	s.EndTime = time.Now().UTC()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

func (s *Summary) writeTo(path string) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run summary: %w", err)
	}
	return cache.WriteAtomic(path, raw)
}
