// Package cache is the content-addressed persistence layer shared by every
// pipeline stage: it maps (stage name, fingerprint) to an on-disk artifact,
// using the teacher's write-temp-then-rename discipline (internal/tactile,
// internal/logging/audit.go in the teacher tree) so a lookup never observes
// a partial write.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"craskill/internal/logging"
)

// Stage names used as cache artifact prefixes. Stages 1-3 use flat files;
// Stage 4 uses a directory (see EnhancedChunksDir).
const (
	StageExtraction     = "extraction"
	StageClassification = "classification"
	StageChunks         = "chunks"
	StageEnhancedChunks = "enhanced_chunks"
)

// Envelope is the outer JSON shape every flat-file artifact is stored in.
type Envelope struct {
	Stage       string          `json:"stage"`
	ContentHash string          `json:"content_hash"`
	Timestamp   time.Time       `json:"timestamp"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	Data        json.RawMessage `json:"data"`
}

// Manager persists and retrieves per-stage artifacts under a single root
// directory. Lookups are side-effect-free; stores are atomic.
type Manager struct {
	dir string
}

// New creates a Manager rooted at dir, creating the directory if needed.
func New(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir %s: %w", dir, err)
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the cache root directory.
func (m *Manager) Dir() string { return m.dir }

// artifactPath returns the flat-file path for a (stage, fingerprint) pair.
func (m *Manager) artifactPath(stage, fingerprint string) string {
	return filepath.Join(m.dir, fmt.Sprintf("%s_%s.json", stage, fingerprint))
}

// EnhancedChunksDir returns the Stage 4 artifact directory for fingerprint.
func (m *Manager) EnhancedChunksDir(fingerprint string) string {
	return filepath.Join(m.dir, fmt.Sprintf("enhanced_chunks_%s", fingerprint))
}

// Lookup returns the raw artifact bytes for (stage, fingerprint), or
// ok=false if no artifact exists. Side-effect-free.
func (m *Manager) Lookup(stage, fingerprint string) (raw []byte, ok bool, err error) {
	data, err := os.ReadFile(m.artifactPath(stage, fingerprint))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache lookup %s/%s: %w", stage, fingerprint, err)
	}
	return data, true, nil
}

// Store writes raw bytes for (stage, fingerprint) atomically: the payload
// is written to a temp file in the same directory, then renamed into place,
// so a concurrent Lookup never observes a partial write.
func (m *Manager) Store(stage, fingerprint string, raw []byte) error {
	return WriteAtomic(m.artifactPath(stage, fingerprint), raw)
}

// StoreJSON wraps data in an Envelope and stores it for (stage, fingerprint).
func (m *Manager) StoreJSON(stage, fingerprint string, metadata map[string]any, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s data: %w", stage, err)
	}
	env := Envelope{
		Stage:       stage,
		ContentHash: fingerprint,
		Timestamp:   time.Now().UTC(),
		Metadata:    metadata,
		Data:        payload,
	}
	raw, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", stage, err)
	}
	logging.Get(logging.CategoryCache).Info("store %s/%s (%d bytes)", stage, fingerprint, len(raw))
	return m.Store(stage, fingerprint, raw)
}

// LookupJSON loads and unmarshals the Data field of a stored envelope into
// out. Returns ok=false if no artifact exists for (stage, fingerprint).
func (m *Manager) LookupJSON(stage, fingerprint string, out any) (ok bool, err error) {
	raw, found, err := m.Lookup(stage, fingerprint)
	if err != nil || !found {
		return found, err
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, fmt.Errorf("cache-mismatch: %s/%s: %w", stage, fingerprint, err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return false, fmt.Errorf("cache-mismatch: %s/%s: %w", stage, fingerprint, err)
	}
	logging.Get(logging.CategoryCache).Debug("hit %s/%s", stage, fingerprint)
	return true, nil
}

// Invalidate removes every artifact associated with fingerprint, across all
// stages, including the Stage 4 directory.
func (m *Manager) Invalidate(fingerprint string) error {
	for _, stage := range []string{StageExtraction, StageClassification, StageChunks} {
		if err := os.Remove(m.artifactPath(stage, fingerprint)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("invalidate %s/%s: %w", stage, fingerprint, err)
		}
	}
	if err := os.RemoveAll(m.EnhancedChunksDir(fingerprint)); err != nil {
		return fmt.Errorf("invalidate enhanced_chunks/%s: %w", fingerprint, err)
	}
	return nil
}

// InvalidateOlderThan removes every cache entry (flat file or directory)
// whose modification time is older than the given threshold duration.
func (m *Manager) InvalidateOlderThan(threshold time.Duration) error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("invalidate sweep: %w", err)
	}
	cutoff := time.Now().Add(-threshold)
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(m.dir, e.Name())
			if err := os.RemoveAll(path); err != nil {
				return fmt.Errorf("invalidate sweep %s: %w", path, err)
			}
		}
	}
	return nil
}

// WriteAtomic writes data to path via a temp file in the same directory
// followed by a rename, so lookups never observe a partial write. Used
// directly by the enhancement engine (internal/enhance) for its per-chunk
// and progress artifacts inside the Stage 4 directory.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, path, err)
	}
	return nil
}
