// Package skill implements Stage 5 (Skill Assembler) and Stage 6 (Skill
// Enhancer): turning Enhanced Chunks into a Skill Directory and then
// replacing its basic SKILL.md with a high-quality index document,
// grounded on the teacher's internal/synthesis document-writing helpers
// composed with goldmark-based AST validation for the enhancer.
package skill

import "time"

// FrontMatter is the YAML header of a basic (Stage 5) SKILL.md.
type FrontMatter struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	Domain      string   `yaml:"domain"`
	Priority    int      `yaml:"priority"`
	Version     string   `yaml:"version"`
	Source      string   `yaml:"source"`
}

// Directory describes the on-disk paths of an assembled Skill Directory.
type Directory struct {
	Root           string // <output>/<slug>-<stem>
	SkillMD        string // Root/SKILL.md
	SkillMDBackup  string // Root/SKILL.md.backup
	ReferencesDir  string // Root/references
	RawDir         string // Root/raw
	FullExtractTXT string // Root/raw/full-extract.txt
	IndexMD        string // Root/references/index.md
}

// Result is returned by Enhance describing the outcome of Stage 6.
type Result struct {
	Valid     bool
	Score     float64
	Warnings  []string
	Error     string
	Timestamp time.Time
}
