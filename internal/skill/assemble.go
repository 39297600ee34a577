package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"craskill/internal/cache"
	"craskill/internal/chunk"
	"craskill/internal/classify"
	"craskill/internal/enhance"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "skill"
	}
	return s
}

// DirName computes the Skill directory name "<category>-<pdf-stem>",
// slugified, per spec.md §4.H.
func DirName(category classify.Category, pdfStem string) string {
	return slugify(string(category) + "-" + pdfStem)
}

// Layout returns the Directory paths for a Skill rooted at outputRoot/name.
func Layout(outputRoot, name string) Directory {
	root := filepath.Join(outputRoot, name)
	return Directory{
		Root:           root,
		SkillMD:        filepath.Join(root, "SKILL.md"),
		SkillMDBackup:  filepath.Join(root, "SKILL.md.backup"),
		ReferencesDir:  filepath.Join(root, "references"),
		RawDir:         filepath.Join(root, "raw"),
		FullExtractTXT: filepath.Join(root, "raw", "full-extract.txt"),
		IndexMD:        filepath.Join(root, "references", "index.md"),
	}
}

// Assemble builds a Skill Directory from the Stage 3 chunks, the Stage 4
// enhanced chunks, the Stage 2 classification, and the Stage 1 full text,
// per spec.md §4.H. Only chunks with a Completed enhanced counterpart get a
// reference file; the invariant is that the set of reference files equals
// the set of successfully enhanced chunks.
func Assemble(outputRoot, pdfStem, fullText string, chunks []chunk.Chunk, enhanced []enhance.EnhancedChunk, classification *classify.Record) (Directory, error) {
	name := DirName(classification.PrimaryCategory, pdfStem)
	dir := Layout(outputRoot, name)

	if err := os.MkdirAll(dir.ReferencesDir, 0755); err != nil {
		return dir, fmt.Errorf("create references dir: %w", err)
	}
	if err := os.MkdirAll(dir.RawDir, 0755); err != nil {
		return dir, fmt.Errorf("create raw dir: %w", err)
	}

	if err := cache.WriteAtomic(dir.FullExtractTXT, []byte(fullText)); err != nil {
		return dir, fmt.Errorf("write raw extract: %w", err)
	}

	byID := make(map[int]chunk.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	completed := make([]enhance.EnhancedChunk, 0, len(enhanced))
	for _, e := range enhanced {
		if e.Status == enhance.Completed {
			completed = append(completed, e)
		}
	}
	sort.Slice(completed, func(i, j int) bool { return completed[i].ChunkID < completed[j].ChunkID })

	for _, e := range completed {
		refName := fmt.Sprintf("chunk-%03d-%s.md", e.ChunkID, e.Slug)
		refPath := filepath.Join(dir.ReferencesDir, refName)
		body := fmt.Sprintf("# %s\n\n%s\n", e.Title, e.EnhancedContent)
		if err := cache.WriteAtomic(refPath, []byte(body)); err != nil {
			return dir, fmt.Errorf("write reference %s: %w", refName, err)
		}
	}

	if err := writeIndex(dir, byID, completed); err != nil {
		return dir, err
	}

	if err := writeBasicSkillMD(dir, name, pdfStem, classification); err != nil {
		return dir, err
	}

	return dir, nil
}

func writeIndex(dir Directory, byID map[int]chunk.Chunk, completed []enhance.EnhancedChunk) error {
	var b strings.Builder
	b.WriteString("# Reference Index\n\n")
	b.WriteString("| Chapter | Title | Reference |\n")
	b.WriteString("|---|---|---|\n")
	for _, e := range completed {
		chapter := e.ChunkID
		if c, ok := byID[e.ChunkID]; ok {
			chapter = c.Chapter
		}
		refName := fmt.Sprintf("chunk-%03d-%s.md", e.ChunkID, e.Slug)
		fmt.Fprintf(&b, "| %d | %s | [%s](%s) |\n", chapter, e.Title, refName, refName)
	}
	return cache.WriteAtomic(dir.IndexMD, []byte(b.String()))
}

func writeBasicSkillMD(dir Directory, name, pdfStem string, classification *classify.Record) error {
	fm := FrontMatter{
		ID:          name,
		Title:       strings.Title(strings.ReplaceAll(string(classification.PrimaryCategory), "_", " ")),
		Description: fmt.Sprintf("Reference material extracted from %s.", pdfStem),
		Tags:        append([]string{string(classification.PrimaryCategory)}, secondaryTags(classification)...),
		Domain:      "cra-tax-guide",
		Priority:    5,
		Version:     "0.1.0",
		Source:      pdfStem,
	}
	body := renderBasicSkillMD(fm)
	return cache.WriteAtomic(dir.SkillMD, []byte(body))
}

func secondaryTags(r *classify.Record) []string {
	tags := make([]string, 0, len(r.SecondaryCategories))
	for _, s := range r.SecondaryCategories {
		tags = append(tags, string(s.Category))
	}
	return tags
}

func renderBasicSkillMD(fm FrontMatter) string {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "id: %s\n", fm.ID)
	fmt.Fprintf(&b, "title: %s\n", fm.Title)
	fmt.Fprintf(&b, "description: %s\n", fm.Description)
	b.WriteString("tags:\n")
	for _, t := range fm.Tags {
		fmt.Fprintf(&b, "  - %s\n", t)
	}
	fmt.Fprintf(&b, "domain: %s\n", fm.Domain)
	fmt.Fprintf(&b, "priority: %d\n", fm.Priority)
	fmt.Fprintf(&b, "version: %s\n", fm.Version)
	fmt.Fprintf(&b, "source: %s\n", fm.Source)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", fm.Title)
	b.WriteString("This is a basic, unenhanced index. It exists only so Stage 6 has something to enhance.\n\n")
	b.WriteString("## Reference Documentation\n\nSee the references/ directory for chapter content.\n")
	return b.String()
}
