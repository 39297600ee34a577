// Package chunk implements Stage 3: splitting an Extraction Record's full
// text into ordered, independently-enhanceable chunks, via chapter-boundary
// detection with a fixed-page-range fallback.
package chunk

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"craskill/internal/extract"
	"craskill/internal/logging"
)

// Chunk is a single Stage 3 output item.
type Chunk struct {
	ID        int    `json:"id"`
	Chapter   int    `json:"chapter"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Text      string `json:"text"`
	CharCount int    `json:"char_count"`
}

// chapterBoundary patterns modeled on common CRA guide headings, tried in
// order; the first pattern that matches at least twice wins.
var chapterBoundaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^Chapter\s+\d+.*$`),
	regexp.MustCompile(`(?m)^Line\s+\d{5}.*$`),
	regexp.MustCompile(`(?m)^[A-Z][A-Z\s]{8,}$`),
}

// Chunk splits ext's full text into chapter chunks, falling back to fixed
// page-range partitioning when fewer than two chapter chunks are found, then merges
// any chunk shorter than minChunkChars into its predecessor and
// disambiguates duplicate slugs with -2, -3, ... suffixes.
func Chunk(ext *extract.Record, minChunkChars, pagesPerChunk int) []Chunk {
	log := logging.Get(logging.CategoryChunk)

	raw := splitByChapters(ext.FullText)
	if len(raw) <= 1 {
		raw = splitByPageRange(ext.Pages, pagesPerChunk)
		log.Debug("no chapter boundaries found, using page-range fallback (%d pages/chunk)", pagesPerChunk)
	}

	raw = mergeShortChunks(raw, minChunkChars)
	return assignIDsAndSlugs(raw)
}

type rawChunk struct {
	title string
	text  string
}

// splitByChapters returns one rawChunk per detected chapter boundary, using
// the first pattern in chapterBoundaryPatterns that matches more than once.
func splitByChapters(fullText string) []rawChunk {
	for _, pattern := range chapterBoundaryPatterns {
		matches := pattern.FindAllStringIndex(fullText, -1)
		if len(matches) < 2 {
			continue
		}
		var chunks []rawChunk
		for i, m := range matches {
			start := m[0]
			end := len(fullText)
			if i+1 < len(matches) {
				end = matches[i+1][0]
			}
			title := strings.TrimSpace(fullText[m[0]:m[1]])
			text := strings.TrimSpace(fullText[start:end])
			if text == "" {
				continue
			}
			chunks = append(chunks, rawChunk{title: title, text: text})
		}
		if len(chunks) > 0 {
			return chunks
		}
	}
	return nil
}

// splitByPageRange groups consecutive pages into fixed-size ranges when no
// chapter boundaries were detected.
func splitByPageRange(pages []extract.Page, pagesPerChunk int) []rawChunk {
	if pagesPerChunk <= 0 {
		pagesPerChunk = 5
	}
	var chunks []rawChunk
	for start := 0; start < len(pages); start += pagesPerChunk {
		end := start + pagesPerChunk
		if end > len(pages) {
			end = len(pages)
		}
		var text strings.Builder
		for _, p := range pages[start:end] {
			text.WriteString(p.Text)
		}
		body := strings.TrimSpace(text.String())
		if body == "" {
			continue
		}
		chunks = append(chunks, rawChunk{
			title: fmt.Sprintf("Pages %d-%d", pages[start].Number, pages[end-1].Number),
			text:  body,
		})
	}
	return chunks
}

// mergeShortChunks folds any chunk whose text is shorter than minChars into
// its predecessor, so no chunk below the minimum length is ever emitted
// standalone. The very first chunk, if short, is merged forward instead.
func mergeShortChunks(chunks []rawChunk, minChars int) []rawChunk {
	if minChars <= 0 || len(chunks) <= 1 {
		return chunks
	}
	merged := make([]rawChunk, 0, len(chunks))
	for _, c := range chunks {
		if len(merged) > 0 && len(c.text) < minChars {
			prev := &merged[len(merged)-1]
			prev.text = prev.text + "\n\n" + c.text
			continue
		}
		merged = append(merged, c)
	}
	// First chunk may still be short if it was never followed by a merge
	// target; fold it into the next one instead of dropping it.
	if len(merged) > 1 && len(merged[0].text) < minChars {
		merged[1].text = merged[0].text + "\n\n" + merged[1].text
		merged = merged[1:]
	}
	return merged
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	s := strings.ToLower(title)
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "chunk"
	}
	return s
}

// assignIDsAndSlugs numbers chunks densely from 1, derives a unique slug per
// chunk, and sets chapter number to the chunk id when no explicit chapter
// number was parsed out of the title.
func assignIDsAndSlugs(raw []rawChunk) []Chunk {
	chapterNumber := regexp.MustCompile(`^Chapter\s+(\d+)`)
	seen := make(map[string]int)
	out := make([]Chunk, 0, len(raw))
	for i, r := range raw {
		chapter := i + 1
		if m := chapterNumber.FindStringSubmatch(r.title); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				chapter = n
			}
		}
		base := slugify(r.title)
		slug := base
		if n, ok := seen[base]; ok {
			n++
			seen[base] = n
			slug = fmt.Sprintf("%s-%d", base, n)
		} else {
			seen[base] = 1
		}
		out = append(out, Chunk{
			ID:        i + 1,
			Chapter:   chapter,
			Title:     r.title,
			Slug:      slug,
			Text:      r.text,
			CharCount: len(r.text),
		})
	}
	return out
}
