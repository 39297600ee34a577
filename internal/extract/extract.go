// Package extract implements Stage 1 of the pipeline: turning PDF bytes
// into a page-keyed Extraction Record. Page text extraction itself is
// delegated to github.com/ledongthuc/pdf, the PDF library the retrieved
// example pack converges on; this package's own responsibility is page
// ordering, character/line counting, and the Stage-1 assembly invariant.
package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"craskill/internal/fingerprint"
	"craskill/internal/logging"
)

// Page is a single 1-based page of extracted text.
type Page struct {
	Number    int    `json:"number"`
	Text      string `json:"text"`
	CharCount int    `json:"char_count"`
	LineCount int    `json:"line_count"`
}

// Record is the Stage 1 output: source path, fingerprint, total page
// count, full concatenated text, and the ordered Page sequence.
type Record struct {
	SourcePath  string `json:"source_path"`
	Fingerprint string `json:"fingerprint"`
	TotalPages  int    `json:"total_pages"`
	FullText    string `json:"full_text"`
	Pages       []Page `json:"pages"`
}

// Extract reads the PDF at path, extracting at most maxPages pages (0 means
// no cap), and returns a Record keyed by the fingerprint of the raw file
// bytes. Fails with a wrapped error carrying the "extraction-failed" kind
// on a missing file, a corrupt PDF, or zero extracted pages.
func Extract(path string, maxPages int) (*Record, error) {
	log := logging.Get(logging.CategoryExtract)

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("extraction-failed: open %s: %w", path, err)
	}
	defer f.Close()

	total := r.NumPage()
	if total == 0 {
		return nil, fmt.Errorf("extraction-failed: %s has zero pages", path)
	}

	limit := total
	if maxPages > 0 && maxPages < total {
		limit = maxPages
	}

	pages := make([]Page, 0, limit)
	var full strings.Builder
	for i := 1; i <= limit; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			log.Warn("page %d: GetPlainText failed: %v", i, err)
			continue
		}
		pages = append(pages, Page{
			Number:    i,
			Text:      text,
			CharCount: len(text),
			LineCount: strings.Count(text, "\n") + 1,
		})
		full.WriteString(text)
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("extraction-failed: %s produced zero extractable pages", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("extraction-failed: re-reading %s for fingerprint: %w", path, err)
	}

	rec := &Record{
		SourcePath:  path,
		Fingerprint: fingerprint.Of(data),
		TotalPages:  total,
		FullText:    full.String(),
		Pages:       pages,
	}
	log.Info("extracted %s: %d of %d pages, %d chars", path, len(pages), total, len(rec.FullText))
	return rec, nil
}
