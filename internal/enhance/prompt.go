package enhance

import (
	"fmt"
	"strings"

	"craskill/internal/chunk"
)

// refusalMarkers is the small set of strings that flag a provider response
// as a refusal rather than real enhanced content, per spec.md §4.G's output
// validation step.
var refusalMarkers = []string{
	"i cannot assist",
	"i can't help with that",
	"as an ai language model",
}

// BuildPrompt renders the fixed enhancement template for c. The template
// text itself is treated as configuration per spec.md §4.G; this is the
// pipeline's compiled-in default.
func BuildPrompt(c chunk.Chunk) string {
	return fmt.Sprintf(`You are enhancing a section of a CRA tax guide into a clear, well-structured Markdown reference document.

Chapter %d: %s

Rewrite the following content as polished Markdown. Preserve every factual detail, form number, and line reference. Use headings, lists, and short paragraphs. Do not add a top-level title; the caller supplies that separately.

---
%s
---`, c.Chapter, c.Title, c.Text)
}

// ValidateOutput enforces spec.md §4.G's output gate before a chunk may be
// written as completed: non-empty trimmed output, length >= minChars, and
// absence of a refusal marker.
func ValidateOutput(text string, minChars int) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("invalid-response: empty output")
	}
	if len(trimmed) < minChars {
		return fmt.Errorf("invalid-response: output is %d characters, below the %d minimum", len(trimmed), minChars)
	}
	lower := strings.ToLower(trimmed)
	for _, marker := range refusalMarkers {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("invalid-response: output contains a refusal marker")
		}
	}
	return nil
}
