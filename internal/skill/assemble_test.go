package skill

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craskill/internal/chunk"
	"craskill/internal/classify"
	"craskill/internal/enhance"
)

func testClassification() *classify.Record {
	return &classify.Record{
		PrimaryCategory: classify.EmploymentIncome,
		Confidence:      0.9,
		Quality: classify.Quality{
			Completeness: 0.8, Accuracy: 0.8, Relevance: 0.8, Clarity: 0.8, Practicality: 0.8,
		},
	}
}

func TestDirNameSlugifiesCategoryAndStem(t *testing.T) {
	name := DirName(classify.EmploymentIncome, "T4 Guide 2025")
	assert.Equal(t, "employment-income-t4-guide-2025", name)
}

func TestAssembleWritesExpectedLayout(t *testing.T) {
	chunks := []chunk.Chunk{
		{ID: 1, Chapter: 1, Title: "Employment Income", Slug: "employment-income", Text: "chapter one text", CharCount: 17},
		{ID: 2, Chapter: 2, Title: "Deductions", Slug: "deductions", Text: "chapter two text", CharCount: 16},
	}
	enhanced := []enhance.EnhancedChunk{
		{ChunkID: 1, Title: "Employment Income", Slug: "employment-income", EnhancedContent: "Enhanced body one.", Status: enhance.Completed, Timestamp: time.Now()},
		{ChunkID: 2, Title: "Deductions", Slug: "deductions", Status: enhance.Failed, Error: "timeout", Timestamp: time.Now()},
	}

	outRoot := t.TempDir()
	dir, err := Assemble(outRoot, "t4-guide", "chapter one textchapter two text", chunks, enhanced, testClassification())
	require.NoError(t, err)

	assert.FileExists(t, dir.SkillMD)
	assert.FileExists(t, dir.FullExtractTXT)
	assert.FileExists(t, dir.IndexMD)
	assert.FileExists(t, filepath.Join(dir.ReferencesDir, "chunk-001-employment-income.md"))
	assert.NoFileExists(t, filepath.Join(dir.ReferencesDir, "chunk-002-deductions.md"))

	raw, err := os.ReadFile(dir.SkillMD)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "id: employment-income-t4-guide")
}

func TestSlugifyCollapsesAndDefaults(t *testing.T) {
	assert.Equal(t, "skill", slugify("   "))
	assert.Equal(t, "a-b-c", slugify("A!!B__C"))
}
