package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craskill/internal/chunk"
	"craskill/internal/classify"
	"craskill/internal/enhance"
	"craskill/internal/extract"
	"craskill/internal/provider"
	"craskill/internal/skill"
)

type fakeClient struct {
	id        string
	available bool
}

func (f *fakeClient) ID() string                                   { return f.id }
func (f *fakeClient) Available(ctx context.Context) bool            { return f.available }
func (f *fakeClient) MaxChunkSize() int                             { return 1 << 20 }
func (f *fakeClient) Timeout(promptChars int) time.Duration         { return time.Minute }
func (f *fakeClient) Invoke(ctx context.Context, prompt string) (string, error) {
	return "", nil
}

var _ provider.Client = (*fakeClient)(nil)

func testExtractRecord() *extract.Record {
	return &extract.Record{
		SourcePath:  "guide.pdf",
		Fingerprint: "abc123",
		TotalPages:  2,
		FullText:    "Chapter 1 text. Chapter 2 text.",
		Pages: []extract.Page{
			{Number: 1, Text: "Chapter 1 text.", CharCount: 15, LineCount: 1},
			{Number: 2, Text: "Chapter 2 text.", CharCount: 15, LineCount: 1},
		},
	}
}

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o, err := New(t.TempDir())
	require.NoError(t, err)
	return o
}

func TestRunClassifyCachesAcrossCalls(t *testing.T) {
	o := newTestOrchestrator(t)
	summary := newSummary("guide.pdf")
	ext := testExtractRecord()
	client := &fakeClient{id: "fake", available: false}

	rec1, err := o.runClassify(context.Background(), summary, Options{}, ext.Fingerprint, ext, client)
	require.NoError(t, err)
	assert.NotEmpty(t, rec1.PrimaryCategory)

	rec2, err := o.runClassify(context.Background(), summary, Options{}, ext.Fingerprint, ext, client)
	require.NoError(t, err)
	assert.Equal(t, rec1.PrimaryCategory, rec2.PrimaryCategory)

	require.Len(t, summary.Stages, 2)
	assert.Equal(t, StatusRan, summary.Stages[0].Status)
	assert.Equal(t, StatusCached, summary.Stages[1].Status)
}

func TestRunChunkProducesAndCachesChunks(t *testing.T) {
	o := newTestOrchestrator(t)
	summary := newSummary("guide.pdf")
	ext := testExtractRecord()

	chunks, err := o.runChunk(summary, Options{}, ext.Fingerprint, ext)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)
	assert.Equal(t, StatusRan, summary.Stages[0].Status)

	chunks2, err := o.runChunk(summary, Options{}, ext.Fingerprint, ext)
	require.NoError(t, err)
	assert.Equal(t, chunks, chunks2)
	assert.Equal(t, StatusCached, summary.Stages[1].Status)
}

func TestRunEnhanceAutoSkipsWhenAllChunksAlreadyCompleted(t *testing.T) {
	o := newTestOrchestrator(t)
	summary := newSummary("guide.pdf")
	chunks := []chunk.Chunk{
		{ID: 1, Chapter: 1, Title: "One", Slug: "one", Text: "text one", CharCount: 8},
	}

	dir := o.Cache.EnhancedChunksDir("fp1")
	require.NoError(t, os.MkdirAll(dir, 0755))
	art := enhance.EnhancedChunk{ChunkID: 1, Status: enhance.Completed, EnhancedContent: "done", Timestamp: time.Now()}
	raw, err := json.Marshal(art)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(enhance.ArtifactPath(dir, 1), raw, 0644))

	client := &fakeClient{id: "fake", available: true}
	enhanced, err := o.runEnhance(context.Background(), summary, Options{SelfExe: "/bin/false"}, "fp1", chunks, client)
	require.NoError(t, err)
	require.Len(t, enhanced, 1)
	assert.Equal(t, enhance.Completed, enhanced[0].Status)
	assert.Equal(t, StatusRan, summary.Stages[0].Status)
}

func TestRunAssembleWritesSkillDirectory(t *testing.T) {
	o := newTestOrchestrator(t)
	summary := newSummary("guide.pdf")
	ext := testExtractRecord()
	chunks := []chunk.Chunk{{ID: 1, Chapter: 1, Title: "One", Slug: "one", Text: "text one", CharCount: 8}}
	enhanced := []enhance.EnhancedChunk{{ChunkID: 1, Title: "One", Slug: "one", EnhancedContent: "Enhanced text.", Status: enhance.Completed}}
	classRec := &classify.Record{PrimaryCategory: classify.OtherGeneral, Confidence: 0.5}

	outRoot := t.TempDir()
	dir, err := o.runAssemble(summary, Options{OutputDir: outRoot}, ext, chunks, enhanced, classRec, "guide")
	require.NoError(t, err)
	assert.FileExists(t, dir.SkillMD)
	assert.Equal(t, StatusRan, summary.Stages[0].Status)
}

func TestRunSkillEnhanceSkipsWhenOptedOut(t *testing.T) {
	o := newTestOrchestrator(t)
	summary := newSummary("guide.pdf")
	dir := skill.Layout(t.TempDir(), "guide")

	err := o.runSkillEnhance(context.Background(), summary, Options{EnhanceSkill: false}, dir, "guide", &fakeClient{})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, summary.Stages[0].Status)
}

func TestPDFStemStripsExtension(t *testing.T) {
	assert.Equal(t, "t4-guide", pdfStem(filepath.Join("some", "dir", "t4-guide.pdf")))
}
