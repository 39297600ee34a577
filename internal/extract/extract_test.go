package extract

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractMissingFileFails(t *testing.T) {
	_, err := Extract("/nonexistent/does-not-exist.pdf", 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "extraction-failed")
}

func TestExtractRejectsNonPDF(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/not-a-pdf.txt"
	assert.NoError(t, os.WriteFile(path, []byte("this is not a PDF"), 0644))

	_, err := Extract(path, 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "extraction-failed")
}
