package pdftext

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalPDF builds a one-page PDF that draws text with a standard font.
func minimalPDF(text string) (data []byte) {
	stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	data = buf.Bytes()
	return data
}

func TestExtract(t *testing.T) {
	text, err := Extract(minimalPDF("Ada Lovelace"))
	require.NoError(t, err)
	assert.Contains(t, text, "Ada Lovelace")
}

func TestExtractRejectsGarbage(t *testing.T) {
	_, err := Extract([]byte("not a pdf"))
	assert.Error(t, err)
}

func TestExtractFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "one.pdf")
	second := filepath.Join(dir, "two.pdf")
	require.NoError(t, os.WriteFile(first, minimalPDF("First"), 0600))
	require.NoError(t, os.WriteFile(second, minimalPDF("Second"), 0600))

	text, err := ExtractFiles(first, second)
	require.NoError(t, err)
	assert.Regexp(t, `(?s)First.*\n\n.*Second`, text)

	_, err = ExtractFiles(first, filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a\n\nb", Join(" a ", "", "b\n"))
	assert.Empty(t, Join())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Senior Engineer\nAcme Corp", normalize("  Senior   Engineer \r\n\n\tAcme  Corp\n"))
}
