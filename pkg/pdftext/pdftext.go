// Package pdftext extracts plain text from PDF resumes for import.
package pdftext

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

// Separator joins the text of several sources.
const Separator = "\n\n"

// Extract returns the plain text of a PDF document.
func Extract(data []byte) (text string, err error) {
	var r *pdf.Reader
	r, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		err = errors.Wrap(err, "failed to open PDF")
		return text, err
	}

	var plain io.Reader
	plain, err = r.GetPlainText()
	if err != nil {
		err = errors.Wrap(err, "failed to extract PDF text")
		return text, err
	}

	var buf bytes.Buffer
	_, err = io.Copy(&buf, plain)
	if err != nil {
		err = errors.Wrap(err, "failed to read PDF text")
		return text, err
	}

	text = normalize(buf.String())
	if text == "" {
		err = errors.New("PDF contains no extractable text")
		return text, err
	}

	return text, err
}

// ExtractFile reads a PDF from disk and returns its text.
func ExtractFile(path string) (text string, err error) {
	var data []byte
	data, err = os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(err, "failed to read file: %s", path)
		return text, err
	}

	text, err = Extract(data)
	if err != nil {
		err = errors.Wrapf(err, "failed to extract text from %s", path)
		return text, err
	}

	return text, err
}

// ExtractFiles extracts every file in order and joins the results with a blank line.
func ExtractFiles(paths ...string) (text string, err error) {
	parts := make([]string, 0, len(paths))
	for _, path := range paths {
		var part string
		part, err = ExtractFile(path)
		if err != nil {
			return text, err
		}
		parts = append(parts, part)
	}

	text = Join(parts...)
	return text, err
}

// Join concatenates extracted texts, skipping empty ones.
func Join(parts ...string) (text string) {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, strings.TrimSpace(p))
		}
	}
	text = strings.Join(kept, Separator)
	return text
}

func normalize(s string) (out string) {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	out = strings.Join(kept, "\n")
	return out
}
