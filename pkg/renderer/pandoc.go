package renderer

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Format is an export target.
type Format string

// Export formats. Markdown is written directly; the others go through pandoc.
const (
	FormatMarkdown Format = "md"
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
)

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (f Format, err error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "md", "markdown":
		f = FormatMarkdown
	case "pdf":
		f = FormatPDF
	case "docx":
		f = FormatDOCX
	default:
		err = errors.Errorf("unsupported format %q: must be md, pdf or docx", s)
	}
	return f, err
}

// Options tune pandoc conversion.
type Options struct {
	// Template is passed to pandoc --template when set.
	Template string
	// ClassPath is a LaTeX class file whose directory is added to TEXINPUTS.
	ClassPath string
}

// Write renders markdown content to outputPath in the given format.
func Write(ctx context.Context, content, outputPath string, format Format, opts Options) (err error) {
	if format == FormatMarkdown {
		err = WriteMarkdown(content, outputPath)
		return err
	}

	err = checkPandocExists(ctx)
	if err != nil {
		return err
	}

	err = validateFiles(opts.Template, opts.ClassPath)
	if err != nil {
		return err
	}

	outputDir := filepath.Dir(outputPath)
	err = os.MkdirAll(outputDir, 0750)
	if err != nil {
		err = errors.Wrapf(err, "failed to create output directory: %s", outputDir)
		return err
	}

	args := []string{"-f", "markdown", "-t", string(format), "-o", outputPath}
	if format == FormatPDF {
		// pandoc picks the writer from -o for pdf
		args = []string{"-f", "markdown", "-o", outputPath}
	}
	if opts.Template != "" {
		args = append(args, "--template", opts.Template)
	}

	cmd := exec.CommandContext(ctx, "pandoc", args...)
	cmd.Stdin = strings.NewReader(content)

	if opts.ClassPath != "" {
		texinputs := filepath.Dir(opts.ClassPath) + ":" + os.Getenv("TEXINPUTS")
		cmd.Env = append(os.Environ(), "TEXINPUTS="+texinputs)
	}

	var output []byte
	output, err = cmd.CombinedOutput()
	if err != nil {
		err = errors.Wrapf(err, "pandoc failed: %s", string(output))
		return err
	}

	return err
}

// checkPandocExists verifies pandoc is installed.
func checkPandocExists(ctx context.Context) (err error) {
	cmd := exec.CommandContext(ctx, "pandoc", "--version")
	err = cmd.Run()
	if err != nil {
		err = errors.New("pandoc not found in PATH (install pandoc to export PDF or DOCX)")
		return err
	}
	return err
}

// validateFiles checks that the given optional files exist. Empty paths are skipped.
func validateFiles(paths ...string) (err error) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		_, err = os.Stat(path)
		if os.IsNotExist(err) {
			err = errors.Errorf("file not found: %s", path)
			return err
		}
	}
	return err
}

// WriteMarkdown writes markdown content to a file.
func WriteMarkdown(content, outputPath string) (err error) {
	outputDir := filepath.Dir(outputPath)
	err = os.MkdirAll(outputDir, 0750)
	if err != nil {
		err = errors.Wrapf(err, "failed to create output directory: %s", outputDir)
		return err
	}

	err = os.WriteFile(outputPath, []byte(content), 0600)
	if err != nil {
		err = errors.Wrapf(err, "failed to write markdown file: %s", outputPath)
		return err
	}

	return err
}
