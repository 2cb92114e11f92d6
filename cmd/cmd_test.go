package cmd

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/renderer"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Acme Inc.", want: "acme"},
		{in: "SRE at Globex, LLC", want: "sre-at-globex"},
		{in: "  Platform / Infra  ", want: "platform-infra"},
		{in: "!!!", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := sanitizeFilename(tt.in); got != tt.want {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseSelection(t *testing.T) {
	sel, err := parseSelection(nil)
	if err != nil || sel != nil {
		t.Fatalf("Expected nil selection for no pairs, got %v, %v", sel, err)
	}

	sel, err = parseSelection([]string{"work_experience=Acme-0", "skills=Languages", "work_experience=Globex-1"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := model.Selection{
		model.SectionWorkExperience: {"Acme-0", "Globex-1"},
		model.SectionSkills:         {"Languages"},
	}
	if !reflect.DeepEqual(sel, want) {
		t.Errorf("Expected %v, got %v", want, sel)
	}

	for _, bad := range []string{"work_experience", "hobbies=chess", "projects="} {
		if _, err = parseSelection([]string{bad}); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestExportPaths(t *testing.T) {
	dir := t.TempDir()
	resume := model.Resume{Name: "SRE at Globex"}

	resumePath, letterPath, format, err := exportPaths(dir, "", resume)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if format != renderer.FormatMarkdown {
		t.Errorf("Expected markdown for a directory, got %q", format)
	}
	if resumePath != filepath.Join(dir, "sre-at-globex.md") || letterPath != filepath.Join(dir, "sre-at-globex-cover-letter.md") {
		t.Errorf("Unexpected paths %q %q", resumePath, letterPath)
	}

	out := filepath.Join(dir, "resume.pdf")
	resumePath, letterPath, format, err = exportPaths(out, "", resume)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if format != renderer.FormatPDF || resumePath != out || letterPath != filepath.Join(dir, "resume-cover-letter.pdf") {
		t.Errorf("Unexpected %q %q %q", format, resumePath, letterPath)
	}

	_, _, format, err = exportPaths(dir, "docx", resume)
	if err != nil || format != renderer.FormatDOCX {
		t.Errorf("Expected docx from flag, got %q, %v", format, err)
	}

	if _, _, _, err = exportPaths(filepath.Join(dir, "resume.html"), "", resume); err == nil {
		t.Error("Expected error for unsupported extension")
	}
}

func TestCoverLetterPath(t *testing.T) {
	dir := t.TempDir()
	resume := model.Resume{Name: "SRE at Globex"}

	path, err := coverLetterPath(dir, resume)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if path != filepath.Join(dir, "sre-at-globex-cover-letter.md") {
		t.Errorf("Unexpected path %q", path)
	}

	file := filepath.Join(dir, "letter.txt")
	path, err = coverLetterPath(file, resume)
	if err != nil || path != file {
		t.Errorf("Expected %q, got %q, %v", file, path, err)
	}

	nested := filepath.Join(dir, "letters") + string(os.PathSeparator)
	path, err = coverLetterPath(nested, resume)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "letters")); statErr != nil {
		t.Errorf("Expected directory to be created: %v", statErr)
	}
	if filepath.Base(path) != "sre-at-globex-cover-letter.md" {
		t.Errorf("Unexpected path %q", path)
	}
}

func TestParseChatCommand(t *testing.T) {
	c, err := parseChatCommand("  How can I improve my summary?\n")
	if err != nil || c.message != "How can I improve my summary?" {
		t.Fatalf("Expected a plain message, got %+v, %v", c, err)
	}

	c, err = parseChatCommand("/suggest work_experience 2 quantify the impact")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if c.section != model.SectionWorkExperience || c.index != 2 || c.instruction != "quantify the impact" {
		t.Errorf("Unexpected suggest command: %+v", c)
	}

	c, err = parseChatCommand("/revise  aim at staff roles ")
	if err != nil || c.section != model.SectionWholeResume || c.instruction != "aim at staff roles" {
		t.Errorf("Unexpected revise command: %+v, %v", c, err)
	}

	c, err = parseChatCommand("/quit")
	if err != nil || !c.quit {
		t.Errorf("Expected quit, got %+v, %v", c, err)
	}

	for _, bad := range []string{"/suggest skills", "/suggest skills two", "/revise", "/dance"} {
		if _, err = parseChatCommand(bad); err == nil {
			t.Errorf("Expected an error for %q", bad)
		}
	}
}
