// Package renderer turns resumes into Markdown and, through pandoc, into PDF or DOCX.
package renderer

import (
	"strconv"
	"strings"

	"github.com/nikogura/resumelm/pkg/model"
)

// Markdown renders a resume. Empty sections are omitted.
func Markdown(r model.Resume) (md string) {
	var b strings.Builder

	name := r.FullName()
	if name == "" {
		name = r.Name
	}
	b.WriteString("# " + name + "\n\n")

	contact := nonEmpty(r.Email, r.PhoneNumber, r.Location, r.Website, r.LinkedInURL, r.GitHubURL)
	if len(contact) > 0 {
		b.WriteString(strings.Join(contact, " · ") + "\n\n")
	}

	if len(r.WorkExperience) > 0 {
		b.WriteString("## Experience\n\n")
		for _, w := range r.WorkExperience {
			b.WriteString("### " + joinNonEmpty(", ", w.Position, w.Company) + "\n\n")
			writeMeta(&b, w.Date, w.Location)
			writeBullets(&b, w.Description)
			writeTechnologies(&b, w.Technologies)
		}
	}

	if len(r.Education) > 0 {
		b.WriteString("## Education\n\n")
		for _, e := range r.Education {
			degree := e.Degree
			if e.Field != "" {
				degree = joinNonEmpty(" in ", e.Degree, e.Field)
			}
			b.WriteString("### " + joinNonEmpty(", ", degree, e.School) + "\n\n")
			var gpa string
			if e.GPA != nil {
				gpa = "GPA " + strconv.FormatFloat(*e.GPA, 'f', 2, 64)
			}
			writeMeta(&b, e.Date, e.Location, gpa)
			writeBullets(&b, e.Achievements)
		}
	}

	if len(r.Skills) > 0 {
		b.WriteString("## Skills\n\n")
		for _, s := range r.Skills {
			if len(s.Items) == 0 {
				continue
			}
			b.WriteString("- **" + s.Category + ":** " + strings.Join(s.Items, ", ") + "\n")
		}
		b.WriteString("\n")
	}

	if len(r.Projects) > 0 {
		b.WriteString("## Projects\n\n")
		for _, p := range r.Projects {
			b.WriteString("### " + p.Name + "\n\n")
			writeMeta(&b, p.Date, p.URL, p.GitHubURL)
			writeBullets(&b, p.Description)
			writeTechnologies(&b, p.Technologies)
		}
	}

	md = strings.TrimRight(b.String(), "\n") + "\n"
	return md
}

// CoverLetterMarkdown renders a resume's cover letter, or "" when it has none.
func CoverLetterMarkdown(r model.Resume) (md string) {
	if r.CoverLetter == nil || strings.TrimSpace(r.CoverLetter.Content) == "" {
		return md
	}
	md = strings.TrimSpace(r.CoverLetter.Content) + "\n"
	return md
}

func writeMeta(b *strings.Builder, parts ...string) {
	meta := nonEmpty(parts...)
	if len(meta) == 0 {
		return
	}
	b.WriteString("*" + strings.Join(meta, " · ") + "*\n\n")
}

func writeBullets(b *strings.Builder, lines []string) {
	written := false
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		b.WriteString("- " + l + "\n")
		written = true
	}
	if written {
		b.WriteString("\n")
	}
}

func writeTechnologies(b *strings.Builder, tech []string) {
	tech = nonEmpty(tech...)
	if len(tech) == 0 {
		return
	}
	b.WriteString("Technologies: " + strings.Join(tech, ", ") + "\n\n")
}

func nonEmpty(values ...string) (out []string) {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func joinNonEmpty(sep string, values ...string) (joined string) {
	joined = strings.Join(nonEmpty(values...), sep)
	return joined
}
