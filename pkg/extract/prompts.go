package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/llm"
	"github.com/nikogura/resumelm/pkg/model"
)

const systemPrompt = `You are an expert resume writer and career data extraction assistant. You only return information that is present in the input. When a required string cannot be determined, use the literal value "` + Sentinel + `". Never invent employers, dates, degrees, metrics or technologies.`

const sectionsShape = `{
  "first_name": "string",
  "last_name": "string",
  "email": "string",
  "phone_number": "string",
  "location": "string",
  "website": "string",
  "linkedin_url": "string",
  "github_url": "string",
  "work_experience": [
    {"company": "string", "position": "string", "location": "string", "date": "string (use ` + model.PresentDate + ` for ongoing)", "description": ["bullet"], "technologies": ["tech"]}
  ],
  "education": [
    {"school": "string", "degree": "string", "field": "string", "location": "string", "date": "string", "gpa": "number 0.0-4.0 or omit", "achievements": ["string"]}
  ],
  "skills": [
    {"category": "string", "items": ["skill"]}
  ],
  "projects": [
    {"name": "string", "description": ["bullet"], "technologies": ["tech"], "url": "string", "github_url": "string", "date": "string"}
  ]
}`

const jobShape = `{
  "position_title": "string",
  "company_name": "string",
  "job_url": "string",
  "description": "string (short summary)",
  "location": "string",
  "salary_range": "string",
  "work_location": "remote | in_person | hybrid",
  "employment_type": "full_time | part_time | co_op | internship | contract",
  "keywords": ["string"],
  "requirements": ["string"],
  "qualifications": ["string"]
}`

// buildExtractionRequest creates the request for a structured extraction kind.
func buildExtractionRequest(kind Kind, rawText string, ectx Context) (req llm.Request, err error) {
	req = llm.Request{System: systemPrompt}

	switch kind {
	case KindJobListing:
		req.Prompt = buildJobPrompt(rawText)
	case KindProfile:
		req.Prompt = buildProfilePrompt(rawText, ectx)
	case KindResumeSection:
		req.Prompt = buildSectionPrompt(rawText, ectx)
	case KindFullResume:
		if ectx.Job != nil {
			req.Prompt = buildTailorPrompt(ectx)
		} else {
			req.Prompt = buildConvertPrompt(rawText, ectx)
		}
	default:
		err = apierr.Newf(apierr.KindValidation, "kind %q is not extractable from text", kind)
		return req, err
	}

	return req, err
}

func buildJobPrompt(text string) (prompt string) {
	prompt = fmt.Sprintf(`Extract the structured job listing from this job description.

JOB DESCRIPTION:
%s

Rules:
- position_title and company_name are required
- keywords are the technologies and skills a screener would search for
- requirements are the must-haves, qualifications the nice-to-haves
- use empty arrays when nothing applies

Return ONLY valid JSON in this exact format (no markdown, no commentary):
%s`, text, jobShape)

	return prompt
}

func buildProfilePrompt(text string, ectx Context) (prompt string) {
	prompt = fmt.Sprintf(`Parse this resume or career text into a structured profile.

TEXT:
%s
%s
Return ONLY valid JSON in this exact format (no markdown, no commentary):
%s`, text, existingSection(ectx.Existing, "EXISTING PROFILE (do not repeat entries already present)"), sectionsShape)

	return prompt
}

func buildSectionPrompt(text string, ectx Context) (prompt string) {
	prompt = fmt.Sprintf(`Extract resume content from this text so it can be added to an existing resume.

TEXT:
%s
%s%s
Only return information not already present in the existing resume. Use empty arrays for sections with nothing new.

Return ONLY valid JSON in this exact format (no markdown, no commentary):
%s`, text, existingSection(ectx.Existing, "EXISTING RESUME"), roleSection(ectx.TargetRole), sectionsShape)

	return prompt
}

func buildConvertPrompt(text string, ectx Context) (prompt string) {
	prompt = fmt.Sprintf(`Convert this resume text into a structured resume.

TEXT:
%s
%s
Keep the original wording of bullets. Order each section most recent first.

Return ONLY valid JSON in this exact format (no markdown, no commentary), adding "target_role":
%s`, text, roleSection(ectx.TargetRole), sectionsShape)

	return prompt
}

func buildTailorPrompt(ectx Context) (prompt string) {
	jobJSON, _ := json.MarshalIndent(ectx.Job, "", "  ")
	resumeJSON, _ := json.MarshalIndent(ectx.Existing, "", "  ")

	prompt = fmt.Sprintf(`Tailor this resume to the job below.

JOB:
%s

BASE RESUME:
%s

Rules:
- Rewrite, re-rank and trim every section for relevance to the job
- Reword bullets to use the job's keywords only where the experience supports it
- Never add employers, projects, degrees or technologies that are not in the base resume
- Keep dates, companies, schools and project names exactly as given

Return ONLY valid JSON with "target_role" and the four sections, in this exact format (no markdown, no commentary):
%s`, string(jobJSON), string(resumeJSON), sectionsShape)

	return prompt
}

func buildPointsPrompt(subject interface{}, targetRole string, count int, customPrompt string) (prompt string) {
	subjectJSON, _ := json.MarshalIndent(subject, "", "  ")

	prompt = fmt.Sprintf(`Write %d resume bullet points for this entry.

ENTRY:
%s
%s%s
Each bullet starts with a strong action verb, is one sentence, and quantifies impact when the entry supports it.

Return ONLY valid JSON (no markdown, no commentary):
{"points": ["bullet"]}`, count, string(subjectJSON), roleSection(targetRole), customSection(customPrompt))

	return prompt
}

func buildImprovePrompt(point string, customPrompt string) (prompt string) {
	prompt = fmt.Sprintf(`Improve this resume bullet point. Keep the facts, tighten the wording, lead with an action verb.

BULLET:
%s
%s
Return ONLY the improved bullet text.`, point, customSection(customPrompt))

	return prompt
}

func buildCoverLetterPrompt(in CoverLetterInput) (prompt string) {
	jobJSON, _ := json.MarshalIndent(in.Job, "", "  ")
	resumeJSON, _ := json.MarshalIndent(in.Resume.Content(), "", "  ")

	contact := []string{in.Resume.FullName(), in.Resume.Email, in.Resume.PhoneNumber, in.Resume.Location}
	lines := make([]string, 0, len(contact))
	for _, c := range contact {
		if c != "" {
			lines = append(lines, c)
		}
	}

	prompt = fmt.Sprintf(`Write a cover letter for this job using this resume.

JOB:
%s

RESUME:
%s

TODAY'S DATE: %s

CONTACT INFO:
%s
%s
Write plain text paragraphs with a greeting and a sign-off. Do not use placeholders.`,
		string(jobJSON), string(resumeJSON), in.Date.Format("January 2, 2006"), strings.Join(lines, "\n"), customSection(in.CustomPrompt))

	return prompt
}

const chatSystemPrompt = `You are a resume assistant. You help the user improve the resume below: answer questions about it, point out weak bullets, and explain how to target a role. Only talk about facts present in the resume. Keep answers short and concrete. When an item should be rewritten, say which section and item number (starting at 0) so the user can ask for a suggestion.`

func buildChatPrompt(in ChatInput) (prompt string) {
	resumeJSON, _ := json.MarshalIndent(chatResume(in.Resume), "", "  ")

	var sb strings.Builder
	fmt.Fprintf(&sb, "RESUME:\n%s\n", string(resumeJSON))
	if in.Job != nil {
		jobJSON, _ := json.MarshalIndent(in.Job, "", "  ")
		fmt.Fprintf(&sb, "\nJOB:\n%s\n", string(jobJSON))
	}
	sb.WriteString(customSection(in.CustomPrompt))

	if len(in.History) > 0 {
		sb.WriteString("\nCONVERSATION SO FAR:\n")
		for _, m := range in.History {
			fmt.Fprintf(&sb, "%s: %s\n", strings.ToUpper(m.Role), m.Content)
		}
	}

	fmt.Fprintf(&sb, "\nUSER: %s\nASSISTANT:", in.Message)
	prompt = sb.String()
	return prompt
}

// chatResume is the view of a resume the assistant reads: identity, role and sections.
func chatResume(r model.Resume) (view map[string]interface{}) {
	view = map[string]interface{}{
		"personal_info":             r.Contact,
		"target_role":               r.TargetRole,
		model.SectionWorkExperience: r.WorkExperience,
		model.SectionEducation:      r.Education,
		model.SectionSkills:         r.Skills,
		model.SectionProjects:       r.Projects,
	}
	return view
}

func buildSuggestionPrompt(in SuggestionInput, item interface{}) (prompt string) {
	itemJSON, _ := json.MarshalIndent(item, "", "  ")

	prompt = fmt.Sprintf(`Improve one %s entry of a resume.

CURRENT ENTRY:
%s
%s%s%s
Keep names, employers, schools, dates and technologies that are given. Do not invent facts.
Return ONLY the improved entry as valid JSON with the same fields as the current entry (no markdown, no commentary).`,
		strings.ReplaceAll(in.Section, "_", " "), string(itemJSON), roleSection(in.Resume.TargetRole), jobSection(in.Job), customSection(in.Instruction))

	return prompt
}

func buildRevisePrompt(in SuggestionInput) (prompt string) {
	resumeJSON, _ := json.MarshalIndent(chatResume(in.Resume), "", "  ")

	prompt = fmt.Sprintf(`Revise this resume as instructed.

RESUME:
%s
%s%s
Keep every employer, school, project and date unless the instructions say to remove it. Do not invent facts.

Return ONLY valid JSON with "target_role", the contact fields and the four sections, in this exact format (no markdown, no commentary):
%s`, string(resumeJSON), jobSection(in.Job), customSection(in.Instruction), sectionsShape)

	return prompt
}

func jobSection(job *model.Job) (section string) {
	if job == nil {
		return section
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return section
	}
	section = fmt.Sprintf("\nJOB:\n%s\n", string(data))
	return section
}

func existingSection(existing interface{}, title string) (section string) {
	if existing == nil {
		return section
	}
	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return section
	}
	section = fmt.Sprintf("\n%s:\n%s\n", title, string(data))
	return section
}

func roleSection(targetRole string) (section string) {
	if targetRole != "" {
		section = fmt.Sprintf("\nTARGET ROLE: %s\n", targetRole)
	}
	return section
}

func customSection(customPrompt string) (section string) {
	if strings.TrimSpace(customPrompt) != "" {
		section = fmt.Sprintf("\nADDITIONAL INSTRUCTIONS:\n%s\n", customPrompt)
	}
	return section
}

// coverLetterDate defaults a zero date to today.
func coverLetterDate(t time.Time) (d time.Time) {
	d = t
	if d.IsZero() {
		d = time.Now()
	}
	return d
}
