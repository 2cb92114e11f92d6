package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// GPA bounds.
const (
	MinGPA = 0.0
	MaxGPA = 4.0
)

// Section names used for item selection.
const (
	SectionWorkExperience = "work_experience"
	SectionEducation      = "education"
	SectionSkills         = "skills"
	SectionProjects       = "projects"
)

// EmptySections returns sections with every list present and empty.
func EmptySections() (s Sections) {
	s = Sections{
		WorkExperience: []WorkExperience{},
		Education:      []Education{},
		Skills:         []SkillCategory{},
		Projects:       []Project{},
	}
	return s
}

// EmptyProfile returns the reset skeleton for a profile, keeping its ownership and timestamps.
func EmptyProfile(p Profile) (reset Profile) {
	reset = Profile{
		ID:        p.ID,
		UserID:    p.UserID,
		Sections:  EmptySections(),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	return reset
}

// EmptyResume returns a blank base resume for a target role.
func EmptyResume(targetRole string) (r Resume) {
	r = Resume{
		Name:         targetRole,
		TargetRole:   targetRole,
		IsBaseResume: true,
		Sections:     EmptySections(),
	}
	return r
}

// ParseGPA reads a gpa from a raw JSON number or string. Anything non-numeric or out of bounds is absent.
func ParseGPA(raw json.RawMessage) (gpa *float64) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return gpa
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		text = strings.TrimSpace(s)
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || v < MinGPA || v > MaxGPA {
		return gpa
	}

	gpa = &v
	return gpa
}

// ItemID identifies a section item for profile-to-resume selection.
func ItemID(section string, item interface{}, index int) (id string) {
	var base string
	switch v := item.(type) {
	case WorkExperience:
		base = fmt.Sprintf("%s-%s-%s", v.Company, v.Position, v.Date)
	case Education:
		base = fmt.Sprintf("%s-%s-%s", v.School, v.Degree, v.Field)
	case SkillCategory:
		base = v.Category
	case Project:
		base = v.Name
	}
	id = fmt.Sprintf("%s-%d", base, index)
	return id
}

// Selection lists the chosen item ids per section. A nil Selection selects everything.
type Selection map[string][]string

// Apply filters profile sections down to the selected items.
func (sel Selection) Apply(s Sections) (out Sections) {
	if sel == nil {
		out = s.Clone()
		return out
	}

	out = EmptySections()
	for i, w := range s.WorkExperience {
		if sel.has(SectionWorkExperience, ItemID(SectionWorkExperience, w, i)) {
			out.WorkExperience = append(out.WorkExperience, w)
		}
	}
	for i, e := range s.Education {
		if sel.has(SectionEducation, ItemID(SectionEducation, e, i)) {
			out.Education = append(out.Education, e)
		}
	}
	for i, sk := range s.Skills {
		if sel.has(SectionSkills, ItemID(SectionSkills, sk, i)) {
			out.Skills = append(out.Skills, sk)
		}
	}
	for i, p := range s.Projects {
		if sel.has(SectionProjects, ItemID(SectionProjects, p, i)) {
			out.Projects = append(out.Projects, p)
		}
	}

	out = out.Clone()
	return out
}

func (sel Selection) has(section, id string) (ok bool) {
	for _, candidate := range sel[section] {
		if candidate == id {
			ok = true
			return ok
		}
	}
	return ok
}

// BaseResumeMode is how a base resume's initial content is produced.
type BaseResumeMode string

// Base resume creation modes.
const (
	BaseModeFresh         BaseResumeMode = "fresh"
	BaseModeImportProfile BaseResumeMode = "import-profile"
	BaseModeImportResume  BaseResumeMode = "import-resume"
)

// Valid reports whether m is a known mode.
func (m BaseResumeMode) Valid() (ok bool) {
	switch m {
	case BaseModeFresh, BaseModeImportProfile, BaseModeImportResume:
		ok = true
	}
	return ok
}

// CopiedResumeTitle names a tailored resume created without a job.
const CopiedResumeTitle = "Copied Resume"

// TailoredName derives a tailored resume's name from the job it targets.
func TailoredName(title, company string) (name string) {
	title = strings.TrimSpace(title)
	company = strings.TrimSpace(company)
	switch {
	case title != "" && company != "":
		name = title + " at " + company
	case title != "":
		name = title
	case company != "":
		name = company
	default:
		name = CopiedResumeTitle
	}
	return name
}
