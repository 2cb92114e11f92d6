package model

// SectionWholeResume addresses every section of a resume at once.
const SectionWholeResume = "all"

// Suggestion is a proposed edit: one replacement item for a section, or a rewrite of the whole resume.
type Suggestion struct {
	Section string `json:"section"`
	// Index is the position of the replaced item. Ignored for SectionWholeResume.
	Index int `json:"index"`

	WorkExperience *WorkExperience `json:"work_experience,omitempty"`
	Education      *Education      `json:"education,omitempty"`
	Skill          *SkillCategory  `json:"skill,omitempty"`
	Project        *Project        `json:"project,omitempty"`

	// Content and Contact are set for whole-resume rewrites. Empty contact fields are left alone.
	Content *ResumeContent `json:"content,omitempty"`
	Contact *Contact       `json:"contact,omitempty"`
}
