package model

import (
	"encoding/json"
	"time"
)

// Contact holds the identity fields shared by profiles and resumes.
type Contact struct {
	FirstName   string `json:"first_name" yaml:"first_name"`
	LastName    string `json:"last_name" yaml:"last_name"`
	Email       string `json:"email" yaml:"email"`
	PhoneNumber string `json:"phone_number,omitempty" yaml:"phone_number,omitempty"`
	Location    string `json:"location,omitempty" yaml:"location,omitempty"`
	Website     string `json:"website,omitempty" yaml:"website,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty" yaml:"linkedin_url,omitempty"`
	GitHubURL   string `json:"github_url,omitempty" yaml:"github_url,omitempty"`
}

// Sections holds the list-of-record content shared by profiles and resumes.
type Sections struct {
	WorkExperience []WorkExperience `json:"work_experience" yaml:"work_experience"`
	Education      []Education      `json:"education" yaml:"education"`
	Skills         []SkillCategory  `json:"skills" yaml:"skills"`
	Projects       []Project        `json:"projects" yaml:"projects"`
}

// Profile is a user's canonical career record.
type Profile struct {
	ID     string `json:"id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Contact
	Sections
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// CoverLetter is the narrative attached to a tailored resume.
type CoverLetter struct {
	Content string `json:"content"`
}

// Resume is a base or tailored document derived from a profile.
type Resume struct {
	ID           string `json:"id,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	JobID        string `json:"job_id,omitempty"`
	Name         string `json:"name"`
	TargetRole   string `json:"target_role"`
	IsBaseResume bool   `json:"is_base_resume"`
	Contact
	Sections
	HasCoverLetter bool         `json:"has_cover_letter"`
	CoverLetter    *CoverLetter `json:"cover_letter,omitempty"`
	CreatedAt      time.Time    `json:"created_at,omitempty"`
	UpdatedAt      time.Time    `json:"updated_at,omitempty"`
}

// ResumeContent is the section payload produced by tailoring.
type ResumeContent struct {
	TargetRole string `json:"target_role,omitempty"`
	Sections
}

// Job is a structured job posting.
type Job struct {
	ID             string    `json:"id,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	CompanyName    string    `json:"company_name"`
	PositionTitle  string    `json:"position_title"`
	JobURL         string    `json:"job_url,omitempty"`
	Description    string    `json:"description,omitempty"`
	Location       string    `json:"location,omitempty"`
	SalaryRange    string    `json:"salary_range,omitempty"`
	WorkLocation   string    `json:"work_location,omitempty"`
	EmploymentType string    `json:"employment_type,omitempty"`
	Keywords       []string  `json:"keywords"`
	Requirements   []string  `json:"requirements"`
	Qualifications []string  `json:"qualifications"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

// WorkExperience is one position held.
type WorkExperience struct {
	Company      string   `json:"company"`
	Position     string   `json:"position"`
	Location     string   `json:"location,omitempty"`
	Date         string   `json:"date"`
	Description  []string `json:"description"`
	Technologies []string `json:"technologies"`
}

// Education is one degree or course of study.
type Education struct {
	School       string   `json:"school"`
	Degree       string   `json:"degree"`
	Field        string   `json:"field"`
	Location     string   `json:"location,omitempty"`
	Date         string   `json:"date"`
	GPA          *float64 `json:"gpa,omitempty"`
	Achievements []string `json:"achievements"`
}

// Project is a personal or professional project.
type Project struct {
	Name         string   `json:"name"`
	Description  []string `json:"description"`
	Technologies []string `json:"technologies"`
	URL          string   `json:"url,omitempty"`
	GitHubURL    string   `json:"github_url,omitempty"`
	Date         string   `json:"date,omitempty"`
}

// SkillCategory groups skills under a category name.
type SkillCategory struct {
	Category string   `json:"category"`
	Items    []string `json:"items"`
}

// PresentDate marks an ongoing position.
const PresentDate = "Present"

// UnmarshalJSON accepts gpa as a number or a string.
func (e *Education) UnmarshalJSON(data []byte) (err error) {
	type plain Education
	var aux struct {
		plain
		GPA json.RawMessage `json:"gpa,omitempty"`
	}

	err = json.Unmarshal(data, &aux)
	if err != nil {
		return err
	}

	*e = Education(aux.plain)
	e.GPA = ParseGPA(aux.GPA)

	return err
}

// Clone returns a deep copy of the sections.
func (s Sections) Clone() (c Sections) {
	c.WorkExperience = make([]WorkExperience, len(s.WorkExperience))
	for i, w := range s.WorkExperience {
		w.Description = cloneStrings(w.Description)
		w.Technologies = cloneStrings(w.Technologies)
		c.WorkExperience[i] = w
	}

	c.Education = make([]Education, len(s.Education))
	for i, e := range s.Education {
		e.Achievements = cloneStrings(e.Achievements)
		if e.GPA != nil {
			gpa := *e.GPA
			e.GPA = &gpa
		}
		c.Education[i] = e
	}

	c.Skills = make([]SkillCategory, len(s.Skills))
	for i, sk := range s.Skills {
		sk.Items = cloneStrings(sk.Items)
		c.Skills[i] = sk
	}

	c.Projects = make([]Project, len(s.Projects))
	for i, p := range s.Projects {
		p.Description = cloneStrings(p.Description)
		p.Technologies = cloneStrings(p.Technologies)
		c.Projects[i] = p
	}

	return c
}

// FullName joins first and last name.
func (c Contact) FullName() (name string) {
	name = c.FirstName
	if c.LastName != "" {
		if name != "" {
			name += " "
		}
		name += c.LastName
	}
	return name
}

// Content returns the tailorable part of a resume.
func (r Resume) Content() (content ResumeContent) {
	content = ResumeContent{
		TargetRole: r.TargetRole,
		Sections:   r.Sections.Clone(),
	}
	return content
}

func cloneStrings(in []string) (out []string) {
	out = make([]string, len(in))
	copy(out, in)
	return out
}
