package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/model"
	"github.com/pkg/errors"
	"github.com/qri-io/jsonschema"
)

// Kind is the target schema of a structured extraction.
type Kind string

// Extraction kinds.
const (
	KindProfile       Kind = "profile"
	KindJobListing    Kind = "job_listing"
	KindResumeSection Kind = "resume_section"
	KindFullResume    Kind = "full_resume"
	KindPoints        Kind = "points"

	// Single-item kinds back section suggestions.
	KindWorkExperienceItem Kind = "work_experience_item"
	KindEducationItem      Kind = "education_item"
	KindSkillItem          Kind = "skill_item"
	KindProjectItem        Kind = "project_item"
)

// itemKinds maps a resume section to the kind of one of its items.
//
//nolint:gochecknoglobals // static lookup
var itemKinds = map[string]Kind{
	model.SectionWorkExperience: KindWorkExperienceItem,
	model.SectionEducation:      KindEducationItem,
	model.SectionSkills:         KindSkillItem,
	model.SectionProjects:       KindProjectItem,
}

// Sentinel marks a string the model could not determine.
const Sentinel = "<UNKNOWN>"

const workExperienceSchema = `{
  "type": "object",
  "required": ["company", "position", "description", "technologies"],
  "properties": {
    "company": {"type": "string"},
    "position": {"type": "string"},
    "location": {"type": "string"},
    "date": {"type": "string"},
    "description": {"type": "array", "items": {"type": "string"}},
    "technologies": {"type": "array", "items": {"type": "string"}}
  }
}`

const educationSchema = `{
  "type": "object",
  "required": ["school", "achievements"],
  "properties": {
    "school": {"type": "string"},
    "degree": {"type": "string"},
    "field": {"type": "string"},
    "location": {"type": "string"},
    "date": {"type": "string"},
    "gpa": {"type": ["string", "number", "null"]},
    "achievements": {"type": "array", "items": {"type": "string"}}
  }
}`

const skillSchema = `{
  "type": "object",
  "required": ["category", "items"],
  "properties": {
    "category": {"type": "string"},
    "items": {"type": "array", "items": {"type": "string"}}
  }
}`

const projectSchema = `{
  "type": "object",
  "required": ["name", "description", "technologies"],
  "properties": {
    "name": {"type": "string"},
    "description": {"type": "array", "items": {"type": "string"}},
    "technologies": {"type": "array", "items": {"type": "string"}},
    "url": {"type": "string"},
    "github_url": {"type": "string"},
    "date": {"type": "string"}
  }
}`

const sectionsProperties = `
    "work_experience": {"type": "array", "items": ` + workExperienceSchema + `},
    "education": {"type": "array", "items": ` + educationSchema + `},
    "skills": {"type": "array", "items": ` + skillSchema + `},
    "projects": {"type": "array", "items": ` + projectSchema + `}`

const contactProperties = `
    "first_name": {"type": "string"},
    "last_name": {"type": "string"},
    "email": {"type": "string"},
    "phone_number": {"type": "string"},
    "location": {"type": "string"},
    "website": {"type": "string"},
    "linkedin_url": {"type": "string"},
    "github_url": {"type": "string"}`

// schemaSources holds the JSON Schema for each kind.
//
//nolint:gochecknoglobals // static schema table
var schemaSources = map[Kind]string{
	KindProfile: `{
  "type": "object",
  "required": ["work_experience", "education", "skills", "projects"],
  "properties": {` + contactProperties + `,` + sectionsProperties + `
  }
}`,
	KindResumeSection: `{
  "type": "object",
  "required": ["work_experience", "education", "skills", "projects"],
  "properties": {` + contactProperties + `,` + sectionsProperties + `
  }
}`,
	KindFullResume: `{
  "type": "object",
  "required": ["work_experience", "education", "skills", "projects"],
  "properties": {
    "target_role": {"type": "string"},` + contactProperties + `,` + sectionsProperties + `
  }
}`,
	KindJobListing: `{
  "type": "object",
  "required": ["position_title", "company_name", "keywords", "requirements", "qualifications"],
  "properties": {
    "position_title": {"type": "string"},
    "company_name": {"type": "string"},
    "job_url": {"type": "string"},
    "description": {"type": "string"},
    "location": {"type": "string"},
    "salary_range": {"type": "string"},
    "work_location": {"type": "string"},
    "employment_type": {"type": "string"},
    "keywords": {"type": "array", "items": {"type": "string"}},
    "requirements": {"type": "array", "items": {"type": "string"}},
    "qualifications": {"type": "array", "items": {"type": "string"}}
  }
}`,
	KindPoints: `{
  "type": "object",
  "required": ["points"],
  "properties": {
    "points": {"type": "array", "items": {"type": "string"}}
  }
}`,
	KindWorkExperienceItem: workExperienceSchema,
	KindEducationItem:      educationSchema,
	KindSkillItem:          skillSchema,
	KindProjectItem:        projectSchema,
}

// compileSchemas parses every schema once.
func compileSchemas() (schemas map[Kind]*jsonschema.Schema, err error) {
	schemas = make(map[Kind]*jsonschema.Schema, len(schemaSources))
	for kind, src := range schemaSources {
		rs := &jsonschema.Schema{}
		err = json.Unmarshal([]byte(src), rs)
		if err != nil {
			err = errors.Wrapf(err, "failed to compile %s schema", kind)
			return schemas, err
		}
		schemas[kind] = rs
	}
	return schemas, err
}

// validate checks data against the kind's schema. Violations are upstream failures.
func validate(ctx context.Context, rs *jsonschema.Schema, kind Kind, data []byte) (err error) {
	var keyErrs []jsonschema.KeyError
	keyErrs, err = rs.ValidateBytes(ctx, data)
	if err != nil {
		err = apierr.Upstream(err, "failed to validate "+string(kind)+" output")
		return err
	}

	if len(keyErrs) > 0 {
		msgs := make([]string, 0, len(keyErrs))
		for _, ke := range keyErrs {
			msgs = append(msgs, ke.PropertyPath+": "+ke.Message)
		}
		err = apierr.Upstream(errors.New(strings.Join(msgs, "; ")), string(kind)+" output does not match schema")
		return err
	}

	return err
}
