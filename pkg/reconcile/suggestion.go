package reconcile

import (
	"strings"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/model"
)

// Item returns the item a suggestion for section and index would replace.
func Item(s model.Sections, section string, index int) (item interface{}, err error) {
	var n int
	switch section {
	case model.SectionWorkExperience:
		n = len(s.WorkExperience)
	case model.SectionEducation:
		n = len(s.Education)
	case model.SectionSkills:
		n = len(s.Skills)
	case model.SectionProjects:
		n = len(s.Projects)
	default:
		err = apierr.Newf(apierr.KindValidation, "unknown section %q", section)
		return item, err
	}

	if index < 0 || index >= n {
		err = apierr.Newf(apierr.KindValidation, "%s has no item %d", section, index)
		return item, err
	}

	switch section {
	case model.SectionWorkExperience:
		item = s.WorkExperience[index]
	case model.SectionEducation:
		item = s.Education[index]
	case model.SectionSkills:
		item = s.Skills[index]
	case model.SectionProjects:
		item = s.Projects[index]
	}
	return item, err
}

// Apply returns resume with the suggestion applied. Item suggestions replace exactly one item;
// whole-resume suggestions replace the sections and fill identity fields the suggestion names.
// resume itself is never modified.
func Apply(resume model.Resume, s model.Suggestion) (updated model.Resume, err error) {
	Sanitize(&s)

	updated = resume
	updated.Sections = resume.Sections.Clone()

	if s.Section == model.SectionWholeResume {
		if s.Content == nil {
			err = apierr.Validation("a whole-resume suggestion needs content")
			return resume, err
		}
		updated.Sections = s.Content.Sections.Clone()
		if role := strings.TrimSpace(s.Content.TargetRole); role != "" {
			updated.TargetRole = role
		}
		if s.Contact != nil {
			updated.Contact = Contact(resume.Contact, *s.Contact)
		}
		return updated, err
	}

	_, err = Item(resume.Sections, s.Section, s.Index)
	if err != nil {
		return resume, err
	}

	missing := false
	switch s.Section {
	case model.SectionWorkExperience:
		missing = s.WorkExperience == nil
		if !missing {
			updated.WorkExperience[s.Index] = *s.WorkExperience
		}
	case model.SectionEducation:
		missing = s.Education == nil
		if !missing {
			updated.Education[s.Index] = *s.Education
		}
	case model.SectionSkills:
		missing = s.Skill == nil
		if !missing {
			updated.Skills[s.Index] = *s.Skill
		}
	case model.SectionProjects:
		missing = s.Project == nil
		if !missing {
			updated.Projects[s.Index] = *s.Project
		}
	}

	if missing {
		err = apierr.Newf(apierr.KindValidation, "suggestion for %s carries no item", s.Section)
		return resume, err
	}

	return updated, err
}
