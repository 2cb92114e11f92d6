package extract

import (
	"context"
	"strings"
	"time"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/credentials"
	"github.com/nikogura/resumelm/pkg/llm"
	"github.com/nikogura/resumelm/pkg/model"
)

// DefaultPointCount is used when a caller asks for zero bullet points.
const DefaultPointCount = 3

// resumeDocument is the FullResume/ResumeSection/Profile result shape.
type resumeDocument struct {
	TargetRole string `json:"target_role"`
	model.Contact
	model.Sections
}

type pointsDocument struct {
	Points []string `json:"points"`
}

// FormatJobListing extracts a structured job from a free-text description.
func (s *Service) FormatJobListing(ctx context.Context, text string, cfg credentials.ClientConfig) (job model.Job, err error) {
	if strings.TrimSpace(text) == "" {
		err = apierr.Validation("job description is required")
		return job, err
	}

	var result Result
	result, err = s.Extract(ctx, KindJobListing, text, Context{}, cfg)
	if err != nil {
		return job, err
	}

	err = result.Decode(&job)
	if err != nil {
		return job, err
	}

	job.Keywords = nonNil(job.Keywords)
	job.Requirements = nonNil(job.Requirements)
	job.Qualifications = nonNil(job.Qualifications)

	return job, err
}

// TailorResumeToJob rewrites the base resume's content for the job. The result replaces the content.
func (s *Service) TailorResumeToJob(ctx context.Context, base model.Resume, job model.Job, cfg credentials.ClientConfig) (content model.ResumeContent, err error) {
	var result Result
	result, err = s.Extract(ctx, KindFullResume, "", Context{Existing: base.Content(), TargetRole: base.TargetRole, Job: &job}, cfg)
	if err != nil {
		return content, err
	}

	var doc resumeDocument
	err = result.Decode(&doc)
	if err != nil {
		return content, err
	}

	normalizeSections(&doc.Sections)
	content = model.ResumeContent{TargetRole: doc.TargetRole, Sections: doc.Sections}
	if content.TargetRole == "" {
		content.TargetRole = base.TargetRole
	}

	return content, err
}

// ConvertTextToResume fills a skeleton resume from resume text. Identity fields the model found replace the skeleton's.
func (s *Service) ConvertTextToResume(ctx context.Context, text string, skeleton model.Resume, targetRole string, cfg credentials.ClientConfig) (resume model.Resume, err error) {
	if strings.TrimSpace(text) == "" {
		err = apierr.Validation("resume text is required")
		return resume, err
	}

	var result Result
	result, err = s.Extract(ctx, KindFullResume, text, Context{Existing: skeleton.Content(), TargetRole: targetRole}, cfg)
	if err != nil {
		return resume, err
	}

	var doc resumeDocument
	err = result.Decode(&doc)
	if err != nil {
		return resume, err
	}

	normalizeSections(&doc.Sections)

	resume = skeleton
	resume.Sections = doc.Sections
	resume.Contact = overlayContact(skeleton.Contact, doc.Contact)
	resume.TargetRole = targetRole
	if resume.TargetRole == "" {
		resume.TargetRole = doc.TargetRole
	}

	return resume, err
}

// ExtractResumeSections extracts content from text to be added to an existing resume.
func (s *Service) ExtractResumeSections(ctx context.Context, text string, existing model.Resume, cfg credentials.ClientConfig) (incoming model.Resume, err error) {
	if strings.TrimSpace(text) == "" {
		err = apierr.Validation("resume text is required")
		return incoming, err
	}

	var result Result
	result, err = s.Extract(ctx, KindResumeSection, text, Context{Existing: existing.Content(), TargetRole: existing.TargetRole}, cfg)
	if err != nil {
		return incoming, err
	}

	var doc resumeDocument
	err = result.Decode(&doc)
	if err != nil {
		return incoming, err
	}

	normalizeSections(&doc.Sections)
	incoming = model.Resume{Contact: doc.Contact, Sections: doc.Sections}

	return incoming, err
}

// FormatProfileWithAI parses career text into a profile. existing may be nil.
func (s *Service) FormatProfileWithAI(ctx context.Context, text string, existing *model.Profile, cfg credentials.ClientConfig) (profile model.Profile, err error) {
	if strings.TrimSpace(text) == "" {
		err = apierr.Validation("profile text is required")
		return profile, err
	}

	ectx := Context{}
	if existing != nil {
		ectx.Existing = existing.Sections
	}

	var result Result
	result, err = s.Extract(ctx, KindProfile, text, ectx, cfg)
	if err != nil {
		return profile, err
	}

	var doc resumeDocument
	err = result.Decode(&doc)
	if err != nil {
		return profile, err
	}

	normalizeSections(&doc.Sections)
	profile = model.Profile{Contact: doc.Contact, Sections: doc.Sections}

	return profile, err
}

// GenerateWorkExperiencePoints writes new bullets for a position.
func (s *Service) GenerateWorkExperiencePoints(ctx context.Context, exp model.WorkExperience, targetRole string, count int, customPrompt string, cfg credentials.ClientConfig) (points []string, err error) {
	subject := map[string]interface{}{
		"company":      exp.Company,
		"position":     exp.Position,
		"date":         exp.Date,
		"technologies": exp.Technologies,
		"existing":     exp.Description,
	}
	points, err = s.points(ctx, subject, targetRole, count, customPrompt, cfg)
	return points, err
}

// GenerateProjectPoints writes new bullets for a project.
func (s *Service) GenerateProjectPoints(ctx context.Context, project model.Project, targetRole string, count int, customPrompt string, cfg credentials.ClientConfig) (points []string, err error) {
	subject := map[string]interface{}{
		"name":         project.Name,
		"technologies": project.Technologies,
		"existing":     project.Description,
	}
	points, err = s.points(ctx, subject, targetRole, count, customPrompt, cfg)
	return points, err
}

func (s *Service) points(ctx context.Context, subject interface{}, targetRole string, count int, customPrompt string, cfg credentials.ClientConfig) (points []string, err error) {
	if count <= 0 {
		count = DefaultPointCount
	}

	req := llm.Request{
		System:      systemPrompt,
		Prompt:      buildPointsPrompt(subject, targetRole, count, customPrompt),
		Temperature: llm.Temperature(0.7),
	}

	var result Result
	result, err = s.structured(ctx, KindPoints, req, cfg)
	if err != nil {
		return points, err
	}

	var doc pointsDocument
	err = result.Decode(&doc)
	if err != nil {
		return points, err
	}

	points = nonNil(doc.Points)
	return points, err
}

// ImproveWorkExperience rewrites one work experience bullet.
func (s *Service) ImproveWorkExperience(ctx context.Context, point string, customPrompt string, cfg credentials.ClientConfig) (improved string, err error) {
	improved, err = s.improve(ctx, point, customPrompt, cfg)
	return improved, err
}

// ImproveProject rewrites one project bullet.
func (s *Service) ImproveProject(ctx context.Context, point string, customPrompt string, cfg credentials.ClientConfig) (improved string, err error) {
	improved, err = s.improve(ctx, point, customPrompt, cfg)
	return improved, err
}

func (s *Service) improve(ctx context.Context, point string, customPrompt string, cfg credentials.ClientConfig) (improved string, err error) {
	if strings.TrimSpace(point) == "" {
		err = apierr.Validation("bullet point is required")
		return improved, err
	}

	req := llm.Request{
		System: systemPrompt,
		Prompt: buildImprovePrompt(point, customPrompt),
	}

	improved, err = s.text(ctx, req, cfg)
	return improved, err
}

// CoverLetterInput is what a cover letter is written from.
type CoverLetterInput struct {
	Resume       model.Resume
	Job          *model.Job
	CustomPrompt string
	// Date is printed in the letter. Zero means today.
	Date time.Time
}

// GenerateCoverLetter streams a cover letter. Each fragment is passed to onDelta as it arrives.
func (s *Service) GenerateCoverLetter(ctx context.Context, in CoverLetterInput, cfg credentials.ClientConfig, onDelta llm.DeltaFunc) (err error) {
	if in.Job == nil {
		err = apierr.Validation("a cover letter needs a job")
		return err
	}

	var completer llm.Completer
	completer, err = s.completer(cfg)
	if err != nil {
		return err
	}

	in.Date = coverLetterDate(in.Date)

	req := llm.Request{
		System: "You are an expert cover letter writer.",
		Prompt: buildCoverLetterPrompt(in),
	}

	err = completer.Stream(ctx, req, onDelta)
	return err
}

// overlayContact keeps base values where the incoming value is empty or unknown.
func overlayContact(base, incoming model.Contact) (out model.Contact) {
	pick := func(b, i string) (v string) {
		v = b
		i = strings.TrimSpace(i)
		if i != "" && i != Sentinel {
			v = i
		}
		return v
	}

	out = model.Contact{
		FirstName:   pick(base.FirstName, incoming.FirstName),
		LastName:    pick(base.LastName, incoming.LastName),
		Email:       pick(base.Email, incoming.Email),
		PhoneNumber: pick(base.PhoneNumber, incoming.PhoneNumber),
		Location:    pick(base.Location, incoming.Location),
		Website:     pick(base.Website, incoming.Website),
		LinkedInURL: pick(base.LinkedInURL, incoming.LinkedInURL),
		GitHubURL:   pick(base.GitHubURL, incoming.GitHubURL),
	}
	return out
}
