package extract

import (
	"context"
	"strings"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/credentials"
	"github.com/nikogura/resumelm/pkg/llm"
	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/reconcile"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation about a resume.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatInput is one user turn with the resume it is about.
type ChatInput struct {
	Resume       model.Resume
	Job          *model.Job
	History      []ChatMessage
	Message      string
	CustomPrompt string
}

// Chat streams the assistant's reply to one user message. Each fragment is passed to onDelta as it arrives.
func (s *Service) Chat(ctx context.Context, in ChatInput, cfg credentials.ClientConfig, onDelta llm.DeltaFunc) (err error) {
	if strings.TrimSpace(in.Message) == "" {
		err = apierr.Validation("a message is required")
		return err
	}

	var completer llm.Completer
	completer, err = s.completer(cfg)
	if err != nil {
		return err
	}

	req := llm.Request{
		System:      chatSystemPrompt,
		Prompt:      buildChatPrompt(in),
		Temperature: llm.Temperature(0.5),
	}

	err = completer.Stream(ctx, req, onDelta)
	return err
}

// SuggestionInput asks for an improved item, or for a revision of the whole resume when
// Section is model.SectionWholeResume.
type SuggestionInput struct {
	Resume      model.Resume
	Job         *model.Job
	Section     string
	Index       int
	Instruction string
}

// SuggestImprovement proposes a replacement for one section item. Nothing is applied.
func (s *Service) SuggestImprovement(ctx context.Context, in SuggestionInput, cfg credentials.ClientConfig) (suggestion model.Suggestion, err error) {
	kind, ok := itemKinds[in.Section]
	if !ok {
		err = apierr.Newf(apierr.KindValidation, "unknown section %q", in.Section)
		return suggestion, err
	}

	var item interface{}
	item, err = reconcile.Item(in.Resume.Sections, in.Section, in.Index)
	if err != nil {
		return suggestion, err
	}

	req := llm.Request{
		System: systemPrompt,
		Prompt: buildSuggestionPrompt(in, item),
	}

	var result Result
	result, err = s.structured(ctx, kind, req, cfg)
	if err != nil {
		return suggestion, err
	}

	suggestion = model.Suggestion{Section: in.Section, Index: in.Index}

	switch in.Section {
	case model.SectionWorkExperience:
		suggestion.WorkExperience = &model.WorkExperience{}
		err = result.Decode(suggestion.WorkExperience)
	case model.SectionEducation:
		suggestion.Education = &model.Education{}
		err = result.Decode(suggestion.Education)
	case model.SectionSkills:
		suggestion.Skill = &model.SkillCategory{}
		err = result.Decode(suggestion.Skill)
	case model.SectionProjects:
		suggestion.Project = &model.Project{}
		err = result.Decode(suggestion.Project)
	}
	if err != nil {
		return suggestion, err
	}

	normalizeSuggestion(&suggestion)
	return suggestion, err
}

// ReviseResume proposes a rewrite of every section as instructed. Nothing is applied.
func (s *Service) ReviseResume(ctx context.Context, in SuggestionInput, cfg credentials.ClientConfig) (suggestion model.Suggestion, err error) {
	if strings.TrimSpace(in.Instruction) == "" {
		err = apierr.Validation("revision instructions are required")
		return suggestion, err
	}

	req := llm.Request{
		System: systemPrompt,
		Prompt: buildRevisePrompt(in),
	}

	var result Result
	result, err = s.structured(ctx, KindFullResume, req, cfg)
	if err != nil {
		return suggestion, err
	}

	var doc resumeDocument
	err = result.Decode(&doc)
	if err != nil {
		return suggestion, err
	}

	normalizeSections(&doc.Sections)
	contact := doc.Contact
	suggestion = model.Suggestion{
		Section: model.SectionWholeResume,
		Content: &model.ResumeContent{TargetRole: doc.TargetRole, Sections: doc.Sections},
		Contact: &contact,
	}
	return suggestion, err
}

// normalizeSuggestion replaces nil lists in the suggested item with empty ones.
func normalizeSuggestion(s *model.Suggestion) {
	sections := model.Sections{}
	if s.WorkExperience != nil {
		sections.WorkExperience = []model.WorkExperience{*s.WorkExperience}
	}
	if s.Education != nil {
		sections.Education = []model.Education{*s.Education}
	}
	if s.Skill != nil {
		sections.Skills = []model.SkillCategory{*s.Skill}
	}
	if s.Project != nil {
		sections.Projects = []model.Project{*s.Project}
	}

	normalizeSections(&sections)

	if s.WorkExperience != nil {
		*s.WorkExperience = sections.WorkExperience[0]
	}
	if s.Education != nil {
		*s.Education = sections.Education[0]
	}
	if s.Skill != nil {
		*s.Skill = sections.Skills[0]
	}
	if s.Project != nil {
		*s.Project = sections.Projects[0]
	}
}
