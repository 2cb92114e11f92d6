package pipeline

import (
	"context"
	"strings"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/credentials"
	"github.com/nikogura/resumelm/pkg/extract"
	"github.com/nikogura/resumelm/pkg/llm"
	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/reconcile"
)

// ChatInput is one user turn of the resume assistant.
type ChatInput struct {
	UserID       string
	ResumeID     string
	History      []extract.ChatMessage
	Message      string
	CustomPrompt string
	Config       credentials.ClientConfig
	// OnDelta receives each fragment of the reply. Optional.
	OnDelta llm.DeltaFunc
}

// ChatResult is the outcome of one turn. On failure or cancellation Reply holds what had
// streamed so far and History is unchanged.
type ChatResult struct {
	RunID   string
	State   State
	Reply   string
	History []extract.ChatMessage
}

// Chat streams the assistant's reply to one message about a resume. Chat never writes to the store.
func (r *Runner) Chat(ctx context.Context, in ChatInput) (result ChatResult, err error) {
	result.State = NewState(FlowChat, true)
	result.History = in.History

	if strings.TrimSpace(in.Message) == "" {
		err = apierr.Validation("a message is required")
		return result, err
	}

	var resume model.Resume
	var job *model.Job
	resume, job, err = r.resumeWithJob(ctx, in.UserID, in.ResumeID)
	if err != nil {
		return result, err
	}

	rn := r.begin(FlowChat, true)
	defer func() {
		result.RunID = rn.id
		result.State = rn.state
	}()

	var sb strings.Builder
	onDelta := func(fragment string) (err error) {
		sb.WriteString(fragment)
		result.Reply = sb.String()
		if in.OnDelta != nil {
			err = in.OnDelta(fragment)
		}
		return err
	}

	err = r.Extractor.Chat(ctx, extract.ChatInput{
		Resume:       resume,
		Job:          job,
		History:      in.History,
		Message:      in.Message,
		CustomPrompt: in.CustomPrompt,
	}, in.Config, onDelta)
	if err == nil && ctx.Err() != nil {
		err = apierr.Upstream(ctx.Err(), "reply cancelled")
	}
	if err != nil {
		err = rn.fail(err)
		return result, err
	}
	rn.advance()

	history := make([]extract.ChatMessage, 0, len(in.History)+2)
	history = append(history, in.History...)
	history = append(history,
		extract.ChatMessage{Role: extract.RoleUser, Content: in.Message},
		extract.ChatMessage{Role: extract.RoleAssistant, Content: result.Reply},
	)
	result.History = history

	return result, err
}

// SuggestionInput asks for an improvement to one item, or to the whole resume when Section is
// model.SectionWholeResume.
type SuggestionInput struct {
	UserID      string
	ResumeID    string
	Section     string
	Index       int
	Instruction string
	Config      credentials.ClientConfig
}

// SuggestionResult carries the proposal and the resume as it would look with it applied.
type SuggestionResult struct {
	RunID      string
	State      State
	Suggestion model.Suggestion
	Preview    model.Resume
}

// Suggest proposes an edit without saving it. ApplySuggestion saves an accepted one.
func (r *Runner) Suggest(ctx context.Context, in SuggestionInput) (result SuggestionResult, err error) {
	result.State = NewState(FlowSuggestion, true)

	var resume model.Resume
	var job *model.Job
	resume, job, err = r.resumeWithJob(ctx, in.UserID, in.ResumeID)
	if err != nil {
		return result, err
	}

	whole := in.Section == model.SectionWholeResume
	if whole && strings.TrimSpace(in.Instruction) == "" {
		err = apierr.Validation("revision instructions are required")
		return result, err
	}
	if !whole {
		_, err = reconcile.Item(resume.Sections, in.Section, in.Index)
		if err != nil {
			return result, err
		}
	}

	rn := r.begin(FlowSuggestion, true)
	defer func() {
		result.RunID = rn.id
		result.State = rn.state
	}()

	req := extract.SuggestionInput{
		Resume:      resume,
		Job:         job,
		Section:     in.Section,
		Index:       in.Index,
		Instruction: in.Instruction,
	}

	var suggestion model.Suggestion
	if whole {
		suggestion, err = r.Extractor.ReviseResume(ctx, req, in.Config)
	} else {
		suggestion, err = r.Extractor.SuggestImprovement(ctx, req, in.Config)
	}
	if err != nil {
		err = rn.fail(err)
		return result, err
	}

	var preview model.Resume
	preview, err = reconcile.Apply(resume, suggestion)
	if err != nil {
		err = rn.fail(apierr.Upstream(err, "model returned an unusable suggestion"))
		return result, err
	}
	rn.advance()

	result.Suggestion = suggestion
	result.Preview = preview
	return result, err
}

// ApplySuggestion applies an accepted suggestion to the stored resume and saves it.
func (r *Runner) ApplySuggestion(ctx context.Context, userID, resumeID string, suggestion model.Suggestion) (updated model.Resume, err error) {
	var resume model.Resume
	resume, err = r.Store.GetResumeByID(ctx, userID, resumeID)
	if err != nil {
		return updated, err
	}

	updated, err = reconcile.Apply(resume, suggestion)
	if err != nil {
		return updated, err
	}

	err = r.Store.UpdateResume(context.WithoutCancel(ctx), updated)
	if err != nil {
		err = persistFailure(err, "failed to save resume")
		return resume, err
	}

	logger.Info("suggestion applied", "resume_id", resumeID, "section", suggestion.Section, "index", suggestion.Index)
	return updated, err
}

// resumeWithJob loads a resume and, for a tailored one, its job.
func (r *Runner) resumeWithJob(ctx context.Context, userID, resumeID string) (resume model.Resume, job *model.Job, err error) {
	resume, err = r.Store.GetResumeByID(ctx, userID, resumeID)
	if err != nil {
		return resume, job, err
	}

	if resume.JobID == "" {
		return resume, job, err
	}

	var j model.Job
	j, err = r.Store.GetJob(ctx, userID, resume.JobID)
	if err != nil {
		return resume, job, err
	}
	job = &j
	return resume, job, err
}
