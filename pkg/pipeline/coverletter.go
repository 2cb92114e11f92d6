package pipeline

import (
	"context"
	"strings"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/credentials"
	"github.com/nikogura/resumelm/pkg/extract"
	"github.com/nikogura/resumelm/pkg/llm"
	"github.com/nikogura/resumelm/pkg/model"
)

// CoverLetterInput is a request to write a cover letter for a tailored resume.
type CoverLetterInput struct {
	UserID       string
	ResumeID     string
	CustomPrompt string
	Config       credentials.ClientConfig
	// OnDelta receives each fragment as it is applied. Optional.
	OnDelta llm.DeltaFunc
}

// CoverLetterResult is the outcome of a cover letter run. On failure or cancellation,
// Resume carries whatever partial letter was applied; nothing is persisted.
type CoverLetterResult struct {
	RunID  string
	State  State
	Resume model.Resume
}

// GenerateCoverLetter streams a cover letter into the resume and saves it once complete.
func (r *Runner) GenerateCoverLetter(ctx context.Context, in CoverLetterInput) (result CoverLetterResult, err error) {
	result.State = NewState(FlowCoverLetter, true)

	var resume model.Resume
	resume, err = r.Store.GetResumeByID(ctx, in.UserID, in.ResumeID)
	if err != nil {
		return result, err
	}
	result.Resume = resume

	if resume.JobID == "" {
		err = apierr.Validation("cover letters are written for tailored resumes with a job")
		return result, err
	}

	var job model.Job
	job, err = r.Store.GetJob(ctx, in.UserID, resume.JobID)
	if err != nil {
		return result, err
	}

	rn := r.begin(FlowCoverLetter, true)
	defer func() {
		result.RunID = rn.id
		result.State = rn.state
	}()

	var sb strings.Builder
	letter := &model.CoverLetter{}
	result.Resume.CoverLetter = letter

	onDelta := func(fragment string) (err error) {
		sb.WriteString(fragment)
		letter.Content = sb.String()
		if in.OnDelta != nil {
			err = in.OnDelta(fragment)
		}
		return err
	}

	err = r.Extractor.GenerateCoverLetter(ctx, extract.CoverLetterInput{
		Resume:       resume,
		Job:          &job,
		CustomPrompt: in.CustomPrompt,
		Date:         r.now(),
	}, in.Config, onDelta)
	if err == nil && ctx.Err() != nil {
		err = apierr.Upstream(ctx.Err(), "cover letter cancelled")
	}
	if err != nil {
		err = rn.fail(err)
		return result, err
	}
	rn.advance()

	result.Resume.HasCoverLetter = true

	err = r.Store.UpdateResume(context.WithoutCancel(ctx), result.Resume)
	if err != nil {
		result.Resume.HasCoverLetter = resume.HasCoverLetter
		err = rn.fail(persistFailure(err, "failed to save cover letter"))
		return result, err
	}
	rn.advance()

	return result, err
}
