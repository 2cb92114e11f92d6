package pipeline

import (
	"context"
	"strings"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/credentials"
	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/reconcile"
)

// Mode selects how a tailored resume's content is produced.
type Mode int

const (
	// ModeAI rewrites the base resume against the job.
	ModeAI Mode = iota
	// ModeDirectCopy copies the base resume verbatim. The job description is optional.
	ModeDirectCopy
)

// TailorInput is a request to derive a tailored resume from a base resume.
type TailorInput struct {
	UserID         string
	BaseResumeID   string
	JobDescription string
	Mode           Mode
	Config         credentials.ClientConfig
}

// Validate checks the preconditions that must hold before a run starts.
func (in TailorInput) Validate() (err error) {
	if strings.TrimSpace(in.BaseResumeID) == "" {
		err = apierr.Validation("select a base resume")
		return err
	}

	if in.Mode == ModeAI && strings.TrimSpace(in.JobDescription) == "" {
		err = apierr.Validation("job description is required")
		return err
	}

	return err
}

// TailorResult is the outcome of a tailoring run.
type TailorResult struct {
	RunID  string
	State  State
	Resume model.Resume
	// Job is set once the job has been persisted, even if a later stage failed.
	Job *model.Job
}

// Tailor runs the tailoring pipeline. Stages run strictly in order and the first failure
// ends the run. A job persisted before a later failure is left in place.
func (r *Runner) Tailor(ctx context.Context, in TailorInput) (result TailorResult, err error) {
	withJob := strings.TrimSpace(in.JobDescription) != ""
	flow := FlowTailor
	if in.Mode == ModeDirectCopy {
		flow = FlowDirectCopy
	}

	result.State = NewState(flow, withJob)

	err = in.Validate()
	if err != nil {
		return result, err
	}

	rn := r.begin(flow, withJob)
	defer func() {
		result.RunID = rn.id
		result.State = rn.state
	}()

	var job model.Job
	var jobID, title, company string

	if rn.state.Stage == StageAnalyzingJob {
		job, err = r.Extractor.FormatJobListing(ctx, in.JobDescription, in.Config)
		if err != nil {
			err = rn.fail(err)
			return result, err
		}
		reconcile.Sanitize(&job)
		rn.advance()

		if ctx.Err() != nil {
			err = rn.fail(apierr.Upstream(ctx.Err(), "run cancelled"))
			return result, err
		}

		job.UserID = in.UserID
		job, err = r.Store.CreateJob(context.WithoutCancel(ctx), job)
		if err != nil {
			err = rn.fail(persistFailure(err, "failed to save job"))
			return result, err
		}
		result.Job = &job
		jobID, title, company = job.ID, job.PositionTitle, job.CompanyName
		rn.advance()
	}

	var base model.Resume
	base, err = r.Store.GetResumeByID(ctx, in.UserID, in.BaseResumeID)
	if err != nil {
		err = rn.fail(persistFailure(err, "failed to load base resume"))
		return result, err
	}
	rn.advance()

	var content model.ResumeContent
	if rn.state.Stage == StageTailoringContent {
		content, err = r.Extractor.TailorResumeToJob(ctx, base, job, in.Config)
		if err != nil {
			err = rn.fail(err)
			return result, err
		}
		reconcile.Sanitize(&content)
		rn.advance()
	} else {
		content = base.Content()
	}

	if ctx.Err() != nil {
		err = rn.fail(apierr.Upstream(ctx.Err(), "run cancelled"))
		return result, err
	}

	var created model.Resume
	created, err = r.Store.CreateTailoredResume(context.WithoutCancel(ctx), base, jobID, title, company, content)
	if err != nil {
		err = rn.fail(persistFailure(err, "failed to save tailored resume"))
		return result, err
	}
	rn.advance()

	result.Resume = created
	return result, err
}
