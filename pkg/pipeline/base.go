package pipeline

import (
	"context"
	"strings"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/credentials"
	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/reconcile"
)

// BaseResumeInput is a request to create a base resume.
type BaseResumeInput struct {
	UserID     string
	TargetRole string
	Mode       model.BaseResumeMode
	// Selection picks profile items for import-profile mode. Nil selects everything.
	Selection model.Selection
	// ResumeText is the source for import-resume mode.
	ResumeText string
	Config     credentials.ClientConfig
}

// Validate checks the preconditions that must hold before a run starts.
func (in BaseResumeInput) Validate() (err error) {
	if strings.TrimSpace(in.TargetRole) == "" {
		err = apierr.Validation("target role is required")
		return err
	}

	if !in.Mode.Valid() {
		err = apierr.Newf(apierr.KindValidation, "unknown base resume mode %q", in.Mode)
		return err
	}

	if in.Mode == model.BaseModeImportResume && strings.TrimSpace(in.ResumeText) == "" {
		err = apierr.Validation("resume text is required")
		return err
	}

	return err
}

// BaseResumeResult is the outcome of creating a base resume.
type BaseResumeResult struct {
	RunID  string
	State  State
	Resume model.Resume
}

// CreateBaseResume builds a base resume from scratch, from selected profile items, or from resume text.
func (r *Runner) CreateBaseResume(ctx context.Context, in BaseResumeInput) (result BaseResumeResult, err error) {
	withText := in.Mode == model.BaseModeImportResume
	result.State = NewState(FlowBaseResume, withText)

	err = in.Validate()
	if err != nil {
		return result, err
	}

	targetRole := strings.TrimSpace(in.TargetRole)

	var profile model.Profile
	profile, err = r.Store.GetProfile(ctx, in.UserID)
	if err != nil {
		return result, err
	}

	rn := r.begin(FlowBaseResume, withText)
	defer func() {
		result.RunID = rn.id
		result.State = rn.state
	}()

	content := model.EmptyResume(targetRole)
	content.Contact = profile.Contact

	switch in.Mode {
	case model.BaseModeImportProfile:
		content.Sections = in.Selection.Apply(profile.Sections)
	case model.BaseModeImportResume:
		content, err = r.Extractor.ConvertTextToResume(ctx, in.ResumeText, content, targetRole, in.Config)
		if err != nil {
			err = rn.fail(err)
			return result, err
		}
		reconcile.Sanitize(&content)
		rn.advance()
	}

	if ctx.Err() != nil {
		err = rn.fail(apierr.Upstream(ctx.Err(), "run cancelled"))
		return result, err
	}

	var created model.Resume
	created, err = r.Store.CreateBaseResume(context.WithoutCancel(ctx), in.UserID, targetRole, in.Mode, content)
	if err != nil {
		err = rn.fail(persistFailure(err, "failed to save base resume"))
		return result, err
	}
	rn.advance()

	result.Resume = created
	return result, err
}
