package pipeline

import (
	"context"
	"strings"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/credentials"
	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/reconcile"
)

// ResumeImportResult is the outcome of importing text into a resume.
type ResumeImportResult struct {
	RunID  string
	State  State
	Resume model.Resume
}

// ProfileImportResult is the outcome of importing text into a profile.
type ProfileImportResult struct {
	RunID   string
	State   State
	Profile model.Profile
}

func requireText(text string) (err error) {
	if strings.TrimSpace(text) == "" {
		err = apierr.Validation("text to import is required")
	}
	return err
}

// AddTextToResume extracts content from text and merges it into existing. Nothing is persisted;
// on failure the returned resume is existing, untouched.
func (r *Runner) AddTextToResume(ctx context.Context, text string, existing model.Resume, cfg credentials.ClientConfig) (result ResumeImportResult, err error) {
	result, err = r.importResume(ctx, text, existing, cfg, nil)
	return result, err
}

// ImportIntoResume loads a stored resume, merges text into it and saves the result.
func (r *Runner) ImportIntoResume(ctx context.Context, userID, resumeID, text string, cfg credentials.ClientConfig) (result ResumeImportResult, err error) {
	result.State = NewState(FlowImport, true)

	err = requireText(text)
	if err != nil {
		return result, err
	}

	var existing model.Resume
	existing, err = r.Store.GetResumeByID(ctx, userID, resumeID)
	if err != nil {
		result.Resume = existing
		return result, err
	}

	result, err = r.importResume(ctx, text, existing, cfg, func(merged model.Resume) (err error) {
		err = r.Store.UpdateResume(context.WithoutCancel(ctx), merged)
		return err
	})
	return result, err
}

func (r *Runner) importResume(ctx context.Context, text string, existing model.Resume, cfg credentials.ClientConfig, persist func(model.Resume) error) (result ResumeImportResult, err error) {
	result.State = NewState(FlowImport, true)
	result.Resume = existing

	err = requireText(text)
	if err != nil {
		return result, err
	}

	rn := r.begin(FlowImport, true)
	defer func() {
		result.RunID = rn.id
		result.State = rn.state
	}()

	var incoming model.Resume
	incoming, err = r.Extractor.ExtractResumeSections(ctx, text, existing, cfg)
	if err != nil {
		err = rn.fail(err)
		return result, err
	}
	rn.advance()

	merged := reconcile.Resume(existing, incoming)

	if persist != nil {
		if ctx.Err() != nil {
			err = rn.fail(apierr.Upstream(ctx.Err(), "run cancelled"))
			return result, err
		}

		err = persist(merged)
		if err != nil {
			err = rn.fail(persistFailure(err, "failed to save resume"))
			return result, err
		}
	}
	rn.advance()

	result.Resume = merged
	return result, err
}

// AddTextToProfile extracts a profile from text and merges it into existing without persisting.
func (r *Runner) AddTextToProfile(ctx context.Context, text string, existing model.Profile, cfg credentials.ClientConfig) (result ProfileImportResult, err error) {
	result.State = NewState(FlowImport, true)
	result.Profile = existing

	err = requireText(text)
	if err != nil {
		return result, err
	}

	rn := r.begin(FlowImport, true)
	defer func() {
		result.RunID = rn.id
		result.State = rn.state
	}()

	var incoming model.Profile
	incoming, err = r.Extractor.FormatProfileWithAI(ctx, text, &existing, cfg)
	if err != nil {
		err = rn.fail(err)
		return result, err
	}
	rn.advance()

	result.Profile = reconcile.Profile(existing, incoming)
	rn.advance()

	return result, err
}

// ImportProfile extracts a profile from text and merges it into the user's stored profile.
func (r *Runner) ImportProfile(ctx context.Context, userID, text string, cfg credentials.ClientConfig) (result ProfileImportResult, err error) {
	result.State = NewState(FlowImport, true)

	err = requireText(text)
	if err != nil {
		return result, err
	}

	var existing model.Profile
	existing, err = r.Store.GetProfile(ctx, userID)
	if err != nil {
		return result, err
	}
	result.Profile = existing

	rn := r.begin(FlowImport, true)
	defer func() {
		result.RunID = rn.id
		result.State = rn.state
	}()

	var incoming model.Profile
	incoming, err = r.Extractor.FormatProfileWithAI(ctx, text, &existing, cfg)
	if err != nil {
		err = rn.fail(err)
		return result, err
	}
	rn.advance()

	if ctx.Err() != nil {
		err = rn.fail(apierr.Upstream(ctx.Err(), "run cancelled"))
		return result, err
	}

	var merged model.Profile
	merged, err = r.Store.ImportResume(context.WithoutCancel(ctx), userID, incoming)
	if err != nil {
		err = rn.fail(persistFailure(err, "failed to save profile"))
		return result, err
	}
	rn.advance()

	result.Profile = merged
	return result, err
}

// ResetProfile replaces the user's profile with the empty skeleton. It is the only destructive
// profile operation and never involves AI.
func (r *Runner) ResetProfile(ctx context.Context, userID string) (profile model.Profile, err error) {
	var existing model.Profile
	existing, err = r.Store.GetProfile(ctx, userID)
	if err != nil {
		return profile, err
	}

	profile = reconcile.ResetProfile(existing)
	profile.UserID = userID

	err = r.Store.UpdateProfile(ctx, profile)
	if err != nil {
		err = persistFailure(err, "failed to reset profile")
		return profile, err
	}

	logger.Info("profile reset", "user_id", userID)
	return profile, err
}
