// Package store defines the persistence boundary for jobs, resumes and profiles.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/reconcile"
)

// JobStore persists structured jobs. Jobs are immutable once created.
type JobStore interface {
	CreateJob(ctx context.Context, job model.Job) (created model.Job, err error)
	GetJob(ctx context.Context, userID, id string) (job model.Job, err error)
}

// ResumeStore persists base and tailored resumes.
type ResumeStore interface {
	GetResumeByID(ctx context.Context, userID, id string) (resume model.Resume, err error)
	CreateTailoredResume(ctx context.Context, base model.Resume, jobID, title, company string, content model.ResumeContent) (created model.Resume, err error)
	CreateBaseResume(ctx context.Context, userID, targetRole string, mode model.BaseResumeMode, content model.Resume) (created model.Resume, err error)
	UpdateResume(ctx context.Context, resume model.Resume) (err error)
	DeleteResume(ctx context.Context, userID, id string) (err error)
	ListResumes(ctx context.Context, userID string) (resumes []model.Resume, err error)
}

// ProfileStore persists the user's profile. GetProfile returns an empty skeleton for a new user.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (profile model.Profile, err error)
	UpdateProfile(ctx context.Context, profile model.Profile) (err error)
	ImportResume(ctx context.Context, userID string, partial model.Profile) (merged model.Profile, err error)
}

// Store is the full persistence boundary.
type Store interface {
	JobStore
	ResumeStore
	ProfileStore
	Close() (err error)
}

// NewJob stamps a job with an id and creation time.
func NewJob(job model.Job, now time.Time) (out model.Job) {
	out = job
	out.ID = uuid.NewString()
	out.CreatedAt = now.UTC()
	if out.Keywords == nil {
		out.Keywords = []string{}
	}
	if out.Requirements == nil {
		out.Requirements = []string{}
	}
	if out.Qualifications == nil {
		out.Qualifications = []string{}
	}
	return out
}

// NewTailoredResume builds a tailored resume from its base. An empty jobID means no job reference.
func NewTailoredResume(base model.Resume, jobID, title, company string, content model.ResumeContent, now time.Time) (resume model.Resume) {
	targetRole := content.TargetRole
	if targetRole == "" {
		targetRole = base.TargetRole
	}

	name := model.TailoredName(title, company)

	resume = model.Resume{
		ID:           uuid.NewString(),
		UserID:       base.UserID,
		JobID:        jobID,
		Name:         name,
		TargetRole:   targetRole,
		IsBaseResume: false,
		Contact:      base.Contact,
		Sections:     content.Sections.Clone(),
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
	return resume
}

// NewBaseResume builds a base resume. The job reference is always absent.
func NewBaseResume(userID, targetRole string, content model.Resume, now time.Time) (resume model.Resume) {
	resume = model.Resume{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         targetRole,
		TargetRole:   targetRole,
		IsBaseResume: true,
		Contact:      content.Contact,
		Sections:     content.Sections.Clone(),
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
	return resume
}

// Updatable copies the editable fields of next onto current. Ownership, kind and job link never change.
func Updatable(current, next model.Resume, now time.Time) (out model.Resume) {
	out = next
	out.ID = current.ID
	out.UserID = current.UserID
	out.JobID = current.JobID
	out.IsBaseResume = current.IsBaseResume
	out.CreatedAt = current.CreatedAt
	out.UpdatedAt = now.UTC()
	return out
}

// MergeImport reconciles a partial profile into the stored one.
func MergeImport(existing, partial model.Profile, now time.Time) (merged model.Profile) {
	merged = reconcile.Profile(existing, partial)
	merged.UpdatedAt = now.UTC()
	return merged
}
