package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/credentials"
	"github.com/nikogura/resumelm/pkg/extract"
	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/pipeline"
	"github.com/nikogura/resumelm/pkg/scorer"
)

type runResponse struct {
	RunID   string         `json:"run_id"`
	State   pipeline.State `json:"state"`
	Resume  *model.Resume  `json:"resume,omitempty"`
	Profile *model.Profile `json:"profile,omitempty"`
	Job     *model.Job     `json:"job,omitempty"`
}

type formatJobRequest struct {
	Text   string                   `json:"text"`
	Config credentials.ClientConfig `json:"config"`
}

// FormatJob structures a pasted job description without saving it.
func (s *Server) FormatJob(w http.ResponseWriter, r *http.Request) {
	var req formatJobRequest
	if !decode(w, r, &req) {
		return
	}

	job, err := s.writer.FormatJobListing(r.Context(), req.Text, req.Config)
	if err != nil {
		writeError(w, err, 0)
		return
	}

	writeJSON(w, job, http.StatusOK)
}

// ListResumes returns the caller's base and tailored resumes.
func (s *Server) ListResumes(w http.ResponseWriter, r *http.Request) {
	resumes, err := s.store.ListResumes(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, err, 0)
		return
	}
	if resumes == nil {
		resumes = []model.Resume{}
	}

	writeJSON(w, resumes, http.StatusOK)
}

// GetResume returns one resume.
func (s *Server) GetResume(w http.ResponseWriter, r *http.Request) {
	resume, err := s.store.GetResumeByID(r.Context(), userFrom(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, 0)
		return
	}

	writeJSON(w, resume, http.StatusOK)
}

// MatchResume scores a resume against its job, or the job named by the job_id query parameter.
func (s *Server) MatchResume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userFrom(r)

	resume, err := s.store.GetResumeByID(ctx, userID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, 0)
		return
	}

	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		jobID = resume.JobID
	}
	if jobID == "" {
		writeError(w, apierr.New(apierr.KindValidation, "resume has no job; pass job_id"), 0)
		return
	}

	job, err := s.store.GetJob(ctx, userID, jobID)
	if err != nil {
		writeError(w, err, 0)
		return
	}

	writeJSON(w, scorer.NewScorer().Score(resume, job), http.StatusOK)
}

// DeleteResume removes one resume.
func (s *Server) DeleteResume(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteResume(r.Context(), userFrom(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err, 0)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type baseResumeRequest struct {
	TargetRole string                   `json:"target_role"`
	Mode       model.BaseResumeMode     `json:"mode"`
	Selection  model.Selection          `json:"selection,omitempty"`
	ResumeText string                   `json:"resume_text,omitempty"`
	Config     credentials.ClientConfig `json:"config"`
}

// CreateBaseResume creates a base resume.
func (s *Server) CreateBaseResume(w http.ResponseWriter, r *http.Request) {
	var req baseResumeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Mode == "" {
		req.Mode = model.BaseModeFresh
	}

	result, err := s.runner.CreateBaseResume(r.Context(), pipeline.BaseResumeInput{
		UserID:     userFrom(r),
		TargetRole: req.TargetRole,
		Mode:       req.Mode,
		Selection:  req.Selection,
		ResumeText: req.ResumeText,
		Config:     req.Config,
	})
	if err != nil {
		writeRunError(w, result.State, err)
		return
	}

	writeJSON(w, runResponse{RunID: result.RunID, State: result.State, Resume: &result.Resume}, http.StatusCreated)
}

type tailorRequest struct {
	JobDescription string                   `json:"job_description"`
	Mode           string                   `json:"mode,omitempty"`
	Config         credentials.ClientConfig `json:"config"`
}

func parseMode(s string) (mode pipeline.Mode, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ai":
		mode = pipeline.ModeAI
	case "direct-copy", "copy":
		mode = pipeline.ModeDirectCopy
	default:
		err = apierr.Newf(apierr.KindValidation, "unknown tailoring mode %q", s)
	}
	return mode, err
}

// TailorResume derives a tailored resume from the base resume in the path.
func (s *Server) TailorResume(w http.ResponseWriter, r *http.Request) {
	var req tailorRequest
	if !decode(w, r, &req) {
		return
	}

	mode, err := parseMode(req.Mode)
	if err != nil {
		writeError(w, err, 0)
		return
	}

	result, err := s.runner.Tailor(r.Context(), pipeline.TailorInput{
		UserID:         userFrom(r),
		BaseResumeID:   mux.Vars(r)["id"],
		JobDescription: req.JobDescription,
		Mode:           mode,
		Config:         req.Config,
	})
	if err != nil {
		writeRunError(w, result.State, err)
		return
	}

	writeJSON(w, runResponse{RunID: result.RunID, State: result.State, Resume: &result.Resume, Job: result.Job}, http.StatusCreated)
}

type importRequest struct {
	Text   string                   `json:"text"`
	Config credentials.ClientConfig `json:"config"`
}

// ImportIntoResume merges text into a stored resume.
func (s *Server) ImportIntoResume(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := s.runner.ImportIntoResume(r.Context(), userFrom(r), mux.Vars(r)["id"], req.Text, req.Config)
	if err != nil {
		writeRunError(w, result.State, err)
		return
	}

	writeJSON(w, runResponse{RunID: result.RunID, State: result.State, Resume: &result.Resume}, http.StatusOK)
}

type suggestionRequest struct {
	Section     string                   `json:"section"`
	Index       int                      `json:"index"`
	Instruction string                   `json:"instruction,omitempty"`
	Config      credentials.ClientConfig `json:"config"`
}

type suggestionResponse struct {
	RunID      string           `json:"run_id"`
	State      pipeline.State   `json:"state"`
	Suggestion model.Suggestion `json:"suggestion"`
	Preview    model.Resume     `json:"preview"`
}

// SuggestImprovement proposes an edit to one item, or to the whole resume with section "all". Nothing is saved.
func (s *Server) SuggestImprovement(w http.ResponseWriter, r *http.Request) {
	var req suggestionRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := s.runner.Suggest(r.Context(), pipeline.SuggestionInput{
		UserID:      userFrom(r),
		ResumeID:    mux.Vars(r)["id"],
		Section:     req.Section,
		Index:       req.Index,
		Instruction: req.Instruction,
		Config:      req.Config,
	})
	if err != nil {
		writeRunError(w, result.State, err)
		return
	}

	writeJSON(w, suggestionResponse{RunID: result.RunID, State: result.State, Suggestion: result.Suggestion, Preview: result.Preview}, http.StatusOK)
}

// ApplySuggestion saves an accepted suggestion into the resume.
func (s *Server) ApplySuggestion(w http.ResponseWriter, r *http.Request) {
	var suggestion model.Suggestion
	if !decode(w, r, &suggestion) {
		return
	}

	resume, err := s.runner.ApplySuggestion(r.Context(), userFrom(r), mux.Vars(r)["id"], suggestion)
	if err != nil {
		writeError(w, err, 0)
		return
	}

	writeJSON(w, resume, http.StatusOK)
}

// GetProfile returns the caller's profile, empty if none was saved.
func (s *Server) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.store.GetProfile(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, err, 0)
		return
	}

	writeJSON(w, profile, http.StatusOK)
}

// ImportProfile merges text into the caller's profile.
func (s *Server) ImportProfile(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := s.runner.ImportProfile(r.Context(), userFrom(r), req.Text, req.Config)
	if err != nil {
		writeRunError(w, result.State, err)
		return
	}

	writeJSON(w, runResponse{RunID: result.RunID, State: result.State, Profile: &result.Profile}, http.StatusOK)
}

// ResetProfile empties the caller's profile.
func (s *Server) ResetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.runner.ResetProfile(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, err, 0)
		return
	}

	writeJSON(w, profile, http.StatusOK)
}

type pointsRequest struct {
	WorkExperience *model.WorkExperience    `json:"work_experience,omitempty"`
	Project        *model.Project           `json:"project,omitempty"`
	TargetRole     string                   `json:"target_role"`
	Count          int                      `json:"count,omitempty"`
	CustomPrompt   string                   `json:"custom_prompt,omitempty"`
	Config         credentials.ClientConfig `json:"config"`
}

type pointsResponse struct {
	Points []string `json:"points"`
}

func pointCount(n int) (count int) {
	count = n
	if count <= 0 {
		count = extract.DefaultPointCount
	}
	return count
}

// WorkExperiencePoints suggests new bullet points for a work experience entry.
func (s *Server) WorkExperiencePoints(w http.ResponseWriter, r *http.Request) {
	var req pointsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.WorkExperience == nil {
		writeError(w, apierr.Validation("work_experience is required"), 0)
		return
	}

	points, err := s.writer.GenerateWorkExperiencePoints(r.Context(), *req.WorkExperience, req.TargetRole, pointCount(req.Count), req.CustomPrompt, req.Config)
	if err != nil {
		writeError(w, err, 0)
		return
	}

	writeJSON(w, pointsResponse{Points: points}, http.StatusOK)
}

// ProjectPoints suggests new bullet points for a project.
func (s *Server) ProjectPoints(w http.ResponseWriter, r *http.Request) {
	var req pointsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Project == nil {
		writeError(w, apierr.Validation("project is required"), 0)
		return
	}

	points, err := s.writer.GenerateProjectPoints(r.Context(), *req.Project, req.TargetRole, pointCount(req.Count), req.CustomPrompt, req.Config)
	if err != nil {
		writeError(w, err, 0)
		return
	}

	writeJSON(w, pointsResponse{Points: points}, http.StatusOK)
}

type improveRequest struct {
	Point        string                   `json:"point"`
	Section      string                   `json:"section,omitempty"`
	CustomPrompt string                   `json:"custom_prompt,omitempty"`
	Config       credentials.ClientConfig `json:"config"`
}

type improveResponse struct {
	Improved string `json:"improved"`
}

// ImprovePoint rewrites one bullet point.
func (s *Server) ImprovePoint(w http.ResponseWriter, r *http.Request) {
	var req improveRequest
	if !decode(w, r, &req) {
		return
	}

	var improved string
	var err error
	switch req.Section {
	case "", model.SectionWorkExperience:
		improved, err = s.writer.ImproveWorkExperience(r.Context(), req.Point, req.CustomPrompt, req.Config)
	case model.SectionProjects:
		improved, err = s.writer.ImproveProject(r.Context(), req.Point, req.CustomPrompt, req.Config)
	default:
		err = apierr.Newf(apierr.KindValidation, "unknown section %q", req.Section)
	}
	if err != nil {
		writeError(w, err, 0)
		return
	}

	writeJSON(w, improveResponse{Improved: improved}, http.StatusOK)
}
