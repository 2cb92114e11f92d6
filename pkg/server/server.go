// Package server exposes the resume operations as a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/credentials"
	"github.com/nikogura/resumelm/pkg/extract"
	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/pipeline"
	"github.com/nikogura/resumelm/pkg/progress"
	"github.com/nikogura/resumelm/pkg/store"
)

// maxBodyBytes caps request bodies; pasted resumes and job descriptions are well under this.
const maxBodyBytes = 2 << 20

// Writer is the single-call content operations that sit outside the pipelines.
type Writer interface {
	FormatJobListing(ctx context.Context, text string, cfg credentials.ClientConfig) (job model.Job, err error)
	GenerateWorkExperiencePoints(ctx context.Context, exp model.WorkExperience, targetRole string, count int, customPrompt string, cfg credentials.ClientConfig) (points []string, err error)
	GenerateProjectPoints(ctx context.Context, project model.Project, targetRole string, count int, customPrompt string, cfg credentials.ClientConfig) (points []string, err error)
	ImproveWorkExperience(ctx context.Context, point string, customPrompt string, cfg credentials.ClientConfig) (improved string, err error)
	ImproveProject(ctx context.Context, point string, customPrompt string, cfg credentials.ClientConfig) (improved string, err error)
}

var _ Writer = (*extract.Service)(nil)

// Server holds the handlers' dependencies.
type Server struct {
	runner *pipeline.Runner
	store  store.Store
	writer Writer
	now    func() time.Time
}

// New creates a Server.
func New(runner *pipeline.Runner, st store.Store, writer Writer) (s *Server) {
	s = &Server{
		runner: runner,
		store:  st,
		writer: writer,
		now:    time.Now,
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() (r *mux.Router) {
	r = mux.NewRouter()

	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	r.HandleFunc("/health", s.Health).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(UserMiddleware)

	v1.HandleFunc("/jobs/format", s.FormatJob).Methods(http.MethodPost)

	v1.HandleFunc("/resumes", s.ListResumes).Methods(http.MethodGet)
	v1.HandleFunc("/resumes/base", s.CreateBaseResume).Methods(http.MethodPost)
	v1.HandleFunc("/resumes/{id}", s.GetResume).Methods(http.MethodGet)
	v1.HandleFunc("/resumes/{id}", s.DeleteResume).Methods(http.MethodDelete)
	v1.HandleFunc("/resumes/{id}/tailor", s.TailorResume).Methods(http.MethodPost)
	v1.HandleFunc("/resumes/{id}/import", s.ImportIntoResume).Methods(http.MethodPost)
	v1.HandleFunc("/resumes/{id}/cover-letter", s.CoverLetter).Methods(http.MethodPost)
	v1.HandleFunc("/resumes/{id}/match", s.MatchResume).Methods(http.MethodGet)
	v1.HandleFunc("/resumes/{id}/chat", s.Chat).Methods(http.MethodPost)
	v1.HandleFunc("/resumes/{id}/suggestions", s.SuggestImprovement).Methods(http.MethodPost)
	v1.HandleFunc("/resumes/{id}/suggestions/apply", s.ApplySuggestion).Methods(http.MethodPost)

	v1.HandleFunc("/profile", s.GetProfile).Methods(http.MethodGet)
	v1.HandleFunc("/profile/import", s.ImportProfile).Methods(http.MethodPost)
	v1.HandleFunc("/profile/reset", s.ResetProfile).Methods(http.MethodPost)

	v1.HandleFunc("/points/work-experience", s.WorkExperiencePoints).Methods(http.MethodPost)
	v1.HandleFunc("/points/project", s.ProjectPoints).Methods(http.MethodPost)
	v1.HandleFunc("/points/improve", s.ImprovePoint).Methods(http.MethodPost)

	return r
}

// Health reports liveness.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string          `json:"error"`
	Kind  apierr.Kind     `json:"kind"`
	Stage *pipeline.Stage `json:"stage,omitempty"`
	progress.Prompt
}

func writeJSON(w http.ResponseWriter, v interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("err", err))
	}
}

// statusFor maps a classification to an HTTP status.
func statusFor(kind apierr.Kind) (status int) {
	switch kind {
	case apierr.KindValidation:
		status = http.StatusBadRequest
	case apierr.KindNotFound:
		status = http.StatusNotFound
	case apierr.KindMissingCredential:
		status = http.StatusUnauthorized
	case apierr.KindRateLimited:
		status = http.StatusTooManyRequests
	case apierr.KindUpstream:
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}
	return status
}

// writeError renders err with its recovery prompt. A zero status is derived from the classification.
func writeError(w http.ResponseWriter, err error, status int) {
	writeFailure(w, err, pipeline.StageIdle, false, status)
}

// writeRunError renders a failed run, reporting the stage it failed at.
func writeRunError(w http.ResponseWriter, state pipeline.State, err error) {
	stage := state.Stage
	if stage == pipeline.StageFailed {
		stage = state.FailedAt
	}
	writeFailure(w, err, stage, stage != pipeline.StageIdle, 0)
}

func writeFailure(w http.ResponseWriter, err error, stage pipeline.Stage, withStage bool, status int) {
	prompt := progress.FromError(stage, err, time.Now())
	kind := apierr.Classify(err)
	if kind == apierr.KindNone {
		kind = apierr.KindUpstream
	}
	if status == 0 {
		status = statusFor(kind)
	}

	resp := errorResponse{
		Error:  apierr.RedactSecrets(err.Error()),
		Kind:   kind,
		Prompt: prompt,
	}
	if withStage {
		resp.Stage = &stage
	}

	writeJSON(w, resp, status)
}

// decode reads a JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) (ok bool) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, apierr.Validation("invalid request body: "+err.Error()), 0)
		return ok
	}
	ok = true
	return ok
}
