package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/credentials"
	"github.com/nikogura/resumelm/pkg/extract"
	"github.com/nikogura/resumelm/pkg/pipeline"
	"github.com/nikogura/resumelm/pkg/progress"
)

// ErrorTrailer carries the failure kind of a stream that broke after it started.
const ErrorTrailer = "X-Resumelm-Error"

// HistoryTrailer carries the JSON conversation after a chat reply completes.
const HistoryTrailer = "X-Resumelm-History"

// textStream writes fragments as plain text, sending the headers with the first one.
type textStream struct {
	w        http.ResponseWriter
	flusher  http.Flusher
	trailers string
	started  bool
}

func newTextStream(w http.ResponseWriter, trailers string) (ts *textStream) {
	flusher, _ := w.(http.Flusher)
	ts = &textStream{w: w, flusher: flusher, trailers: trailers}
	return ts
}

func (ts *textStream) start() {
	if ts.started {
		return
	}
	ts.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	ts.w.Header().Set("Trailer", ts.trailers)
	ts.w.WriteHeader(http.StatusOK)
	ts.started = true
}

func (ts *textStream) write(fragment string) (err error) {
	ts.start()
	_, err = ts.w.Write([]byte(fragment))
	if err == nil && ts.flusher != nil {
		ts.flusher.Flush()
	}
	return err
}

// finish reports err. Failures before the first fragment get a JSON error body;
// failures after it end the stream and set the error trailer.
func (ts *textStream) finish(state pipeline.State, runID string, err error, what string) {
	if err == nil {
		ts.start()
		return
	}

	if !ts.started {
		writeRunError(ts.w, state, err)
		return
	}

	kind := apierr.Classify(err)
	ts.w.Header().Set(ErrorTrailer, string(progress.RecoveryFor(kind))+"; "+kind.String())
	logger.Warn(what+" stream ended early",
		slog.String("run_id", runID),
		slog.String("classification", kind.String()),
		slog.String("error", apierr.RedactSecrets(err.Error())),
	)
}

type coverLetterRequest struct {
	CustomPrompt string                   `json:"custom_prompt,omitempty"`
	Config       credentials.ClientConfig `json:"config"`
}

// CoverLetter streams a cover letter as plain text.
func (s *Server) CoverLetter(w http.ResponseWriter, r *http.Request) {
	var req coverLetterRequest
	if !decode(w, r, &req) {
		return
	}

	ts := newTextStream(w, ErrorTrailer)

	result, err := s.runner.GenerateCoverLetter(r.Context(), pipeline.CoverLetterInput{
		UserID:       userFrom(r),
		ResumeID:     mux.Vars(r)["id"],
		CustomPrompt: req.CustomPrompt,
		Config:       req.Config,
		OnDelta:      ts.write,
	})
	ts.finish(result.State, result.RunID, err, "cover letter")
}

type chatRequest struct {
	Message      string                   `json:"message"`
	History      []extract.ChatMessage    `json:"history,omitempty"`
	CustomPrompt string                   `json:"custom_prompt,omitempty"`
	Config       credentials.ClientConfig `json:"config"`
}

// Chat streams the resume assistant's reply as plain text. Closing the request stops the reply.
// The updated conversation is sent in the history trailer once the reply completes.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}

	ts := newTextStream(w, ErrorTrailer+", "+HistoryTrailer)

	result, err := s.runner.Chat(r.Context(), pipeline.ChatInput{
		UserID:       userFrom(r),
		ResumeID:     mux.Vars(r)["id"],
		History:      req.History,
		Message:      req.Message,
		CustomPrompt: req.CustomPrompt,
		Config:       req.Config,
		OnDelta:      ts.write,
	})
	ts.finish(result.State, result.RunID, err, "chat")
	if err != nil {
		return
	}

	history, merr := json.Marshal(result.History)
	if merr == nil {
		w.Header().Set(HistoryTrailer, string(history))
	}
}
