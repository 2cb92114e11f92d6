package pipeline

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/credentials"
	"github.com/nikogura/resumelm/pkg/extract"
	"github.com/nikogura/resumelm/pkg/llm"
	"github.com/nikogura/resumelm/pkg/model"
	"github.com/nikogura/resumelm/pkg/store"
	"github.com/pkg/errors"
)

// package-level logger for pkg/pipeline; can be replaced by callers
//
//nolint:gochecknoglobals // replaceable logger
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/pipeline. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Extractor is the AI side of a run. *extract.Service implements it.
type Extractor interface {
	FormatJobListing(ctx context.Context, text string, cfg credentials.ClientConfig) (job model.Job, err error)
	TailorResumeToJob(ctx context.Context, base model.Resume, job model.Job, cfg credentials.ClientConfig) (content model.ResumeContent, err error)
	ConvertTextToResume(ctx context.Context, text string, skeleton model.Resume, targetRole string, cfg credentials.ClientConfig) (resume model.Resume, err error)
	ExtractResumeSections(ctx context.Context, text string, existing model.Resume, cfg credentials.ClientConfig) (incoming model.Resume, err error)
	FormatProfileWithAI(ctx context.Context, text string, existing *model.Profile, cfg credentials.ClientConfig) (profile model.Profile, err error)
	GenerateCoverLetter(ctx context.Context, in extract.CoverLetterInput, cfg credentials.ClientConfig, onDelta llm.DeltaFunc) (err error)
	Chat(ctx context.Context, in extract.ChatInput, cfg credentials.ClientConfig, onDelta llm.DeltaFunc) (err error)
	SuggestImprovement(ctx context.Context, in extract.SuggestionInput, cfg credentials.ClientConfig) (suggestion model.Suggestion, err error)
	ReviseResume(ctx context.Context, in extract.SuggestionInput, cfg credentials.ClientConfig) (suggestion model.Suggestion, err error)
}

var _ Extractor = (*extract.Service)(nil)

// Observer is told about every state a run enters.
type Observer func(runID string, state State)

// Runner executes runs. Runs share nothing, so one Runner serves concurrent callers.
type Runner struct {
	Extractor Extractor
	Store     store.Store
	Observer  Observer
	Now       func() time.Time
}

// NewRunner returns a Runner over an extractor and a store.
func NewRunner(ex Extractor, st store.Store) (r *Runner) {
	r = &Runner{
		Extractor: ex,
		Store:     st,
		Now:       time.Now,
	}
	return r
}

func (r *Runner) now() (t time.Time) {
	if r.Now != nil {
		t = r.Now()
		return t
	}
	t = time.Now()
	return t
}

// run tracks one in-flight execution.
type run struct {
	id       string
	state    State
	observer Observer
}

func (r *Runner) begin(flow Flow, withInput bool) (rn *run) {
	rn = &run{
		id:       uuid.NewString(),
		state:    NewState(flow, withInput),
		observer: r.Observer,
	}
	rn.apply(Event{Type: EventStart})
	return rn
}

func (rn *run) apply(ev Event) {
	next, err := Reduce(rn.state, ev)
	if err != nil {
		logger.Error("pipeline transition rejected", "run_id", rn.id, "flow", rn.state.Flow.String(), "stage", rn.state.Stage.String(), "error", err)
		return
	}
	rn.state = next

	if next.Stage == StageFailed {
		logger.Warn("pipeline failed", "run_id", rn.id, "flow", next.Flow.String(), "stage", next.FailedAt.String(), "classification", next.Failure.String(), "error", apierr.RedactSecrets(errString(next.Err)))
	} else {
		logger.Debug("pipeline transition", "run_id", rn.id, "flow", next.Flow.String(), "stage", next.Stage.String())
	}

	if rn.observer != nil {
		rn.observer(rn.id, next)
	}
}

func (rn *run) advance() {
	rn.apply(Event{Type: EventAdvance})
}

// fail records the failure at the current stage and returns err.
func (rn *run) fail(err error) (same error) {
	rn.apply(Event{Type: EventFail, Err: err})
	same = err
	return same
}

// persistFailure keeps typed store errors and classifies anything else as upstream.
func persistFailure(err error, msg string) (classified error) {
	var typed *apierr.Error
	if errors.As(err, &typed) {
		classified = err
		return classified
	}
	classified = apierr.Upstream(err, msg)
	return classified
}

func errString(err error) (s string) {
	if err != nil {
		s = err.Error()
	}
	return s
}
