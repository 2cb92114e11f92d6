// Package pipeline orchestrates the multi-step runs: tailoring, imports, base resumes, cover letters and the resume assistant.
package pipeline

import (
	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/pkg/errors"
)

// Stage is a step of a run.
type Stage int

// Stages. A run moves forward through its path; Done and Failed are terminal.
const (
	StageIdle Stage = iota
	StageAnalyzingJob
	StageFormattingJob
	StageFetchingBaseResume
	StageTailoringContent
	StageFinalizing
	StageExtracting
	StageReconciling
	StageGenerating
	StageDone
	StageFailed
)

// String returns the stage name.
func (s Stage) String() (name string) {
	switch s {
	case StageIdle:
		name = "idle"
	case StageAnalyzingJob:
		name = "analyzing_job"
	case StageFormattingJob:
		name = "formatting_job"
	case StageFetchingBaseResume:
		name = "fetching_base_resume"
	case StageTailoringContent:
		name = "tailoring_content"
	case StageFinalizing:
		name = "finalizing"
	case StageExtracting:
		name = "extracting"
	case StageReconciling:
		name = "reconciling"
	case StageGenerating:
		name = "generating"
	case StageDone:
		name = "done"
	case StageFailed:
		name = "failed"
	default:
		name = "unknown"
	}
	return name
}

// MarshalText renders the stage name.
func (s Stage) MarshalText() (text []byte, err error) {
	text = []byte(s.String())
	return text, err
}

// Flow is the kind of run.
type Flow int

// Flows.
const (
	FlowTailor Flow = iota
	FlowDirectCopy
	FlowImport
	FlowBaseResume
	FlowCoverLetter
	FlowChat
	FlowSuggestion
)

// String returns the flow name.
func (f Flow) String() (name string) {
	switch f {
	case FlowTailor:
		name = "tailor"
	case FlowDirectCopy:
		name = "direct_copy"
	case FlowImport:
		name = "import"
	case FlowBaseResume:
		name = "base_resume"
	case FlowCoverLetter:
		name = "cover_letter"
	case FlowChat:
		name = "chat"
	case FlowSuggestion:
		name = "suggestion"
	default:
		name = "unknown"
	}
	return name
}

// MarshalText renders the flow name.
func (f Flow) MarshalText() (text []byte, err error) {
	text = []byte(f.String())
	return text, err
}

// PathFor returns the ordered stages of a flow. withInput says whether the optional
// leading work (job formatting for direct copy, extraction for a base resume) applies.
func PathFor(flow Flow, withInput bool) (path []Stage) {
	switch flow {
	case FlowTailor:
		path = []Stage{StageAnalyzingJob, StageFormattingJob, StageFetchingBaseResume, StageTailoringContent, StageFinalizing}
	case FlowDirectCopy:
		if withInput {
			path = []Stage{StageAnalyzingJob, StageFormattingJob, StageFetchingBaseResume, StageFinalizing}
		} else {
			path = []Stage{StageFetchingBaseResume, StageFinalizing}
		}
	case FlowImport:
		path = []Stage{StageExtracting, StageReconciling}
	case FlowBaseResume:
		if withInput {
			path = []Stage{StageExtracting, StageFinalizing}
		} else {
			path = []Stage{StageFinalizing}
		}
	case FlowCoverLetter:
		path = []Stage{StageGenerating, StageFinalizing}
	case FlowChat, FlowSuggestion:
		path = []Stage{StageGenerating}
	}
	return path
}

// State is the current position of one run.
type State struct {
	Flow     Flow        `json:"flow"`
	Stage    Stage       `json:"stage"`
	FailedAt Stage       `json:"failed_at,omitempty"`
	Failure  apierr.Kind `json:"failure,omitempty"`
	Err      error       `json:"-"`

	path []Stage
	step int
}

// NewState returns an idle state for flow.
func NewState(flow Flow, withInput bool) (s State) {
	s = State{
		Flow:  flow,
		Stage: StageIdle,
		path:  PathFor(flow, withInput),
	}
	return s
}

// Path returns the stages this run will go through.
func (s State) Path() (path []Stage) {
	path = append([]Stage{}, s.path...)
	return path
}

// Terminal reports whether the run has finished.
func (s State) Terminal() (done bool) {
	done = s.Stage == StageDone || s.Stage == StageFailed
	return done
}

// EventType is what happened to a run.
type EventType int

// Events.
const (
	EventStart EventType = iota
	EventAdvance
	EventFail
)

// Event drives a transition.
type Event struct {
	Type EventType
	Err  error
}

// ErrInvalidTransition is returned for an event the current stage cannot accept.
var ErrInvalidTransition = errors.New("invalid pipeline transition")

// Reduce applies ev to s and returns the next state. It never mutates s.
func Reduce(s State, ev Event) (next State, err error) {
	next = s

	switch ev.Type {
	case EventStart:
		if s.Stage != StageIdle || len(s.path) == 0 {
			err = errors.Wrapf(ErrInvalidTransition, "start from %s", s.Stage)
			return s, err
		}
		next.step = 0
		next.Stage = s.path[0]

	case EventAdvance:
		if s.Stage == StageIdle || s.Terminal() {
			err = errors.Wrapf(ErrInvalidTransition, "advance from %s", s.Stage)
			return s, err
		}
		next.step = s.step + 1
		if next.step >= len(s.path) {
			next.Stage = StageDone
		} else {
			next.Stage = s.path[next.step]
		}

	case EventFail:
		if s.Stage == StageIdle || s.Terminal() {
			err = errors.Wrapf(ErrInvalidTransition, "fail from %s", s.Stage)
			return s, err
		}
		next.FailedAt = s.Stage
		next.Stage = StageFailed
		next.Err = ev.Err
		next.Failure = apierr.Classify(ev.Err)
		if next.Failure == apierr.KindNone {
			next.Failure = apierr.KindUpstream
		}

	default:
		err = errors.Wrapf(ErrInvalidTransition, "unknown event %d", ev.Type)
		return s, err
	}

	return next, err
}
