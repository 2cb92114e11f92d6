// Package progress turns pipeline state into what a user sees: a short step label while a run
// is in flight, and a recovery prompt when it fails.
package progress

import (
	"fmt"
	"time"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/pipeline"
)

// RetryDelay is how long a rate-limited user is asked to wait.
const RetryDelay = 5 * time.Hour

// Label is a presentation step.
type Label string

// Labels.
const (
	LabelIdle       Label = "idle"
	LabelAnalyzing  Label = "analyzing"
	LabelFormatting Label = "formatting"
	LabelTailoring  Label = "tailoring"
	LabelImporting  Label = "importing"
	LabelGenerating Label = "generating"
	LabelFinalizing Label = "finalizing"
	LabelDone       Label = "done"
)

// Recovery tells the user what can be done about a failure.
type Recovery string

// Recovery options. RecoveryNone is used when nothing failed.
const (
	RecoveryNone           Recovery = ""
	RecoveryRetry          Recovery = "retryable-with-same-input"
	RecoveryChangeSettings Recovery = "retryable-after-settings-change"
	RecoveryFatal          Recovery = "fatal"
)

// Prompt is the presentation of a stage and its failure classification.
type Prompt struct {
	Label      Label      `json:"label"`
	Recovery   Recovery   `json:"recovery,omitempty"`
	Title      string     `json:"title,omitempty"`
	Message    string     `json:"message,omitempty"`
	RetryAfter *time.Time `json:"retry_after,omitempty"`
}

// LabelFor maps a stage to its label. Stages not shown as distinct steps collapse into a neighbour.
func LabelFor(stage pipeline.Stage) (label Label) {
	switch stage {
	case pipeline.StageAnalyzingJob:
		label = LabelAnalyzing
	case pipeline.StageFormattingJob, pipeline.StageFetchingBaseResume:
		label = LabelFormatting
	case pipeline.StageTailoringContent:
		label = LabelTailoring
	case pipeline.StageExtracting, pipeline.StageReconciling:
		label = LabelImporting
	case pipeline.StageGenerating:
		label = LabelGenerating
	case pipeline.StageFinalizing:
		label = LabelFinalizing
	case pipeline.StageDone:
		label = LabelDone
	default:
		label = LabelIdle
	}
	return label
}

// RecoveryFor maps a failure classification to its recovery option.
func RecoveryFor(kind apierr.Kind) (recovery Recovery) {
	switch kind {
	case apierr.KindNone:
		recovery = RecoveryNone
	case apierr.KindMissingCredential:
		recovery = RecoveryChangeSettings
	case apierr.KindNotFound, apierr.KindValidation:
		recovery = RecoveryFatal
	default:
		recovery = RecoveryRetry
	}
	return recovery
}

// Surface builds the prompt for a stage and classification. A KindNone classification yields a
// plain progress prompt.
func Surface(stage pipeline.Stage, kind apierr.Kind, now time.Time) (p Prompt) {
	p = Prompt{
		Label:    LabelFor(stage),
		Recovery: RecoveryFor(kind),
	}

	switch kind {
	case apierr.KindNone:
		return p
	case apierr.KindMissingCredential:
		p.Title = "API Key Required"
		p.Message = "API key required. Add an API key in settings or upgrade to the Pro plan."
	case apierr.KindRateLimited:
		retry := now.Add(RetryDelay)
		p.RetryAfter = &retry
		p.Title = "Rate Limit Exceeded"
		p.Message = fmt.Sprintf("%s Please try again after %s.", apierr.RateLimitMessage, retry.Format("Jan 2, 2006 3:04 PM"))
	case apierr.KindNotFound:
		p.Title = "Not Found"
		p.Message = "The resume or job this action needs no longer exists. Select it again and retry."
	case apierr.KindValidation:
		p.Title = "Missing Input"
		p.Message = "Some required input is missing. Fill it in and try again."
	default:
		p.Title = "Something Went Wrong"
		p.Message = fmt.Sprintf("Failed while %s. Please try again.", stepPhrase(p.Label))
	}

	return p
}

// FromState surfaces a pipeline state. Failed states report the stage they failed at.
func FromState(s pipeline.State, now time.Time) (p Prompt) {
	if s.Stage == pipeline.StageFailed {
		p = Surface(s.FailedAt, s.Failure, now)
		return p
	}
	p = Surface(s.Stage, apierr.KindNone, now)
	return p
}

// FromError surfaces an error returned before or outside a run.
func FromError(stage pipeline.Stage, err error, now time.Time) (p Prompt) {
	kind := apierr.Classify(err)
	if err != nil && kind == apierr.KindNone {
		kind = apierr.KindUpstream
	}
	p = Surface(stage, kind, now)
	return p
}

func stepPhrase(label Label) (phrase string) {
	switch label {
	case LabelAnalyzing:
		phrase = "analyzing the job description"
	case LabelFormatting:
		phrase = "formatting the job"
	case LabelTailoring:
		phrase = "tailoring your resume"
	case LabelImporting:
		phrase = "importing your content"
	case LabelGenerating:
		phrase = "generating content"
	case LabelFinalizing:
		phrase = "saving your changes"
	default:
		phrase = "processing your request"
	}
	return phrase
}
