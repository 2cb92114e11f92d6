// Package apierr gives every failure a Kind that the CLI and the HTTP server can report on.
package apierr

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies a failure for recovery purposes.
type Kind int

const (
	// KindNone means no failure.
	KindNone Kind = iota
	// KindMissingCredential means no usable model/key combination, or the provider rejected the key.
	KindMissingCredential
	// KindRateLimited means the upstream signaled quota exhaustion.
	KindRateLimited
	// KindUpstream is any other failure of the completion capability or persistence.
	KindUpstream
	// KindNotFound means a referenced entity is missing.
	KindNotFound
	// KindValidation is a local precondition failure.
	KindValidation
)

// RateLimitMessage is the literal, user-facing rate-limit text.
const RateLimitMessage = "Rate limit exceeded. Try again later."

// String returns the kind name.
func (k Kind) String() (name string) {
	switch k {
	case KindMissingCredential:
		name = "MissingCredential"
	case KindRateLimited:
		name = "RateLimited"
	case KindUpstream:
		name = "UpstreamError"
	case KindNotFound:
		name = "NotFound"
	case KindValidation:
		name = "ValidationError"
	default:
		name = "None"
	}
	return name
}

// MarshalText renders the kind name in JSON payloads.
func (k Kind) MarshalText() (text []byte, err error) {
	text = []byte(k.String())
	return text, err
}

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error renders the message, followed by the cause when present.
func (e *Error) Error() (msg string) {
	msg = e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	return msg
}

// Unwrap returns the cause.
func (e *Error) Unwrap() (err error) {
	err = e.Err
	return err
}

// New creates a classified error.
func New(kind Kind, message string) (err error) {
	err = &Error{Kind: kind, Message: message}
	return err
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) (err error) {
	err = &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
	return err
}

// Wrap classifies an existing error.
func Wrap(kind Kind, err error, message string) (wrapped error) {
	if err == nil {
		return wrapped
	}
	wrapped = &Error{Kind: kind, Message: message, Err: err}
	return wrapped
}

// MissingCredential reports an unusable or absent key. The message always mentions "API key".
func MissingCredential(detail string) (err error) {
	msg := "API key required"
	if detail != "" {
		msg = msg + ": " + detail
	}
	err = &Error{Kind: KindMissingCredential, Message: msg}
	return err
}

// RateLimited reports an upstream quota signal with the literal user-facing message.
func RateLimited() (err error) {
	err = &Error{Kind: KindRateLimited, Message: RateLimitMessage}
	return err
}

// NotFound reports a missing entity.
func NotFound(entity, id string) (err error) {
	err = &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found: %s", entity, id)}
	return err
}

// Validation reports a local precondition failure.
func Validation(message string) (err error) {
	err = &Error{Kind: KindValidation, Message: message}
	return err
}

// Upstream wraps a generic completion or persistence failure.
func Upstream(err error, message string) (wrapped error) {
	wrapped = Wrap(KindUpstream, err, message)
	return wrapped
}

// credentialMarkers are the substrings legacy callers match on.
//
//nolint:gochecknoglobals // fixed compatibility table
var credentialMarkers = []string{"api key", "unauthorized", "invalid key", "invalid x-api-key"}

// IsCredentialMessage reports whether an error message reads as a credential failure.
func IsCredentialMessage(msg string) (ok bool) {
	lower := strings.ToLower(msg)
	for _, marker := range credentialMarkers {
		if strings.Contains(lower, marker) {
			ok = true
			return ok
		}
	}
	return ok
}

// Classify returns the kind of err. Typed errors win; otherwise the message text decides.
func Classify(err error) (kind Kind) {
	if err == nil {
		kind = KindNone
		return kind
	}

	var typed *Error
	if errors.As(err, &typed) {
		kind = typed.Kind
		return kind
	}

	msg := err.Error()
	switch {
	case IsCredentialMessage(msg):
		kind = KindMissingCredential
	case strings.Contains(msg, RateLimitMessage):
		kind = KindRateLimited
	default:
		kind = KindUpstream
	}

	return kind
}

//nolint:gochecknoglobals // compiled once
var (
	bearerPattern = regexp.MustCompile(`(?i)Bearer\s+[^,\s]+`)
	skPattern     = regexp.MustCompile(`sk-[a-zA-Z0-9]{8,}`)
	googlePattern = regexp.MustCompile(`AIza[0-9A-Za-z\-_]{20,}`)
)

// RedactSecrets masks bearer tokens and provider keys in text shown to users or logs.
func RedactSecrets(text string) (redacted string) {
	redacted = bearerPattern.ReplaceAllString(text, "Bearer ***")
	redacted = skPattern.ReplaceAllString(redacted, "sk-***")
	redacted = googlePattern.ReplaceAllString(redacted, "AIza***")
	return redacted
}
