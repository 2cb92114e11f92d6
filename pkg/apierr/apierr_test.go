package apierr

import (
	"testing"

	"github.com/pkg/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: KindNone},
		{name: "anthropic invalid key", err: errors.New("Invalid x-api-key provided"), want: KindMissingCredential},
		{name: "unauthorized", err: errors.New("401 Unauthorized"), want: KindMissingCredential},
		{name: "api key phrase", err: errors.New("OpenAI API key is missing"), want: KindMissingCredential},
		{name: "invalid key", err: errors.New("provider says: invalid key"), want: KindMissingCredential},
		{name: "rate limit literal", err: errors.New(RateLimitMessage), want: KindRateLimited},
		{name: "generic", err: errors.New("connection reset by peer"), want: KindUpstream},
		{name: "typed not found", err: NotFound("resume", "r1"), want: KindNotFound},
		{name: "typed validation", err: Validation("job description is required"), want: KindValidation},
		{name: "wrapped typed", err: errors.Wrap(RateLimited(), "format job listing"), want: KindRateLimited},
		{name: "typed wins over text", err: Upstream(errors.New("unauthorized proxy"), "persist job"), want: KindUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMissingCredentialMessageStaysMatchable(t *testing.T) {
	err := MissingCredential("no key configured for anthropic")
	if !IsCredentialMessage(err.Error()) {
		t.Errorf("Expected credential message to match legacy substrings: %s", err.Error())
	}

	wrapped := errors.Wrap(err, "format job listing")
	if !IsCredentialMessage(wrapped.Error()) {
		t.Errorf("Expected wrapped message to stay matchable: %s", wrapped.Error())
	}
}

func TestRateLimitedMessage(t *testing.T) {
	if RateLimited().Error() != RateLimitMessage {
		t.Errorf("Expected literal rate limit message, got '%s'", RateLimited().Error())
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Upstream(cause, "persist resume")

	if !errors.Is(err, cause) {
		t.Error("Expected classified error to unwrap to its cause")
	}

	if err.Error() != "persist resume: disk full" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(KindUpstream, nil, "nothing") != nil {
		t.Error("Expected nil when wrapping nil")
	}
}

func TestRedactSecrets(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bearer", in: "header Bearer abc.def.ghi, retry", want: "header Bearer ***, retry"},
		{name: "openai key", in: "key sk-proj1234567890abcd rejected", want: "key sk-*** rejected"},
		{name: "google key", in: "AIzaSyA1234567890abcdefghijkl bad", want: "AIza*** bad"},
		{name: "short sk untouched", in: "sk-abc", want: "sk-abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RedactSecrets(tt.in)
			if got != tt.want {
				t.Errorf("RedactSecrets() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	if KindMissingCredential.String() != "MissingCredential" {
		t.Errorf("Unexpected name: %s", KindMissingCredential.String())
	}
	if KindUpstream.String() != "UpstreamError" {
		t.Errorf("Unexpected name: %s", KindUpstream.String())
	}
}
