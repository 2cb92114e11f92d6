package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nikogura/resumelm/pkg/apierr"
)

func TestNewClient(t *testing.T) {
	apiKey := "test-api-key"
	model := "claude-sonnet-4-20250514"
	client := NewClient(apiKey, model, "")

	if client == nil {
		t.Fatal("Expected non-nil client")
	}

	if client.apiKey != apiKey {
		t.Errorf("Expected API key '%s', got '%s'", apiKey, client.apiKey)
	}

	if client.model != model {
		t.Errorf("Expected model '%s', got '%s'", model, client.model)
	}

	defaulted := NewClient(apiKey, "", "")
	if defaulted.model != ClaudeModel {
		t.Errorf("Expected default model '%s', got '%s'", ClaudeModel, defaulted.model)
	}
}

func claudeMessage(text string) (body []byte) {
	body, _ = json.Marshal(map[string]interface{}{
		"id":            "msg_test",
		"type":          "message",
		"role":          "assistant",
		"model":         ClaudeModel,
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"content": []map[string]interface{}{
			{"type": "text", "text": text},
		},
		"usage": map[string]interface{}{"input_tokens": 10, "output_tokens": 5},
	})
	return body
}

func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify request.
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}

		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Error("Missing or incorrect API key header")
		}

		if !strings.HasSuffix(r.URL.Path, "/messages") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(claudeMessage(`{"position_title":"Senior Backend Engineer"}`))
	}))
	defer server.Close()

	client := NewClient("test-key", "", server.URL)

	text, err := client.Complete(context.Background(), Request{Prompt: "Format this job", JSON: true})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if !strings.Contains(text, "Senior Backend Engineer") {
		t.Errorf("Unexpected text: %s", text)
	}
}

func TestCompleteClassifiesStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   apierr.Kind
	}{
		{
			name:   "invalid key",
			status: http.StatusUnauthorized,
			body:   `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			want:   apierr.KindMissingCredential,
		},
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`,
			want:   apierr.KindRateLimited,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"type":"error","error":{"type":"api_error","message":"boom"}}`,
			want:   apierr.KindUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient("bad-key", "", server.URL)

			_, err := client.Complete(context.Background(), Request{Prompt: "hi"})
			if err == nil {
				t.Fatal("Expected error, got nil")
			}

			if apierr.Classify(err) != tt.want {
				t.Errorf("Expected %s, got %s (%v)", tt.want, apierr.Classify(err), err)
			}

			if tt.want == apierr.KindMissingCredential && !apierr.IsCredentialMessage(err.Error()) {
				t.Errorf("Credential failure must stay substring-matchable: %s", err.Error())
			}

			if tt.want == apierr.KindRateLimited && err.Error() != apierr.RateLimitMessage {
				t.Errorf("Expected literal rate limit message, got %s", err.Error())
			}
		})
	}
}

func TestStream(t *testing.T) {
	events := []string{
		`{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","content":[],"model":"claude-sonnet-4-20250514","stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":5,"output_tokens":1}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Dear "}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hiring Manager"}}`,
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":4}}`,
		`{"type":"message_stop"}`,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, ev := range events {
			var head struct {
				Type string `json:"type"`
			}
			_ = json.Unmarshal([]byte(ev), &head)
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", head.Type, ev)
		}
	}))
	defer server.Close()

	client := NewClient("test-key", "", server.URL)

	var fragments []string
	err := client.Stream(context.Background(), Request{Prompt: "Write a cover letter"}, func(fragment string) (err error) {
		fragments = append(fragments, fragment)
		return err
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	if strings.Join(fragments, "") != "Dear Hiring Manager" {
		t.Errorf("Unexpected fragments: %v", fragments)
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: `{"a":1}`, want: `{"a":1}`},
		{name: "json fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "prose around", in: "Here you go:\n{\"a\":1}\nThanks", want: `{"a":1}`},
		{name: "whitespace", in: "  \n{\"a\":1}\n ", want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripCodeFences(tt.in)
			if got != tt.want {
				t.Errorf("StripCodeFences() = %q, want %q", got, tt.want)
			}
		})
	}
}
