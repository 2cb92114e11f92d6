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
	"github.com/nikogura/resumelm/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		assert.Equal(t, "system", req.Messages[0].Role)

		_, _ = w.Write([]byte(`{"id":"c1","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"{\"points\":[\"a\"]}"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("sk-test", "gpt-4o", server.URL, "")
	text, err := client.Complete(context.Background(), Request{System: "be terse", Prompt: "points", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"points":["a"]}`, text)
}

func TestOpenAIStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   apierr.Kind
	}{
		{status: http.StatusUnauthorized, want: apierr.KindMissingCredential},
		{status: http.StatusForbidden, want: apierr.KindMissingCredential},
		{status: http.StatusTooManyRequests, want: apierr.KindRateLimited},
		{status: http.StatusBadGateway, want: apierr.KindUpstream},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"request failed for sk-abcdefghijklmnop"}}`))
			}))
			defer server.Close()

			client := NewOpenAIClient("sk-abcdefghijklmnop", "gpt-4o", server.URL, "")
			_, err := client.Complete(context.Background(), Request{Prompt: "hi"})
			require.Error(t, err)
			assert.Equal(t, tt.want, apierr.Classify(err))
			assert.NotContains(t, err.Error(), "sk-abcdefghijklmnop")
		})
	}
}

func TestOpenAIKeyMessageOnBadRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid x-api-key provided: sk-abcdefghijklmnop"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient("sk-abcdefghijklmnop", "gpt-4o", server.URL, "")
	_, err := client.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, apierr.KindMissingCredential, apierr.Classify(err))
	assert.NotContains(t, err.Error(), "sk-abcdefghijklmnop")
}

func TestOpenAIStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frag := range []string{"Dear", " team"} {
			_, _ = fmt.Fprintf(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", frag)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewOpenAIClient("sk-test", "gpt-4o", server.URL, AppTitle)

	var sb strings.Builder
	err := client.Stream(context.Background(), Request{Prompt: "letter"}, func(fragment string) (err error) {
		sb.WriteString(fragment)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "Dear team", sb.String())
}

func TestOpenAIStreamStopsOnCallbackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, frag := range []string{"one", "two", "three"} {
			_, _ = fmt.Fprintf(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", frag)
		}
	}))
	defer server.Close()

	client := NewOpenAIClient("sk-test", "gpt-4o", server.URL, "")

	stop := context.Canceled
	var got []string
	err := client.Stream(context.Background(), Request{Prompt: "letter"}, func(fragment string) (err error) {
		got = append(got, fragment)
		if len(got) == 2 {
			err = stop
		}
		return err
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestOllamaComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req["model"])
		assert.Equal(t, "json", req["format"])
		assert.Equal(t, false, req["stream"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3","response":"{\"ok\":true}","done":true}`))
	}))
	defer server.Close()

	client, err := NewOllamaClient(server.URL, "llama3", nil)
	require.NoError(t, err)

	text, err := client.Complete(context.Background(), Request{Prompt: "hi", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)
}

func TestOllamaInvalidBaseURL(t *testing.T) {
	_, err := NewOllamaClient("not a url", "llama3", nil)
	assert.Error(t, err)
}

func TestFactory(t *testing.T) {
	pro := credentials.StaticEntitlement{Subscription: credentials.Subscription{Plan: credentials.PlanPro, Status: credentials.StatusActive}}

	t.Run("anthropic with user key", func(t *testing.T) {
		f := &Factory{}
		res := credentials.Resolve(credentials.ClientConfig{APIKeys: []credentials.Credential{{Service: credentials.ProviderAnthropic, Key: "k"}}})
		c, err := f.For(res)
		require.NoError(t, err)
		_, ok := c.(*Client)
		assert.True(t, ok)
	})

	t.Run("openrouter uses server key with pro", func(t *testing.T) {
		f := &Factory{
			ServerKeys:  map[credentials.Provider]string{credentials.ProviderOpenRouter: "or-key"},
			Entitlement: pro,
		}
		c, err := f.For(credentials.Resolve(credentials.ClientConfig{Model: "qwen/qwen2.5-32b-instruct"}))
		require.NoError(t, err)
		oc, ok := c.(*OpenAIClient)
		require.True(t, ok)
		assert.Equal(t, OpenRouterBaseURL, oc.baseURL)
		assert.Equal(t, "or-key", oc.apiKey)
	})

	t.Run("ollama without key", func(t *testing.T) {
		f := &Factory{OllamaBaseURL: "http://127.0.0.1:11434"}
		c, err := f.For(credentials.Resolve(credentials.ClientConfig{Model: "ollama:mistral"}))
		require.NoError(t, err)
		oc, ok := c.(*OllamaClient)
		require.True(t, ok)
		assert.Equal(t, "mistral", oc.model)
	})

	t.Run("missing key", func(t *testing.T) {
		f := &Factory{}
		_, err := f.For(credentials.Resolve(credentials.ClientConfig{Model: "gpt-4o"}))
		require.Error(t, err)
		assert.Equal(t, apierr.KindMissingCredential, apierr.Classify(err))
	})
}
