package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/pkg/errors"
)

const (
	// OpenAIBaseURL is the OpenAI API root.
	OpenAIBaseURL = "https://api.openai.com/v1"
	// OpenRouterBaseURL is the OpenRouter API root (OpenAI-compatible).
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	// OpenAITimeout bounds a single chat completion.
	OpenAITimeout = 120 * time.Second
)

// OpenAIClient is a minimal OpenAI-compatible chat completions client.
type OpenAIClient struct {
	apiKey     string
	model      string
	baseURL    string
	appTitle   string
	httpClient *http.Client
}

// NewOpenAIClient creates a chat completions client against baseURL.
func NewOpenAIClient(apiKey, model, baseURL, appTitle string) (client *OpenAIClient) {
	if baseURL == "" {
		baseURL = OpenAIBaseURL
	}
	client = &OpenAIClient{
		apiKey:   apiKey,
		model:    model,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		appTitle: appTitle,
		httpClient: &http.Client{
			Timeout: OpenAITimeout,
		},
	}
	return client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int         `json:"index"`
		Message chatMessage `json:"message"`
		Delta   chatMessage `json:"delta"`
	} `json:"choices"`
}

// Complete sends a chat completion and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (text string, err error) {
	var resp *http.Response
	resp, err = c.send(ctx, req, false)
	if err != nil {
		return text, err
	}
	defer resp.Body.Close()

	var out chatResponse
	err = json.NewDecoder(resp.Body).Decode(&out)
	if err != nil {
		err = apierr.Upstream(err, "failed to parse chat completion")
		return text, err
	}

	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		err = apierr.Upstream(errors.New("no choices returned by model"), "chat completion")
		return text, err
	}

	text = out.Choices[0].Message.Content
	return text, err
}

// Stream sends a streaming chat completion and delivers content deltas.
func (c *OpenAIClient) Stream(ctx context.Context, req Request, onDelta DeltaFunc) (err error) {
	var resp *http.Response
	resp, err = c.send(ctx, req, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var chunk chatResponse
		err = json.Unmarshal([]byte(payload), &chunk)
		if err != nil {
			err = apierr.Upstream(err, "failed to parse stream chunk")
			return err
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			err = onDelta(choice.Delta.Content)
			if err != nil {
				return err
			}
		}
	}

	err = scanner.Err()
	if err != nil {
		err = apierr.Upstream(err, "stream interrupted")
		return err
	}

	return err
}

// send posts the request and checks the status code.
func (c *OpenAIClient) send(ctx context.Context, req Request, stream bool) (resp *http.Response, err error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens(req),
		Stream:      stream,
	}
	if req.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var data []byte
	data, err = json.Marshal(body)
	if err != nil {
		err = errors.Wrap(err, "failed to marshal request")
		return resp, err
	}

	var httpReq *http.Request
	httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		err = errors.Wrap(err, "failed to create HTTP request")
		return resp, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.appTitle != "" {
		httpReq.Header.Set("X-Title", c.appTitle)
	}

	resp, err = c.httpClient.Do(httpReq)
	if err != nil {
		err = apierr.Upstream(errors.New(apierr.RedactSecrets(err.Error())), "HTTP request failed")
		return resp, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		err = classifyStatus(resp.StatusCode, errors.Errorf("status %d: %s", resp.StatusCode, string(respBody)), "chat completion failed")
		resp = nil
		return resp, err
	}

	return resp, err
}
