package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/pkg/errors"
)

const (
	// ClaudeModel is the model to use when none is given.
	ClaudeModel = "claude-sonnet-4-20250514"
	// ClaudeTimeout bounds a single Claude request.
	ClaudeTimeout = 120 * time.Second
)

// Client is a Claude API client.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	api     anthropic.Client
}

// NewClient creates a new Claude API client. An empty baseURL uses the public API.
func NewClient(apiKey, model, baseURL string) (client *Client) {
	if model == "" {
		model = ClaudeModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Retry policy belongs to the caller.
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: ClaudeTimeout}),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client = &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		api:     anthropic.NewClient(opts...),
	}
	return client
}

// Complete sends a single request to Claude and returns the text content.
func (c *Client) Complete(ctx context.Context, req Request) (text string, err error) {
	var msg *anthropic.Message
	msg, err = c.api.Messages.New(ctx, c.params(req))
	if err != nil {
		err = classifyAnthropic(err)
		return text, err
	}

	// Extract text content
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	text = sb.String()
	if text == "" {
		err = apierr.Upstream(errors.New("no content in Claude response"), "claude completion")
		return text, err
	}

	return text, err
}

// Stream sends a request to Claude and delivers text deltas as they arrive.
func (c *Client) Stream(ctx context.Context, req Request, onDelta DeltaFunc) (err error) {
	stream := c.api.Messages.NewStreaming(ctx, c.params(req))
	defer stream.Close()

	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && delta.Text != "" {
				err = onDelta(delta.Text)
				if err != nil {
					return err
				}
			}
		}
	}

	err = stream.Err()
	if err != nil {
		err = classifyAnthropic(err)
		return err
	}

	return err
}

// params builds the Messages API request.
func (c *Client) params(req Request) (params anthropic.MessageNewParams) {
	prompt := req.Prompt
	if req.JSON {
		prompt += "\n\nReturn ONLY valid JSON (no markdown, no commentary)."
	}

	params = anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens(req)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	return params
}

// classifyAnthropic maps SDK failures onto the error taxonomy.
func classifyAnthropic(err error) (classified error) {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		classified = classifyStatus(apiErr.StatusCode, err, "claude request failed")
		return classified
	}
	classified = apierr.Upstream(err, "claude request failed")
	return classified
}

// classifyStatus maps an HTTP status from any provider onto the error taxonomy.
// A body naming a bad key wins over the status, since some providers answer 400 for it.
func classifyStatus(status int, cause error, message string) (classified error) {
	if apierr.IsCredentialMessage(cause.Error()) {
		classified = apierr.Wrap(apierr.KindMissingCredential, errors.New(apierr.RedactSecrets(cause.Error())), "API key rejected")
		return classified
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		classified = apierr.Wrap(apierr.KindMissingCredential, errors.New(apierr.RedactSecrets(cause.Error())), "API key rejected")
	case http.StatusTooManyRequests:
		classified = apierr.RateLimited()
	default:
		classified = apierr.Upstream(errors.New(apierr.RedactSecrets(cause.Error())), message)
	}
	return classified
}

// StripCodeFences removes markdown code fences from JSON responses.
func StripCodeFences(text string) (cleaned string) {
	cleaned = strings.TrimSpace(text)

	if strings.HasPrefix(cleaned, "```") {
		// Drop the opening fence line
		if nl := strings.IndexByte(cleaned, '\n'); nl >= 0 {
			cleaned = cleaned[nl+1:]
		} else {
			cleaned = strings.TrimPrefix(cleaned, "```")
		}
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}

	cleaned = strings.TrimSpace(cleaned)

	// Models sometimes wrap the object in prose
	if !strings.HasPrefix(cleaned, "{") {
		start := strings.IndexByte(cleaned, '{')
		end := strings.LastIndexByte(cleaned, '}')
		if start >= 0 && end > start {
			cleaned = cleaned[start : end+1]
		}
	}

	return cleaned
}
