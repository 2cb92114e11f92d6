package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/ollama/ollama/api"
	"github.com/pkg/errors"
)

const (
	// OllamaBaseURL is the default local Ollama endpoint.
	OllamaBaseURL = "http://localhost:11434"
	// OllamaTimeout bounds a single local generation.
	OllamaTimeout = 5 * time.Minute
)

// OllamaClient runs completions against a local Ollama instance.
type OllamaClient struct {
	api   *api.Client
	model string
}

// NewOllamaClient creates a client for baseURL. A nil httpClient gets a default with timeout.
func NewOllamaClient(baseURL, model string, httpClient *http.Client) (client *OllamaClient, err error) {
	if baseURL == "" {
		baseURL = OllamaBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: OllamaTimeout}
	}

	var u *url.URL
	u, err = url.ParseRequestURI(baseURL)
	if err != nil {
		err = errors.Wrapf(err, "invalid ollama base url: %s", baseURL)
		return client, err
	}

	client = &OllamaClient{
		api:   api.NewClient(u, httpClient),
		model: model,
	}
	return client, err
}

// Complete generates a full response without streaming.
func (c *OllamaClient) Complete(ctx context.Context, req Request) (text string, err error) {
	stream := false
	genReq := c.request(req)
	genReq.Stream = &stream

	var sb strings.Builder
	err = c.api.Generate(ctx, genReq, func(r api.GenerateResponse) (cbErr error) {
		sb.WriteString(r.Response)
		return cbErr
	})
	if err != nil {
		err = classifyOllama(err)
		return text, err
	}

	text = sb.String()
	if text == "" {
		err = apierr.Upstream(errors.New("no content in ollama response"), "ollama completion")
		return text, err
	}

	return text, err
}

// Stream generates a response and delivers each fragment as it arrives.
func (c *OllamaClient) Stream(ctx context.Context, req Request, onDelta DeltaFunc) (err error) {
	genReq := c.request(req)

	err = c.api.Generate(ctx, genReq, func(r api.GenerateResponse) (cbErr error) {
		if r.Response == "" {
			return cbErr
		}
		cbErr = onDelta(r.Response)
		return cbErr
	})
	if err != nil {
		err = classifyOllama(err)
		return err
	}

	return err
}

func (c *OllamaClient) request(req Request) (genReq *api.GenerateRequest) {
	options := map[string]interface{}{
		"num_predict": maxTokens(req),
	}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}

	genReq = &api.GenerateRequest{
		Model:   c.model,
		Prompt:  req.Prompt,
		System:  req.System,
		Options: options,
	}

	if req.JSON {
		genReq.Format = json.RawMessage(`"json"`)
	}

	return genReq
}

func classifyOllama(err error) (classified error) {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		classified = classifyStatus(statusErr.StatusCode, err, "ollama request failed")
		return classified
	}
	classified = apierr.Upstream(err, "ollama request failed")
	return classified
}
