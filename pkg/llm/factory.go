package llm

import (
	"net/http"
	"time"

	"github.com/nikogura/resumelm/pkg/apierr"
	"github.com/nikogura/resumelm/pkg/credentials"
)

// AppTitle identifies this application to OpenRouter.
const AppTitle = "ResumeLM"

// Factory builds a Completer for a resolved model and key set.
type Factory struct {
	ServerKeys        map[credentials.Provider]string
	Entitlement       credentials.Entitlement
	AnthropicBaseURL  string
	OpenAIBaseURL     string
	OpenRouterBaseURL string
	OllamaBaseURL     string
	// OllamaTimeout bounds one local generation. Zero uses the client default.
	OllamaTimeout time.Duration
}

// For returns a Completer for the resolution, or a MissingCredential error when no usable key exists.
func (f *Factory) For(res credentials.Resolution) (completer Completer, err error) {
	var key string
	key, err = credentials.SelectKey(res, f.ServerKeys, f.Entitlement)
	if err != nil {
		return completer, err
	}

	model := credentials.ModelName(res.Model)

	switch res.Provider {
	case credentials.ProviderAnthropic:
		completer = NewClient(key, model, f.AnthropicBaseURL)
	case credentials.ProviderOpenAI:
		completer = NewOpenAIClient(key, model, f.OpenAIBaseURL, "")
	case credentials.ProviderOpenRouter:
		baseURL := f.OpenRouterBaseURL
		if baseURL == "" {
			baseURL = OpenRouterBaseURL
		}
		completer = NewOpenAIClient(key, model, baseURL, AppTitle)
	case credentials.ProviderOllama:
		var ollama *OllamaClient
		var httpClient *http.Client
		if f.OllamaTimeout > 0 {
			httpClient = &http.Client{Timeout: f.OllamaTimeout}
		}
		ollama, err = NewOllamaClient(f.OllamaBaseURL, model, httpClient)
		if err != nil {
			err = apierr.Upstream(err, "ollama client")
			return completer, err
		}
		completer = ollama
	default:
		err = apierr.MissingCredential("no provider for model " + res.Model)
		return completer, err
	}

	return completer, err
}
