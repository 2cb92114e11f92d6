// Package credentials decides which model and which API keys an AI call uses.
package credentials

import (
	"strings"
	"time"
)

// Provider identifies an AI completion vendor.
type Provider string

// Known providers.
const (
	ProviderAnthropic  Provider = "anthropic"
	ProviderOpenAI     Provider = "openai"
	ProviderOpenRouter Provider = "openrouter"
	ProviderOllama     Provider = "ollama"
)

// DefaultModel is used when the client has not chosen one.
const DefaultModel = "claude-sonnet-4-20250514"

// Credential is a user-supplied API key tagged by provider.
type Credential struct {
	Service Provider  `json:"service" yaml:"service"`
	Key     string    `json:"key" yaml:"key"`
	AddedAt time.Time `json:"addedAt,omitempty" yaml:"added_at,omitempty"`
}

// ClientConfig is the client-held AI configuration passed into every operation.
type ClientConfig struct {
	Model   string       `json:"model" yaml:"model"`
	APIKeys []Credential `json:"apiKeys" yaml:"api_keys"`
}

// Resolution is the model and keys an AI call should use.
type Resolution struct {
	Model    string
	Provider Provider
	APIKeys  []Credential
}

// Resolve reads the client configuration. It never fails: a missing key is detected downstream.
func Resolve(cfg ClientConfig) (res Resolution) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	keys := make([]Credential, 0, len(cfg.APIKeys))
	for _, c := range cfg.APIKeys {
		if strings.TrimSpace(c.Key) == "" {
			continue
		}
		c.Service = Provider(strings.ToLower(string(c.Service)))
		keys = append(keys, c)
	}

	res = Resolution{
		Model:    model,
		Provider: ProviderForModel(model),
		APIKeys:  keys,
	}

	return res
}

// KeyFor returns the first user key for the provider.
func (r Resolution) KeyFor(p Provider) (key string, ok bool) {
	for _, c := range r.APIKeys {
		if c.Service == p {
			key = strings.TrimSpace(c.Key)
			ok = true
			return key, ok
		}
	}
	return key, ok
}

// ProviderForModel maps a model identifier to its provider.
func ProviderForModel(model string) (p Provider) {
	m := strings.ToLower(strings.TrimSpace(model))

	if prefix, _, found := strings.Cut(m, ":"); found {
		switch Provider(prefix) {
		case ProviderOllama, ProviderOpenAI, ProviderOpenRouter, ProviderAnthropic:
			p = Provider(prefix)
			return p
		}
	}

	switch {
	case strings.HasPrefix(m, "claude"):
		p = ProviderAnthropic
	case strings.HasPrefix(m, "gpt"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		p = ProviderOpenAI
	case strings.Contains(m, "/"):
		p = ProviderOpenRouter
	case isLocalModel(m):
		p = ProviderOllama
	default:
		p = ProviderAnthropic
	}

	return p
}

// ModelName strips an explicit provider prefix such as "ollama:".
func ModelName(model string) (name string) {
	name = strings.TrimSpace(model)
	if prefix, rest, found := strings.Cut(name, ":"); found {
		switch Provider(strings.ToLower(prefix)) {
		case ProviderOllama, ProviderOpenAI, ProviderOpenRouter, ProviderAnthropic:
			name = rest
		}
	}
	return name
}

func isLocalModel(m string) (ok bool) {
	for _, family := range []string{"llama", "qwen", "mistral", "deepseek", "gemma", "phi"} {
		if strings.HasPrefix(m, family) {
			ok = true
			return ok
		}
	}
	return ok
}

// RequiresKey reports whether the provider authenticates with an API key.
func (p Provider) RequiresKey() (ok bool) {
	ok = p != ProviderOllama
	return ok
}
