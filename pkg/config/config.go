package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nikogura/resumelm/pkg/credentials"
	"github.com/nikogura/resumelm/pkg/llm"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultListenAddr is where `serve` listens when nothing is configured.
const DefaultListenAddr = "127.0.0.1:8080"

// Config represents the application configuration.
type Config struct {
	UserID       string                   `json:"user_id" yaml:"user_id"`
	Client       credentials.ClientConfig `json:"client" yaml:"client"`
	ServerKeys   ServerKeysConfig         `json:"server_keys,omitempty" yaml:"server_keys,omitempty"`
	Subscription credentials.Subscription `json:"subscription,omitempty" yaml:"subscription,omitempty"`
	Database     DatabaseConfig           `json:"database" yaml:"database"`
	Ollama       OllamaConfig             `json:"ollama,omitempty" yaml:"ollama,omitempty"`
	Server       ServerConfig             `json:"server,omitempty" yaml:"server,omitempty"`
}

// ServerKeysConfig holds server default keys, applied only with pro access.
type ServerKeysConfig struct {
	Anthropic  string `json:"anthropic,omitempty" yaml:"anthropic,omitempty"`
	OpenAI     string `json:"openai,omitempty" yaml:"openai,omitempty"`
	OpenRouter string `json:"openrouter,omitempty" yaml:"openrouter,omitempty"`
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

// OllamaConfig holds local model settings.
type OllamaConfig struct {
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
}

// GetModel returns the client model or default if not specified.
func (c *Config) GetModel() (model string) {
	if c.Client.Model != "" {
		model = c.Client.Model
		return model
	}
	model = credentials.DefaultModel
	return model
}

// ServerKeyMap returns the configured server keys by provider.
func (c *Config) ServerKeyMap() (keys map[credentials.Provider]string) {
	keys = make(map[credentials.Provider]string)
	if c.ServerKeys.Anthropic != "" {
		keys[credentials.ProviderAnthropic] = c.ServerKeys.Anthropic
	}
	if c.ServerKeys.OpenAI != "" {
		keys[credentials.ProviderOpenAI] = c.ServerKeys.OpenAI
	}
	if c.ServerKeys.OpenRouter != "" {
		keys[credentials.ProviderOpenRouter] = c.ServerKeys.OpenRouter
	}
	return keys
}

// OllamaTimeout parses the configured timeout. Empty means the client default.
func (c *Config) OllamaTimeout() (timeout time.Duration, err error) {
	if c.Ollama.Timeout == "" {
		return timeout, err
	}
	timeout, err = time.ParseDuration(c.Ollama.Timeout)
	if err != nil {
		err = errors.Wrapf(err, "invalid ollama.timeout: %s", c.Ollama.Timeout)
		return timeout, err
	}
	return timeout, err
}

// Factory builds the completer factory for this configuration.
func (c *Config) Factory() (factory *llm.Factory, err error) {
	var timeout time.Duration
	timeout, err = c.OllamaTimeout()
	if err != nil {
		return factory, err
	}

	factory = &llm.Factory{
		ServerKeys:    c.ServerKeyMap(),
		Entitlement:   credentials.StaticEntitlement{Subscription: c.Subscription},
		OllamaBaseURL: c.Ollama.BaseURL,
		OllamaTimeout: timeout,
	}
	return factory, err
}

// DefaultPath returns ~/.resumelm/config.json.
func DefaultPath() (path string, err error) {
	var homeDir string
	homeDir, err = os.UserHomeDir()
	if err != nil {
		err = errors.Wrap(err, "failed to get user home directory")
		return path, err
	}
	path = filepath.Join(homeDir, ".resumelm", "config.json")
	return path, err
}

func isYAML(path string) (ok bool) {
	ext := strings.ToLower(filepath.Ext(path))
	ok = ext == ".yaml" || ext == ".yml"
	return ok
}

// Load reads configuration from file with environment variable overrides.
func Load(configPath string) (cfg Config, err error) {
	path := configPath
	if path == "" {
		path, err = DefaultPath()
		if err != nil {
			return cfg, err
		}
	}

	var data []byte
	data, err = os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			err = errors.Errorf("config file not found: %s (run 'resumelm init' to create)", path)
			return cfg, err
		}
		err = errors.Wrapf(err, "failed to read config file: %s", path)
		return cfg, err
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		err = errors.Wrapf(err, "failed to parse config file: %s", path)
		return cfg, err
	}

	cfg.applyEnv()

	err = cfg.Validate()
	if err != nil {
		err = errors.Wrap(err, "config validation failed")
		return cfg, err
	}

	return cfg, err
}

// applyEnv overrides file settings with environment variables. Provider keys from the
// environment are added to the client key list, replacing a configured key for the same service.
func (c *Config) applyEnv() {
	envKeys := []struct {
		env     string
		service credentials.Provider
	}{
		{"ANTHROPIC_API_KEY", credentials.ProviderAnthropic},
		{"OPENAI_API_KEY", credentials.ProviderOpenAI},
		{"OPENROUTER_API_KEY", credentials.ProviderOpenRouter},
	}

	for _, ek := range envKeys {
		key := os.Getenv(ek.env)
		if key == "" {
			continue
		}
		c.setClientKey(ek.service, key)
	}

	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		c.Ollama.BaseURL = host
	}

	if dsn := os.Getenv("RESUMELM_DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			c.Database.Driver = DriverPostgres
		}
	}
}

func (c *Config) setClientKey(service credentials.Provider, key string) {
	for i, cred := range c.Client.APIKeys {
		if strings.EqualFold(string(cred.Service), string(service)) {
			c.Client.APIKeys[i].Key = key
			return
		}
	}
	c.Client.APIKeys = append(c.Client.APIKeys, credentials.Credential{Service: service, Key: key})
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() (err error) {
	if c.UserID == "" {
		err = errors.New("user_id is required in config")
		return err
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.DSN == "" {
			var homeDir string
			homeDir, err = os.UserHomeDir()
			if err != nil {
				err = errors.Wrap(err, "failed to get user home directory")
				return err
			}
			c.Database.DSN = filepath.Join(homeDir, ".resumelm", "resumelm.db")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			err = errors.New("database.dsn is required for postgres (set in config or RESUMELM_DATABASE_URL env var)")
			return err
		}
	default:
		err = errors.Errorf("unknown database.driver: %s", c.Database.Driver)
		return err
	}

	_, err = c.OllamaTimeout()
	if err != nil {
		return err
	}

	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}

	return err
}

// InitConfig creates a default configuration file.
func InitConfig(configPath string) (err error) {
	path := configPath
	if path == "" {
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	err = os.MkdirAll(dir, 0750)
	if err != nil {
		err = errors.Wrapf(err, "failed to create config directory: %s", dir)
		return err
	}

	_, err = os.Stat(path)
	if err == nil {
		err = errors.Errorf("config file already exists: %s", path)
		return err
	}

	defaultConfig := Config{
		UserID: "local",
		Client: credentials.ClientConfig{
			Model: credentials.DefaultModel,
			APIKeys: []credentials.Credential{
				{Service: credentials.ProviderAnthropic, Key: "sk-ant-api03-..."},
			},
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    filepath.Join(dir, "resumelm.db"),
		},
		Ollama: OllamaConfig{
			BaseURL: llm.OllamaBaseURL,
			Timeout: llm.OllamaTimeout.String(),
		},
		Server: ServerConfig{
			ListenAddr: DefaultListenAddr,
		},
	}

	var data []byte
	if isYAML(path) {
		data, err = yaml.Marshal(defaultConfig)
	} else {
		data, err = json.MarshalIndent(defaultConfig, "", "  ")
	}
	if err != nil {
		err = errors.Wrap(err, "failed to marshal default config")
		return err
	}

	err = os.WriteFile(path, data, 0600)
	if err != nil {
		err = errors.Wrapf(err, "failed to write config file: %s", path)
		return err
	}

	return err
}
