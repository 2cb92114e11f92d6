package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nikogura/resumelm/pkg/credentials"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY", "OLLAMA_HOST", "RESUMELM_DATABASE_URL"} {
		t.Setenv(name, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	// Create a temporary config file.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	testConfig := Config{
		UserID: "test-user",
		Client: credentials.ClientConfig{
			Model:   "gpt-4o",
			APIKeys: []credentials.Credential{{Service: credentials.ProviderOpenAI, Key: "sk-test"}},
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			DSN:    filepath.Join(tmpDir, "test.db"),
		},
	}

	data, err := json.MarshalIndent(testConfig, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal test config: %v", err)
	}

	err = os.WriteFile(configPath, data, 0600)
	if err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetModel() != "gpt-4o" {
		t.Errorf("Expected model gpt-4o, got %s", cfg.GetModel())
	}

	if len(cfg.Client.APIKeys) != 1 || cfg.Client.APIKeys[0].Key != "sk-test" {
		t.Errorf("Expected configured key, got %+v", cfg.Client.APIKeys)
	}

	if cfg.Server.ListenAddr != DefaultListenAddr {
		t.Errorf("Expected default listen addr, got %s", cfg.Server.ListenAddr)
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `user_id: yaml-user
client:
  model: ollama:llama3.1
database:
  driver: postgres
  dsn: postgres://localhost/resumelm
ollama:
  base_url: http://gpu-box:11434
  timeout: 90s
subscription:
  plan: pro
  status: active
`
	err := os.WriteFile(configPath, []byte(content), 0600)
	if err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.UserID != "yaml-user" {
		t.Errorf("Expected user yaml-user, got %s", cfg.UserID)
	}

	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("Expected postgres driver, got %s", cfg.Database.Driver)
	}

	timeout, err := cfg.OllamaTimeout()
	if err != nil || timeout != 90*time.Second {
		t.Errorf("Expected 90s timeout, got %v (%v)", timeout, err)
	}

	if !cfg.Subscription.HasProAccess(time.Now()) {
		t.Error("Expected pro access from subscription section")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-env")
	t.Setenv("OLLAMA_HOST", "127.0.0.1:11435")
	t.Setenv("RESUMELM_DATABASE_URL", "postgres://db/resumelm")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	err := os.WriteFile(configPath, []byte(`{"user_id":"u","client":{"apiKeys":[{"service":"anthropic","key":"sk-ant-file"}]}}`), 0600)
	if err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	res := credentials.Resolve(cfg.Client)
	if key, _ := res.KeyFor(credentials.ProviderAnthropic); key != "sk-ant-env" {
		t.Errorf("Expected env anthropic key to replace file key, got %s", key)
	}
	if key, _ := res.KeyFor(credentials.ProviderOpenRouter); key != "sk-or-env" {
		t.Errorf("Expected env openrouter key, got %s", key)
	}

	if cfg.Ollama.BaseURL != "http://127.0.0.1:11435" {
		t.Errorf("Expected OLLAMA_HOST with scheme, got %s", cfg.Ollama.BaseURL)
	}

	if cfg.Database.Driver != DriverPostgres || cfg.Database.DSN != "postgres://db/resumelm" {
		t.Errorf("Expected postgres from env, got %+v", cfg.Database)
	}
}

func TestLoadNonexistent(t *testing.T) {
	_, err := Load("/nonexistent/path/config.json")
	if err == nil {
		t.Error("Expected error loading nonexistent config, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantError bool
	}{
		{
			name:      "valid config with sqlite default",
			config:    Config{UserID: "test-user"},
			wantError: false,
		},
		{
			name:      "missing user id",
			config:    Config{},
			wantError: true,
		},
		{
			name:      "postgres without dsn",
			config:    Config{UserID: "u", Database: DatabaseConfig{Driver: DriverPostgres}},
			wantError: true,
		},
		{
			name:      "unknown driver",
			config:    Config{UserID: "u", Database: DatabaseConfig{Driver: "mysql"}},
			wantError: true,
		},
		{
			name:      "bad ollama timeout",
			config:    Config{UserID: "u", Ollama: OllamaConfig{Timeout: "forever"}},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestGetModelDefault(t *testing.T) {
	cfg := Config{}
	if cfg.GetModel() != credentials.DefaultModel {
		t.Errorf("Expected default model, got %s", cfg.GetModel())
	}
}

func TestFactory(t *testing.T) {
	cfg := Config{
		ServerKeys: ServerKeysConfig{Anthropic: "sk-ant-server"},
		Ollama:     OllamaConfig{Timeout: "2m"},
	}

	factory, err := cfg.Factory()
	if err != nil {
		t.Fatalf("Failed to build factory: %v", err)
	}

	if factory.ServerKeys[credentials.ProviderAnthropic] != "sk-ant-server" {
		t.Errorf("Expected server key, got %v", factory.ServerKeys)
	}

	if factory.OllamaTimeout != 2*time.Minute {
		t.Errorf("Expected 2m timeout, got %v", factory.OllamaTimeout)
	}

	if factory.Entitlement.AllowsServerKeys() {
		t.Error("Expected no server keys without a subscription")
	}
}

func TestInitConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	err := InitConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to init config: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Config file was not created: %v", err)
	}

	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %v", info.Mode().Perm())
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	var cfg Config
	err = json.Unmarshal(data, &cfg)
	if err != nil {
		t.Fatalf("Failed to unmarshal config: %v", err)
	}

	if cfg.UserID == "" {
		t.Error("Default user id was not set")
	}

	if cfg.Database.DSN != filepath.Join(tmpDir, "resumelm.db") {
		t.Errorf("Expected database next to config, got %s", cfg.Database.DSN)
	}
}

func TestInitConfigYAML(t *testing.T) {
	clearEnv(t)

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yml")

	err := InitConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to init config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load generated YAML config: %v", err)
	}

	if cfg.GetModel() != credentials.DefaultModel {
		t.Errorf("Expected default model, got %s", cfg.GetModel())
	}
}

func TestInitConfigAlreadyExists(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	// Create file first.
	err := os.WriteFile(configPath, []byte("{}"), 0600)
	if err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	// Try to init - should fail.
	err = InitConfig(configPath)
	if err == nil {
		t.Error("Expected error when config already exists, got nil")
	}
}
