package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalEnvYAML = `
server:
  port: "8080"
request:
  timeout: "25s"
completion:
  provider: "gemini"
  timeout: "20s"
shutdown:
  timeout: "10s"
`

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"ENV_NAME", "GEMINI_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "RSS2JSON_API_KEY",
		"COMPLETION_PROVIDER", "CACHE_BACKEND", "MEMCACHED_ADDRS", "PREFERENCES_BACKEND",
		"REDIS_ADDR", "REDIS_PASSWORD",
	} {
		t.Setenv(name, "")
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
}

func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	writeConfigFile(t, dir, "dev.yaml", content)
}

func writeSecretsFile(t *testing.T, dir, content string) {
	t.Helper()
	writeConfigFile(t, dir, "secrets.yaml", content)
}

func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func loadFrom(t *testing.T, yaml, secrets string) (*Config, error) {
	t.Helper()
	dir := t.TempDir()
	writeEnvFile(t, dir, yaml)
	if secrets != "" {
		writeSecretsFile(t, dir, secrets)
	}
	chdir(t, dir)
	return Load()
}

// TestLoad_FailsWhenNoAPIKey verifies that the selected provider's key is required.
func TestLoad_FailsWhenNoAPIKey(t *testing.T) {
	clearEnv(t)
	cfg, err := loadFrom(t, minimalEnvYAML, "")
	if err == nil {
		t.Fatal("Load() expected error when no GEMINI_API_KEY, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Errorf("Load() error = %v, want message containing GEMINI_API_KEY", err)
	}
}

// TestLoad_ProviderKeyFromSecretsFile verifies that each provider reads its own secrets field.
func TestLoad_ProviderKeyFromSecretsFile(t *testing.T) {
	secrets := "gemini_api_key: g-key\nanthropic_api_key: a-key\nopenai_api_key: o-key\nrss2json_api_key: r-key\n"
	tests := []struct {
		provider, want string
	}{
		{"gemini", "g-key"},
		{"anthropic", "a-key"},
		{"openai", "o-key"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			clearEnv(t)
			yaml := strings.Replace(minimalEnvYAML, `provider: "gemini"`, `provider: "`+tt.provider+`"`, 1)
			cfg, err := loadFrom(t, yaml, secrets)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.CompletionProvider != tt.provider || cfg.CompletionAPIKey != tt.want {
				t.Errorf("provider/key = %q/%q, want %q/%q", cfg.CompletionProvider, cfg.CompletionAPIKey, tt.provider, tt.want)
			}
			if cfg.NewsAPIKey != "r-key" {
				t.Errorf("NewsAPIKey = %q, want r-key", cfg.NewsAPIKey)
			}
		})
	}
}

// TestLoad_EnvWinsOverSecrets verifies env precedence for keys and provider selection.
func TestLoad_EnvWinsOverSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("COMPLETION_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "env-key")
	cfg, err := loadFrom(t, minimalEnvYAML, "openai_api_key: file-key\n")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CompletionProvider != "openai" || cfg.CompletionAPIKey != "env-key" {
		t.Errorf("provider/key = %q/%q", cfg.CompletionProvider, cfg.CompletionAPIKey)
	}
}

// TestLoad_DotEnvFile verifies that .env supplies secrets without overriding set variables.
func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("GEMINI_API_KEY")
	t.Cleanup(func() { os.Unsetenv("GEMINI_API_KEY") })

	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GEMINI_API_KEY=from-dotenv\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CompletionAPIKey != "from-dotenv" {
		t.Errorf("CompletionAPIKey = %q, want from-dotenv", cfg.CompletionAPIKey)
	}
}

// TestLoad_EnvFileNotFound verifies the error for a missing environment file.
func TestLoad_EnvFileNotFound(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV_NAME", "nonexistent")
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err == nil || cfg != nil {
		t.Fatalf("Load() = %+v, %v; want nil config and error", cfg, err)
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Load() error = %v, want message about config file not found", err)
	}
}

// TestLoad_Defaults verifies defaults applied to a minimal file.
func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "k")
	cfg, err := loadFrom(t, minimalEnvYAML, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	checks := []struct {
		name      string
		got, want any
	}{
		{"CacheBackend", cfg.CacheBackend, "in_memory"},
		{"CacheTTL", cfg.CacheTTL, time.Duration(0)},
		{"PreferencesBackend", cfg.PreferencesBackend, "in_memory"},
		{"BreakerEnabled", cfg.BreakerEnabled, true},
		{"NewsTimeout", cfg.NewsTimeout, 5 * time.Second},
		{"MaxSymbols", cfg.MaxSymbols, 20},
		{"LocationMaxLength", cfg.LocationMaxLength, 100},
		{"RedisAddr", cfg.RedisAddr, "localhost:6379"},
		{"TestingMode", cfg.TestingMode, false},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

// TestLoad_InvalidDurationFallsBackToDefault verifies fallback on unparseable durations.
func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "k")
	yaml := minimalEnvYAML + "news:\n  timeout: \"soon\"\n"
	cfg, err := loadFrom(t, yaml, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.NewsTimeout != 5*time.Second {
		t.Errorf("NewsTimeout = %v, want 5s", cfg.NewsTimeout)
	}
}

// TestLoad_RequestTimeoutAdjusted verifies that the request timeout always exceeds the completion timeout.
func TestLoad_RequestTimeoutAdjusted(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "k")
	yaml := strings.Replace(minimalEnvYAML, `timeout: "25s"`, `timeout: "5s"`, 1)
	cfg, err := loadFrom(t, yaml, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestTimeout != 21*time.Second {
		t.Errorf("RequestTimeout = %v, want 21s", cfg.RequestTimeout)
	}
	if cfg.InFlightTimeout >= cfg.ShutdownTimeout {
		t.Errorf("InFlightTimeout %v should be below ShutdownTimeout %v", cfg.InFlightTimeout, cfg.ShutdownTimeout)
	}
}

// TestLoad_ValidationErrors verifies rejection of invalid settings.
func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"zero completion timeout", strings.Replace(minimalEnvYAML, `timeout: "20s"`, `timeout: "0s"`, 1), "COMPLETION_TIMEOUT"},
		{"bad cache backend", minimalEnvYAML + "cache:\n  backend: \"redis\"\n", "cache.backend"},
		{"bad preferences backend", minimalEnvYAML + "preferences:\n  backend: \"postgres\"\n", "preferences.backend"},
		{"coalesce without timeout", minimalEnvYAML + "coalesce:\n  enabled: true\n", "coalesce.timeout"},
		{"location bounds", minimalEnvYAML + "validation:\n  location_min_length: 50\n  location_max_length: 10\n", "location_min_length"},
		{"unknown provider", strings.Replace(minimalEnvYAML, `provider: "gemini"`, `provider: "llama"`, 1), "completion.provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("GEMINI_API_KEY", "k")
			cfg, err := loadFrom(t, tt.yaml, "")
			if err == nil || cfg != nil {
				t.Fatalf("Load() = %+v, %v; want error", cfg, err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want message containing %q", err, tt.want)
			}
		})
	}
}

// TestLoad_InvalidYAML verifies parse errors for both files.
func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "k")
	if _, err := loadFrom(t, "not: valid: yaml: [[[", ""); err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Errorf("invalid config: err = %v", err)
	}
	if _, err := loadFrom(t, minimalEnvYAML, "not valid: yaml: [[["); err == nil || !strings.Contains(err.Error(), "parse secrets file") {
		t.Errorf("invalid secrets: err = %v", err)
	}
}

// TestLoad_ProjectDevConfig verifies that the checked-in config/dev.yaml loads.
func TestLoad_ProjectDevConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "test-key")
	chdir(t, findProjectRoot(t))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.NewsConverterURL == "" || cfg.ServerPort == "" || len(cfg.TrackedLocations) == 0 {
		t.Errorf("Load() did not populate config from config/dev.yaml: %+v", cfg)
	}
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "config", "dev.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("config/dev.yaml not found (run tests from project root)")
		}
		dir = parent
	}
}
